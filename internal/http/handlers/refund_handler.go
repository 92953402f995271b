package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/domain/valueobject"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/dto"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/http/handlers/common"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/service"
)

type RefundUseCase interface {
	CreateRefundRequest(ctx context.Context, actor models.Actor, in service.CreateRefundInput) (*models.RefundRequest, error)
	ProcessRefund(ctx context.Context, actor models.Actor, id uuid.UUID, approve bool, notes *string) (*models.RefundRequest, error)
	ExecuteRefund(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.RefundRequest, error)
	MarkProcessed(ctx context.Context, actor models.Actor, id uuid.UUID, processorRef string) (*models.RefundRequest, error)
	ListRefundRequests(ctx context.Context, actor models.Actor, filter models.RefundFilter, page models.PageRequest) (models.Page[models.RefundRequest], error)
	ListForTransaction(ctx context.Context, actor models.Actor, transactionID uuid.UUID) ([]models.RefundRequest, error)
}

// RefundHandler обслуживает запросы на возврат.
type RefundHandler struct {
	refunds RefundUseCase
}

func NewRefundHandler(refunds RefundUseCase) *RefundHandler {
	return &RefundHandler{refunds: refunds}
}

// Create POST /transactions/:id/refund-requests
func (h *RefundHandler) Create(c *gin.Context) {
	actor, ok := common.RequireActor(c)
	if !ok {
		return
	}
	txID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.CreateRefundRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}

	in := service.CreateRefundInput{
		TransactionID: txID,
		Reason:        req.Reason,
		Amount:        req.RefundAmount,
		Type:          valueobject.RefundType(req.RefundType),
	}
	if req.RequesterID != nil {
		in.RequesterID = *req.RequesterID
	}

	refund, err := h.refunds.CreateRefundRequest(c.Request.Context(), actor, in)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusCreated, refund)
}

// ListForTransaction GET /transactions/:id/refund-requests
func (h *RefundHandler) ListForTransaction(c *gin.Context) {
	handleWithID(c, func(actor models.Actor, txID uuid.UUID) (any, error) {
		items, err := h.refunds.ListForTransaction(c.Request.Context(), actor, txID)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []models.RefundRequest{}
		}
		pending, processed, other := service.PartitionRefunds(items)
		return dto.RefundListResponse{
			Items:     items,
			Pending:   len(pending),
			Processed: len(processed),
			Other:     len(other),
		}, nil
	})
}

// List GET /admin/refund-requests?status=&transaction_id=
func (h *RefundHandler) List(c *gin.Context) {
	actor, ok := common.RequireActor(c)
	if !ok {
		return
	}

	var filter models.RefundFilter
	status, err := common.OptionalQuery(c, "status", valueobject.NewRefundStatus)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	filter.Status = status

	txID, err := common.OptionalQuery(c, "transaction_id", uuid.Parse)
	if err != nil {
		common.RespondBadRequest(c, "transaction_id должен быть валидным UUID")
		return
	}
	filter.TransactionID = txID

	page, err := h.refunds.ListRefundRequests(c.Request.Context(), actor, filter, common.GetPage(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, page)
}

// Process POST /admin/refund-requests/:id/process
func (h *RefundHandler) Process(c *gin.Context) {
	var req dto.ProcessRefundRequest
	handleWithBody(c, &req, func(actor models.Actor, id uuid.UUID) (any, error) {
		return h.refunds.ProcessRefund(c.Request.Context(), actor, id, *req.Approve, req.AdminNotes)
	})
}

// Execute POST /admin/refund-requests/:id/execute
func (h *RefundHandler) Execute(c *gin.Context) {
	handleWithID(c, func(actor models.Actor, id uuid.UUID) (any, error) {
		return h.refunds.ExecuteRefund(c.Request.Context(), actor, id)
	})
}

// MarkProcessed POST /admin/refund-requests/:id/mark-processed
func (h *RefundHandler) MarkProcessed(c *gin.Context) {
	var req dto.MarkRefundProcessedRequest
	handleWithBody(c, &req, func(actor models.Actor, id uuid.UUID) (any, error) {
		return h.refunds.MarkProcessed(c.Request.Context(), actor, id, req.ProcessorRef)
	})
}
