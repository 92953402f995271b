package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/domain/valueobject"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/dto"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/http/handlers/common"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/service"
)

// EscrowUseCase операции со сделками, доступные через HTTP.
type EscrowUseCase interface {
	CreateTransaction(ctx context.Context, actor models.Actor, in service.CreateTransactionInput) (*models.EscrowTransaction, error)
	MarkFunded(ctx context.Context, actor models.Actor, id uuid.UUID, paymentIntentID string) (*models.EscrowTransaction, error)
	ConfirmReceipt(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.EscrowTransaction, error)
	ConfirmHandoff(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.EscrowTransaction, error)
	OpenDispute(ctx context.Context, actor models.Actor, id uuid.UUID, reason string) (*models.Dispute, error)
	ForceRefund(ctx context.Context, actor models.Actor, id uuid.UUID, notes string) (*models.EscrowTransaction, error)
	GetTransaction(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.EscrowTransaction, error)
	ListMine(ctx context.Context, actor models.Actor, page models.PageRequest) (models.Page[models.EscrowTransaction], error)
	ListAll(ctx context.Context, actor models.Actor, status *valueobject.EscrowStatus, page models.PageRequest) (models.Page[models.EscrowTransaction], error)
	UpdateMeeting(ctx context.Context, actor models.Actor, id uuid.UUID, location *string, scheduledAt *time.Time) (*models.EscrowTransaction, error)
}

// TransactionHandler обслуживает эндпоинты сделок.
type TransactionHandler struct {
	escrow EscrowUseCase
}

func NewTransactionHandler(escrow EscrowUseCase) *TransactionHandler {
	return &TransactionHandler{escrow: escrow}
}

// Create обрабатывает POST /api/transactions.
func (h *TransactionHandler) Create(c *gin.Context) {
	actor, ok := common.RequireActor(c)
	if !ok {
		return
	}

	var req dto.CreateTransactionRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}

	tx, err := h.escrow.CreateTransaction(c.Request.Context(), actor, service.CreateTransactionInput{
		ListingID:           req.ListingID,
		BuyerID:             req.BuyerID,
		SellerID:            req.SellerID,
		Amount:              req.Amount,
		Currency:            strings.ToLower(req.Currency),
		SellerPayoutAccount: req.SellerPayoutAccount,
		MeetingLocation:     req.MeetingLocation,
		MeetingScheduledAt:  req.MeetingScheduledAt,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondJSON(c, http.StatusCreated, tx)
}

// Get обрабатывает GET /api/transactions/:id.
func (h *TransactionHandler) Get(c *gin.Context) {
	handleWithID(c, func(actor models.Actor, id uuid.UUID) (any, error) {
		return h.escrow.GetTransaction(c.Request.Context(), actor, id)
	})
}

// ListMine обрабатывает GET /api/transactions/my.
func (h *TransactionHandler) ListMine(c *gin.Context) {
	actor, ok := common.RequireActor(c)
	if !ok {
		return
	}

	page, err := h.escrow.ListMine(c.Request.Context(), actor, common.GetPage(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, page)
}

// ListAll обрабатывает GET /api/admin/transactions?status=.
func (h *TransactionHandler) ListAll(c *gin.Context) {
	actor, ok := common.RequireActor(c)
	if !ok {
		return
	}

	status, err := common.OptionalQuery(c, "status", valueobject.NewEscrowStatus)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	page, err := h.escrow.ListAll(c.Request.Context(), actor, status, common.GetPage(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, page)
}

// ConfirmReceipt обрабатывает POST /api/transactions/:id/confirm-receipt.
func (h *TransactionHandler) ConfirmReceipt(c *gin.Context) {
	handleWithID(c, func(actor models.Actor, id uuid.UUID) (any, error) {
		return h.escrow.ConfirmReceipt(c.Request.Context(), actor, id)
	})
}

// ConfirmHandoff обрабатывает POST /api/transactions/:id/confirm-handoff.
func (h *TransactionHandler) ConfirmHandoff(c *gin.Context) {
	handleWithID(c, func(actor models.Actor, id uuid.UUID) (any, error) {
		return h.escrow.ConfirmHandoff(c.Request.Context(), actor, id)
	})
}

// UpdateMeeting обрабатывает PUT /api/transactions/:id/meeting.
func (h *TransactionHandler) UpdateMeeting(c *gin.Context) {
	var req dto.UpdateMeetingRequest
	handleWithBody(c, &req, func(actor models.Actor, id uuid.UUID) (any, error) {
		return h.escrow.UpdateMeeting(c.Request.Context(), actor, id, req.Location, req.ScheduledAt)
	})
}

// OpenDispute обрабатывает POST /api/transactions/:id/dispute.
func (h *TransactionHandler) OpenDispute(c *gin.Context) {
	actor, ok := common.RequireActor(c)
	if !ok {
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.OpenDisputeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}

	d, err := h.escrow.OpenDispute(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusCreated, d)
}

// Fund обрабатывает POST /api/admin/transactions/:id/fund.
func (h *TransactionHandler) Fund(c *gin.Context) {
	var req dto.FundTransactionRequest
	handleWithBody(c, &req, func(actor models.Actor, id uuid.UUID) (any, error) {
		return h.escrow.MarkFunded(c.Request.Context(), actor, id, req.PaymentIntentID)
	})
}

// ForceRefund обрабатывает POST /api/admin/transactions/:id/force-refund.
func (h *TransactionHandler) ForceRefund(c *gin.Context) {
	var req dto.ForceRefundRequest
	handleWithBody(c, &req, func(actor models.Actor, id uuid.UUID) (any, error) {
		return h.escrow.ForceRefund(c.Request.Context(), actor, id, req.Notes)
	})
}
