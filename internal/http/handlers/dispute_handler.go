package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/domain/valueobject"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/dto"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/http/handlers/common"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
)

type DisputeUseCase interface {
	ResolveDispute(ctx context.Context, actor models.Actor, transactionID uuid.UUID, resolution valueobject.Resolution, notes string, refundAmount *decimal.Decimal) (*models.DisputeResolution, error)
	GetDispute(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Dispute, error)
	ListDisputes(ctx context.Context, actor models.Actor, status *valueobject.DisputeStatus, page models.PageRequest) (models.Page[models.Dispute], error)
	AttachEvidence(ctx context.Context, actor models.Actor, disputeID uuid.UUID, file io.Reader) (*models.Dispute, error)
}

type DisputeHandler struct {
	svc DisputeUseCase
}

func NewDisputeHandler(s DisputeUseCase) *DisputeHandler {
	return &DisputeHandler{svc: s}
}

// Resolve POST /admin/transactions/:id/resolve
// Повтор с тем же решением отвечает 200 и already_resolved=true.
func (h *DisputeHandler) Resolve(c *gin.Context) {
	var req dto.ResolveDisputeRequest
	handleWithBody(c, &req, func(actor models.Actor, id uuid.UUID) (any, error) {
		return h.svc.ResolveDispute(c.Request.Context(), actor, id,
			valueobject.Resolution(req.Resolution), req.Notes, req.RefundAmount)
	})
}

// Get GET /disputes/:id
func (h *DisputeHandler) Get(c *gin.Context) {
	handleWithID(c, func(actor models.Actor, id uuid.UUID) (any, error) {
		return h.svc.GetDispute(c.Request.Context(), actor, id)
	})
}

// List GET /admin/disputes?status=
func (h *DisputeHandler) List(c *gin.Context) {
	actor, ok := common.RequireActor(c)
	if !ok {
		return
	}

	status, err := common.OptionalQuery(c, "status", valueobject.NewDisputeStatus)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	page, err := h.svc.ListDisputes(c.Request.Context(), actor, status, common.GetPage(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, page)
}

// AttachEvidence POST /disputes/:id/evidence (multipart, поле file)
// Тип и размер файла проверяет хранилище.
func (h *DisputeHandler) AttachEvidence(c *gin.Context) {
	actor, ok := common.RequireActor(c)
	if !ok {
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		common.RespondBadRequest(c, "поле file обязательно")
		return
	}
	src, err := file.Open()
	if err != nil {
		common.RespondBadRequest(c, "не удалось прочитать файл")
		return
	}
	defer src.Close()

	dispute, err := h.svc.AttachEvidence(c.Request.Context(), actor, id, src)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusCreated, dispute)
}
