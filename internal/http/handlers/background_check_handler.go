package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/domain/valueobject"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/dto"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/http/handlers/common"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/service"
)

type BackgroundCheckUseCase interface {
	RequestCheck(ctx context.Context, actor models.Actor, checkType models.CheckType, expiresAt *time.Time) (*models.BackgroundCheck, error)
	SetStatus(ctx context.Context, actor models.Actor, id uuid.UUID, status valueobject.CheckStatus, change service.StatusChange) (*models.BackgroundCheck, error)
	GetCheck(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.BackgroundCheck, error)
	ListMine(ctx context.Context, actor models.Actor, page models.PageRequest) (models.Page[models.BackgroundCheck], error)
	ListChecks(ctx context.Context, actor models.Actor, status *valueobject.CheckStatus, page models.PageRequest) (models.Page[models.BackgroundCheck], error)
}

type BackgroundCheckHandler struct {
	checks BackgroundCheckUseCase
}

func NewBackgroundCheckHandler(checks BackgroundCheckUseCase) *BackgroundCheckHandler {
	return &BackgroundCheckHandler{checks: checks}
}

// Request POST /background-checks
func (h *BackgroundCheckHandler) Request(c *gin.Context) {
	actor, ok := common.RequireActor(c)
	if !ok {
		return
	}

	var req dto.RequestBackgroundCheckRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}

	check, err := h.checks.RequestCheck(c.Request.Context(), actor, models.CheckType(req.CheckType), req.ExpiresAt)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusCreated, check)
}

// Get GET /background-checks/:id
func (h *BackgroundCheckHandler) Get(c *gin.Context) {
	handleWithID(c, func(actor models.Actor, id uuid.UUID) (any, error) {
		return h.checks.GetCheck(c.Request.Context(), actor, id)
	})
}

// ListMine GET /background-checks/my
func (h *BackgroundCheckHandler) ListMine(c *gin.Context) {
	actor, ok := common.RequireActor(c)
	if !ok {
		return
	}

	page, err := h.checks.ListMine(c.Request.Context(), actor, common.GetPage(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, page)
}

// List GET /admin/background-checks?status=
func (h *BackgroundCheckHandler) List(c *gin.Context) {
	actor, ok := common.RequireActor(c)
	if !ok {
		return
	}

	status, err := common.OptionalQuery(c, "status", valueobject.NewCheckStatus)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	page, err := h.checks.ListChecks(c.Request.Context(), actor, status, common.GetPage(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, page)
}

// UpdateStatus PUT /admin/background-checks/:id/status
func (h *BackgroundCheckHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateBackgroundCheckRequest
	handleWithBody(c, &req, func(actor models.Actor, id uuid.UUID) (any, error) {
		return h.checks.SetStatus(c.Request.Context(), actor, id, valueobject.CheckStatus(req.Status), service.StatusChange{
			Notes:             req.Notes,
			ProviderReference: req.ProviderReference,
		})
	})
}
