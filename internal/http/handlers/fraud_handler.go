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

type FraudUseCase interface {
	RecordEvent(ctx context.Context, actor models.Actor, in service.RecordEventInput) (*models.FraudEvent, error)
	GetEvent(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.FraudAssessment, error)
	ListEvents(ctx context.Context, actor models.Actor, filter models.FraudFilter, page models.PageRequest) (models.Page[models.FraudEvent], error)
	ReviewEvent(ctx context.Context, actor models.Actor, id uuid.UUID, status valueobject.FraudStatus, notes *string) (*models.FraudAssessment, error)
}

// FraudHandler события мошенничества: приём от детектора и разбор администратором.
type FraudHandler struct {
	fraud FraudUseCase
}

func NewFraudHandler(fraud FraudUseCase) *FraudHandler {
	return &FraudHandler{fraud: fraud}
}

// Record POST /internal/fraud-events
func (h *FraudHandler) Record(c *gin.Context) {
	actor, ok := common.RequireActor(c)
	if !ok {
		return
	}

	var req dto.RecordFraudEventRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}

	event, err := h.fraud.RecordEvent(c.Request.Context(), actor, service.RecordEventInput{
		UserID:          req.UserID,
		TransactionID:   req.TransactionID,
		DetectionMethod: models.DetectionMethod(req.DetectionMethod),
		RiskScore:       *req.RiskScore,
		Details:         req.Details,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusCreated, event.Assess())
}

// Get GET /admin/fraud-events/:id
func (h *FraudHandler) Get(c *gin.Context) {
	handleWithID(c, func(actor models.Actor, id uuid.UUID) (any, error) {
		return h.fraud.GetEvent(c.Request.Context(), actor, id)
	})
}

// List GET /admin/fraud-events?status=&band=
func (h *FraudHandler) List(c *gin.Context) {
	actor, ok := common.RequireActor(c)
	if !ok {
		return
	}

	var filter models.FraudFilter
	var err error
	if filter.Status, err = common.OptionalQuery(c, "status", valueobject.NewFraudStatus); err != nil {
		common.RespondAppError(c, err)
		return
	}
	if filter.Band, err = common.OptionalQuery(c, "band", valueobject.NewRiskBand); err != nil {
		common.RespondAppError(c, err)
		return
	}

	page, err := h.fraud.ListEvents(c.Request.Context(), actor, filter, common.GetPage(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, page)
}

// Review PUT /admin/fraud-events/:id/review
func (h *FraudHandler) Review(c *gin.Context) {
	var req dto.ReviewFraudEventRequest
	handleWithBody(c, &req, func(actor models.Actor, id uuid.UUID) (any, error) {
		return h.fraud.ReviewEvent(c.Request.Context(), actor, id, valueobject.FraudStatus(req.Status), req.ReviewNotes)
	})
}
