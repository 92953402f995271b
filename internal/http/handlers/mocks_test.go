package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/domain/valueobject"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/http/middleware"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/service"
)

// newTestRouter монтирует один хэндлер; actor подставляется так же, как это делает AuthMiddleware.
func newTestRouter(method, path string, actor *models.Actor, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Handle(method, path, func(c *gin.Context) {
		if actor != nil {
			c.Set(middleware.ContextUserIDKey, actor.ID)
			c.Set(middleware.ContextRoleKey, actor.Role)
		}
		c.Next()
	}, handler)
	return r
}

func doJSON(r http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, _ := json.Marshal(b)
			reader = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func userActor() *models.Actor {
	return &models.Actor{ID: uuid.New(), Role: models.RoleUser}
}

func staffActor(role string) *models.Actor {
	return &models.Actor{ID: uuid.New(), Role: role}
}

type mockEscrow struct{ mock.Mock }

func (m *mockEscrow) CreateTransaction(ctx context.Context, actor models.Actor, in service.CreateTransactionInput) (*models.EscrowTransaction, error) {
	args := m.Called(ctx, actor, in)
	tx, _ := args.Get(0).(*models.EscrowTransaction)
	return tx, args.Error(1)
}

func (m *mockEscrow) MarkFunded(ctx context.Context, actor models.Actor, id uuid.UUID, paymentIntentID string) (*models.EscrowTransaction, error) {
	args := m.Called(ctx, actor, id, paymentIntentID)
	tx, _ := args.Get(0).(*models.EscrowTransaction)
	return tx, args.Error(1)
}

func (m *mockEscrow) ConfirmReceipt(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.EscrowTransaction, error) {
	args := m.Called(ctx, actor, id)
	tx, _ := args.Get(0).(*models.EscrowTransaction)
	return tx, args.Error(1)
}

func (m *mockEscrow) ConfirmHandoff(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.EscrowTransaction, error) {
	args := m.Called(ctx, actor, id)
	tx, _ := args.Get(0).(*models.EscrowTransaction)
	return tx, args.Error(1)
}

func (m *mockEscrow) OpenDispute(ctx context.Context, actor models.Actor, id uuid.UUID, reason string) (*models.Dispute, error) {
	args := m.Called(ctx, actor, id, reason)
	d, _ := args.Get(0).(*models.Dispute)
	return d, args.Error(1)
}

func (m *mockEscrow) ForceRefund(ctx context.Context, actor models.Actor, id uuid.UUID, notes string) (*models.EscrowTransaction, error) {
	args := m.Called(ctx, actor, id, notes)
	tx, _ := args.Get(0).(*models.EscrowTransaction)
	return tx, args.Error(1)
}

func (m *mockEscrow) GetTransaction(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.EscrowTransaction, error) {
	args := m.Called(ctx, actor, id)
	tx, _ := args.Get(0).(*models.EscrowTransaction)
	return tx, args.Error(1)
}

func (m *mockEscrow) ListMine(ctx context.Context, actor models.Actor, page models.PageRequest) (models.Page[models.EscrowTransaction], error) {
	args := m.Called(ctx, actor, page)
	return args.Get(0).(models.Page[models.EscrowTransaction]), args.Error(1)
}

func (m *mockEscrow) ListAll(ctx context.Context, actor models.Actor, status *valueobject.EscrowStatus, page models.PageRequest) (models.Page[models.EscrowTransaction], error) {
	args := m.Called(ctx, actor, status, page)
	return args.Get(0).(models.Page[models.EscrowTransaction]), args.Error(1)
}

func (m *mockEscrow) UpdateMeeting(ctx context.Context, actor models.Actor, id uuid.UUID, location *string, scheduledAt *time.Time) (*models.EscrowTransaction, error) {
	args := m.Called(ctx, actor, id, location, scheduledAt)
	tx, _ := args.Get(0).(*models.EscrowTransaction)
	return tx, args.Error(1)
}

type mockDisputes struct{ mock.Mock }

func (m *mockDisputes) ResolveDispute(ctx context.Context, actor models.Actor, transactionID uuid.UUID, resolution valueobject.Resolution, notes string, refundAmount *decimal.Decimal) (*models.DisputeResolution, error) {
	args := m.Called(ctx, actor, transactionID, resolution, notes, refundAmount)
	r, _ := args.Get(0).(*models.DisputeResolution)
	return r, args.Error(1)
}

func (m *mockDisputes) GetDispute(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, actor, id)
	d, _ := args.Get(0).(*models.Dispute)
	return d, args.Error(1)
}

func (m *mockDisputes) ListDisputes(ctx context.Context, actor models.Actor, status *valueobject.DisputeStatus, page models.PageRequest) (models.Page[models.Dispute], error) {
	args := m.Called(ctx, actor, status, page)
	return args.Get(0).(models.Page[models.Dispute]), args.Error(1)
}

func (m *mockDisputes) AttachEvidence(ctx context.Context, actor models.Actor, disputeID uuid.UUID, file io.Reader) (*models.Dispute, error) {
	args := m.Called(ctx, actor, disputeID, file)
	d, _ := args.Get(0).(*models.Dispute)
	return d, args.Error(1)
}

type mockRefunds struct{ mock.Mock }

func (m *mockRefunds) CreateRefundRequest(ctx context.Context, actor models.Actor, in service.CreateRefundInput) (*models.RefundRequest, error) {
	args := m.Called(ctx, actor, in)
	r, _ := args.Get(0).(*models.RefundRequest)
	return r, args.Error(1)
}

func (m *mockRefunds) ProcessRefund(ctx context.Context, actor models.Actor, id uuid.UUID, approve bool, notes *string) (*models.RefundRequest, error) {
	args := m.Called(ctx, actor, id, approve, notes)
	r, _ := args.Get(0).(*models.RefundRequest)
	return r, args.Error(1)
}

func (m *mockRefunds) ExecuteRefund(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.RefundRequest, error) {
	args := m.Called(ctx, actor, id)
	r, _ := args.Get(0).(*models.RefundRequest)
	return r, args.Error(1)
}

func (m *mockRefunds) MarkProcessed(ctx context.Context, actor models.Actor, id uuid.UUID, processorRef string) (*models.RefundRequest, error) {
	args := m.Called(ctx, actor, id, processorRef)
	r, _ := args.Get(0).(*models.RefundRequest)
	return r, args.Error(1)
}

func (m *mockRefunds) ListRefundRequests(ctx context.Context, actor models.Actor, filter models.RefundFilter, page models.PageRequest) (models.Page[models.RefundRequest], error) {
	args := m.Called(ctx, actor, filter, page)
	return args.Get(0).(models.Page[models.RefundRequest]), args.Error(1)
}

func (m *mockRefunds) ListForTransaction(ctx context.Context, actor models.Actor, transactionID uuid.UUID) ([]models.RefundRequest, error) {
	args := m.Called(ctx, actor, transactionID)
	list, _ := args.Get(0).([]models.RefundRequest)
	return list, args.Error(1)
}

type mockFraud struct{ mock.Mock }

func (m *mockFraud) RecordEvent(ctx context.Context, actor models.Actor, in service.RecordEventInput) (*models.FraudEvent, error) {
	args := m.Called(ctx, actor, in)
	e, _ := args.Get(0).(*models.FraudEvent)
	return e, args.Error(1)
}

func (m *mockFraud) GetEvent(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.FraudAssessment, error) {
	args := m.Called(ctx, actor, id)
	a, _ := args.Get(0).(*models.FraudAssessment)
	return a, args.Error(1)
}

func (m *mockFraud) ListEvents(ctx context.Context, actor models.Actor, filter models.FraudFilter, page models.PageRequest) (models.Page[models.FraudEvent], error) {
	args := m.Called(ctx, actor, filter, page)
	return args.Get(0).(models.Page[models.FraudEvent]), args.Error(1)
}

func (m *mockFraud) ReviewEvent(ctx context.Context, actor models.Actor, id uuid.UUID, status valueobject.FraudStatus, notes *string) (*models.FraudAssessment, error) {
	args := m.Called(ctx, actor, id, status, notes)
	a, _ := args.Get(0).(*models.FraudAssessment)
	return a, args.Error(1)
}

type mockChecks struct{ mock.Mock }

func (m *mockChecks) RequestCheck(ctx context.Context, actor models.Actor, checkType models.CheckType, expiresAt *time.Time) (*models.BackgroundCheck, error) {
	args := m.Called(ctx, actor, checkType, expiresAt)
	c, _ := args.Get(0).(*models.BackgroundCheck)
	return c, args.Error(1)
}

func (m *mockChecks) SetStatus(ctx context.Context, actor models.Actor, id uuid.UUID, status valueobject.CheckStatus, change service.StatusChange) (*models.BackgroundCheck, error) {
	args := m.Called(ctx, actor, id, status, change)
	c, _ := args.Get(0).(*models.BackgroundCheck)
	return c, args.Error(1)
}

func (m *mockChecks) GetCheck(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.BackgroundCheck, error) {
	args := m.Called(ctx, actor, id)
	c, _ := args.Get(0).(*models.BackgroundCheck)
	return c, args.Error(1)
}

func (m *mockChecks) ListMine(ctx context.Context, actor models.Actor, page models.PageRequest) (models.Page[models.BackgroundCheck], error) {
	args := m.Called(ctx, actor, page)
	return args.Get(0).(models.Page[models.BackgroundCheck]), args.Error(1)
}

func (m *mockChecks) ListChecks(ctx context.Context, actor models.Actor, status *valueobject.CheckStatus, page models.PageRequest) (models.Page[models.BackgroundCheck], error) {
	args := m.Called(ctx, actor, status, page)
	return args.Get(0).(models.Page[models.BackgroundCheck]), args.Error(1)
}
