package service

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/domain/valueobject"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/events"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/metrics"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/repository"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/settlement"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/storage"
)

var fixedNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func staff(role string) models.Actor {
	return models.Actor{ID: uuid.New(), Role: role}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// disputedTransaction сделка 100.00 с комиссией 10% в статусе disputed.
func disputedTransaction() *models.EscrowTransaction {
	pi := "pi_123"
	acct := "acct_seller"
	created := fixedNow.Add(-48 * time.Hour)
	return &models.EscrowTransaction{
		ID:                  uuid.New(),
		ListingID:           uuid.New(),
		BuyerID:             uuid.New(),
		SellerID:            uuid.New(),
		Amount:              dec("100.00"),
		Currency:            "usd",
		CommissionRate:      dec("0.10"),
		CommissionAmount:    dec("10.00"),
		SellerAmount:        dec("90.00"),
		RefundedAmount:      decimal.Zero,
		Status:              valueobject.EscrowStatusDisputed,
		PaymentIntentID:     &pi,
		SellerPayoutAccount: &acct,
		DisputeCreatedAt:    &created,
		Version:             3,
		CreatedAt:           created,
		UpdatedAt:           created,
	}
}

// --- escrow repository ---

type mockEscrowRepo struct {
	mock.Mock
}

func (m *mockEscrowRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowTransaction), args.Error(1)
}

func (m *mockEscrowRepo) Claim(ctx context.Context, id uuid.UUID, expectedVersion int64, actorID uuid.UUID, now, staleBefore time.Time) error {
	args := m.Called(ctx, id, expectedVersion, actorID, now, staleBefore)
	return args.Error(0)
}

func (m *mockEscrowRepo) ReleaseClaim(ctx context.Context, id, actorID uuid.UUID, now time.Time) error {
	args := m.Called(ctx, id, actorID, now)
	return args.Error(0)
}

func (m *mockEscrowRepo) Create(ctx context.Context, t *models.EscrowTransaction) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *mockEscrowRepo) List(ctx context.Context, filter models.EscrowFilter, page models.PageRequest) (models.Page[models.EscrowTransaction], error) {
	args := m.Called(ctx, filter, page)
	return args.Get(0).(models.Page[models.EscrowTransaction]), args.Error(1)
}

func (m *mockEscrowRepo) ListByParticipant(ctx context.Context, userID uuid.UUID, page models.PageRequest) (models.Page[models.EscrowTransaction], error) {
	args := m.Called(ctx, userID, page)
	return args.Get(0).(models.Page[models.EscrowTransaction]), args.Error(1)
}

func (m *mockEscrowRepo) UpdateStatus(ctx context.Context, u repository.EscrowStatusUpdate) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockEscrowRepo) UpdateMeeting(ctx context.Context, id uuid.UUID, location *string, scheduledAt *time.Time, now time.Time) error {
	args := m.Called(ctx, id, location, scheduledAt, now)
	return args.Error(0)
}

func (m *mockEscrowRepo) FinalizeSettlement(ctx context.Context, id, actorID uuid.UUID, u repository.SettlementUpdate) error {
	args := m.Called(ctx, id, actorID, u)
	return args.Error(0)
}

// --- dispute repository ---

type mockDisputeRepo struct {
	mock.Mock
}

func (m *mockDisputeRepo) Open(ctx context.Context, o repository.OpenDispute) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockDisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) GetActiveByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) GetLatestByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) List(ctx context.Context, status *valueobject.DisputeStatus, page models.PageRequest) (models.Page[models.Dispute], error) {
	args := m.Called(ctx, status, page)
	return args.Get(0).(models.Page[models.Dispute]), args.Error(1)
}

func (m *mockDisputeRepo) MarkMediation(ctx context.Context, id uuid.UUID, notes string, at time.Time) error {
	args := m.Called(ctx, id, notes, at)
	return args.Error(0)
}

func (m *mockDisputeRepo) Resolve(ctx context.Context, p repository.ResolveDispute) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockDisputeRepo) AddEvidence(ctx context.Context, id uuid.UUID, path string, at time.Time) error {
	args := m.Called(ctx, id, path, at)
	return args.Error(0)
}

// --- refund repository ---

type mockRefundRepo struct {
	mock.Mock
}

func (m *mockRefundRepo) Create(ctx context.Context, req *models.RefundRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *mockRefundRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.RefundRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefundRequest), args.Error(1)
}

func (m *mockRefundRepo) List(ctx context.Context, filter models.RefundFilter, page models.PageRequest) (models.Page[models.RefundRequest], error) {
	args := m.Called(ctx, filter, page)
	return args.Get(0).(models.Page[models.RefundRequest]), args.Error(1)
}

func (m *mockRefundRepo) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.RefundRequest, error) {
	args := m.Called(ctx, transactionID)
	return args.Get(0).([]models.RefundRequest), args.Error(1)
}

func (m *mockRefundRepo) Decide(ctx context.Context, id uuid.UUID, d models.RefundDecision) error {
	args := m.Called(ctx, id, d)
	return args.Error(0)
}

func (m *mockRefundRepo) MarkProcessed(ctx context.Context, id uuid.UUID, processorRef string, at time.Time) error {
	args := m.Called(ctx, id, processorRef, at)
	return args.Error(0)
}

func (m *mockRefundRepo) SumProcessed(ctx context.Context, transactionID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, transactionID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// --- fraud / background checks ---

type mockFraudRepo struct {
	mock.Mock
}

func (m *mockFraudRepo) Create(ctx context.Context, e *models.FraudEvent) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *mockFraudRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.FraudEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FraudEvent), args.Error(1)
}

func (m *mockFraudRepo) List(ctx context.Context, filter models.FraudFilter, page models.PageRequest) (models.Page[models.FraudEvent], error) {
	args := m.Called(ctx, filter, page)
	return args.Get(0).(models.Page[models.FraudEvent]), args.Error(1)
}

func (m *mockFraudRepo) Review(ctx context.Context, id uuid.UUID, from, to valueobject.FraudStatus, reviewerID uuid.UUID, notes *string, at time.Time) error {
	args := m.Called(ctx, id, from, to, reviewerID, notes, at)
	return args.Error(0)
}

type mockCheckRepo struct {
	mock.Mock
}

func (m *mockCheckRepo) Create(ctx context.Context, c *models.BackgroundCheck) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockCheckRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.BackgroundCheck, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BackgroundCheck), args.Error(1)
}

func (m *mockCheckRepo) List(ctx context.Context, filter models.CheckFilter, page models.PageRequest) (models.Page[models.BackgroundCheck], error) {
	args := m.Called(ctx, filter, page)
	return args.Get(0).(models.Page[models.BackgroundCheck]), args.Error(1)
}

func (m *mockCheckRepo) UpdateStatus(ctx context.Context, id uuid.UUID, u models.CheckUpdate) error {
	args := m.Called(ctx, id, u)
	return args.Error(0)
}

// --- внешние зависимости ---

type mockSettler struct {
	mock.Mock
}

func (m *mockSettler) Settle(ctx context.Context, req settlement.Request) (settlement.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(settlement.Result), args.Error(1)
}

type mockRefundProcessor struct {
	mock.Mock
}

func (m *mockRefundProcessor) ProcessRefund(ctx context.Context, in settlement.RefundInstruction) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

type mockEvidence struct {
	mock.Mock
}

func (m *mockEvidence) Save(ctx context.Context, disputeID uuid.UUID, r io.Reader) (storage.StoredFile, error) {
	args := m.Called(ctx, disputeID, r)
	return args.Get(0).(storage.StoredFile), args.Error(1)
}

func (m *mockEvidence) Delete(ctx context.Context, relativePath string) error {
	args := m.Called(ctx, relativePath)
	return args.Error(0)
}

// recordingPublisher запоминает опубликованные события.
type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type sentNotification struct {
	userID uuid.UUID
	event  string
}

type recordingNotifier struct {
	sent  []sentNotification
	staff []string
}

func (n *recordingNotifier) BroadcastToUser(userID uuid.UUID, event string, _ any) error {
	n.sent = append(n.sent, sentNotification{userID: userID, event: event})
	return nil
}

func (n *recordingNotifier) BroadcastToStaff(event string, _ any) error {
	n.staff = append(n.staff, event)
	return nil
}

func (n *recordingNotifier) recipients(event string) []uuid.UUID {
	var out []uuid.UUID
	for _, s := range n.sent {
		if s.event == event {
			out = append(out, s.userID)
		}
	}
	return out
}
