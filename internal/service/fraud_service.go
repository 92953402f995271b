package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/domain/valueobject"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/events"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/logger"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/metrics"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/pkg/apperror"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/validation"
)

type FraudRepository interface {
	Create(ctx context.Context, e *models.FraudEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.FraudEvent, error)
	List(ctx context.Context, filter models.FraudFilter, page models.PageRequest) (models.Page[models.FraudEvent], error)
	Review(ctx context.Context, id uuid.UUID, from, to valueobject.FraudStatus, reviewerID uuid.UUID, notes *string, at time.Time) error
}

type FraudService struct {
	repo      FraudRepository
	publisher events.Publisher
	notifier  Notifier
	metrics   *metrics.Metrics
	now       func() time.Time
	log       *logrus.Entry
}

func NewFraudService(repo FraudRepository, publisher events.Publisher, notifier Notifier, m *metrics.Metrics) *FraudService {
	return &FraudService{
		repo:      repo,
		publisher: publisher,
		notifier:  notifier,
		metrics:   m,
		now:       utcNow,
		log:       logger.Component("fraud"),
	}
}

// RecordEventInput событие от процесса обнаружения мошенничества.
type RecordEventInput struct {
	UserID          *uuid.UUID
	TransactionID   *uuid.UUID
	DetectionMethod models.DetectionMethod
	RiskScore       float64
	Details         models.FraudDetails
}

// RecordEvent сохраняет событие для последующего разбора администратором.
func (s *FraudService) RecordEvent(ctx context.Context, actor models.Actor, in RecordEventInput) (*models.FraudEvent, error) {
	if err := requireRole(actor, models.RoleSystem, models.RoleAdmin); err != nil {
		return nil, err
	}
	if in.UserID == nil && in.TransactionID == nil {
		return nil, apperror.Validation("требуется user_id или transaction_id")
	}
	if err := valueobject.ValidateRiskScore(in.RiskScore); err != nil {
		return nil, err
	}
	if err := in.Details.Validate(in.DetectionMethod); err != nil {
		return nil, err
	}

	e := &models.FraudEvent{
		ID:              uuid.New(),
		UserID:          in.UserID,
		TransactionID:   in.TransactionID,
		DetectionMethod: in.DetectionMethod,
		RiskScore:       in.RiskScore,
		Details:         in.Details,
		Status:          valueobject.FraudStatusPending,
		CreatedAt:       s.now(),
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"fraud_event_id": e.ID,
		"method":         e.DetectionMethod,
		"band":           e.Band(),
	}).Info("Зарегистрировано событие мошенничества")

	// Высокий риск сразу уходит в шину и ленту персонала, остальное ждёт очереди ревью.
	if e.Band() == valueobject.RiskBandHigh {
		assessment := e.Assess()
		payload := map[string]any{
			"fraud_event_id":   e.ID,
			"detection_method": e.DetectionMethod,
			"risk_score":       e.RiskScore,
			"recommendation":   assessment.Recommendation,
		}
		publish(ctx, s.log, s.publisher, events.New(events.FraudFlagged, partitionKey(e), actor.ID, payload))
		notifyStaff(s.log, s.notifier, events.FraudFlagged, payload)
	}
	return e, nil
}

// GetEvent возвращает событие с уровнем риска и рекомендацией.
func (s *FraudService) GetEvent(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.FraudAssessment, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	assessment := e.Assess()
	return &assessment, nil
}

func (s *FraudService) ListEvents(ctx context.Context, actor models.Actor, filter models.FraudFilter, page models.PageRequest) (models.Page[models.FraudEvent], error) {
	if err := requireStaff(actor); err != nil {
		return models.Page[models.FraudEvent]{}, err
	}
	return s.repo.List(ctx, filter, page)
}

// ReviewEvent фиксирует вывод администратора. Автоматических санкций нет.
func (s *FraudService) ReviewEvent(ctx context.Context, actor models.Actor, id uuid.UUID, status valueobject.FraudStatus, notes *string) (*models.FraudAssessment, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !status.IsValid() {
		return nil, apperror.Validation("некорректный статус %q", status)
	}

	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := e.Status.TransitionTo(status); err != nil {
		return nil, err
	}
	reviewNotes, err := optionalText("review_notes", notes, validation.MaxNotesLength)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Review(ctx, id, e.Status, status, actor.ID, reviewNotes, s.now()); err != nil {
		return nil, err
	}

	band := e.Band()
	s.metrics.RecordFraudReview(string(band), string(status))

	publish(ctx, s.log, s.publisher, events.New(events.FraudReviewed, partitionKey(e), actor.ID, map[string]any{
		"fraud_event_id": id,
		"status":         status,
		"band":           band,
	}))

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	assessment := updated.Assess()
	return &assessment, nil
}

// partitionKey держит события одной сделки в одной партиции.
func partitionKey(e *models.FraudEvent) uuid.UUID {
	switch {
	case e.TransactionID != nil:
		return *e.TransactionID
	case e.UserID != nil:
		return *e.UserID
	default:
		return e.ID
	}
}
