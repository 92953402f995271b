package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/domain/valueobject"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/events"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/logger"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/pkg/apperror"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/validation"
)

type BackgroundCheckRepository interface {
	Create(ctx context.Context, c *models.BackgroundCheck) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.BackgroundCheck, error)
	List(ctx context.Context, filter models.CheckFilter, page models.PageRequest) (models.Page[models.BackgroundCheck], error)
	UpdateStatus(ctx context.Context, id uuid.UUID, u models.CheckUpdate) error
}

type BackgroundCheckService struct {
	repo      BackgroundCheckRepository
	publisher events.Publisher
	notifier  Notifier
	now       func() time.Time
	log       *logrus.Entry
}

func NewBackgroundCheckService(repo BackgroundCheckRepository, publisher events.Publisher, notifier Notifier) *BackgroundCheckService {
	return &BackgroundCheckService{
		repo:      repo,
		publisher: publisher,
		notifier:  notifier,
		now:       utcNow,
		log:       logger.Component("background_check"),
	}
}

// RequestCheck создаёт проверку текущего пользователя. expiresAt только сохраняется.
func (s *BackgroundCheckService) RequestCheck(ctx context.Context, actor models.Actor, checkType models.CheckType, expiresAt *time.Time) (*models.BackgroundCheck, error) {
	if actor.ID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}
	if !checkType.IsValid() {
		return nil, apperror.Validation("некорректный тип проверки %q", checkType)
	}
	now := s.now()
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, apperror.Validation("expires_at должен быть в будущем")
	}

	c := &models.BackgroundCheck{
		ID:        uuid.New(),
		UserID:    actor.ID,
		CheckType: checkType,
		Status:    valueobject.CheckStatusPending,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// StatusChange решение администратора по проверке.
type StatusChange struct {
	Notes             *string
	ProviderReference *string
}

// StartReview pending → in_progress.
func (s *BackgroundCheckService) StartReview(ctx context.Context, actor models.Actor, id uuid.UUID, change StatusChange) (*models.BackgroundCheck, error) {
	return s.transition(ctx, actor, id, valueobject.CheckStatusInProgress, change)
}

// Approve pending|in_progress → completed.
func (s *BackgroundCheckService) Approve(ctx context.Context, actor models.Actor, id uuid.UUID, change StatusChange) (*models.BackgroundCheck, error) {
	return s.transition(ctx, actor, id, valueobject.CheckStatusCompleted, change)
}

// Reject → failed.
func (s *BackgroundCheckService) Reject(ctx context.Context, actor models.Actor, id uuid.UUID, change StatusChange) (*models.BackgroundCheck, error) {
	return s.transition(ctx, actor, id, valueobject.CheckStatusFailed, change)
}

// Expire переводит проверку в expired вручную, автоматического истечения нет.
func (s *BackgroundCheckService) Expire(ctx context.Context, actor models.Actor, id uuid.UUID, change StatusChange) (*models.BackgroundCheck, error) {
	return s.transition(ctx, actor, id, valueobject.CheckStatusExpired, change)
}

// SetStatus выбирает переход по целевому статусу.
func (s *BackgroundCheckService) SetStatus(ctx context.Context, actor models.Actor, id uuid.UUID, status valueobject.CheckStatus, change StatusChange) (*models.BackgroundCheck, error) {
	switch status {
	case valueobject.CheckStatusInProgress:
		return s.StartReview(ctx, actor, id, change)
	case valueobject.CheckStatusCompleted:
		return s.Approve(ctx, actor, id, change)
	case valueobject.CheckStatusFailed:
		return s.Reject(ctx, actor, id, change)
	case valueobject.CheckStatusExpired:
		return s.Expire(ctx, actor, id, change)
	}
	return nil, apperror.Validation("некорректный статус проверки %q", status)
}

func (s *BackgroundCheckService) transition(ctx context.Context, actor models.Actor, id uuid.UUID, to valueobject.CheckStatus, change StatusChange) (*models.BackgroundCheck, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := c.Status.TransitionTo(to); err != nil {
		return nil, err
	}
	notes, err := optionalText("notes", change.Notes, validation.MaxNotesLength)
	if err != nil {
		return nil, err
	}
	ref, err := optionalText("provider_reference", change.ProviderReference, validation.MaxReferenceLength)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, id, models.CheckUpdate{
		From:              c.Status,
		To:                to,
		ReviewedBy:        actor.ID,
		Notes:             notes,
		ProviderReference: ref,
		At:                s.now(),
	}); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"check_id": id,
		"from":     c.Status,
		"to":       to,
	}).Info("Статус проверки изменён")

	payload := map[string]any{"check_id": id, "check_type": c.CheckType, "status": to}
	publish(ctx, s.log, s.publisher, events.New(events.BackgroundCheckUpdated, c.UserID, actor.ID, payload))
	notify(s.log, s.notifier, events.BackgroundCheckUpdated, payload, c.UserID)
	return s.repo.GetByID(ctx, id)
}

// GetCheck доступен владельцу и персоналу.
func (s *BackgroundCheckService) GetCheck(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.BackgroundCheck, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != actor.ID && !actor.IsStaff() {
		return nil, apperror.ErrForbidden
	}
	return c, nil
}

func (s *BackgroundCheckService) ListMine(ctx context.Context, actor models.Actor, page models.PageRequest) (models.Page[models.BackgroundCheck], error) {
	if actor.ID == uuid.Nil {
		return models.Page[models.BackgroundCheck]{}, apperror.ErrUnauthorized
	}
	userID := actor.ID
	return s.repo.List(ctx, models.CheckFilter{UserID: &userID}, page)
}

func (s *BackgroundCheckService) ListChecks(ctx context.Context, actor models.Actor, status *valueobject.CheckStatus, page models.PageRequest) (models.Page[models.BackgroundCheck], error) {
	if err := requireStaff(actor); err != nil {
		return models.Page[models.BackgroundCheck]{}, err
	}
	return s.repo.List(ctx, models.CheckFilter{Status: status}, page)
}
