package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/events"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/pkg/apperror"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/validation"
)

// Notifier доставляет уведомления по WebSocket: участнику сделки или всей ленте персонала.
type Notifier interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
	BroadcastToStaff(event string, data any) error
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func requireRole(actor models.Actor, roles ...string) error {
	if actor.ID == uuid.Nil {
		return apperror.ErrUnauthorized
	}
	if !actor.HasAnyRole(roles...) {
		return apperror.ErrForbidden
	}
	return nil
}

func requireStaff(actor models.Actor) error {
	return requireRole(actor, models.RoleAdmin, models.RoleMediator)
}

func requireAdmin(actor models.Actor) error {
	return requireRole(actor, models.RoleAdmin)
}

func requireText(field, value string, max int) (string, error) {
	v, err := validation.RequiredText(field, value, max)
	if err != nil {
		return "", invalid(err)
	}
	return v, nil
}

// optionalText возвращает nil для пустой строки.
func optionalText(field string, value *string, max int) (*string, error) {
	v, err := validation.OptionalText(field, value, max)
	if err != nil {
		return nil, invalid(err)
	}
	return v, nil
}

func invalid(err error) error {
	return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
}

// publish отправляет событие после фиксации изменений. Ошибка шины не откатывает операцию.
func publish(ctx context.Context, log *logrus.Entry, p events.Publisher, e events.Event) {
	if err := p.Publish(ctx, e); err != nil {
		log.WithFields(logrus.Fields{
			"event": e.Type,
			"key":   e.Key,
			"error": err,
		}).Warn("Не удалось опубликовать событие")
	}
}

func notify(log *logrus.Entry, n Notifier, event string, data any, userIDs ...uuid.UUID) {
	for _, id := range userIDs {
		if err := n.BroadcastToUser(id, event, data); err != nil {
			log.WithFields(logrus.Fields{
				"event":   event,
				"user_id": id,
				"error":   err,
			}).Warn("Не удалось отправить уведомление")
		}
	}
}

func notifyStaff(log *logrus.Entry, n Notifier, event string, data any) {
	if err := n.BroadcastToStaff(event, data); err != nil {
		log.WithFields(logrus.Fields{
			"event": event,
			"error": err,
		}).Warn("Не удалось уведомить персонал")
	}
}
