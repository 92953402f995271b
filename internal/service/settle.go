package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/metrics"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/pkg/apperror"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/settlement"
)

// TransactionClaimer операции захвата сделки перед внешним расчётом.
type TransactionClaimer interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error)
	Claim(ctx context.Context, id uuid.UUID, expectedVersion int64, actorID uuid.UUID, now, staleBefore time.Time) error
	ReleaseClaim(ctx context.Context, id, actorID uuid.UUID, now time.Time) error
}

// ProcessedRefunds сумма исполненных запросов на возврат по сделке.
type ProcessedRefunds interface {
	SumProcessed(ctx context.Context, transactionID uuid.UUID) (decimal.Decimal, error)
}

// settleRunner захватывает сделку, вызывает процессор и снимает захват при ошибке.
type settleRunner struct {
	escrows TransactionClaimer
	settler settlement.Settler
	metrics *metrics.Metrics
	ttl     time.Duration
	timeout time.Duration
}

func newSettleRunner(escrows TransactionClaimer, settler settlement.Settler, m *metrics.Metrics, claimTTL time.Duration) settleRunner {
	// Вызов процессора должен завершиться раньше, чем отметка захвата станет устаревшей.
	timeout := claimTTL / 2
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return settleRunner{escrows: escrows, settler: settler, metrics: m, ttl: claimTTL, timeout: timeout}
}

// claim ставит отметку захвата. Проигранная гонка версий даёт ErrConcurrentModification,
// живой захват другим сотрудником даёт ErrDisputeLocked.
func (r settleRunner) claim(ctx context.Context, tx *models.EscrowTransaction, actorID uuid.UUID, now time.Time) error {
	err := r.escrows.Claim(ctx, tx.ID, tx.Version, actorID, now, r.staleBefore(now))
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperror.ErrConcurrentModification) {
		return err
	}

	current, loadErr := r.escrows.GetByID(ctx, tx.ID)
	if loadErr != nil {
		return loadErr
	}
	if holder, ok := current.ClaimedBy(now, r.ttl); ok && holder != actorID {
		r.metrics.RecordConflict("locked")
		return apperror.ErrDisputeLocked
	}
	r.metrics.RecordConflict("version")
	return apperror.ErrConcurrentModification
}

// staleBefore граница, после которой захват считается брошенным.
func (r settleRunner) staleBefore(now time.Time) time.Time {
	return now.Add(-r.ttl)
}

// settle вызывает процессор. Нулевое распределение не отправляется.
// При ошибке захват снимается, локальное состояние не меняется.
func (r settleRunner) settle(ctx context.Context, operation string, req settlement.Request, actorID uuid.UUID, now time.Time) (settlement.Result, error) {
	if req.Payout.Total().IsZero() {
		return settlement.Result{}, nil
	}

	settleCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now()
	res, err := r.settler.Settle(settleCtx, req)
	r.metrics.ObserveSettlement(operation, started, err)
	if err != nil {
		// Захват снимаем даже при отменённом контексте запроса.
		if releaseErr := r.escrows.ReleaseClaim(context.WithoutCancel(ctx), req.TransactionID, actorID, now); releaseErr != nil {
			return settlement.Result{}, releaseErr
		}
		return settlement.Result{}, apperror.Wrap(err, apperror.ErrCodeUpstream, "платёжный процессор не выполнил расчёт")
	}
	return res, nil
}

func (r settleRunner) remaining(ctx context.Context, refunds ProcessedRefunds, tx *models.EscrowTransaction) (decimal.Decimal, error) {
	processed, err := refunds.SumProcessed(ctx, tx.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return tx.Remaining(processed), nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
