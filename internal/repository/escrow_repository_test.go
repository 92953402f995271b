package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/domain/valueobject"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/pkg/apperror"
)

func TestEscrowRepository_CreateAndGet(t *testing.T) {
	repo := NewEscrowRepository(setupDB(t))
	ctx := context.Background()

	created := insertTransaction(t, repo, valueobject.EscrowStatusPendingPayment, baseTime)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.BuyerID, got.BuyerID)
	assert.True(t, created.Amount.Equal(got.Amount))
	assert.True(t, got.CommissionAmount.Add(got.SellerAmount).Equal(got.Amount))
	assert.Equal(t, valueobject.EscrowStatusPendingPayment, got.Status)
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, baseTime.Equal(got.CreatedAt))
	assert.Nil(t, got.DisputeResolvedAt)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrTransactionNotFound)
}

func TestEscrowRepository_UpdateStatusCAS(t *testing.T) {
	repo := NewEscrowRepository(setupDB(t))
	ctx := context.Background()
	tx := insertTransaction(t, repo, valueobject.EscrowStatusPendingPayment, baseTime)
	intent := "pi_123"

	err := repo.UpdateStatus(ctx, EscrowStatusUpdate{
		ID:              tx.ID,
		ExpectedVersion: 1,
		From:            valueobject.EscrowStatusPendingPayment,
		To:              valueobject.EscrowStatusFundsHeld,
		PaymentIntentID: &intent,
		At:              baseTime.Add(time.Minute),
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.EscrowStatusFundsHeld, got.Status)
	assert.Equal(t, int64(2), got.Version)
	require.NotNil(t, got.PaymentIntentID)
	assert.Equal(t, intent, *got.PaymentIntentID)

	// Устаревшая версия
	err = repo.UpdateStatus(ctx, EscrowStatusUpdate{
		ID:              tx.ID,
		ExpectedVersion: 1,
		From:            valueobject.EscrowStatusFundsHeld,
		To:              valueobject.EscrowStatusBuyerConfirmed,
		At:              baseTime.Add(2 * time.Minute),
	})
	assert.ErrorIs(t, err, apperror.ErrConcurrentModification)
}

func TestEscrowRepository_ListByParticipantPaginates(t *testing.T) {
	repo := NewEscrowRepository(setupDB(t))
	ctx := context.Background()
	buyer := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		tx := newTransaction(valueobject.EscrowStatusFundsHeld, baseTime.Add(time.Duration(i)*time.Second))
		tx.BuyerID = buyer
		require.NoError(t, repo.Create(ctx, tx))
		ids = append(ids, tx.ID)
	}
	insertTransaction(t, repo, valueobject.EscrowStatusFundsHeld, baseTime.Add(10*time.Second))

	first, err := repo.ListByParticipant(ctx, buyer, models.PageRequest{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, ids[4], first.Items[0].ID)
	assert.Equal(t, ids[3], first.Items[1].ID)
	require.NotEmpty(t, first.NextCursor)

	second, err := repo.ListByParticipant(ctx, buyer, models.PageRequest{Cursor: first.NextCursor, Limit: 2})
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	assert.Equal(t, ids[2], second.Items[0].ID)

	third, err := repo.ListByParticipant(ctx, buyer, models.PageRequest{Cursor: second.NextCursor, Limit: 2})
	require.NoError(t, err)
	require.Len(t, third.Items, 1)
	assert.Equal(t, ids[0], third.Items[0].ID)
	assert.Empty(t, third.NextCursor)
}

func TestEscrowRepository_ListByStatus(t *testing.T) {
	repo := NewEscrowRepository(setupDB(t))
	ctx := context.Background()
	insertTransaction(t, repo, valueobject.EscrowStatusFundsHeld, baseTime)
	disputed := insertTransaction(t, repo, valueobject.EscrowStatusDisputed, baseTime.Add(time.Second))

	status := valueobject.EscrowStatusDisputed
	page, err := repo.List(ctx, models.EscrowFilter{Status: &status}, models.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, disputed.ID, page.Items[0].ID)

	_, err = repo.List(ctx, models.EscrowFilter{}, models.PageRequest{Cursor: "%%%"})
	assert.True(t, apperror.IsValidation(err))
}

func TestEscrowRepository_ClaimAndFinalize(t *testing.T) {
	repo := NewEscrowRepository(setupDB(t))
	ctx := context.Background()
	tx := insertTransaction(t, repo, valueobject.EscrowStatusDisputed, baseTime)
	mediator := uuid.New()
	other := uuid.New()
	now := baseTime.Add(time.Hour)
	ttl := 5 * time.Minute

	require.NoError(t, repo.Claim(ctx, tx.ID, 1, mediator, now, now.Add(-ttl)))

	// Другой сотрудник не может захватить живую отметку
	err := repo.Claim(ctx, tx.ID, 2, other, now.Add(time.Second), now.Add(time.Second-ttl))
	assert.ErrorIs(t, err, apperror.ErrConcurrentModification)

	// Финализация чужим сотрудником отклоняется
	resolution := valueobject.ResolutionPartialRefund
	notes := "вернуть часть"
	resolvedAt := now.Add(2 * time.Second)
	update := SettlementUpdate{
		From:              valueobject.EscrowStatusDisputed,
		Status:            valueobject.EscrowStatusResolved,
		Resolution:        &resolution,
		Notes:             &notes,
		SettlementRef:     "re_1",
		RefundedDelta:     decimal.NewFromInt(40),
		DisputeResolvedAt: &resolvedAt,
		At:                resolvedAt,
	}
	assert.ErrorIs(t, repo.FinalizeSettlement(ctx, tx.ID, other, update), apperror.ErrConcurrentModification)

	require.NoError(t, repo.FinalizeSettlement(ctx, tx.ID, mediator, update))

	got, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.EscrowStatusResolved, got.Status)
	assert.True(t, decimal.NewFromInt(40).Equal(got.RefundedAmount))
	require.NotNil(t, got.DisputeResolvedAt)
	assert.True(t, resolvedAt.Equal(*got.DisputeResolvedAt))
	assert.Nil(t, got.ResolvingBy)
	assert.Nil(t, got.LockedAt)
	assert.Equal(t, int64(3), got.Version)
}

func TestEscrowRepository_LiveClaimBlocksStatusUpdate(t *testing.T) {
	repo := NewEscrowRepository(setupDB(t))
	ctx := context.Background()
	tx := insertTransaction(t, repo, valueobject.EscrowStatusFundsHeld, baseTime)
	ttl := 5 * time.Minute

	claimedAt := baseTime.Add(time.Hour)
	require.NoError(t, repo.Claim(ctx, tx.ID, 1, uuid.New(), claimedAt, claimedAt.Add(-ttl)))

	confirmedAt := claimedAt.Add(time.Minute)
	update := EscrowStatusUpdate{
		ID:               tx.ID,
		ExpectedVersion:  2,
		From:             valueobject.EscrowStatusFundsHeld,
		To:               valueobject.EscrowStatusBuyerConfirmed,
		BuyerConfirmedAt: &confirmedAt,
		At:               confirmedAt,
		StaleBefore:      confirmedAt.Add(-ttl),
	}
	assert.ErrorIs(t, repo.UpdateStatus(ctx, update), apperror.ErrConcurrentModification)

	got, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.EscrowStatusFundsHeld, got.Status)
	assert.Nil(t, got.BuyerConfirmedAt)

	// Брошенный захват переход не блокирует
	later := claimedAt.Add(time.Hour)
	update.At = later
	update.StaleBefore = later.Add(-ttl)
	require.NoError(t, repo.UpdateStatus(ctx, update))

	got, err = repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.EscrowStatusBuyerConfirmed, got.Status)
}

func TestEscrowRepository_FinalizeRejectsChangedStatus(t *testing.T) {
	repo := NewEscrowRepository(setupDB(t))
	ctx := context.Background()
	tx := insertTransaction(t, repo, valueobject.EscrowStatusDisputed, baseTime)
	admin := uuid.New()
	now := baseTime.Add(time.Hour)

	require.NoError(t, repo.Claim(ctx, tx.ID, 1, admin, now, now.Add(-5*time.Minute)))

	err := repo.FinalizeSettlement(ctx, tx.ID, admin, SettlementUpdate{
		From:          valueobject.EscrowStatusFundsHeld,
		Status:        valueobject.EscrowStatusRefunded,
		SettlementRef: "re_1",
		RefundedDelta: tx.Amount,
		At:            now.Add(time.Second),
	})
	assert.ErrorIs(t, err, apperror.ErrConcurrentModification)

	got, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.EscrowStatusDisputed, got.Status)
	assert.True(t, got.RefundedAmount.IsZero())
	require.NotNil(t, got.ResolvingBy)
	assert.Equal(t, admin, *got.ResolvingBy)
}

func TestEscrowRepository_StaleClaimCanBeTaken(t *testing.T) {
	repo := NewEscrowRepository(setupDB(t))
	ctx := context.Background()
	tx := insertTransaction(t, repo, valueobject.EscrowStatusDisputed, baseTime)
	first := uuid.New()
	second := uuid.New()
	ttl := 5 * time.Minute

	require.NoError(t, repo.Claim(ctx, tx.ID, 1, first, baseTime, baseTime.Add(-ttl)))

	later := baseTime.Add(10 * time.Minute)
	require.NoError(t, repo.Claim(ctx, tx.ID, 2, second, later, later.Add(-ttl)))

	got, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ResolvingBy)
	assert.Equal(t, second, *got.ResolvingBy)
}

func TestEscrowRepository_ReleaseClaim(t *testing.T) {
	repo := NewEscrowRepository(setupDB(t))
	ctx := context.Background()
	tx := insertTransaction(t, repo, valueobject.EscrowStatusDisputed, baseTime)
	mediator := uuid.New()

	require.NoError(t, repo.Claim(ctx, tx.ID, 1, mediator, baseTime, baseTime.Add(-time.Minute)))
	require.NoError(t, repo.ReleaseClaim(ctx, tx.ID, mediator, baseTime.Add(time.Second)))

	got, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ResolvingBy)
	assert.Equal(t, valueobject.EscrowStatusDisputed, got.Status)
}
