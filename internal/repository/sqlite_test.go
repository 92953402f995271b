package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/domain/valueobject"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
)

// Схема повторяет миграцию Postgres; суммы хранятся текстом, чтобы не терять точность.
const sqliteSchema = `
CREATE TABLE escrow_transactions (
    id TEXT PRIMARY KEY,
    listing_id TEXT NOT NULL,
    buyer_id TEXT NOT NULL,
    seller_id TEXT NOT NULL,
    amount TEXT NOT NULL,
    currency TEXT NOT NULL,
    commission_rate TEXT NOT NULL,
    commission_amount TEXT NOT NULL,
    seller_amount TEXT NOT NULL,
    refunded_amount TEXT NOT NULL DEFAULT '0',
    status TEXT NOT NULL,
    payment_intent_id TEXT,
    seller_payout_account TEXT,
    buyer_confirmed_at TIMESTAMP,
    seller_confirmed_at TIMESTAMP,
    dispute_reason TEXT,
    dispute_created_at TIMESTAMP,
    dispute_resolved_at TIMESTAMP,
    resolution TEXT,
    resolution_notes TEXT,
    settlement_ref TEXT,
    meeting_location TEXT,
    meeting_scheduled_at TIMESTAMP,
    resolving_by TEXT,
    locked_at TIMESTAMP,
    version INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE disputes (
    id TEXT PRIMARY KEY,
    case_number TEXT NOT NULL UNIQUE,
    transaction_id TEXT NOT NULL,
    opened_by TEXT NOT NULL,
    reason TEXT NOT NULL,
    status TEXT NOT NULL,
    resolution TEXT,
    resolution_notes TEXT,
    refund_amount TEXT,
    resolved_by TEXT,
    settlement_ref TEXT,
    evidence TEXT NOT NULL DEFAULT '[]',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    resolved_at TIMESTAMP
);

CREATE UNIQUE INDEX uniq_active_dispute_per_transaction
    ON disputes (transaction_id) WHERE status IN ('open', 'mediation');

CREATE TABLE refund_requests (
    id TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL,
    requester_id TEXT NOT NULL,
    reason TEXT NOT NULL,
    refund_amount TEXT NOT NULL,
    refund_type TEXT NOT NULL,
    status TEXT NOT NULL,
    admin_notes TEXT,
    processed_by TEXT,
    reviewed_at TIMESTAMP,
    processor_ref TEXT,
    processed_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE fraud_events (
    id TEXT PRIMARY KEY,
    user_id TEXT,
    transaction_id TEXT,
    detection_method TEXT NOT NULL,
    risk_score REAL NOT NULL,
    details TEXT NOT NULL DEFAULT '{}',
    status TEXT NOT NULL,
    reviewed_by TEXT,
    review_notes TEXT,
    reviewed_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE background_checks (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    check_type TEXT NOT NULL,
    status TEXT NOT NULL,
    provider_reference TEXT,
    notes TEXT,
    reviewed_by TEXT,
    expires_at TIMESTAMP,
    completed_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

func setupDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Каждое соединение к :memory: получает свою базу.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)
	return db
}

// baseTime фиксированная точка отсчёта; записи создаются с шагом в секунду.
var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTransaction(status valueobject.EscrowStatus, createdAt time.Time) *models.EscrowTransaction {
	amount := decimal.NewFromInt(100)
	rate := decimal.RequireFromString("0.05")
	commission, seller := valueobject.SplitCommission(amount, rate)
	return &models.EscrowTransaction{
		ID:               uuid.New(),
		ListingID:        uuid.New(),
		BuyerID:          uuid.New(),
		SellerID:         uuid.New(),
		Amount:           amount,
		Currency:         "usd",
		CommissionRate:   rate,
		CommissionAmount: commission,
		SellerAmount:     seller,
		RefundedAmount:   decimal.Zero,
		Status:           status,
		Version:          1,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
}

func insertTransaction(t *testing.T, repo *EscrowRepository, status valueobject.EscrowStatus, createdAt time.Time) *models.EscrowTransaction {
	t.Helper()
	tx := newTransaction(status, createdAt)
	require.NoError(t, repo.Create(context.Background(), tx))
	return tx
}
