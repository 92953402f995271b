package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
)

// CreateTransactionRequest represents the request to open an escrow transaction
type CreateTransactionRequest struct {
	ListingID           uuid.UUID       `json:"listing_id" binding:"required"`
	BuyerID             uuid.UUID       `json:"buyer_id" binding:"required"`
	SellerID            uuid.UUID       `json:"seller_id" binding:"required"`
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency" binding:"omitempty,len=3"`
	SellerPayoutAccount *string         `json:"seller_payout_account"`
	MeetingLocation     *string         `json:"meeting_location" binding:"omitempty,max=500"`
	MeetingScheduledAt  *time.Time      `json:"meeting_scheduled_at"`
}

// FundTransactionRequest represents the payment confirmation from the payment flow
type FundTransactionRequest struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
}

// UpdateMeetingRequest represents the meeting details update
type UpdateMeetingRequest struct {
	Location    *string    `json:"location" binding:"omitempty,max=500"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// OpenDisputeRequest represents the request to open a dispute
type OpenDisputeRequest struct {
	Reason string `json:"reason" binding:"required,max=2000"`
}

// ResolveDisputeRequest represents the staff decision on a dispute
type ResolveDisputeRequest struct {
	Resolution   string           `json:"resolution" binding:"required"`
	Notes        string           `json:"notes" binding:"required,max=5000"`
	RefundAmount *decimal.Decimal `json:"refund_amount"`
}

// ForceRefundRequest represents the admin refund outside of a dispute
type ForceRefundRequest struct {
	Notes string `json:"notes" binding:"required,max=5000"`
}

// CreateRefundRequest represents the request to queue a refund
type CreateRefundRequest struct {
	RequesterID  *uuid.UUID      `json:"requester_id"`
	Reason       string          `json:"reason" binding:"required,max=2000"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	RefundType   string          `json:"refund_type" binding:"required"`
}

// ProcessRefundRequest represents the admin decision on a refund request
type ProcessRefundRequest struct {
	Approve    *bool   `json:"approve" binding:"required"`
	AdminNotes *string `json:"admin_notes" binding:"omitempty,max=5000"`
}

// MarkRefundProcessedRequest represents the processor reference of an executed refund
type MarkRefundProcessedRequest struct {
	ProcessorRef string `json:"processor_ref" binding:"required"`
}

// RecordFraudEventRequest represents a fraud signal from the detection pipeline
type RecordFraudEventRequest struct {
	UserID          *uuid.UUID          `json:"user_id"`
	TransactionID   *uuid.UUID          `json:"transaction_id"`
	DetectionMethod string              `json:"detection_method" binding:"required"`
	RiskScore       *float64            `json:"risk_score" binding:"required"`
	Details         models.FraudDetails `json:"details"`
}

// ReviewFraudEventRequest represents the admin review of a fraud event
type ReviewFraudEventRequest struct {
	Status      string  `json:"status" binding:"required"`
	ReviewNotes *string `json:"review_notes" binding:"omitempty,max=5000"`
}

// RequestBackgroundCheckRequest represents the request to start a background check
type RequestBackgroundCheckRequest struct {
	CheckType string     `json:"check_type" binding:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// UpdateBackgroundCheckRequest represents the admin status change of a background check
type UpdateBackgroundCheckRequest struct {
	Status            string  `json:"status" binding:"required"`
	Notes             *string `json:"notes" binding:"omitempty,max=5000"`
	ProviderReference *string `json:"provider_reference" binding:"omitempty,max=255"`
}
