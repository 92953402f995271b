package valueobject

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/pkg/apperror"
)

func TestEscrowStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to EscrowStatus
		allowed  bool
	}{
		{EscrowStatusPendingPayment, EscrowStatusFundsHeld, true},
		{EscrowStatusPendingPayment, EscrowStatusReleased, false},
		{EscrowStatusFundsHeld, EscrowStatusDisputed, true},
		{EscrowStatusFundsHeld, EscrowStatusReleased, false},
		{EscrowStatusBuyerConfirmed, EscrowStatusReleased, true},
		{EscrowStatusSellerConfirmed, EscrowStatusDisputed, true},
		{EscrowStatusDisputed, EscrowStatusRefunded, true},
		{EscrowStatusDisputed, EscrowStatusResolved, true},
		{EscrowStatusDisputed, EscrowStatusFundsHeld, false},
		{EscrowStatusResolved, EscrowStatusDisputed, false},
		{EscrowStatusRefunded, EscrowStatusDisputed, false},
		{EscrowStatusReleased, EscrowStatusDisputed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestEscrowStatus_TerminalStatusesCannotReopenDispute(t *testing.T) {
	for _, s := range []EscrowStatus{EscrowStatusResolved, EscrowStatusRefunded, EscrowStatusReleased} {
		assert.True(t, s.IsTerminal(), s)
		assert.False(t, s.CanOpenDispute(), s)
	}
	assert.False(t, EscrowStatusDisputed.IsTerminal())
	assert.True(t, EscrowStatusFundsHeld.CanOpenDispute())
	assert.False(t, EscrowStatusPendingPayment.CanOpenDispute())
}

func TestEscrowStatus_TransitionTo(t *testing.T) {
	next, err := EscrowStatusFundsHeld.TransitionTo(EscrowStatusBuyerConfirmed)
	require.NoError(t, err)
	assert.Equal(t, EscrowStatusBuyerConfirmed, next)

	_, err = EscrowStatusReleased.TransitionTo(EscrowStatusRefunded)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrInvalidTransition))
	assert.True(t, apperror.IsConflict(err))
}

func TestNewEscrowStatus_Invalid(t *testing.T) {
	_, err := NewEscrowStatus("lost")
	assert.True(t, apperror.IsValidation(err))
}

func TestResolution_TargetStatus(t *testing.T) {
	tests := []struct {
		resolution Resolution
		want       EscrowStatus
		final      bool
	}{
		{ResolutionRefundBuyer, EscrowStatusRefunded, true},
		{ResolutionPartialRefund, EscrowStatusResolved, true},
		{ResolutionReleaseSeller, EscrowStatusReleased, true},
		{ResolutionMediation, "", false},
	}

	for _, tt := range tests {
		got, ok := tt.resolution.TargetEscrowStatus()
		assert.Equal(t, tt.final, ok, tt.resolution)
		assert.Equal(t, tt.want, got, tt.resolution)
		assert.Equal(t, tt.final, tt.resolution.IsFinal(), tt.resolution)
		if ok {
			assert.True(t, EscrowStatusDisputed.CanTransitionTo(got))
		}
	}

	_, err := NewResolution("split")
	assert.True(t, apperror.IsValidation(err))
}

func TestDisputeStatus(t *testing.T) {
	assert.True(t, DisputeStatusOpen.IsActive())
	assert.True(t, DisputeStatusMediation.IsActive())
	assert.False(t, DisputeStatusResolved.IsActive())
	assert.True(t, DisputeStatusOpen.CanTransitionTo(DisputeStatusMediation))
	assert.True(t, DisputeStatusMediation.CanTransitionTo(DisputeStatusResolved))
	assert.False(t, DisputeStatusResolved.CanTransitionTo(DisputeStatusOpen))
}

func TestRefundStatus_Transitions(t *testing.T) {
	assert.True(t, RefundStatusPending.CanTransitionTo(RefundStatusApproved))
	assert.True(t, RefundStatusPending.CanTransitionTo(RefundStatusRejected))
	assert.True(t, RefundStatusApproved.CanTransitionTo(RefundStatusProcessed))
	assert.False(t, RefundStatusPending.CanTransitionTo(RefundStatusProcessed))
	assert.False(t, RefundStatusRejected.CanTransitionTo(RefundStatusProcessed))
	assert.False(t, RefundStatusProcessed.CanTransitionTo(RefundStatusApproved))
	assert.True(t, RefundStatusProcessed.IsTerminal())
	assert.True(t, RefundStatusRejected.IsTerminal())

	_, err := RefundStatusRejected.TransitionTo(RefundStatusApproved)
	assert.True(t, errors.Is(err, apperror.ErrInvalidTransition))
}

func TestRefundType(t *testing.T) {
	assert.True(t, RefundTypeFraud.RequiresStaff())
	assert.True(t, RefundTypeAdminApproved.RequiresStaff())
	assert.False(t, RefundTypeBuyerInitiated.RequiresStaff())

	_, err := NewRefundType("chargeback")
	assert.True(t, apperror.IsValidation(err))
}

func TestFraudStatus_Transitions(t *testing.T) {
	assert.True(t, FraudStatusPending.CanTransitionTo(FraudStatusConfirmed))
	assert.True(t, FraudStatusPending.CanTransitionTo(FraudStatusFalsePositive))
	assert.True(t, FraudStatusPending.CanTransitionTo(FraudStatusResolved))
	assert.True(t, FraudStatusConfirmed.CanTransitionTo(FraudStatusResolved))
	assert.False(t, FraudStatusFalsePositive.CanTransitionTo(FraudStatusConfirmed))
	assert.False(t, FraudStatusResolved.CanTransitionTo(FraudStatusPending))
}

func TestCheckStatus_Transitions(t *testing.T) {
	assert.True(t, CheckStatusPending.CanTransitionTo(CheckStatusCompleted))
	assert.True(t, CheckStatusPending.CanTransitionTo(CheckStatusFailed))
	assert.True(t, CheckStatusPending.CanTransitionTo(CheckStatusInProgress))
	assert.True(t, CheckStatusInProgress.CanTransitionTo(CheckStatusExpired))
	assert.False(t, CheckStatusCompleted.CanTransitionTo(CheckStatusFailed))
	assert.False(t, CheckStatusInProgress.CanTransitionTo(CheckStatusPending))
	assert.True(t, CheckStatusExpired.IsTerminal())
}
