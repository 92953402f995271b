package settlement

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/refund"
	"github.com/stripe/stripe-go/v72/transfer"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/domain/valueobject"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/logger"
)

// StripeGateway выполняет возвраты через Refunds API и выплаты продавцу через Transfers API.
type StripeGateway struct {
	refunds   refund.Client
	transfers transfer.Client
	log       *logrus.Entry
}

// NewStripeGateway создаёт шлюз. backend nil означает стандартный API Stripe.
func NewStripeGateway(secretKey string, backend stripe.Backend) *StripeGateway {
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &StripeGateway{
		refunds:   refund.Client{B: backend, Key: secretKey},
		transfers: transfer.Client{B: backend, Key: secretKey},
		log:       logger.Component("stripe"),
	}
}

func (g *StripeGateway) Settle(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}

	var res Result
	if req.Payout.BuyerRefund.IsPositive() {
		ref, err := g.refund(ctx, req.PaymentIntentID, req.Payout.BuyerRefund.String(), valueobject.ToCents(req.Payout.BuyerRefund), req.IdempotencyKey+":refund", req.TransactionID.String())
		if err != nil {
			return Result{}, err
		}
		res.RefundRef = ref
	}

	if req.Payout.SellerPayout.IsPositive() {
		params := &stripe.TransferParams{
			Amount:        stripe.Int64(valueobject.ToCents(req.Payout.SellerPayout)),
			Currency:      stripe.String(strings.ToLower(req.Currency)),
			Destination:   stripe.String(req.SellerAccount),
			TransferGroup: stripe.String(req.TransactionID.String()),
		}
		params.Context = ctx
		params.SetIdempotencyKey(req.IdempotencyKey + ":transfer")
		params.AddMetadata("transaction_id", req.TransactionID.String())
		params.AddMetadata("resolution", string(req.Resolution))

		tr, err := g.transfers.New(params)
		if err != nil {
			// Возврат уже выполнен; повтор с тем же ключом не создаст второй.
			return Result{}, fmt.Errorf("stripe transfer: %w", err)
		}
		res.TransferRef = tr.ID
	}

	res.Reference = joinRefs(res.RefundRef, res.TransferRef)
	g.log.WithFields(logrus.Fields{
		"transaction_id": req.TransactionID,
		"resolution":     req.Resolution,
		"reference":      res.Reference,
	}).Info("Расчёт выполнен")
	return res, nil
}

func (g *StripeGateway) ProcessRefund(ctx context.Context, in RefundInstruction) (string, error) {
	if err := in.validate(); err != nil {
		return "", err
	}
	return g.refund(ctx, in.PaymentIntentID, in.Amount.String(), valueobject.ToCents(in.Amount), in.IdempotencyKey, in.RefundRequestID.String())
}

func (g *StripeGateway) refund(ctx context.Context, paymentIntentID, amount string, cents int64, idempotencyKey, subject string) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(cents),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)
	params.AddMetadata("subject", subject)

	r, err := g.refunds.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe refund %s: %w", amount, err)
	}
	return r.ID, nil
}

func joinRefs(refs ...string) string {
	var out []string
	for _, r := range refs {
		if r != "" {
			out = append(out, r)
		}
	}
	return strings.Join(out, ",")
}
