package settlement

import (
	"context"
	"fmt"

	nanoid "github.com/jaevor/go-nanoid"
	"github.com/sirupsen/logrus"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/logger"
)

// DryRunGateway используется в разработке без ключа Stripe: ничего не переводит и логирует инструкции.
type DryRunGateway struct {
	newID func() string
	log   *logrus.Entry
}

func NewDryRunGateway() (*DryRunGateway, error) {
	gen, err := nanoid.Standard(16)
	if err != nil {
		return nil, fmt.Errorf("dry run gateway: %w", err)
	}
	return &DryRunGateway{newID: gen, log: logger.Component("settlement-dry-run")}, nil
}

func (g *DryRunGateway) Settle(_ context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	res := Result{}
	if req.Payout.BuyerRefund.IsPositive() {
		res.RefundRef = "dry_re_" + g.newID()
	}
	if req.Payout.SellerPayout.IsPositive() {
		res.TransferRef = "dry_tr_" + g.newID()
	}
	res.Reference = joinRefs(res.RefundRef, res.TransferRef)

	g.log.WithFields(logrus.Fields{
		"transaction_id":  req.TransactionID,
		"resolution":      req.Resolution,
		"buyer_refund":    req.Payout.BuyerRefund.String(),
		"seller_payout":   req.Payout.SellerPayout.String(),
		"commission":      req.Payout.Commission.String(),
		"idempotency_key": req.IdempotencyKey,
		"reference":       res.Reference,
	}).Warn("Пробный расчёт, деньги не переводились")
	return res, nil
}

func (g *DryRunGateway) ProcessRefund(_ context.Context, in RefundInstruction) (string, error) {
	if err := in.validate(); err != nil {
		return "", err
	}
	ref := "dry_re_" + g.newID()
	g.log.WithFields(logrus.Fields{
		"refund_request_id": in.RefundRequestID,
		"amount":            in.Amount.String(),
		"idempotency_key":   in.IdempotencyKey,
		"reference":         ref,
	}).Warn("Пробный возврат, деньги не переводились")
	return ref, nil
}
