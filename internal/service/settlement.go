package service

import (
	"context"

	"github.com/GoPolymarket/guardgate/internal/model"
	"github.com/GoPolymarket/guardgate/internal/pkg/logger"
)

// Settler hands an accepted fill to the settlement pipeline. The receipt's
// outcome carries the SettlementIntent.
type Settler interface {
	Settle(ctx context.Context, receipt *model.FillReceipt) error
}

// LogSettler only records the intent. It is the default when no pipeline is wired.
type LogSettler struct{}

func (LogSettler) Settle(ctx context.Context, receipt *model.FillReceipt) error {
	intent := receipt.Outcome.Settlement
	if intent == nil {
		return nil
	}
	logger.Info("settlement intent",
		"offer_id", receipt.Offer.ID,
		"receipt_id", receipt.ReceiptID,
		"maker_debit", intent.MakerDebit,
		"maker_credit", intent.MakerCredit,
		"taker_debit", intent.TakerDebit,
		"taker_credit", intent.TakerCredit,
		"asset", intent.Asset,
		"currency", intent.Currency,
	)
	return nil
}
