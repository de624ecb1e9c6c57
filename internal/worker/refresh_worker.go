// Package worker processes balance refresh messages on the account service.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"finanzen/internal/amqp"
	"finanzen/internal/core"
	"finanzen/internal/log"
)

// Recomputer is the slice of the balance aggregator the worker needs.
type Recomputer interface {
	RecomputeBalance(ctx context.Context, accountID int64, p core.Period) (decimal.Decimal, error)
}

// RefreshWorker recomputes an account's cached balance when a refresh
// message arrives. Recomputing is idempotent, so at-least-once delivery and
// duplicates are safe.
type RefreshWorker struct {
	aggregator Recomputer
	logger     *log.Logger
}

func NewRefreshWorker(aggregator Recomputer, logger *log.Logger) *RefreshWorker {
	return &RefreshWorker{
		aggregator: aggregator,
		logger:     logger.WithComponent(log.ComponentWorker),
	}
}

// HandleRefreshMessage processes one refresh request. A terminal failure
// (unknown account, bad input) drops the message; returning an error would
// only requeue something that can never succeed. Transient failures and
// version conflicts return the error so the delivery is requeued.
func (w *RefreshWorker) HandleRefreshMessage(ctx context.Context, msg *amqp.BalanceRefreshMessage) error {
	period := core.CurrentMonth(time.Now().UTC())

	balance, err := w.aggregator.RecomputeBalance(ctx, msg.AccountID, period)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrBadRequest) {
			w.logger.WarnContext(ctx, "Dropping refresh message",
				log.FieldAccountID, msg.AccountID,
				"reason", msg.Reason,
				log.FieldError, err.Error())
			return nil
		}
		return fmt.Errorf("refresh account %d: %w", msg.AccountID, err)
	}

	w.logger.InfoContext(ctx, "Refreshed account balance",
		log.FieldAccountID, msg.AccountID,
		log.FieldBalance, balance.String(),
		"reason", msg.Reason)
	return nil
}
