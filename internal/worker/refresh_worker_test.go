package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"finanzen/internal/amqp"
	"finanzen/internal/core"
	"finanzen/internal/log"
)

type fakeRecomputer struct {
	balance decimal.Decimal
	err     error
	calls   int
}

func (f *fakeRecomputer) RecomputeBalance(ctx context.Context, accountID int64, p core.Period) (decimal.Decimal, error) {
	f.calls++
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.balance, nil
}

func TestRefreshWorkerHandleRefreshMessage(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{
			name:    "success",
			err:     nil,
			wantErr: false,
		},
		{
			// A message for an account that no longer exists can never
			// succeed; requeueing it would loop forever.
			name:    "unknown account dropped",
			err:     core.ErrNotFound,
			wantErr: false,
		},
		{
			name:    "bad request dropped",
			err:     core.ErrBadRequest,
			wantErr: false,
		},
		{
			name:    "transient failure requeued",
			err:     core.ErrTransient,
			wantErr: true,
		},
		{
			name:    "version conflict requeued",
			err:     core.ErrConflict,
			wantErr: true,
		},
	}

	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recomputer := &fakeRecomputer{balance: decimal.NewFromInt(100), err: tt.err}
			w := NewRefreshWorker(recomputer, logger)

			msg := amqp.NewBalanceRefreshMessage(1, amqp.ReasonRecordCreated)
			err := w.HandleRefreshMessage(context.Background(), msg)

			if tt.wantErr && err == nil {
				t.Error("HandleRefreshMessage() error = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("HandleRefreshMessage() error = %v, want nil", err)
			}
			if tt.wantErr && !errors.Is(err, tt.err) {
				t.Errorf("HandleRefreshMessage() error = %v, want wrapped %v", err, tt.err)
			}
			if recomputer.calls != 1 {
				t.Errorf("recompute calls = %d, want 1", recomputer.calls)
			}
		})
	}
}
