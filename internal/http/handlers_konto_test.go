package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finanzen/internal/core"
	ledgermem "finanzen/internal/ledger/memory"
	"finanzen/internal/log"
	"finanzen/internal/services"
	"finanzen/internal/storage"
)

func newKontoFixture(t *testing.T) (*httptest.Server, *ledgermem.Ledger) {
	t.Helper()
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})

	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "konto.db"))
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ldg := ledgermem.NewLedger()
	aggregator := services.NewBalanceAggregator(repo, ldg, time.Second, logger)
	srv := NewKontoServer(":0", repo, aggregator, logger)

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts, ldg
}

func TestKontoAccountLifecycle(t *testing.T) {
	ts, ldg := newKontoFixture(t)

	resp, data := doJSON(t, http.MethodPost, ts.URL+"/api/accounts", map[string]any{
		"user_id": "user-1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create account status = %d, body = %s", resp.StatusCode, data)
	}
	var acct struct {
		ID                 int64  `json:"id"`
		Balance            string `json:"balance"`
		BalanceRefreshedAt string `json:"balance_refreshed_at"`
	}
	if err := json.Unmarshal(data, &acct); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if acct.Balance != "0.00" {
		t.Errorf("fresh balance = %q, want 0.00", acct.Balance)
	}
	if acct.BalanceRefreshedAt != "" {
		t.Errorf("fresh refresh timestamp = %q, want empty", acct.BalanceRefreshedAt)
	}

	// Cached read before any recompute serves the zero balance.
	resp, data = doJSON(t, http.MethodGet, ts.URL+"/api/accounts/1/balance", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cached balance status = %d", resp.StatusCode)
	}
	var balance struct {
		Balance     string `json:"balance"`
		RefreshedAt string `json:"refreshed_at"`
	}
	if err := json.Unmarshal(data, &balance); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if balance.Balance != "0.00" || balance.RefreshedAt != "" {
		t.Errorf("cached balance = %+v", balance)
	}

	ldg.SetSums(1, decimal.RequireFromString("3000"), decimal.RequireFromString("1875.50"))

	resp, data = doJSON(t, http.MethodPost, ts.URL+"/api/accounts/1/balance/recompute", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("recompute status = %d, body = %s", resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, &balance); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if balance.Balance != "1124.50" {
		t.Errorf("recomputed balance = %q, want 1124.50", balance.Balance)
	}
	if balance.RefreshedAt == "" {
		t.Error("recompute response missing refresh timestamp")
	}

	// The cache now serves the recomputed value.
	resp, data = doJSON(t, http.MethodGet, ts.URL+"/api/accounts/1/balance", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cached balance status = %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, &balance); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if balance.Balance != "1124.50" || balance.RefreshedAt == "" {
		t.Errorf("cached balance after recompute = %+v", balance)
	}
}

func TestKontoErrorMapping(t *testing.T) {
	ts, ldg := newKontoFixture(t)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/accounts/42", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing account status = %d, want 404", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/accounts", map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing user status = %d, want 400", resp.StatusCode)
	}

	// A ledger outage during recompute maps to 503 and leaves the cache
	// untouched.
	resp, data := doJSON(t, http.MethodPost, ts.URL+"/api/accounts", map[string]any{"user_id": "user-1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create account status = %d, body = %s", resp.StatusCode, data)
	}
	ldg.Err = core.ErrTransient

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/accounts/1/balance/recompute", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("recompute during outage status = %d, want 503", resp.StatusCode)
	}

	resp, data = doJSON(t, http.MethodGet, ts.URL+"/api/accounts/1/balance", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cached balance status = %d", resp.StatusCode)
	}
	var balance struct {
		Balance     string `json:"balance"`
		RefreshedAt string `json:"refreshed_at"`
	}
	if err := json.Unmarshal(data, &balance); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if balance.Balance != "0.00" || balance.RefreshedAt != "" {
		t.Errorf("cache changed after failed recompute: %+v", balance)
	}
}
