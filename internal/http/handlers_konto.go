package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"finanzen/internal/core"
	"finanzen/internal/log"
	"finanzen/internal/services"
	"finanzen/internal/storage"
)

// KontoHandlers serves the account API: account lifecycle, the cached
// balance and the on-demand recompute.
type KontoHandlers struct {
	repo       *storage.Repository
	aggregator *services.BalanceAggregator
	logger     *log.Logger
}

func NewKontoServer(addr string, repo *storage.Repository, aggregator *services.BalanceAggregator, logger *log.Logger) *Server {
	h := &KontoHandlers{
		repo:       repo,
		aggregator: aggregator,
		logger:     logger.WithComponent(log.ComponentHTTP),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/accounts", h.handleCreateAccount)
	mux.HandleFunc("GET /api/accounts/{id}", h.handleGetAccount)
	mux.HandleFunc("GET /api/accounts/{id}/balance", h.handleCachedBalance)
	mux.HandleFunc("POST /api/accounts/{id}/balance/recompute", h.handleRecomputeBalance)

	return newServer(addr, mux, logger)
}

type accountRequest struct {
	UserID string `json:"user_id"`
}

type accountResponse struct {
	ID                 int64  `json:"id"`
	UserID             string `json:"user_id"`
	Balance            string `json:"balance"`
	BalanceRefreshedAt string `json:"balance_refreshed_at,omitempty"`
	Version            int64  `json:"version"`
}

func accountBody(a core.Account) accountResponse {
	body := accountResponse{
		ID:      a.ID,
		UserID:  a.UserID,
		Balance: a.Balance.StringFixed(2),
		Version: a.Version,
	}
	if !a.BalanceRefreshedAt.IsZero() {
		body.BalanceRefreshedAt = a.BalanceRefreshedAt.Format(time.RFC3339)
	}
	return body
}

func (h *KontoHandlers) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid body", core.ErrBadRequest))
		return
	}
	if req.UserID == "" {
		writeError(w, core.ErrMissingUser)
		return
	}
	acct, err := h.repo.CreateAccount(r.Context(), req.UserID, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, accountBody(acct))
}

func (h *KontoHandlers) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	acct, err := h.repo.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountBody(acct))
}

type balanceResponse struct {
	Balance     string `json:"balance"`
	RefreshedAt string `json:"refreshed_at,omitempty"`
}

// handleCachedBalance serves the stored value without calling the records
// service. The refresh timestamp lets callers judge staleness.
func (h *KontoHandlers) handleCachedBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	acct, err := h.aggregator.CachedBalance(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	body := balanceResponse{Balance: acct.Balance.StringFixed(2)}
	if !acct.BalanceRefreshedAt.IsZero() {
		body.RefreshedAt = acct.BalanceRefreshedAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *KontoHandlers) handleRecomputeBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	now := time.Now().UTC()
	p, err := queryPeriod(r, now)
	if err != nil {
		writeError(w, err)
		return
	}
	balance, err := h.aggregator.RecomputeBalance(r.Context(), id, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		Balance:     balance.StringFixed(2),
		RefreshedAt: now.Format(time.RFC3339),
	})
}
