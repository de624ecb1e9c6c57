// Package httprpc implements the konto ports over the account service's
// JSON API.
package httprpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"finanzen/internal/core"
	"finanzen/internal/log"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *log.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.WithComponent(log.ComponentRPC),
	}
}

type accountResponse struct {
	ID                 int64  `json:"id"`
	UserID             string `json:"user_id"`
	Balance            string `json:"balance"`
	BalanceRefreshedAt string `json:"balance_refreshed_at,omitempty"`
	Version            int64  `json:"version"`
}

func (c *Client) FindAccount(ctx context.Context, accountID int64) (core.Account, error) {
	target := fmt.Sprintf("%s/api/accounts/%d", c.baseURL, accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return core.Account{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.Account{}, fmt.Errorf("find account %d: %w: %v", accountID, core.ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return core.Account{}, fmt.Errorf("account %d: %w", accountID, core.ErrNotFound)
	case resp.StatusCode >= 500:
		c.logger.WarnContext(ctx, "Account lookup failed",
			log.FieldAccountID, accountID,
			log.FieldStatus, resp.StatusCode)
		return core.Account{}, fmt.Errorf("account %d: %w: status %d", accountID, core.ErrTransient, resp.StatusCode)
	default:
		return core.Account{}, fmt.Errorf("account %d: unexpected status %d", accountID, resp.StatusCode)
	}

	var body accountResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return core.Account{}, fmt.Errorf("decode account: %w", err)
	}
	balance, err := decimal.NewFromString(body.Balance)
	if err != nil {
		return core.Account{}, fmt.Errorf("account %d: bad balance %q: %w", accountID, body.Balance, err)
	}
	acct := core.Account{
		ID:      body.ID,
		UserID:  body.UserID,
		Balance: balance,
		Version: body.Version,
	}
	if body.BalanceRefreshedAt != "" {
		refreshed, err := time.Parse(time.RFC3339, body.BalanceRefreshedAt)
		if err != nil {
			return core.Account{}, fmt.Errorf("account %d: bad refresh time %q: %w", accountID, body.BalanceRefreshedAt, err)
		}
		acct.BalanceRefreshedAt = refreshed
	}
	return acct, nil
}
