// Package httprpc implements the ledger ports over the records service's
// JSON API.
package httprpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"finanzen/internal/core"
	"finanzen/internal/log"
)

// Client talks to the records service. Every call carries the configured
// timeout so a stalled peer cannot wedge the caller.
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

type sumResponse struct {
	Sum string `json:"sum"`
}

type goalResponse struct {
	ID        int64  `json:"id"`
	UserID    string `json:"user_id"`
	AccountID int64  `json:"account_id"`
	Label     string `json:"label"`
	DueDate   string `json:"due_date"`
	Target    string `json:"target"`
	Version   int64  `json:"version"`
}

func (c *Client) SumIncome(ctx context.Context, accountID int64, p core.Period) (decimal.Decimal, error) {
	return c.fetchSum(ctx, accountID, "income-sum", p)
}

func (c *Client) SumExpense(ctx context.Context, accountID int64, p core.Period) (decimal.Decimal, error) {
	return c.fetchSum(ctx, accountID, "expense-sum", p)
}

func (c *Client) fetchSum(ctx context.Context, accountID int64, kind string, p core.Period) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("from", p.From.Format(time.DateOnly))
	q.Set("to", p.To.Format(time.DateOnly))
	target := fmt.Sprintf("%s/api/accounts/%d/%s?%s", c.baseURL, accountID, kind, q.Encode())

	var body sumResponse
	if err := c.getJSON(ctx, target, &body); err != nil {
		return decimal.Zero, fmt.Errorf("%s account %d: %w", kind, accountID, err)
	}
	sum, err := decimal.NewFromString(body.Sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s account %d: bad sum %q: %w", kind, accountID, body.Sum, err)
	}
	return sum, nil
}

func (c *Client) ListGoals(ctx context.Context) ([]core.Goal, error) {
	var body []goalResponse
	if err := c.getJSON(ctx, c.baseURL+"/api/goals", &body); err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}

	out := make([]core.Goal, 0, len(body))
	for _, g := range body {
		due, err := time.Parse(time.DateOnly, g.DueDate)
		if err != nil {
			return nil, fmt.Errorf("goal %d: bad due date %q: %w", g.ID, g.DueDate, err)
		}
		target, err := decimal.NewFromString(g.Target)
		if err != nil {
			return nil, fmt.Errorf("goal %d: bad target %q: %w", g.ID, g.Target, err)
		}
		out = append(out, core.Goal{
			Meta: core.Meta{
				ID:        g.ID,
				UserID:    g.UserID,
				AccountID: g.AccountID,
				Version:   g.Version,
			},
			Label:   g.Label,
			DueDate: due,
			Target:  target,
		})
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection refused, timeout, DNS: all worth retrying later.
		return fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		c.logger.WarnContext(ctx, "Remote call failed",
			log.FieldStatus, resp.StatusCode,
			log.FieldPath, req.URL.Path)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError maps a response status onto the shared error taxonomy.
func statusError(status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusNotFound:
		return core.ErrNotFound
	case status == http.StatusBadRequest:
		return core.ErrBadRequest
	case status == http.StatusConflict:
		return core.ErrConflict
	case status >= 500:
		return fmt.Errorf("%w: status %d", core.ErrTransient, status)
	default:
		return fmt.Errorf("unexpected status %d", status)
	}
}
