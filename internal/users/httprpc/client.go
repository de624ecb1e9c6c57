// Package httprpc implements the users directory over the user service's
// JSON API.
package httprpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"finanzen/internal/core"
	"finanzen/internal/log"
	"finanzen/internal/users"
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

func (c *Client) FindByID(ctx context.Context, userID string) (users.User, error) {
	target := c.baseURL + "/api/users/" + url.PathEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return users.User{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return users.User{}, fmt.Errorf("find user %s: %w: %v", userID, core.ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return users.User{}, fmt.Errorf("user %s: %w", userID, core.ErrNotFound)
	case resp.StatusCode >= 500:
		c.logger.WarnContext(ctx, "User lookup failed",
			log.FieldUserID, userID,
			log.FieldStatus, resp.StatusCode)
		return users.User{}, fmt.Errorf("user %s: %w: status %d", userID, core.ErrTransient, resp.StatusCode)
	default:
		return users.User{}, fmt.Errorf("user %s: unexpected status %d", userID, resp.StatusCode)
	}

	var u users.User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return users.User{}, fmt.Errorf("decode user: %w", err)
	}
	return u, nil
}
