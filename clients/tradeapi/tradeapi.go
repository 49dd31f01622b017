// Package tradeapi is the HTTP client for the trade intelligence backend.
package tradeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"tradewatch/config"
)

// User is the authenticated backend identity trades are submitted under.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// TradeSubmission is one observed trade posting bound for the backend.
type TradeSubmission struct {
	TradeHash string
	Nick      string
	TradeType string
	Message   string
	Timestamp time.Time
	Server    string
	UserID    string
}

type submitRequest struct {
	TradeHash string `json:"p_trade_hash"`
	Nick      string `json:"p_nick"`
	TradeType string `json:"p_trade_type"`
	Message   string `json:"p_message"`
	Timestamp string `json:"p_timestamp"`
	Server    string `json:"p_server"`
	UserID    string `json:"p_user_id"`
}

type submitResponse struct {
	Success   bool   `json:"success"`
	Duplicate bool   `json:"duplicate"`
	Error     string `json:"error"`
}

// Client talks to the backend REST surface.
type Client struct {
	logger     *zap.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(logger *zap.Logger, cfg *config.Config) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(cfg.API.BaseURL, "/"),
		apiKey:     cfg.API.APIKey,
	}
}

// SubmitTrade posts one trade record. Duplicates (same dedup hash inside
// the server-side window) are treated as success.
func (c *Client) SubmitTrade(ctx context.Context, sub TradeSubmission) error {
	body, err := json.Marshal(submitRequest{
		TradeHash: sub.TradeHash,
		Nick:      sub.Nick,
		TradeType: sub.TradeType,
		Message:   sub.Message,
		Timestamp: sub.Timestamp.UTC().Format(time.RFC3339),
		Server:    sub.Server,
		UserID:    sub.UserID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal trade submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/rpc/submit_live_trade", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to submit trade: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("trade submission returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result submitResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("failed to parse submit response: %w", err)
	}
	if !result.Success && !result.Duplicate {
		return fmt.Errorf("trade submission rejected: %s", result.Error)
	}
	if result.Duplicate {
		c.logger.Debug("trade already recorded", zap.String("hash", sub.TradeHash))
	}
	return nil
}

// CurrentUser returns the identity behind the configured API key, or nil
// when the backend reports no active session.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user request returned status %d", resp.StatusCode)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}
	if user.ID == "" {
		return nil, nil
	}
	return &user, nil
}

// Ping probes backend reachability for the connectivity monitor.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return errors.New("backend health check failed")
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
