package flow

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
)

// SessionStatus is the resolved outcome of one dispense attempt.
type SessionStatus string

const (
	StatusSucceeded         SessionStatus = "succeeded"
	StatusInsufficientFunds SessionStatus = "insufficient_funds"
	StatusFailed            SessionStatus = "failed"
)

// Session is the typed result of one balance-checked dispense request. All
// monetary figures come from the server response; the locally computable
// liters × price is advisory only and never stored here.
type Session struct {
	MachineID       string
	Location        string
	RequestedLiters float64

	Status SessionStatus

	AmountCents        int64
	BalanceBeforeCents int64
	BalanceAfterCents  int64 // only meaningful when Status == StatusSucceeded
	FlowRateLpm        float64
	TxID               string

	// RequiredAdditionalCents is the exact shortfall when Status ==
	// StatusInsufficientFunds, so a top-up flow can be pre-filled.
	RequiredAdditionalCents int64

	// Message carries the server-provided error text for StatusFailed.
	Message string
}

// DispenseConfig mirrors GET /api/dispense/config.
type DispenseConfig struct {
	PricePerLiterCents int64     `json:"pricePerLiterCents"`
	AllowedLiters      []float64 `json:"allowedLiters"`
}

// Client talks to the billing/dispense API on behalf of a signed-in user.
type Client struct {
	httpClient *http.Client
	baseURL    string
	auth       Authenticator
}

// NewClient creates a dispense client for the given API base URL.
func NewClient(baseURL string, auth Authenticator, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		auth:       auth,
	}
}

type dispenseSuccessBody struct {
	AmountCents      int64   `json:"amountCents"`
	NewBalanceCents  int64   `json:"newBalanceCents"`
	PrevBalanceCents int64   `json:"prevBalanceCents"`
	FlowRateLpm      float64 `json:"flowRateLpm"`
	TxID             string  `json:"txId"`
}

type dispenseErrorBody struct {
	Error        string `json:"error"`
	AmountCents  int64  `json:"amountCents"`
	BalanceCents int64  `json:"balanceCents"`
}

// Dispense sends exactly one dispense request. It never retries: the
// request is not idempotent without an Idempotency-Key, and this client
// deliberately does not send one. Expected failures come back as a Session
// with a non-succeeded status; only invalid input or a missing token return
// an error.
func (c *Client) Dispense(ctx context.Context, machineID, location string, liters float64) (*Session, error) {
	if machineID == "" {
		return nil, errors.New("machineID is required")
	}
	if liters <= 0 {
		return nil, fmt.Errorf("liters must be positive, got %v", liters)
	}

	token, err := c.auth.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain auth token: %w", err)
	}

	session := &Session{
		MachineID:       machineID,
		Location:        location,
		RequestedLiters: liters,
	}

	payload, err := json.Marshal(map[string]any{
		"liters":    liters,
		"machineId": machineID,
		"location":  location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dispense request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/dispense", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport failure after a POST: the server may or may not have
		// charged. Surface as failed, never retry blindly.
		session.Status = StatusFailed
		session.Message = err.Error()
		return session, nil
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		session.Status = StatusFailed
		session.Message = err.Error()
		return session, nil
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var body dispenseSuccessBody
		if err := json.Unmarshal(data, &body); err != nil {
			session.Status = StatusFailed
			session.Message = fmt.Sprintf("malformed success response: %v", err)
			return session, nil
		}
		session.Status = StatusSucceeded
		session.AmountCents = body.AmountCents
		session.BalanceBeforeCents = body.PrevBalanceCents
		session.BalanceAfterCents = body.NewBalanceCents
		session.FlowRateLpm = body.FlowRateLpm
		session.TxID = body.TxID
		return session, nil
	}

	var errBody dispenseErrorBody
	if err := json.Unmarshal(data, &errBody); err == nil &&
		resp.StatusCode == http.StatusBadRequest && errBody.Error == "INSUFFICIENT_FUNDS" {
		session.Status = StatusInsufficientFunds
		session.AmountCents = errBody.AmountCents
		session.BalanceBeforeCents = errBody.BalanceCents
		session.RequiredAdditionalCents = errBody.AmountCents - errBody.BalanceCents
		return session, nil
	}

	session.Status = StatusFailed
	if errBody.Error != "" {
		session.Message = errBody.Error
	} else {
		session.Message = fmt.Sprintf("dispense failed with status %d", resp.StatusCode)
	}
	return session, nil
}

// WalletBalance fetches the user's current balance in cents.
func (c *Client) WalletBalance(ctx context.Context) (int64, error) {
	token, err := c.auth.Token(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to obtain auth token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/me/wallet", nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("wallet request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("wallet request returned status %d", resp.StatusCode)
	}

	var body struct {
		BalanceCents int64 `json:"balanceCents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode wallet response: %w", err)
	}
	return body.BalanceCents, nil
}

// Config fetches the dispense pricing and allowed quantities.
func (c *Client) Config(ctx context.Context) (*DispenseConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/dispense/config", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("config request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("config request returned status %d", resp.StatusCode)
	}

	var cfg DispenseConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config response: %w", err)
	}
	return &cfg, nil
}
