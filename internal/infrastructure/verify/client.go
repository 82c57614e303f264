package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Status is the provider's verdict on a submitted code.
type Status string

const (
	StatusApproved Status = "approved"
	StatusPending  Status = "pending"
)

// Provider is the external OTP delivery service. Phone OTP generation and
// expiry live entirely on the provider side; this client only carries the
// round-trips.
type Provider interface {
	SendOTP(ctx context.Context, destination, channel string) (string, error)
	CheckOTP(ctx context.Context, destination, code string) (Status, error)
	SendMessage(ctx context.Context, destination, body string) (string, error)
}

// Client is a REST client for the delivery provider's verification API.
// Every call is bounded by the configured timeout so a slow provider cannot
// hold a request open, and outbound calls share a rate limiter protecting the
// provider-side quota.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

func NewClient(baseURL, apiKey string, timeout time.Duration, maxRPS int) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(maxRPS), maxRPS),
		timeout: timeout,
	}
}

type verificationResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (c *Client) SendOTP(ctx context.Context, destination, channel string) (string, error) {
	resp, err := c.post(ctx, "/v1/verifications", map[string]string{
		"to":      destination,
		"channel": channel,
	})
	if err != nil {
		return "", err
	}
	return resp.SID, nil
}

func (c *Client) CheckOTP(ctx context.Context, destination, code string) (Status, error) {
	resp, err := c.post(ctx, "/v1/verifications/check", map[string]string{
		"to":   destination,
		"code": code,
	})
	if err != nil {
		return "", err
	}
	return Status(resp.Status), nil
}

func (c *Client) SendMessage(ctx context.Context, destination, body string) (string, error) {
	resp, err := c.post(ctx, "/v1/messages", map[string]string{
		"to":   destination,
		"body": body,
	})
	if err != nil {
		return "", err
	}
	return resp.SID, nil
}

func (c *Client) post(ctx context.Context, path string, payload map[string]string) (*verificationResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("provider rate limit wait: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request: %w", err)
	}
	defer res.Body.Close()

	var out verificationResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("provider response decode: %w", err)
	}
	if res.StatusCode >= 400 {
		// Provider error codes ("resource not found" etc.) stay internal; the
		// engine logs them and returns a taxonomy-mapped message.
		return nil, fmt.Errorf("provider error %d (%s): %s", res.StatusCode, out.Code, out.Message)
	}
	return &out, nil
}
