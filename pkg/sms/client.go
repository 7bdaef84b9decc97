// Package sms sends text messages through the marketplace's SMS gateway.
// Dispatch is fire-and-forget from the pipeline's point of view: the
// gateway queues the message and reports acceptance, not delivery.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.semaphore.co/api/v4"

// Client sends SMS messages.
type Client interface {
	Send(ctx context.Context, number, message string) error
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default gateway base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) { c.baseURL = url }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	apiKey  string
	sender  string
	baseURL string
	http    *http.Client
}

// NewClient creates an SMS gateway client. sender is the registered
// sender name shown to recipients.
func NewClient(apiKey, sender string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		sender:  sender,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sendRequest struct {
	APIKey     string `json:"apikey"`
	Number     string `json:"number"`
	Message    string `json:"message"`
	SenderName string `json:"sendername,omitempty"`
}

// Send posts one message to one phone-number-shaped recipient.
func (c *httpClient) Send(ctx context.Context, number, message string) error {
	payload, err := json.Marshal(sendRequest{
		APIKey:     c.apiKey,
		Number:     number,
		Message:    message,
		SenderName: c.sender,
	})
	if err != nil {
		return eris.Wrap(err, "sms: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "sms: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "sms: send")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return eris.Errorf("sms: gateway returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
