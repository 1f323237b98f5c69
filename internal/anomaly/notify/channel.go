package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Channel delivers rendered notification content.
type Channel interface {
	Send(ctx context.Context, content string) error
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// WebhookChannel posts text payloads to a chat-style webhook.
type WebhookChannel struct {
	url    string
	client *http.Client
}

// WebhookOption configures a WebhookChannel.
type WebhookOption func(*WebhookChannel)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) WebhookOption {
	return func(c *WebhookChannel) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(c *WebhookChannel) {
		if client != nil {
			c.client = client
		}
	}
}

// NewWebhookChannel constructs a webhook channel.
func NewWebhookChannel(url string, opts ...WebhookOption) (*WebhookChannel, error) {
	if url == "" {
		return nil, errors.New("webhook channel: empty url")
	}
	c := &WebhookChannel{url: url, client: &http.Client{Timeout: 10 * time.Second}}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Send posts content as a text message.
func (c *WebhookChannel) Send(ctx context.Context, content string) error {
	body, err := json.Marshal(webhookPayload{MsgType: "text", Text: webhookText{Content: content}})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook channel: status %d", resp.StatusCode)
	}
	return nil
}
