package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/silicalab/internal/config"
)

// Client posts short lab notifications to a webhook.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Message is the JSON body posted to the webhook.
type Message struct {
	Event    string `json:"event"`
	Text     string `json:"text"`
	ReportID int64  `json:"report_id,omitempty"`
}

// WebhookClient is a resty-backed implementation of Client.
type WebhookClient struct {
	httpClient *resty.Client
	url        string
}

// NewClient builds a webhook client from configuration.
func NewClient(cfg config.NotifyConfig) *WebhookClient {
	restyClient := resty.New().
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second)
	if cfg.Token != "" {
		restyClient.SetAuthToken(cfg.Token)
	}

	return &WebhookClient{
		httpClient: restyClient,
		url:        cfg.WebhookURL,
	}
}

// apiError is the optional error body returned by the webhook receiver.
type apiError struct {
	Error string `json:"error"`
}

// Send posts the message and fails on any non-2xx response.
func (c *WebhookClient) Send(ctx context.Context, msg Message) error {
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(msg).
		SetError(apiErr).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("notification webhook error: code=%d, message=%s", resp.StatusCode(), apiErr.Error)
	}

	return nil
}
