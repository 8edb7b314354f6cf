package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/northbridge/tenderops/internal/models"
)

// Delivery is one outbound message to one recipient on one channel.
type Delivery struct {
	Channel   string    `json:"channel"`
	Recipient string    `json:"recipient"`
	Address   string    `json:"address"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Priority  string    `json:"priority"`
	AlertID   uuid.UUID `json:"alert_id"`
}

// Transport delivers one message over one channel. Implementations must
// respect ctx cancellation; a timed-out send is a failed send.
type Transport interface {
	Send(ctx context.Context, d Delivery) error
}

// NewTransports builds the channel transport map. Outbound channels post JSON
// to gateway endpoints configured via env vars; in-app delivery is the ledger
// row itself surfacing in the history feed, so its transport is a no-op
// success.
func NewTransports(timeout time.Duration) map[string]Transport {
	client := &http.Client{Timeout: timeout}
	return map[string]Transport{
		models.ChannelEmail: newWebhookTransport(models.ChannelEmail, os.Getenv("EMAIL_GATEWAY_URL"), client),
		models.ChannelSMS:   newWebhookTransport(models.ChannelSMS, os.Getenv("SMS_GATEWAY_URL"), client),
		models.ChannelSlack: newWebhookTransport(models.ChannelSlack, os.Getenv("SLACK_WEBHOOK_URL"), client),
		models.ChannelPush:  newWebhookTransport(models.ChannelPush, os.Getenv("PUSH_GATEWAY_URL"), client),
		models.ChannelInApp: inAppTransport{},
	}
}

type webhookTransport struct {
	channel string
	url     string
	client  *http.Client
}

func newWebhookTransport(channel, url string, client *http.Client) *webhookTransport {
	return &webhookTransport{channel: channel, url: url, client: client}
}

func (t *webhookTransport) Send(ctx context.Context, d Delivery) error {
	if t.url == "" {
		return fmt.Errorf("%s gateway not configured", t.channel)
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", t.channel, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", t.channel, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s delivery: %w", t.channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s gateway returned %d", t.channel, resp.StatusCode)
	}
	return nil
}

type inAppTransport struct{}

func (inAppTransport) Send(_ context.Context, d Delivery) error {
	log.Printf("in-app alert %s for %s: %s", d.AlertID, d.Recipient, d.Title)
	return nil
}
