package alerts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/northbridge/tenderops/internal/models"
)

// Dispatcher turns a matched (rule, alert) pair into one delivery per enabled
// channel, honoring per-user preferences. Delivery is best-effort per channel:
// one channel failing never blocks another.
type Dispatcher struct {
	store      Store
	transports map[string]Transport
	cfg        Config
	now        func() time.Time
}

func NewDispatcher(store Store, transports map[string]Transport, cfg Config) *Dispatcher {
	return &Dispatcher{store: store, transports: transports, cfg: cfg, now: time.Now}
}

// Dispatch delivers the alert to the rule's recipient map and records the
// per-channel outcome on the ledger row. The row is marked delivered when at
// least one channel succeeded.
func (d *Dispatcher) Dispatch(ctx context.Context, rule models.AlertRule, alert *models.AlertHistory) error {
	attempted, delivered, deliveryErrors := d.deliver(ctx, rule.Channels, rule.Recipients, alert)

	alert.ChannelsAttempted = attempted
	alert.DeliveredChannels = delivered
	alert.DeliveryErrors = deliveryErrors
	alert.Delivered = len(delivered) > 0

	return d.store.UpdateDelivery(ctx, alert.ID, attempted, delivered, deliveryErrors, alert.Delivered)
}

// DispatchEscalation re-delivers an alert to the escalation recipients over
// the rule's channels, with the same suppression logic. Escalation outcomes
// are not written back to the (otherwise immutable) ledger row; the escalated
// flag is owned by the escalator.
func (d *Dispatcher) DispatchEscalation(ctx context.Context, rule models.AlertRule, alert *models.AlertHistory) {
	recipients := make(map[string][]string, len(rule.Channels))
	for _, channel := range rule.Channels {
		recipients[channel] = rule.EscalationRecipients
	}
	d.deliver(ctx, rule.Channels, recipients, alert)
}

// deliver fans out across channels concurrently; deliveries are independent
// and duplicate delivery is tolerable, so no cross-channel coordination is
// needed beyond collecting results.
func (d *Dispatcher) deliver(ctx context.Context, channels []string, recipients map[string][]string, alert *models.AlertHistory) (attempted, delivered []string, deliveryErrors map[string]string) {
	attempted = []string{}
	delivered = []string{}
	deliveryErrors = map[string]string{}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, channel := range channels {
		transport, ok := d.transports[channel]
		if !ok {
			deliveryErrors[channel] = "unknown channel"
			continue
		}
		attempted = append(attempted, channel)

		wg.Add(1)
		go func(channel string, transport Transport) {
			defer wg.Done()
			sent, errMsg := d.deliverChannel(ctx, channel, transport, recipients[channel], alert)
			mu.Lock()
			defer mu.Unlock()
			if sent {
				delivered = append(delivered, channel)
			}
			if errMsg != "" {
				deliveryErrors[channel] = errMsg
			}
		}(channel, transport)
	}
	wg.Wait()

	return attempted, delivered, deliveryErrors
}

// deliverChannel sends to every recipient on one channel. Returns whether at
// least one send succeeded and the last error message, if any.
func (d *Dispatcher) deliverChannel(ctx context.Context, channel string, transport Transport, userIDs []string, alert *models.AlertHistory) (sent bool, errMsg string) {
	now := d.now()

	for _, userID := range userIDs {
		pref, err := d.preference(ctx, userID)
		if err != nil {
			errMsg = fmt.Sprintf("load preference for %s: %v", userID, err)
			continue
		}

		hourCount, dayCount, err := d.rateCounts(ctx, pref, channel, now)
		if err != nil {
			errMsg = fmt.Sprintf("rate counts for %s: %v", userID, err)
			continue
		}

		if suppressed, reason := Suppress(pref, channel, alert.Priority, now, hourCount, dayCount); suppressed {
			log.Printf("alert %s suppressed for %s on %s: %s", alert.ID, userID, channel, reason)
			continue
		}

		if pref.DigestEnabled && channel != models.ChannelInApp {
			entry := &models.DigestEntry{
				ID:         uuid.New(),
				UserID:     userID,
				Channel:    channel,
				AlertID:    alert.ID,
				Title:      alert.Title,
				Priority:   alert.Priority,
				EnqueuedAt: now,
			}
			if err := d.store.EnqueueDigest(ctx, entry); err != nil {
				errMsg = fmt.Sprintf("enqueue digest for %s: %v", userID, err)
			}
			continue
		}

		if err := d.send(ctx, transport, channel, pref, alert.Title, alert.Message, alert.Priority, alert.ID); err != nil {
			errMsg = err.Error()
			continue
		}
		sent = true
	}
	return sent, errMsg
}

// send performs one bounded delivery attempt and logs it for rate capping.
func (d *Dispatcher) send(ctx context.Context, transport Transport, channel string, pref *models.UserAlertPreference, title, message, priority string, alertID uuid.UUID) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.DeliveryTimeout())
	defer cancel()

	err := transport.Send(sendCtx, Delivery{
		Channel:   channel,
		Recipient: pref.UserID,
		Address:   channelAddress(pref, channel),
		Title:     title,
		Message:   message,
		Priority:  priority,
		AlertID:   alertID,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s delivery timed out after %s", channel, d.cfg.DeliveryTimeout())
		}
		return err
	}

	if err := d.store.LogDelivery(ctx, pref.UserID, channel, alertID, d.now()); err != nil {
		log.Printf("log delivery for %s on %s: %v", pref.UserID, channel, err)
	}
	return nil
}

// preference loads the user's delivery preferences, lazily creating defaults
// on first touch.
func (d *Dispatcher) preference(ctx context.Context, userID string) (*models.UserAlertPreference, error) {
	pref, err := d.store.GetPreference(ctx, userID)
	if err == nil {
		return pref, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	pref = models.DefaultPreferences(userID)
	if err := d.store.SavePreference(ctx, pref); err != nil {
		return nil, err
	}
	return pref, nil
}

func (d *Dispatcher) rateCounts(ctx context.Context, pref *models.UserAlertPreference, channel string, now time.Time) (hourCount, dayCount int, err error) {
	if pref.MaxPerHour > 0 {
		hourCount, err = d.store.CountDeliveries(ctx, pref.UserID, channel, now.Add(-time.Hour))
		if err != nil {
			return 0, 0, err
		}
	}
	if pref.MaxPerDay > 0 {
		dayCount, err = d.store.CountDeliveries(ctx, pref.UserID, channel, now.Add(-24*time.Hour))
		if err != nil {
			return 0, 0, err
		}
	}
	return hourCount, dayCount, nil
}

func channelAddress(pref *models.UserAlertPreference, channel string) string {
	switch channel {
	case models.ChannelEmail:
		return pref.EmailAddress
	case models.ChannelSMS:
		return pref.PhoneNumber
	case models.ChannelSlack:
		return pref.SlackUserID
	case models.ChannelPush:
		return pref.PushToken
	}
	return pref.UserID
}
