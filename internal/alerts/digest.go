package alerts

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/northbridge/tenderops/internal/models"
)

// DigestFlusher batches queued alerts into one summary message per
// (user, channel) and sends it when the user's digest schedule comes due.
type DigestFlusher struct {
	store      Store
	transports map[string]Transport
	cfg        Config
	now        func() time.Time
}

func NewDigestFlusher(store Store, transports map[string]Transport, cfg Config) *DigestFlusher {
	return &DigestFlusher{store: store, transports: transports, cfg: cfg, now: time.Now}
}

type digestBatch struct {
	userID  string
	channel string
	entries []models.DigestEntry
}

// Flush sends every due digest batch. Entries are deleted only after a
// successful send, so a failed delivery is retried on the next flush.
// Returns the number of digests sent.
func (f *DigestFlusher) Flush(ctx context.Context) (int, error) {
	pending, err := f.store.PendingDigests(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	batches := map[string]*digestBatch{}
	var keys []string
	for _, e := range pending {
		key := e.UserID + "\x00" + e.Channel
		b, ok := batches[key]
		if !ok {
			b = &digestBatch{userID: e.UserID, channel: e.Channel}
			batches[key] = b
			keys = append(keys, key)
		}
		b.entries = append(b.entries, e)
	}
	sort.Strings(keys)

	now := f.now()
	sent := 0
	for _, key := range keys {
		b := batches[key]

		pref, err := f.store.GetPreference(ctx, b.userID)
		if err != nil {
			log.Printf("digest: load preference for %s: %v", b.userID, err)
			continue
		}
		if !digestDue(pref, oldestEnqueued(b.entries), now) {
			continue
		}

		transport, ok := f.transports[b.channel]
		if !ok {
			log.Printf("digest: no transport for channel %s", b.channel)
			continue
		}

		title, message := renderDigest(b.entries)
		sendCtx, cancel := context.WithTimeout(ctx, f.cfg.DeliveryTimeout())
		err = transport.Send(sendCtx, Delivery{
			Channel:   b.channel,
			Recipient: b.userID,
			Address:   channelAddress(pref, b.channel),
			Title:     title,
			Message:   message,
			Priority:  highestPriority(b.entries),
		})
		cancel()
		if err != nil {
			log.Printf("digest delivery to %s on %s: %v", b.userID, b.channel, err)
			continue
		}

		ids := make([]uuid.UUID, len(b.entries))
		for i, e := range b.entries {
			ids[i] = e.ID
		}
		if err := f.store.DeleteDigestEntries(ctx, ids); err != nil {
			log.Printf("digest: clear queue for %s on %s: %v", b.userID, b.channel, err)
		}
		if err := f.store.LogDelivery(ctx, b.userID, b.channel, uuid.Nil, now); err != nil {
			log.Printf("digest: log delivery for %s on %s: %v", b.userID, b.channel, err)
		}
		sent++
	}
	return sent, nil
}

// digestDue decides whether a batch should flush now. Hourly digests flush
// once the oldest entry has waited an hour; daily digests flush at the user's
// configured time, covering everything enqueued before it.
func digestDue(pref *models.UserAlertPreference, oldest, now time.Time) bool {
	switch pref.DigestFrequency {
	case "hourly":
		return now.Sub(oldest) >= time.Hour
	case "daily":
		mins, ok := parseClock(pref.DigestTime)
		if !ok {
			mins = 8 * 60
		}
		cutoff := time.Date(now.Year(), now.Month(), now.Day(), mins/60, mins%60, 0, 0, now.Location())
		return !now.Before(cutoff) && oldest.Before(cutoff)
	}
	return now.Sub(oldest) >= time.Hour
}

func oldestEnqueued(entries []models.DigestEntry) time.Time {
	oldest := entries[0].EnqueuedAt
	for _, e := range entries[1:] {
		if e.EnqueuedAt.Before(oldest) {
			oldest = e.EnqueuedAt
		}
	}
	return oldest
}

func highestPriority(entries []models.DigestEntry) string {
	top := entries[0].Priority
	for _, e := range entries[1:] {
		if models.PriorityRank(e.Priority) > models.PriorityRank(top) {
			top = e.Priority
		}
	}
	return top
}

func renderDigest(entries []models.DigestEntry) (title, message string) {
	title = fmt.Sprintf("Alert digest: %d alert(s)", len(entries))

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "- [%s] %s (%s)\n", e.Priority, e.Title, e.EnqueuedAt.Format("15:04"))
	}
	return title, b.String()
}
