package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/northbridge/tenderops/internal/models"
)

func newTestDispatcher(store *fakeStore, transports map[string]Transport) *Dispatcher {
	return &Dispatcher{store: store, transports: transports, cfg: testConfig(), now: time.Now}
}

func seedAlert(store *fakeStore, priority string) *models.AlertHistory {
	h := &models.AlertHistory{
		ID:          uuid.New(),
		RuleID:      uuid.New(),
		Title:       "Tender closing in 1 day(s): Catering",
		Message:     "Catering closes tomorrow",
		Priority:    priority,
		TriggeredAt: time.Now(),
	}
	store.history[h.ID] = h
	return h
}

func TestDispatch_CreatesDefaultPreferencesOnce(t *testing.T) {
	store := newFakeStore()
	email := &fakeTransport{}
	d := newTestDispatcher(store, map[string]Transport{models.ChannelEmail: email})

	rule := models.AlertRule{
		Channels:   []string{models.ChannelEmail},
		Recipients: map[string][]string{models.ChannelEmail: {"u1"}},
	}

	for i := 0; i < 2; i++ {
		alert := seedAlert(store, models.PriorityMedium)
		if err := d.Dispatch(context.Background(), rule, alert); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
	}

	if store.prefSaves != 1 {
		t.Fatalf("preference saves = %d, want 1 (lazy creation on first touch only)", store.prefSaves)
	}
	if email.count() != 2 {
		t.Fatalf("email sends = %d, want 2", email.count())
	}
}

func TestDispatch_DigestEnqueuesInsteadOfSending(t *testing.T) {
	store := newFakeStore()
	email := &fakeTransport{}
	d := newTestDispatcher(store, map[string]Transport{models.ChannelEmail: email})

	pref := models.DefaultPreferences("u1")
	pref.DigestEnabled = true
	store.prefs["u1"] = pref

	rule := models.AlertRule{
		Channels:   []string{models.ChannelEmail},
		Recipients: map[string][]string{models.ChannelEmail: {"u1"}},
	}
	alert := seedAlert(store, models.PriorityMedium)

	if err := d.Dispatch(context.Background(), rule, alert); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if email.count() != 0 {
		t.Fatalf("email sends = %d, want 0 when digest is enabled", email.count())
	}
	if len(store.digests) != 1 {
		t.Fatalf("digest queue length = %d, want 1", len(store.digests))
	}
	stored := store.history[alert.ID]
	if stored.Delivered {
		t.Fatal("digest-queued alert marked delivered")
	}
}

func TestDispatch_OneChannelFailingDoesNotBlockOthers(t *testing.T) {
	store := newFakeStore()
	email := &fakeTransport{fail: true}
	slack := &fakeTransport{}
	d := newTestDispatcher(store, map[string]Transport{
		models.ChannelEmail: email,
		models.ChannelSlack: slack,
	})

	rule := models.AlertRule{
		Channels: []string{models.ChannelEmail, models.ChannelSlack},
		Recipients: map[string][]string{
			models.ChannelEmail: {"u1"},
			models.ChannelSlack: {"u1"},
		},
	}
	alert := seedAlert(store, models.PriorityHigh)

	if err := d.Dispatch(context.Background(), rule, alert); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	stored := store.history[alert.ID]
	if !stored.Delivered {
		t.Fatal("alert not marked delivered despite slack succeeding")
	}
	if len(stored.DeliveredChannels) != 1 || stored.DeliveredChannels[0] != models.ChannelSlack {
		t.Fatalf("delivered channels = %v, want [slack]", stored.DeliveredChannels)
	}
	if len(stored.ChannelsAttempted) != 2 {
		t.Fatalf("attempted channels = %v, want both", stored.ChannelsAttempted)
	}
	if _, ok := stored.DeliveryErrors[models.ChannelEmail]; !ok {
		t.Fatalf("delivery errors = %v, want an email entry", stored.DeliveryErrors)
	}
	if slack.count() != 1 {
		t.Fatalf("slack sends = %d, want 1", slack.count())
	}
}

func TestDispatch_SuppressedRecipientNotSent(t *testing.T) {
	store := newFakeStore()
	email := &fakeTransport{}
	d := newTestDispatcher(store, map[string]Transport{models.ChannelEmail: email})

	pref := models.DefaultPreferences("u1")
	pref.MinPriority = models.PriorityHigh
	store.prefs["u1"] = pref

	rule := models.AlertRule{
		Channels:   []string{models.ChannelEmail},
		Recipients: map[string][]string{models.ChannelEmail: {"u1"}},
	}
	alert := seedAlert(store, models.PriorityLow)

	if err := d.Dispatch(context.Background(), rule, alert); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if email.count() != 0 {
		t.Fatalf("email sends = %d, want 0 for suppressed recipient", email.count())
	}
	if store.history[alert.ID].Delivered {
		t.Fatal("suppressed alert marked delivered")
	}
}

func TestDispatch_RateCapSuppressesAfterLimit(t *testing.T) {
	store := newFakeStore()
	email := &fakeTransport{}
	d := newTestDispatcher(store, map[string]Transport{models.ChannelEmail: email})

	pref := models.DefaultPreferences("u1")
	pref.MaxPerHour = 2
	store.prefs["u1"] = pref

	rule := models.AlertRule{
		Channels:   []string{models.ChannelEmail},
		Recipients: map[string][]string{models.ChannelEmail: {"u1"}},
	}

	for i := 0; i < 4; i++ {
		alert := seedAlert(store, models.PriorityMedium)
		if err := d.Dispatch(context.Background(), rule, alert); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
	}

	if email.count() != 2 {
		t.Fatalf("email sends = %d, want 2 (hourly cap)", email.count())
	}
}
