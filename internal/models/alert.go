package models

import (
	"time"

	"github.com/google/uuid"
)

// Delivery channels.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelSlack = "slack"
	ChannelPush  = "push"
	ChannelInApp = "in_app"
)

// Rule types.
const (
	RuleValueThreshold    = "value_threshold"
	RuleClosingSoon       = "closing_soon"
	RuleAgencyMatch       = "agency_match"
	RuleRenewalPrediction = "renewal_prediction"
)

// Alert subject types.
const (
	SubjectTender  = "tender"
	SubjectRenewal = "renewal"
)

// RuleConditions is the structured condition payload. Which fields apply is
// fixed by the rule type; the rest stay nil. Decoded once at the storage
// boundary, never re-parsed in business logic.
type RuleConditions struct {
	MinValue          *float64 `json:"min_value,omitempty"`           // value_threshold
	DaysUntilClose    *int     `json:"days_until_close,omitempty"`    // closing_soon
	Agencies          []string `json:"agencies,omitempty"`            // agency_match
	MonthsUntilExpiry *int     `json:"months_until_expiry,omitempty"` // renewal_prediction
	MinProbability    *float64 `json:"min_probability,omitempty"`     // renewal_prediction
}

// AlertRule is a named condition that, when matched, produces an alert.
type AlertRule struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	RuleType   string         `json:"rule_type"`
	Conditions RuleConditions `json:"conditions"`
	Priority   string         `json:"priority"`

	Channels   []string            `json:"notification_channels"`
	Recipients map[string][]string `json:"recipients"` // channel -> user ids

	EscalationEnabled      bool     `json:"escalation_enabled"`
	EscalationAfterMinutes int      `json:"escalation_after_minutes"`
	EscalationRecipients   []string `json:"escalation_recipients"`

	DigestEnabled   bool   `json:"digest_enabled"`
	DigestFrequency string `json:"digest_frequency"` // hourly, daily
	DigestTime      string `json:"digest_time"`      // "08:00"

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApplyDefaults centralizes the optional-field fallbacks for rules.
func (r *AlertRule) ApplyDefaults() {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	if len(r.Channels) == 0 {
		r.Channels = []string{ChannelInApp}
	}
	if r.EscalationAfterMinutes <= 0 {
		r.EscalationAfterMinutes = 60
	}
	if r.DigestFrequency == "" {
		r.DigestFrequency = "daily"
	}
	if r.DigestTime == "" {
		r.DigestTime = "08:00"
	}
}

// AlertHistory is one row per triggered alert. Immutable once created except
// for acknowledgement, resolution and the escalation flag.
type AlertHistory struct {
	ID       uuid.UUID `json:"id"`
	RuleID   uuid.UUID `json:"rule_id"`
	RuleName string    `json:"rule_name"`

	SubjectType string    `json:"subject_type"` // tender, renewal
	SubjectID   uuid.UUID `json:"subject_id"`

	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority string `json:"priority"`

	ChannelsAttempted []string          `json:"channels_attempted"`
	DeliveredChannels []string          `json:"delivered_channels"`
	DeliveryErrors    map[string]string `json:"delivery_errors"`
	Delivered         bool              `json:"delivered"`

	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by"`
	AcknowledgedAt *time.Time `json:"acknowledged_at"`

	ActionTaken     string     `json:"action_taken"`
	ResolutionNotes string     `json:"resolution_notes"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	Satisfaction    *int       `json:"satisfaction"` // optional 1-5 rating given on resolution

	Escalated   bool       `json:"escalated"`
	EscalatedAt *time.Time `json:"escalated_at"`

	TriggeredAt time.Time `json:"triggered_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserAlertPreference is per-user delivery configuration. Lazily created on
// first read with safe defaults.
type UserAlertPreference struct {
	UserID string `json:"user_id"`

	EmailEnabled bool   `json:"email_enabled"`
	EmailAddress string `json:"email_address"`
	SMSEnabled   bool   `json:"sms_enabled"`
	PhoneNumber  string `json:"phone_number"`
	SlackEnabled bool   `json:"slack_enabled"`
	SlackUserID  string `json:"slack_user_id"`
	PushEnabled  bool   `json:"push_enabled"`
	PushToken    string `json:"push_token"`
	InAppEnabled bool   `json:"in_app_enabled"`

	QuietHoursEnabled bool   `json:"quiet_hours_enabled"`
	QuietHoursStart   string `json:"quiet_hours_start"` // "22:00"
	QuietHoursEnd     string `json:"quiet_hours_end"`   // "07:00"

	DNDEnabled bool       `json:"dnd_enabled"`
	DNDUntil   *time.Time `json:"dnd_until"`

	MinPriority string `json:"min_priority"`

	DigestEnabled   bool   `json:"digest_enabled"`
	DigestFrequency string `json:"digest_frequency"` // hourly, daily
	DigestTime      string `json:"digest_time"`      // "08:00"

	MaxPerHour int `json:"max_per_hour"` // 0 = unlimited
	MaxPerDay  int `json:"max_per_day"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultPreferences are the safe defaults used on lazy creation:
// email, Slack and in-app on; SMS off.
func DefaultPreferences(userID string) *UserAlertPreference {
	return &UserAlertPreference{
		UserID:          userID,
		EmailEnabled:    true,
		SlackEnabled:    true,
		InAppEnabled:    true,
		SMSEnabled:      false,
		MinPriority:     PriorityLow,
		DigestFrequency: "daily",
		DigestTime:      "08:00",
		MaxPerHour:      20,
		MaxPerDay:       100,
	}
}

// ChannelEnabled reports whether the user opted into the given channel.
func (p *UserAlertPreference) ChannelEnabled(channel string) bool {
	switch channel {
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelSMS:
		return p.SMSEnabled
	case ChannelSlack:
		return p.SlackEnabled
	case ChannelPush:
		return p.PushEnabled
	case ChannelInApp:
		return p.InAppEnabled
	}
	return false
}

// DigestEntry is one alert queued for a recipient's digest batch.
type DigestEntry struct {
	ID         uuid.UUID `json:"id"`
	UserID     string    `json:"user_id"`
	Channel    string    `json:"channel"`
	AlertID    uuid.UUID `json:"alert_id"`
	Title      string    `json:"title"`
	Priority   string    `json:"priority"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
