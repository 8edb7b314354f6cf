package alerts

import (
	"embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config/alerting.yaml
var configFS embed.FS

// Config holds the engine defaults shipped in config/alerting.yaml.
type Config struct {
	SLATargetMinutes       int `yaml:"sla_target_minutes"`
	DeliveryTimeoutSeconds int `yaml:"delivery_timeout_seconds"`
	EscalationSweepSeconds int `yaml:"escalation_sweep_seconds"`
	DigestFlushSeconds     int `yaml:"digest_flush_seconds"`
	RuleSweepMinutes       int `yaml:"rule_sweep_minutes"`
	SweepDedupHours        int `yaml:"sweep_dedup_hours"`
	ClosingSweepDays       int `yaml:"closing_sweep_days"`
	RenewalSweepMonths     int `yaml:"renewal_sweep_months"`
}

// DefaultConfig is the fallback when the embedded file is unreadable; it
// mirrors the shipped values.
func DefaultConfig() Config {
	return Config{
		SLATargetMinutes:       30,
		DeliveryTimeoutSeconds: 5,
		EscalationSweepSeconds: 60,
		DigestFlushSeconds:     60,
		RuleSweepMinutes:       60,
		SweepDedupHours:        24,
		ClosingSweepDays:       30,
		RenewalSweepMonths:     12,
	}
}

func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	raw, err := configFS.ReadFile("config/alerting.yaml")
	if err != nil {
		return cfg, fmt.Errorf("read alerting config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse alerting config: %w", err)
	}
	return cfg, nil
}

func (c Config) DeliveryTimeout() time.Duration {
	return time.Duration(c.DeliveryTimeoutSeconds) * time.Second
}

func (c Config) SLATarget() time.Duration {
	return time.Duration(c.SLATargetMinutes) * time.Minute
}

func (c Config) DedupWindow() time.Duration {
	return time.Duration(c.SweepDedupHours) * time.Hour
}
