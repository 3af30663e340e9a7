package model

import (
	"slices"
	"time"
)

type ProfileStatus string

const (
	ProfileStatusActive ProfileStatus = "active"
	ProfileStatusPaused ProfileStatus = "paused"
	ProfileStatusError  ProfileStatus = "error"
)

type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

type Channel string

const (
	ChannelInApp   Channel = "in_app"
	ChannelEmail   Channel = "email"
	ChannelWebhook Channel = "webhook"
)

type SourceConfig struct {
	SeedURLs            []string `json:"seed_urls"`
	AutoDiscoverSources bool     `json:"auto_discover_sources"`
	DiscoveryKeywords   []string `json:"discovery_keywords"`
	ExcludedURLs        []string `json:"excluded_urls"`
	TrustedDomains      []string `json:"trusted_domains"`
	BlockedDomains      []string `json:"blocked_domains"`
}

type AlertConfig struct {
	Sensitivity          Sensitivity `json:"sensitivity"`
	NotificationChannels []Channel   `json:"notification_channels"`
	EmailRecipients      []string    `json:"email_recipients,omitempty"`
	WebhookURL           string      `json:"webhook_url,omitempty"`
}

// HasChannel reports whether ch is one of the configured notification channels.
func (c AlertConfig) HasChannel(ch Channel) bool {
	return slices.Contains(c.NotificationChannels, ch)
}

type MonitoringProfile struct {
	ID                      int64         `json:"id"`
	UserID                  int64         `json:"user_id"`
	Name                    string        `json:"name"`
	TargetEntityDescription string        `json:"target_entity_description"`
	Keywords                []string      `json:"keywords"`
	IndustryTags            []string      `json:"industry_tags"`
	SourceConfig            SourceConfig  `json:"source_config"`
	AlertConfig             AlertConfig   `json:"alert_config"`
	Status                  ProfileStatus `json:"status"`
	LastRunAt               *time.Time    `json:"last_run_at,omitempty"`
	CreatedAt               time.Time     `json:"created_at"`
	UpdatedAt               time.Time     `json:"updated_at"`
}

// DiscoveryKeywords falls back to the profile keywords when no dedicated
// discovery keywords are configured.
func (p *MonitoringProfile) DiscoveryKeywords() []string {
	if len(p.SourceConfig.DiscoveryKeywords) > 0 {
		return p.SourceConfig.DiscoveryKeywords
	}
	return p.Keywords
}

// IsDue reports whether the profile should be picked up by a cycle at now.
func (p *MonitoringProfile) IsDue(now time.Time, interval time.Duration) bool {
	if p.Status != ProfileStatusActive {
		return false
	}
	return p.LastRunAt == nil || !p.LastRunAt.Add(interval).After(now)
}
