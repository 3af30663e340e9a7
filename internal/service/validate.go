package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/lo"

	"cognito.app/sentinel/internal/model"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// validateURL accepts absolute http(s) URLs only.
func validateURL(field, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return invalid("%s must be an absolute http(s) URL", field)
	}
	return nil
}

// cleanList trims entries and drops blanks and duplicates, keeping order.
func cleanList(values []string) []string {
	out := lo.Uniq(lo.Compact(lo.Map(values, func(v string, _ int) string {
		return strings.TrimSpace(v)
	})))
	if out == nil {
		return []string{}
	}
	return out
}

func normalizeAlertConfig(cfg model.AlertConfig) (model.AlertConfig, error) {
	switch cfg.Sensitivity {
	case "":
		cfg.Sensitivity = model.SensitivityMedium
	case model.SensitivityLow, model.SensitivityMedium, model.SensitivityHigh:
	default:
		return cfg, invalid("unknown sensitivity %q", cfg.Sensitivity)
	}

	if len(cfg.NotificationChannels) == 0 {
		cfg.NotificationChannels = []model.Channel{model.ChannelInApp}
	}
	cfg.NotificationChannels = lo.Uniq(cfg.NotificationChannels)
	for _, ch := range cfg.NotificationChannels {
		switch ch {
		case model.ChannelInApp, model.ChannelEmail, model.ChannelWebhook:
		default:
			return cfg, invalid("unknown notification channel %q", ch)
		}
	}

	cfg.EmailRecipients = cleanList(cfg.EmailRecipients)
	if cfg.HasChannel(model.ChannelEmail) && len(cfg.EmailRecipients) == 0 {
		return cfg, invalid("email channel needs at least one recipient")
	}
	if cfg.HasChannel(model.ChannelWebhook) {
		if err := validateURL("webhook_url", cfg.WebhookURL); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func normalizeSourceConfig(cfg model.SourceConfig) (model.SourceConfig, error) {
	cfg.SeedURLs = cleanList(cfg.SeedURLs)
	for _, u := range cfg.SeedURLs {
		if err := validateURL("seed_urls", u); err != nil {
			return cfg, err
		}
	}
	cfg.DiscoveryKeywords = cleanList(cfg.DiscoveryKeywords)
	cfg.ExcludedURLs = cleanList(cfg.ExcludedURLs)
	cfg.TrustedDomains = cleanList(cfg.TrustedDomains)
	cfg.BlockedDomains = cleanList(cfg.BlockedDomains)
	return cfg, nil
}
