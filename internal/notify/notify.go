// Package notify fans a newly created alert out to the profile's notification channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cognito.app/sentinel/common/logger"
	"cognito.app/sentinel/internal/model"
)

// ErrChannelDisabled is returned when a delivery targets a channel with no sender configured.
var ErrChannelDisabled = errors.New("notification channel disabled")

// AlertNotification is the realtime payload broadcast to a user's in-app channel.
type AlertNotification struct {
	AlertID     int64          `json:"alertId"`
	Severity    model.Severity `json:"severity"`
	Title       string         `json:"title"`
	ProfileID   int64          `json:"profileId"`
	ProfileName string         `json:"profileName"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Delivery is one email or webhook notification for an alert.
type Delivery struct {
	Channel     model.Channel  `json:"channel"`
	AlertID     int64          `json:"alertId"`
	ProfileID   int64          `json:"profileId"`
	UserID      int64          `json:"userId"`
	ProfileName string         `json:"profileName"`
	Severity    model.Severity `json:"severity"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Recipients  []string       `json:"recipients,omitempty"`
	WebhookURL  string         `json:"webhookUrl,omitempty"`
	Link        string         `json:"link,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Publisher pushes in-app notifications to a user's realtime channel.
type Publisher interface {
	Publish(ctx context.Context, userID int64, n AlertNotification) error
}

// Dispatcher hands email and webhook deliveries to whatever sends them.
type Dispatcher interface {
	Dispatch(ctx context.Context, d Delivery) error
}

// Users resolves a profile owner, whose address receives email alerts when the
// profile lists no recipients.
type Users interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

type Notifier struct {
	publisher    Publisher
	dispatcher   Dispatcher
	users        Users
	dashboardURL string
	now          func() time.Time
}

// NewNotifier creates a Notifier. Publisher and dispatcher may be nil, which
// disables the channels they serve. Without users, email needs explicit recipients.
func NewNotifier(publisher Publisher, dispatcher Dispatcher, users Users, dashboardURL string) *Notifier {
	return &Notifier{
		publisher:    publisher,
		dispatcher:   dispatcher,
		users:        users,
		dashboardURL: dashboardURL,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Notify sends alert over every channel in the profile's alert config.
// Failures are logged and never returned: the alert is already stored.
func (n *Notifier) Notify(ctx context.Context, alert *model.Alert, profile *model.MonitoringProfile) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		AlertID:   &alert.ID,
		ProfileID: &profile.ID,
		Component: "sentinel.notify",
	})

	for _, ch := range profile.AlertConfig.NotificationChannels {
		if err := n.send(ctx, ch, alert, profile); err != nil {
			slog.ErrorContext(ctx, "alert notification failed",
				"channel", ch,
				"error", err)
			continue
		}
		slog.DebugContext(ctx, "alert notification sent", "channel", ch)
	}
}

func (n *Notifier) send(ctx context.Context, ch model.Channel, alert *model.Alert, profile *model.MonitoringProfile) error {
	switch ch {
	case model.ChannelInApp:
		if n.publisher == nil {
			return ErrChannelDisabled
		}
		return n.publisher.Publish(ctx, profile.UserID, AlertNotification{
			AlertID:     alert.ID,
			Severity:    alert.Severity,
			Title:       alert.Title,
			ProfileID:   profile.ID,
			ProfileName: profile.Name,
			Timestamp:   n.now(),
		})

	case model.ChannelEmail, model.ChannelWebhook:
		if n.dispatcher == nil {
			return ErrChannelDisabled
		}
		d := n.delivery(ch, alert, profile)
		if ch == model.ChannelEmail && len(d.Recipients) == 0 {
			owner, err := n.ownerEmail(ctx, profile.UserID)
			if err != nil {
				return err
			}
			d.Recipients = []string{owner}
		}
		if ch == model.ChannelWebhook && d.WebhookURL == "" {
			return fmt.Errorf("no webhook url configured")
		}
		return n.dispatcher.Dispatch(ctx, d)

	default:
		return fmt.Errorf("unknown channel %q", ch)
	}
}

func (n *Notifier) ownerEmail(ctx context.Context, userID int64) (string, error) {
	if n.users == nil {
		return "", fmt.Errorf("no email recipients configured")
	}
	user, err := n.users.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("loading profile owner: %w", err)
	}
	if user.Email == "" {
		return "", fmt.Errorf("profile owner %d has no email address", userID)
	}
	return user.Email, nil
}

func (n *Notifier) delivery(ch model.Channel, alert *model.Alert, profile *model.MonitoringProfile) Delivery {
	d := Delivery{
		Channel:     ch,
		AlertID:     alert.ID,
		ProfileID:   profile.ID,
		UserID:      profile.UserID,
		ProfileName: profile.Name,
		Severity:    alert.Severity,
		Title:       alert.Title,
		Description: alert.Description,
		Timestamp:   n.now(),
	}
	if n.dashboardURL != "" {
		d.Link = fmt.Sprintf("%s/profiles/%d/alerts/%d", n.dashboardURL, profile.ID, alert.ID)
	}
	switch ch {
	case model.ChannelEmail:
		d.Recipients = profile.AlertConfig.EmailRecipients
	case model.ChannelWebhook:
		d.WebhookURL = profile.AlertConfig.WebhookURL
	}
	return d
}
