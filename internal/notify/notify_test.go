package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/notify"
)

var _ = Describe("Notifier", func() {
	var (
		ctx        context.Context
		publisher  *mockPublisher
		dispatcher *mockDispatcher
		users      *mockUsers
		notifier   *notify.Notifier
		alert      *model.Alert
		profile    *model.MonitoringProfile
		fixedNow   time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		publisher = &mockPublisher{}
		dispatcher = &mockDispatcher{}
		users = &mockUsers{users: map[int64]*model.User{
			7: {ID: 7, Name: "Dana", Email: "dana@acme.test"},
		}}
		notifier = notify.NewNotifier(publisher, dispatcher, users, "https://app.example.com")
		fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		notify.SetClock(notifier, func() time.Time { return fixedNow })

		alert = &model.Alert{
			ID:          900,
			ProfileID:   10,
			Severity:    model.SeverityCritical,
			Title:       "[CRITICAL] Potential crisis detected for Acme Corp",
			Description: "Acme recalled widgets.",
		}
		profile = &model.MonitoringProfile{
			ID:     10,
			UserID: 7,
			Name:   "Acme watch",
			AlertConfig: model.AlertConfig{
				NotificationChannels: []model.Channel{model.ChannelInApp},
			},
		}
	})

	It("publishes the in-app payload on the owner's channel", func() {
		notifier.Notify(ctx, alert, profile)

		Expect(publisher.userIDs).To(Equal([]int64{7}))
		Expect(publisher.calls).To(Equal([]notify.AlertNotification{{
			AlertID:     900,
			Severity:    model.SeverityCritical,
			Title:       alert.Title,
			ProfileID:   10,
			ProfileName: "Acme watch",
			Timestamp:   fixedNow,
		}}))
		Expect(dispatcher.calls).To(BeEmpty())
	})

	It("serializes the payload with camelCase keys", func() {
		notifier.Notify(ctx, alert, profile)

		raw, err := json.Marshal(publisher.calls[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).To(MatchJSON(`{
			"alertId": 900,
			"severity": "critical",
			"title": "[CRITICAL] Potential crisis detected for Acme Corp",
			"profileId": 10,
			"profileName": "Acme watch",
			"timestamp": "2025-03-01T12:00:00Z"
		}`))
	})

	It("dispatches email and webhook deliveries", func() {
		profile.AlertConfig.NotificationChannels = []model.Channel{model.ChannelEmail, model.ChannelWebhook}
		profile.AlertConfig.EmailRecipients = []string{"ops@acme.test"}
		profile.AlertConfig.WebhookURL = "https://hooks.acme.test/alerts"

		notifier.Notify(ctx, alert, profile)

		Expect(publisher.calls).To(BeEmpty())
		Expect(dispatcher.calls).To(HaveLen(2))

		email := dispatcher.calls[0]
		Expect(email.Channel).To(Equal(model.ChannelEmail))
		Expect(email.Recipients).To(Equal([]string{"ops@acme.test"}))
		Expect(email.UserID).To(Equal(int64(7)))
		Expect(email.Link).To(Equal("https://app.example.com/profiles/10/alerts/900"))

		hook := dispatcher.calls[1]
		Expect(hook.Channel).To(Equal(model.ChannelWebhook))
		Expect(hook.WebhookURL).To(Equal("https://hooks.acme.test/alerts"))
	})

	It("keeps going when one channel fails", func() {
		profile.AlertConfig.NotificationChannels = []model.Channel{model.ChannelInApp, model.ChannelWebhook}
		profile.AlertConfig.WebhookURL = "https://hooks.acme.test/alerts"
		publisher.publishFn = func(context.Context, int64, notify.AlertNotification) error {
			return errors.New("redis down")
		}

		Expect(func() { notifier.Notify(ctx, alert, profile) }).NotTo(Panic())
		Expect(dispatcher.calls).To(HaveLen(1))
	})

	It("emails the profile owner when no recipients are listed", func() {
		profile.AlertConfig.NotificationChannels = []model.Channel{model.ChannelEmail}

		notifier.Notify(ctx, alert, profile)

		Expect(users.ids).To(Equal([]int64{7}))
		Expect(dispatcher.calls).To(HaveLen(1))
		Expect(dispatcher.calls[0].Channel).To(Equal(model.ChannelEmail))
		Expect(dispatcher.calls[0].Recipients).To(Equal([]string{"dana@acme.test"}))
	})

	It("prefers listed recipients over the owner", func() {
		profile.AlertConfig.NotificationChannels = []model.Channel{model.ChannelEmail}
		profile.AlertConfig.EmailRecipients = []string{"ops@acme.test"}

		notifier.Notify(ctx, alert, profile)

		Expect(users.ids).To(BeEmpty())
		Expect(dispatcher.calls[0].Recipients).To(Equal([]string{"ops@acme.test"}))
	})

	It("skips email when the owner cannot be loaded", func() {
		profile.AlertConfig.NotificationChannels = []model.Channel{model.ChannelEmail, model.ChannelWebhook}
		profile.AlertConfig.WebhookURL = "https://hooks.acme.test/alerts"
		users.err = errors.New("connection refused")

		notifier.Notify(ctx, alert, profile)

		Expect(dispatcher.calls).To(HaveLen(1))
		Expect(dispatcher.calls[0].Channel).To(Equal(model.ChannelWebhook))
	})

	It("skips email when the owner has no address", func() {
		profile.AlertConfig.NotificationChannels = []model.Channel{model.ChannelEmail}
		users.users[7].Email = ""

		notifier.Notify(ctx, alert, profile)
		Expect(dispatcher.calls).To(BeEmpty())
	})

	It("skips email without recipients or a user lookup", func() {
		bare := notify.NewNotifier(publisher, dispatcher, nil, "")
		profile.AlertConfig.NotificationChannels = []model.Channel{model.ChannelEmail}

		bare.Notify(ctx, alert, profile)
		Expect(dispatcher.calls).To(BeEmpty())
	})

	It("tolerates missing collaborators", func() {
		bare := notify.NewNotifier(nil, nil, nil, "")
		profile.AlertConfig.NotificationChannels = []model.Channel{model.ChannelInApp, model.ChannelEmail}
		profile.AlertConfig.EmailRecipients = []string{"ops@acme.test"}

		Expect(func() { bare.Notify(ctx, alert, profile) }).NotTo(Panic())
	})
})

var _ = Describe("Senders", func() {
	It("routes by channel", func() {
		email := &mockSender{}
		webhook := &mockSender{}
		senders := notify.Senders{Email: email, Webhook: webhook}

		Expect(senders.Dispatch(context.Background(), notify.Delivery{Channel: model.ChannelWebhook})).To(Succeed())
		Expect(webhook.sent).To(HaveLen(1))
		Expect(email.sent).To(BeEmpty())
	})

	It("reports unconfigured channels", func() {
		err := notify.Senders{}.Send(context.Background(), notify.Delivery{Channel: model.ChannelEmail})
		Expect(err).To(MatchError(notify.ErrChannelDisabled))
	})

	It("rejects in-app deliveries", func() {
		err := notify.Senders{}.Send(context.Background(), notify.Delivery{Channel: model.ChannelInApp})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("WebhookSender", func() {
	var (
		server   *httptest.Server
		received []byte
		status   int
	)

	BeforeEach(func() {
		status = http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))
			received, _ = io.ReadAll(r.Body)
			w.WriteHeader(status)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("posts the alert as JSON", func() {
		sender := notify.NewWebhookSender(time.Second)
		err := sender.Send(context.Background(), notify.Delivery{
			Channel:    model.ChannelWebhook,
			AlertID:    900,
			Title:      "Heads up",
			WebhookURL: server.URL,
		})
		Expect(err).NotTo(HaveOccurred())

		var body map[string]any
		Expect(json.Unmarshal(received, &body)).To(Succeed())
		Expect(body["event"]).To(Equal("alert.created"))
		Expect(body["alert"]).To(HaveKeyWithValue("title", "Heads up"))
		Expect(body["alert"]).To(HaveKeyWithValue("alertId", BeNumerically("==", 900)))
	})

	It("fails on non-2xx responses", func() {
		status = http.StatusBadGateway
		err := notify.NewWebhookSender(time.Second).Send(context.Background(), notify.Delivery{WebhookURL: server.URL})
		Expect(err).To(MatchError(ContainSubstring("HTTP 502")))
	})
})

var _ = Describe("SMTPSender", func() {
	It("sends a multipart message to every recipient", func() {
		sender := notify.NewSMTPSender(notify.SMTPConfig{
			Host: "smtp.example.com", Port: 587, Username: "bot", Password: "secret", From: "alerts@example.com",
		})

		var (
			gotAddr string
			gotTo   []string
			gotMsg  string
			gotAuth smtp.Auth
		)
		notify.SetSendMail(sender, func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotAuth, gotTo, gotMsg = addr, a, to, string(msg)
			Expect(from).To(Equal("alerts@example.com"))
			return nil
		})

		err := sender.Send(context.Background(), notify.Delivery{
			Channel:     model.ChannelEmail,
			Title:       "Crisis <Acme>",
			ProfileName: "Acme watch",
			Severity:    model.SeverityHigh,
			Description: "line one\nline two",
			Recipients:  []string{"a@acme.test", "b@acme.test"},
			Link:        "https://app.example.com/profiles/1/alerts/2",
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(gotAddr).To(Equal("smtp.example.com:587"))
		Expect(gotAuth).NotTo(BeNil())
		Expect(gotTo).To(Equal([]string{"a@acme.test", "b@acme.test"}))
		Expect(gotMsg).To(ContainSubstring("Subject: [Sentinel] Crisis <Acme>\r\n"))
		Expect(gotMsg).To(ContainSubstring("To: a@acme.test, b@acme.test\r\n"))
		Expect(gotMsg).To(ContainSubstring("<h2>Crisis &lt;Acme&gt;</h2>"))
		Expect(gotMsg).To(ContainSubstring("line one<br>line two"))
		Expect(gotMsg).To(ContainSubstring("View alert: https://app.example.com/profiles/1/alerts/2"))
	})

	It("requires recipients", func() {
		sender := notify.NewSMTPSender(notify.SMTPConfig{Host: "smtp.example.com", Port: 25})
		Expect(sender.Send(context.Background(), notify.Delivery{})).To(MatchError(ContainSubstring("no recipients")))
	})

	It("wraps transport errors", func() {
		sender := notify.NewSMTPSender(notify.SMTPConfig{Host: "smtp.example.com", Port: 25})
		notify.SetSendMail(sender, func(string, smtp.Auth, string, []string, []byte) error {
			return errors.New("connection refused")
		})

		err := sender.Send(context.Background(), notify.Delivery{Recipients: []string{"a@acme.test"}})
		Expect(err).To(MatchError(ContainSubstring("connection refused")))
	})
})
