package model_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cognito.app/sentinel/internal/model"
)

var _ = Describe("DataSource", func() {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	DescribeTable("ClassifySourceType",
		func(url string, expected model.SourceType) {
			Expect(model.ClassifySourceType(url)).To(Equal(expected))
		},
		Entry("news host", "https://technews.example.com/article", model.SourceTypeNews),
		Entry("wire service", "https://www.reuters.com/business", model.SourceTypeNews),
		Entry("social network", "https://twitter.com/acme", model.SourceTypeSocial),
		Entry("forum", "https://www.reddit.com/r/widgets", model.SourceTypeForum),
		Entry("community site", "https://community.acme.io/t/123", model.SourceTypeForum),
		Entry("blog host", "https://engineering-blog.acme.io", model.SourceTypeBlog),
		Entry("substack", "https://acme.substack.com/p/launch", model.SourceTypeBlog),
		Entry("blog path on generic host", "https://acme.io/blog/launch", model.SourceTypeBlog),
		Entry("generic host", "https://acme.io/products", model.SourceTypeOther),
		Entry("unparseable", "::not a url", model.SourceTypeOther),
		Entry("x.com is social", "https://x.com/acme", model.SourceTypeSocial),
		Entry("x.com fragment not mid-label", "https://fox.company.io", model.SourceTypeOther),
	)

	DescribeTable("CadenceFor",
		func(t model.SourceType, expected time.Duration) {
			Expect(model.CadenceFor(t)).To(Equal(expected))
		},
		Entry("news", model.SourceTypeNews, 2*time.Hour),
		Entry("social", model.SourceTypeSocial, 4*time.Hour),
		Entry("forum", model.SourceTypeForum, 6*time.Hour),
		Entry("blog", model.SourceTypeBlog, 24*time.Hour),
		Entry("other", model.SourceTypeOther, 24*time.Hour),
		Entry("unknown", model.SourceType("podcast"), 24*time.Hour),
	)

	It("schedules the next scrape from the attempt time", func() {
		Expect(model.NextScrapeDue(model.SourceTypeNews, now)).To(Equal(now.Add(2 * time.Hour)))
	})

	Describe("IsDue", func() {
		It("is due when never scheduled", func() {
			s := &model.DataSource{Status: model.SourceStatusActive}
			Expect(s.IsDue(now)).To(BeTrue())
		})

		It("is due at exactly the scheduled time", func() {
			s := &model.DataSource{Status: model.SourceStatusActive, NextScrapeDueAt: &now}
			Expect(s.IsDue(now)).To(BeTrue())
		})

		It("is not due before the scheduled time", func() {
			later := now.Add(time.Minute)
			s := &model.DataSource{Status: model.SourceStatusActive, NextScrapeDueAt: &later}
			Expect(s.IsDue(now)).To(BeFalse())
		})

		It("is never due while unreachable", func() {
			s := &model.DataSource{Status: model.SourceStatusUnreachable}
			Expect(s.IsDue(now)).To(BeFalse())
		})
	})

	DescribeTable("NormalizeURL",
		func(in, expected string) {
			Expect(model.NormalizeURL(in)).To(Equal(expected))
		},
		Entry("lowercases host and drops www", "https://WWW.Example.com/News/", "https://example.com/News"),
		Entry("drops fragment", "https://example.com/a#top", "https://example.com/a"),
		Entry("keeps query", "https://example.com/a?id=1", "https://example.com/a?id=1"),
		Entry("root path", "https://example.com/", "https://example.com"),
	)

	It("extracts hostnames without www", func() {
		Expect(model.Hostname("https://www.Example.com:8443/x")).To(Equal("example.com"))
	})
})

var _ = Describe("MonitoringProfile", func() {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	It("is due when it has never run", func() {
		p := &model.MonitoringProfile{Status: model.ProfileStatusActive}
		Expect(p.IsDue(now, time.Hour)).To(BeTrue())
	})

	It("waits for the interval after the last run", func() {
		recent := now.Add(-30 * time.Minute)
		old := now.Add(-2 * time.Hour)
		Expect((&model.MonitoringProfile{Status: model.ProfileStatusActive, LastRunAt: &recent}).IsDue(now, time.Hour)).To(BeFalse())
		Expect((&model.MonitoringProfile{Status: model.ProfileStatusActive, LastRunAt: &old}).IsDue(now, time.Hour)).To(BeTrue())
	})

	It("is never due while paused", func() {
		p := &model.MonitoringProfile{Status: model.ProfileStatusPaused}
		Expect(p.IsDue(now, time.Hour)).To(BeFalse())
	})

	It("falls back to profile keywords for discovery", func() {
		p := &model.MonitoringProfile{Keywords: []string{"acme"}}
		Expect(p.DiscoveryKeywords()).To(Equal([]string{"acme"}))

		p.SourceConfig.DiscoveryKeywords = []string{"acme widgets"}
		Expect(p.DiscoveryKeywords()).To(Equal([]string{"acme widgets"}))
	})

	It("checks notification channels", func() {
		cfg := model.AlertConfig{NotificationChannels: []model.Channel{model.ChannelInApp, model.ChannelEmail}}
		Expect(cfg.HasChannel(model.ChannelEmail)).To(BeTrue())
		Expect(cfg.HasChannel(model.ChannelWebhook)).To(BeFalse())
	})
})

var _ = Describe("ContentHash", func() {
	It("is lowercase hex sha256", func() {
		Expect(model.ContentHash("hello")).To(Equal("2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"))
	})

	It("is stable for identical text", func() {
		Expect(model.ContentHash("same text")).To(Equal(model.ContentHash("same text")))
		Expect(model.ContentHash("same text")).NotTo(Equal(model.ContentHash("same text.")))
	})
})
