package pipeline_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cognito.app/sentinel/internal/enrichment"
	"cognito.app/sentinel/internal/fetcher"
	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/pipeline"
	"cognito.app/sentinel/internal/store"
)

var _ = Describe("Stages", func() {
	var (
		ctx      context.Context
		now      time.Time
		profiles *mockProfileStore
		sources  *mockSourceStore
		contents *mockContentStore
		insights *mockInsightStore
		alerts   *mockAlertStore
		fetch    *mockFetcher
		enrich   *mockEnrichment
		notifier *mockNotifier
		stages   *pipeline.Stages
		profile  *model.MonitoringProfile
		source   *model.DataSource
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

		profile = &model.MonitoringProfile{
			ID:                      10,
			UserID:                  1,
			Name:                    "Acme Corp",
			TargetEntityDescription: "Acme Corp, a widget maker",
			Keywords:                []string{"acme"},
			AlertConfig: model.AlertConfig{
				Sensitivity:          model.SensitivityMedium,
				NotificationChannels: []model.Channel{model.ChannelInApp},
			},
			Status: model.ProfileStatusActive,
		}
		source = &model.DataSource{
			ID:         100,
			ProfileID:  &profile.ID,
			URL:        "https://news.example.com/acme",
			SourceType: model.SourceTypeNews,
			Status:     model.SourceStatusActive,
		}

		profiles = &mockProfileStore{profiles: map[int64]*model.MonitoringProfile{10: profile}}
		sources = &mockSourceStore{sources: map[int64]*model.DataSource{100: source}}
		insights = &mockInsightStore{}
		contents = newMockContentStore(insights)
		alerts = &mockAlertStore{}
		fetch = newMockFetcher()
		enrich = &mockEnrichment{analysis: enrichment.Analysis{
			Summary:                "Acme recalls its flagship widget.",
			Sentiment:              model.Sentiment{Label: model.SentimentNegative, Score: 0.9},
			Entities:               []string{"Acme Corp"},
			Topics:                 []string{"recall"},
			CrisisOpportunityFlag:  model.FlagCrisis,
			CrisisOpportunityScore: -0.85,
			PotentialImpact:        "Revenue at risk.",
			Prompt:                 "prompt",
			RawResponse:            `{"summary":"..."}`,
			Model:                  "mock-model",
		}}
		notifier = &mockNotifier{}

		stages = pipeline.NewStages(pipeline.Stores{
			Profiles: profiles,
			Sources:  sources,
			Contents: contents,
			Insights: insights,
			Alerts:   alerts,
		}, fetch, enrich, notifier, pipeline.StagesConfig{Poll: fastPoll})
		pipeline.SetStagesClock(stages, func() time.Time { return now })
	})

	Describe("ScrapeSource", func() {
		It("stores new content and reschedules a news source two hours out", func() {
			fetch.pages[source.URL] = "Acme recalls widgets"

			result, err := stages.ScrapeSource(ctx, source, profile.Keywords)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Duplicate).To(BeFalse())
			Expect(result.NextDueAt).To(Equal(now.Add(2 * time.Hour)))
			Expect(result.Content).NotTo(BeNil())
			Expect(result.Content.ContentHash).To(Equal(model.ContentHash("Acme recalls widgets")))
			Expect(*result.Content.SourceID).To(Equal(int64(100)))
			Expect(*result.Content.ProfileID).To(Equal(int64(10)))
			Expect(result.Content.ScrapedAt).To(Equal(now))
			Expect(*result.Content.HTMLSnapshotURL).To(Equal("snapshots/job-" + source.URL + ".html"))
			Expect(*result.Content.ScreenshotURL).To(Equal("screenshots/job-" + source.URL + ".png"))
			Expect(contents.count()).To(Equal(1))

			last := sources.lastAttempt()
			Expect(last.unreachable).To(BeFalse())
			Expect(last.at).To(Equal(now))
			Expect(last.nextDue).To(Equal(now.Add(2 * time.Hour)))
			Expect(last.errMsg).To(BeNil())

			Expect(fetch.opts).To(ConsistOf(pipeline.DefaultScrape))
		})

		It("skips unchanged content but still reschedules", func() {
			fetch.pages[source.URL] = "Same text every time"

			first, err := stages.ScrapeSource(ctx, source, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Duplicate).To(BeFalse())
			_, err = stages.ProcessContent(ctx, first.Content, profile)
			Expect(err).NotTo(HaveOccurred())

			now = now.Add(2 * time.Hour)
			second, err := stages.ScrapeSource(ctx, source, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Duplicate).To(BeTrue())
			Expect(second.Content).To(BeNil())

			Expect(contents.count()).To(Equal(1))
			Expect(sources.attempts).To(HaveLen(2))
			Expect(sources.lastAttempt().nextDue).To(Equal(now.Add(2 * time.Hour)))
		})

		It("treats a unique violation on insert as a duplicate", func() {
			fetch.pages[source.URL] = "Raced text"
			_, err := stages.ScrapeSource(ctx, source, nil)
			Expect(err).NotTo(HaveOccurred())

			contents.hideExist = true
			result, err := stages.ScrapeSource(ctx, source, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Duplicate).To(BeTrue())
			Expect(contents.count()).To(Equal(1))
		})

		It("hands back unchanged content that was never enriched", func() {
			fetch.pages[source.URL] = "Acme recalls widgets"
			first, err := stages.ScrapeSource(ctx, source, nil)
			Expect(err).NotTo(HaveOccurred())

			now = now.Add(2 * time.Hour)
			second, err := stages.ScrapeSource(ctx, source, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Duplicate).To(BeTrue())
			Expect(second.Content).NotTo(BeNil())
			Expect(second.Content.ID).To(Equal(first.Content.ID))
			Expect(contents.count()).To(Equal(1))
			Expect(sources.lastAttempt().nextDue).To(Equal(now.Add(2 * time.Hour)))

			_, err = stages.ProcessContent(ctx, second.Content, profile)
			Expect(err).NotTo(HaveOccurred())

			third, err := stages.ScrapeSource(ctx, source, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(third.Duplicate).To(BeTrue())
			Expect(third.Content).To(BeNil())
		})

		It("reschedules the source when the hash lookup fails", func() {
			fetch.pages[source.URL] = "Acme recalls widgets"
			contents.lookupErr = errors.New("connection reset by peer")

			result, err := stages.ScrapeSource(ctx, source, nil)
			Expect(err).To(MatchError(ContainSubstring("connection reset by peer")))
			Expect(result.Failure).To(Equal(pipeline.FailureTransient))
			Expect(result.NextDueAt).To(Equal(now.Add(2 * time.Hour)))

			Expect(sources.attempts).To(HaveLen(1))
			last := sources.lastAttempt()
			Expect(last.unreachable).To(BeFalse())
			Expect(last.nextDue).To(Equal(now.Add(2 * time.Hour)))
			Expect(*last.errMsg).To(ContainSubstring("connection reset by peer"))
		})

		It("reschedules the source when storing content fails", func() {
			fetch.pages[source.URL] = "Acme recalls widgets"
			contents.createErr = errors.New("disk full")

			result, err := stages.ScrapeSource(ctx, source, nil)
			Expect(err).To(MatchError(ContainSubstring("disk full")))
			Expect(result.Content).To(BeNil())
			Expect(result.Failure).To(Equal(pipeline.FailureTransient))

			Expect(sources.attempts).To(HaveLen(1))
			Expect(sources.lastAttempt().unreachable).To(BeFalse())
			Expect(*sources.lastAttempt().errMsg).To(ContainSubstring("disk full"))
		})

		It("parks a blocked source for 24 hours", func() {
			fetch.errors[source.URL] = "HTTP 403 Forbidden"

			result, err := stages.ScrapeSource(ctx, source, nil)
			Expect(err).To(MatchError(fetcher.ErrJobFailed))
			Expect(result.Failure).To(Equal(pipeline.FailureUnreachable))
			Expect(result.NextDueAt).To(Equal(now.Add(24 * time.Hour)))

			last := sources.lastAttempt()
			Expect(last.unreachable).To(BeTrue())
			Expect(last.nextDue).To(Equal(now.Add(model.UnreachableBackoff)))
			Expect(*last.errMsg).To(ContainSubstring("403"))
			Expect(contents.count()).To(Equal(0))
		})

		It("retries a transient failure on the normal cadence", func() {
			fetch.errors[source.URL] = "HTTP 503 Service Unavailable"

			result, err := stages.ScrapeSource(ctx, source, nil)
			Expect(err).To(HaveOccurred())
			Expect(result.Failure).To(Equal(pipeline.FailureTransient))

			last := sources.lastAttempt()
			Expect(last.unreachable).To(BeFalse())
			Expect(last.nextDue).To(Equal(now.Add(2 * time.Hour)))
			Expect(last.errMsg).NotTo(BeNil())
		})

		It("fails a scrape without text", func() {
			fetch.pages[source.URL] = "   "

			result, err := stages.ScrapeSource(ctx, source, nil)
			Expect(err).To(MatchError(pipeline.ErrNoText))
			Expect(result.Failure).To(Equal(pipeline.FailureTransient))
			Expect(contents.count()).To(Equal(0))
		})
	})

	Describe("ProcessContent", func() {
		var content *model.RawContent

		BeforeEach(func() {
			fetch.pages[source.URL] = "Acme recalls widgets"
			result, err := stages.ScrapeSource(ctx, source, nil)
			Expect(err).NotTo(HaveOccurred())
			content = result.Content
		})

		It("stores an insight built from the analysis", func() {
			insight, err := stages.ProcessContent(ctx, content, profile)
			Expect(err).NotTo(HaveOccurred())

			Expect(insight.ID).NotTo(BeZero())
			Expect(insight.RawContentID).To(Equal(content.ID))
			Expect(insight.ProfileID).To(Equal(int64(10)))
			Expect(insight.SummaryText).To(Equal("Acme recalls its flagship widget."))
			Expect(insight.CrisisOpportunityFlag).To(Equal(model.FlagCrisis))
			Expect(insight.CrisisOpportunityScore).To(Equal(-0.85))
			Expect(insight.LLMModel).To(Equal("mock-model"))
			Expect(insight.Embedding).To(HaveLen(3))
			Expect(insights.insights).To(HaveLen(1))

			Expect(enrich.inputs).To(HaveLen(1))
			Expect(enrich.inputs[0].Text).To(Equal("Acme recalls widgets"))
			Expect(enrich.inputs[0].TargetEntity).To(Equal("Acme Corp, a widget maker"))
			Expect(enrich.inputs[0].Context).To(ContainSubstring("Title: Page title"))
		})

		It("stores the insight without a vector when embedding fails", func() {
			enrich.embedErr = errors.New("rate limited")

			insight, err := stages.ProcessContent(ctx, content, profile)
			Expect(err).NotTo(HaveOccurred())
			Expect(insight.Embedding).To(BeNil())
			Expect(insights.insights).To(HaveLen(1))
		})

		It("stores nothing when enrichment fails", func() {
			enrich.processErr = errors.New("llm unavailable")

			_, err := stages.ProcessContent(ctx, content, profile)
			Expect(err).To(MatchError(ContainSubstring("llm unavailable")))
			Expect(insights.insights).To(BeEmpty())
		})

		It("looks up content and profile by id", func() {
			insight, err := stages.ProcessContentByID(ctx, content.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(insight.ProfileID).To(Equal(profile.ID))
		})

		It("rejects content without a profile", func() {
			content.ProfileID = nil
			_, err := stages.ProcessContentByID(ctx, content.ID)
			Expect(err).To(MatchError(pipeline.ErrOrphaned))
		})
	})

	Describe("EvaluateInsight", func() {
		It("creates a critical alert for a strong crisis and notifies", func() {
			insight := &model.Insight{
				ID:                     500,
				ProfileID:              10,
				SummaryText:            "Acme recalls its flagship widget.",
				Sentiment:              model.Sentiment{Label: model.SentimentNegative, Score: 0.9},
				CrisisOpportunityFlag:  model.FlagCrisis,
				CrisisOpportunityScore: -0.85,
				PotentialImpact:        "Revenue at risk.",
			}

			result, err := stages.EvaluateInsight(ctx, insight, profile)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Decision.Fire).To(BeTrue())
			Expect(result.Alert).NotTo(BeNil())
			Expect(result.Alert.Severity).To(Equal(model.SeverityCritical))
			Expect(result.Alert.Title).To(Equal("[CRITICAL] Potential crisis detected for Acme Corp"))
			Expect(result.Alert.Description).To(Equal("Acme recalls its flagship widget.\n\nPotential impact: Revenue at risk."))
			Expect(result.Alert.Status).To(Equal(model.AlertStatusNew))
			Expect(result.Alert.InsightID).To(Equal(int64(500)))

			Expect(alerts.alerts).To(HaveLen(1))
			Expect(notifier.alerts).To(HaveLen(1))
			Expect(notifier.alerts[0].ID).To(Equal(result.Alert.ID))
		})

		It("stays quiet below the threshold", func() {
			insight := &model.Insight{
				ID:                     501,
				ProfileID:              10,
				Sentiment:              model.Sentiment{Label: model.SentimentPositive, Score: 0.6},
				CrisisOpportunityFlag:  model.FlagNeutral,
				CrisisOpportunityScore: 0.1,
			}

			result, err := stages.EvaluateInsight(ctx, insight, profile)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Decision.Fire).To(BeFalse())
			Expect(result.Alert).To(BeNil())
			Expect(alerts.alerts).To(BeEmpty())
			Expect(notifier.alerts).To(BeEmpty())
		})

		It("returns not found for an unknown insight", func() {
			_, err := stages.EvaluateInsightByID(ctx, 999)
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})
})
