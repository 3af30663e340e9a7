package pipeline_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cognito.app/sentinel/internal/discovery"
	"cognito.app/sentinel/internal/enrichment"
	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/pipeline"
)

var _ = Describe("Orchestrator", func() {
	var (
		ctx        context.Context
		now        time.Time
		profiles   *mockProfileStore
		sources    *mockSourceStore
		contents   *mockContentStore
		insights   *mockInsightStore
		alerts     *mockAlertStore
		fetch      *mockFetcher
		enrich     *mockEnrichment
		notifier   *mockNotifier
		discoverer *mockDiscoverer
		orch       *pipeline.Orchestrator
		profile    *model.MonitoringProfile
	)

	newsURL := "https://news.example.com/acme"
	blogURL := "https://acme-fans.blogspot.com/"

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

		profile = &model.MonitoringProfile{
			ID:       10,
			UserID:   1,
			Name:     "Acme Corp",
			Keywords: []string{"acme"},
			AlertConfig: model.AlertConfig{
				Sensitivity:          model.SensitivityMedium,
				NotificationChannels: []model.Channel{model.ChannelInApp},
			},
			Status: model.ProfileStatusActive,
		}
		profileID := profile.ID
		future := now.Add(time.Hour)

		profiles = &mockProfileStore{profiles: map[int64]*model.MonitoringProfile{10: profile}}
		sources = &mockSourceStore{due: map[int64][]model.DataSource{
			10: {
				{ID: 100, ProfileID: &profileID, URL: newsURL, SourceType: model.SourceTypeNews, Status: model.SourceStatusActive},
				{ID: 101, ProfileID: &profileID, URL: blogURL, SourceType: model.SourceTypeBlog, Status: model.SourceStatusActive},
				{ID: 102, ProfileID: &profileID, URL: "https://parked.example.com", Status: model.SourceStatusUnreachable},
				{ID: 103, ProfileID: &profileID, URL: "https://later.example.com", Status: model.SourceStatusActive, NextScrapeDueAt: &future},
			},
		}}
		insights = &mockInsightStore{}
		contents = newMockContentStore(insights)
		alerts = &mockAlertStore{}
		fetch = newMockFetcher()
		fetch.pages[newsURL] = "Acme recalls widgets after safety complaints"
		fetch.errors[blogURL] = "HTTP 404 Not Found"
		enrich = &mockEnrichment{analysis: enrichment.Analysis{
			Summary:                "Acme recalls widgets.",
			Sentiment:              model.Sentiment{Label: model.SentimentNegative, Score: 0.9},
			CrisisOpportunityFlag:  model.FlagCrisis,
			CrisisOpportunityScore: -0.9,
		}}
		notifier = &mockNotifier{}
		discoverer = &mockDiscoverer{result: &discovery.Result{}}

		stores := pipeline.Stores{
			Profiles: profiles,
			Sources:  sources,
			Contents: contents,
			Insights: insights,
			Alerts:   alerts,
		}
		stages := pipeline.NewStages(stores, fetch, enrich, notifier, pipeline.StagesConfig{Poll: fastPoll})
		pipeline.SetStagesClock(stages, func() time.Time { return now })
		orch = pipeline.NewOrchestrator(stores, stages, discoverer, pipeline.OrchestratorConfig{})
		pipeline.SetOrchestratorClock(orch, func() time.Time { return now })
	})

	It("runs every due source and keeps going past failures", func() {
		stats, err := orch.RunCycle(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(stats.ProfilesProcessed).To(Equal(1))
		Expect(stats.SourcesScraped).To(Equal(1))
		Expect(stats.SourcesFailed).To(Equal(1))
		Expect(stats.InsightsCreated).To(Equal(1))
		Expect(stats.AlertsCreated).To(Equal(1))
		Expect(notifier.alerts).To(HaveLen(1))

		Expect(sources.attempts).To(HaveLen(2))
		byID := map[int64]attempt{}
		for _, a := range sources.attempts {
			byID[a.id] = a
		}
		Expect(byID[100].nextDue).To(Equal(now.Add(2 * time.Hour)))
		Expect(byID[100].unreachable).To(BeFalse())
		Expect(byID[101].unreachable).To(BeTrue())
		Expect(byID[101].nextDue).To(Equal(now.Add(24 * time.Hour)))

		Expect(profiles.markedRun).To(HaveKeyWithValue(int64(10), now))
		Expect(profiles.released).To(BeEmpty())
	})

	It("skips enrichment when the content has not changed", func() {
		_, err := orch.RunCycle(ctx)
		Expect(err).NotTo(HaveOccurred())

		now = now.Add(2 * time.Hour)
		stats, err := orch.RunCycle(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(stats.DuplicatesSkipped).To(Equal(1))
		Expect(stats.InsightsCreated).To(Equal(0))
		Expect(insights.insights).To(HaveLen(1))
		Expect(enrich.inputs).To(HaveLen(1))
	})

	It("retries enrichment of unchanged content after an earlier failure", func() {
		enrich.processErr = errors.New("llm returned 503")
		stats, err := orch.RunCycle(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.InsightsCreated).To(Equal(0))
		Expect(contents.count()).To(Equal(1))

		enrich.processErr = nil
		now = now.Add(2 * time.Hour)
		stats, err = orch.RunCycle(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(stats.DuplicatesSkipped).To(Equal(1))
		Expect(stats.InsightsCreated).To(Equal(1))
		Expect(stats.AlertsCreated).To(Equal(1))
		Expect(insights.insights).To(HaveLen(1))
		Expect(contents.count()).To(Equal(1))
	})

	It("runs discovery only for auto-discovering profiles", func() {
		_, err := orch.RunCycle(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(discoverer.calls).To(BeEmpty())

		profile.SourceConfig.AutoDiscoverSources = true
		discoverer.result = &discovery.Result{Added: []model.DataSource{{ID: 200}}}
		stats, err := orch.RunCycle(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(discoverer.calls).To(Equal([]int64{10}))
		Expect(stats.SourcesDiscovered).To(Equal(1))
	})

	It("continues when discovery fails", func() {
		profile.SourceConfig.AutoDiscoverSources = true
		discoverer.err = errors.New("search engine down")

		stats, err := orch.RunCycle(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.SourcesScraped).To(Equal(1))
		Expect(profiles.markedRun).To(HaveKey(int64(10)))
	})

	It("returns the claim error", func() {
		profiles.claimFn = func(context.Context) ([]model.MonitoringProfile, error) {
			return nil, errors.New("db down")
		}
		_, err := orch.RunCycle(ctx)
		Expect(err).To(MatchError(ContainSubstring("db down")))
	})

	It("rejects an overlapping cycle", func() {
		started := make(chan struct{}, 1)
		release := make(chan struct{})
		fetch.scrapeFn = func(context.Context, string) error {
			select {
			case started <- struct{}{}:
			default:
			}
			<-release
			return nil
		}

		done := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			_, err := orch.RunCycle(ctx)
			done <- err
		}()

		Eventually(started).Should(Receive())
		_, err := orch.RunCycle(ctx)
		Expect(err).To(MatchError(pipeline.ErrCycleInProgress))

		close(release)
		Eventually(done).Should(Receive(BeNil()))
	})

	It("releases the claim instead of stamping the run when cancelled", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		stats, err := orch.RunCycle(cctx)
		Expect(err).To(MatchError(context.Canceled))
		Expect(stats.SourcesScraped).To(Equal(0))
		Expect(profiles.markedRun).To(BeEmpty())
		Expect(profiles.released).To(ConsistOf(int64(10)))
	})
})
