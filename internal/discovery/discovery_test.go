package discovery_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cognito.app/sentinel/internal/discovery"
	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/store"
)

var _ = Describe("Discoverer", func() {
	var (
		ctx       context.Context
		profiles  *mockProfileStore
		sources   *mockSourceStore
		fetch     *mockFetcher
		relevance *mockRelevance
		d         *discovery.Discoverer
		profile   *model.MonitoringProfile
	)

	BeforeEach(func() {
		ctx = context.Background()
		profile = &model.MonitoringProfile{
			ID:                      10,
			Name:                    "Acme watch",
			TargetEntityDescription: "Acme Corp, a widget maker",
			Keywords:                []string{"acme"},
			IndustryTags:            []string{"manufacturing"},
			Status:                  model.ProfileStatusActive,
		}
		profiles = &mockProfileStore{getByIDFn: func(_ context.Context, id int64) (*model.MonitoringProfile, error) {
			if id != profile.ID {
				return nil, store.ErrNotFound
			}
			return profile, nil
		}}
		sources = &mockSourceStore{}
		fetch = &mockFetcher{pages: map[string]string{}, failing: map[string]bool{}}
		relevance = &mockRelevance{verdicts: map[string]bool{}, errs: map[string]error{}}
		d = discovery.New(profiles, sources, fetch, relevance, discovery.Config{Poll: fastPoll})
	})

	It("registers only relevant candidates", func() {
		fetch.candidates = []string{"https://widgetnews.example.com", "https://recipes.example.com"}
		fetch.pages["https://widgetnews.example.com"] = "Widget industry coverage"
		relevance.verdicts["https://widgetnews.example.com"] = true

		before := time.Now().UTC()
		result, err := d.Discover(ctx, 10, []string{"acme widgets"}, nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Candidates).To(Equal(2))
		Expect(result.Irrelevant).To(Equal(1))
		Expect(sources.created).To(HaveLen(1))

		src := sources.created[0]
		Expect(src.ID).NotTo(BeZero())
		Expect(src.URL).To(Equal("https://widgetnews.example.com"))
		Expect(*src.ProfileID).To(Equal(int64(10)))
		Expect(src.Status).To(Equal(model.SourceStatusActive))
		Expect(src.DiscoveredByAgent).To(BeTrue())
		Expect(src.CredibilityScore).To(Equal(0.5))
		Expect(src.SourceType).To(Equal(model.SourceTypeNews))
		Expect(*src.NextScrapeDueAt).To(BeTemporally(">=", before))
		Expect(*src.NextScrapeDueAt).To(BeTemporally("<=", time.Now().UTC()))

		Expect(relevance.inputs[0].TargetEntity).To(Equal("Acme Corp, a widget maker"))
		Expect(relevance.inputs[0].Content).To(Equal("Widget industry coverage"))
	})

	It("excludes existing and excluded URLs", func() {
		sources.listByProfileFn = func(context.Context, int64) ([]model.DataSource, error) {
			return []model.DataSource{{URL: "https://www.known.example.com/"}}, nil
		}
		profile.SourceConfig.ExcludedURLs = []string{"https://configured.example.com"}
		fetch.candidates = []string{"https://known.example.com", "https://fresh.example.com", "https://fresh.example.com/"}
		relevance.verdicts["https://fresh.example.com"] = true

		result, err := d.Discover(ctx, 10, nil, []string{"https://Skip.example.com"})
		Expect(err).NotTo(HaveOccurred())

		Expect(fetch.excludedSeen).To(ConsistOf(
			"https://known.example.com",
			"https://skip.example.com",
			"https://configured.example.com",
		))
		Expect(fetch.scraped).To(Equal([]string{"https://fresh.example.com"}))
		Expect(result.Added).To(HaveLen(1))
	})

	It("skips blocked domains and their subdomains", func() {
		profile.SourceConfig.BlockedDomains = []string{"spam.example"}
		fetch.candidates = []string{"https://spam.example/a", "https://www.spam.example/b", "https://news.spam.example/c"}

		result, err := d.Discover(ctx, 10, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Candidates).To(BeZero())
		Expect(fetch.scraped).To(BeEmpty())
	})

	It("keeps going past failed probes and relevance errors", func() {
		fetch.candidates = []string{"https://down.example.com", "https://flaky.example.com", "https://good.example.com"}
		fetch.failing["https://down.example.com"] = true
		relevance.errs["https://flaky.example.com"] = errors.New("llm unavailable")
		relevance.verdicts["https://good.example.com"] = true

		result, err := d.Discover(ctx, 10, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Unavailable).To(Equal(1))
		Expect(result.Failed).To(Equal(1))
		Expect(result.Added).To(HaveLen(1))
		Expect(result.Added[0].URL).To(Equal("https://good.example.com"))
	})

	It("treats an already registered URL as a skip", func() {
		fetch.candidates = []string{"https://race.example.com"}
		relevance.verdicts["https://race.example.com"] = true
		sources.createFn = func(context.Context, *model.DataSource) error { return store.ErrDuplicate }

		result, err := d.Discover(ctx, 10, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Added).To(BeEmpty())
		Expect(result.Failed).To(BeZero())
	})

	It("caps the candidates probed per run", func() {
		d = discovery.New(profiles, sources, fetch, relevance, discovery.Config{Poll: fastPoll, MaxCandidates: 2})
		fetch.candidates = []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"}

		result, err := d.Discover(ctx, 10, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Candidates).To(Equal(2))
		Expect(fetch.scraped).To(HaveLen(2))
	})

	It("returns not found for an unknown profile", func() {
		_, err := d.Discover(ctx, 99, nil, nil)
		Expect(err).To(MatchError(store.ErrNotFound))
	})

	It("requires keywords", func() {
		profile.Keywords = nil
		_, err := d.Discover(ctx, 10, nil, nil)
		Expect(err).To(MatchError(ContainSubstring("no discovery keywords")))
	})
})
