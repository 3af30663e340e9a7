package fetcher_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cognito.app/sentinel/internal/blob"
	"cognito.app/sentinel/internal/fetcher"
)

var _ = Describe("NewSnapshotting", func() {
	var (
		ctx   context.Context
		dir   string
		inner *mockFetcher
		f     fetcher.ContentFetcher
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		store, err := blob.NewLocalStore(dir, "https://blobs.example.com")
		Expect(err).NotTo(HaveOccurred())

		inner = &mockFetcher{
			checkStatusFn: func(ctx context.Context, jobID string) (*fetcher.Job, error) {
				return &fetcher.Job{
					ID:     jobID,
					Status: fetcher.JobCompleted,
					Result: &fetcher.Result{
						Text:       "hello",
						HTML:       "<html>hello</html>",
						Screenshot: []byte{0x89, 'P', 'N', 'G'},
					},
				}, nil
			},
		}
		f = fetcher.NewSnapshotting(inner, store)
	})

	It("stores html and screenshots and returns their urls", func() {
		job, err := f.Scrape(ctx, "https://example.com", nil, fetcher.ScrapeOptions{SaveHTML: true, TakeScreenshot: true})
		Expect(err).NotTo(HaveOccurred())

		done, err := f.CheckStatus(ctx, job.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(done.Result.HTML).To(BeEmpty())
		Expect(done.Result.Screenshot).To(BeNil())
		Expect(done.Result.HTMLPath).To(HavePrefix("https://blobs.example.com/html/"))
		Expect(done.Result.ScreenshotPath).To(HavePrefix("https://blobs.example.com/screenshots/"))

		rel := strings.TrimPrefix(done.Result.HTMLPath, "https://blobs.example.com/")
		data, err := os.ReadFile(filepath.Join(dir, rel))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("<html>hello</html>"))
	})

	It("stores nothing for quick scrapes", func() {
		job, err := f.Scrape(ctx, "https://example.com", nil, fetcher.QuickScrape)
		Expect(err).NotTo(HaveOccurred())

		done, err := f.CheckStatus(ctx, job.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(done.Result.Text).To(Equal("hello"))
		Expect(done.Result.HTMLPath).To(BeEmpty())
		Expect(done.Result.ScreenshotPath).To(BeEmpty())
		Expect(done.Result.HTML).To(BeEmpty())
	})

	It("serves repeated status checks from the first result", func() {
		job, err := f.Scrape(ctx, "https://example.com", nil, fetcher.ScrapeOptions{SaveHTML: true})
		Expect(err).NotTo(HaveOccurred())

		first, err := f.CheckStatus(ctx, job.ID)
		Expect(err).NotTo(HaveOccurred())
		second, err := f.CheckStatus(ctx, job.ID)
		Expect(err).NotTo(HaveOccurred())

		Expect(second.Result.HTMLPath).To(Equal(first.Result.HTMLPath))
		Expect(inner.Checks()).To(Equal(1))
	})
})
