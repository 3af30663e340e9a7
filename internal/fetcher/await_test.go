package fetcher_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cognito.app/sentinel/internal/fetcher"
)

var _ = Describe("Await", func() {
	fast := fetcher.PollConfig{
		Initial:    time.Millisecond,
		Max:        4 * time.Millisecond,
		Multiplier: 2,
		Timeout:    time.Second,
	}

	It("returns the job once it completes", func() {
		m := &mockFetcher{}
		m.checkStatusFn = func(ctx context.Context, jobID string) (*fetcher.Job, error) {
			if m.Checks() < 3 {
				return &fetcher.Job{ID: jobID, Status: fetcher.JobRunning}, nil
			}
			return &fetcher.Job{
				ID:     jobID,
				Status: fetcher.JobCompleted,
				Result: &fetcher.Result{Text: "body"},
			}, nil
		}

		job, err := fetcher.Await(context.Background(), m, "job-1", fast)
		Expect(err).NotTo(HaveOccurred())
		Expect(job.Result.Text).To(Equal("body"))
		Expect(m.Checks()).To(Equal(3))
	})

	It("reports terminal failures as ErrJobFailed", func() {
		m := &mockFetcher{
			checkStatusFn: func(ctx context.Context, jobID string) (*fetcher.Job, error) {
				return &fetcher.Job{ID: jobID, Status: fetcher.JobFailed, Error: "HTTP 403 Forbidden"}, nil
			},
		}

		job, err := fetcher.Await(context.Background(), m, "job-1", fast)
		Expect(err).To(MatchError(fetcher.ErrJobFailed))
		Expect(err.Error()).To(ContainSubstring("403"))
		Expect(job.Status).To(Equal(fetcher.JobFailed))
	})

	It("gives up with ErrJobTimeout", func() {
		m := &mockFetcher{}
		cfg := fast
		cfg.Timeout = 30 * time.Millisecond

		_, err := fetcher.Await(context.Background(), m, "job-1", cfg)
		Expect(err).To(MatchError(fetcher.ErrJobTimeout))
		Expect(m.Checks()).To(BeNumerically(">", 1))
	})

	It("returns the caller's error when the caller cancels", func() {
		ctx, cancel := context.WithCancel(context.Background())
		m := &mockFetcher{
			checkStatusFn: func(c context.Context, jobID string) (*fetcher.Job, error) {
				cancel()
				return &fetcher.Job{ID: jobID, Status: fetcher.JobRunning}, nil
			},
		}

		_, err := fetcher.Await(ctx, m, "job-1", fast)
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})

	It("propagates status check errors", func() {
		m := &mockFetcher{
			checkStatusFn: func(ctx context.Context, jobID string) (*fetcher.Job, error) {
				return nil, fetcher.ErrJobNotFound
			},
		}

		_, err := fetcher.Await(context.Background(), m, "missing", fast)
		Expect(err).To(MatchError(fetcher.ErrJobNotFound))
	})
})
