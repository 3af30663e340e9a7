package pipeline_test

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cognito.app/sentinel/internal/fetcher"
	"cognito.app/sentinel/internal/pipeline"
)

var _ = Describe("ClassifyFailure", func() {
	DescribeTable("classifies scrape errors",
		func(err error, expected pipeline.FailureKind) {
			Expect(pipeline.ClassifyFailure(err)).To(Equal(expected))
		},
		Entry("nil", nil, pipeline.FailureTransient),
		Entry("not found", errors.New("HTTP 404 Not Found"), pipeline.FailureUnreachable),
		Entry("forbidden status", fmt.Errorf("%w: HTTP 403 Forbidden", fetcher.ErrJobFailed), pipeline.FailureUnreachable),
		Entry("gone", errors.New("status: 410"), pipeline.FailureUnreachable),
		Entry("dns failure", errors.New("dial tcp: lookup acme.invalid: no such host"), pipeline.FailureUnreachable),
		Entry("chrome dns failure", errors.New("page load error net::ERR_NAME_NOT_RESOLVED"), pipeline.FailureUnreachable),
		Entry("refused", errors.New("dial tcp 10.0.0.1:443: connect: connection refused"), pipeline.FailureUnreachable),
		Entry("bad certificate", errors.New("x509: certificate signed by unknown authority"), pipeline.FailureUnreachable),
		Entry("captcha wall", errors.New("request blocked by captcha"), pipeline.FailureUnreachable),
		Entry("server error", errors.New("HTTP 503 Service Unavailable"), pipeline.FailureTransient),
		Entry("rate limited", errors.New("status 429"), pipeline.FailureTransient),
		Entry("poll timeout", fmt.Errorf("%w: job-1", fetcher.ErrJobTimeout), pipeline.FailureTransient),
		Entry("deadline", errors.New("context deadline exceeded"), pipeline.FailureTransient),
		Entry("url in message is not a status", errors.New("scraping https://acme.example.com/ failed: EOF"), pipeline.FailureTransient),
	)
})
