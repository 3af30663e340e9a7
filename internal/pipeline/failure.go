package pipeline

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"cognito.app/sentinel/internal/fetcher"
)

type FailureKind string

const (
	// FailureTransient is retried at the next cadence slot.
	FailureTransient FailureKind = "transient"
	// FailureUnreachable parks the source as unreachable until a user reactivates it.
	FailureUnreachable FailureKind = "unreachable"
)

var statusPattern = regexp.MustCompile(`(?i)\b(?:http|status)[: ]+(\d{3})\b`)

// unreachableStatus are HTTP statuses that will not fix themselves by the next cadence slot.
var unreachableStatus = map[int]bool{
	401: true,
	403: true,
	404: true,
	410: true,
	451: true,
}

var unreachableMarkers = []string{
	"no such host",
	"err_name_not_resolved",
	"name not resolved",
	"connection refused",
	"err_connection_refused",
	"err_address_unreachable",
	"network is unreachable",
	"unreachable",
	"x509:",
	"certificate",
	"err_cert",
	"blocked",
	"forbidden",
	"access denied",
	"captcha",
	"robots.txt",
}

// ClassifyFailure decides from a scrape error whether the source looks unreachable
// or blocked, or whether the failure is worth retrying on the normal cadence.
// Timeouts, rate limits and server errors are transient.
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return FailureTransient
	}
	if errors.Is(err, fetcher.ErrJobTimeout) {
		return FailureTransient
	}

	msg := strings.ToLower(err.Error())

	if code := statusCode(msg); code != 0 {
		if unreachableStatus[code] {
			return FailureUnreachable
		}
		return FailureTransient
	}

	for _, marker := range unreachableMarkers {
		if strings.Contains(msg, marker) {
			return FailureUnreachable
		}
	}
	return FailureTransient
}

// statusCode extracts an HTTP status such as "HTTP 404" or "status: 503" from an error message.
func statusCode(msg string) int {
	m := statusPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	code, err := strconv.Atoi(m[1])
	if err != nil || code < 100 || code > 599 {
		return 0
	}
	return code
}
