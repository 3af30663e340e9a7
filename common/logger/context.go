package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Pipeline stages enrich the context once and every slog call below them carries
// profile_id, source_id and friends without passing them explicitly.
type LogFields struct {
	ProfileID *int64  // Monitoring profile being processed
	SourceID  *int64  // Data source being scraped
	ContentID *int64  // Raw extracted content row
	InsightID *int64  // AI insight row
	AlertID   *int64  // Alert row
	UserID    *int64  // Authenticated user
	JobID     *string // Content fetcher job id
	MessageID *string // Redis stream message ID
	Component string  // Component name, e.g. "sentinel.pipeline.orchestrator"
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.ProfileID != nil {
		result.ProfileID = next.ProfileID
	}
	if next.SourceID != nil {
		result.SourceID = next.SourceID
	}
	if next.ContentID != nil {
		result.ContentID = next.ContentID
	}
	if next.InsightID != nil {
		result.InsightID = next.InsightID
	}
	if next.AlertID != nil {
		result.AlertID = next.AlertID
	}
	if next.UserID != nil {
		result.UserID = next.UserID
	}
	if next.JobID != nil {
		result.JobID = next.JobID
	}
	if next.MessageID != nil {
		result.MessageID = next.MessageID
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{ProfileID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen bytes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
