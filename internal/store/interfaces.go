package store

import (
	"context"
	"errors"
	"time"

	"cognito.app/sentinel/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert hits a unique constraint
var ErrDuplicate = errors.New("duplicate")

// UserStore defines the contract for user data access
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// Upsert inserts or refreshes a user keyed by email.
	Upsert(ctx context.Context, user *model.User) error
}

// SessionStore defines the contract for session data access
type SessionStore interface {
	GetValid(ctx context.Context, id int64) (*model.Session, error) // checks expiry
	Create(ctx context.Context, session *model.Session) error
	Delete(ctx context.Context, id int64) error
	DeleteExpired(ctx context.Context) error
}

// ProfileStore defines the contract for monitoring profile data access
type ProfileStore interface {
	GetByID(ctx context.Context, id int64) (*model.MonitoringProfile, error)
	ListByUser(ctx context.Context, userID int64) ([]model.MonitoringProfile, error)
	Create(ctx context.Context, profile *model.MonitoringProfile) error
	Update(ctx context.Context, profile *model.MonitoringProfile) error
	Delete(ctx context.Context, id int64) error

	// ClaimDue leases up to limit active profiles whose last run is older than interval.
	// Rows claimed by another process are skipped.
	ClaimDue(ctx context.Context, interval, lease time.Duration, limit int) ([]model.MonitoringProfile, error)
	// MarkRun advances last_run_at (never backwards) and releases the claim.
	MarkRun(ctx context.Context, id int64, at time.Time) error
	ReleaseClaim(ctx context.Context, id int64) error
}

// SourceStore defines the contract for data source access
type SourceStore interface {
	GetByID(ctx context.Context, id int64) (*model.DataSource, error)
	ListByProfile(ctx context.Context, profileID int64) ([]model.DataSource, error)
	// ListDue returns active sources of a profile due at now, oldest due first.
	ListDue(ctx context.Context, profileID int64, now time.Time) ([]model.DataSource, error)
	Create(ctx context.Context, source *model.DataSource) error
	Update(ctx context.Context, source *model.DataSource) error
	Delete(ctx context.Context, id int64) error

	// RecordAttempt stamps a scrape attempt and the next due time. errMsg nil clears last_error.
	RecordAttempt(ctx context.Context, id int64, at, nextDue time.Time, errMsg *string) error
	MarkUnreachable(ctx context.Context, id int64, at, nextDue time.Time, errMsg string) error
}

// HashStatus is what the content table holds for one content hash.
type HashStatus struct {
	ContentID int64
	Exists    bool
	Enriched  bool
}

// ContentStore defines the contract for raw extracted content
type ContentStore interface {
	// Create returns ErrDuplicate when the content hash already exists.
	Create(ctx context.Context, content *model.RawContent) error
	// LookupHash reports whether hash is stored and whether an insight already references it.
	LookupHash(ctx context.Context, hash string) (HashStatus, error)
	GetByID(ctx context.Context, id int64) (*model.RawContent, error)
}

type InsightFilter struct {
	Flag   *model.Flag
	Limit  int
	Offset int
}

// InsightStore defines the contract for processed insights
type InsightStore interface {
	Create(ctx context.Context, insight *model.Insight) error
	GetByID(ctx context.Context, id int64) (*model.Insight, error)
	ListByProfile(ctx context.Context, profileID int64, filter InsightFilter) ([]model.Insight, error)
	// Similar ranks the profile's insights by cosine distance to embedding.
	Similar(ctx context.Context, profileID int64, embedding []float32, excludeID int64, limit int) ([]model.SimilarInsight, error)
}

type AlertFilter struct {
	Status   *model.AlertStatus
	Severity *model.Severity
	Limit    int
	Offset   int
}

// AlertStore defines the contract for alert data access
type AlertStore interface {
	Create(ctx context.Context, alert *model.Alert) error
	GetByID(ctx context.Context, id int64) (*model.Alert, error)
	ListByProfile(ctx context.Context, profileID int64, filter AlertFilter) ([]model.Alert, error)
	UpdateStatus(ctx context.Context, id int64, status model.AlertStatus, notes *string) (*model.Alert, error)
	CountNewBySeverity(ctx context.Context, profileID int64) (map[model.Severity]int, error)
}
