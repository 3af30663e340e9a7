package store

import (
	"cognito.app/sentinel/core/db"
)

type Stores struct {
	q db.Querier
}

func NewStores(q db.Querier) *Stores {
	return &Stores{q: q}
}

func (s *Stores) Users() UserStore {
	return newUserStore(s.q)
}

func (s *Stores) Sessions() SessionStore {
	return newSessionStore(s.q)
}

func (s *Stores) Profiles() ProfileStore {
	return newProfileStore(s.q)
}

func (s *Stores) Sources() SourceStore {
	return newSourceStore(s.q)
}

func (s *Stores) Contents() ContentStore {
	return newContentStore(s.q)
}

func (s *Stores) Insights() InsightStore {
	return newInsightStore(s.q)
}

func (s *Stores) Alerts() AlertStore {
	return newAlertStore(s.q)
}
