package service

import (
	"cognito.app/sentinel/internal/store"
)

type Services struct {
	stores   *store.Stores
	txRunner TxRunner
	identity IdentityProvider
	tokens   *TokenIssuer
}

func NewServices(stores *store.Stores, txRunner TxRunner, identity IdentityProvider, tokens *TokenIssuer) *Services {
	return &Services{
		stores:   stores,
		txRunner: txRunner,
		identity: identity,
		tokens:   tokens,
	}
}

func (s *Services) Auth() AuthService {
	return NewAuthService(s.stores.Users(), s.stores.Sessions(), s.identity, s.tokens)
}

func (s *Services) Users() UserService {
	return NewUserService(s.stores.Users())
}

func (s *Services) Profiles() ProfileService {
	return NewProfileService(s.stores.Profiles(), s.txRunner)
}

func (s *Services) Sources() SourceService {
	return NewSourceService(s.stores.Profiles(), s.stores.Sources())
}

func (s *Services) Insights() InsightService {
	return NewInsightService(s.stores.Profiles(), s.stores.Insights())
}

func (s *Services) Alerts() AlertService {
	return NewAlertService(s.stores.Profiles(), s.stores.Alerts())
}

func (s *Services) Dashboard() DashboardService {
	return NewDashboardService(s.stores.Profiles(), s.stores.Alerts(), s.stores.Insights())
}
