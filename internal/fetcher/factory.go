package fetcher

import (
	"fmt"

	"cognito.app/sentinel/core/config"
)

// New builds the provider selected by cfg.Provider.
func New(cfg config.FetcherConfig, maxResults int) (Provider, error) {
	switch cfg.Provider {
	case "", "browser":
		return NewBrowser(BrowserConfig{
			Headless:       cfg.Headless,
			UserAgent:      cfg.UserAgent,
			MaxConcurrent:  cfg.MaxConcurrent,
			PageTimeout:    cfg.PageTimeout,
			SearchURL:      cfg.SearchURL,
			RequestTimeout: cfg.RequestTimeout,
			MaxResults:     maxResults,
		}), nil
	case "api":
		if cfg.APIBaseURL == "" {
			return nil, fmt.Errorf("fetcher api base url is required")
		}
		return NewAPI(APIConfig{
			BaseURL:    cfg.APIBaseURL,
			APIKey:     cfg.APIKey,
			Timeout:    cfg.RequestTimeout,
			MaxResults: maxResults,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported fetcher provider: %s", cfg.Provider)
	}
}
