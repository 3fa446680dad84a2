package fetcher

import (
	"github.com/scipunch/subfeed/config"
)

// FromConfig creates the feed fetcher described by the [fetch] section
func FromConfig(cfg config.FetchConfig) *RSSFetcher {
	return NewRSSFetcher(Options{
		URLTemplate:   cfg.URLTemplate,
		Timeout:       cfg.Timeout.Duration,
		Retries:       cfg.Retries,
		RetryInterval: cfg.RetryInterval.Duration,
		HostInterval:  cfg.HostInterval.Duration,
		UserAgent:     cfg.UserAgent,
	})
}
