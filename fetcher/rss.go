package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mmcdole/gofeed"

	"github.com/scipunch/subfeed/fetcher/types"
	"github.com/scipunch/subfeed/metrics"
)

const (
	DefaultURLTemplate = "https://www.youtube.com/feeds/videos.xml?channel_id=%s"
	DefaultTimeout     = 15 * time.Second

	maxBodySize = 10 << 20
)

// Options configure an RSSFetcher. Zero values fall back to defaults.
type Options struct {
	URLTemplate   string        // fmt template receiving the source id
	Timeout       time.Duration // deadline for one Fetch, retries included
	Retries       uint64        // extra attempts on 429, 5xx and connection errors
	RetryInterval time.Duration // first backoff interval
	HostInterval  time.Duration // minimum spacing between requests to one host, 0 disables
	UserAgent     string
	Client        *http.Client

	// OnParseFailure receives documents that could not be parsed.
	// Fetch still returns an empty slice and no error for them.
	OnParseFailure func(*ParseError)
}

// RSSFetcher downloads and parses per-source Atom/RSS feeds
type RSSFetcher struct {
	client  *http.Client
	limiter *HostRateLimiter
	opts    Options
}

// NewRSSFetcher creates a new feed fetcher
func NewRSSFetcher(opts Options) *RSSFetcher {
	if opts.URLTemplate == "" {
		opts.URLTemplate = DefaultURLTemplate
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "subfeed/1.0"
	}
	if opts.OnParseFailure == nil {
		opts.OnParseFailure = logParseFailure
	}

	f := &RSSFetcher{client: opts.Client, opts: opts}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if opts.HostInterval > 0 {
		f.limiter = NewHostRateLimiter(opts.HostInterval, 1)
	}
	return f
}

// FeedURL returns the upstream document location of a source
func (f *RSSFetcher) FeedURL(sourceID string) string {
	return fmt.Sprintf(f.opts.URLTemplate, sourceID)
}

// Fetch retrieves and parses the feed of a source.
// A malformed document yields a nil slice and a nil error.
func (f *RSSFetcher) Fetch(ctx context.Context, sourceID string) ([]types.FeedItem, error) {
	start := time.Now()
	defer func() {
		metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	body, err := f.download(ctx, sourceID, f.FeedURL(sourceID))
	if err != nil {
		metrics.FetchErrors.WithLabelValues(metrics.KindTransient).Inc()
		return nil, err
	}

	items, err := parseFeed(sourceID, body)
	if err != nil {
		metrics.FetchErrors.WithLabelValues(metrics.KindParse).Inc()
		f.opts.OnParseFailure(&ParseError{SourceID: sourceID, Err: err})
		return nil, nil
	}

	slog.Debug("feed fetched", "source", sourceID, "items", len(items), "took", time.Since(start))
	return items, nil
}

func (f *RSSFetcher) download(ctx context.Context, sourceID, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, &TransientFetchError{SourceID: sourceID, Err: err}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.opts.RetryInterval
	b.MaxElapsedTime = 0 // the context deadline bounds retries
	policy := backoff.WithContext(backoff.WithMaxRetries(b, f.opts.Retries), ctx)

	body, err := backoff.RetryWithData(func() ([]byte, error) {
		body, err := f.get(ctx, sourceID, req)
		var te *TransientFetchError
		if errors.As(err, &te) && !te.Retryable() {
			return nil, backoff.Permanent(err)
		}
		if err != nil {
			slog.Debug("feed request failed", "source", sourceID, "error", err)
		}
		return body, err
	}, policy)
	if err != nil {
		if !IsTransient(err) {
			err = &TransientFetchError{SourceID: sourceID, Err: err}
		}
		return nil, err
	}
	return body, nil
}

func (f *RSSFetcher) get(ctx context.Context, sourceID string, req *http.Request) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.WaitForHost(ctx, req.URL.String()); err != nil {
			return nil, &TransientFetchError{SourceID: sourceID, Err: err}
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransientFetchError{SourceID: sourceID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &TransientFetchError{
			SourceID:   sourceID,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransientFetchError{SourceID: sourceID, Err: err}
	}
	return body, nil
}

// parseFeed converts a raw document into items. Feed documents are untrusted,
// so anything declaring a DTD is refused before it reaches the XML decoder.
func parseFeed(sourceID string, body []byte) ([]types.FeedItem, error) {
	if bytes.Contains(body, []byte("<!DOCTYPE")) || bytes.Contains(body, []byte("<!ENTITY")) {
		return nil, errDTD
	}

	// gofeed parsers keep per-document state, one per call
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	items := make([]types.FeedItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		item, ok := toFeedItem(sourceID, entry)
		if !ok {
			slog.Debug("skipping incomplete feed entry", "source", sourceID, "guid", entry.GUID)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func logParseFailure(e *ParseError) {
	slog.Warn("feed document could not be parsed", "source", e.SourceID, "error", e.Err)
}
