// Package feed assembles a user's timeline from the cached feeds of their
// subscribed sources.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/scipunch/subfeed/aggregator"
	"github.com/scipunch/subfeed/fetcher/types"
	"github.com/scipunch/subfeed/paginator"
)

// DefaultConcurrency caps simultaneous source lookups per request
const DefaultConcurrency = 8

// ItemSource returns the current items of one source, usually through the cache
type ItemSource interface {
	Get(ctx context.Context, sourceID string) ([]types.FeedItem, error)
}

// SourceLister resolves the active subscriptions of a user
type SourceLister interface {
	ListActiveSourceIDs(ctx context.Context, userID string) ([]string, error)
}

type Options struct {
	Concurrency   int
	IncludeShorts bool // default for GetUserFeed
}

type Service struct {
	items      ItemSource
	sources    SourceLister
	aggregator *aggregator.Aggregator
	pager      paginator.Paginator
	opts       Options
}

func NewService(items ItemSource, sources SourceLister, agg *aggregator.Aggregator, pager paginator.Paginator, opts Options) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if agg == nil {
		agg = aggregator.New(nil)
	}
	return &Service{
		items:      items,
		sources:    sources,
		aggregator: agg,
		pager:      pager,
		opts:       opts,
	}
}

// GetFeed returns one page of the merged timeline of sourceIDs. Cursor and
// limit are validated before any source is looked up; a failing source
// contributes nothing instead of failing the page.
func (s *Service) GetFeed(ctx context.Context, sourceIDs []string, cursorToken string, limit int, includeShorts bool) (paginator.Result, error) {
	cursor, err := s.pager.ParseCursor(cursorToken)
	if err != nil {
		return paginator.Result{}, err
	}
	if err := s.pager.CheckLimit(limit); err != nil {
		return paginator.Result{}, err
	}

	lists := s.collect(ctx, lo.Uniq(sourceIDs))
	merged := s.aggregator.Merge(lists, includeShorts)
	return s.pager.Page(merged, cursor, limit)
}

// GetUserFeed pages the timeline of userID's active subscriptions. A non-empty
// channelID narrows it to that subscription. A nil limit selects the
// paginator's default.
func (s *Service) GetUserFeed(ctx context.Context, userID, channelID, cursorToken string, limitArg *int) (paginator.Result, error) {
	limit := s.pager.ResolveLimit(limitArg)
	if _, err := s.pager.ParseCursor(cursorToken); err != nil {
		return paginator.Result{}, err
	}
	if err := s.pager.CheckLimit(limit); err != nil {
		return paginator.Result{}, err
	}

	sourceIDs, err := s.sources.ListActiveSourceIDs(ctx, userID)
	if err != nil {
		return paginator.Result{}, fmt.Errorf("failed to list subscriptions of %s with %w", userID, err)
	}

	if channelID != "" {
		if !slices.Contains(sourceIDs, channelID) {
			slog.Debug("channel filter outside subscriptions", "user", userID, "channel", channelID)
			sourceIDs = nil
		} else {
			sourceIDs = []string{channelID}
		}
	}

	return s.GetFeed(ctx, sourceIDs, cursorToken, limit, s.opts.IncludeShorts)
}

func (s *Service) collect(ctx context.Context, sourceIDs []string) [][]types.FeedItem {
	lists := make([][]types.FeedItem, len(sourceIDs))

	var (
		mu       sync.Mutex
		failures []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, id := range sourceIDs {
		g.Go(func() error {
			items, err := s.items.Get(gctx, id)
			if err != nil {
				mu.Lock()
				failures = append(failures, fmt.Errorf("%s: %w", id, err))
				mu.Unlock()
				return nil
			}
			lists[i] = items
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) > 0 {
		slog.Warn("sources skipped",
			"failed", len(failures),
			"total", len(sourceIDs),
			"error", errors.Join(failures...),
		)
	}

	return lists
}
