// Package aggregator merges per-source item lists into one timeline.
package aggregator

import (
	"cmp"
	"log/slog"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/scipunch/subfeed/fetcher/types"
	"github.com/scipunch/subfeed/filter"
	"github.com/scipunch/subfeed/metrics"
)

type Aggregator struct {
	shorts *filter.ShortForm
}

// New creates an aggregator excluding what shorts classifies as short-form.
// A nil filter uses the default rules.
func New(shorts *filter.ShortForm) *Aggregator {
	if shorts == nil {
		shorts = filter.Default()
	}
	return &Aggregator{shorts: shorts}
}

// Merge flattens lists, drops short-form items unless includeShorts is set
// and orders the result newest first. Inputs are left untouched.
func (a *Aggregator) Merge(lists [][]types.FeedItem, includeShorts bool) []types.FeedItem {
	items := lo.Flatten(lists)

	if !includeShorts {
		items = lo.Filter(items, func(item types.FeedItem, _ int) bool {
			include, reason := a.shorts.ShouldInclude(item)
			if !include {
				metrics.FilteredItems.WithLabelValues(ruleLabel(reason)).Inc()
				slog.Debug("item filtered out", "video", item.VideoID, "source", item.SourceID, "reason", reason)
			}
			return include
		})
	}

	slices.SortFunc(items, func(x, y types.FeedItem) int {
		return Compare(y, x)
	})
	return items
}

var defaultAggregator = New(nil)

// Merge runs Aggregator.Merge with the default short-form rules
func Merge(lists [][]types.FeedItem, includeShorts bool) []types.FeedItem {
	return defaultAggregator.Merge(lists, includeShorts)
}

// Compare orders items by (published epoch second, video id), with the
// source id breaking ties between copies of one video. Merge sorts by the
// reverse of it.
func Compare(x, y types.FeedItem) int {
	return cmp.Or(
		cmp.Compare(x.Published.Unix(), y.Published.Unix()),
		strings.Compare(x.VideoID, y.VideoID),
		strings.Compare(x.SourceID, y.SourceID),
	)
}

// ruleLabel strips the pattern from "title_pattern[...]" to keep label cardinality fixed
func ruleLabel(reason string) string {
	if i := strings.IndexByte(reason, '['); i >= 0 {
		return reason[:i]
	}
	return reason
}
