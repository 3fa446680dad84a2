// Package paginator slices the merged timeline into pages addressed by
// opaque cursors.
package paginator

import (
	"fmt"

	"github.com/scipunch/subfeed/fetcher/types"
	"github.com/scipunch/subfeed/metrics"
)

// Result is one page of the timeline
type Result struct {
	Items      []types.FeedItem `json:"items"`
	NextCursor *string          `json:"nextCursor"`
}

type LimitOutOfRangeError struct {
	Limit int
	Max   int
}

func (e *LimitOutOfRangeError) Error() string {
	return fmt.Sprintf("limit %d out of range [1, %d]", e.Limit, e.Max)
}

// Page sizes used when none are configured
const (
	DefaultLimit = 24
	MaxLimit     = 60
)

// Default is the paginator behind the package-level Page
var Default = New(DefaultLimit, MaxLimit)

type Paginator struct {
	MaxLimit     int
	DefaultLimit int
}

// New returns a paginator accepting limits in [1, maxLimit]
func New(defaultLimit, maxLimit int) Paginator {
	return Paginator{MaxLimit: maxLimit, DefaultLimit: defaultLimit}
}

// CheckLimit rejects limits outside [1, MaxLimit]
func (p Paginator) CheckLimit(limit int) error {
	if limit < 1 || limit > p.MaxLimit {
		return &LimitOutOfRangeError{Limit: limit, Max: p.MaxLimit}
	}
	return nil
}

// ResolveLimit returns *limit, or DefaultLimit when no limit was given.
// An explicit limit is returned unchanged, zero included, so CheckLimit
// can reject it.
func (p Paginator) ResolveLimit(limit *int) int {
	if limit == nil {
		return p.DefaultLimit
	}
	return *limit
}

// ParseCursor decodes token, treating an empty token as the first page
func (p Paginator) ParseCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	c, err := Decode(token)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Page returns up to limit items of sorted that follow cursor. A nil
// cursor starts at the beginning.
func (p Paginator) Page(sorted []types.FeedItem, cursor *Cursor, limit int) (Result, error) {
	if err := p.CheckLimit(limit); err != nil {
		return Result{}, err
	}

	remaining := sorted
	if cursor != nil {
		remaining = make([]types.FeedItem, 0, len(sorted))
		for _, item := range sorted {
			if cursor.After(item) {
				remaining = append(remaining, item)
			}
		}
	}

	res := Result{Items: make([]types.FeedItem, 0, min(limit, len(remaining)))}
	if len(remaining) > limit {
		res.Items = append(res.Items, remaining[:limit]...)
		next := Encode(CursorAt(res.Items[limit-1]))
		res.NextCursor = &next
	} else {
		res.Items = append(res.Items, remaining...)
	}

	metrics.PagesServed.Inc()
	return res, nil
}

// ParseAndPage decodes token and pages sorted. A nil limit selects DefaultLimit.
func (p Paginator) ParseAndPage(sorted []types.FeedItem, token string, limit *int) (Result, error) {
	cursor, err := p.ParseCursor(token)
	if err != nil {
		return Result{}, err
	}
	return p.Page(sorted, cursor, p.ResolveLimit(limit))
}

// Page pages sorted with the Default paginator, accepting limits in [1, MaxLimit]
func Page(sorted []types.FeedItem, cursor *Cursor, limit int) (Result, error) {
	return Default.Page(sorted, cursor, limit)
}
