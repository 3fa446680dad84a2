package cache

import (
	"context"
	"time"

	"github.com/scipunch/subfeed/fetcher/types"
)

const keyPrefix = "feed:"

// Entry is one cached feed snapshot. Entries are replaced wholesale and
// must not be modified once handed to a Store.
type Entry struct {
	Items     []types.FeedItem
	ExpiresAt time.Time
}

// Live reports whether the entry is still fresh at now
func (e Entry) Live(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Store is the backing key-value service. Set receives the retention of the
// entry, which may exceed its logical expiry so stale data stays available.
// Get returns found=false on a miss; an error means the backend itself failed.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry, retention time.Duration) error
}

// Key returns the store key of a source
func Key(sourceID string) string {
	return keyPrefix + sourceID
}
