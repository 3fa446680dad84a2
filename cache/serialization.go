package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/scipunch/subfeed/fetcher/types"
)

const entryVersion = 1

// cachedEntry is the stored form of an Entry
type cachedEntry struct {
	Version   int              `json:"version"`
	ExpiresAt time.Time        `json:"expires_at"`
	Items     []types.FeedItem `json:"items"`
}

// SerializeEntry converts an Entry to JSON bytes
func SerializeEntry(entry Entry) ([]byte, error) {
	items := entry.Items
	if items == nil {
		items = []types.FeedItem{}
	}
	data, err := json.Marshal(cachedEntry{
		Version:   entryVersion,
		ExpiresAt: entry.ExpiresAt.UTC(),
		Items:     items,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	return data, nil
}

// DeserializeEntry converts JSON bytes back to an Entry
func DeserializeEntry(data []byte) (Entry, error) {
	var cached cachedEntry
	if err := json.Unmarshal(data, &cached); err != nil {
		return Entry{}, fmt.Errorf("failed to unmarshal cached entry: %w", err)
	}

	if cached.Version != entryVersion {
		return Entry{}, fmt.Errorf("cache entry version mismatch: cached=%d, expected=%d", cached.Version, entryVersion)
	}

	return Entry{Items: cached.Items, ExpiresAt: cached.ExpiresAt}, nil
}
