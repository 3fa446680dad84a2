package types

import (
	"context"
	"encoding/json"
	"time"
)

// FeedItem is a single video entry of a source's feed
type FeedItem struct {
	VideoID   string
	SourceID  string
	Title     string
	Link      string
	Published time.Time
	Duration  time.Duration // Zero when the feed does not carry it
}

// HasDuration reports whether duration metadata was present in the feed
func (i FeedItem) HasDuration() bool {
	return i.Duration > 0
}

type wireItem struct {
	VideoID         string    `json:"sourceVideoId"`
	SourceID        string    `json:"sourceId"`
	Title           string    `json:"title"`
	Link            string    `json:"canonicalLink"`
	Published       time.Time `json:"publishedAt"`
	DurationSeconds int64     `json:"durationSeconds,omitempty"`
}

func (i FeedItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireItem{
		VideoID:         i.VideoID,
		SourceID:        i.SourceID,
		Title:           i.Title,
		Link:            i.Link,
		Published:       i.Published,
		DurationSeconds: int64(i.Duration / time.Second),
	})
}

func (i *FeedItem) UnmarshalJSON(data []byte) error {
	var w wireItem
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*i = FeedItem{
		VideoID:   w.VideoID,
		SourceID:  w.SourceID,
		Title:     w.Title,
		Link:      w.Link,
		Published: w.Published,
		Duration:  time.Duration(w.DurationSeconds) * time.Second,
	}
	return nil
}

// FeedFetcher retrieves the current items of one source. A nil slice with a
// nil error means the document could not be parsed; a feed without entries
// yields an empty non-nil slice.
type FeedFetcher interface {
	Fetch(ctx context.Context, sourceID string) ([]FeedItem, error)
}
