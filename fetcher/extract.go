package fetcher

import (
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/scipunch/subfeed/fetcher/types"
)

const youtubeGUIDPrefix = "yt:video:"

// toFeedItem extracts the consumed fields of an entry.
// Entries lacking any of id, title, link or timestamp are rejected.
func toFeedItem(sourceID string, entry *gofeed.Item) (types.FeedItem, bool) {
	if entry == nil {
		return types.FeedItem{}, false
	}

	item := types.FeedItem{
		VideoID:  videoID(entry),
		SourceID: sourceID,
		Title:    strings.TrimSpace(entry.Title),
		Link:     entry.Link,
		Duration: duration(entry),
	}
	if item.Link == "" && len(entry.Links) > 0 {
		item.Link = entry.Links[0]
	}

	switch {
	case entry.PublishedParsed != nil:
		item.Published = *entry.PublishedParsed
	case entry.UpdatedParsed != nil:
		item.Published = *entry.UpdatedParsed
	default:
		return item, false
	}

	if item.VideoID == "" || item.Title == "" || item.Link == "" {
		return item, false
	}
	return item, true
}

func videoID(entry *gofeed.Item) string {
	for _, e := range entry.Extensions["yt"]["videoId"] {
		if v := strings.TrimSpace(e.Value); v != "" {
			return v
		}
	}
	return strings.TrimPrefix(strings.TrimSpace(entry.GUID), youtubeGUIDPrefix)
}

// duration looks at itunes:duration and media:content@duration, the two
// places feeds commonly carry a running time.
func duration(entry *gofeed.Item) time.Duration {
	if entry.ITunesExt != nil {
		if d, ok := parseClock(entry.ITunesExt.Duration); ok {
			return d
		}
	}

	media := entry.Extensions["media"]
	for _, group := range media["group"] {
		for _, content := range group.Children["content"] {
			if d, ok := parseClock(content.Attrs["duration"]); ok {
				return d
			}
		}
	}
	for _, content := range media["content"] {
		if d, ok := parseClock(content.Attrs["duration"]); ok {
			return d
		}
	}
	return 0
}

// parseClock accepts "SS", "MM:SS" and "HH:MM:SS"
func parseClock(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, false
	}
	var seconds int64
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, false
		}
		seconds = seconds*60 + n
	}
	if seconds == 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}
