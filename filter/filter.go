package filter

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/scipunch/subfeed/config"
	"github.com/scipunch/subfeed/fetcher/types"
)

// Rule names reported as the exclusion reason
const (
	RuleLinkMarker   = "link_marker"
	RuleMinDuration  = "min_duration"
	RuleTitlePattern = "title_pattern"
)

// ShortForm recognises short-form videos. Its rules are OR'd: a single
// match is enough to exclude an item.
type ShortForm struct {
	linkMarker    string
	minDuration   time.Duration
	titlePatterns []*regexp.Regexp
	rawPatterns   []string
}

// NewShortForm compiles the configured rules. Invalid regex patterns are
// logged and skipped.
func NewShortForm(cfg config.ShortFormFilter) *ShortForm {
	sf := &ShortForm{
		linkMarker:    strings.ToLower(cfg.LinkMarker),
		minDuration:   cfg.MinDuration.Duration,
		titlePatterns: make([]*regexp.Regexp, 0, len(cfg.TitlePatterns)),
		rawPatterns:   make([]string, 0, len(cfg.TitlePatterns)),
	}

	for _, pattern := range cfg.TitlePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			slog.Warn("invalid regex pattern in short-form filter", "pattern", pattern, "error", err)
			continue
		}
		sf.titlePatterns = append(sf.titlePatterns, re)
		sf.rawPatterns = append(sf.rawPatterns, pattern)
	}

	return sf
}

// Default returns the filter built from config.Default()
func Default() *ShortForm {
	return NewShortForm(config.Default().Filter)
}

// ShouldInclude returns false and the matching rule when item is short-form
func (sf *ShortForm) ShouldInclude(item types.FeedItem) (bool, string) {
	// 1. Link marker, e.g. "/shorts/"
	if sf.linkMarker != "" && strings.Contains(strings.ToLower(item.Link), sf.linkMarker) {
		return false, RuleLinkMarker
	}

	// 2. Duration, only when the feed carried one
	if sf.minDuration > 0 && item.HasDuration() && item.Duration < sf.minDuration {
		return false, RuleMinDuration
	}

	// 3. Title heuristics
	for i, pattern := range sf.titlePatterns {
		if pattern.MatchString(item.Title) {
			return false, RuleTitlePattern + "[" + sf.rawPatterns[i] + "]"
		}
	}

	return true, ""
}

// IsShort is the negation of ShouldInclude without the reason
func (sf *ShortForm) IsShort(item types.FeedItem) bool {
	include, _ := sf.ShouldInclude(item)
	return !include
}
