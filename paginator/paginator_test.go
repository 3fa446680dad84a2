package paginator

import (
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scipunch/subfeed/fetcher/types"
)

func item(id string, ts int64) types.FeedItem {
	return types.FeedItem{
		VideoID:   id,
		SourceID:  "UC1",
		Title:     "Video " + id,
		Link:      "https://www.youtube.com/watch?v=" + id,
		Published: time.Unix(ts, 0).UTC(),
	}
}

func ids(items []types.FeedItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.VideoID
	}
	return out
}

// timeline returns n items sorted newest first, with ties on every third timestamp
func timeline(n int) []types.FeedItem {
	items := make([]types.FeedItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, item(fmt.Sprintf("v%03d", n-i), int64(10_000-(i/3)*60)))
	}
	return items
}

func TestCursor_RoundTrip(t *testing.T) {
	for _, it := range []types.FeedItem{
		item("dQw4w9WgXcQ", 1705314600),
		item("a-b_c", 0),
		item("x", -86400),
	} {
		c, err := Decode(Encode(CursorAt(it)))
		require.NoError(t, err)
		assert.Equal(t, CursorVersion, c.Version)
		assert.Equal(t, it.Published.Unix(), c.Published)
		assert.Equal(t, it.VideoID, c.VideoID)
	}
}

func TestCursor_WireFormat(t *testing.T) {
	token := Encode(Cursor{Published: 90, VideoID: "v90"})

	assert.NotContains(t, token, "=")
	data, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ver":1,"t":90,"v":"v90"}`, string(data))
}

func TestDecode_AcceptsPaddedToken(t *testing.T) {
	token := base64.URLEncoding.EncodeToString([]byte(`{"ver":1,"t":5,"v":"abcd"}`))

	c, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "abcd", c.VideoID)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"not base64", "!!!not-a-cursor!!!"},
		{"not json", base64.RawURLEncoding.EncodeToString([]byte("garbage"))},
		{"unknown version", base64.RawURLEncoding.EncodeToString([]byte(`{"ver":2,"t":5,"v":"a"}`))},
		{"missing version", base64.RawURLEncoding.EncodeToString([]byte(`{"t":5,"v":"a"}`))},
		{"missing timestamp", base64.RawURLEncoding.EncodeToString([]byte(`{"ver":1,"v":"a"}`))},
		{"missing id", base64.RawURLEncoding.EncodeToString([]byte(`{"ver":1,"t":5}`))},
		{"wrong types", base64.RawURLEncoding.EncodeToString([]byte(`{"ver":1,"t":"5","v":"a"}`))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.token)
			var decodeErr *CursorDecodeError
			require.True(t, errors.As(err, &decodeErr), "got %v", err)
			assert.Equal(t, tt.token, decodeErr.Token)
		})
	}
}

func TestPage_ConcreteScenario(t *testing.T) {
	merged := []types.FeedItem{item("100", 100), item("95", 95), item("90", 90), item("80", 80), item("70", 70)}
	p := New(24, 60)

	first, err := p.Page(merged, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "95", "90"}, ids(first.Items))
	require.NotNil(t, first.NextCursor)
	assert.Equal(t, Encode(CursorAt(merged[2])), *first.NextCursor)

	cursor, err := Decode(*first.NextCursor)
	require.NoError(t, err)
	second, err := p.Page(merged, &cursor, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"80", "70"}, ids(second.Items))
	assert.Nil(t, second.NextCursor)
}

func TestPage_Completeness(t *testing.T) {
	for _, m := range []int{0, 1, 7, 24, 25, 100} {
		for _, n := range []int{1, 3, 24, 60} {
			t.Run(fmt.Sprintf("M=%d/N=%d", m, n), func(t *testing.T) {
				merged := timeline(m)
				p := New(24, 60)

				seen := []string{}
				token := ""
				for pages := 0; ; pages++ {
					require.LessOrEqual(t, pages, m+1, "pagination does not terminate")
					res, err := p.ParseAndPage(merged, token, &n)
					require.NoError(t, err)
					require.LessOrEqual(t, len(res.Items), n)
					seen = append(seen, ids(res.Items)...)
					if res.NextCursor == nil {
						break
					}
					token = *res.NextCursor
				}

				assert.Equal(t, ids(merged), seen)
			})
		}
	}
}

func TestPage_NewItemsDoNotShiftLaterPages(t *testing.T) {
	merged := []types.FeedItem{item("100", 100), item("90", 90), item("80", 80), item("70", 70)}
	p := New(24, 60)

	first, err := p.Page(merged, nil, 2)
	require.NoError(t, err)

	// A newer item arrives between requests
	updated := append([]types.FeedItem{item("110", 110)}, merged...)
	limit := 2
	second, err := p.ParseAndPage(updated, *first.NextCursor, &limit)
	require.NoError(t, err)
	assert.Equal(t, []string{"80", "70"}, ids(second.Items))
}

func TestPage_EmptyInput(t *testing.T) {
	res, err := New(24, 60).Page(nil, nil, 10)
	require.NoError(t, err)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
	assert.Nil(t, res.NextCursor)
}

func TestPage_LimitOutOfRange(t *testing.T) {
	p := New(24, 60)
	merged := timeline(5)

	for _, limit := range []int{-1, 0, 61, 1000} {
		_, err := p.Page(merged, nil, limit)
		var limitErr *LimitOutOfRangeError
		require.True(t, errors.As(err, &limitErr), "limit %d: got %v", limit, err)
		assert.Equal(t, limit, limitErr.Limit)
		assert.Equal(t, 60, limitErr.Max)
	}

	for _, limit := range []int{1, 60} {
		_, err := p.Page(merged, nil, limit)
		assert.NoError(t, err)
	}
}

func TestParseAndPage(t *testing.T) {
	p := New(2, 60)
	merged := timeline(5)

	res, err := p.ParseAndPage(merged, "", nil)
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)

	zero := 0
	_, err = p.ParseAndPage(merged, "", &zero)
	var limitErr *LimitOutOfRangeError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, 0, limitErr.Limit)

	three := 3
	_, err = p.ParseAndPage(merged, "bogus", &three)
	var decodeErr *CursorDecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestResolveLimit(t *testing.T) {
	p := New(24, 60)
	zero, ten := 0, 10
	assert.Equal(t, 24, p.ResolveLimit(nil))
	assert.Equal(t, 0, p.ResolveLimit(&zero))
	assert.Equal(t, 10, p.ResolveLimit(&ten))
}

func TestPackagePage(t *testing.T) {
	res, err := Page(timeline(5), nil, 5)
	require.NoError(t, err)
	assert.Len(t, res.Items, 5)
	assert.Nil(t, res.NextCursor)

	_, err = Page(timeline(5), nil, 0)
	assert.Error(t, err)

	res, err = Page(timeline(MaxLimit+5), nil, MaxLimit)
	require.NoError(t, err)
	assert.Len(t, res.Items, MaxLimit)

	_, err = Page(timeline(MaxLimit+5), nil, MaxLimit+1)
	var limitErr *LimitOutOfRangeError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, MaxLimit, limitErr.Max)
}
