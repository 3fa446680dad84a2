package paginator

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/scipunch/subfeed/fetcher/types"
)

// CursorVersion is the payload version written by Encode
const CursorVersion = 1

// Cursor marks the last item a caller has seen
type Cursor struct {
	Version   int
	Published int64 // epoch seconds
	VideoID   string
}

type cursorPayload struct {
	Version   int    `json:"ver"`
	Published *int64 `json:"t"`
	VideoID   string `json:"v"`
}

// CursorDecodeError reports a token that is not a cursor produced by Encode
type CursorDecodeError struct {
	Token string
	Err   error
}

func (e *CursorDecodeError) Error() string {
	return fmt.Sprintf("invalid cursor %q: %v", e.Token, e.Err)
}

func (e *CursorDecodeError) Unwrap() error {
	return e.Err
}

// CursorAt returns the cursor positioned on item
func CursorAt(item types.FeedItem) Cursor {
	return Cursor{
		Version:   CursorVersion,
		Published: item.Published.Unix(),
		VideoID:   item.VideoID,
	}
}

// Encode serializes c as unpadded base64url JSON
func Encode(c Cursor) string {
	published := c.Published
	data, _ := json.Marshal(cursorPayload{
		Version:   CursorVersion,
		Published: &published,
		VideoID:   c.VideoID,
	})
	return base64.RawURLEncoding.EncodeToString(data)
}

// Decode parses a token produced by Encode. Padded tokens are accepted.
func Decode(token string) (Cursor, error) {
	fail := func(err error) (Cursor, error) {
		return Cursor{}, &CursorDecodeError{Token: token, Err: err}
	}

	if token == "" {
		return fail(errors.New("empty token"))
	}

	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return fail(fmt.Errorf("failed to decode base64 with %w", err))
	}

	var p cursorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fail(fmt.Errorf("failed to decode payload with %w", err))
	}

	switch {
	case p.Version != CursorVersion:
		return fail(fmt.Errorf("unsupported version %d", p.Version))
	case p.Published == nil:
		return fail(errors.New("missing timestamp"))
	case p.VideoID == "":
		return fail(errors.New("missing video id"))
	}

	return Cursor{Version: p.Version, Published: *p.Published, VideoID: p.VideoID}, nil
}

// After reports whether item sorts strictly below c, i.e. the caller has not seen it yet
func (c Cursor) After(item types.FeedItem) bool {
	t := item.Published.Unix()
	if t != c.Published {
		return t < c.Published
	}
	return item.VideoID < c.VideoID
}
