// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package result

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// flexTime unmarshals a timestamp that may arrive as epoch seconds, epoch
// milliseconds or an RFC 3339 string, depending on which producer wrote
// the document.
type flexTime struct {
	time.Time
}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}

	var epoch int64
	if err := json.Unmarshal(data, &epoch); err == nil {
		f.Time = FromEpoch(epoch)
		return nil
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			f.Time = t
			return nil
		}
	}
	return nil // unparseable timestamps degrade to zero, not to a dropped hit
}

// epochMillisThreshold separates second from millisecond epochs; any value
// above it (~Nov 2286 in seconds) is treated as milliseconds.
const epochMillisThreshold = 1e12

// FromEpoch converts an integer epoch to a time, treating large values as
// milliseconds.
func FromEpoch(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	if v > epochMillisThreshold {
		return time.UnixMilli(v).UTC()
	}
	return time.Unix(v, 0).UTC()
}

// RelativeTime renders "now", "5m", "3h", "2d" or a short date for older
// timestamps.
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	case t.Year() == now.Year():
		return t.Format("Jan 2")
	default:
		return t.Format("Jan 2, 2006")
	}
}

// FormatCount renders counts the way clients display them: 999, 1.2K,
// 3.4M, 1.1B.
func FormatCount(n int64) string {
	switch {
	case n < 1000:
		return fmt.Sprintf("%d", n)
	case n < 1000000:
		return trimTrailingZero(fmt.Sprintf("%.1fK", float64(n)/1000))
	case n < 1000000000:
		return trimTrailingZero(fmt.Sprintf("%.1fM", float64(n)/1000000))
	default:
		return trimTrailingZero(fmt.Sprintf("%.1fB", float64(n)/1000000000))
	}
}

// trimTrailingZero turns "1.0K" into "1K".
func trimTrailingZero(s string) string {
	return strings.Replace(s, ".0", "", 1)
}

// Snippet trims content to at most max runes on a word boundary, adding
// an ellipsis when trimmed.
func Snippet(content string, max int) string {
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}

	cut := string(runes[:max])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}

var emTagRe = regexp.MustCompile(`</?em>`)

// StripHighlightTags removes the <em> markers the backend injects into
// highlight fragments.
func StripHighlightTags(s string) string {
	return emTagRe.ReplaceAllString(s, "")
}
