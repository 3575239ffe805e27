// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package query

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	nearRe     = regexp.MustCompile(`near:"([^"]+)"(?:\s+within:(\d+(?:\.\d+)?)km)?`)
	relativeRe = regexp.MustCompile(`^(\d+)([hdw])$`)
)

// Parse scans free text for operator tokens, moves them into filters, and
// returns a query whose Text is the residual free text collapsed to single
// spaces.
//
//	from:@alice #coffee since:2d min_likes:50 latte
//
// parses to text "latte" with from_user, a hashtag, a date bound and an
// engagement floor.
func Parse(text string, now time.Time) Query {
	var q Query

	// near:"place" within:Nkm spans whitespace, so it is cut out before
	// tokenization.
	if m := nearRe.FindStringSubmatch(text); m != nil {
		geo := &GeoFilter{Place: m[1], RadiusKM: 10}
		if m[2] != "" {
			if km, err := strconv.ParseFloat(m[2], 64); err == nil {
				geo.RadiusKM = km
			}
		}
		q.Filters.Geo = geo
		text = nearRe.ReplaceAllString(text, " ")
	}

	var residual []string
	for _, token := range strings.Fields(text) {
		if consumed := parseToken(&q, token, now); !consumed {
			residual = append(residual, token)
		}
	}

	q.Text = strings.Join(residual, " ")
	q.Normalize()
	return q
}

// parseToken applies one operator token to the query. Returns false when
// the token is plain text.
func parseToken(q *Query, token string, now time.Time) bool {
	switch {
	case strings.HasPrefix(token, "from:"):
		user := strings.TrimPrefix(token, "from:")
		user = strings.TrimPrefix(user, "@")
		if user != "" {
			q.Filters.FromUser = strings.ToLower(user)
		}
		return true

	case strings.HasPrefix(token, "@") && len(token) > 1:
		q.Filters.MentionedUsers = append(q.Filters.MentionedUsers, strings.ToLower(token[1:]))
		return true

	case strings.HasPrefix(token, "#") && len(token) > 1:
		q.Filters.Hashtags = append(q.Filters.Hashtags, strings.ToLower(token[1:]))
		return true

	case strings.HasPrefix(token, "-@") && len(token) > 2:
		q.Filters.ExcludedUsers = append(q.Filters.ExcludedUsers, strings.ToLower(token[2:]))
		return true

	case strings.HasPrefix(token, "-#") && len(token) > 2:
		q.Filters.ExcludedHashtags = append(q.Filters.ExcludedHashtags, strings.ToLower(token[2:]))
		return true

	case strings.HasPrefix(token, "since:"):
		if ts, ok := parseTime(strings.TrimPrefix(token, "since:"), now); ok {
			q.Filters.FromDate = ts
		}
		return true

	case strings.HasPrefix(token, "until:"):
		if ts, ok := parseTime(strings.TrimPrefix(token, "until:"), now); ok {
			q.Filters.ToDate = ts
		}
		return true

	case strings.HasPrefix(token, "min_likes:"):
		if n, err := strconv.ParseInt(strings.TrimPrefix(token, "min_likes:"), 10, 64); err == nil && n > 0 {
			q.Filters.MinLikes = n
		}
		return true

	case strings.HasPrefix(token, "min_renotes:"):
		if n, err := strconv.ParseInt(strings.TrimPrefix(token, "min_renotes:"), 10, 64); err == nil && n > 0 {
			q.Filters.MinReposts = n
		}
		return true

	case strings.HasPrefix(token, "lang:"):
		if code := strings.TrimPrefix(token, "lang:"); code != "" {
			q.Filters.Language = strings.ToLower(code)
		}
		return true

	case token == "has:media":
		q.Filters.HasMedia = true
		return true

	case token == "has:links":
		q.Filters.HasLinks = true
		return true

	case token == "is:verified":
		q.Filters.VerifiedOnly = true
		return true
	}
	return false
}

// parseTime accepts absolute YYYY-MM-DD[THH:MM:SS] or relative Nh/Nd/Nw.
func parseTime(s string, now time.Time) (time.Time, bool) {
	if m := relativeRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		var unit time.Duration
		switch m[2] {
		case "h":
			unit = time.Hour
		case "d":
			unit = 24 * time.Hour
		case "w":
			unit = 7 * 24 * time.Hour
		}
		return now.Add(-time.Duration(n) * unit), true
	}

	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// Canonical reconstructs an operator string from the query, filters first
// then residual text. Parsing the canonical form yields an equivalent
// query.
func (q *Query) Canonical() string {
	var parts []string
	f := &q.Filters

	if f.FromUser != "" {
		parts = append(parts, "from:@"+f.FromUser)
	}
	for _, u := range f.MentionedUsers {
		parts = append(parts, "@"+u)
	}
	for _, h := range f.Hashtags {
		parts = append(parts, "#"+h)
	}
	for _, u := range f.ExcludedUsers {
		parts = append(parts, "-@"+u)
	}
	for _, h := range f.ExcludedHashtags {
		parts = append(parts, "-#"+h)
	}
	if !f.FromDate.IsZero() {
		parts = append(parts, "since:"+f.FromDate.Format("2006-01-02T15:04:05"))
	}
	if !f.ToDate.IsZero() {
		parts = append(parts, "until:"+f.ToDate.Format("2006-01-02T15:04:05"))
	}
	if f.MinLikes > 0 {
		parts = append(parts, "min_likes:"+strconv.FormatInt(f.MinLikes, 10))
	}
	if f.MinReposts > 0 {
		parts = append(parts, "min_renotes:"+strconv.FormatInt(f.MinReposts, 10))
	}
	if f.Geo != nil && f.Geo.Place != "" {
		parts = append(parts, `near:"`+f.Geo.Place+`" within:`+strconv.FormatFloat(f.Geo.RadiusKM, 'f', -1, 64)+"km")
	}
	if f.Language != "" {
		parts = append(parts, "lang:"+f.Language)
	}
	if f.HasMedia {
		parts = append(parts, "has:media")
	}
	if f.HasLinks {
		parts = append(parts, "has:links")
	}
	if f.VerifiedOnly {
		parts = append(parts, "is:verified")
	}
	if q.Text != "" {
		parts = append(parts, q.Text)
	}
	return strings.Join(parts, " ")
}
