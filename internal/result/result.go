// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

// Package result decodes backend search responses into typed records and
// applies the viewer-dependent post-processing pass (content gating,
// suspended-account removal, mixed-result reordering).
package result

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// NoteResult is one decoded note hit.
type NoteResult struct {
	ID          string   `json:"id"`
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	Content     string   `json:"content"`
	Snippet     string   `json:"snippet,omitempty"`
	Hashtags    []string `json:"hashtags,omitempty"`
	Mentions    []string `json:"mentions,omitempty"`
	MediaURLs   []string `json:"media_urls,omitempty"`
	Language    string   `json:"language,omitempty"`

	NSFW            bool `json:"nsfw"`
	Sensitive       bool `json:"sensitive"`
	AuthorVerified  bool `json:"author_verified"`
	AuthorSuspended bool `json:"author_suspended"`

	Likes   int64 `json:"likes"`
	Reposts int64 `json:"reposts"`
	Replies int64 `json:"replies"`

	// Display helpers.
	LikesDisplay   string `json:"likes_display,omitempty"`
	RepostsDisplay string `json:"reposts_display,omitempty"`
	RelativeTime   string `json:"relative_time,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	Score      float64             `json:"score"`
	Highlights map[string][]string `json:"highlights,omitempty"`
}

// UserResult is one decoded user hit.
type UserResult struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Location    string `json:"location,omitempty"`

	Verified  bool `json:"verified"`
	Suspended bool `json:"suspended"`
	Deleted   bool `json:"deleted"`

	Followers        int64   `json:"followers"`
	FollowersDisplay string  `json:"followers_display,omitempty"`
	Reputation       float64 `json:"reputation"`

	LastActiveAt time.Time `json:"last_active_at"`
	RelativeTime string    `json:"relative_time,omitempty"`

	Score      float64             `json:"score"`
	Highlights map[string][]string `json:"highlights,omitempty"`
}

// HashtagResult is one decoded hashtag hit.
type HashtagResult struct {
	Tag          string    `json:"tag"`
	UsageCount   int64     `json:"usage_count"`
	Usage24h     int64     `json:"usage_24h"`
	Velocity     float64   `json:"velocity"`
	CountDisplay string    `json:"count_display,omitempty"`
	LastSeenAt   time.Time `json:"last_seen_at"`
	Score        float64   `json:"score"`
}

// Suggestion is one typeahead entry.
type Suggestion struct {
	Text   string `json:"text"`
	Kind   string `json:"kind,omitempty"` // query, hashtag, user
	Weight int64  `json:"weight,omitempty"`
}

// Aggregation is a decoded bucket aggregation.
type Aggregation struct {
	Buckets []AggregationBucket `json:"buckets"`
}

// AggregationBucket is one key/count pair.
type AggregationBucket struct {
	Key   string `json:"key"`
	Count int64  `json:"doc_count"`
}

// MixedRef addresses one record in a SearchResult by type and position,
// so mixed searches keep a single cross-type ordering without duplicating
// the records themselves.
type MixedRef struct {
	Type  string `json:"type"` // note, user, hashtag
	Index int    `json:"index"`
}

// SearchResult is a decoded backend response.
type SearchResult struct {
	Notes    []NoteResult    `json:"notes,omitempty"`
	Users    []UserResult    `json:"users,omitempty"`
	Hashtags []HashtagResult `json:"hashtags,omitempty"`

	// Mixed is the cross-type ordering: backend hit order after Decode,
	// score-descending after PostProcess.
	Mixed []MixedRef `json:"mixed,omitempty"`

	Aggregations map[string]Aggregation `json:"aggregations,omitempty"`

	TotalHits int64         `json:"total_hits"`
	Took      time.Duration `json:"took"`
	TimedOut  bool          `json:"timed_out"`
}

// Empty reports whether the result carries no records.
func (r *SearchResult) Empty() bool {
	return len(r.Notes) == 0 && len(r.Users) == 0 && len(r.Hashtags) == 0
}

// Len returns the total record count across types.
func (r *SearchResult) Len() int {
	return len(r.Notes) + len(r.Users) + len(r.Hashtags)
}

// rawResponse mirrors the backend's search response envelope.
type rawResponse struct {
	Took     int64 `json:"took"`
	TimedOut bool  `json:"timed_out"`
	Hits     struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []rawHit `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]struct {
		Buckets []struct {
			Key      any   `json:"key"`
			DocCount int64 `json:"doc_count"`
		} `json:"buckets"`
	} `json:"aggregations"`
}

type rawHit struct {
	Index     string              `json:"_index"`
	ID        string              `json:"_id"`
	Score     float64             `json:"_score"`
	Source    json.RawMessage     `json:"_source"`
	Highlight map[string][]string `json:"highlight"`
}

// Decode parses a raw backend response. The record type of each hit is
// inferred from its index name.
func Decode(raw []byte, now time.Time) (*SearchResult, error) {
	var resp rawResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("result: decode response: %w", err)
	}

	out := &SearchResult{
		TotalHits: resp.Hits.Total.Value,
		Took:      time.Duration(resp.Took) * time.Millisecond,
		TimedOut:  resp.TimedOut,
	}

	for _, hit := range resp.Hits.Hits {
		switch {
		case strings.Contains(hit.Index, "notes"):
			n, err := decodeNote(hit, now)
			if err != nil {
				continue
			}
			out.Notes = append(out.Notes, n)
			out.Mixed = append(out.Mixed, MixedRef{Type: "note", Index: len(out.Notes) - 1})
		case strings.Contains(hit.Index, "users"):
			u, err := decodeUser(hit, now)
			if err != nil {
				continue
			}
			out.Users = append(out.Users, u)
			out.Mixed = append(out.Mixed, MixedRef{Type: "user", Index: len(out.Users) - 1})
		case strings.Contains(hit.Index, "hashtags"):
			h, err := decodeHashtag(hit)
			if err != nil {
				continue
			}
			out.Hashtags = append(out.Hashtags, h)
			out.Mixed = append(out.Mixed, MixedRef{Type: "hashtag", Index: len(out.Hashtags) - 1})
		}
	}

	if len(resp.Aggregations) > 0 {
		out.Aggregations = make(map[string]Aggregation, len(resp.Aggregations))
		for name, agg := range resp.Aggregations {
			a := Aggregation{}
			for _, b := range agg.Buckets {
				a.Buckets = append(a.Buckets, AggregationBucket{
					Key:   fmt.Sprintf("%v", b.Key),
					Count: b.DocCount,
				})
			}
			out.Aggregations[name] = a
		}
	}

	return out, nil
}

func decodeNote(hit rawHit, now time.Time) (NoteResult, error) {
	var src struct {
		ID          string   `json:"id"`
		UserID      string   `json:"user_id"`
		Username    string   `json:"username"`
		DisplayName string   `json:"display_name"`
		Content     string   `json:"content"`
		Hashtags    []string `json:"hashtags"`
		Mentions    []string `json:"mentions"`
		MediaURLs   []string `json:"media_urls"`
		Language    string   `json:"language"`
		NSFW        bool     `json:"nsfw"`
		Sensitive   bool     `json:"sensitive"`
		CreatedAt   flexTime `json:"created_at"`
		Metrics     struct {
			Likes   int64 `json:"likes"`
			Reposts int64 `json:"reposts"`
			Replies int64 `json:"replies"`
		} `json:"metrics"`
		Author struct {
			Verified bool `json:"verified"`
		} `json:"author"`
		AuthorSuspended bool `json:"author_suspended"`
	}
	if err := json.Unmarshal(hit.Source, &src); err != nil {
		return NoteResult{}, err
	}

	created := src.CreatedAt.Time
	n := NoteResult{
		ID:              firstNonEmpty(src.ID, hit.ID),
		UserID:          src.UserID,
		Username:        src.Username,
		DisplayName:     src.DisplayName,
		Content:         src.Content,
		Snippet:         Snippet(src.Content, 200),
		Hashtags:        src.Hashtags,
		Mentions:        src.Mentions,
		MediaURLs:       src.MediaURLs,
		Language:        src.Language,
		NSFW:            src.NSFW,
		Sensitive:       src.Sensitive,
		AuthorVerified:  src.Author.Verified,
		AuthorSuspended: src.AuthorSuspended,
		Likes:           src.Metrics.Likes,
		Reposts:         src.Metrics.Reposts,
		Replies:         src.Metrics.Replies,
		LikesDisplay:    FormatCount(src.Metrics.Likes),
		RepostsDisplay:  FormatCount(src.Metrics.Reposts),
		CreatedAt:       created,
		RelativeTime:    RelativeTime(created, now),
		Score:           hit.Score,
		Highlights:      hit.Highlight,
	}
	return n, nil
}

func decodeUser(hit rawHit, now time.Time) (UserResult, error) {
	var src struct {
		ID           string  `json:"id"`
		Username     string  `json:"username"`
		DisplayName  string  `json:"display_name"`
		Bio          string  `json:"bio"`
		AvatarURL    string  `json:"avatar_url"`
		Location     string  `json:"location"`
		IsVerified   bool     `json:"is_verified"`
		Status       string   `json:"status"`
		Reputation   float64  `json:"reputation"`
		LastActiveAt flexTime `json:"last_active_at"`
		Metrics      struct {
			Followers int64 `json:"followers"`
		} `json:"metrics"`
	}
	if err := json.Unmarshal(hit.Source, &src); err != nil {
		return UserResult{}, err
	}

	lastActive := src.LastActiveAt.Time
	u := UserResult{
		ID:               firstNonEmpty(src.ID, hit.ID),
		Username:         src.Username,
		DisplayName:      src.DisplayName,
		Bio:              src.Bio,
		AvatarURL:        src.AvatarURL,
		Location:         src.Location,
		Verified:         src.IsVerified,
		Suspended:        src.Status == "suspended",
		Deleted:          src.Status == "deleted",
		Followers:        src.Metrics.Followers,
		FollowersDisplay: FormatCount(src.Metrics.Followers),
		Reputation:       src.Reputation,
		LastActiveAt:     lastActive,
		RelativeTime:     RelativeTime(lastActive, now),
		Score:            hit.Score,
		Highlights:       hit.Highlight,
	}
	return u, nil
}

func decodeHashtag(hit rawHit) (HashtagResult, error) {
	var src struct {
		Tag        string   `json:"tag"`
		UsageCount int64    `json:"usage_count"`
		Usage24h   int64    `json:"usage_24h"`
		Velocity   float64  `json:"velocity"`
		LastSeenAt flexTime `json:"last_seen_at"`
	}
	if err := json.Unmarshal(hit.Source, &src); err != nil {
		return HashtagResult{}, err
	}
	return HashtagResult{
		Tag:          src.Tag,
		UsageCount:   src.UsageCount,
		Usage24h:     src.Usage24h,
		Velocity:     src.Velocity,
		CountDisplay: FormatCount(src.UsageCount),
		LastSeenAt:   src.LastSeenAt.Time,
		Score:        hit.Score,
	}, nil
}

// Viewer is what post-processing needs to know about the requester.
type Viewer struct {
	Authenticated bool
}

// PostProcess applies the viewer gate and final ordering in place:
// anonymous viewers never see NSFW notes, suspended or deleted accounts
// are dropped everywhere, and mixed results are reordered by score.
func PostProcess(r *SearchResult, v Viewer) {
	notes := r.Notes[:0]
	for _, n := range r.Notes {
		if n.AuthorSuspended {
			continue
		}
		if !v.Authenticated && n.NSFW {
			continue
		}
		notes = append(notes, n)
	}
	r.Notes = notes

	users := r.Users[:0]
	for _, u := range r.Users {
		if u.Suspended || u.Deleted {
			continue
		}
		users = append(users, u)
	}
	r.Users = users

	sort.SliceStable(r.Notes, func(i, j int) bool { return r.Notes[i].Score > r.Notes[j].Score })
	sort.SliceStable(r.Users, func(i, j int) bool { return r.Users[i].Score > r.Users[j].Score })

	if r.Mixed != nil {
		rebuildMixed(r)
	}
}

// rebuildMixed merges the typed slices into one score-descending ordering.
// Each slice is already sorted; hashtags keep backend order, which is
// score-descending for search responses.
func rebuildMixed(r *SearchResult) {
	refs := make([]MixedRef, 0, r.Len())
	ni, ui, hi := 0, 0, 0
	for ni < len(r.Notes) || ui < len(r.Users) || hi < len(r.Hashtags) {
		best := MixedRef{}
		bestScore := 0.0
		found := false
		if ni < len(r.Notes) && (!found || r.Notes[ni].Score > bestScore) {
			best, bestScore, found = MixedRef{Type: "note", Index: ni}, r.Notes[ni].Score, true
		}
		if ui < len(r.Users) && (!found || r.Users[ui].Score > bestScore) {
			best, bestScore, found = MixedRef{Type: "user", Index: ui}, r.Users[ui].Score, true
		}
		if hi < len(r.Hashtags) && (!found || r.Hashtags[hi].Score > bestScore) {
			best, _, found = MixedRef{Type: "hashtag", Index: hi}, r.Hashtags[hi].Score, true
		}
		switch best.Type {
		case "note":
			ni++
		case "user":
			ui++
		case "hashtag":
			hi++
		}
		refs = append(refs, best)
	}
	r.Mixed = refs
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
