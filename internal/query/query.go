// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

// Package query models search requests: the typed query struct, the
// operator parser that extracts filters from free text, the cache-key
// fingerprint, and the compiler that turns a query into a backend query
// document.
package query

import (
	"errors"
	"fmt"
	"time"
)

// Type selects which record kinds a search targets.
type Type string

// Search types.
const (
	TypeNotes    Type = "notes"
	TypeUsers    Type = "users"
	TypeHashtags Type = "hashtags"
	TypeMentions Type = "mentions"
	TypeMixed    Type = "mixed"
	TypeMedia    Type = "media"
	TypeLive     Type = "live"
)

// Sort selects the ranking mode.
type Sort string

// Sort modes.
const (
	SortRelevance  Sort = "relevance"
	SortRecency    Sort = "recency"
	SortPopularity Sort = "popularity"
	SortTrending   Sort = "trending"
	SortMixed      Sort = "mixed"
)

// GeoFilter restricts results to a disc around a point.
type GeoFilter struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	RadiusKM float64 `json:"radius_km"`
	Place    string  `json:"place,omitempty"`
}

// Filters narrow a search beyond the free text.
type Filters struct {
	FromDate time.Time `json:"from_date"`
	ToDate   time.Time `json:"to_date"`

	FromUser       string   `json:"from_user,omitempty"`
	MentionedUsers []string `json:"mentioned_users,omitempty"`
	ExcludedUsers  []string `json:"excluded_users,omitempty"`

	Hashtags         []string `json:"hashtags,omitempty"`
	ExcludedHashtags []string `json:"excluded_hashtags,omitempty"`

	HasMedia     bool `json:"has_media,omitempty"`
	HasLinks     bool `json:"has_links,omitempty"`
	VerifiedOnly bool `json:"verified_only,omitempty"`

	MinLikes   int64 `json:"min_likes,omitempty"`
	MinReposts int64 `json:"min_reposts,omitempty"`
	MinReplies int64 `json:"min_replies,omitempty"`

	Geo *GeoFilter `json:"geo,omitempty"`

	Language     string   `json:"language,omitempty"`
	ContentTypes []string `json:"content_types,omitempty"`
}

// Empty reports whether no filter is set.
func (f *Filters) Empty() bool {
	return f.FromDate.IsZero() && f.ToDate.IsZero() &&
		f.FromUser == "" && len(f.MentionedUsers) == 0 && len(f.ExcludedUsers) == 0 &&
		len(f.Hashtags) == 0 && len(f.ExcludedHashtags) == 0 &&
		!f.HasMedia && !f.HasLinks && !f.VerifiedOnly &&
		f.MinLikes == 0 && f.MinReposts == 0 && f.MinReplies == 0 &&
		f.Geo == nil && f.Language == "" && len(f.ContentTypes) == 0
}

// Pagination caps.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Pagination is the result window.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Clamp normalizes the window into valid bounds.
func (p *Pagination) Clamp() {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// RankingWeights tune the mixed-signals sort.
type RankingWeights struct {
	Popularity float64 `json:"popularity"`
	Recency    float64 `json:"recency"`
}

// Config carries per-query execution options.
type Config struct {
	EnableFuzzyMatching bool           `json:"enable_fuzzy_matching"`
	EnableStemming      bool           `json:"enable_stemming"`
	EnableSpellCorrect  bool           `json:"enable_spell_correct"`
	Timeout             time.Duration  `json:"timeout"`
	CacheEnabled        bool           `json:"cache_enabled"`
	CacheTTL            time.Duration  `json:"cache_ttl"`
	Weights             RankingWeights `json:"weights"`
}

// DefaultConfig returns the execution options used when a request carries
// none.
func DefaultConfig() Config {
	return Config{
		EnableFuzzyMatching: true,
		EnableStemming:      true,
		Timeout:             5 * time.Second,
		CacheEnabled:        true,
		CacheTTL:            5 * time.Minute,
		Weights:             RankingWeights{Popularity: 1.0, Recency: 1.0},
	}
}

// Personalization is the viewer context that biases ranking. It never
// changes which documents match, only their order.
type Personalization struct {
	ViewerID  string   `json:"viewer_id,omitempty"`
	Interests []string `json:"interests,omitempty"`
	Following []string `json:"following,omitempty"`
}

// Query is one search request.
type Query struct {
	Text       string          `json:"text"`
	Type       Type            `json:"type"`
	Sort       Sort            `json:"sort"`
	Filters    Filters         `json:"filters"`
	Pagination Pagination      `json:"pagination"`
	Config     Config          `json:"config"`
	Personal   Personalization `json:"personalization"`
}

// Validation errors.
var (
	ErrEmptyQuery    = errors.New("query: text and filters both empty")
	ErrBadPagination = errors.New("query: pagination out of range")
	ErrBadTimeout    = errors.New("query: timeout must be positive")
	ErrBadWeights    = errors.New("query: ranking weights must be non-negative")
)

// Validate reports whether the query can be executed. A query needs text
// or at least one filter, a sane window, a positive timeout and
// non-negative weights.
func (q *Query) Validate() error {
	if q.Text == "" && q.Filters.Empty() {
		return ErrEmptyQuery
	}
	if q.Pagination.Limit <= 0 || q.Pagination.Limit > MaxLimit || q.Pagination.Offset < 0 {
		return fmt.Errorf("%w: offset=%d limit=%d", ErrBadPagination, q.Pagination.Offset, q.Pagination.Limit)
	}
	if q.Config.Timeout <= 0 {
		return ErrBadTimeout
	}
	if q.Config.Weights.Popularity < 0 || q.Config.Weights.Recency < 0 {
		return ErrBadWeights
	}
	return nil
}

// Normalize fills defaults so a freshly parsed query validates.
func (q *Query) Normalize() {
	if q.Type == "" {
		q.Type = TypeNotes
	}
	if q.Sort == "" {
		q.Sort = SortRelevance
	}
	q.Pagination.Clamp()
	if q.Config.Timeout == 0 {
		q.Config = DefaultConfig()
	}
}
