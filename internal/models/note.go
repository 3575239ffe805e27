// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

// Package models defines the note and user documents that flow through the
// indexing pipeline and back out of search results.
//
// Derived scores on these documents are functions of the document's own
// fields plus a timestamp; re-deriving with the same timestamp is
// deterministic.
package models

import (
	"strings"
	"time"
)

// Visibility controls who may see a note.
type Visibility string

// Note visibility levels.
const (
	VisibilityPublic    Visibility = "public"
	VisibilityUnlisted  Visibility = "unlisted"
	VisibilityFollowers Visibility = "followers"
	VisibilityPrivate   Visibility = "private"
)

// NoteMetrics holds raw engagement counts and the scores derived from them.
// Derived scores are kept in [0,1].
type NoteMetrics struct {
	Likes   int64 `json:"likes"`
	Reposts int64 `json:"reposts"`
	Replies int64 `json:"replies"`
	Views   int64 `json:"views"`

	EngagementScore float64 `json:"engagement_score"`
	ViralityScore   float64 `json:"virality_score"`
	TrendingScore   float64 `json:"trending_score"`
}

// TotalEngagements returns likes + reposts + replies.
func (m NoteMetrics) TotalEngagements() int64 {
	return m.Likes + m.Reposts + m.Replies
}

// AuthorSnapshot is the subset of the author's profile denormalized onto a
// note document at index time.
type AuthorSnapshot struct {
	FollowerCount  int64   `json:"follower_count"`
	FollowingCount int64   `json:"following_count"`
	Reputation     float64 `json:"reputation"`
	Verified       bool    `json:"verified"`
	// VerificationLevel is empty, "identity", "organization" or "official".
	VerificationLevel string `json:"verification_level,omitempty"`
}

// BoostFactors are multiplicative ranking boosts; 1.0 is neutral.
type BoostFactors struct {
	Recency        float64 `json:"recency_boost"`
	Engagement     float64 `json:"engagement_boost"`
	Author         float64 `json:"author_boost"`
	ContentQuality float64 `json:"content_quality_boost"`
}

// NeutralBoosts returns boost factors with every component at 1.0.
func NeutralBoosts() BoostFactors {
	return BoostFactors{Recency: 1, Engagement: 1, Author: 1, ContentQuality: 1}
}

// GeoPoint is a lat/lon pair with an optional place name.
type GeoPoint struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Place string  `json:"place,omitempty"`
}

// NoteDocument is the indexable representation of a note.
type NoteDocument struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`

	Content    string   `json:"content"`
	Hashtags   []string `json:"hashtags,omitempty"`
	Mentions   []string `json:"mentions,omitempty"`
	URLs       []string `json:"urls,omitempty"`
	MediaURLs  []string `json:"media_urls,omitempty"`
	MediaTypes []string `json:"media_types,omitempty"`
	Language   string   `json:"language,omitempty"`

	Location *GeoPoint `json:"location,omitempty"`

	ReplyToID  string `json:"reply_to_id,omitempty"`
	RepostOfID string `json:"repost_of_id,omitempty"`
	ThreadID   string `json:"thread_id,omitempty"`

	Visibility Visibility `json:"visibility"`
	NSFW       bool       `json:"nsfw"`
	Sensitive  bool       `json:"sensitive"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Metrics NoteMetrics    `json:"metrics"`
	Author  AuthorSnapshot `json:"author"`
	Boosts  BoostFactors   `json:"boost_factors"`

	// QualityScore is the analyzer's content quality estimate in [0,1].
	QualityScore float64 `json:"quality_score"`
	// SpamScore is the analyzer's spam estimate in [0,1].
	SpamScore float64 `json:"spam_score"`
	// Topics are analyzer-detected topic categories.
	Topics []string `json:"topics,omitempty"`
	// Sentiment is "positive", "negative" or "neutral".
	Sentiment string `json:"sentiment,omitempty"`

	// AuthorSuspended mirrors the author's status so query-time filtering
	// does not need a second lookup.
	AuthorSuspended bool `json:"author_suspended"`
}

// minNoteQuality is the floor below which a note is not worth indexing.
const minNoteQuality = 0.1

// ShouldBeIndexed reports whether the note belongs in the search index.
// Applied both at enqueue and again before submission to the backend.
func (n *NoteDocument) ShouldBeIndexed() bool {
	if n.ID == "" || n.UserID == "" {
		return false
	}
	if strings.TrimSpace(n.Content) == "" {
		return false
	}
	switch n.Visibility {
	case VisibilityPublic, VisibilityUnlisted:
	default:
		return false
	}
	if n.AuthorSuspended {
		return false
	}
	// A zero QualityScore means the note has not been analyzed yet; only an
	// analyzed-and-rejected note is filtered here.
	if n.QualityScore > 0 && n.QualityScore < minNoteQuality {
		return false
	}
	return true
}

// AgeAt returns the note age at the given instant, clamped to zero.
func (n *NoteDocument) AgeAt(now time.Time) time.Duration {
	age := now.Sub(n.CreatedAt)
	if age < 0 {
		return 0
	}
	return age
}
