// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package models

import "time"

// UserStatus is the account lifecycle state.
type UserStatus string

// Account states.
const (
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
	UserDeleted   UserStatus = "deleted"
	UserBot       UserStatus = "bot"
)

// VerificationType distinguishes verification tiers.
type VerificationType string

// Verification tiers, in ascending order of priority.
const (
	VerificationNone         VerificationType = ""
	VerificationIdentity     VerificationType = "identity"
	VerificationOrganization VerificationType = "organization"
	VerificationOfficial     VerificationType = "official"
)

// VerificationRecord describes a user's verification badge.
type VerificationRecord struct {
	Type       VerificationType `json:"type,omitempty"`
	VerifiedAt time.Time        `json:"verified_at"`
	Badge      string           `json:"badge,omitempty"`
}

// Verified reports whether the user carries any verification badge.
func (v VerificationRecord) Verified() bool {
	return v.Type != VerificationNone
}

// SocialMetrics holds the user's raw social graph counts.
type SocialMetrics struct {
	Followers     int64 `json:"followers"`
	Following     int64 `json:"following"`
	NotesCount    int64 `json:"notes_count"`
	LikesGiven    int64 `json:"likes_given"`
	LikesReceived int64 `json:"likes_received"`
}

// UserDocument is the indexable representation of a user profile.
type UserDocument struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	BannerURL   string `json:"banner_url,omitempty"`
	Location    string `json:"location,omitempty"`
	Website     string `json:"website,omitempty"`

	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastActiveAt time.Time `json:"last_active_at"`

	Verification VerificationRecord `json:"verification"`
	Metrics      SocialMetrics      `json:"metrics"`

	// Derived scores: Reputation in [0,100], the rest in [0,1].
	Reputation   float64 `json:"reputation"`
	Influence    float64 `json:"influence"`
	Authenticity float64 `json:"authenticity"`

	// BotLikelihood in [0,1]; IsBotLikely iff >= 0.6.
	BotLikelihood float64 `json:"bot_likelihood"`
	IsBotLikely   bool    `json:"is_bot_likely"`

	IsPrivate  bool `json:"is_private"`
	Searchable bool `json:"searchable"`
	Indexable  bool `json:"indexable"`

	Status UserStatus `json:"status"`

	Boosts BoostFactors `json:"boost_factors"`
}

// ShouldBeIndexed reports whether the profile belongs in the search index.
// Suspended and deleted accounts are excluded here and again at query time.
func (u *UserDocument) ShouldBeIndexed() bool {
	if u.ID == "" || u.Username == "" {
		return false
	}
	if !u.Indexable || !u.Searchable {
		return false
	}
	switch u.Status {
	case UserSuspended, UserDeleted:
		return false
	}
	if u.IsPrivate {
		return false
	}
	return true
}

// Suspended reports whether the account is suspended.
func (u *UserDocument) Suspended() bool { return u.Status == UserSuspended }

// Deleted reports whether the account is deleted.
func (u *UserDocument) Deleted() bool { return u.Status == UserDeleted }
