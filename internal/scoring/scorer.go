// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

// Package scoring derives ranking signals from note and user documents:
// engagement, virality and trending for notes, reputation, influence and
// bot likelihood for users, plus the multiplicative boost factors both
// carry into the index.
//
// All functions are pure; "now" is a parameter so re-scoring is
// reproducible.
package scoring

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/sonet-social/searchd/internal/models"
)

// Engagement blends the note's engagement rate, absolute engagement volume
// and author reputation into [0,1]. Both count terms are log-dampened so a
// single viral note doesn't pin the scale.
func Engagement(n *models.NoteDocument) float64 {
	total := float64(n.Metrics.TotalEngagements())

	rate := 0.0
	if n.Metrics.Views > 0 {
		rate = total / float64(n.Metrics.Views)
	}

	rateTerm := math.Min(1, math.Log1p(rate*100)/math.Log(101))
	volumeTerm := math.Min(1, math.Log1p(total)/math.Log(10001))
	repTerm := math.Min(1, n.Author.Reputation/100)

	return clamp01(0.5*rateTerm + 0.3*volumeTerm + 0.2*repTerm)
}

// Virality scores how fast a note is spreading:
// 0.5·log(velocity) + 0.3·repost_ratio + 0.2·reach_factor.
func Virality(n *models.NoteDocument, now time.Time) float64 {
	ageHours := math.Max(1, n.AgeAt(now).Hours())
	total := float64(n.Metrics.TotalEngagements())

	velocity := total / ageHours
	velocityTerm := math.Min(1, math.Log1p(velocity)/math.Log(1001))

	repostRatio := 0.0
	if total > 0 {
		repostRatio = float64(n.Metrics.Reposts) / total
	}

	reach := 0.0
	if n.Author.FollowerCount > 1 {
		reach = math.Min(1, math.Log(float64(n.Author.FollowerCount))/math.Log(1e6))
	}

	return clamp01(0.5*velocityTerm + 0.3*repostRatio + 0.2*reach)
}

// Trending combines recency decay with engagement, virality and hashtag
// presence: 0.4·exp(−age/24h) + 0.3·E + 0.2·V + 0.1·H.
func Trending(n *models.NoteDocument, engagement, virality float64, now time.Time) float64 {
	ageHours := n.AgeAt(now).Hours()
	recency := math.Exp(-ageHours / 24)

	hashtagFactor := 0.0
	if len(n.Hashtags) > 0 {
		hashtagFactor = math.Min(1, float64(len(n.Hashtags))/3)
	}

	return clamp01(0.4*recency + 0.3*engagement + 0.2*virality + 0.1*hashtagFactor)
}

// ScoreNote fills the derived score fields on a note in place.
func ScoreNote(n *models.NoteDocument, now time.Time) {
	n.Metrics.EngagementScore = Engagement(n)
	n.Metrics.ViralityScore = Virality(n, now)
	n.Metrics.TrendingScore = Trending(n, n.Metrics.EngagementScore, n.Metrics.ViralityScore, now)
	n.Boosts = NoteBoosts(n, now)
}

// Reputation component weights.
const (
	wContentQuality = 0.25
	wEngQuality     = 0.20
	wNetworkQuality = 0.15
	wTrust          = 0.15
	wInfluence      = 0.10
	wExpertise      = 0.10
	wConsistency    = 0.05
)

// Reputation scores a user in [0,100] as a weighted sum of per-aspect
// subscores, each in [0,1].
func Reputation(u *models.UserDocument, now time.Time) float64 {
	score := wContentQuality*contentQuality(u) +
		wEngQuality*engagementQuality(u) +
		wNetworkQuality*networkQuality(u) +
		wTrust*trust(u, now) +
		wInfluence*Influence(u) +
		wExpertise*expertise(u) +
		wConsistency*activityConsistency(u, now)
	return clampRange(score*100, 0, 100)
}

// contentQuality proxies note quality by likes received per note.
func contentQuality(u *models.UserDocument) float64 {
	if u.Metrics.NotesCount == 0 {
		return 0.3
	}
	likesPerNote := float64(u.Metrics.LikesReceived) / float64(u.Metrics.NotesCount)
	return math.Min(1, math.Log1p(likesPerNote)/math.Log(101))
}

// engagementQuality compares engagement received to engagement given;
// accounts that only broadcast score lower than conversational ones.
func engagementQuality(u *models.UserDocument) float64 {
	given := float64(u.Metrics.LikesGiven)
	received := float64(u.Metrics.LikesReceived)
	if given+received == 0 {
		return 0.2
	}
	balance := 1 - math.Abs(given-received)/(given+received)
	volume := math.Min(1, math.Log1p(given+received)/math.Log(100001))
	return 0.5*balance + 0.5*volume
}

// networkQuality rewards a healthy follower:following shape.
func networkQuality(u *models.UserDocument) float64 {
	followers := float64(u.Metrics.Followers)
	following := float64(u.Metrics.Following)
	if followers == 0 && following == 0 {
		return 0.1
	}
	size := math.Min(1, math.Log1p(followers)/math.Log(1e6))
	ratio := 1.0
	if following > 0 {
		ratio = math.Min(1, followers/following)
	}
	return 0.6*size + 0.4*ratio
}

// trust grows with account age and verification.
func trust(u *models.UserDocument, now time.Time) float64 {
	ageDays := now.Sub(u.CreatedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	ageTerm := math.Min(1, ageDays/365)
	if u.Verification.Verified() {
		return math.Min(1, ageTerm+0.3)
	}
	return ageTerm
}

// Influence is a log-dampened follower count in [0,1].
func Influence(u *models.UserDocument) float64 {
	if u.Metrics.Followers <= 0 {
		return 0
	}
	return clamp01(math.Log1p(float64(u.Metrics.Followers)) / math.Log(1e7))
}

// expertise proxies topical depth by note volume.
func expertise(u *models.UserDocument) float64 {
	return math.Min(1, math.Log1p(float64(u.Metrics.NotesCount))/math.Log(10001))
}

// activityConsistency decays with time since last activity.
func activityConsistency(u *models.UserDocument, now time.Time) float64 {
	if u.LastActiveAt.IsZero() {
		return 0
	}
	idleDays := now.Sub(u.LastActiveAt).Hours() / 24
	if idleDays < 0 {
		idleDays = 0
	}
	return math.Exp(-idleDays / 30)
}

// Bot likelihood signals.
var (
	botBioRe      = regexp.MustCompile(`(?i)\b(?:bot|automated|auto-post|autopost|rss feed|unfollow back)\b`)
	botUsernameRe = regexp.MustCompile(`^[a-z]+\d{5,}$`)
)

// botLikelyThreshold marks an account as probably automated.
const botLikelyThreshold = 0.6

// BotLikelihood estimates in [0,1] how likely the account is automated,
// from bio patterns, username shape, follow skew, posting rate and
// profile completeness.
func BotLikelihood(u *models.UserDocument, now time.Time) float64 {
	score := 0.0

	if botBioRe.MatchString(u.Bio) {
		score += 0.3
	}
	if botUsernameRe.MatchString(strings.ToLower(u.Username)) {
		score += 0.2
	}

	// Follows thousands, followed by almost nobody.
	if u.Metrics.Following > 1000 && u.Metrics.Followers > 0 {
		if float64(u.Metrics.Following)/float64(u.Metrics.Followers) > 20 {
			score += 0.2
		}
	}

	// Implausible posting rate.
	ageDays := math.Max(1, now.Sub(u.CreatedAt).Hours()/24)
	if float64(u.Metrics.NotesCount)/ageDays > 50 {
		score += 0.2
	}

	// Empty profile.
	if u.Bio == "" && u.AvatarURL == "" {
		score += 0.1
	}

	return clamp01(score)
}

// ScoreUser fills the derived score fields on a user in place.
func ScoreUser(u *models.UserDocument, now time.Time) {
	u.Reputation = Reputation(u, now)
	u.Influence = Influence(u)
	u.Authenticity = clamp01(1 - BotLikelihood(u, now))
	u.BotLikelihood = BotLikelihood(u, now)
	u.IsBotLikely = u.BotLikelihood >= botLikelyThreshold
	u.Boosts = UserBoosts(u, now)
}

// NoteBoosts computes the multiplicative ranking boosts for a note.
// 1.0 is neutral on every axis.
func NoteBoosts(n *models.NoteDocument, now time.Time) models.BoostFactors {
	b := models.NeutralBoosts()

	ageHours := n.AgeAt(now).Hours()
	b.Recency = 1 + 0.5*math.Exp(-ageHours/24)

	b.Engagement = 1 + 0.5*n.Metrics.EngagementScore

	switch models.VerificationType(n.Author.VerificationLevel) {
	case models.VerificationOfficial:
		b.Author = 1.5
	case models.VerificationOrganization:
		b.Author = 1.3
	case models.VerificationIdentity:
		b.Author = 1.2
	default:
		if n.Author.Verified {
			b.Author = 1.2
		}
	}
	if n.Author.FollowerCount > 1 {
		b.Author *= 1 + 0.2*math.Min(1, math.Log(float64(n.Author.FollowerCount))/math.Log(1e6))
	}

	if n.QualityScore > 0 {
		b.ContentQuality = 0.5 + n.QualityScore
	}

	return b
}

// UserBoosts computes the multiplicative ranking boosts for a user.
func UserBoosts(u *models.UserDocument, now time.Time) models.BoostFactors {
	b := models.NeutralBoosts()

	switch u.Verification.Type {
	case models.VerificationOfficial:
		b.Author = 1.5
	case models.VerificationOrganization:
		b.Author = 1.3
	case models.VerificationIdentity:
		b.Author = 1.2
	}

	b.Engagement = 1 + 0.5*Influence(u)
	b.Recency = 0.5 + 0.5*(1+activityConsistency(u, now))
	b.ContentQuality = 0.75 + 0.5*math.Min(1, u.Reputation/100)

	return b
}

func clamp01(v float64) float64 {
	return clampRange(v, 0, 1)
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
