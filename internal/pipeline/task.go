// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package pipeline

import (
	"math/rand"
	"time"

	"github.com/sonet-social/searchd/internal/models"
)

// Operation is the kind of index mutation a task performs.
type Operation string

// Task operations. OpUpdateMetrics is a metrics-only refresh that skips
// content re-analysis.
const (
	OpIndex         Operation = "index"
	OpUpdate        Operation = "update"
	OpDelete        Operation = "delete"
	OpUpdateMetrics Operation = "update_metrics"
)

// Task is one queued index mutation.
type Task[D any] struct {
	Op  Operation
	ID  string
	Doc *D // nil for delete

	Priority      int
	EnqueuedAt    time.Time
	ScheduledAt   time.Time
	RetryCount    int
	CorrelationID string
}

// retryDelay computes the next backoff: base · 2^retries · jitter in
// [0.75, 1.25).
func retryDelay(base time.Duration, retryCount int) time.Duration {
	backoff := float64(base) * float64(int64(1)<<uint(retryCount))
	jitter := 0.75 + rand.Float64()*0.5
	return time.Duration(backoff * jitter)
}

// NotePriority scores how urgently a note task should be processed.
// Additive over independent signals.
func NotePriority(n *models.NoteDocument, now time.Time) int {
	p := 0
	if n.Author.Verified || n.Author.VerificationLevel != "" {
		p += 10
	}
	if n.Metrics.EngagementScore >= 0.7 {
		p += 5
	}
	if n.Metrics.ViralityScore >= 0.8 {
		p += 8
	}
	if n.AgeAt(now) < 10*time.Minute {
		p += 3
	}
	if len(n.Hashtags) > 0 {
		p += 2
	}
	return p
}

// UserPriority scores how urgently a user task should be processed.
func UserPriority(u *models.UserDocument, now time.Time) int {
	p := 0
	switch u.Verification.Type {
	case models.VerificationOfficial:
		p += 15
	case models.VerificationOrganization:
		p += 10
	case models.VerificationIdentity:
		p += 5
	}
	if u.Reputation >= 80 {
		p += 8
	}
	if u.Metrics.Followers >= 10000 {
		p += 5
	}
	if !u.UpdatedAt.IsZero() && now.Sub(u.UpdatedAt) < time.Hour {
		p += 3
	}
	return p
}
