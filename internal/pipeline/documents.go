// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package pipeline

import (
	"time"

	"github.com/sonet-social/searchd/internal/analyze"
	"github.com/sonet-social/searchd/internal/backend"
	"github.com/sonet-social/searchd/internal/config"
	"github.com/sonet-social/searchd/internal/models"
	"github.com/sonet-social/searchd/internal/scoring"
)

// spamIndexThreshold is the spam score above which a note is dropped when
// spam indexing is disabled.
const spamIndexThreshold = 0.7

// Worker pool divisors: notes get half the hardware threads, users a
// quarter, unless configured explicitly.
const (
	notesWorkerDivisor = 2
	usersWorkerDivisor = 4
)

// NotePipeline indexes note documents.
type NotePipeline = Pipeline[models.NoteDocument]

// UserPipeline indexes user documents.
type UserPipeline = Pipeline[models.UserDocument]

// NewNotes builds the note pipeline. Fresh content (index/update) is run
// through the content analyzer before scoring; metrics-only updates are
// re-scored without re-analysis.
func NewNotes(cfg config.PipelineConfig, indexer Indexer) *NotePipeline {
	prepare := func(op Operation, n *models.NoteDocument, now time.Time) bool {
		if op != OpUpdateMetrics {
			analyzeNote(n)
		}
		scoring.ScoreNote(n, now)

		// Metrics-only updates are partial documents for notes already in
		// the index; the indexability gate ran when they were first indexed.
		if op == OpUpdateMetrics {
			return n.ID != ""
		}
		if !n.ShouldBeIndexed() {
			return false
		}
		if !cfg.IndexNSFW && n.NSFW {
			return false
		}
		if !cfg.IndexSpam && n.SpamScore > spamIndexThreshold {
			return false
		}
		return true
	}
	return newPipeline[models.NoteDocument]("notes", backend.IndexNotes, cfg, notesWorkerDivisor, indexer, prepare)
}

// NewUsers builds the user pipeline.
func NewUsers(cfg config.PipelineConfig, indexer Indexer) *UserPipeline {
	prepare := func(op Operation, u *models.UserDocument, now time.Time) bool {
		scoring.ScoreUser(u, now)

		if op == OpUpdateMetrics {
			return u.ID != ""
		}
		if !u.ShouldBeIndexed() {
			return false
		}
		if !cfg.IndexBots && u.IsBotLikely {
			return false
		}
		return true
	}
	return newPipeline[models.UserDocument]("users", backend.IndexUsers, cfg, usersWorkerDivisor, indexer, prepare)
}

// analyzeNote fills analyzer-derived fields, preserving upstream values
// where the producer already supplied them.
func analyzeNote(n *models.NoteDocument) {
	r := analyze.Analyze(n.Content)

	if len(n.Hashtags) == 0 {
		n.Hashtags = r.Hashtags
	}
	if len(n.Mentions) == 0 {
		n.Mentions = r.Mentions
	}
	if len(n.URLs) == 0 {
		n.URLs = r.URLs
	}
	if len(n.MediaURLs) == 0 {
		n.MediaURLs = r.MediaURLs
	}
	if len(n.MediaTypes) == 0 {
		n.MediaTypes = analyze.MediaTypes(n.MediaURLs)
	}
	if n.Language == "" || n.Language == "unknown" {
		n.Language = r.Language
	}

	n.QualityScore = r.QualityScore
	n.SpamScore = r.SpamScore
	n.NSFW = n.NSFW || r.NSFW
	n.Sensitive = n.Sensitive || r.Sensitive
	n.Topics = r.Topics
	n.Sentiment = r.Sentiment
}

// EnqueueNote builds a note task with its computed priority and submits
// it. The document must be non-nil; deletes go through EnqueueDelete.
func EnqueueNote(p *NotePipeline, op Operation, n *models.NoteDocument, correlationID string) bool {
	if n == nil {
		return false
	}
	now := time.Now()
	return p.Enqueue(Task[models.NoteDocument]{
		Op:            op,
		ID:            n.ID,
		Doc:           n,
		Priority:      NotePriority(n, now),
		CorrelationID: correlationID,
		EnqueuedAt:    now,
		ScheduledAt:   now,
	})
}

// EnqueueUser builds a user task with its computed priority and submits it.
func EnqueueUser(p *UserPipeline, op Operation, u *models.UserDocument, correlationID string) bool {
	if u == nil {
		return false
	}
	now := time.Now()
	return p.Enqueue(Task[models.UserDocument]{
		Op:            op,
		ID:            u.ID,
		Doc:           u,
		Priority:      UserPriority(u, now),
		CorrelationID: correlationID,
		EnqueuedAt:    now,
		ScheduledAt:   now,
	})
}

// EnqueueDelete submits a delete for a document id. Deletes outrank any
// pending mutation for the same id in the queue and carry a priority bump
// so tombstones don't linger behind fresh content.
func EnqueueDelete[D any](p *Pipeline[D], id, correlationID string) bool {
	now := time.Now()
	return p.Enqueue(Task[D]{
		Op:            OpDelete,
		ID:            id,
		Priority:      5,
		CorrelationID: correlationID,
		EnqueuedAt:    now,
		ScheduledAt:   now,
	})
}
