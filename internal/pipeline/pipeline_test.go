// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package pipeline

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sonet-social/searchd/internal/backend"
	"github.com/sonet-social/searchd/internal/config"
	"github.com/sonet-social/searchd/internal/models"
)

// fakeIndexer records bulk submissions and can inject failures.
type fakeIndexer struct {
	mu       sync.Mutex
	ops      []backend.BulkOp
	failNext int // submissions to fail with a retriable error
	itemFail map[string]bool
}

func (f *fakeIndexer) IndexName(logical string) string { return "sonet_" + logical }

func (f *fakeIndexer) Bulk(ctx context.Context, ops []backend.BulkOp) ([]backend.BulkItemError, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return nil, &backend.Error{StatusCode: http.StatusServiceUnavailable, Message: "unavailable", Retriable: true}
	}
	var failures []backend.BulkItemError
	for _, op := range ops {
		if f.itemFail[op.ID] {
			failures = append(failures, backend.BulkItemError{ID: op.ID, Status: http.StatusBadRequest, Message: "mapping error"})
			continue
		}
		f.ops = append(f.ops, op)
	}
	return failures, nil
}

func (f *fakeIndexer) submitted() []backend.BulkOp {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]backend.BulkOp, len(f.ops))
	copy(out, f.ops)
	return out
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		Workers:          1,
		BatchSize:        10,
		BatchTimeout:     10 * time.Millisecond,
		MaxQueueSize:     100,
		MaxRetryAttempts: 2,
		RetryDelay:       5 * time.Millisecond,
		IndexNSFW:        true,
	}
}

func indexableNote(id string) *models.NoteDocument {
	return &models.NoteDocument{
		ID:         id,
		UserID:     "u1",
		Username:   "alice",
		Content:    "A perfectly reasonable note about distributed systems and coffee.",
		Visibility: models.VisibilityPublic,
		CreatedAt:  time.Now().Add(-time.Hour),
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestPipeline_IndexesEnqueuedNotes(t *testing.T) {
	f := &fakeIndexer{}
	p := NewNotes(testPipelineConfig(), f)
	p.Start(context.Background())
	defer p.Shutdown(time.Second)

	for _, id := range []string{"n1", "n2", "n3"} {
		if !EnqueueNote(p, OpIndex, indexableNote(id), "corr-1") {
			t.Fatalf("Enqueue(%s) rejected", id)
		}
	}

	waitFor(t, func() bool { return p.Metrics().Indexed == 3 })

	ops := f.submitted()
	if len(ops) != 3 {
		t.Fatalf("submitted %d ops, want 3", len(ops))
	}
	if ops[0].Index != "sonet_notes" || ops[0].Action != backend.BulkIndex {
		t.Errorf("op = %+v", ops[0])
	}

	// Analysis ran on the way through.
	note := ops[0].Doc.(*models.NoteDocument)
	if note.QualityScore == 0 || note.Language == "" {
		t.Errorf("document not analyzed: quality=%v lang=%q", note.QualityScore, note.Language)
	}
}

func TestPipeline_SkipsUnindexable(t *testing.T) {
	f := &fakeIndexer{}
	p := NewNotes(testPipelineConfig(), f)
	p.Start(context.Background())
	defer p.Shutdown(time.Second)

	private := indexableNote("n-priv")
	private.Visibility = models.VisibilityPrivate
	EnqueueNote(p, OpIndex, private, "")

	waitFor(t, func() bool { return p.Metrics().Skipped == 1 })
	if got := len(f.submitted()); got != 0 {
		t.Errorf("private note reached the backend (%d ops)", got)
	}
}

func TestPipeline_NSFWFilter(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.IndexNSFW = false
	f := &fakeIndexer{}
	p := NewNotes(cfg, f)
	p.Start(context.Background())
	defer p.Shutdown(time.Second)

	flagged := indexableNote("n-flag")
	flagged.NSFW = true
	EnqueueNote(p, OpIndex, flagged, "")

	waitFor(t, func() bool { return p.Metrics().Skipped == 1 })
}

func TestPipeline_RetriesThenSucceeds(t *testing.T) {
	f := &fakeIndexer{failNext: 1}
	p := NewNotes(testPipelineConfig(), f)
	p.Start(context.Background())
	defer p.Shutdown(time.Second)

	EnqueueNote(p, OpIndex, indexableNote("n-retry"), "")

	waitFor(t, func() bool { return p.Metrics().Indexed == 1 })
	m := p.Metrics()
	if m.Retried != 1 {
		t.Errorf("retried = %d, want 1", m.Retried)
	}
	if m.Failed != 0 {
		t.Errorf("failed = %d, want 0", m.Failed)
	}
}

func TestPipeline_ExhaustedRetriesLandInFailedOps(t *testing.T) {
	f := &fakeIndexer{failNext: 100}
	p := NewNotes(testPipelineConfig(), f)
	p.Start(context.Background())
	defer p.Shutdown(50 * time.Millisecond)

	EnqueueNote(p, OpIndex, indexableNote("n-doomed"), "")

	waitFor(t, func() bool { return p.Metrics().Failed == 1 })

	failed := p.FailedOps()
	if len(failed) != 1 || failed[0].ID != "n-doomed" {
		t.Fatalf("failedOps = %+v", failed)
	}
	if failed[0].Retries != 2 {
		t.Errorf("retries = %d, want max attempts 2", failed[0].Retries)
	}
}

func TestPipeline_NonRetriableItemFailureDropsTask(t *testing.T) {
	f := &fakeIndexer{itemFail: map[string]bool{"n-bad": true}}
	p := NewNotes(testPipelineConfig(), f)
	p.Start(context.Background())
	defer p.Shutdown(time.Second)

	EnqueueNote(p, OpIndex, indexableNote("n-bad"), "")
	EnqueueNote(p, OpIndex, indexableNote("n-good"), "")

	waitFor(t, func() bool {
		m := p.Metrics()
		return m.Failed == 1 && m.Indexed == 1
	})
}

func TestPipeline_PauseHoldsWork(t *testing.T) {
	f := &fakeIndexer{}
	p := NewNotes(testPipelineConfig(), f)
	p.Start(context.Background())
	defer p.Shutdown(time.Second)

	p.Pause()
	EnqueueNote(p, OpIndex, indexableNote("n-held"), "")

	time.Sleep(50 * time.Millisecond)
	if p.Metrics().Indexed != 0 {
		t.Fatal("paused pipeline processed work")
	}

	p.Resume()
	waitFor(t, func() bool { return p.Metrics().Indexed == 1 })
}

func TestPipeline_EnqueueAfterShutdownRejected(t *testing.T) {
	f := &fakeIndexer{}
	p := NewNotes(testPipelineConfig(), f)
	p.Start(context.Background())
	p.Shutdown(time.Second)

	if EnqueueNote(p, OpIndex, indexableNote("n-late"), "") {
		t.Error("enqueue accepted after shutdown")
	}
}

func TestPipeline_IndexNow(t *testing.T) {
	f := &fakeIndexer{}
	p := NewNotes(testPipelineConfig(), f)

	if err := p.IndexNow(context.Background(), OpIndex, "n-sync", indexableNote("n-sync")); err != nil {
		t.Fatalf("IndexNow: %v", err)
	}
	if len(f.submitted()) != 1 {
		t.Fatal("IndexNow did not reach the backend")
	}

	private := indexableNote("n-priv")
	private.Visibility = models.VisibilityPrivate
	if err := p.IndexNow(context.Background(), OpIndex, "n-priv", private); err != ErrNotIndexable {
		t.Errorf("IndexNow on private note = %v, want ErrNotIndexable", err)
	}
}

func TestPipeline_FlushNowDrains(t *testing.T) {
	f := &fakeIndexer{}
	p := NewNotes(testPipelineConfig(), f)
	// Not started: FlushNow drains without workers.

	for _, id := range []string{"a", "b", "c", "d"} {
		EnqueueNote(p, OpIndex, indexableNote(id), "")
	}
	if err := p.FlushNow(context.Background(), time.Second); err != nil {
		t.Fatalf("FlushNow: %v", err)
	}
	if got := p.Metrics().QueueDepth; got != 0 {
		t.Errorf("queue depth after flush = %d", got)
	}
	if len(f.submitted()) != 4 {
		t.Errorf("flushed %d ops, want 4", len(f.submitted()))
	}
}

func TestPipeline_MetricsOnlyUpdateNotSkipped(t *testing.T) {
	f := &fakeIndexer{}
	p := NewNotes(testPipelineConfig(), f)
	p.Start(context.Background())
	defer p.Shutdown(time.Second)

	// A metrics event carries only the id and the counters; the full
	// indexability gate must not reject it for missing content.
	partial := &models.NoteDocument{
		ID:      "n-counts",
		Metrics: models.NoteMetrics{Likes: 40, Reposts: 3},
	}
	if !EnqueueNote(p, OpUpdateMetrics, partial, "") {
		t.Fatal("metrics-only update rejected at enqueue")
	}

	waitFor(t, func() bool { return p.Metrics().Updated == 1 })
	if skipped := p.Metrics().Skipped; skipped != 0 {
		t.Errorf("skipped = %d, want 0", skipped)
	}

	ops := f.submitted()
	if len(ops) != 1 || ops[0].Action != backend.BulkUpdate {
		t.Fatalf("ops = %+v", ops)
	}
}

func TestUserPipeline_MetricsOnlyUpdateNotSkipped(t *testing.T) {
	f := &fakeIndexer{}
	p := NewUsers(testPipelineConfig(), f)
	p.Start(context.Background())
	defer p.Shutdown(time.Second)

	partial := &models.UserDocument{
		ID:      "u-counts",
		Metrics: models.SocialMetrics{Followers: 900},
	}
	if !EnqueueUser(p, OpUpdateMetrics, partial, "") {
		t.Fatal("metrics-only update rejected at enqueue")
	}

	waitFor(t, func() bool { return p.Metrics().Updated == 1 })
	if skipped := p.Metrics().Skipped; skipped != 0 {
		t.Errorf("skipped = %d, want 0", skipped)
	}
}

func TestPipeline_BatchThroughputMetrics(t *testing.T) {
	f := &fakeIndexer{}
	p := NewNotes(testPipelineConfig(), f)
	// Not started: FlushNow submits everything as one batch.

	before := time.Now()
	for _, id := range []string{"a", "b", "c", "d"} {
		EnqueueNote(p, OpIndex, indexableNote(id), "")
	}
	if err := p.FlushNow(context.Background(), time.Second); err != nil {
		t.Fatalf("FlushNow: %v", err)
	}

	m := p.Metrics()
	if m.Batches != 1 {
		t.Fatalf("batches = %d, want 1", m.Batches)
	}
	if m.AvgBatchSize != 4 {
		t.Errorf("avg batch size = %v, want 4", m.AvgBatchSize)
	}
	if m.LastFlushAt.Before(before) {
		t.Errorf("last flush = %v, want after %v", m.LastFlushAt, before)
	}
}

func TestUserPipeline_BotFilter(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.IndexBots = false
	f := &fakeIndexer{}
	p := NewUsers(cfg, f)
	p.Start(context.Background())
	defer p.Shutdown(time.Second)

	bot := &models.UserDocument{
		ID:         "b1",
		Username:   "feed8372910",
		Bio:        "automated rss feed bot",
		CreatedAt:  time.Now().AddDate(0, 0, -5),
		Searchable: true,
		Indexable:  true,
		Status:     models.UserActive,
		Metrics:    models.SocialMetrics{Following: 8000, Followers: 10, NotesCount: 2000},
	}
	EnqueueUser(p, OpIndex, bot, "")

	waitFor(t, func() bool { return p.Metrics().Skipped == 1 })
}

func TestNotePriority(t *testing.T) {
	now := time.Now()
	base := &models.NoteDocument{CreatedAt: now.Add(-time.Hour)}
	if got := NotePriority(base, now); got != 0 {
		t.Errorf("plain note priority = %d, want 0", got)
	}

	hot := &models.NoteDocument{
		CreatedAt: now.Add(-5 * time.Minute),
		Hashtags:  []string{"breaking"},
		Author:    models.AuthorSnapshot{Verified: true},
		Metrics:   models.NoteMetrics{EngagementScore: 0.9, ViralityScore: 0.9},
	}
	// verified(10) + engagement(5) + virality(8) + fresh(3) + hashtags(2)
	if got := NotePriority(hot, now); got != 28 {
		t.Errorf("hot note priority = %d, want 28", got)
	}
}

func TestUserPriority(t *testing.T) {
	now := time.Now()
	official := &models.UserDocument{
		Verification: models.VerificationRecord{Type: models.VerificationOfficial},
		Reputation:   90,
		UpdatedAt:    now.Add(-30 * time.Minute),
		Metrics:      models.SocialMetrics{Followers: 50000},
	}
	// official(15) + reputation(8) + followers(5) + recent update(3)
	if got := UserPriority(official, now); got != 31 {
		t.Errorf("official priority = %d, want 31", got)
	}

	plain := &models.UserDocument{}
	if got := UserPriority(plain, now); got != 0 {
		t.Errorf("plain priority = %d, want 0", got)
	}
}
