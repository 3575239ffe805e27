// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

// Package pipeline is the real-time indexing engine. One Pipeline instance
// runs per document type (notes, users); each owns a bounded priority
// queue, a worker pool draining it in batches, retry with exponential
// backoff, a failed-operations ring and a memory guard that sheds load
// before the process does.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sonet-social/searchd/internal/backend"
	"github.com/sonet-social/searchd/internal/config"
	"github.com/sonet-social/searchd/internal/logging"
	"github.com/sonet-social/searchd/internal/metrics"
)

// ErrQueueFull is returned by IndexNow and wrapped enqueue paths when the
// queue rejects work. Bus callers nack and let the broker redeliver.
var ErrQueueFull = errors.New("pipeline: queue full")

// ErrShuttingDown is returned once Shutdown has begun.
var ErrShuttingDown = errors.New("pipeline: shutting down")

// ErrNotIndexable is returned by IndexNow when the document fails the
// indexability gate.
var ErrNotIndexable = errors.New("pipeline: document not indexable")

// memCheckInterval is how many worker loop iterations pass between memory
// samples.
const memCheckInterval = 10

// maxFailedOps bounds the failed-operations ring.
const maxFailedOps = 1000

// Indexer is the slice of the backend client the pipeline writes through.
type Indexer interface {
	Bulk(ctx context.Context, ops []backend.BulkOp) ([]backend.BulkItemError, error)
	IndexName(logical string) string
}

// FailedOp is one permanently failed task, kept for inspection.
type FailedOp struct {
	Op       Operation `json:"op"`
	ID       string    `json:"id"`
	Error    string    `json:"error"`
	Retries  int       `json:"retries"`
	FailedAt time.Time `json:"failed_at"`
}

// Metrics is a point-in-time snapshot of pipeline counters.
type Metrics struct {
	QueueDepth     int       `json:"queue_depth"`
	Indexed        int64     `json:"indexed"`
	Updated        int64     `json:"updated"`
	Deleted        int64     `json:"deleted"`
	Skipped        int64     `json:"skipped"`
	Failed         int64     `json:"failed"`
	Retried        int64     `json:"retried"`
	Batches        int64     `json:"batches"`
	AvgBatchSize   float64   `json:"avg_batch_size"`
	LastFlushAt    time.Time `json:"last_flush_at"`
	MemoryPressure bool      `json:"memory_pressure"`
	Paused         bool      `json:"paused"`
}

// prepareFunc runs analysis/scoring on a task's document and reports
// whether it should proceed to the backend. Returning false skips the
// task without error.
type prepareFunc[D any] func(op Operation, doc *D, now time.Time) bool

// Pipeline drains index tasks for one document type.
type Pipeline[D any] struct {
	name    string
	cfg     config.PipelineConfig
	workers int
	indexer Indexer
	index   string // physical index name
	prepare prepareFunc[D]
	log     zerolog.Logger

	queue  *taskQueue[D]
	wake   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup

	paused      atomic.Bool
	shutdown    atomic.Bool
	memPressure atomic.Bool

	indexed   atomic.Int64
	updated   atomic.Int64
	deleted   atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
	batches   atomic.Int64
	batchDocs atomic.Int64
	lastFlush atomic.Int64 // unix nanos of the last successful batch

	failedMu  sync.Mutex
	failedOps []FailedOp
}

func newPipeline[D any](name, logical string, cfg config.PipelineConfig, workerDivisor int, indexer Indexer, prepare prepareFunc[D]) *Pipeline[D] {
	return &Pipeline[D]{
		name:    name,
		cfg:     cfg,
		workers: cfg.WorkerCount(workerDivisor),
		indexer: indexer,
		index:   indexer.IndexName(logical),
		prepare: prepare,
		log:     logging.With().Str("pipeline", name).Logger(),
		queue:   newTaskQueue[D](cfg.MaxQueueSize),
		wake:    make(chan struct{}, 1),
	}
}

// Start launches the worker pool.
func (p *Pipeline[D]) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.log.Info().Int("workers", p.workers).Int("max_queue", p.cfg.MaxQueueSize).Msg("pipeline started")
}

// Enqueue submits a task. Non-blocking; returns false when the queue is
// full, memory pressure is critical, or shutdown has begun.
func (p *Pipeline[D]) Enqueue(t Task[D]) bool {
	if p.shutdown.Load() || p.memPressure.Load() {
		return false
	}
	if t.Op != OpDelete && t.Doc == nil {
		return false
	}
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now()
	}
	if t.ScheduledAt.IsZero() {
		t.ScheduledAt = t.EnqueuedAt
	}

	if !p.queue.Push(t) {
		return false
	}
	metrics.PipelineQueueSize.WithLabelValues(p.name).Set(float64(p.queue.Len()))
	p.signal()
	return true
}

// IndexNow runs the full analysis and submission path synchronously,
// bypassing the queue.
func (p *Pipeline[D]) IndexNow(ctx context.Context, op Operation, id string, doc *D) error {
	if p.shutdown.Load() {
		return ErrShuttingDown
	}
	t := Task[D]{Op: op, ID: id, Doc: doc, EnqueuedAt: time.Now(), ScheduledAt: time.Now()}

	ops, skipped := p.buildBulkOps([]Task[D]{t}, time.Now())
	if skipped == 1 {
		return ErrNotIndexable
	}
	failures, err := p.indexer.Bulk(ctx, ops)
	if err != nil {
		return err
	}
	if len(failures) > 0 {
		return fmt.Errorf("pipeline: index %s: %s", id, failures[0].Message)
	}
	p.countOp(t.Op)
	return nil
}

// FlushNow drains the queue until empty or the deadline passes.
func (p *Pipeline[D]) FlushNow(ctx context.Context, deadline time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	for p.queue.Len() > 0 {
		batch := p.queue.PopBatch(p.cfg.BatchSize, time.Now().Add(24*time.Hour))
		if len(batch) == 0 {
			return nil
		}
		if err := p.submitBatch(ctx, batch); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// Pause stops workers from draining; the queue keeps accepting.
func (p *Pipeline[D]) Pause() { p.paused.Store(true) }

// Resume restarts draining.
func (p *Pipeline[D]) Resume() {
	p.paused.Store(false)
	p.signal()
}

// Shutdown stops accepting work, drains what it can inside the grace
// period, then stops the workers.
func (p *Pipeline[D]) Shutdown(grace time.Duration) {
	if !p.shutdown.CompareAndSwap(false, true) {
		return
	}
	p.log.Info().Int("queued", p.queue.Len()).Msg("pipeline shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	if err := p.FlushNow(ctx, grace); err != nil {
		p.log.Warn().Err(err).Msg("drain incomplete at shutdown")
	}
	cancel()

	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.log.Info().Msg("pipeline stopped")
}

// Metrics returns a snapshot of pipeline counters.
func (p *Pipeline[D]) Metrics() Metrics {
	m := Metrics{
		QueueDepth:     p.queue.Len(),
		Indexed:        p.indexed.Load(),
		Updated:        p.updated.Load(),
		Deleted:        p.deleted.Load(),
		Skipped:        p.skipped.Load(),
		Failed:         p.failed.Load(),
		Retried:        p.retried.Load(),
		Batches:        p.batches.Load(),
		MemoryPressure: p.memPressure.Load(),
		Paused:         p.paused.Load(),
	}
	if m.Batches > 0 {
		m.AvgBatchSize = float64(p.batchDocs.Load()) / float64(m.Batches)
	}
	if n := p.lastFlush.Load(); n > 0 {
		m.LastFlushAt = time.Unix(0, n)
	}
	return m
}

// FailedOps returns a copy of the failed-operations ring, newest last.
func (p *Pipeline[D]) FailedOps() []FailedOp {
	p.failedMu.Lock()
	defer p.failedMu.Unlock()
	out := make([]FailedOp, len(p.failedOps))
	copy(out, p.failedOps)
	return out
}

func (p *Pipeline[D]) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Pipeline[D]) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	timer := time.NewTimer(p.cfg.BatchTimeout)
	defer timer.Stop()

	loops := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		case <-timer.C:
		}
		timer.Reset(p.cfg.BatchTimeout)

		loops++
		if loops%memCheckInterval == 0 {
			p.checkMemory()
		}

		if p.paused.Load() {
			continue
		}

		batch := p.queue.PopBatch(p.cfg.BatchSize, time.Now())
		metrics.PipelineQueueSize.WithLabelValues(p.name).Set(float64(p.queue.Len()))
		if len(batch) == 0 {
			continue
		}

		metrics.PipelineActiveWorkers.WithLabelValues(p.name).Inc()
		if err := p.submitBatch(ctx, batch); err != nil && !errors.Is(err, context.Canceled) {
			p.log.Error().Err(err).Int("worker", id).Int("batch", len(batch)).Msg("batch submit failed")
		}
		metrics.PipelineActiveWorkers.WithLabelValues(p.name).Dec()

		// More work may be queued than one batch; keep draining.
		if p.queue.Len() > 0 {
			p.signal()
		}
	}
}

// buildBulkOps prepares tasks (analysis, scoring, gate) and converts the
// survivors to bulk operations. Returns the ops and how many were skipped.
func (p *Pipeline[D]) buildBulkOps(batch []Task[D], now time.Time) ([]backend.BulkOp, int) {
	var ops []backend.BulkOp
	skipped := 0
	for _, t := range batch {
		if t.Op == OpDelete {
			ops = append(ops, backend.BulkOp{Action: backend.BulkDelete, Index: p.index, ID: t.ID})
			continue
		}
		if !p.prepare(t.Op, t.Doc, now) {
			skipped++
			p.skipped.Add(1)
			metrics.PipelineProcessed.WithLabelValues(p.name, "skipped").Inc()
			continue
		}
		action := backend.BulkIndex
		if t.Op == OpUpdateMetrics {
			action = backend.BulkUpdate
		}
		ops = append(ops, backend.BulkOp{Action: action, Index: p.index, ID: t.ID, Doc: t.Doc})
	}
	return ops, skipped
}

func (p *Pipeline[D]) submitBatch(ctx context.Context, batch []Task[D]) error {
	now := time.Now()
	ops, _ := p.buildBulkOps(batch, now)
	if len(ops) == 0 {
		return nil
	}

	failures, err := p.indexer.Bulk(ctx, ops)
	if err != nil {
		metrics.PipelineBatches.WithLabelValues(p.name, "failed").Inc()
		if backend.IsRetriable(err) {
			for _, t := range batch {
				p.retryTask(t, err)
			}
			return nil
		}
		for _, t := range batch {
			p.recordFailure(t, err.Error())
		}
		return err
	}

	p.batches.Add(1)
	p.batchDocs.Add(int64(len(ops)))
	p.lastFlush.Store(now.UnixNano())
	metrics.PipelineBatches.WithLabelValues(p.name, "ok").Inc()

	failedIDs := make(map[string]backend.BulkItemError, len(failures))
	for _, f := range failures {
		failedIDs[f.ID] = f
	}

	for _, t := range batch {
		if f, ok := failedIDs[t.ID]; ok {
			if f.Retriable() {
				p.retryTask(t, errors.New(f.Message))
			} else {
				p.recordFailure(t, f.Message)
			}
			continue
		}
		p.countOp(t.Op)
	}
	return nil
}

func (p *Pipeline[D]) countOp(op Operation) {
	switch op {
	case OpIndex:
		p.indexed.Add(1)
		metrics.PipelineProcessed.WithLabelValues(p.name, "indexed").Inc()
	case OpUpdate, OpUpdateMetrics:
		p.updated.Add(1)
		metrics.PipelineProcessed.WithLabelValues(p.name, "updated").Inc()
	case OpDelete:
		p.deleted.Add(1)
		metrics.PipelineProcessed.WithLabelValues(p.name, "deleted").Inc()
	}
}

// retryTask re-enqueues with backoff, or records a permanent failure once
// attempts are exhausted.
func (p *Pipeline[D]) retryTask(t Task[D], cause error) {
	if t.RetryCount >= p.cfg.MaxRetryAttempts {
		p.recordFailure(t, cause.Error())
		return
	}
	t.RetryCount++
	t.ScheduledAt = time.Now().Add(retryDelay(p.cfg.RetryDelay, t.RetryCount))
	p.retried.Add(1)
	metrics.PipelineProcessed.WithLabelValues(p.name, "retried").Inc()

	if !p.queue.Push(t) {
		p.recordFailure(t, "queue full during retry")
	}
}

func (p *Pipeline[D]) recordFailure(t Task[D], msg string) {
	p.failed.Add(1)
	metrics.PipelineProcessed.WithLabelValues(p.name, "failed").Inc()
	p.log.Warn().Str("op", string(t.Op)).Str("id", t.ID).Int("retries", t.RetryCount).Str("error", msg).Msg("task failed permanently")

	p.failedMu.Lock()
	defer p.failedMu.Unlock()
	p.failedOps = append(p.failedOps, FailedOp{
		Op:       t.Op,
		ID:       t.ID,
		Error:    msg,
		Retries:  t.RetryCount,
		FailedAt: time.Now(),
	})
	if len(p.failedOps) > maxFailedOps {
		p.failedOps = p.failedOps[len(p.failedOps)-maxFailedOps:]
	}
}

// checkMemory samples heap usage and flips the pressure flag. Enqueues
// stay refused until usage drops back under the warning threshold.
func (p *Pipeline[D]) checkMemory() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	usedMB := ms.HeapAlloc >> 20
	metrics.PipelineMemoryMB.WithLabelValues(p.name).Set(float64(usedMB))

	if p.memPressure.Load() {
		if usedMB < p.cfg.MemoryWarningMB {
			p.memPressure.Store(false)
			p.log.Info().Uint64("used_mb", usedMB).Msg("memory pressure cleared")
		}
		return
	}
	if p.cfg.MemoryLimitMB > 0 && usedMB >= p.cfg.MemoryLimitMB {
		p.memPressure.Store(true)
		p.log.Warn().Uint64("used_mb", usedMB).Uint64("limit_mb", p.cfg.MemoryLimitMB).Msg("memory pressure: refusing new work")
	}
}
