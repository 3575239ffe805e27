// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package pipeline

import (
	"sync"
	"time"
)

// taskQueue is a bounded priority queue of index tasks ordered by
// (priority desc, scheduledAt asc), with a parallel byID map so duplicate
// operations for the same document collapse instead of racing each other.
//
// Collapse rules: a later task for the same id replaces the queued one,
// and a queued delete is never displaced by a non-delete. Tasks popped for
// processing leave the map, so a retry re-enters like any other push.
type taskQueue[D any] struct {
	mu      sync.Mutex
	heap    []*queueEntry[D]
	byID    map[string]*queueEntry[D]
	maxSize int
}

type queueEntry[D any] struct {
	task  Task[D]
	index int
}

func newTaskQueue[D any](maxSize int) *taskQueue[D] {
	return &taskQueue[D]{
		byID:    make(map[string]*queueEntry[D]),
		maxSize: maxSize,
	}
}

// Push inserts or collapses a task. Returns false when the queue is full.
func (q *taskQueue[D]) Push(t Task[D]) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.byID[t.ID]; ok {
		if existing.task.Op == OpDelete && t.Op != OpDelete {
			// A pending delete wins over any later mutation.
			return true
		}
		existing.task = t
		q.fix(existing.index)
		return true
	}

	if q.maxSize > 0 && len(q.heap) >= q.maxSize {
		return false
	}

	entry := &queueEntry[D]{task: t, index: len(q.heap)}
	q.heap = append(q.heap, entry)
	q.byID[t.ID] = entry
	q.bubbleUp(entry.index)
	return true
}

// PopBatch removes up to n tasks that are due (scheduledAt <= now), best
// priority first. Tasks scheduled in the future stay queued.
func (q *taskQueue[D]) PopBatch(n int, now time.Time) []Task[D] {
	q.mu.Lock()
	defer q.mu.Unlock()

	var batch []Task[D]
	var deferred []*queueEntry[D]

	for len(batch) < n && len(q.heap) > 0 {
		top := q.heap[0]
		q.removeAt(0)
		if top.task.ScheduledAt.After(now) {
			deferred = append(deferred, top)
			continue
		}
		batch = append(batch, top.task)
	}

	// Not-yet-due tasks go back; popping stops early only at batch size,
	// so a retry scheduled for later doesn't block due work behind it.
	for _, entry := range deferred {
		entry.index = len(q.heap)
		q.heap = append(q.heap, entry)
		q.byID[entry.task.ID] = entry
		q.bubbleUp(entry.index)
	}

	return batch
}

// Len returns the queue depth.
func (q *taskQueue[D]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Clear drops every queued task.
func (q *taskQueue[D]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.heap = nil
	q.byID = make(map[string]*queueEntry[D])
}

// less orders entries best-first: higher priority, then earlier schedule.
func (q *taskQueue[D]) less(a, b *queueEntry[D]) bool {
	if a.task.Priority != b.task.Priority {
		return a.task.Priority > b.task.Priority
	}
	return a.task.ScheduledAt.Before(b.task.ScheduledAt)
}

func (q *taskQueue[D]) removeAt(i int) {
	n := len(q.heap) - 1
	entry := q.heap[i]
	delete(q.byID, entry.task.ID)

	if i == n {
		q.heap = q.heap[:n]
		return
	}
	q.heap[i] = q.heap[n]
	q.heap[i].index = i
	q.heap = q.heap[:n]
	q.fix(i)
}

func (q *taskQueue[D]) fix(i int) {
	if q.bubbleUp(i) {
		return
	}
	q.bubbleDown(i)
}

func (q *taskQueue[D]) bubbleUp(i int) bool {
	moved := false
	for i > 0 {
		parent := (i - 1) / 2
		if !q.less(q.heap[i], q.heap[parent]) {
			break
		}
		q.swap(i, parent)
		i = parent
		moved = true
	}
	return moved
}

func (q *taskQueue[D]) bubbleDown(i int) {
	n := len(q.heap)
	for {
		best := i
		left, right := 2*i+1, 2*i+2
		if left < n && q.less(q.heap[left], q.heap[best]) {
			best = left
		}
		if right < n && q.less(q.heap[right], q.heap[best]) {
			best = right
		}
		if best == i {
			break
		}
		q.swap(i, best)
		i = best
	}
}

func (q *taskQueue[D]) swap(i, j int) {
	q.heap[i], q.heap[j] = q.heap[j], q.heap[i]
	q.heap[i].index = i
	q.heap[j].index = j
}
