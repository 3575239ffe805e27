// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package subscriber

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/sonet-social/searchd/internal/backend"
	"github.com/sonet-social/searchd/internal/config"
	"github.com/sonet-social/searchd/internal/models"
	"github.com/sonet-social/searchd/internal/pipeline"
)

type nopIndexer struct{}

func (nopIndexer) Bulk(_ context.Context, ops []backend.BulkOp) ([]backend.BulkItemError, error) {
	return nil, nil
}

func (nopIndexer) IndexName(logical string) string { return "sonet_" + logical }

func testPipelineConfig(queueSize int) config.PipelineConfig {
	return config.PipelineConfig{
		Workers:          1,
		BatchSize:        10,
		BatchTimeout:     50 * time.Millisecond,
		MaxQueueSize:     queueSize,
		MaxRetryAttempts: 1,
		RetryDelay:       10 * time.Millisecond,
		IndexNSFW:        true,
	}
}

// testSubscriber builds a subscriber over unstarted pipelines, so enqueued
// tasks stay visible in the queue.
func testSubscriber(queueSize int) (*Subscriber, *pipeline.NotePipeline, *pipeline.UserPipeline) {
	notes := pipeline.NewNotes(testPipelineConfig(queueSize), nopIndexer{})
	users := pipeline.NewUsers(testPipelineConfig(queueSize), nopIndexer{})
	return New(nil, notes, users), notes, users
}

func sampleNote(id string) *models.NoteDocument {
	return &models.NoteDocument{
		ID:         id,
		UserID:     "u1",
		Username:   "alice",
		Content:    "an ordinary note about coffee",
		Visibility: models.VisibilityPublic,
		CreatedAt:  time.Now(),
	}
}

func busMessage(t *testing.T, payload any) *message.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return message.NewMessage(watermill.NewUUID(), data)
}

func TestDispatch_NoteCreated(t *testing.T) {
	s, notes, _ := testSubscriber(100)

	msg := busMessage(t, noteEvent{EventID: "ev1", Note: sampleNote("n1")})
	accepted, err := s.dispatch(TopicNoteCreated, msg)
	if err != nil || !accepted {
		t.Fatalf("accepted=%v err=%v", accepted, err)
	}
	if depth := notes.Metrics().QueueDepth; depth != 1 {
		t.Errorf("queue depth = %d, want 1", depth)
	}
}

func TestDispatch_NoteMetricsWithoutDocument(t *testing.T) {
	s, notes, _ := testSubscriber(100)

	msg := busMessage(t, noteEvent{
		EventID: "ev2",
		NoteID:  "n1",
		Metrics: &models.NoteMetrics{Likes: 40},
	})
	accepted, err := s.dispatch(TopicNoteMetrics, msg)
	if err != nil || !accepted {
		t.Fatalf("accepted=%v err=%v", accepted, err)
	}
	if depth := notes.Metrics().QueueDepth; depth != 1 {
		t.Errorf("queue depth = %d, want 1", depth)
	}
}

func TestDispatch_NoteDeletedMissingID(t *testing.T) {
	s, _, _ := testSubscriber(100)

	msg := busMessage(t, noteEvent{EventID: "ev3"})
	if _, err := s.dispatch(TopicNoteDeleted, msg); err == nil {
		t.Error("delete without an id should be rejected as malformed")
	}
}

func TestDispatch_UserLifecycle(t *testing.T) {
	s, _, users := testSubscriber(100)

	u := &models.UserDocument{ID: "u1", Username: "alice", Status: models.UserActive}
	if accepted, err := s.dispatch(TopicUserCreated, busMessage(t, userEvent{EventID: "e1", User: u})); err != nil || !accepted {
		t.Fatalf("create: accepted=%v err=%v", accepted, err)
	}
	if accepted, err := s.dispatch(TopicUserDeleted, busMessage(t, userEvent{EventID: "e2", UserID: "u1"})); err != nil || !accepted {
		t.Fatalf("delete: accepted=%v err=%v", accepted, err)
	}
	// The delete collapsed onto the queued create.
	if depth := users.Metrics().QueueDepth; depth != 1 {
		t.Errorf("queue depth = %d, want 1 after collapse", depth)
	}
}

func TestDispatch_UserMetricsWithoutDocument(t *testing.T) {
	s, _, users := testSubscriber(100)

	msg := busMessage(t, userEvent{
		EventID: "ev4",
		UserID:  "u1",
		Metrics: &models.SocialMetrics{Followers: 900},
	})
	accepted, err := s.dispatch(TopicUserMetrics, msg)
	if err != nil || !accepted {
		t.Fatalf("accepted=%v err=%v", accepted, err)
	}
	if depth := users.Metrics().QueueDepth; depth != 1 {
		t.Errorf("queue depth = %d, want 1", depth)
	}

	// Neither a document nor an id/metrics pair is malformed.
	if _, err := s.dispatch(TopicUserMetrics, busMessage(t, userEvent{EventID: "ev5"})); err == nil {
		t.Error("metrics event without user_id and metrics should be rejected")
	}
}

func TestDispatch_MalformedPayload(t *testing.T) {
	s, _, _ := testSubscriber(100)

	msg := message.NewMessage(watermill.NewUUID(), []byte("{not json"))
	if _, err := s.dispatch(TopicNoteCreated, msg); err == nil {
		t.Error("malformed payload should return an error")
	}
}

func TestDispatch_UnknownTopic(t *testing.T) {
	s, _, _ := testSubscriber(100)

	if _, err := s.dispatch("note.reacted", busMessage(t, noteEvent{})); err == nil {
		t.Error("unknown topic should be rejected")
	}
}

func TestHandle_AckAndNack(t *testing.T) {
	s, _, _ := testSubscriber(1)

	acked := busMessage(t, noteEvent{EventID: "e1", Note: sampleNote("n1")})
	s.handle(TopicNoteCreated, acked)
	select {
	case <-acked.Acked():
	case <-time.After(time.Second):
		t.Fatal("accepted message was not acked")
	}

	// Queue capacity is 1; a second distinct note hits back-pressure.
	nacked := busMessage(t, noteEvent{EventID: "e2", Note: sampleNote("n2")})
	s.handle(TopicNoteCreated, nacked)
	select {
	case <-nacked.Nacked():
	case <-time.After(time.Second):
		t.Fatal("back-pressured message was not nacked")
	}
}

func TestHandle_MalformedIsAckedNotRedelivered(t *testing.T) {
	s, _, _ := testSubscriber(100)

	msg := message.NewMessage(watermill.NewUUID(), []byte("broken"))
	s.handle(TopicNoteCreated, msg)
	select {
	case <-msg.Acked():
	case <-time.After(time.Second):
		t.Fatal("malformed message should be acked to stop redelivery")
	}
}

func TestRun_ConsumesFromBus(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	notes := pipeline.NewNotes(testPipelineConfig(100), nopIndexer{})
	users := pipeline.NewUsers(testPipelineConfig(100), nopIndexer{})
	s := New(pubSub, notes, users)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Give the topic subscriptions a moment to attach.
	time.Sleep(50 * time.Millisecond)

	payload, _ := json.Marshal(noteEvent{EventID: "e1", Note: sampleNote("n1")})
	if err := pubSub.Publish(TopicNoteCreated, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for notes.Metrics().QueueDepth == 0 {
		if time.Now().After(deadline) {
			t.Fatal("published event never reached the pipeline")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}
