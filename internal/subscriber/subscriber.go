// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

// Package subscriber consumes platform events from the message bus and
// feeds them into the indexing pipelines. A message is acked only when
// the pipeline accepted the work; back-pressure nacks the message so the
// bus redelivers it once the queue drains. Handling is synchronous per
// topic, which preserves per-subject ordering.
package subscriber

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/sonet-social/searchd/internal/logging"
	"github.com/sonet-social/searchd/internal/metrics"
	"github.com/sonet-social/searchd/internal/models"
	"github.com/sonet-social/searchd/internal/pipeline"
)

// Bus topics searchd consumes.
const (
	TopicNoteCreated = "note.created"
	TopicNoteUpdated = "note.updated"
	TopicNoteDeleted = "note.deleted"
	TopicNoteMetrics = "note.metrics.updated"
	TopicUserCreated = "user.created"
	TopicUserUpdated = "user.updated"
	TopicUserDeleted = "user.deleted"
	TopicUserMetrics = "user.metrics.updated"
)

// Topics lists every subscribed topic.
func Topics() []string {
	return []string{
		TopicNoteCreated, TopicNoteUpdated, TopicNoteDeleted, TopicNoteMetrics,
		TopicUserCreated, TopicUserUpdated, TopicUserDeleted, TopicUserMetrics,
	}
}

// noteEvent is the bus payload for note lifecycle topics. Metrics-only
// updates carry note_id and metrics without the full document.
type noteEvent struct {
	EventID string               `json:"event_id"`
	NoteID  string               `json:"note_id"`
	Note    *models.NoteDocument `json:"note,omitempty"`
	Metrics *models.NoteMetrics  `json:"metrics,omitempty"`
}

// userEvent is the bus payload for user lifecycle topics. Metrics-only
// updates carry user_id and metrics without the full document.
type userEvent struct {
	EventID string                `json:"event_id"`
	UserID  string                `json:"user_id"`
	User    *models.UserDocument  `json:"user,omitempty"`
	Metrics *models.SocialMetrics `json:"metrics,omitempty"`
}

// Observer receives activity signals from accepted events. The
// controller implements it to feed the trending windows.
type Observer interface {
	ObserveHashtag(tag string)
	ObserveUser(username string)
}

// Subscriber dispatches bus deliveries to the pipelines.
type Subscriber struct {
	source   message.Subscriber
	notes    *pipeline.NotePipeline
	users    *pipeline.UserPipeline
	observer Observer
	log      zerolog.Logger
}

// New wires a message source to the indexing pipelines.
func New(source message.Subscriber, notes *pipeline.NotePipeline, users *pipeline.UserPipeline) *Subscriber {
	return &Subscriber{
		source: source,
		notes:  notes,
		users:  users,
		log:    logging.With().Str("component", "subscriber").Logger(),
	}
}

// WithObserver attaches an activity observer. Must be set before Run.
func (s *Subscriber) WithObserver(o Observer) *Subscriber {
	s.observer = o
	return s
}

// Run consumes every topic until the context is canceled. One goroutine
// per topic handles messages in arrival order.
func (s *Subscriber) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make(chan error, len(Topics()))

	for _, topic := range Topics() {
		messages, err := s.source.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("subscriber: subscribe %s: %w", topic, err)
		}

		wg.Add(1)
		go func(topic string, messages <-chan *message.Message) {
			defer wg.Done()
			if err := s.consume(ctx, topic, messages); err != nil {
				errs <- err
			}
		}(topic, messages)
	}

	wg.Wait()
	close(errs)
	return <-errs
}

// consume drains one topic channel, acking accepted work and nacking
// back-pressure so JetStream redelivers.
func (s *Subscriber) consume(ctx context.Context, topic string, messages <-chan *message.Message) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			s.handle(topic, msg)
		}
	}
}

// handle processes one delivery. Malformed payloads are acked and
// counted; redelivering them can never succeed.
func (s *Subscriber) handle(topic string, msg *message.Message) {
	accepted, err := s.dispatch(topic, msg)
	switch {
	case err != nil:
		metrics.BusMessages.WithLabelValues(topic, "invalid").Inc()
		s.log.Warn().Str("topic", topic).Str("message_uuid", msg.UUID).Err(err).Msg("dropping malformed bus message")
		msg.Ack()
	case !accepted:
		metrics.BusMessages.WithLabelValues(topic, "nacked").Inc()
		s.log.Debug().Str("topic", topic).Str("message_uuid", msg.UUID).Msg("pipeline back-pressure, nacking")
		msg.Nack()
	default:
		metrics.BusMessages.WithLabelValues(topic, "acked").Inc()
		msg.Ack()
	}
}

// dispatch decodes the payload and enqueues the corresponding pipeline
// task. The bool reports whether the pipeline accepted the work; an error
// marks the payload itself as unusable.
func (s *Subscriber) dispatch(topic string, msg *message.Message) (bool, error) {
	switch topic {
	case TopicNoteCreated, TopicNoteUpdated:
		ev, err := decodeNoteEvent(msg.Payload)
		if err != nil {
			return false, err
		}
		if ev.Note == nil {
			return false, fmt.Errorf("event %s missing note document", ev.EventID)
		}
		op := pipeline.OpIndex
		if topic == TopicNoteUpdated {
			op = pipeline.OpUpdate
		}
		accepted := pipeline.EnqueueNote(s.notes, op, ev.Note, correlationID(msg, ev.EventID))
		if accepted && s.observer != nil && topic == TopicNoteCreated {
			for _, tag := range ev.Note.Hashtags {
				s.observer.ObserveHashtag(tag)
			}
		}
		return accepted, nil

	case TopicNoteMetrics:
		ev, err := decodeNoteEvent(msg.Payload)
		if err != nil {
			return false, err
		}
		doc := ev.Note
		if doc == nil {
			if ev.NoteID == "" || ev.Metrics == nil {
				return false, fmt.Errorf("event %s missing note_id or metrics", ev.EventID)
			}
			doc = &models.NoteDocument{ID: ev.NoteID, Metrics: *ev.Metrics}
		}
		return pipeline.EnqueueNote(s.notes, pipeline.OpUpdateMetrics, doc, correlationID(msg, ev.EventID)), nil

	case TopicNoteDeleted:
		ev, err := decodeNoteEvent(msg.Payload)
		if err != nil {
			return false, err
		}
		id := ev.NoteID
		if id == "" && ev.Note != nil {
			id = ev.Note.ID
		}
		if id == "" {
			return false, fmt.Errorf("event %s missing note_id", ev.EventID)
		}
		return pipeline.EnqueueDelete(s.notes, id, correlationID(msg, ev.EventID)), nil

	case TopicUserCreated, TopicUserUpdated:
		ev, err := decodeUserEvent(msg.Payload)
		if err != nil {
			return false, err
		}
		if ev.User == nil {
			return false, fmt.Errorf("event %s missing user document", ev.EventID)
		}
		op := pipeline.OpIndex
		if topic == TopicUserUpdated {
			op = pipeline.OpUpdate
		}
		accepted := pipeline.EnqueueUser(s.users, op, ev.User, correlationID(msg, ev.EventID))
		if accepted && s.observer != nil {
			s.observer.ObserveUser(ev.User.Username)
		}
		return accepted, nil

	case TopicUserMetrics:
		ev, err := decodeUserEvent(msg.Payload)
		if err != nil {
			return false, err
		}
		doc := ev.User
		if doc == nil {
			if ev.UserID == "" || ev.Metrics == nil {
				return false, fmt.Errorf("event %s missing user_id or metrics", ev.EventID)
			}
			doc = &models.UserDocument{ID: ev.UserID, Metrics: *ev.Metrics}
		}
		return pipeline.EnqueueUser(s.users, pipeline.OpUpdateMetrics, doc, correlationID(msg, ev.EventID)), nil

	case TopicUserDeleted:
		ev, err := decodeUserEvent(msg.Payload)
		if err != nil {
			return false, err
		}
		id := ev.UserID
		if id == "" && ev.User != nil {
			id = ev.User.ID
		}
		if id == "" {
			return false, fmt.Errorf("event %s missing user_id", ev.EventID)
		}
		return pipeline.EnqueueDelete(s.users, id, correlationID(msg, ev.EventID)), nil
	}

	return false, fmt.Errorf("unrecognized topic %s", topic)
}

func decodeNoteEvent(payload []byte) (noteEvent, error) {
	var ev noteEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return noteEvent{}, fmt.Errorf("decode note event: %w", err)
	}
	return ev, nil
}

func decodeUserEvent(payload []byte) (userEvent, error) {
	var ev userEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return userEvent{}, fmt.Errorf("decode user event: %w", err)
	}
	return ev, nil
}

// correlationID prefers the producer's event id, falling back to the
// transport message uuid.
func correlationID(msg *message.Message, eventID string) string {
	if eventID != "" {
		return eventID
	}
	return msg.UUID
}
