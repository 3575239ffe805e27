// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

// Package backend is the HTTP+JSON client for the external full-text index.
// It exposes document CRUD, bulk submission, query execution and cluster
// health, with typed errors that tell callers whether a retry can help.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error is the typed failure surfaced by every client method.
type Error struct {
	// StatusCode is the HTTP status, or 0 for transport failures.
	StatusCode int
	// Code is the backend's error type string when one was returned.
	Code string
	// Message is the human-readable reason.
	Message string
	// Retriable is true for 5xx, 429 and connection-level failures.
	Retriable bool
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("backend: %s (retriable=%v)", e.Message, e.Retriable)
	}
	return fmt.Sprintf("backend: %d %s: %s (retriable=%v)", e.StatusCode, e.Code, e.Message, e.Retriable)
}

// IsRetriable reports whether err is a backend error worth retrying.
// Context cancellation is never retriable: a deadline firing is the
// caller's decision, not a backend failure.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Retriable
	}
	return false
}

// statusError builds an Error from an HTTP response status.
func statusError(status int, code, message string) *Error {
	return &Error{
		StatusCode: status,
		Code:       code,
		Message:    message,
		Retriable:  status >= 500 || status == http.StatusTooManyRequests,
	}
}

// transportError wraps a connection-level failure. Cancellation is passed
// through untouched so deadline handling stays distinct from backend
// failures.
func transportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{Message: err.Error(), Retriable: true}
}
