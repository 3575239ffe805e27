// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package api

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/sonet-social/searchd/internal/controller"
	"github.com/sonet-social/searchd/internal/query"
)

// maxSearchBody bounds request bodies; search requests are small.
const maxSearchBody = 64 << 10

// searchRequest is the POST body for the search endpoints.
type searchRequest struct {
	Q    string     `json:"q"`
	Type query.Type `json:"type,omitempty"`
	Sort query.Sort `json:"sort,omitempty"`

	// Filters, when present, replace the operators parsed from Q.
	Filters *query.Filters `json:"filters,omitempty"`

	// Personalization supplies the viewer's graph context. The controller
	// honors it only for authenticated requests and overrides the viewer id
	// with the authenticated principal.
	Personalization *query.Personalization `json:"personalization,omitempty"`

	Offset int `json:"offset,omitempty"`
	Limit  int `json:"limit,omitempty"`
}

// buildQuery turns a request body into a query: free text runs through
// the operator parser, then explicit body fields take precedence.
func buildQuery(req searchRequest) query.Query {
	q := query.Parse(req.Q, time.Now())
	if req.Type != "" {
		q.Type = req.Type
	}
	if req.Sort != "" {
		q.Sort = req.Sort
	}
	if req.Filters != nil {
		q.Filters = *req.Filters
	}
	if req.Personalization != nil {
		q.Personal = *req.Personalization
	}
	q.Pagination.Offset = req.Offset
	if req.Limit > 0 {
		q.Pagination.Limit = req.Limit
	}
	return q
}

func (rt *Router) searchNotes(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSearchBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, controller.CodeInvalidQuery, "malformed request body")
		return
	}
	resp := rt.ctrl.SearchNotes(r.Context(), requestFrom(r), buildQuery(body))
	writeEnvelope(w, resp)
}

func (rt *Router) searchUsers(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSearchBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, controller.CodeInvalidQuery, "malformed request body")
		return
	}
	resp := rt.ctrl.SearchUsers(r.Context(), requestFrom(r), buildQuery(body))
	writeEnvelope(w, resp)
}

func (rt *Router) trendingHashtags(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, rt.ctrl.GetTrendingHashtags(r.Context(), requestFrom(r), limitParam(r)))
}

func (rt *Router) trendingUsers(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, rt.ctrl.GetTrendingUsers(r.Context(), requestFrom(r), limitParam(r)))
}

func (rt *Router) suggestions(w http.ResponseWriter, r *http.Request) {
	resp := rt.ctrl.GetSuggestions(r.Context(), requestFrom(r), r.URL.Query().Get("q"), limitParam(r))
	writeEnvelope(w, resp)
}

func (rt *Router) autocomplete(w http.ResponseWriter, r *http.Request) {
	resp := rt.ctrl.Autocomplete(r.Context(), requestFrom(r), r.URL.Query().Get("q"), limitParam(r))
	writeEnvelope(w, resp)
}

// requestFrom extracts the controller request context.
func requestFrom(r *http.Request) controller.Request {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return controller.Request{
		RequestID:     RequestIDFrom(r.Context()),
		ClientIP:      ip,
		Authorization: r.Header.Get("Authorization"),
		SessionID:     r.Header.Get("X-Session-ID"),
		Language:      r.Header.Get("Accept-Language"),
		Referer:       r.Header.Get("Referer"),
		UserAgent:     r.Header.Get("User-Agent"),
	}
}

func limitParam(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return n
}

// statusFor maps envelope error codes to HTTP statuses.
func statusFor(resp *controller.Response) int {
	if resp.Success {
		return http.StatusOK
	}
	switch resp.ErrorCode {
	case controller.CodeAuthRequired:
		return http.StatusUnauthorized
	case controller.CodeRateLimited:
		return http.StatusTooManyRequests
	case controller.CodeInvalidQuery:
		return http.StatusBadRequest
	case controller.CodeBackendUnavailable:
		return http.StatusServiceUnavailable
	case controller.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeEnvelope(w http.ResponseWriter, resp *controller.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(resp))
	_ = json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(controller.Response{
		ErrorCode: code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}
