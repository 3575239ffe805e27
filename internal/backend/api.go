// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
)

// HealthStatus is the cluster health color.
type HealthStatus string

// Cluster health colors.
const (
	HealthGreen  HealthStatus = "green"
	HealthYellow HealthStatus = "yellow"
	HealthRed    HealthStatus = "red"
)

// Health is the cluster health summary.
type Health struct {
	Status           HealthStatus `json:"status"`
	ClusterName      string       `json:"cluster_name"`
	NumberOfNodes    int          `json:"number_of_nodes"`
	ActiveShards     int          `json:"active_shards"`
	UnassignedShards int          `json:"unassigned_shards"`
}

// IndexResult is the outcome of a single-document write.
type IndexResult struct {
	Result string `json:"result"` // "created" or "updated"
}

// HealthCheck fetches cluster health.
func (c *Client) HealthCheck(ctx context.Context) (*Health, error) {
	data, err := c.call(ctx, "health", http.MethodGet, "/_cluster/health", nil)
	if err != nil {
		return nil, err
	}
	var h Health
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, statusError(http.StatusOK, "parse_error", err.Error())
	}
	return &h, nil
}

// CreateIndex creates an index with the given mapping+settings body.
// An already-existing index is not an error.
func (c *Client) CreateIndex(ctx context.Context, name string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("backend: marshal index body: %w", err)
	}
	_, err = c.call(ctx, "create_index", http.MethodPut, "/"+url.PathEscape(name), payload)
	var be *Error
	if errors.As(err, &be) && be.Code == "resource_already_exists_exception" {
		return nil
	}
	return err
}

// IndexDoc indexes a full document under the given id.
func (c *Client) IndexDoc(ctx context.Context, index, id string, doc any) (*IndexResult, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("backend: marshal document: %w", err)
	}
	path := "/" + url.PathEscape(index) + "/_doc/" + url.PathEscape(id)
	data, err := c.call(ctx, "index_doc", http.MethodPut, path, payload)
	if err != nil {
		return nil, err
	}
	var res IndexResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, statusError(http.StatusOK, "parse_error", err.Error())
	}
	return &res, nil
}

// UpdateDoc applies a partial update to a document.
func (c *Client) UpdateDoc(ctx context.Context, index, id string, partial any) error {
	payload, err := json.Marshal(map[string]any{"doc": partial})
	if err != nil {
		return fmt.Errorf("backend: marshal partial: %w", err)
	}
	path := "/" + url.PathEscape(index) + "/_update/" + url.PathEscape(id)
	_, err = c.call(ctx, "update_doc", http.MethodPost, path, payload)
	return err
}

// DeleteDoc removes a document. Deleting a missing document is not an error.
func (c *Client) DeleteDoc(ctx context.Context, index, id string) error {
	path := "/" + url.PathEscape(index) + "/_doc/" + url.PathEscape(id)
	_, err := c.call(ctx, "delete_doc", http.MethodDelete, path, nil)
	var be *Error
	if errors.As(err, &be) && be.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

// BulkAction is the operation kind for one bulk line.
type BulkAction string

// Bulk actions.
const (
	BulkIndex  BulkAction = "index"
	BulkUpdate BulkAction = "update"
	BulkDelete BulkAction = "delete"
)

// BulkOp is one entry in a bulk submission.
type BulkOp struct {
	Action BulkAction
	Index  string
	ID     string
	Doc    any // nil for delete
}

// BulkItemError describes one failed item in a bulk response.
type BulkItemError struct {
	ID      string
	Status  int
	Message string
}

// Retriable reports whether the item failure is transient.
func (e BulkItemError) Retriable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// Bulk submits a batch of operations in NDJSON framing. The returned slice
// holds per-item failures; a nil slice means every item succeeded.
func (c *Client) Bulk(ctx context.Context, ops []BulkOp) ([]BulkItemError, error) {
	if len(ops) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	for _, op := range ops {
		action := map[string]any{
			string(op.Action): map[string]any{"_index": op.Index, "_id": op.ID},
		}
		line, err := json.Marshal(action)
		if err != nil {
			return nil, fmt.Errorf("backend: marshal bulk action: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')

		switch op.Action {
		case BulkIndex:
			doc, err := json.Marshal(op.Doc)
			if err != nil {
				return nil, fmt.Errorf("backend: marshal bulk doc: %w", err)
			}
			buf.Write(doc)
			buf.WriteByte('\n')
		case BulkUpdate:
			doc, err := json.Marshal(map[string]any{"doc": op.Doc})
			if err != nil {
				return nil, fmt.Errorf("backend: marshal bulk update: %w", err)
			}
			buf.Write(doc)
			buf.WriteByte('\n')
		case BulkDelete:
			// Delete carries no source line.
		}
	}

	data, err := c.call(ctx, "bulk", http.MethodPost, "/_bulk", buf.Bytes())
	if err != nil {
		return nil, err
	}

	var resp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, statusError(http.StatusOK, "parse_error", err.Error())
	}
	if !resp.Errors {
		return nil, nil
	}

	var failures []BulkItemError
	for _, item := range resp.Items {
		for _, result := range item {
			if result.Status >= 400 {
				f := BulkItemError{ID: result.ID, Status: result.Status}
				if result.Error != nil {
					f.Message = result.Error.Reason
				}
				failures = append(failures, f)
			}
		}
	}
	return failures, nil
}

// SearchParams tune one query execution.
type SearchParams struct {
	// Scroll keeps a cursor alive, e.g. "1m". Empty disables scrolling.
	Scroll string
}

// Search executes a query document against one or more indices and returns
// the raw response body for the result decoder.
func (c *Client) Search(ctx context.Context, indices []string, queryDoc map[string]any, params SearchParams) (json.RawMessage, error) {
	payload, err := json.Marshal(queryDoc)
	if err != nil {
		return nil, fmt.Errorf("backend: marshal query: %w", err)
	}

	path := "/" + strings.Join(indices, ",") + "/_search"
	if params.Scroll != "" {
		path += "?scroll=" + url.QueryEscape(params.Scroll)
	}
	return c.call(ctx, "search", http.MethodPost, path, payload)
}

// Count returns the number of documents matching a query document.
func (c *Client) Count(ctx context.Context, indices []string, queryDoc map[string]any) (int64, error) {
	body := map[string]any{}
	if q, ok := queryDoc["query"]; ok {
		body["query"] = q
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("backend: marshal count query: %w", err)
	}

	path := "/" + strings.Join(indices, ",") + "/_count"
	data, err := c.call(ctx, "count", http.MethodPost, path, payload)
	if err != nil {
		return 0, err
	}
	var resp struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, statusError(http.StatusOK, "parse_error", err.Error())
	}
	return resp.Count, nil
}

// Scroll continues a scrolling search.
func (c *Client) Scroll(ctx context.Context, scrollID, keepAlive string) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]any{
		"scroll":    keepAlive,
		"scroll_id": scrollID,
	})
	if err != nil {
		return nil, fmt.Errorf("backend: marshal scroll: %w", err)
	}
	return c.call(ctx, "scroll", http.MethodPost, "/_search/scroll", payload)
}

// Refresh makes recent writes visible to search. Administrative; not used
// on the hot path.
func (c *Client) Refresh(ctx context.Context, index string) error {
	_, err := c.call(ctx, "refresh", http.MethodPost, "/"+url.PathEscape(index)+"/_refresh", nil)
	return err
}

// ForceMerge compacts index segments. Administrative; not used on the hot
// path.
func (c *Client) ForceMerge(ctx context.Context, index string) error {
	_, err := c.call(ctx, "force_merge", http.MethodPost, "/"+url.PathEscape(index)+"/_forcemerge", nil)
	return err
}
