// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package query

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
)

// Fingerprint derives the response-cache key for a query. Queries that
// differ only in personalization share a key when anonymous; an
// authenticated viewer gets a private key suffix so personalized results
// never leak across users.
func (q *Query) Fingerprint() string {
	textHash := xxhash.Sum64String(q.Text)

	filtersJSON, err := json.Marshal(q.Filters)
	if err != nil {
		// Filters are plain data; marshal cannot realistically fail, but a
		// degenerate key must never collide with real ones.
		filtersJSON = []byte(fmt.Sprintf("!%v", err))
	}
	filtersHash := xxhash.Sum64(filtersJSON)

	key := fmt.Sprintf("%x:%s:%s:%d:%d:%x",
		textHash, q.Type, q.Sort, q.Pagination.Offset, q.Pagination.Limit, filtersHash)

	if q.Personal.ViewerID != "" {
		key += ":user:" + q.Personal.ViewerID
	}
	return key
}
