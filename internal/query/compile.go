// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package query

import "fmt"

// Field boosts for the free-text match. Paths follow the note document
// schema: author identity is denormalized to top-level username and
// display_name at index time.
var matchFields = []string{"content^3", "username^2", "display_name^2", "hashtags^1.5", "mentions"}

// userMatchFields replace the note-centric fields when the query targets
// user profiles.
var userMatchFields = []string{"username^3", "display_name^2", "bio"}

// Compile turns a query into the backend query document: bool query with
// must/filter/must_not/should, sort, pagination, source projection and
// highlighting.
func Compile(q *Query) map[string]any {
	boolQuery := map[string]any{}

	if q.Text != "" {
		fields := matchFields
		if q.Type == TypeUsers {
			fields = userMatchFields
		}
		match := map[string]any{
			"query":    q.Text,
			"fields":   fields,
			"type":     "best_fields",
			"operator": "and",
		}
		if q.Config.EnableFuzzyMatching {
			match["fuzziness"] = "AUTO"
		}
		boolQuery["must"] = []any{map[string]any{"multi_match": match}}
	} else {
		boolQuery["must"] = []any{map[string]any{"match_all": map[string]any{}}}
	}

	if filters := compileFilters(&q.Filters); len(filters) > 0 {
		boolQuery["filter"] = filters
	}
	if mustNot := compileExclusions(&q.Filters); len(mustNot) > 0 {
		boolQuery["must_not"] = mustNot
	}
	if should := compilePersonalization(&q.Personal); len(should) > 0 {
		boolQuery["should"] = should
	}

	queryPart := map[string]any{"bool": boolQuery}
	if q.Sort == SortMixed {
		queryPart = wrapFunctionScore(queryPart, q.Config.Weights)
	}

	doc := map[string]any{
		"query":   queryPart,
		"from":    q.Pagination.Offset,
		"size":    q.Pagination.Limit,
		"_source": sourceProjection(q.Type),
		"highlight": map[string]any{
			"fields": map[string]any{
				"content":      map[string]any{},
				"display_name": map[string]any{},
			},
		},
	}
	if sort := compileSort(q.Sort); sort != nil {
		doc["sort"] = sort
	}
	return doc
}

func compileFilters(f *Filters) []any {
	var filters []any

	if !f.FromDate.IsZero() || !f.ToDate.IsZero() {
		bounds := map[string]any{}
		if !f.FromDate.IsZero() {
			bounds["gte"] = f.FromDate.Unix()
		}
		if !f.ToDate.IsZero() {
			bounds["lte"] = f.ToDate.Unix()
		}
		bounds["format"] = "epoch_second"
		filters = append(filters, map[string]any{"range": map[string]any{"created_at": bounds}})
	}

	if f.FromUser != "" {
		filters = append(filters, term("username.raw", f.FromUser))
	}
	if len(f.MentionedUsers) > 0 {
		filters = append(filters, terms("mentions", f.MentionedUsers))
	}
	if len(f.Hashtags) > 0 {
		filters = append(filters, terms("hashtags", f.Hashtags))
	}

	if f.HasMedia {
		filters = append(filters, exists("media_urls"))
	}
	if f.HasLinks {
		filters = append(filters, exists("urls"))
	}
	if f.VerifiedOnly {
		filters = append(filters, term("author.verified", true))
	}

	if f.MinLikes > 0 {
		filters = append(filters, minRange("metrics.likes", f.MinLikes))
	}
	if f.MinReposts > 0 {
		filters = append(filters, minRange("metrics.reposts", f.MinReposts))
	}
	if f.MinReplies > 0 {
		filters = append(filters, minRange("metrics.replies", f.MinReplies))
	}

	if g := f.Geo; g != nil && g.RadiusKM > 0 && (g.Lat != 0 || g.Lon != 0) {
		filters = append(filters, map[string]any{
			"geo_distance": map[string]any{
				"distance": fmt.Sprintf("%.1fkm", g.RadiusKM),
				"location": map[string]any{"lat": g.Lat, "lon": g.Lon},
			},
		})
	}

	if f.Language != "" {
		filters = append(filters, term("language", f.Language))
	}
	if len(f.ContentTypes) > 0 {
		filters = append(filters, terms("media_types", f.ContentTypes))
	}

	return filters
}

func compileExclusions(f *Filters) []any {
	var mustNot []any
	if len(f.ExcludedUsers) > 0 {
		mustNot = append(mustNot, terms("username.raw", f.ExcludedUsers))
	}
	if len(f.ExcludedHashtags) > 0 {
		mustNot = append(mustNot, terms("hashtags", f.ExcludedHashtags))
	}
	return mustNot
}

// compilePersonalization biases ranking toward the viewer's graph:
// followed authors get a 2.0 boost, each declared interest a 1.5 match
// boost. Should clauses never restrict the result set.
func compilePersonalization(p *Personalization) []any {
	if p.ViewerID == "" {
		return nil
	}
	var should []any
	if len(p.Following) > 0 {
		should = append(should, map[string]any{
			"terms": map[string]any{
				"user_id": p.Following,
				"boost":   2.0,
			},
		})
	}
	for _, interest := range p.Interests {
		should = append(should, map[string]any{
			"match": map[string]any{
				"content": map[string]any{"query": interest, "boost": 1.5},
			},
		})
	}
	return should
}

func compileSort(s Sort) []any {
	switch s {
	case SortRecency:
		return []any{map[string]any{"created_at": "desc"}}
	case SortPopularity:
		return []any{
			map[string]any{"metrics.engagement_score": "desc"},
			"_score",
		}
	case SortTrending:
		return []any{
			map[string]any{"metrics.trending_score": "desc"},
			map[string]any{"created_at": "desc"},
		}
	case SortRelevance, SortMixed:
		// _score descending is the backend default; mixed gets its ordering
		// from the function-score wrapper.
		return nil
	}
	return nil
}

// wrapFunctionScore layers popularity and recency signals over relevance:
// log1p on likes weighted by the popularity weight, and a gauss decay on
// created_at (scale 7d, decay 0.5) weighted by the recency weight.
func wrapFunctionScore(inner map[string]any, w RankingWeights) map[string]any {
	return map[string]any{
		"function_score": map[string]any{
			"query": inner,
			"functions": []any{
				map[string]any{
					"field_value_factor": map[string]any{
						"field":    "metrics.likes",
						"modifier": "log1p",
						"missing":  0,
					},
					"weight": w.Popularity,
				},
				map[string]any{
					"gauss": map[string]any{
						"created_at": map[string]any{
							"scale": "7d",
							"decay": 0.5,
						},
					},
					"weight": w.Recency,
				},
			},
			"score_mode": "sum",
			"boost_mode": "multiply",
		},
	}
}

// sourceProjection narrows _source to what the result decoder reads.
func sourceProjection(t Type) []string {
	switch t {
	case TypeUsers:
		return []string{
			"id", "username", "display_name", "bio", "avatar_url", "location",
			"is_verified", "is_private", "status", "reputation", "influence",
			"metrics", "verification", "created_at", "last_active_at",
		}
	case TypeHashtags:
		return []string{"tag", "usage_count", "usage_24h", "velocity", "last_seen_at"}
	default:
		return []string{
			"id", "user_id", "username", "display_name", "content", "hashtags",
			"mentions", "urls", "media_urls", "visibility", "nsfw", "sensitive",
			"created_at", "updated_at", "metrics", "author", "author_suspended",
			"language",
		}
	}
}

func term(field string, value any) map[string]any {
	return map[string]any{"term": map[string]any{field: value}}
}

func terms(field string, values any) map[string]any {
	return map[string]any{"terms": map[string]any{field: values}}
}

func exists(field string) map[string]any {
	return map[string]any{"exists": map[string]any{"field": field}}
}

func minRange(field string, min int64) map[string]any {
	return map[string]any{"range": map[string]any{field: map[string]any{"gte": min}}}
}
