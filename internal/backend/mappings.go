// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package backend

import "context"

// Logical index names. Physical names carry the configured prefix, e.g.
// "sonet_notes".
const (
	IndexNotes       = "notes"
	IndexUsers       = "users"
	IndexHashtags    = "hashtags"
	IndexSuggestions = "suggestions"
)

// commonSettings is shared index configuration: shard layout, the text
// analyzers and the keyword normalizer.
func commonSettings(shards, replicas int) map[string]any {
	return map[string]any{
		"number_of_shards":   shards,
		"number_of_replicas": replicas,
		"analysis": map[string]any{
			"normalizer": map[string]any{
				"lowercase_normalizer": map[string]any{
					"type":   "custom",
					"filter": []string{"lowercase", "asciifolding"},
				},
			},
			"analyzer": map[string]any{
				"content_analyzer": map[string]any{
					"type":      "custom",
					"tokenizer": "standard",
					"filter":    []string{"lowercase", "asciifolding", "stop"},
				},
				"handle_analyzer": map[string]any{
					"type":      "custom",
					"tokenizer": "keyword",
					"filter":    []string{"lowercase"},
				},
				"edge_ngram_analyzer": map[string]any{
					"type":      "custom",
					"tokenizer": "edge_ngram_tokenizer",
					"filter":    []string{"lowercase"},
				},
			},
			"tokenizer": map[string]any{
				"edge_ngram_tokenizer": map[string]any{
					"type":        "edge_ngram",
					"min_gram":    2,
					"max_gram":    15,
					"token_chars": []string{"letter", "digit"},
				},
			},
		},
		"similarity": map[string]any{
			"default": map[string]any{
				"type": "BM25",
				"b":    0.75,
				"k1":   1.2,
			},
		},
	}
}

// notesMapping mirrors the NoteDocument JSON: author identity lives at
// the top level (user_id, username, display_name), the author snapshot
// carries graph counts and flags, and the suspension mirror is the
// top-level author_suspended boolean the query layer filters on.
func notesMapping() map[string]any {
	return map[string]any{
		"settings": commonSettings(3, 1),
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":      map[string]any{"type": "keyword"},
				"user_id": map[string]any{"type": "keyword"},
				"username": map[string]any{
					"type":     "text",
					"analyzer": "handle_analyzer",
					"fields": map[string]any{
						"raw": map[string]any{"type": "keyword", "normalizer": "lowercase_normalizer"},
					},
				},
				"display_name": map[string]any{"type": "text", "analyzer": "content_analyzer"},
				"content": map[string]any{
					"type":     "text",
					"analyzer": "content_analyzer",
				},
				"language": map[string]any{"type": "keyword"},
				"hashtags": map[string]any{
					"type":       "keyword",
					"normalizer": "lowercase_normalizer",
				},
				"mentions": map[string]any{
					"type":       "keyword",
					"normalizer": "lowercase_normalizer",
				},
				"urls":          map[string]any{"type": "keyword"},
				"media_urls":    map[string]any{"type": "keyword"},
				"media_types":   map[string]any{"type": "keyword"},
				"reply_to_id":   map[string]any{"type": "keyword"},
				"repost_of_id":  map[string]any{"type": "keyword"},
				"thread_id":     map[string]any{"type": "keyword"},
				"visibility":    map[string]any{"type": "keyword"},
				"sensitive":     map[string]any{"type": "boolean"},
				"nsfw":          map[string]any{"type": "boolean"},
				"topics":        map[string]any{"type": "keyword"},
				"sentiment":     map[string]any{"type": "keyword"},
				"quality_score": map[string]any{"type": "float"},
				"spam_score":    map[string]any{"type": "float"},
				"created_at":    map[string]any{"type": "date", "format": "epoch_second||strict_date_optional_time"},
				"updated_at":    map[string]any{"type": "date", "format": "epoch_second||strict_date_optional_time"},
				"location":      map[string]any{"type": "geo_point"},
				"metrics": map[string]any{
					"properties": map[string]any{
						"likes":            map[string]any{"type": "long"},
						"reposts":          map[string]any{"type": "long"},
						"replies":          map[string]any{"type": "long"},
						"views":            map[string]any{"type": "long"},
						"engagement_score": map[string]any{"type": "float"},
						"virality_score":   map[string]any{"type": "float"},
						"trending_score":   map[string]any{"type": "float"},
					},
				},
				"author": map[string]any{
					"properties": map[string]any{
						"follower_count":     map[string]any{"type": "long"},
						"following_count":    map[string]any{"type": "long"},
						"reputation":         map[string]any{"type": "float"},
						"verified":           map[string]any{"type": "boolean"},
						"verification_level": map[string]any{"type": "keyword"},
					},
				},
				"author_suspended": map[string]any{"type": "boolean"},
				"boost_factors": map[string]any{
					"properties": map[string]any{
						"recency_boost":         map[string]any{"type": "float"},
						"engagement_boost":      map[string]any{"type": "float"},
						"author_boost":          map[string]any{"type": "float"},
						"content_quality_boost": map[string]any{"type": "float"},
					},
				},
			},
		},
	}
}

func usersMapping() map[string]any {
	return map[string]any{
		"settings": commonSettings(2, 1),
		"mappings": map[string]any{
			"properties": map[string]any{
				"id": map[string]any{"type": "keyword"},
				"username": map[string]any{
					"type":     "text",
					"analyzer": "handle_analyzer",
					"fields": map[string]any{
						"raw":    map[string]any{"type": "keyword", "normalizer": "lowercase_normalizer"},
						"prefix": map[string]any{"type": "text", "analyzer": "edge_ngram_analyzer", "search_analyzer": "standard"},
					},
				},
				"display_name": map[string]any{
					"type":     "text",
					"analyzer": "content_analyzer",
					"fields": map[string]any{
						"prefix": map[string]any{"type": "text", "analyzer": "edge_ngram_analyzer", "search_analyzer": "standard"},
					},
				},
				"bio":            map[string]any{"type": "text", "analyzer": "content_analyzer"},
				"location":       map[string]any{"type": "text"},
				"website":        map[string]any{"type": "keyword", "index": false},
				"status":         map[string]any{"type": "keyword"},
				"is_verified":    map[string]any{"type": "boolean"},
				"is_private":     map[string]any{"type": "boolean"},
				"is_bot":         map[string]any{"type": "boolean"},
				"bot_likelihood": map[string]any{"type": "float"},
				"reputation":     map[string]any{"type": "float"},
				"influence":      map[string]any{"type": "float"},
				"authenticity":   map[string]any{"type": "float"},
				"created_at":     map[string]any{"type": "date", "format": "epoch_second||strict_date_optional_time"},
				"last_active_at": map[string]any{"type": "date", "format": "epoch_second||strict_date_optional_time"},
				"verification": map[string]any{
					"properties": map[string]any{
						"type":        map[string]any{"type": "keyword"},
						"verified_at": map[string]any{"type": "date", "format": "epoch_second||strict_date_optional_time"},
						"badge":       map[string]any{"type": "keyword"},
					},
				},
				"metrics": map[string]any{
					"properties": map[string]any{
						"followers":        map[string]any{"type": "long"},
						"following":        map[string]any{"type": "long"},
						"notes":            map[string]any{"type": "long"},
						"engagement_rate":  map[string]any{"type": "float"},
						"follower_growth":  map[string]any{"type": "float"},
						"avg_note_quality": map[string]any{"type": "float"},
					},
				},
			},
		},
	}
}

func hashtagsMapping() map[string]any {
	return map[string]any{
		"settings": commonSettings(1, 1),
		"mappings": map[string]any{
			"properties": map[string]any{
				"tag": map[string]any{
					"type":       "keyword",
					"normalizer": "lowercase_normalizer",
					"fields": map[string]any{
						"prefix": map[string]any{"type": "text", "analyzer": "edge_ngram_analyzer", "search_analyzer": "standard"},
					},
				},
				"usage_count":   map[string]any{"type": "long"},
				"usage_24h":     map[string]any{"type": "long"},
				"velocity":      map[string]any{"type": "float"},
				"first_seen_at": map[string]any{"type": "date", "format": "epoch_second||strict_date_optional_time"},
				"last_seen_at":  map[string]any{"type": "date", "format": "epoch_second||strict_date_optional_time"},
			},
		},
	}
}

func suggestionsMapping() map[string]any {
	return map[string]any{
		"settings": commonSettings(1, 1),
		"mappings": map[string]any{
			"properties": map[string]any{
				"text": map[string]any{"type": "keyword", "normalizer": "lowercase_normalizer"},
				"suggest": map[string]any{
					"type":                          "completion",
					"analyzer":                      "simple",
					"preserve_separators":           true,
					"preserve_position_increments":  true,
					"max_input_length":              64,
				},
				"weight": map[string]any{"type": "long"},
				"kind":   map[string]any{"type": "keyword"}, // query, hashtag, user
			},
		},
	}
}

// EnsureIndexes creates every index searchd writes to, skipping those that
// already exist. Called once at startup before pipelines accept work.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	for logical, mapping := range map[string]map[string]any{
		IndexNotes:       notesMapping(),
		IndexUsers:       usersMapping(),
		IndexHashtags:    hashtagsMapping(),
		IndexSuggestions: suggestionsMapping(),
	} {
		if err := c.CreateIndex(ctx, c.IndexName(logical), mapping); err != nil {
			return err
		}
	}
	return nil
}
