// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package query

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/sonet-social/searchd/internal/models"
)

var parseNow = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func TestParse_OperatorMix(t *testing.T) {
	q := Parse(`from:@alice #coffee since:2d min_likes:50 latte`, parseNow)

	if q.Text != "latte" {
		t.Errorf("Text = %q, want latte", q.Text)
	}
	if q.Filters.FromUser != "alice" {
		t.Errorf("FromUser = %q", q.Filters.FromUser)
	}
	if !reflect.DeepEqual(q.Filters.Hashtags, []string{"coffee"}) {
		t.Errorf("Hashtags = %v", q.Filters.Hashtags)
	}
	if want := parseNow.Add(-48 * time.Hour); !q.Filters.FromDate.Equal(want) {
		t.Errorf("FromDate = %v, want %v", q.Filters.FromDate, want)
	}
	if q.Filters.MinLikes != 50 {
		t.Errorf("MinLikes = %d", q.Filters.MinLikes)
	}
}

func TestParse_ResidualCollapsed(t *testing.T) {
	q := Parse("  hot   #go   coffee   in   seattle  ", parseNow)
	if q.Text != "hot coffee in seattle" {
		t.Errorf("Text = %q", q.Text)
	}
}

func TestParse_NearWithin(t *testing.T) {
	q := Parse(`ramen near:"Tokyo Station" within:5km`, parseNow)
	if q.Text != "ramen" {
		t.Errorf("Text = %q", q.Text)
	}
	g := q.Filters.Geo
	if g == nil || g.Place != "Tokyo Station" || g.RadiusKM != 5 {
		t.Fatalf("Geo = %+v", g)
	}
}

func TestParse_TimeFormats(t *testing.T) {
	tests := []struct {
		token string
		want  time.Time
	}{
		{"since:3h", parseNow.Add(-3 * time.Hour)},
		{"since:1w", parseNow.Add(-7 * 24 * time.Hour)},
		{"since:2026-01-15", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"since:2026-01-15T08:30:00", time.Date(2026, 1, 15, 8, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		q := Parse(tt.token, parseNow)
		if !q.Filters.FromDate.Equal(tt.want) {
			t.Errorf("%s: FromDate = %v, want %v", tt.token, q.Filters.FromDate, tt.want)
		}
	}
}

func TestParse_Exclusions(t *testing.T) {
	q := Parse("-@spammer -#ads golang", parseNow)
	if !reflect.DeepEqual(q.Filters.ExcludedUsers, []string{"spammer"}) {
		t.Errorf("ExcludedUsers = %v", q.Filters.ExcludedUsers)
	}
	if !reflect.DeepEqual(q.Filters.ExcludedHashtags, []string{"ads"}) {
		t.Errorf("ExcludedHashtags = %v", q.Filters.ExcludedHashtags)
	}
}

func TestCanonical_RoundTrip(t *testing.T) {
	original := Parse(`from:@alice #coffee min_likes:50 lang:en latte art`, parseNow)
	reparsed := Parse(original.Canonical(), parseNow)

	if reparsed.Text != original.Text {
		t.Errorf("Text = %q, want %q", reparsed.Text, original.Text)
	}
	if !reflect.DeepEqual(reparsed.Filters, original.Filters) {
		t.Errorf("Filters = %+v, want %+v", reparsed.Filters, original.Filters)
	}
}

func TestValidate(t *testing.T) {
	valid := Parse("coffee", parseNow)
	if err := valid.Validate(); err != nil {
		t.Errorf("valid query rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Query)
	}{
		{"empty text and filters", func(q *Query) { q.Text = ""; q.Filters = Filters{} }},
		{"zero limit", func(q *Query) { q.Pagination.Limit = 0 }},
		{"limit over cap", func(q *Query) { q.Pagination.Limit = MaxLimit + 1 }},
		{"negative offset", func(q *Query) { q.Pagination.Offset = -1 }},
		{"zero timeout", func(q *Query) { q.Config.Timeout = 0 }},
		{"negative weight", func(q *Query) { q.Config.Weights.Popularity = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Parse("coffee", parseNow)
			tt.mutate(&q)
			if err := q.Validate(); err == nil {
				t.Error("invalid query accepted")
			}
		})
	}

	// Filters alone carry a query.
	filterOnly := Parse("#coffee", parseNow)
	if err := filterOnly.Validate(); err != nil {
		t.Errorf("filter-only query rejected: %v", err)
	}
}

func TestFingerprint_Personalization(t *testing.T) {
	a := Parse("coffee", parseNow)
	b := Parse("coffee", parseNow)

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical anonymous queries must share a fingerprint")
	}

	b.Personal = Personalization{ViewerID: "u1", Following: []string{"u9"}}
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("personalized query must not share the anonymous fingerprint")
	}

	c := Parse("coffee", parseNow)
	c.Personal = Personalization{ViewerID: "u1", Interests: []string{"espresso"}}
	if b.Fingerprint() != c.Fingerprint() {
		t.Error("fingerprint should depend on viewer id, not the rest of the personalization context")
	}
}

func TestFingerprint_VariesWithShape(t *testing.T) {
	base := Parse("coffee", parseNow)

	differs := []func(*Query){
		func(q *Query) { q.Text = "tea" },
		func(q *Query) { q.Sort = SortRecency },
		func(q *Query) { q.Type = TypeUsers },
		func(q *Query) { q.Pagination.Offset = 20 },
		func(q *Query) { q.Filters.MinLikes = 5 },
	}
	for i, mutate := range differs {
		q := Parse("coffee", parseNow)
		mutate(&q)
		if q.Fingerprint() == base.Fingerprint() {
			t.Errorf("mutation %d did not change the fingerprint", i)
		}
	}
}

func TestCompile_FullQuery(t *testing.T) {
	q := Parse(`from:@alice #coffee min_likes:50 latte`, parseNow)
	q.Config.EnableFuzzyMatching = true
	doc := Compile(&q)

	boolQ := doc["query"].(map[string]any)["bool"].(map[string]any)

	must := boolQ["must"].([]any)
	match := must[0].(map[string]any)["multi_match"].(map[string]any)
	if match["query"] != "latte" || match["operator"] != "and" || match["fuzziness"] != "AUTO" {
		t.Errorf("multi_match = %v", match)
	}
	if !reflect.DeepEqual(match["fields"], matchFields) {
		t.Errorf("fields = %v", match["fields"])
	}

	filters := boolQ["filter"].([]any)
	if len(filters) != 3 { // from_user, hashtags, min_likes
		t.Fatalf("filters = %v", filters)
	}

	if doc["from"] != 0 || doc["size"] != DefaultLimit {
		t.Errorf("pagination from=%v size=%v", doc["from"], doc["size"])
	}
	if _, ok := doc["highlight"]; !ok {
		t.Error("highlight missing")
	}
}

func TestCompile_MustNot(t *testing.T) {
	q := Parse("-@spammer -#ads golang", parseNow)
	boolQ := Compile(&q)["query"].(map[string]any)["bool"].(map[string]any)

	mustNot, ok := boolQ["must_not"].([]any)
	if !ok || len(mustNot) != 2 {
		t.Fatalf("must_not = %v", boolQ["must_not"])
	}
}

func TestCompile_Personalization(t *testing.T) {
	q := Parse("coffee", parseNow)
	q.Personal = Personalization{
		ViewerID:  "u1",
		Following: []string{"u7", "u8"},
		Interests: []string{"espresso"},
	}
	boolQ := Compile(&q)["query"].(map[string]any)["bool"].(map[string]any)

	should, ok := boolQ["should"].([]any)
	if !ok || len(should) != 2 {
		t.Fatalf("should = %v", boolQ["should"])
	}
	followBoost := should[0].(map[string]any)["terms"].(map[string]any)
	if followBoost["boost"] != 2.0 {
		t.Errorf("follow boost = %v", followBoost["boost"])
	}
	// Followed authors are matched on the note's top-level user_id.
	if _, ok := followBoost["user_id"]; !ok {
		t.Errorf("follow boost targets %v, want user_id", followBoost)
	}

	// Anonymous queries get no should clauses.
	anon := Parse("coffee", parseNow)
	anonBool := Compile(&anon)["query"].(map[string]any)["bool"].(map[string]any)
	if _, ok := anonBool["should"]; ok {
		t.Error("anonymous query carries personalization clauses")
	}
}

func TestCompile_SortModes(t *testing.T) {
	for _, tt := range []struct {
		sort     Sort
		wantSort bool
	}{
		{SortRelevance, false},
		{SortRecency, true},
		{SortPopularity, true},
		{SortTrending, true},
		{SortMixed, false},
	} {
		q := Parse("coffee", parseNow)
		q.Sort = tt.sort
		doc := Compile(&q)
		if _, ok := doc["sort"]; ok != tt.wantSort {
			t.Errorf("sort %q: explicit sort present=%v, want %v", tt.sort, ok, tt.wantSort)
		}
	}
}

func TestCompile_MixedFunctionScore(t *testing.T) {
	q := Parse("coffee", parseNow)
	q.Sort = SortMixed
	q.Config.Weights = RankingWeights{Popularity: 2.0, Recency: 0.5}

	fs, ok := Compile(&q)["query"].(map[string]any)["function_score"].(map[string]any)
	if !ok {
		t.Fatal("mixed sort did not produce a function_score")
	}
	if fs["score_mode"] != "sum" || fs["boost_mode"] != "multiply" {
		t.Errorf("modes = %v / %v", fs["score_mode"], fs["boost_mode"])
	}

	functions := fs["functions"].([]any)
	if len(functions) != 2 {
		t.Fatalf("functions = %v", functions)
	}
	pop := functions[0].(map[string]any)
	if pop["weight"] != 2.0 {
		t.Errorf("popularity weight = %v", pop["weight"])
	}
	gauss := functions[1].(map[string]any)["gauss"].(map[string]any)["created_at"].(map[string]any)
	if gauss["scale"] != "7d" || gauss["decay"] != 0.5 {
		t.Errorf("gauss = %v", gauss)
	}
}

// TestCompile_FieldPathsMatchNoteDocument compiles a query exercising every
// filter and checks that each field path the compiler emits resolves inside
// an indexed note document, so the compiler and the document schema cannot
// drift apart.
func TestCompile_FieldPathsMatchNoteDocument(t *testing.T) {
	q := Parse("latte", parseNow)
	q.Filters = Filters{
		FromDate:         parseNow.Add(-24 * time.Hour),
		FromUser:         "alice",
		MentionedUsers:   []string{"bob"},
		ExcludedUsers:    []string{"spammer"},
		Hashtags:         []string{"coffee"},
		ExcludedHashtags: []string{"ads"},
		HasMedia:         true,
		HasLinks:         true,
		VerifiedOnly:     true,
		MinLikes:         1,
		MinReposts:       1,
		MinReplies:       1,
		Geo:              &GeoFilter{Lat: 35.6, Lon: 139.7, RadiusKM: 5},
		Language:         "en",
		ContentTypes:     []string{"image"},
	}
	q.Personal = Personalization{ViewerID: "u1", Following: []string{"u2"}}
	doc := Compile(&q)

	note := models.NoteDocument{
		ID:          "n1",
		UserID:      "u1",
		Username:    "alice",
		DisplayName: "Alice",
		Content:     "latte",
		Hashtags:    []string{"coffee"},
		Mentions:    []string{"bob"},
		URLs:        []string{"https://example.com"},
		MediaURLs:   []string{"https://example.com/a.jpg"},
		MediaTypes:  []string{"image"},
		Language:    "en",
		Location:    &models.GeoPoint{Lat: 35.6, Lon: 139.7},
		Visibility:  models.VisibilityPublic,
		CreatedAt:   parseNow,
		Metrics:     models.NoteMetrics{Likes: 1, Reposts: 1, Replies: 1},
		Author:      models.AuthorSnapshot{Verified: true},
	}
	raw, err := json.Marshal(note)
	if err != nil {
		t.Fatalf("marshal note: %v", err)
	}
	var indexed map[string]any
	if err := json.Unmarshal(raw, &indexed); err != nil {
		t.Fatalf("unmarshal note: %v", err)
	}

	paths := collectFieldPaths(doc)
	if len(paths) < 12 {
		t.Fatalf("collected only %d field paths: %v", len(paths), paths)
	}
	for _, p := range paths {
		p = strings.TrimSuffix(p, ".raw")
		if !pathResolves(indexed, p) {
			t.Errorf("compiled field %q does not exist in the note document", p)
		}
	}
}

// collectFieldPaths walks a compiled query document and gathers every field
// name referenced by a term, terms, exists, range, geo_distance or
// multi_match clause.
func collectFieldPaths(node any) []string {
	var paths []string
	var walk func(any)
	walk = func(n any) {
		switch v := n.(type) {
		case map[string]any:
			for key, val := range v {
				switch key {
				case "term", "terms":
					for field := range val.(map[string]any) {
						if field != "boost" {
							paths = append(paths, field)
						}
					}
				case "exists":
					paths = append(paths, val.(map[string]any)["field"].(string))
				case "range":
					for field := range val.(map[string]any) {
						paths = append(paths, field)
					}
				case "geo_distance":
					for field := range val.(map[string]any) {
						if field != "distance" {
							paths = append(paths, field)
						}
					}
				case "fields":
					if fields, ok := val.([]string); ok {
						for _, f := range fields {
							name, _, _ := strings.Cut(f, "^")
							paths = append(paths, name)
						}
					}
				default:
					walk(val)
				}
			}
		case []any:
			for _, item := range v {
				walk(item)
			}
		}
	}
	walk(node)
	return paths
}

// pathResolves reports whether a dotted field path exists in a decoded JSON
// document.
func pathResolves(doc map[string]any, path string) bool {
	cur := any(doc)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return false
		}
		cur, ok = m[part]
		if !ok {
			return false
		}
	}
	return true
}

func TestCompile_PaginationClamp(t *testing.T) {
	q := Parse("coffee", parseNow)
	q.Pagination = Pagination{Offset: -5, Limit: 5000}
	q.Pagination.Clamp()
	doc := Compile(&q)
	if doc["from"] != 0 || doc["size"] != MaxLimit {
		t.Errorf("from=%v size=%v", doc["from"], doc["size"])
	}
}
