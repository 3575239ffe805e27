// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

// Package analyze turns raw note text into the structured fields the
// indexing pipeline needs: hashtags, mentions, media URLs, language,
// quality and spam scores, content flags, topics and sentiment.
//
// Everything here is pure and deterministic; the same input always yields
// the same result, and nothing touches the network.
package analyze

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Result is the full analysis of one piece of content.
type Result struct {
	Hashtags  []string
	Mentions  []string
	URLs      []string
	MediaURLs []string
	Language  string

	QualityScore float64
	SpamScore    float64

	NSFW      bool
	Sensitive bool

	Topics    []string
	Sentiment string
}

// Analyze runs every analysis pass over the content.
func Analyze(content string) Result {
	urls := ExtractURLs(content)
	hashtags := ExtractHashtags(content)
	return Result{
		Hashtags:     hashtags,
		Mentions:     ExtractMentions(content),
		URLs:         urls,
		MediaURLs:    filterMediaURLs(urls),
		Language:     DetectLanguage(content),
		QualityScore: QualityScore(content, len(hashtags), len(urls)),
		SpamScore:    SpamScore(content, len(urls)),
		NSFW:         matchesAny(nsfwRes, content),
		Sensitive:    matchesAny(sensitiveRes, content),
		Topics:       ExtractTopics(content),
		Sentiment:    Sentiment(content),
	}
}

// ExtractHashtags returns lowercased hashtags without the leading '#',
// deduplicated with first-occurrence order preserved.
func ExtractHashtags(content string) []string {
	return extractDeduped(hashtagRe.FindAllStringSubmatch(content, -1))
}

// ExtractMentions returns lowercased mentioned usernames without the
// leading '@', deduplicated with first-occurrence order preserved.
func ExtractMentions(content string) []string {
	return extractDeduped(mentionRe.FindAllStringSubmatch(content, -1))
}

func extractDeduped(matches [][]string) []string {
	var out []string
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		v := strings.ToLower(m[1])
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ExtractURLs returns every http(s) URL in the content, in order.
func ExtractURLs(content string) []string {
	return urlRe.FindAllString(content, -1)
}

// MediaTypes classifies media URLs into "image", "gif" and "video"
// categories, deduplicated. Host-only matches (no file suffix) count as
// video, which is what the known media hosts overwhelmingly serve.
func MediaTypes(urls []string) []string {
	var out []string
	seen := make(map[string]struct{}, 3)
	add := func(kind string) {
		if _, ok := seen[kind]; !ok {
			seen[kind] = struct{}{}
			out = append(out, kind)
		}
	}
	for _, raw := range urls {
		lower := strings.ToLower(raw)
		switch {
		case strings.Contains(lower, ".gif"):
			add("gif")
		case imageSuffixRe.MatchString(lower):
			add("image")
		default:
			add("video")
		}
	}
	return out
}

// filterMediaURLs keeps URLs that either carry a known image/video suffix
// or live on a known media host.
func filterMediaURLs(urls []string) []string {
	var media []string
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if mediaSuffixRe.MatchString(u.Path) || mediaSuffixRe.MatchString(raw) || mediaHostRe.MatchString(u.Host) {
			media = append(media, raw)
		}
	}
	return media
}

// DetectLanguage guesses the content language. A dominant non-Latin script
// decides immediately (Cyrillic ru, CJK zh, Arabic ar); otherwise common
// Latin-script stopwords vote between en, es and fr. Defaults to "en".
func DetectLanguage(content string) string {
	for _, r := range content {
		switch {
		case r >= 0x0400 && r <= 0x04FF:
			return "ru"
		case r >= 0x4E00 && r <= 0x9FFF:
			return "zh"
		case r >= 0x0600 && r <= 0x06FF:
			return "ar"
		}
	}

	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(content)) {
		words[strings.Trim(w, ".,!?;:'\"()")] = struct{}{}
	}

	best, bestCount := "en", 0
	for _, lang := range []string{"en", "es", "fr"} {
		count := 0
		for _, stop := range languageStopwords[lang] {
			if _, ok := words[stop]; ok {
				count++
			}
		}
		if count > bestCount {
			best, bestCount = lang, count
		}
	}
	return best
}

// QualityScore estimates content quality in [0,1]. Base 0.5 with additive
// deltas for length bands, capitalization, punctuation density, URL count
// and hashtag volume.
func QualityScore(content string, hashtagCount, urlCount int) float64 {
	runes := []rune(content)
	n := len(runes)
	if n == 0 {
		return 0
	}

	score := 0.5

	switch {
	case n < 10:
		score -= 0.3
	case n > 280 && n < 1000:
		score += 0.2
	case n > 2000:
		score -= 0.1
	}

	caps, punct := 0, 0
	hasUpper := false
	for _, r := range runes {
		if unicode.IsUpper(r) {
			caps++
			hasUpper = true
		}
		if unicode.IsPunct(r) {
			punct++
		}
	}
	if hasUpper {
		score += 0.1
	}
	if float64(caps)/float64(n) > 0.5 {
		score -= 0.3
	}
	if float64(punct)/float64(n) > 0.3 {
		score -= 0.2
	}

	if urlCount == 1 {
		score += 0.1
	}
	if urlCount > 3 {
		score -= 0.3
	}

	if hashtagCount > 5 {
		score -= 0.2
	}
	if hashtagCount > 10 {
		score -= 0.3
	}

	return clamp01(score)
}

// SpamScore estimates spam likelihood in [0,1] from pattern hits, URL
// volume, caps density and exclamation marks.
func SpamScore(content string, urlCount int) float64 {
	score := 0.0
	for _, re := range spamRes {
		if re.MatchString(content) {
			score += 0.3
		}
	}

	if urlCount > 3 {
		score += 0.4
	}

	runes := []rune(content)
	if n := len(runes); n > 0 {
		caps := 0
		for _, r := range runes {
			if unicode.IsUpper(r) {
				caps++
			}
		}
		if float64(caps)/float64(n) > 0.7 {
			score += 0.2
		}
	}

	if strings.Count(content, "!") > 5 {
		score += 0.1
	}

	return clamp01(score)
}

// ExtractTopics returns the topic categories for which at least
// minTopicKeywords distinct keywords appear in the content. Sorted for a
// stable output.
func ExtractTopics(content string) []string {
	counts := topicMatcher.CountByTag(strings.ToLower(content))
	var topics []string
	for topic, n := range counts {
		if n >= minTopicKeywords {
			topics = append(topics, topic)
		}
	}
	sort.Strings(topics)
	return topics
}

// Sentiment classifies content as "positive", "negative" or "neutral" by
// keyword voting.
func Sentiment(content string) string {
	counts := sentimentMatcher.CountByTag(strings.ToLower(content))
	switch {
	case counts["positive"] > counts["negative"]:
		return "positive"
	case counts["negative"] > counts["positive"]:
		return "negative"
	default:
		return "neutral"
	}
}

// IsNSFW reports whether the content matches any NSFW pattern.
func IsNSFW(content string) bool {
	return matchesAny(nsfwRes, content)
}

// IsSensitive reports whether the content matches any sensitive-topic
// pattern.
func IsSensitive(content string) bool {
	return matchesAny(sensitiveRes, content)
}

func matchesAny(res []*regexp.Regexp, content string) bool {
	for _, re := range res {
		if re.MatchString(content) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
