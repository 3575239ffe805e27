// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package analyze

import (
	"regexp"

	"github.com/sonet-social/searchd/internal/cache"
)

// Extraction patterns. Hashtag word characters span Latin-1 supplement,
// Cyrillic and the CJK unified block so tags in those scripts survive
// extraction.
var (
	hashtagRe = regexp.MustCompile(`#([0-9A-Za-z_\x{00C0}-\x{00FF}\x{0400}-\x{04FF}\x{4E00}-\x{9FFF}]+)`)
	mentionRe = regexp.MustCompile(`@([A-Za-z0-9_]+)`)
	urlRe     = regexp.MustCompile(`https?://[^\s]+`)

	mediaSuffixRe = regexp.MustCompile(`(?i)\.(?:jpg|jpeg|png|gif|webp|svg|mp4|webm|mov|avi|mkv)(?:\?[^\s]*)?$`)
	imageSuffixRe = regexp.MustCompile(`(?i)\.(?:jpg|jpeg|png|webp|svg)(?:\?[^\s]*)?`)

	// Hosts that serve media even without a file-extension path.
	mediaHostRe = regexp.MustCompile(`(?i)^(?:www\.)?(?:youtube\.com|youtu\.be|vimeo\.com|twitch\.tv|instagram\.com|tiktok\.com|giphy\.com|imgur\.com)$`)
)

// Spam patterns, each worth +0.3 on the spam score.
var spamRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:click here|buy now|limited time|act fast|guaranteed|free money|earn \$\d+)\b`),
	regexp.MustCompile(`(?i)\b(?:viagra|cialis|casino|lottery|winner|congratulations)\b`),
	regexp.MustCompile(`(?i)(?:https?://)?(?:bit\.ly|tinyurl|t\.co)/[a-zA-Z0-9]{6,}`),
	regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b`),
	regexp.MustCompile(`\$\d+(?:\.\d{2})?(?:\s*(?:per|/)\s*(?:hour|day|week|month))?`),
}

var nsfwRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:porn|xxx|nude|naked|sex|adult|18\+)\b`),
	regexp.MustCompile(`(?i)\b(?:fuck|shit|bitch|asshole)\b`),
	regexp.MustCompile(`(?i)\b(?:onlyfans|pornhub|xhamster|redtube)\b`),
}

var sensitiveRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:suicide|depression|self-harm|cutting|overdose)\b`),
	regexp.MustCompile(`(?i)\b(?:terrorism|bomb|weapon|gun|violence)\b`),
	regexp.MustCompile(`(?i)\b(?:hate|racist|nazi|fascist|supremacist)\b`),
}

// topicMatcher tags content with topic categories. A category is emitted
// only when at least two of its keywords appear (see minTopicKeywords).
var topicMatcher = cache.NewKeywordMatcher(map[string][]string{
	"technology":    {"ai", "machine learning", "blockchain", "cryptocurrency", "programming", "software", "tech", "innovation"},
	"sports":        {"football", "basketball", "soccer", "baseball", "tennis", "olympics", "championship", "game", "match"},
	"politics":      {"election", "government", "policy", "democracy", "vote", "politician", "congress", "senate"},
	"entertainment": {"movie", "music", "celebrity", "hollywood", "netflix", "streaming", "concert", "album"},
	"science":       {"research", "study", "discovery", "experiment", "physics", "chemistry", "biology", "space"},
	"health":        {"fitness", "workout", "diet", "nutrition", "medical", "doctor", "hospital", "medicine"},
	"business":      {"startup", "entrepreneur", "investment", "stock", "market", "economy", "finance", "company"},
	"travel":        {"vacation", "trip", "tourism", "hotel", "flight", "destination", "adventure", "explore"},
	"food":          {"recipe", "cooking", "restaurant", "chef", "cuisine", "meal", "dinner", "lunch"},
	"education":     {"university", "college", "student", "teacher", "learning", "course", "degree", "scholarship"},
})

const minTopicKeywords = 2

// sentimentMatcher votes positive vs negative keyword hits.
var sentimentMatcher = cache.NewKeywordMatcher(map[string][]string{
	"positive": {"good", "great", "awesome", "amazing", "wonderful", "excellent", "fantastic", "love", "happy", "excited"},
	"negative": {"bad", "terrible", "awful", "horrible", "hate", "angry", "sad", "disappointed", "frustrated", "annoying"},
})

// Latin-script stoplists used as a language tiebreaker when no dominant
// non-Latin script is present.
var languageStopwords = map[string][]string{
	"en": {"the", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by"},
	"es": {"el", "la", "de", "que", "y", "en", "un", "es", "se", "no", "te", "lo"},
	"fr": {"le", "de", "et", "à", "un", "il", "être", "en", "avoir", "que", "pour", "ce"},
}
