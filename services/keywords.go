package services

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxKeywords caps how many terms drive a single lexical search.
const MaxKeywords = 8

// minKeywordRunes drops one-character fragments that match everything.
const minKeywordRunes = 2

// punctuationPattern collapses runs of ASCII and full-width sentence or
// bracket punctuation (plus whitespace) into a single separator.
var punctuationPattern = regexp.MustCompile("[\\s!-/:-@\\[-`{-~，。！？；：、“”‘’（）【】《》〈〉「」『』…—～·]+")

// stopWords are high-frequency, low-information function words for the
// supported language. Terms in this set never become search keywords.
var stopWords = map[string]struct{}{
	"什么": {}, "怎么": {}, "如何": {}, "为什么": {}, "是不是": {},
	"哪些": {}, "可以": {}, "能不能": {}, "的": {}, "了": {},
	"吗": {}, "呢": {}, "吧": {}, "啊": {}, "这个": {},
	"那个": {}, "请问": {}, "一下": {}, "怎样": {}, "有没有": {},
	"是否": {},
}

// ExtractKeywords turns a free-text query into an ordered list of
// significant terms for lexical matching. It is intentionally not a
// general tokenizer: punctuation runs become separators, short terms
// and stop words are dropped, duplicates removed, and the result is
// truncated to MaxKeywords preserving original order.
//
// An empty result is a valid outcome meaning "no usable keywords"; the
// retrieval engine treats it as a signal to fall back, not an error.
func ExtractKeywords(query string) []string {
	cleaned := punctuationPattern.ReplaceAllString(query, " ")

	var keywords []string
	seen := make(map[string]struct{})
	for _, term := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(term) < minKeywordRunes {
			continue
		}
		if _, stop := stopWords[term]; stop {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		keywords = append(keywords, term)
		if len(keywords) == MaxKeywords {
			break
		}
	}
	return keywords
}
