package services

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestExtractKeywordsDropsStopWordsAndShortTerms(t *testing.T) {
	got := ExtractKeywords("请问 退款 的 政策 是 什么 呢")
	want := []string{"退款", "政策"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExtractKeywordsPunctuationAsSeparator(t *testing.T) {
	got := ExtractKeywords("退款，政策。配送！流程？")
	want := []string{"退款", "政策", "配送", "流程"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExtractKeywordsDedupePreservesOrder(t *testing.T) {
	got := ExtractKeywords("退款 政策 退款 流程 政策")
	want := []string{"退款", "政策", "流程"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExtractKeywordsCap(t *testing.T) {
	var terms []string
	for i := 0; i < 12; i++ {
		terms = append(terms, fmt.Sprintf("keyword%d", i))
	}
	got := ExtractKeywords(strings.Join(terms, " "))
	if len(got) != MaxKeywords {
		t.Fatalf("expected %d keywords, got %d", MaxKeywords, len(got))
	}
	if !reflect.DeepEqual(got, terms[:MaxKeywords]) {
		t.Fatalf("cap should keep the earliest terms, got %v", got)
	}
}

func TestExtractKeywordsEmptyResult(t *testing.T) {
	// All stop words, single runes or punctuation: a legal empty result.
	for _, query := range []string{"", "的 了 吗", "a b c", "！？。，"} {
		if got := ExtractKeywords(query); len(got) != 0 {
			t.Fatalf("query %q: expected no keywords, got %v", query, got)
		}
	}
}

func TestExtractKeywordsNoStandaloneStopTerms(t *testing.T) {
	got := ExtractKeywords("这是什么意思呢")
	for _, kw := range got {
		if kw == "什么" || kw == "呢" {
			t.Fatalf("stop word %q surfaced as standalone keyword in %v", kw, got)
		}
	}
}

func TestExtractKeywordsMixedLanguage(t *testing.T) {
	got := ExtractKeywords("API 调用 limit 是 多少")
	want := []string{"API", "调用", "limit", "多少"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
