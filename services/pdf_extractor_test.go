package services

import "testing"

func TestNormalizeExtractedText(t *testing.T) {
	in := "  标题   一  \n\n\n正文  第一段\t内容 \n   \n第二段"
	want := "标题 一\n正文 第一段 内容\n第二段"
	if got := normalizeExtractedText(in); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExtractPDFTextRejectsGarbage(t *testing.T) {
	if _, _, err := ExtractPDFText([]byte("not a pdf")); err == nil {
		t.Fatalf("expected error for non-PDF input")
	}
}
