package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestWebImporterFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>帮助中心 - 退款</title>
<script>var tracking = true;</script>
<style>body { color: red; }</style></head>
<body><nav>首页 产品 帮助</nav>
<h1>退款政策</h1><p>七天内可无理由退款。</p>
<footer>版权所有</footer></body></html>`))
	}))
	defer srv.Close()

	imp := NewWebImporter(5 * time.Second)
	page, err := imp.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if page.Title != "帮助中心 - 退款" {
		t.Fatalf("title = %q", page.Title)
	}
	if !strings.Contains(page.Text, "七天内可无理由退款") {
		t.Fatalf("body text missing: %q", page.Text)
	}
	for _, stripped := range []string{"tracking", "color: red", "版权所有", "首页 产品 帮助"} {
		if strings.Contains(page.Text, stripped) {
			t.Fatalf("non-content element leaked into text: %q", stripped)
		}
	}
}

func TestWebImporterFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	imp := NewWebImporter(5 * time.Second)
	if _, err := imp.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}
