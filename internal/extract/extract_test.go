package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func sampleEpisodePage(title string, paragraphs ...string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>")
	b.WriteString(title)
	b.WriteString("</title></head><body><article><h1>")
	b.WriteString(title)
	b.WriteString("</h1>")
	for _, p := range paragraphs {
		b.WriteString("<p>")
		b.WriteString(p)
		b.WriteString("</p>")
	}
	b.WriteString("</article></body></html>")
	return b.String()
}

func TestFetchExtractsArticleText(t *testing.T) {
	page := sampleEpisodePage(
		"第1話 旅立ち",
		"彼は静かに目を覚ました。窓の外はまだ暗く、雨の音だけが部屋を満たしていた。",
		"「そろそろ行かないと」",
		"そう呟いて、彼は荷物をまとめ始めた。長い旅になることは分かっていた。",
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(server.Close)

	article, err := Fetch(context.Background(), &http.Client{Timeout: 3 * time.Second}, server.URL+"/episode/1")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if !strings.Contains(article.Title, "第1話") {
		t.Fatalf("title = %q, want episode title", article.Title)
	}
	if !strings.Contains(article.Text, "彼は静かに目を覚ました") {
		t.Fatalf("text missing first paragraph: %q", article.Text)
	}
	if !strings.Contains(article.Text, "「そろそろ行かないと」") {
		t.Fatalf("text missing dialogue line: %q", article.Text)
	}
	if strings.Contains(article.Text, "<p>") {
		t.Fatalf("text still contains HTML: %q", article.Text)
	}
}

func TestFetchPlainTextPassthrough(t *testing.T) {
	body := "第2話\r\n\r\n本文の一行目。\r\n二行目。"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	article, err := Fetch(context.Background(), &http.Client{Timeout: 3 * time.Second}, server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	want := "第2話\n\n本文の一行目。\n二行目。"
	if article.Text != want {
		t.Fatalf("text = %q, want %q", article.Text, want)
	}
}

func TestFetchRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	if _, err := Fetch(context.Background(), &http.Client{Timeout: 3 * time.Second}, server.URL); err == nil {
		t.Fatalf("Fetch() error = nil, want status error")
	}
}

func TestFetchEmptyDocumentIsSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("   \r\n\t\r\n"))
	}))
	t.Cleanup(server.Close)

	_, err := Fetch(context.Background(), &http.Client{Timeout: 3 * time.Second}, server.URL)
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("Fetch() error = %v, want ErrEmptyDocument", err)
	}
}

func TestFromHTMLNoContentIsSentinel(t *testing.T) {
	_, err := FromHTML("<!DOCTYPE html><html><head><title>空</title></head><body></body></html>", "https://example.com/empty")
	if !errors.Is(err, ErrNoReadableContent) {
		t.Fatalf("FromHTML() error = %v, want ErrNoReadableContent", err)
	}
}

func TestFlattenHTMLStripsMarkdownArtifacts(t *testing.T) {
	fragment := `<p>前の話は<a href="/prev">こちら</a>。</p><p><img src="/banner.png" alt="banner"></p><p>本文です。</p>`

	text, err := FlattenHTML(fragment)
	if err != nil {
		t.Fatalf("FlattenHTML() error = %v", err)
	}
	if strings.Contains(text, "](") || strings.Contains(text, "![") {
		t.Fatalf("markdown syntax leaked: %q", text)
	}
	if !strings.Contains(text, "こちら") || !strings.Contains(text, "本文です。") {
		t.Fatalf("text lost content: %q", text)
	}
}

func TestNormalizeTextComposesNFC(t *testing.T) {
	decomposed := "제 1화" // NFD jamo for 제 / 화
	got := NormalizeText(decomposed)
	want := "제 1화"
	if got != want {
		t.Fatalf("NormalizeText() = %q, want composed %q", got, want)
	}
}
