package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

const maxErrBody = 1024

// Extraction failures callers may want to tell apart from transport errors.
var (
	ErrEmptyDocument     = errors.New("empty document")
	ErrNoReadableContent = errors.New("no readable content")
)

type Article struct {
	Title    string
	Text     string
	FinalURL string
}

// Fetch downloads a page and extracts its readable article text. Non-HTML
// responses are taken as plain text.
func Fetch(ctx context.Context, httpClient *http.Client, rawURL string) (Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Article{}, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", "noveltrans/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain")

	resp, err := httpClient.Do(req)
	if err != nil {
		return Article{}, fmt.Errorf("download URL: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Article{}, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errSnippet := strings.TrimSpace(string(body))
		if len(errSnippet) > maxErrBody {
			errSnippet = errSnippet[:maxErrBody] + "..."
		}
		return Article{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, errSnippet)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if !isHTMLContentType(resp.Header.Get("Content-Type")) {
		text := NormalizeText(string(body))
		if text == "" {
			return Article{}, fmt.Errorf("%w at %s", ErrEmptyDocument, finalURL)
		}
		return Article{Text: text, FinalURL: finalURL}, nil
	}

	article, err := FromHTML(string(body), finalURL)
	if err != nil {
		return Article{}, err
	}
	article.FinalURL = finalURL
	return article, nil
}

// FromHTML runs readability over raw HTML and flattens the extracted article
// content to plain paragraph text.
func FromHTML(rawHTML string, baseURL string) (Article, error) {
	out := Article{Title: normalizeTitle(extractTitle(rawHTML))}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		parsedURL = &url.URL{}
	}

	content := rawHTML
	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err == nil {
		if c := strings.TrimSpace(article.Content); c != "" {
			content = c
		}
		if title := strings.TrimSpace(article.Title); title != "" {
			out.Title = normalizeTitle(title)
		}
	}

	text, err := FlattenHTML(content)
	if err != nil {
		return Article{}, fmt.Errorf("flatten article HTML: %w", err)
	}
	if text == "" {
		return Article{}, ErrNoReadableContent
	}

	out.Text = text
	return out, nil
}

// FlattenHTML converts an HTML fragment to plain paragraph text. The markdown
// conversion preserves paragraph boundaries far better than walking text
// nodes; the markdown syntax itself is stripped afterwards.
func FlattenHTML(fragment string) (string, error) {
	markdownText, err := htmltomarkdown.ConvertString(fragment)
	if err != nil {
		return "", err
	}
	return NormalizeText(stripMarkdown(markdownText)), nil
}

var (
	imagePattern   = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkPattern    = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	headingPattern = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	rulePattern    = regexp.MustCompile(`(?m)^(\*{3,}|-{3,}|_{3,})\s*$`)
	escapePattern  = regexp.MustCompile("\\\\([\\\\`*_{}\\[\\]()#+\\-.!>~|])")
)

func stripMarkdown(markdownText string) string {
	text := imagePattern.ReplaceAllString(markdownText, "")
	text = linkPattern.ReplaceAllString(text, "$1")
	text = headingPattern.ReplaceAllString(text, "")
	text = rulePattern.ReplaceAllString(text, "")
	text = escapePattern.ReplaceAllString(text, "$1")
	return text
}

// NormalizeText applies the canonical text form every pipeline component
// expects: LF line endings, NFC (Korean from some sources arrives decomposed),
// trimmed ends.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = norm.NFC.String(text)
	return strings.TrimSpace(text)
}

func isHTMLContentType(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}

	lower := strings.ToLower(contentType)
	return strings.Contains(lower, "text/html") || strings.Contains(lower, "application/xhtml+xml")
}

func extractTitle(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	var walk func(*html.Node) string
	walk = func(node *html.Node) string {
		if node.Type == html.ElementNode && node.Data == "title" {
			return strings.TrimSpace(extractNodeText(node))
		}

		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if title := walk(child); title != "" {
				return title
			}
		}
		return ""
	}

	return walk(doc)
}

func extractNodeText(node *html.Node) string {
	var b strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}

	walk(node)
	return b.String()
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}
