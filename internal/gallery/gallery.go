package gallery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"noveltrans/internal/extract"
)

const maxErrBody = 1024

// Client reads posts from a gallery board's JSON viewer endpoint. The
// endpoint is internal to the site and its response shape has moved between
// releases, so field lookup goes through a fallback list instead of a fixed
// struct.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Post struct {
	Board string
	No    int
	Title string
	Body  string
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

// ParsePostURL recognizes board viewer URLs of the form
// .../board/view/?id=<board>&no=<post>.
func ParsePostURL(rawURL string) (board string, no int, ok bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, false
	}
	if !strings.Contains(parsed.Path, "/board/view") {
		return "", 0, false
	}

	query := parsed.Query()
	board = strings.TrimSpace(query.Get("id"))
	no, err = strconv.Atoi(strings.TrimSpace(query.Get("no")))
	if board == "" || err != nil || no <= 0 {
		return "", 0, false
	}
	return board, no, true
}

// FetchPost downloads one post and flattens its body HTML to plain text.
func (c *Client) FetchPost(ctx context.Context, board string, no int) (Post, error) {
	endpoint := fmt.Sprintf("%s/api/board/view?id=%s&no=%d", c.baseURL, url.QueryEscape(board), no)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Post{}, fmt.Errorf("build gallery request: %w", err)
	}
	req.Header.Set("User-Agent", "noveltrans/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Post{}, fmt.Errorf("request gallery post %s/%d: %w", board, no, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Post{}, fmt.Errorf("read gallery response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errSnippet := strings.TrimSpace(string(body))
		if len(errSnippet) > maxErrBody {
			errSnippet = errSnippet[:maxErrBody] + "..."
		}
		return Post{}, fmt.Errorf("gallery status %d: %s", resp.StatusCode, errSnippet)
	}

	if !gjson.ValidBytes(body) {
		return Post{}, fmt.Errorf("gallery post %s/%d: response is not JSON", board, no)
	}

	title := firstString(body, "view.title", "result.view.title", "post.title", "title")
	content := firstString(body, "view.content", "result.view.content", "post.content", "content", "body")
	if content == "" {
		return Post{}, fmt.Errorf("gallery post %s/%d: unexpected response shape", board, no)
	}

	text, err := extract.FlattenHTML(content)
	if err != nil {
		return Post{}, fmt.Errorf("flatten gallery post body: %w", err)
	}
	if text == "" {
		return Post{}, fmt.Errorf("gallery post %s/%d: empty body", board, no)
	}

	return Post{
		Board: board,
		No:    no,
		Title: strings.TrimSpace(title),
		Body:  text,
	}, nil
}

func firstString(body []byte, paths ...string) string {
	for _, path := range paths {
		if value := gjson.GetBytes(body, path); value.Exists() {
			if s := strings.TrimSpace(value.String()); s != "" {
				return s
			}
		}
	}
	return ""
}
