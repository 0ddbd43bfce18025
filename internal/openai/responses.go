package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"noveltrans/internal/glossary"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	maxErrBody        = 2048
	defaultMaxRetries = 5
)

type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	maxRetries int
}

type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	Available    bool
}

func NewClient(apiKey string, baseURL string, httpClient *http.Client, maxRetries int) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if strings.HasSuffix(baseURL, "/v1") {
		baseURL = strings.TrimSuffix(baseURL, "/v1")
	}
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}

	return &Client{
		apiKey:     apiKey,
		endpoint:   baseURL + "/v1/responses",
		httpClient: httpClient,
		maxRetries: maxRetries,
	}
}

func (c *Client) TranslateChunk(ctx context.Context, model string, chunkText string, glossaryMap map[string]string) (string, error) {
	translated, _, err := c.TranslateChunkWithUsage(ctx, model, chunkText, glossaryMap)
	return translated, err
}

func (c *Client) TranslateChunkWithUsage(
	ctx context.Context,
	model string,
	chunkText string,
	glossaryMap map[string]string,
) (string, Usage, error) {
	return c.translateChunk(ctx, model, chunkText, glossaryMap, false, "")
}

func (c *Client) TranslateChunkStrictWithUsage(
	ctx context.Context,
	model string,
	chunkText string,
	glossaryMap map[string]string,
	failureReason string,
) (string, Usage, error) {
	return c.translateChunk(ctx, model, chunkText, glossaryMap, true, failureReason)
}

func (c *Client) translateChunk(
	ctx context.Context,
	model string,
	chunkText string,
	glossaryMap map[string]string,
	strict bool,
	failureReason string,
) (string, Usage, error) {
	systemPrompt := buildSystemPrompt(strict)
	userPrompt := buildUserPrompt(chunkText, glossaryMap, strict, failureReason)

	payload := map[string]any{
		"model": model,
		"input": []map[string]any{
			{
				"type": "message",
				"role": "developer",
				"content": []map[string]any{
					{
						"type": "input_text",
						"text": systemPrompt,
					},
				},
			},
			{
				"type": "message",
				"role": "user",
				"content": []map[string]any{
					{
						"type": "input_text",
						"text": userPrompt,
					},
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", Usage{}, fmt.Errorf("marshal OpenAI request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		translated, usage, retry, err := c.callResponses(ctx, body)
		if err == nil {
			return translated, usage, nil
		}

		lastErr = err
		if !retry || attempt == c.maxRetries {
			break
		}

		delay := backoffDelay(attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", Usage{}, ctx.Err()
		}
	}

	if lastErr == nil {
		lastErr = errors.New("unknown translation error")
	}
	return "", Usage{}, lastErr
}

func (c *Client) callResponses(ctx context.Context, body []byte) (translated string, usage Usage, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", Usage{}, false, fmt.Errorf("build OpenAI request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", Usage{}, true, fmt.Errorf("request OpenAI Responses API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Usage{}, true, fmt.Errorf("read OpenAI response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := parseAPIError(respBody)
		err := fmt.Errorf("OpenAI Responses API status %d: %s", resp.StatusCode, message)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			if retryAfter := parseRetryAfter(resp.Header.Get("Retry-After")); retryAfter > 0 {
				select {
				case <-time.After(retryAfter):
				case <-ctx.Done():
					return "", Usage{}, false, ctx.Err()
				}
			}
			return "", Usage{}, true, err
		}
		return "", Usage{}, false, err
	}

	output, err := extractOutputText(respBody)
	if err != nil {
		return "", Usage{}, false, err
	}
	usage = extractUsage(respBody)
	return output, usage, false, nil
}

func buildSystemPrompt(strict bool) string {
	base := []string{
		"Translate Japanese web novel text into natural Korean.",
		"Preserve the paragraph and line structure of the source exactly.",
		"Keep episode heading lines (e.g. 第12話, #12) as a single heading line.",
		"Render dialogue naturally; keep the source's quotation bracket style.",
		"Do not translate proper nouns already given in the glossary differently.",
		"Return only the translated text with no commentary.",
	}
	if strict {
		base = append(base,
			"This is a strict retry because the previous translation failed validation.",
			"Do not omit, merge, or reorder paragraphs.",
			"The translation must be complete Korean prose.",
		)
	}
	return strings.Join(base, " ")
}

func buildUserPrompt(chunkText string, glossaryMap map[string]string, strict bool, failureReason string) string {
	var builder strings.Builder
	builder.WriteString("Translate the following web novel excerpt into Korean.\n")
	builder.WriteString("Keep every paragraph break and dialogue line intact.\n")
	if strict {
		builder.WriteString("Strict retry mode: previous translation failed validation.\n")
		if strings.TrimSpace(failureReason) != "" {
			builder.WriteString("Failure reason: ")
			builder.WriteString(strings.TrimSpace(failureReason))
			builder.WriteString("\n")
		}
		builder.WriteString("Fix the issue and return the complete translation only.\n")
	}
	if len(glossaryMap) > 0 {
		builder.WriteString(glossary.Prompt(glossaryMap))
		builder.WriteString("\n")
	}
	builder.WriteString("\nExcerpt:\n")
	builder.WriteString(chunkText)
	return builder.String()
}

func parseAPIError(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &parsed); err == nil && strings.TrimSpace(parsed.Error.Message) != "" {
		return parsed.Error.Message
	}

	snippet := strings.TrimSpace(string(body))
	if len(snippet) > maxErrBody {
		snippet = snippet[:maxErrBody] + "..."
	}
	if snippet == "" {
		return "empty error response"
	}
	return snippet
}

func extractOutputText(body []byte) (string, error) {
	var parsed struct {
		OutputText string `json:"output_text"`
		Output     []struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}

	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse OpenAI response JSON: %w", err)
	}

	if text := strings.TrimSpace(parsed.OutputText); text != "" {
		return text, nil
	}

	var builder strings.Builder
	for _, item := range parsed.Output {
		for _, content := range item.Content {
			if content.Type == "output_text" && content.Text != "" {
				if builder.Len() > 0 {
					builder.WriteString("\n")
				}
				builder.WriteString(content.Text)
			}
		}
	}

	if builder.Len() == 0 {
		return "", fmt.Errorf("OpenAI response missing output_text")
	}

	return strings.TrimSpace(builder.String()), nil
}

func extractUsage(body []byte) Usage {
	var parsed struct {
		Usage struct {
			InputTokens  int64 `json:"input_tokens"`
			OutputTokens int64 `json:"output_tokens"`
			TotalTokens  int64 `json:"total_tokens"`
		} `json:"usage"`
	}

	if err := json.Unmarshal(body, &parsed); err != nil {
		return Usage{}
	}

	if parsed.Usage.InputTokens == 0 && parsed.Usage.OutputTokens == 0 && parsed.Usage.TotalTokens == 0 {
		return Usage{}
	}

	return Usage{
		InputTokens:  parsed.Usage.InputTokens,
		OutputTokens: parsed.Usage.OutputTokens,
		TotalTokens:  parsed.Usage.TotalTokens,
		Available:    true,
	}
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if ts, err := http.ParseTime(value); err == nil {
		delta := time.Until(ts)
		if delta > 0 {
			return delta
		}
	}

	return 0
}

func backoffDelay(attempt int) time.Duration {
	base := time.Second
	delay := base * time.Duration(1<<attempt)
	jitter := time.Duration(rand.Intn(250)) * time.Millisecond
	max := 30 * time.Second
	if delay+jitter > max {
		return max
	}
	return delay + jitter
}
