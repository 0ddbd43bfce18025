package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
	"unicode"

	"noveltrans/internal/chunk"
	"noveltrans/internal/episode"
	"noveltrans/internal/extract"
	"noveltrans/internal/format"
	"noveltrans/internal/gallery"
	"noveltrans/internal/glossary"
	"noveltrans/internal/openai"
	"noveltrans/internal/version"
)

const (
	defaultChunkSize  = 3000
	defaultMaxChunks  = 50
	defaultMaxRetries = 5
	defaultOutDir     = "out"
	summaryFileName   = "_summary.json"
	stateFileName     = ".noveltrans.state.json"

	errorTypeFetch      = "fetch_failed"
	errorTypeExtract    = "extract_failed"
	errorTypeChunkLimit = "chunk_limit_exceeded"
	errorTypeTranslate  = "translate_failed"
	errorTypeCancelled  = "cancelled"
	errorTypeOutput     = "output_failed"
	errorTypeUnknown    = "unknown"

	defaultQualityRetries = 1
)

type options struct {
	Model       string
	OutPath     string
	ShowVersion bool
	MaxRetries  int
	FailFast    bool
	Glossary    string
	GalleryBase string
	Timeout     time.Duration
	ChunkSize   int
	MaxChunks   int
	ShowHelp    bool
	Sources     []string
}

type outputPlan struct {
	outputDir  string
	singleFile string
	summaryDir string
}

type summaryItem struct {
	Source            string `json:"source"`
	FinalURL          string `json:"final_url,omitempty"`
	Title             string `json:"title,omitempty"`
	Episode           int    `json:"episode,omitempty"`
	Success           bool   `json:"success"`
	Cancelled         bool   `json:"cancelled,omitempty"`
	DurationMS        int64  `json:"duration_ms"`
	ChunkCount        int    `json:"chunk_count,omitempty"`
	ResumedChunks     int    `json:"resumed_chunks,omitempty"`
	OutputPath        string `json:"output_path,omitempty"`
	QualityRetryCount int    `json:"quality_retry_count,omitempty"`
	InputTokens       int64  `json:"input_tokens,omitempty"`
	OutputTokens      int64  `json:"output_tokens,omitempty"`
	TotalTokens       int64  `json:"total_tokens,omitempty"`
	MissingUsageCount int    `json:"missing_usage_count,omitempty"`
	ErrorType         string `json:"error_type,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
}

type taskSummary struct {
	GeneratedAt       string        `json:"generated_at"`
	Model             string        `json:"model"`
	TotalSources      int           `json:"total_sources"`
	SuccessCount      int           `json:"success_count"`
	FailureCount      int           `json:"failure_count"`
	CancelledCount    int           `json:"cancelled_count,omitempty"`
	TotalDurationMS   int64         `json:"total_duration_ms"`
	InputTokens       int64         `json:"input_tokens,omitempty"`
	OutputTokens      int64         `json:"output_tokens,omitempty"`
	TotalTokens       int64         `json:"total_tokens,omitempty"`
	MissingUsageCount int           `json:"missing_usage_count,omitempty"`
	Results           []summaryItem `json:"results"`
}

type sourceOutput struct {
	finalURL          string
	title             string
	episodeNumber     int
	chunkCount        int
	resumedChunks     int
	outputPath        string
	qualityRetryCount int
	usage             usageStats
}

type usageStats struct {
	inputTokens       int64
	outputTokens      int64
	totalTokens       int64
	missingUsageCount int
}

func (u *usageStats) add(other usageStats) {
	u.inputTokens += other.inputTokens
	u.outputTokens += other.outputTokens
	u.totalTokens += other.totalTokens
	u.missingUsageCount += other.missingUsageCount
}

func (u *usageStats) addOpenAIUsage(usage openai.Usage) {
	if usage.Available {
		u.inputTokens += usage.InputTokens
		u.outputTokens += usage.OutputTokens
		u.totalTokens += usage.TotalTokens
		return
	}
	u.missingUsageCount++
}

type processError struct {
	errorType         string
	qualityRetryCount int
	usage             usageStats
	err               error
}

func (e *processError) Error() string {
	return e.err.Error()
}

func (e *processError) Unwrap() error {
	return e.err
}

func Run(args []string, stdout io.Writer, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.ShowHelp {
		return nil
	}
	if opts.ShowVersion {
		_, _ = fmt.Fprintln(stdout, version.String())
		return nil
	}

	opts.Sources = normalizeSources(opts.Sources)
	if len(opts.Sources) == 0 {
		return errors.New("at least one URL is required")
	}

	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}

	baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	httpClient := &http.Client{Timeout: opts.Timeout}

	glossaryMap, err := glossary.Load(opts.Glossary)
	if err != nil {
		return err
	}

	outPlan, err := buildOutputPlan(opts)
	if err != nil {
		return err
	}
	if err := prepareOutputPlan(outPlan); err != nil {
		return err
	}

	statePath := filepath.Join(outPlan.summaryDir, stateFileName)
	stateStore, err := loadResumeStore(statePath)
	if err != nil {
		return err
	}

	openAIClient := openai.NewClient(apiKey, baseURL, httpClient, opts.MaxRetries)
	runCtx, stopSignal := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignal()
	runStart := time.Now()

	summary := taskSummary{
		GeneratedAt:  runStart.UTC().Format(time.RFC3339),
		Model:        opts.Model,
		TotalSources: len(opts.Sources),
		Results:      make([]summaryItem, 0, len(opts.Sources)),
	}

	for _, source := range opts.Sources {
		itemStart := time.Now()
		item := summaryItem{Source: source}

		output, err := processSource(runCtx, httpClient, openAIClient, opts, glossaryMap, source, outPlan, stateStore, stderr)
		item.DurationMS = time.Since(itemStart).Milliseconds()
		if err != nil {
			errorType, errorMessage, retryCount, failureUsage := errorDetails(err)
			if isCancellation(err) {
				item.Cancelled = true
				item.ErrorType = errorTypeCancelled
				summary.CancelledCount++
				summary.Results = append(summary.Results, item)
				_, _ = fmt.Fprintf(stderr, "Cancelled: %s\n", compactURL(source))
				break
			}

			item.Success = false
			item.ErrorType = errorType
			item.ErrorMessage = errorMessage
			item.QualityRetryCount = retryCount
			item.InputTokens = failureUsage.inputTokens
			item.OutputTokens = failureUsage.outputTokens
			item.TotalTokens = failureUsage.totalTokens
			item.MissingUsageCount = failureUsage.missingUsageCount
			summary.FailureCount++
			summary.InputTokens += failureUsage.inputTokens
			summary.OutputTokens += failureUsage.outputTokens
			summary.TotalTokens += failureUsage.totalTokens
			summary.MissingUsageCount += failureUsage.missingUsageCount
			summary.Results = append(summary.Results, item)
			_, _ = fmt.Fprintf(stderr, "Failed [%s]: %s (%s)\n", errorType, compactURL(source), errorMessage)
			if opts.FailFast {
				_, _ = fmt.Fprintln(stderr, "Fail-fast enabled: stop after first failure.")
				break
			}
			continue
		}

		item.Success = true
		item.FinalURL = output.finalURL
		item.Title = output.title
		item.Episode = output.episodeNumber
		item.ChunkCount = output.chunkCount
		item.ResumedChunks = output.resumedChunks
		item.OutputPath = output.outputPath
		item.QualityRetryCount = output.qualityRetryCount
		item.InputTokens = output.usage.inputTokens
		item.OutputTokens = output.usage.outputTokens
		item.TotalTokens = output.usage.totalTokens
		item.MissingUsageCount = output.usage.missingUsageCount
		summary.SuccessCount++
		summary.InputTokens += output.usage.inputTokens
		summary.OutputTokens += output.usage.outputTokens
		summary.TotalTokens += output.usage.totalTokens
		summary.MissingUsageCount += output.usage.missingUsageCount
		summary.Results = append(summary.Results, item)

		_, _ = fmt.Fprintf(stdout, "Output: %s\n", output.outputPath)
	}

	summary.TotalDurationMS = time.Since(runStart).Milliseconds()

	if len(opts.Sources) > 1 {
		summaryPath := filepath.Join(outPlan.summaryDir, summaryFileName)
		if err := writeSummary(summaryPath, summary); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "Summary: %s\n", summaryPath)
	}

	_, _ = fmt.Fprintf(
		stdout,
		"Done: %d succeeded, %d failed, total %s\n",
		summary.SuccessCount,
		summary.FailureCount,
		time.Duration(summary.TotalDurationMS)*time.Millisecond,
	)

	if summary.InputTokens > 0 || summary.OutputTokens > 0 || summary.TotalTokens > 0 {
		_, _ = fmt.Fprintf(
			stdout,
			"Usage: input=%d output=%d total=%d tokens\n",
			summary.InputTokens,
			summary.OutputTokens,
			summary.TotalTokens,
		)
	}
	if summary.MissingUsageCount > 0 {
		_, _ = fmt.Fprintf(
			stderr,
			"Usage info missing for %d chunk(s); totals may be partial.\n",
			summary.MissingUsageCount,
		)
	}

	if summary.FailureCount > 0 {
		return fmt.Errorf("%d source(s) failed", summary.FailureCount)
	}
	return nil
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("noveltrans", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := options{}
	fs.StringVar(&opts.Model, "model", "gpt-5.2", "OpenAI model name")
	fs.StringVar(&opts.OutPath, "out", "", "Output path: file for single source, directory for multiple (default: ./out/)")
	fs.BoolVar(&opts.ShowVersion, "version", false, "Print version information and exit")
	fs.IntVar(&opts.MaxRetries, "max-retries", defaultMaxRetries, "Maximum retries for OpenAI requests")
	fs.BoolVar(&opts.FailFast, "fail-fast", false, "Stop at first source failure (default: continue for partial success)")
	fs.StringVar(&opts.Glossary, "glossary", "", "Path to glossary JSON map, e.g. {\"太郎\":\"타로\"}")
	fs.StringVar(&opts.GalleryBase, "gallery-base", "", "Base URL of the gallery board API (default: derived from the post URL)")
	fs.DurationVar(&opts.Timeout, "timeout", 90*time.Second, "HTTP timeout, e.g. 120s")
	fs.IntVar(&opts.ChunkSize, "chunk-size", defaultChunkSize, "Target chunk size in characters")
	fs.IntVar(&opts.MaxChunks, "max-chunks", defaultMaxChunks, "Reject a source when it splits into more chunks than this")

	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: noveltrans [flags] <url> [url...]")
		fmt.Fprintln(stderr, "")
		fmt.Fprintln(stderr, "Sources may be article pages or gallery post URLs (.../board/view/?id=...&no=...).")
		fmt.Fprintln(stderr, "")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			opts.ShowHelp = true
			return opts, nil
		}
		return options{}, err
	}
	if opts.Timeout <= 0 {
		return options{}, errors.New("--timeout must be positive")
	}
	if opts.MaxRetries < 0 {
		return options{}, errors.New("--max-retries must be 0 or greater")
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = defaultMaxChunks
	}

	opts.Sources = fs.Args()
	if opts.ShowVersion {
		return opts, nil
	}
	if len(opts.Sources) == 0 {
		fs.Usage()
		return options{}, errors.New("at least one URL is required")
	}

	return opts, nil
}

func normalizeSources(sources []string) []string {
	out := make([]string, 0, len(sources))
	for _, raw := range sources {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func buildOutputPlan(opts options) (outputPlan, error) {
	if opts.OutPath == "" {
		return outputPlan{
			outputDir:  defaultOutDir,
			summaryDir: defaultOutDir,
		}, nil
	}

	if len(opts.Sources) == 1 {
		return outputPlan{
			singleFile: opts.OutPath,
			summaryDir: filepath.Dir(opts.OutPath),
		}, nil
	}

	return outputPlan{
		outputDir:  opts.OutPath,
		summaryDir: opts.OutPath,
	}, nil
}

func prepareOutputPlan(plan outputPlan) error {
	if plan.outputDir != "" {
		if err := os.MkdirAll(plan.outputDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	if plan.singleFile != "" {
		dir := filepath.Dir(plan.singleFile)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
		}
	}

	if plan.summaryDir != "" && plan.summaryDir != "." {
		if err := os.MkdirAll(plan.summaryDir, 0o755); err != nil {
			return fmt.Errorf("create summary directory: %w", err)
		}
	}

	return nil
}

func processSource(
	ctx context.Context,
	httpClient *http.Client,
	openAIClient *openai.Client,
	opts options,
	glossaryMap map[string]string,
	source string,
	outPlan outputPlan,
	stateStore *resumeStore,
	progress io.Writer,
) (sourceOutput, error) {
	sourceText, title, finalURL, err := resolveSource(ctx, httpClient, opts, source)
	if err != nil {
		return sourceOutput{}, err
	}

	episodeNumber := 0
	if marker, ok := episode.ExtractLeadingMarker(sourceText); ok {
		episodeNumber = marker.Number
	}

	out := sourceOutput{
		finalURL:      finalURL,
		title:         title,
		episodeNumber: episodeNumber,
	}

	chunks := chunk.Split(sourceText, opts.ChunkSize)
	out.chunkCount = len(chunks)

	// Empty source short-circuits: no chunking work, no external calls.
	if len(chunks) == 0 {
		outPath, err := outputPathForSource(outPlan, source)
		if err != nil {
			return sourceOutput{}, newProcessError(errorTypeOutput, err)
		}
		if err := writeEpisodeFile(outPath, source, title, episodeNumber, opts.Model, ""); err != nil {
			return sourceOutput{}, newProcessError(errorTypeOutput, err)
		}
		out.outputPath = outPath
		return out, nil
	}

	// Reject oversized work before the first external call; there is no
	// partial-success mode to fall back on.
	if len(chunks) > opts.MaxChunks {
		return sourceOutput{}, newProcessError(
			errorTypeChunkLimit,
			fmt.Errorf("%s splits into %d chunks, limit is %d (raise --chunk-size or --max-chunks)", compactURL(source), len(chunks), opts.MaxChunks),
		)
	}

	if err := stateStore.prepareSource(source, finalURL, title, len(chunks)); err != nil {
		return sourceOutput{}, newProcessError(errorTypeOutput, fmt.Errorf("prepare resume state for %s: %w", source, err))
	}

	translatedChunks := make([]string, len(chunks))
	pending := 0
	for idx, sourceChunk := range chunks {
		if translated, ok := stateStore.loadChunk(source, idx, sourceChunk, len(chunks)); ok {
			translatedChunks[idx] = translated
			out.resumedChunks++
			continue
		}
		pending++
	}

	if out.resumedChunks > 0 {
		_, _ = fmt.Fprintf(progress, "Resume: reused %d/%d chunks for %s\n", out.resumedChunks, len(chunks), compactURL(source))
	}

	if pending > 0 {
		_, _ = fmt.Fprintf(progress, "Translating %d chunks...\n", pending)
	}

	completed := 0
	for idx, sourceChunk := range chunks {
		if translatedChunks[idx] != "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return sourceOutput{}, newProcessErrorWithDetails(errorTypeCancelled, err, out.qualityRetryCount, out.usage)
		}

		translated, chunkUsage, retryCount, err := translateChunkWithQualityGuard(ctx, openAIClient, opts.Model, sourceChunk, glossaryMap)
		out.usage.add(chunkUsage)
		out.qualityRetryCount += retryCount
		if err != nil {
			// Translated chunks already stored in the resume state survive
			// for the next run, but this run produces no partial output.
			if ctx.Err() != nil {
				return sourceOutput{}, newProcessErrorWithDetails(errorTypeCancelled, ctx.Err(), out.qualityRetryCount, out.usage)
			}
			return sourceOutput{}, newProcessErrorWithDetails(
				errorTypeTranslate,
				fmt.Errorf("translate chunk %d/%d for %s: %w", idx+1, len(chunks), compactURL(source), err),
				out.qualityRetryCount,
				out.usage,
			)
		}

		translatedChunks[idx] = translated
		if err := stateStore.saveChunk(source, finalURL, title, len(chunks), idx, sourceChunk, translated); err != nil {
			return sourceOutput{}, newProcessErrorWithDetails(errorTypeOutput, fmt.Errorf("save resume chunk %d for %s: %w", idx+1, source, err), out.qualityRetryCount, out.usage)
		}

		completed++
		percent := completed * 100 / pending
		_, _ = fmt.Fprintf(progress, "[%d/%d] %d%% translated chunk %d/%d for %s\n", completed, pending, percent, idx+1, len(chunks), compactURL(source))
	}

	assembled := strings.Join(translatedChunks, "\n\n")
	finalText := format.Apply(sourceText, assembled)

	outPath, err := outputPathForSource(outPlan, source)
	if err != nil {
		return sourceOutput{}, newProcessErrorWithDetails(errorTypeOutput, err, out.qualityRetryCount, out.usage)
	}
	if err := writeEpisodeFile(outPath, source, title, episodeNumber, opts.Model, finalText); err != nil {
		return sourceOutput{}, newProcessErrorWithDetails(errorTypeOutput, err, out.qualityRetryCount, out.usage)
	}

	if err := stateStore.markSourceComplete(source); err != nil {
		return sourceOutput{}, newProcessErrorWithDetails(errorTypeOutput, fmt.Errorf("finalize resume state for %s: %w", source, err), out.qualityRetryCount, out.usage)
	}

	out.outputPath = outPath
	return out, nil
}

func resolveSource(ctx context.Context, httpClient *http.Client, opts options, source string) (text string, title string, finalURL string, err error) {
	if board, no, ok := gallery.ParsePostURL(source); ok {
		base := opts.GalleryBase
		if base == "" {
			base = baseURLOf(source)
		}
		client := gallery.NewClient(base, httpClient)
		post, err := client.FetchPost(ctx, board, no)
		if err != nil {
			return "", "", "", newProcessError(errorTypeFetch, fmt.Errorf("fetch gallery post %s: %w", compactURL(source), err))
		}
		return post.Body, post.Title, source, nil
	}

	article, err := extract.Fetch(ctx, httpClient, source)
	if err != nil {
		if errors.Is(err, extract.ErrNoReadableContent) || errors.Is(err, extract.ErrEmptyDocument) {
			return "", "", "", newProcessError(errorTypeExtract, fmt.Errorf("extract %s: %w", compactURL(source), err))
		}
		return "", "", "", newProcessError(errorTypeFetch, fmt.Errorf("fetch %s: %w", compactURL(source), err))
	}
	return article.Text, article.Title, article.FinalURL, nil
}

func baseURLOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Scheme + "://" + parsed.Host
}

func translateChunkWithQualityGuard(
	ctx context.Context,
	client *openai.Client,
	model string,
	sourceChunk string,
	glossaryMap map[string]string,
) (string, usageStats, int, error) {
	totalUsage := usageStats{}

	translated, usage, err := client.TranslateChunkWithUsage(ctx, model, sourceChunk, glossaryMap)
	if err != nil {
		return "", totalUsage, 0, err
	}
	totalUsage.addOpenAIUsage(usage)
	translated = glossary.Apply(translated, glossaryMap)

	lastValidationErr := validateTranslatedChunk(sourceChunk, translated)
	if lastValidationErr == nil {
		return translated, totalUsage, 0, nil
	}

	retryCount := 0
	for retry := 0; retry < defaultQualityRetries; retry++ {
		retryCount++

		strictTranslated, strictUsage, strictErr := client.TranslateChunkStrictWithUsage(ctx, model, sourceChunk, glossaryMap, lastValidationErr.Error())
		if strictErr != nil {
			return "", totalUsage, retryCount, fmt.Errorf("strict quality retry failed: %w", strictErr)
		}
		totalUsage.addOpenAIUsage(strictUsage)

		strictTranslated = glossary.Apply(strictTranslated, glossaryMap)
		if validationErr := validateTranslatedChunk(sourceChunk, strictTranslated); validationErr == nil {
			return strictTranslated, totalUsage, retryCount, nil
		} else {
			lastValidationErr = validationErr
		}
	}

	return "", totalUsage, retryCount, fmt.Errorf("translated chunk failed quality validation: %w", lastValidationErr)
}

func validateTranslatedChunk(source string, translated string) error {
	if strings.TrimSpace(translated) == "" {
		return errors.New("empty translated text")
	}

	sourceParagraphs := paragraphCount(source)
	translatedParagraphs := paragraphCount(translated)
	if sourceParagraphs >= 4 && translatedParagraphs*2 < sourceParagraphs {
		return fmt.Errorf("paragraph structure collapsed: source=%d translated=%d", sourceParagraphs, translatedParagraphs)
	}

	if containsKana(source) && !containsHangul(translated) {
		return errors.New("translated text contains no Hangul")
	}

	return nil
}

func paragraphCount(text string) int {
	count := 0
	inParagraph := false
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			inParagraph = false
			continue
		}
		if !inParagraph {
			count++
			inParagraph = true
		}
	}
	return count
}

func containsKana(text string) bool {
	for _, r := range text {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana) {
			return true
		}
	}
	return false
}

func containsHangul(text string) bool {
	for _, r := range text {
		if unicode.In(r, unicode.Hangul) {
			return true
		}
	}
	return false
}

func outputPathForSource(plan outputPlan, source string) (string, error) {
	if plan.singleFile != "" {
		return plan.singleFile, nil
	}

	filename, err := filenameFromSource(source)
	if err != nil {
		return "", err
	}
	return filepath.Join(plan.outputDir, filename), nil
}

func filenameFromSource(source string) (string, error) {
	if board, no, ok := gallery.ParsePostURL(source); ok {
		return fmt.Sprintf("%s_%d.txt", sanitizeFilename(board), no), nil
	}

	parsed, err := url.Parse(source)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("invalid URL: %s", source)
	}

	base := parsed.Host + parsed.Path
	if parsed.RawQuery != "" {
		base += "_" + parsed.RawQuery
	}
	base = strings.ReplaceAll(base, "/", "_")
	base = sanitizeFilename(base)
	base = strings.Trim(base, "_")
	if base == "" {
		base = "output"
	}

	return base + ".txt", nil
}

func sanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false

	for _, r := range s {
		allowed := (r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') ||
			r == '.' || r == '-' || r == '_'

		if allowed {
			b.WriteRune(r)
			lastUnderscore = r == '_'
			continue
		}

		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	return b.String()
}

func writeEpisodeFile(path string, source string, title string, episodeNumber int, model string, finalText string) error {
	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("source: ")
	b.WriteString(source)
	b.WriteString("\n")
	if title != "" {
		b.WriteString("title: ")
		b.WriteString(title)
		b.WriteString("\n")
	}
	if episodeNumber > 0 {
		b.WriteString("episode: ")
		b.WriteString(strconv.Itoa(episodeNumber))
		b.WriteString("\n")
	}
	b.WriteString("model: ")
	b.WriteString(model)
	b.WriteString("\n")
	b.WriteString("generated_at: ")
	b.WriteString(time.Now().UTC().Format(time.RFC3339))
	b.WriteString("\n---\n\n")
	b.WriteString(finalText)
	if finalText != "" {
		b.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write output file %s: %w", path, err)
	}
	return nil
}

func writeSummary(path string, summary taskSummary) error {
	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary JSON: %w", err)
	}
	payload = append(payload, '\n')
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write summary file %s: %w", path, err)
	}
	return nil
}

func newProcessError(errorType string, err error) error {
	return newProcessErrorWithDetails(errorType, err, 0, usageStats{})
}

func newProcessErrorWithDetails(errorType string, err error, qualityRetryCount int, usage usageStats) error {
	if err == nil {
		return nil
	}
	return &processError{
		errorType:         errorType,
		qualityRetryCount: qualityRetryCount,
		usage:             usage,
		err:               err,
	}
}

func errorDetails(err error) (errorType string, errorMessage string, qualityRetryCount int, usage usageStats) {
	if err == nil {
		return "", "", 0, usageStats{}
	}

	var stageErr *processError
	if errors.As(err, &stageErr) {
		return stageErr.errorType, stageErr.err.Error(), stageErr.qualityRetryCount, stageErr.usage
	}

	return errorTypeUnknown, err.Error(), 0, usageStats{}
}

func isCancellation(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var stageErr *processError
	return errors.As(err, &stageErr) && stageErr.errorType == errorTypeCancelled
}

func compactURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}

	path := strings.TrimSuffix(parsed.Path, "/")
	if path == "" {
		return parsed.Host
	}

	return parsed.Host + path
}
