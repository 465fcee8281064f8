// Package expander turns an external confirmation event into per-platform
// draft packages. Validation failures exit early with a distinct outcome
// code and zero side effects; per-platform generation runs concurrently
// with failures isolated to their own manifest entry.
package expander

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alg-bug-engineer/Neural-Flow/app/archive"
	"github.com/alg-bug-engineer/Neural-Flow/app/database"
	"github.com/alg-bug-engineer/Neural-Flow/app/generation"
	"github.com/alg-bug-engineer/Neural-Flow/app/obs"
)

const generationContextLimit = 5

// DraftStore answers draft-existence and prior-coverage queries.
type DraftStore interface {
	HasTrace(traceID string) (bool, error)
	GenerationContext(title, platform string, limit int) (string, error)
}

var _ DraftStore = (*database.ArchiveRepository)(nil)

// Archiver persists the assembled draft package.
type Archiver interface {
	Archive(ctx context.Context, pack database.ContentPackage) (archive.Result, error)
}

var _ Archiver = (*archive.Service)(nil)

// Outcome codes for HandleEvent.
const (
	StatusHandshake = "handshake"
	StatusIgnored   = "ignored"
	StatusOK        = "ok"
)

// PlatformResult is one entry of the fan-out manifest.
type PlatformResult struct {
	Platform string `json:"platform"`
	TraceID  string `json:"trace_id"`
	Status   string `json:"status"`
	DocURL   string `json:"doc_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Result is the full outcome of one confirmation event.
type Result struct {
	Status    string           `json:"status"`
	Reason    string           `json:"reason,omitempty"`
	Challenge string           `json:"challenge,omitempty"`
	Generated int              `json:"generated"`
	Results   []PlatformResult `json:"results,omitempty"`
}

type Expander struct {
	store    DraftStore
	archiver Archiver
	textGen  *generation.TextGenerator
	painter  *generation.Painter
}

func NewExpander(store DraftStore, archiver Archiver,
	textGen *generation.TextGenerator, painter *generation.Painter) *Expander {
	return &Expander{
		store:    store,
		archiver: archiver,
		textGen:  textGen,
		painter:  painter,
	}
}

// HandleEvent processes a confirmation callback. force regenerates drafts
// whose trace id already exists in the archive; without it, repeated
// delivery of the same event is a cheap no-op per platform.
func (e *Expander) HandleEvent(ctx context.Context, payload map[string]any, force bool) Result {
	if payload["type"] == "url_verification" {
		return Result{Status: StatusHandshake, Challenge: toText(payload["challenge"])}
	}

	fields := extractCallbackFields(payload)
	if fields == nil {
		return Result{Status: StatusIgnored, Reason: "fields_not_found"}
	}

	statusValue, _ := fieldByAliases(fields, statusAliases)
	if !isConfirmedStatus(toText(statusValue)) {
		return Result{Status: StatusIgnored, Reason: "status_not_confirmed"}
	}

	titleValue, _ := fieldByAliases(fields, titleAliases)
	title := toText(titleValue)
	if title == "" {
		return Result{Status: StatusIgnored, Reason: "missing_title"}
	}

	channelValue, hasChannels := fieldByAliases(fields, channelAliases)
	if !hasChannels {
		return Result{Status: StatusIgnored, Reason: "missing_channels"}
	}
	platforms := parsePlatforms(channelValue)

	summaryValue, _ := fieldByAliases(fields, summaryAliases)
	urlValue, _ := fieldByAliases(fields, urlAliases)
	sourceValue, _ := fieldByAliases(fields, sourceAliases)

	topicTraceID := ""
	if traceValue, ok := fieldByAliases(fields, traceAliases); ok {
		topicTraceID = obs.NormalizeID(toText(traceValue))
	}
	if topicTraceID == "" {
		topicTraceID = traceIDFromTitle(title)
	}
	if topicTraceID == "" {
		topicTraceID = time.Now().Format("150405")
	}

	topic := topicRecord{
		Title:        title,
		Summary:      toText(summaryValue),
		SourceURL:    toText(urlValue),
		SourceInfo:   toText(sourceValue),
		TopicTraceID: topicTraceID,
	}

	results := make([]PlatformResult, len(platforms))
	var wg sync.WaitGroup
	for i, platform := range platforms {
		wg.Add(1)
		go func(idx int, platform string) {
			defer wg.Done()
			results[idx] = e.expandPlatform(ctx, topic, platform, force)
		}(i, platform)
	}
	wg.Wait()

	generated := 0
	for _, r := range results {
		if r.Status == "ok" {
			generated++
		}
	}

	slog.InfoContext(ctx, "Task completed",
		"type", "ExpandConfirmation",
		"component", "expander",
		"topic_trace_id", topicTraceID,
		"platforms", len(platforms),
		"generated", generated)

	return Result{Status: StatusOK, Generated: generated, Results: results}
}

type topicRecord struct {
	Title        string
	Summary      string
	SourceURL    string
	SourceInfo   string
	TopicTraceID string
}

// expandPlatform generates one platform draft end to end. Panics and errors
// stay inside this platform's manifest entry.
func (e *Expander) expandPlatform(ctx context.Context, topic topicRecord, platform string, force bool) (result PlatformResult) {
	traceID := obs.DraftTraceID(topic.TopicTraceID, platform)
	ctx = obs.WithTraceID(ctx, traceID)

	result = PlatformResult{Platform: platform, TraceID: traceID}
	defer func() {
		if r := recover(); r != nil {
			result.Status = "failed"
			result.Error = fmt.Sprintf("panic: %v", r)
			slog.ErrorContext(ctx, "Draft generation panicked",
				"component", "expander", "platform", platform, "panic", r)
		}
	}()

	if !force {
		exists, err := e.store.HasTrace(traceID)
		if err != nil {
			result.Status = "failed"
			result.Error = err.Error()
			return result
		}
		if exists {
			result.Status = "skipped"
			result.Error = "draft already archived"
			return result
		}
	}

	historyContext, err := e.store.GenerationContext(topic.Title, platform, generationContextLimit)
	if err != nil {
		slog.WarnContext(ctx, "Generation context unavailable, continuing without history",
			"component", "expander", "platform", platform, "error", err)
		historyContext = ""
	}
	if historyContext != "" {
		historyContext = "以下是历史草稿片段，请避免重复视角和重复句式：\n" + historyContext
	}

	policy := generation.DraftStylePolicy(platform)
	seed := topic.Summary
	if seed == "" {
		seed = topic.Title
	}
	promptSeed := seed + "\n写作要求：" + policy.Tone + "。必须基于事实，不要杜撰来源；结尾给出明确观点或行动建议。"

	think := e.textGen.Run(ctx, generation.ThinkRequest{
		Title:          topic.Title,
		RawText:        promptSeed,
		HistoryContext: historyContext,
		Platform:       platform,
		Policy:         policy,
	})

	ratio, count := generation.ImagePolicy(platform)
	imageURLs := make([]string, 0, count)
	for idx := 0; idx < count; idx++ {
		prompt := think.ImagePrompt
		if idx > 0 {
			prompt = fmt.Sprintf("%s. variation %d", think.ImagePrompt, idx+1)
		}
		if url := e.painter.Run(ctx, prompt, ratio); url != "" {
			imageURLs = append(imageURLs, url)
		}
	}

	pack := database.ContentPackage{
		RecordType:   database.RecordTypeDraft,
		TraceID:      traceID,
		TopicTraceID: topic.TopicTraceID,
		Platform:     platform,
		SourceID:     "confirmation_callback",
		SourceInfo:   topic.SourceInfo,
		SourceURL:    topic.SourceURL,
		Title:        topic.Title,
		TopicSummary: topic.Summary,
		AISummary:    think.Summary,
		ShortCopy:    think.ShortCopy,
		Article:      think.Article,
		ImagePrompt:  think.ImagePrompt,
		ImageURLs:    imageURLs,
		Channels:     []string{platform},
		Status:       database.StatusDraftReady,
	}

	archived, err := e.archiver.Archive(ctx, pack)
	if err != nil {
		result.Status = "failed"
		result.Error = err.Error()
		return result
	}

	result.Status = "ok"
	result.DocURL = archived.DocURL
	return result
}
