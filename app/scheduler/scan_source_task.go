package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alg-bug-engineer/Neural-Flow/app/database"
	"github.com/alg-bug-engineer/Neural-Flow/app/feed"
	"github.com/alg-bug-engineer/Neural-Flow/app/obs"
	"github.com/alg-bug-engineer/Neural-Flow/app/rules"
)

const contextRetrievalLimit = 5

// ScanSourceTask runs one full pipeline cycle for one source: fetch, parse,
// dedupe, filter, archive, remember. The per-source state machine guarantees
// at most one cycle per source is in flight.
type ScanSourceTask struct {
	Task
	Source      rules.Source
	channels    []string
	states      *SourceStates
	fetcher     *feed.Fetcher
	parser      *feed.Parser
	evaluator   *feed.Evaluator
	memoryStore MemoryStore
	archiver    Archiver
}

func NewScanSourceTask(source rules.Source, channels []string, states *SourceStates,
	fetcher *feed.Fetcher, parser *feed.Parser, evaluator *feed.Evaluator,
	memoryStore MemoryStore, archiver Archiver) *ScanSourceTask {
	return &ScanSourceTask{
		Task:        NewTask(TaskTypeScanSource, source.ID),
		Source:      source,
		channels:    channels,
		states:      states,
		fetcher:     fetcher,
		parser:      parser,
		evaluator:   evaluator,
		memoryStore: memoryStore,
		archiver:    archiver,
	}
}

func (t *ScanSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.states.Begin(t.Source.ID) {
		slog.Debug("Cycle already in flight, skipping", "source", t.Source.ID)
		return nil
	}

	stats := RunStats{SourceID: t.Source.ID, StartedAt: time.Now().UTC()}
	defer func() {
		t.states.Finish(t.Source.ID, stats)
	}()

	data, err := t.fetcher.Run(ctx, t.Source.URL)
	if err != nil {
		stats.Failed++
		stats.Error = err.Error()
		return fmt.Errorf("failed to fetch source: %w", err)
	}

	items, err := t.parser.Run(data, t.Source.ID, t.Source.MaxItems)
	if err != nil {
		stats.Failed++
		stats.Error = err.Error()
		return fmt.Errorf("failed to parse source: %w", err)
	}
	stats.Scanned = len(items)

	for _, item := range items {
		itemCtx := obs.WithTraceID(ctx, obs.TopicTraceID(item.Fingerprint))
		if err := t.processItem(itemCtx, item, &stats); err != nil {
			stats.Failed++
			slog.ErrorContext(itemCtx, "Item processing failed",
				"component", "scheduler", "source", t.Source.ID, "error", err)
		}
	}

	slog.InfoContext(ctx, "Task completed",
		"type", "ScanSource",
		"component", "scheduler",
		"source", t.Source.ID,
		"duration", t.GetDuration(),
		"scanned", stats.Scanned,
		"processed", stats.Processed,
		"duplicates", stats.Duplicated,
		"filtered", stats.Filtered,
		"failed", stats.Failed)

	return nil
}

// processItem carries one item through dedupe, filter, archive, remember.
// Remember runs only after a successful archive write, so a failed item is
// picked up again on a later cycle.
func (t *ScanSourceTask) processItem(ctx context.Context, item feed.Item, stats *RunStats) error {
	t.states.Advance(t.Source.ID, PhaseDeduping)
	duplicate, err := t.memoryStore.IsDuplicate(item.Fingerprint)
	if err != nil {
		return fmt.Errorf("failed to check for duplicates: %w", err)
	}
	if duplicate {
		stats.Duplicated++
		return nil
	}

	t.states.Advance(t.Source.ID, PhaseFiltering)
	if !t.evaluator.IsHighValue(item) {
		stats.Filtered++
		return nil
	}

	t.states.Advance(t.Source.ID, PhaseArchiving)
	historyContext, matched, err := t.memoryStore.RetrieveContext(item.Keywords, contextRetrievalLimit)
	if err != nil {
		slog.WarnContext(ctx, "Context retrieval failed, continuing without history",
			"component", "scheduler", "source", t.Source.ID, "error", err)
		historyContext = ""
	} else if matched > 0 {
		slog.DebugContext(ctx, "Prior coverage found", "matched", matched,
			"context_length", len(historyContext))
	}

	summary := item.Summary
	if summary == "" {
		summary = item.RawText
	}
	summary = compactSummary(summary, 240)

	pack := database.ContentPackage{
		RecordType:   database.RecordTypeTopic,
		TraceID:      obs.TopicTraceID(item.Fingerprint),
		Fingerprint:  item.Fingerprint,
		SourceID:     t.Source.ID,
		SourceInfo:   feed.SourceInfo(t.Source.ID),
		SourceURL:    item.URL,
		Title:        item.Title,
		TopicSummary: summary,
		ImageURLs:    capImages(item.Images, 3),
		Channels:     t.channels,
		Status:       database.StatusPendingConfirmation,
	}

	result, err := t.archiver.Archive(ctx, pack)
	if err != nil {
		return fmt.Errorf("failed to archive topic: %w", err)
	}

	t.states.Advance(t.Source.ID, PhaseRemembering)
	inserted, err := t.memoryStore.Remember(database.MemoryEntry{
		Fingerprint: item.Fingerprint,
		SourceID:    t.Source.ID,
		Title:       item.Title,
		URL:         item.URL,
		Summary:     summary,
		Keywords:    item.Keywords,
		RawText:     item.RawText,
		ArchiveURL:  result.DocURL,
		ImageURL:    firstImage(item.Images),
	})
	if err != nil {
		return fmt.Errorf("failed to remember fingerprint: %w", err)
	}
	if !inserted {
		// Another cycle claimed the fingerprint between the duplicate
		// check and here; the archive write is redundant but harmless.
		stats.Duplicated++
		return nil
	}

	stats.Processed++
	return nil
}

func capImages(images []string, limit int) []string {
	if len(images) > limit {
		return images[:limit]
	}
	return images
}

func firstImage(images []string) string {
	if len(images) > 0 {
		return images[0]
	}
	return ""
}

func compactSummary(s string, limit int) string {
	runes := []rune(s)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return s
}
