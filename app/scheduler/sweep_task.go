package scheduler

import (
	"context"
	"fmt"
	"log/slog"
)

// SweepTask removes fingerprint ledger entries older than the retention
// window. Swept items become eligible for re-discovery and re-archival.
type SweepTask struct {
	Task
	retentionDays int
	memoryStore   MemoryStore
}

func NewSweepTask(retentionDays int, memoryStore MemoryStore) *SweepTask {
	return &SweepTask{
		Task:          NewTask(TaskTypeSweepMemory, "memory"),
		retentionDays: retentionDays,
		memoryStore:   memoryStore,
	}
}

func (t *SweepTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	removed, err := t.memoryStore.Sweep(t.retentionDays)
	if err != nil {
		return fmt.Errorf("failed to sweep memory: %w", err)
	}

	slog.InfoContext(ctx, "Task completed",
		"type", "SweepMemory",
		"component", "scheduler",
		"duration", t.GetDuration(),
		"retention_days", t.retentionDays,
		"removed", removed)

	return nil
}
