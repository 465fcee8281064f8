package scheduler

import (
	"context"

	"github.com/alg-bug-engineer/Neural-Flow/app/archive"
	"github.com/alg-bug-engineer/Neural-Flow/app/database"
)

// MemoryStore is the fingerprint ledger and context index the pipeline
// mutates. Remember reports whether the fingerprint was newly claimed.
type MemoryStore interface {
	IsDuplicate(fingerprint string) (bool, error)
	Remember(entry database.MemoryEntry) (bool, error)
	Sweep(retentionDays int) (int, error)
	RetrieveContext(keywords []string, limit int) (string, int, error)
}

var _ MemoryStore = (*database.MemoryRepository)(nil)

// Archiver persists a content package and reports where it landed.
type Archiver interface {
	Archive(ctx context.Context, pack database.ContentPackage) (archive.Result, error)
}

var _ Archiver = (*archive.Service)(nil)

// SchedulerInterface is what the HTTP surface needs from the scheduler.
type SchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	RunOnce(sourceID string) (int, error)
	Reload() (bool, error)
	Status() map[string]RunStats
}
