// Package scheduler drives the discovery pipeline: a worker pool consumes
// a task queue fed by a ticker that enqueues due source scans, a periodic
// memory sweep, and a rules file watcher for hot reload.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alg-bug-engineer/Neural-Flow/app/cfg"
	"github.com/alg-bug-engineer/Neural-Flow/app/feed"
	"github.com/alg-bug-engineer/Neural-Flow/app/rules"
)

const (
	taskQueueSize      = 300
	taskTimeout        = 5 * time.Minute
	rulesWatchInterval = 60 * time.Second
	sweepInterval      = 24 * time.Hour
)

var _ SchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	rulesCache  *rules.Cache
	fetcher     *feed.Fetcher
	parser      *feed.Parser
	evaluator   *feed.Evaluator
	memoryStore MemoryStore
	archiver    Archiver
	states      *SourceStates
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface

	mu                sync.Mutex
	lastSweep         time.Time
	lastScheduleCheck time.Time
}

func NewScheduler(rulesCache *rules.Cache, fetcher *feed.Fetcher, parser *feed.Parser,
	evaluator *feed.Evaluator, memoryStore MemoryStore, archiver Archiver) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		rulesCache:  rulesCache,
		fetcher:     fetcher,
		parser:      parser,
		evaluator:   evaluator,
		memoryStore: memoryStore,
		archiver:    archiver,
		states:      NewSourceStates(),
		interval:    time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount: cfg.WorkerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, taskQueueSize),

		lastScheduleCheck: time.Now(),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		watchTicker := time.NewTicker(rulesWatchInterval)
		defer watchTicker.Stop()

		s.enqueueDueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueDueTasks()
			case <-watchTicker.C:
				s.watchRules()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// RunOnce enqueues an immediate scan for the named source, or for every
// source when sourceID is empty. Sources with a cycle already in flight are
// coalesced by the per-source state machine, not run twice.
func (s *Scheduler) RunOnce(sourceID string) (int, error) {
	snapshot, err := s.rulesCache.Snapshot()
	if err != nil {
		return 0, err
	}

	channels := snapshot.EnabledPlatforms()
	enqueued := 0
	for _, source := range snapshot.Sources {
		if sourceID != "" && source.ID != sourceID {
			continue
		}
		task := NewScanSourceTask(source, channels, s.states,
			s.fetcher, s.parser, s.evaluator, s.memoryStore, s.archiver)
		if err := s.EnqueueTask(task); err != nil {
			return enqueued, err
		}
		enqueued++
	}

	if sourceID != "" && enqueued == 0 {
		return 0, fmt.Errorf("source %s not found", sourceID)
	}
	return enqueued, nil
}

// Reload re-reads the rules file. In-flight cycles finish on the old
// snapshot; sources removed by the reload are simply never due again.
func (s *Scheduler) Reload() (bool, error) {
	return s.rulesCache.Reload()
}

// Status returns the last-run outcome per source.
func (s *Scheduler) Status() map[string]RunStats {
	return s.states.Snapshot()
}

func (s *Scheduler) enqueueDueTasks() {
	snapshot, err := s.rulesCache.Snapshot()
	if err != nil {
		slog.Warn("Rules not available, skipping scheduling pass", "error", err)
		return
	}

	now := time.Now()
	channels := snapshot.EnabledPlatforms()

	for _, source := range snapshot.Sources {
		if !s.states.IsDue(source.ID, now) {
			continue
		}

		interval, err := rules.ParseInterval(source.FetchInterval)
		if err != nil {
			slog.Warn("Invalid fetch interval, skipping source",
				"source", source.ID, "interval", source.FetchInterval, "error", err)
			continue
		}
		s.states.ScheduleNext(source.ID, now.Add(interval))

		task := NewScanSourceTask(source, channels, s.states,
			s.fetcher, s.parser, s.evaluator, s.memoryStore, s.archiver)
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue ScanSourceTask", "source", source.ID, "error", err)
		}
	}

	s.maybeEnqueueScheduledRuns(snapshot, now)
	s.maybeEnqueueSweep(snapshot, now)
}

// maybeEnqueueScheduledRuns fires the per-platform publishing schedule: each
// enabled platform with daily HH:MM slots triggers a scan of every source
// when one of its slots passes. Sources with a cycle already in flight are
// coalesced by the state machine like any other trigger.
func (s *Scheduler) maybeEnqueueScheduledRuns(snapshot *rules.Rules, now time.Time) {
	s.mu.Lock()
	last := s.lastScheduleCheck
	s.lastScheduleCheck = now
	s.mu.Unlock()
	if !last.Before(now) {
		return
	}

	for _, name := range snapshot.EnabledPlatforms() {
		policy := snapshot.Platforms[name]
		if policy.Schedule == "" {
			continue
		}

		slots, err := rules.ParseSchedule(policy.Schedule)
		if err != nil {
			slog.Warn("Invalid platform schedule, skipping",
				"platform", name, "schedule", policy.Schedule, "error", err)
			continue
		}

		for _, slot := range slots {
			if !slotElapsed(slot, last, now) {
				continue
			}

			slog.Info("Platform schedule slot reached, scanning all sources",
				"component", "scheduler", "platform", name, "schedule", policy.Schedule)
			if _, err := s.RunOnce(""); err != nil {
				slog.Warn("Failed to enqueue scheduled run", "platform", name, "error", err)
			}
			break
		}
	}
}

// slotElapsed reports whether the daily minute-of-day slot falls inside
// (last, now]. The slot is checked against both boundary days so a pass over
// midnight still catches it.
func slotElapsed(minuteOfDay int, last, now time.Time) bool {
	for _, day := range []time.Time{last, now} {
		slot := time.Date(day.Year(), day.Month(), day.Day(),
			minuteOfDay/60, minuteOfDay%60, 0, 0, now.Location())
		if slot.After(last) && !slot.After(now) {
			return true
		}
	}
	return false
}

func (s *Scheduler) maybeEnqueueSweep(snapshot *rules.Rules, now time.Time) {
	s.mu.Lock()
	due := now.Sub(s.lastSweep) >= sweepInterval
	if due {
		s.lastSweep = now
	}
	s.mu.Unlock()
	if !due {
		return
	}

	task := NewSweepTask(snapshot.Global.MemoryRetentionDays, s.memoryStore)
	if err := s.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue SweepTask", "error", err)
	}
}

func (s *Scheduler) watchRules() {
	changed, err := s.rulesCache.Reload()
	if err != nil {
		slog.Error("Failed to reload rules file", "error", err)
		return
	}
	if changed {
		slog.Info("Rules file changed, new snapshot active", "component", "scheduler",
			"fingerprint", s.rulesCache.Fingerprint())
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID,
			"type", string(task.GetType()), "id", task.GetID(),
			"retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()),
				"source", task.GetSourceID(), "retry_count", task.GetRetryCount(),
				"max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			// The retry goroutine joins the WaitGroup so Stop cannot close
			// the queue while a re-enqueue is still possible.
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()

				timer := time.NewTimer(retryDelay)
				defer timer.Stop()
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry",
						"type", string(task.GetType()), "id", task.GetID())
					return
				case <-timer.C:
				}

				if retryErr := s.EnqueueTask(task); retryErr != nil {
					slog.Error("Failed to re-enqueue task for retry",
						"type", string(task.GetType()), "id", task.GetID(),
						"retry_count", task.GetRetryCount(), "error", retryErr)
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries",
				"type", string(task.GetType()), "id", task.GetID(),
				"retry_count", task.GetRetryCount(),
				"max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
