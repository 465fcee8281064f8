package scheduler

import (
	"sync"
	"time"
)

// Phases of a single source cycle. Exactly one cycle per source can be in
// a non-idle phase at any time.
const (
	PhaseIdle        = "idle"
	PhaseScanning    = "scanning"
	PhaseDeduping    = "deduping"
	PhaseFiltering   = "filtering"
	PhaseArchiving   = "archiving"
	PhaseRemembering = "remembering"
)

// RunStats captures the outcome of the most recent cycle for one source.
type RunStats struct {
	SourceID   string     `json:"source_id"`
	Scanned    int        `json:"scanned"`
	Processed  int        `json:"processed"`
	Duplicated int        `json:"duplicated"`
	Filtered   int        `json:"filtered"`
	Failed     int        `json:"failed"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type sourceState struct {
	phase   string
	lastRun RunStats
	nextRun time.Time
}

// SourceStates is the shared per-source state machine. Begin is the atomic
// check-and-set that guarantees no two cycles for the same source overlap,
// regardless of whether the trigger was a timer tick or a manual run.
type SourceStates struct {
	mu     sync.Mutex
	states map[string]*sourceState
}

func NewSourceStates() *SourceStates {
	return &SourceStates{
		states: make(map[string]*sourceState),
	}
}

// Begin transitions the source from idle to scanning. It returns false when
// a cycle is already in flight, in which case the caller must skip.
func (s *SourceStates) Begin(sourceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.ensure(sourceID)
	if state.phase != PhaseIdle {
		return false
	}

	state.phase = PhaseScanning
	state.lastRun = RunStats{SourceID: sourceID, StartedAt: time.Now().UTC()}
	return true
}

// Advance moves a running cycle to the next phase. No-op for idle sources.
func (s *SourceStates) Advance(sourceID, phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.ensure(sourceID)
	if state.phase != PhaseIdle {
		state.phase = phase
	}
}

// Finish returns the source to idle and records the cycle outcome.
func (s *SourceStates) Finish(sourceID string, stats RunStats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stats.EndedAt = &now

	state := s.ensure(sourceID)
	state.phase = PhaseIdle
	state.lastRun = stats
}

func (s *SourceStates) Phase(sourceID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensure(sourceID).phase
}

// ScheduleNext records when the source is next due.
func (s *SourceStates) ScheduleNext(sourceID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(sourceID).nextRun = at
}

// IsDue reports whether the source's next-run time has passed. A source
// never scheduled is immediately due.
func (s *SourceStates) IsDue(sourceID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.ensure(sourceID).nextRun.After(now)
}

// Snapshot returns the last-run outcome for every known source.
func (s *SourceStates) Snapshot() map[string]RunStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]RunStats, len(s.states))
	for id, state := range s.states {
		stats := state.lastRun
		out[id] = stats
	}
	return out
}

func (s *SourceStates) ensure(sourceID string) *sourceState {
	state, ok := s.states[sourceID]
	if !ok {
		state = &sourceState{phase: PhaseIdle}
		s.states[sourceID] = state
	}
	return state
}
