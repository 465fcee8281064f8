package database

import (
	"time"
)

// Record types for content packages.
const (
	RecordTypeTopic = "topic"
	RecordTypeDraft = "draft"
)

// Status values written by the core. Inbound confirmation signals use a wider
// vocabulary (see the expander's trigger list); the core only writes these.
const (
	StatusPendingConfirmation = "pending_confirmation"
	StatusDraftReady          = "draft_ready"
)

// MemoryEntry is one row of the fingerprint ledger. The fingerprint is the
// primary key; Remember is insert-if-absent.
type MemoryEntry struct {
	Fingerprint string
	SourceID    string
	Title       string
	URL         string
	Summary     string
	Keywords    []string
	RawText     string
	ArchiveURL  string
	ImageURL    string
	CreatedAt   time.Time
}

// ContentPackage is the unit of archived output: a topic (raw discovery) or a
// draft (platform-specific generated artifact). A draft's TraceID is always
// TopicTraceID + "-" + Platform.
type ContentPackage struct {
	RecordType   string
	TraceID      string
	TopicTraceID string
	Platform     string
	Fingerprint  string
	SourceID     string
	SourceInfo   string
	SourceURL    string
	Title        string
	TopicSummary string
	AISummary    string
	ShortCopy    string
	Article      string
	ImagePrompt  string
	ImageURLs    []string
	Channels     []string
	Status       string
}

// Summary returns the display summary: drafts carry the generated one, topics
// the source-derived one.
func (p *ContentPackage) Summary() string {
	if p.RecordType == RecordTypeTopic {
		return p.TopicSummary
	}
	if p.AISummary != "" {
		return p.AISummary
	}
	return p.TopicSummary
}

// FirstImage returns the lead image URL, if any.
func (p *ContentPackage) FirstImage() string {
	if len(p.ImageURLs) > 0 {
		return p.ImageURLs[0]
	}
	return ""
}

// DashboardEntry is a row of the read-only dashboard surface.
type DashboardEntry struct {
	ID         int64
	RecordType string
	TraceID    string
	Platform   string
	SourceID   string
	SourceInfo string
	Title      string
	Summary    string
	Channels   string
	Status     string
	ArchiveURL string
	CreatedAt  time.Time
}

// DashboardFilter narrows the dashboard listing.
type DashboardFilter struct {
	RecordType string
	TraceID    string
	Limit      int
}

// LogRecord is one row of the aggregated log store.
type LogRecord struct {
	ID        int64
	CreatedAt time.Time
	Component string
	Level     string
	Message   string
	TraceID   string
	Attrs     string
}

// LogFilter narrows a log query.
type LogFilter struct {
	TraceID   string
	Component string
	Level     string
	Keyword   string
	Limit     int
}
