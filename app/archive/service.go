// Package archive persists content packages: a markdown document on local
// disk (always), an optional remote document push, and a dashboard row.
// The local copy is the fallback of last resort, so Archive only fails when
// the local filesystem or the dashboard store does.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alg-bug-engineer/Neural-Flow/app/database"
	"github.com/alg-bug-engineer/Neural-Flow/app/feed"
	"github.com/alg-bug-engineer/Neural-Flow/app/generation"
	"github.com/alg-bug-engineer/Neural-Flow/app/httpjson"
	"github.com/alg-bug-engineer/Neural-Flow/app/obs"
)

const (
	BackendLocal   = "local"
	BackendWebhook = "webhook"

	StatusArchivedLocal  = "archived_local"
	StatusArchivedRemote = "archived_remote"
)

// PackageStore is the dashboard persistence the service needs.
type PackageStore interface {
	SavePackage(pack database.ContentPackage, archiveURL string) error
}

var _ PackageStore = (*database.ArchiveRepository)(nil)

// Result reports where a package landed and how the best-effort side
// channels fared.
type Result struct {
	DocURL       string
	Backend      string
	Status       string
	NotifyStatus string
}

type Service struct {
	store         PackageStore
	client        *httpjson.Client
	archiveDir    string
	publicBaseURL string
	webhookURL    string
}

func NewService(store PackageStore, client *httpjson.Client, archiveDir, publicBaseURL, webhookURL string) *Service {
	return &Service{
		store:         store,
		client:        client,
		archiveDir:    archiveDir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		webhookURL:    strings.TrimRight(webhookURL, "/"),
	}
}

// Archive normalizes the package, writes the local document, attempts the
// remote push, records the dashboard row, and (for topics) sends the signal
// notification. Remote push and notification failures degrade the result
// but never fail the call.
func (s *Service) Archive(ctx context.Context, pack database.ContentPackage) (Result, error) {
	normalizePackage(&pack)
	now := time.Now()

	markdown := buildDocMarkdown(pack)
	relPath, err := s.writeMarkdown(pack, markdown, now)
	if err != nil {
		return Result{}, fmt.Errorf("failed to write archive document: %w", err)
	}

	result := Result{
		DocURL:       s.localDocURL(relPath),
		Backend:      BackendLocal,
		Status:       StatusArchivedLocal,
		NotifyStatus: "not_sent",
	}

	if s.webhookURL != "" {
		remoteURL, err := s.pushDoc(ctx, pack, markdown, now)
		if err != nil {
			slog.WarnContext(ctx, "Remote document push failed, keeping local copy",
				"component", "archive", "trace_id", pack.TraceID, "error", err)
		} else if remoteURL != "" {
			result.DocURL = remoteURL
			result.Backend = BackendWebhook
			result.Status = StatusArchivedRemote
		}
	}

	if err := s.store.SavePackage(pack, result.DocURL); err != nil {
		return Result{}, fmt.Errorf("failed to save dashboard record: %w", err)
	}

	if pack.RecordType == database.RecordTypeTopic && s.webhookURL != "" {
		if err := s.notify(ctx, pack, result.DocURL); err != nil {
			result.NotifyStatus = truncate(err.Error(), 120)
			slog.WarnContext(ctx, "Topic notification failed",
				"component", "archive", "trace_id", pack.TraceID, "error", err)
		} else {
			result.NotifyStatus = "ok"
		}
	}

	slog.InfoContext(ctx, "Task completed",
		"type", "ArchivePackage",
		"record_type", pack.RecordType,
		"trace_id", pack.TraceID,
		"backend", result.Backend,
		"status", result.Status)

	return result, nil
}

func (s *Service) writeMarkdown(pack database.ContentPackage, markdown string, now time.Time) (string, error) {
	bucket := bucketForRecord(pack.RecordType, now)
	dir := filepath.Join(s.archiveDir, filepath.FromSlash(bucket))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	fileName := safeFileName(pack.TraceID+"-"+shortDocTitle(pack.Title)) + ".md"
	if err := os.WriteFile(filepath.Join(dir, fileName), []byte(markdown), 0644); err != nil {
		return "", err
	}

	return bucket + "/" + fileName, nil
}

func (s *Service) localDocURL(relPath string) string {
	if s.publicBaseURL == "" {
		return relPath
	}
	return s.publicBaseURL + "/local-archive/" + relPath
}

func (s *Service) pushDoc(ctx context.Context, pack database.ContentPackage, markdown string, now time.Time) (string, error) {
	payload := map[string]string{
		"title":    docTitle(pack, now),
		"folder":   bucketForRecord(pack.RecordType, now),
		"markdown": markdown,
	}

	var response struct {
		DocURL string `json:"doc_url"`
	}
	if err := s.client.PostJSON(ctx, s.webhookURL+"/doc", payload, &response, nil); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.DocURL), nil
}

func (s *Service) notify(ctx context.Context, pack database.ContentPackage, docURL string) error {
	payload := map[string]string{
		"title":     pack.Title,
		"summary":   pack.Summary(),
		"doc_url":   docURL,
		"image_url": pack.FirstImage(),
		"trace_id":  pack.TraceID,
	}
	return s.client.PostJSON(ctx, s.webhookURL+"/notify", payload, nil, nil)
}

// normalizePackage fills derivable fields so callers can submit sparse
// packages. Draft trace ids are always topic trace id + "-" + platform.
func normalizePackage(pack *database.ContentPackage) {
	if pack.RecordType != database.RecordTypeTopic {
		pack.RecordType = database.RecordTypeDraft
	}

	if pack.SourceInfo == "" {
		pack.SourceInfo = feed.SourceInfo(pack.SourceID)
	}

	topicTrace := pack.TopicTraceID
	if topicTrace == "" && pack.Fingerprint != "" {
		topicTrace = obs.TopicTraceID(pack.Fingerprint)
	}
	if topicTrace == "" {
		topicTrace = time.Now().Format("150405")
	}

	if pack.RecordType == database.RecordTypeDraft {
		pack.Platform = generation.NormalizePlatform(pack.Platform)
		if pack.TraceID == "" {
			pack.TraceID = obs.DraftTraceID(topicTrace, pack.Platform)
		}
		if len(pack.Channels) == 0 {
			pack.Channels = []string{pack.Platform}
		}
		if pack.Status == "" {
			pack.Status = database.StatusDraftReady
		}
	} else {
		if pack.TraceID == "" {
			pack.TraceID = topicTrace
		}
		if len(pack.Channels) == 0 {
			pack.Channels = []string{"twitter", "wechat_blog"}
		}
		if pack.Status == "" {
			pack.Status = database.StatusPendingConfirmation
		}
	}

	pack.TopicTraceID = topicTrace
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return s
}
