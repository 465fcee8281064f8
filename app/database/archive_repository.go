package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// ArchiveRepository persists content packages and serves the read-only
// dashboard surface. Packages are never deleted by the core.
type ArchiveRepository struct {
	db *DB
}

func NewArchiveRepository(db *DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// SavePackage records an archived content package together with the URL of
// the document that ultimately served it.
func (r *ArchiveRepository) SavePackage(pack ContentPackage, archiveURL string) error {
	payload, err := json.Marshal(pack)
	if err != nil {
		return fmt.Errorf("failed to encode package payload: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO content_packages (
			record_type, trace_id, topic_trace_id, platform, fingerprint,
			source_id, source_info, source_url, title, summary,
			channels, status, archive_url, payload, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, pack.RecordType, pack.TraceID, pack.TopicTraceID, pack.Platform, pack.Fingerprint,
		pack.SourceID, pack.SourceInfo, pack.SourceURL, pack.Title, pack.Summary(),
		strings.Join(pack.Channels, ", "), pack.Status, archiveURL, string(payload),
		formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save content package: %w", err)
	}

	return nil
}

// HasTrace reports whether a package with the given trace id already exists.
// Used to skip re-generating drafts on re-delivered confirmation events.
func (r *ArchiveRepository) HasTrace(traceID string) (bool, error) {
	var one int
	err := r.db.QueryRow(
		"SELECT 1 FROM content_packages WHERE trace_id = ? LIMIT 1", traceID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check trace id: %w", err)
	}
	return true, nil
}

// ListDashboard returns recent packages, optionally narrowed by record type
// and trace id.
func (r *ArchiveRepository) ListDashboard(filter DashboardFilter) ([]DashboardEntry, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	builder := sq.Select(
		"id", "record_type", "trace_id", "platform", "source_id", "source_info",
		"title", "summary", "channels", "status", "archive_url", "created_at",
	).From("content_packages").OrderBy("id DESC").Limit(uint64(limit))

	if filter.RecordType != "" {
		builder = builder.Where(sq.Eq{"record_type": filter.RecordType})
	}
	if filter.TraceID != "" {
		builder = builder.Where(sq.Eq{"trace_id": filter.TraceID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build dashboard query: %w", err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list dashboard: %w", err)
	}
	defer rows.Close()

	var entries []DashboardEntry
	for rows.Next() {
		var entry DashboardEntry
		var createdAt string
		err := rows.Scan(
			&entry.ID, &entry.RecordType, &entry.TraceID, &entry.Platform,
			&entry.SourceID, &entry.SourceInfo, &entry.Title, &entry.Summary,
			&entry.Channels, &entry.Status, &entry.ArchiveURL, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dashboard row: %w", err)
		}
		entry.CreatedAt = parseTime(createdAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dashboard rows: %w", err)
	}

	return entries, nil
}

// GenerationContext collects snippets from recent drafts related to the
// title, so the generation stage can avoid repeating prior angles and
// phrasing. Relevance is token overlap, with a bonus for same-platform
// drafts.
func (r *ArchiveRepository) GenerationContext(title, platform string, limit int) (string, error) {
	tokens := extractTokens(title)
	if len(tokens) == 0 {
		return "", nil
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := r.db.Query(`
		SELECT title, summary, platform FROM content_packages
		WHERE record_type = ?
		ORDER BY id DESC
		LIMIT 50
	`, RecordTypeDraft)
	if err != nil {
		return "", fmt.Errorf("failed to load recent drafts: %w", err)
	}
	defer rows.Close()

	platformKey := strings.ToLower(strings.TrimSpace(platform))
	var snippets []string
	for rows.Next() {
		if len(snippets) >= limit {
			break
		}
		var draftTitle, draftSummary, draftPlatform string
		if err := rows.Scan(&draftTitle, &draftSummary, &draftPlatform); err != nil {
			return "", fmt.Errorf("failed to scan draft row: %w", err)
		}

		haystack := strings.ToLower(draftTitle + " " + draftSummary)
		score := 0
		for _, token := range tokens {
			if strings.Contains(haystack, token) {
				score++
			}
		}
		if platformKey != "" && strings.ToLower(draftPlatform) == platformKey {
			score += 2
		}
		if score <= 0 {
			continue
		}

		snippets = append(snippets, fmt.Sprintf("- %s: %s", draftTitle, oneLine(draftSummary, 220)))
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("error iterating draft rows: %w", err)
	}

	return strings.Join(snippets, "\n"), nil
}

// CountByType returns package counts keyed by record type.
func (r *ArchiveRepository) CountByType() (map[string]int, error) {
	rows, err := r.db.Query("SELECT record_type, COUNT(*) FROM content_packages GROUP BY record_type")
	if err != nil {
		return nil, fmt.Errorf("failed to count packages: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var recordType string
		var count int
		if err := rows.Scan(&recordType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[recordType] = count
	}
	return counts, rows.Err()
}

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9]{3,}|[\x{4e00}-\x{9fff}]{2,}`)

func extractTokens(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]bool, len(raw))
	var result []string
	for _, token := range raw {
		if seen[token] {
			continue
		}
		seen[token] = true
		result = append(result, token)
		if len(result) >= 10 {
			break
		}
	}
	return result
}

func oneLine(text string, limit int) string {
	compact := strings.Join(strings.Fields(text), " ")
	if runes := []rune(compact); len(runes) > limit {
		compact = string(runes[:limit])
	}
	return compact
}
