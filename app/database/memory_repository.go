package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// timeLayout keeps fractional seconds fixed-width so stored timestamps sort
// lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// MemoryRepository is the fingerprint ledger and context index: presence of a
// fingerprint means "already processed", and remembered summaries feed
// incremental-writing context back into generation.
type MemoryRepository struct {
	db *DB
}

func NewMemoryRepository(db *DB) *MemoryRepository {
	return &MemoryRepository{db: db}
}

// IsDuplicate reports whether the fingerprint has been processed before.
func (r *MemoryRepository) IsDuplicate(fingerprint string) (bool, error) {
	var one int
	err := r.db.QueryRow(
		"SELECT 1 FROM memory_items WHERE fingerprint = ? LIMIT 1", fingerprint,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate: %w", err)
	}
	return true, nil
}

// Remember inserts the entry if the fingerprint is absent. Repeated calls for
// the same fingerprint are no-ops; the return value reports whether this
// caller won the insert, so a race between two cycles on the same fingerprint
// resolves to exactly one winner.
func (r *MemoryRepository) Remember(entry MemoryEntry) (bool, error) {
	keywords, err := json.Marshal(entry.Keywords)
	if err != nil {
		return false, fmt.Errorf("failed to encode keywords: %w", err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := r.db.Exec(`
		INSERT OR IGNORE INTO memory_items (
			fingerprint, source_id, title, url, summary,
			keywords, raw_text, archive_url, image_url, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.Fingerprint, entry.SourceID, entry.Title, entry.URL, entry.Summary,
		string(keywords), entry.RawText, entry.ArchiveURL, entry.ImageURL,
		formatTime(createdAt))
	if err != nil {
		return false, fmt.Errorf("failed to remember fingerprint: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return affected > 0, nil
}

// Sweep removes entries older than the retention cutoff and returns the count
// removed. The cutoff is computed once, so entries written while the sweep
// runs are never eligible.
func (r *MemoryRepository) Sweep(retentionDays int) (int, error) {
	cutoff := formatTime(time.Now().AddDate(0, 0, -retentionDays))

	result, err := r.db.Exec("DELETE FROM memory_items WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep memory: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read sweep result: %w", err)
	}
	return int(removed), nil
}

// RetrieveContext returns the most recent remembered summaries matching any
// of the keywords, formatted as context lines for the generation stage.
func (r *MemoryRepository) RetrieveContext(keywords []string, limit int) (string, int, error) {
	if len(keywords) == 0 {
		return "", 0, nil
	}
	if limit <= 0 {
		limit = 3
	}

	matches := make(sq.Or, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		matches = append(matches, sq.Like{"keywords": "%" + kw + "%"})
	}
	if len(matches) == 0 {
		return "", 0, nil
	}

	query, args, err := sq.Select("title", "summary", "created_at").
		From("memory_items").
		Where(matches).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return "", 0, fmt.Errorf("failed to build context query: %w", err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return "", 0, fmt.Errorf("failed to retrieve context: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var title, summary, createdAt string
		if err := rows.Scan(&title, &summary, &createdAt); err != nil {
			return "", 0, fmt.Errorf("failed to scan context row: %w", err)
		}
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", title, createdAt, summary))
	}
	if err := rows.Err(); err != nil {
		return "", 0, fmt.Errorf("error iterating context rows: %w", err)
	}

	return strings.Join(lines, "\n"), len(lines), nil
}

// Count returns the number of remembered fingerprints.
func (r *MemoryRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM memory_items").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count memory items: %w", err)
	}
	return count, nil
}
