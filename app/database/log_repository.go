package database

import (
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/alg-bug-engineer/Neural-Flow/app/obs"
)

var _ obs.LogSink = (*LogRepository)(nil)

// LogRepository is the aggregation point of the log fabric: every component's
// records land here and are queryable by trace id, component and severity.
type LogRepository struct {
	db *DB
}

func NewLogRepository(db *DB) *LogRepository {
	return &LogRepository{db: db}
}

// WriteLog persists one log record. Called from the slog handler.
func (r *LogRepository) WriteLog(entry obs.LogEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.Exec(`
		INSERT INTO service_logs (created_at, component, level, message, trace_id, attrs_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`, formatTime(createdAt), entry.Component, entry.Level, entry.Message,
		entry.TraceID, entry.Attrs)
	if err != nil {
		return fmt.Errorf("failed to write log record: %w", err)
	}
	return nil
}

// QueryLogs returns recent records matching the filter, newest first.
func (r *LogRepository) QueryLogs(filter LogFilter) ([]LogRecord, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	builder := sq.Select("id", "created_at", "component", "level", "message", "trace_id", "attrs_json").
		From("service_logs").
		OrderBy("id DESC").
		Limit(uint64(limit))

	if filter.TraceID != "" {
		builder = builder.Where(sq.Eq{"trace_id": obs.NormalizeID(filter.TraceID)})
	}
	if filter.Component != "" {
		builder = builder.Where(sq.Eq{"component": filter.Component})
	}
	if filter.Level != "" {
		builder = builder.Where(sq.Eq{"level": strings.ToUpper(strings.TrimSpace(filter.Level))})
	}
	if filter.Keyword != "" {
		builder = builder.Where(sq.Like{"message": "%" + filter.Keyword + "%"})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build log query: %w", err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	var records []LogRecord
	for rows.Next() {
		var record LogRecord
		var createdAt string
		err := rows.Scan(&record.ID, &createdAt, &record.Component, &record.Level,
			&record.Message, &record.TraceID, &record.Attrs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}
		record.CreatedAt = parseTime(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log rows: %w", err)
	}

	return records, nil
}
