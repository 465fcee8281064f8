package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alg-bug-engineer/Neural-Flow/app/cfg"
	"github.com/alg-bug-engineer/Neural-Flow/app/database"
	"github.com/alg-bug-engineer/Neural-Flow/app/rules"
	"github.com/alg-bug-engineer/Neural-Flow/app/scheduler"
)

const (
	defaultDashboardLimit = 50
	defaultLogLimit       = 100
	maxListLimit          = 500
)

func NewHandler(sched scheduler.SchedulerInterface, exp ExpanderInterface,
	dashboard DashboardStore, logs LogStore, rulesCache *rules.Cache) *Handler {
	return &Handler{
		scheduler:  sched,
		expander:   exp,
		dashboard:  dashboard,
		logs:       logs,
		rulesCache: rulesCache,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"version":   cfg.GetVersion(),
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if counts, err := h.dashboard.CountByType(); err == nil {
		health["records"] = counts
	}

	if snapshot, err := h.rulesCache.Snapshot(); err == nil {
		health["sources"] = len(snapshot.Sources)
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStatus(c *gin.Context) {
	snapshot, err := h.rulesCache.Snapshot()
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "Rules unavailable", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Rules unavailable"})
		return
	}

	sources := make([]map[string]interface{}, 0, len(snapshot.Sources))
	runs := h.scheduler.Status()

	for _, source := range snapshot.Sources {
		info := map[string]interface{}{
			"id":             source.ID,
			"type":           source.Type,
			"fetch_interval": source.FetchInterval,
			"max_items":      source.MaxItems,
		}
		if stats, ok := runs[source.ID]; ok {
			info["last_run"] = stats
		}
		sources = append(sources, info)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"rules_fingerprint": h.rulesCache.Fingerprint(),
		"enabled_platforms": snapshot.EnabledPlatforms(),
		"sources":           sources,
		"total":             len(sources),
	})
}

func (h *Handler) PostRunOnce(c *gin.Context) {
	sourceID := c.Query("source_id")

	enqueued, err := h.scheduler.RunOnce(sourceID)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "Manual scan failed to enqueue", "source", sourceID, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"enqueued": enqueued,
	})
}

func (h *Handler) PostReload(c *gin.Context) {
	changed, err := h.scheduler.Reload()
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "Rules reload failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload rules",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"changed":           changed,
		"rules_fingerprint": h.rulesCache.Fingerprint(),
	})
}

func (h *Handler) PostCallback(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		slog.ErrorContext(c.Request.Context(), "Malformed callback payload", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}

	force := c.Query("force") == "true"

	result := h.expander.HandleEvent(c.Request.Context(), payload, force)

	// Handshake replies carry only the echoed challenge, nothing else: some
	// event platforms reject envelopes with extra keys.
	if result.Status == "handshake" {
		c.JSON(http.StatusOK, gin.H{"challenge": result.Challenge})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetDashboard(c *gin.Context) {
	filter := database.DashboardFilter{
		RecordType: c.Query("record_type"),
		TraceID:    c.Query("trace_id"),
		Limit:      parseLimit(c.Query("limit"), defaultDashboardLimit),
	}

	entries, err := h.dashboard.ListDashboard(filter)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "Database error", "operation", "list_dashboard", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	rows := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, map[string]interface{}{
			"id":          entry.ID,
			"record_type": entry.RecordType,
			"trace_id":    entry.TraceID,
			"platform":    entry.Platform,
			"source_id":   entry.SourceID,
			"source_info": entry.SourceInfo,
			"title":       entry.Title,
			"summary":     entry.Summary,
			"channels":    entry.Channels,
			"status":      entry.Status,
			"archive_url": entry.ArchiveURL,
			"created_at":  entry.CreatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"entries": rows,
		"total":   len(rows),
	})
}

func (h *Handler) GetLogs(c *gin.Context) {
	filter := database.LogFilter{
		TraceID:   c.Query("trace_id"),
		Component: c.Query("component"),
		Level:     c.Query("level"),
		Keyword:   c.Query("keyword"),
		Limit:     parseLimit(c.Query("limit"), defaultLogLimit),
	}

	records, err := h.logs.QueryLogs(filter)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "Database error", "operation", "query_logs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	rows := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		rows = append(rows, map[string]interface{}{
			"id":         record.ID,
			"created_at": record.CreatedAt.Format(time.RFC3339),
			"component":  record.Component,
			"level":      record.Level,
			"message":    record.Message,
			"trace_id":   record.TraceID,
			"attrs":      record.Attrs,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"logs":  rows,
		"total": len(rows),
	})
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
