package api

import (
	"context"

	"github.com/alg-bug-engineer/Neural-Flow/app/database"
	"github.com/alg-bug-engineer/Neural-Flow/app/expander"
	"github.com/alg-bug-engineer/Neural-Flow/app/rules"
	"github.com/alg-bug-engineer/Neural-Flow/app/scheduler"
)

type ExpanderInterface interface {
	HandleEvent(ctx context.Context, payload map[string]any, force bool) expander.Result
}

var _ ExpanderInterface = (*expander.Expander)(nil)

type DashboardStore interface {
	ListDashboard(filter database.DashboardFilter) ([]database.DashboardEntry, error)
	CountByType() (map[string]int, error)
}

var _ DashboardStore = (*database.ArchiveRepository)(nil)

type LogStore interface {
	QueryLogs(filter database.LogFilter) ([]database.LogRecord, error)
}

var _ LogStore = (*database.LogRepository)(nil)

type Handler struct {
	scheduler  scheduler.SchedulerInterface
	expander   ExpanderInterface
	dashboard  DashboardStore
	logs       LogStore
	rulesCache *rules.Cache
}
