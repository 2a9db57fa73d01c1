package jobs

import (
	"context"
	"time"

	"github.com/signalscan/scanner/internal/categorize"
	"github.com/signalscan/scanner/internal/news"
	"github.com/signalscan/scanner/internal/pipeline"
	"github.com/signalscan/scanner/internal/snapshot"
	"github.com/signalscan/scanner/pkg/logger"
)

// DailyResetJob clears all session-scoped state at the start of the
// premarket. Day highs, daily hit counters, channel memberships, rolling
// windows and the provider rotation all reset together.
type DailyResetJob struct {
	manager    *pipeline.Manager
	membership *categorize.Membership
	windows    *snapshot.WindowSet
	router     *news.Router
	logger     *logger.Logger
}

// NewDailyResetJob creates a new daily reset job
func NewDailyResetJob(
	manager *pipeline.Manager,
	membership *categorize.Membership,
	windows *snapshot.WindowSet,
	router *news.Router,
	log *logger.Logger,
) *DailyResetJob {
	return &DailyResetJob{
		manager:    manager,
		membership: membership,
		windows:    windows,
		router:     router,
		logger:     log,
	}
}

// Name returns the job name
func (j *DailyResetJob) Name() string {
	return "daily_reset"
}

// Schedule returns the cron schedule (04:00 ET every day)
func (j *DailyResetJob) Schedule() string {
	return "0 0 4 * * *"
}

// Run executes the daily reset
func (j *DailyResetJob) Run(ctx context.Context) error {
	now := time.Now()

	j.manager.DailyReset(now)
	j.membership.Clear()
	j.windows.Reset()
	if j.router != nil {
		j.router.ResetDaily(ctx, now)
	}

	j.logger.Info("Daily reset completed")
	return nil
}
