package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// VolatileRefresher re-polls market data in place.
type VolatileRefresher interface {
	RefreshVolatile(ctx context.Context) error
}

// UIRefreshJob re-polls volatile data while the page is in the foreground.
type UIRefreshJob struct {
	data       VolatileRefresher
	visibility *Visibility
	timeout    time.Duration
	log        zerolog.Logger
}

// NewUIRefreshJob creates the job. A nil visibility means always visible.
func NewUIRefreshJob(data VolatileRefresher, visibility *Visibility, timeout time.Duration, log zerolog.Logger) *UIRefreshJob {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &UIRefreshJob{
		data:       data,
		visibility: visibility,
		timeout:    timeout,
		log:        log.With().Str("job", "ui_refresh").Logger(),
	}
}

// Name returns the job name
func (j *UIRefreshJob) Name() string {
	return "ui_refresh"
}

// Run refreshes stocks and the dashboard bundle unless the page is hidden.
func (j *UIRefreshJob) Run() error {
	if j.visibility != nil && !j.visibility.Visible() {
		j.log.Debug().Msg("Page hidden, skipping refresh")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	if err := j.data.RefreshVolatile(ctx); err != nil {
		return fmt.Errorf("volatile refresh failed: %w", err)
	}
	j.log.Debug().Dur("duration", time.Since(start)).Msg("Volatile data refreshed")
	return nil
}
