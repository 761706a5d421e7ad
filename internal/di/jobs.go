package di

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel-dashboard/internal/cache"
	"github.com/aristath/sentinel-dashboard/internal/config"
	"github.com/aristath/sentinel-dashboard/internal/scheduler"
)

// RegisterJobs creates the background jobs and adds them to the scheduler.
// The scheduler is not started here.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Data == nil {
		return nil, fmt.Errorf("container services not initialized")
	}

	container.Scheduler = scheduler.New(log)
	container.Visibility = scheduler.NewVisibility()

	instances := &JobInstances{
		SessionLiveness: scheduler.NewSessionLivenessJob(container.Session, cfg.HTTPTimeout, log),
		UIRefresh:       scheduler.NewUIRefreshJob(container.Data, container.Visibility, cfg.HTTPTimeout, log),
		CacheSweep:      cache.NewSweepJob(container.Cache, log),
	}

	schedules := []struct {
		every time.Duration
		job   scheduler.Job
	}{
		{cfg.SessionCheckInterval, instances.SessionLiveness},
		{cfg.UIRefreshInterval, instances.UIRefresh},
		{cfg.CacheSweepInterval, instances.CacheSweep},
	}
	for _, s := range schedules {
		if err := container.Scheduler.AddJob("@every "+s.every.String(), s.job); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", s.job.Name(), err)
		}
	}

	return instances, nil
}
