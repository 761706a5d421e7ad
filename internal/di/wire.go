package di

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel-dashboard/internal/config"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Initialize databases
// 2. Initialize repositories
// 3. Initialize services
// 4. Register jobs
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, *JobInstances, error) {
	// Step 1: Initialize databases
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	// Step 2: Initialize repositories
	if err := InitializeRepositories(container, log); err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	// Step 3: Initialize services
	if err := InitializeServices(container, cfg, log); err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Step 4: Register jobs
	jobs, err := RegisterJobs(container, cfg, log)
	if err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	return container, jobs, nil
}

// Close releases background workers and the database. The scheduler must be
// stopped by its owner first.
func (c *Container) Close() error {
	for _, sub := range c.subscriptions {
		c.EventBus.Unsubscribe(sub)
	}
	c.subscriptions = nil

	if c.Coalescer != nil {
		c.Coalescer.Close()
	}

	var errs []error
	if c.ClientDataDB != nil {
		if err := c.ClientDataDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close client_data database: %w", err))
		}
	}
	return errors.Join(errs...)
}
