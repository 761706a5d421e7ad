// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/sentinel-dashboard/internal/batch"
	"github.com/aristath/sentinel-dashboard/internal/cache"
	"github.com/aristath/sentinel-dashboard/internal/clientdata"
	"github.com/aristath/sentinel-dashboard/internal/dataaccess"
	"github.com/aristath/sentinel-dashboard/internal/database"
	"github.com/aristath/sentinel-dashboard/internal/events"
	"github.com/aristath/sentinel-dashboard/internal/scheduler"
	"github.com/aristath/sentinel-dashboard/internal/session"
	"github.com/aristath/sentinel-dashboard/internal/transport"
)

// Container holds all dependencies for the application.
//
// Two transport clients share the backend: AuthClient talks to /auth/* directly, while
// APIClient routes through the session's retry interceptor. The refresh call must never
// pass through the interceptor it serves.
type Container struct {
	// Databases
	ClientDataDB *database.DB // Persisted session tokens

	// Repositories
	CredentialsRepo *clientdata.Repository

	// Clients
	AuthClient *transport.Client
	APIClient  *transport.Client

	// Services
	EventBus  *events.Bus
	Session   *session.Manager
	Cache     *cache.Store
	Coalescer *batch.Coalescer // nil when coalescing is disabled
	Data      *dataaccess.Facade

	// Background
	Scheduler  *scheduler.Scheduler
	Visibility *scheduler.Visibility

	subscriptions []events.Subscription
}

// JobInstances holds the scheduled jobs for manual triggering
type JobInstances struct {
	SessionLiveness scheduler.Job
	UIRefresh       scheduler.Job
	CacheSweep      scheduler.Job
}
