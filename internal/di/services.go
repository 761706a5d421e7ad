package di

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel-dashboard/internal/batch"
	"github.com/aristath/sentinel-dashboard/internal/cache"
	"github.com/aristath/sentinel-dashboard/internal/clientdata"
	"github.com/aristath/sentinel-dashboard/internal/config"
	"github.com/aristath/sentinel-dashboard/internal/dataaccess"
	"github.com/aristath/sentinel-dashboard/internal/events"
	"github.com/aristath/sentinel-dashboard/internal/session"
	"github.com/aristath/sentinel-dashboard/internal/transport"
)

// InitializeRepositories creates repositories for all databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.ClientDataDB == nil {
		return fmt.Errorf("container databases not initialized")
	}

	container.CredentialsRepo = clientdata.NewRepository(container.ClientDataDB.Conn())
	log.Debug().Msg("Repositories initialized")
	return nil
}

// InitializeServices creates the session, transport, cache and facade layers
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.CredentialsRepo == nil {
		return fmt.Errorf("container repositories not initialized")
	}

	container.EventBus = events.NewBus(log)

	// Auth client: no interceptor, a 401 on /auth/refresh is final.
	container.AuthClient = transport.NewClient(cfg.APIURL, &http.Client{Timeout: cfg.HTTPTimeout}, log)

	container.Session = session.NewManager(session.Config{
		Client:  container.AuthClient,
		Storage: container.CredentialsRepo,
		Buffer:  cfg.AuthRefreshBuffer,
		Events:  container.EventBus,
		Log:     log,
	})
	if err := container.Session.Restore(); err != nil {
		// Start unauthenticated rather than refusing to boot.
		log.Warn().Err(err).Msg("Failed to restore persisted session")
	}

	container.APIClient = transport.NewClient(cfg.APIURL, &http.Client{
		Timeout:   cfg.HTTPTimeout,
		Transport: container.Session.InstallRetryInterceptor(http.DefaultTransport, cfg.APIURL),
	}, log)

	container.Cache = cache.NewStore()

	if cfg.BatchWindow > 0 {
		container.Coalescer = batch.NewCoalescer(batch.CoalescerConfig{
			Doer:    container.APIClient,
			Tokens:  container.Session,
			Window:  cfg.BatchWindow,
			MaxSize: cfg.BatchMaxSize,
			Events:  container.EventBus,
			Log:     log,
		})
	}

	container.Data = dataaccess.New(dataaccess.Config{
		Client:    container.APIClient,
		Cache:     container.Cache,
		Session:   container.Session,
		Coalescer: container.Coalescer,
		Events:    container.EventBus,
		Log:       log,
	})

	// A forced logout must not leave the previous user's data readable.
	sub := container.EventBus.Subscribe(events.SessionExpired, func(event *events.Event) {
		container.Data.ForgetUserData("session expired")
	})
	container.subscriptions = append(container.subscriptions, sub)

	log.Info().
		Str("api_url", cfg.APIURL).
		Bool("authenticated", container.Session.Authenticated()).
		Bool("coalescing", container.Coalescer != nil).
		Msg("Services initialized")
	return nil
}
