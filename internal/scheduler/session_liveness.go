package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel-dashboard/internal/domain"
)

// TokenKeeper is the part of session.Manager the liveness job drives.
type TokenKeeper interface {
	Authenticated() bool
	EnsureValidToken(ctx context.Context) (string, error)
}

// SessionLivenessJob refreshes the access token ahead of expiry so the session
// survives idle periods without a request to trigger the refresh.
type SessionLivenessJob struct {
	session TokenKeeper
	timeout time.Duration
	log     zerolog.Logger
}

// NewSessionLivenessJob creates the job. timeout bounds one refresh attempt.
func NewSessionLivenessJob(session TokenKeeper, timeout time.Duration, log zerolog.Logger) *SessionLivenessJob {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SessionLivenessJob{
		session: session,
		timeout: timeout,
		log:     log.With().Str("job", "session_liveness").Logger(),
	}
}

// Name returns the job name
func (j *SessionLivenessJob) Name() string {
	return "session_liveness"
}

// Run refreshes the token if it is inside the refresh buffer. Without a session it does nothing.
func (j *SessionLivenessJob) Run() error {
	if !j.session.Authenticated() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.session.EnsureValidToken(ctx); err != nil {
		if errors.Is(err, domain.ErrAuthIrrecoverable) {
			// The manager already cleared the session and announced it.
			j.log.Warn().Err(err).Msg("Session ended during liveness check")
			return nil
		}
		return fmt.Errorf("session liveness check failed: %w", err)
	}
	return nil
}
