package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/sentinel-dashboard/internal/domain"
)

type fakeSession struct {
	authenticated bool
	err           error
	calls         int
}

func (f *fakeSession) Authenticated() bool { return f.authenticated }

func (f *fakeSession) EnsureValidToken(ctx context.Context) (string, error) {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return "", errors.New("expected a deadline")
	}
	return "token", f.err
}

type fakeRefresher struct {
	calls int
	err   error
}

func (f *fakeRefresher) RefreshVolatile(ctx context.Context) error {
	f.calls++
	return f.err
}

func TestSessionLivenessJob(t *testing.T) {
	tests := []struct {
		name          string
		authenticated bool
		err           error
		wantCalls     int
		wantErr       bool
	}{
		{name: "no session", authenticated: false, wantCalls: 0},
		{name: "token kept fresh", authenticated: true, wantCalls: 1},
		{name: "session ended", authenticated: true, err: fmt.Errorf("%w: rejected", domain.ErrAuthIrrecoverable), wantCalls: 1},
		{name: "network failure", authenticated: true, err: &domain.TransportError{Op: "POST", Path: "/auth/refresh", Err: errors.New("refused")}, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &fakeSession{authenticated: tt.authenticated, err: tt.err}
			job := NewSessionLivenessJob(session, time.Second, zerolog.Nop())

			err := job.Run()

			assert.Equal(t, "session_liveness", job.Name())
			assert.Equal(t, tt.wantCalls, session.calls)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUIRefreshJob_SkipsWhileHidden(t *testing.T) {
	data := &fakeRefresher{}
	visibility := NewVisibility()
	job := NewUIRefreshJob(data, visibility, time.Second, zerolog.Nop())

	assert.NoError(t, job.Run())
	assert.Equal(t, 1, data.calls)

	visibility.Set(false)
	assert.NoError(t, job.Run())
	assert.Equal(t, 1, data.calls)

	visibility.Set(true)
	assert.NoError(t, job.Run())
	assert.Equal(t, 2, data.calls)
}

func TestUIRefreshJob_ReportsFailure(t *testing.T) {
	data := &fakeRefresher{err: errors.New("dashboard refresh incomplete")}
	job := NewUIRefreshJob(data, nil, 0, zerolog.Nop())

	err := job.Run()

	assert.ErrorContains(t, err, "dashboard refresh incomplete")
	assert.Equal(t, "ui_refresh", job.Name())
}

func TestVisibility(t *testing.T) {
	v := NewVisibility()
	assert.True(t, v.Visible())

	assert.False(t, v.Set(true), "no change")
	before := v.ChangedAt()

	time.Sleep(time.Millisecond)
	assert.True(t, v.Set(false))
	assert.False(t, v.Visible())
	assert.True(t, v.ChangedAt().After(before))
}
