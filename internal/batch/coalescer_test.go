package batch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel-dashboard/internal/transport"
)

func TestCoalescer_FansInAndOut(t *testing.T) {
	doer := &stubDoer{handler: echoBatch}
	c := NewCoalescer(CoalescerConfig{Doer: doer, Window: 50 * time.Millisecond, Log: zerolog.Nop()})
	defer c.Close()

	const n = 5
	var wg sync.WaitGroup
	results := make([]Result, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := c.Submit(context.Background(), fmt.Sprintf("/stocks/T%d", i), http.MethodGet, nil)
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	assert.Equal(t, []string{"POST /batch"}, doer.paths())
	assert.Equal(t, 1, c.Flushes())
	for i, r := range results {
		assert.JSONEq(t, fmt.Sprintf(`{"path":"/stocks/T%d"}`, i), string(r.Data))
	}
}

func TestCoalescer_SingleSubmissionGoesDirect(t *testing.T) {
	doer := &stubDoer{handler: echoBatch}
	c := NewCoalescer(CoalescerConfig{Doer: doer, Window: time.Millisecond, Log: zerolog.Nop()})
	defer c.Close()

	r, err := c.Submit(context.Background(), "/stocks", http.MethodGet, nil)
	require.NoError(t, err)
	assert.True(t, r.OK())
	assert.Equal(t, []string{"GET /stocks"}, doer.paths())
}

func TestCoalescer_FlushesAtMaxSize(t *testing.T) {
	doer := &stubDoer{handler: echoBatch}
	// A window long enough that only the size trigger can flush.
	c := NewCoalescer(CoalescerConfig{Doer: doer, Window: time.Hour, MaxSize: 3, Log: zerolog.Nop()})
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Submit(context.Background(), fmt.Sprintf("/p%d", i), "", nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, c.Flushes())
}

func TestCoalescer_SubmitHonoursContext(t *testing.T) {
	release := make(chan struct{})
	doer := &stubDoer{handler: func(req transport.Request) (*transport.Response, error) {
		<-release
		return jsonResponse(true), nil
	}}
	c := NewCoalescer(CoalescerConfig{Doer: doer, Window: time.Millisecond, Log: zerolog.Nop()})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Submit(ctx, "/slow", "", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	c.Close()
}

func TestCoalescer_ClosedRejectsAndFailsQueued(t *testing.T) {
	doer := &stubDoer{handler: echoBatch}
	c := NewCoalescer(CoalescerConfig{Doer: doer, Window: time.Hour, Log: zerolog.Nop()})

	done := make(chan Result, 1)
	go func() {
		r, _ := c.Submit(context.Background(), "/queued", "", nil)
		done <- r
	}()

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.queue) == 1
	}, time.Second, time.Millisecond)

	c.Close()

	r := <-done
	assert.False(t, r.OK())
	assert.Equal(t, ErrCoalescerClosed.Error(), r.Error)

	_, err := c.Submit(context.Background(), "/late", "", nil)
	assert.ErrorIs(t, err, ErrCoalescerClosed)
	assert.Empty(t, doer.paths())
}
