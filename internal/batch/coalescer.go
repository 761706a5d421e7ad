package batch

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel-dashboard/internal/events"
	"github.com/aristath/sentinel-dashboard/internal/transport"
)

const (
	// DefaultWindow is how long the first submission of a tick waits for company.
	DefaultWindow = 10 * time.Millisecond
	// DefaultMaxSize flushes a tick early once this many items are pending.
	DefaultMaxSize = 25
)

// ErrCoalescerClosed is returned by Submit after Close.
var ErrCoalescerClosed = errors.New("coalescer closed")

// CoalescerConfig configures a Coalescer.
type CoalescerConfig struct {
	Doer    transport.Doer
	Tokens  transport.TokenSource
	Window  time.Duration
	MaxSize int
	Events  events.Emitter
	Log     zerolog.Logger
}

type pending struct {
	item Item
	done chan Result
}

// Coalescer gathers sub-requests submitted by concurrent goroutines within one tick and
// dispatches them through a single Aggregator. Each submitter gets its own Result.
type Coalescer struct {
	cfg CoalescerConfig
	log zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	queue   []pending
	timer   *time.Timer
	seq     uint64
	closed  bool
	flushes int
}

// NewCoalescer creates a running Coalescer.
func NewCoalescer(cfg CoalescerConfig) *Coalescer {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coalescer{
		cfg:    cfg,
		log:    cfg.Log.With().Str("component", "batch_coalescer").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit queues one call and blocks until its result arrives or ctx is done.
func (c *Coalescer) Submit(ctx context.Context, path, method string, body interface{}) (Result, error) {
	done := make(chan Result, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Result{}, ErrCoalescerClosed
	}
	c.seq++
	c.queue = append(c.queue, pending{
		item: Item{ID: "c_" + strconv.FormatUint(c.seq, 10), Path: path, Method: method, Body: body},
		done: done,
	})

	var batch []pending
	switch {
	case len(c.queue) >= c.cfg.MaxSize:
		batch = c.takeLocked()
		c.wg.Add(1)
	case len(c.queue) == 1:
		c.timer = time.AfterFunc(c.cfg.Window, c.flush)
	}
	c.mu.Unlock()

	if batch != nil {
		c.dispatch(batch)
	}

	select {
	case r := <-done:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Flushes returns how many batches have been dispatched.
func (c *Coalescer) Flushes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushes
}

// Close stops accepting work, cancels in-flight dispatches and fails queued items.
func (c *Coalescer) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	queued := c.takeLocked()
	c.mu.Unlock()

	c.cancel()
	for _, p := range queued {
		p.done <- Failure(0, ErrCoalescerClosed.Error())
	}
	c.wg.Wait()
}

func (c *Coalescer) flush() {
	c.mu.Lock()
	batch := c.takeLocked()
	if batch != nil {
		c.wg.Add(1)
	}
	c.mu.Unlock()

	if batch != nil {
		c.dispatch(batch)
	}
}

// takeLocked empties the queue. Caller holds mu.
func (c *Coalescer) takeLocked() []pending {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if len(c.queue) == 0 {
		return nil
	}
	batch := c.queue
	c.queue = nil
	c.flushes++
	return batch
}

// dispatch runs batch in the background. Caller has already done wg.Add(1) under mu
// so Close cannot miss it.
func (c *Coalescer) dispatch(batch []pending) {
	go func() {
		defer c.wg.Done()

		agg := New(c.cfg.Doer, c.cfg.Tokens, c.cfg.Log, WithEvents(c.cfg.Events))
		for _, p := range batch {
			agg.AddItem(p.item)
		}

		results, err := agg.Execute(c.ctx, nil)
		for _, p := range batch {
			if err != nil {
				p.done <- Failure(0, err.Error())
				continue
			}
			p.done <- results[p.item.ID]
		}

		c.log.Debug().Int("items", len(batch)).Msg("Dispatched coalesced batch")
	}()
}
