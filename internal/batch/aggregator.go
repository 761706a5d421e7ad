// Package batch folds many logical API calls into one POST /batch round-trip and
// demultiplexes the reply, falling back to individual calls when the aggregate fails.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/sentinel-dashboard/internal/domain"
	"github.com/aristath/sentinel-dashboard/internal/events"
	"github.com/aristath/sentinel-dashboard/internal/transport"
	"github.com/aristath/sentinel-dashboard/internal/utils"
)

const (
	// Path of the aggregate endpoint below the API root.
	Path = "/batch"

	// DefaultConcurrency bounds individual fallback calls in flight.
	DefaultConcurrency = 6

	moduleName = "batch"

	// slowBatch is the aggregate round-trip logged as slow.
	slowBatch = 2 * time.Second
)

// Item is one logical sub-request.
type Item struct {
	ID     string      `json:"id"`
	Path   string      `json:"path"`
	Method string      `json:"method"`
	Body   interface{} `json:"body,omitempty"`
}

type batchRequest struct {
	Requests []Item `json:"requests"`
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithConcurrency bounds how many individual calls run at once during fallback.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithEvents publishes BatchFallback events to emitter.
func WithEvents(emitter events.Emitter) Option {
	return func(a *Aggregator) {
		a.events = emitter
	}
}

// Aggregator collects items and executes them together. Add, Clear and Execute may be
// called from different goroutines; Execute works on a snapshot of the pending items.
type Aggregator struct {
	doer        transport.Doer
	tokens      transport.TokenSource
	concurrency int
	events      events.Emitter
	log         zerolog.Logger

	mu    sync.Mutex
	items []Item
}

// New creates an Aggregator. tokens may be nil for unauthenticated use.
func New(doer transport.Doer, tokens transport.TokenSource, log zerolog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		doer:        doer,
		tokens:      tokens,
		concurrency: DefaultConcurrency,
		log:         log.With().Str("component", moduleName).Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Add appends one call. An empty id is replaced at execution time by the next
// sequential req_<n> that no other item in the batch already uses.
// An empty method means GET.
func (a *Aggregator) Add(path, method string, body interface{}, id string) *Aggregator {
	a.mu.Lock()
	defer a.mu.Unlock()

	if method == "" {
		method = http.MethodGet
	}
	a.items = append(a.items, Item{ID: id, Path: path, Method: method, Body: body})
	return a
}

// AddItem appends a prepared item.
func (a *Aggregator) AddItem(item Item) *Aggregator {
	return a.Add(item.Path, item.Method, item.Body, item.ID)
}

// Len returns the number of pending items.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

// Clear empties the pending list for reuse.
func (a *Aggregator) Clear() *Aggregator {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = nil
	return a
}

func (a *Aggregator) snapshot() []Item {
	a.mu.Lock()
	defer a.mu.Unlock()
	items := make([]Item, len(a.items))
	copy(items, a.items)

	taken := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.ID != "" {
			taken[item.ID] = struct{}{}
		}
	}
	seq := 0
	for i := range items {
		if items[i].ID != "" {
			continue
		}
		for {
			id := "req_" + strconv.Itoa(seq)
			seq++
			if _, used := taken[id]; !used {
				items[i].ID = id
				taken[id] = struct{}{}
				break
			}
		}
	}
	return items
}

// Execute dispatches the pending items. The result always holds exactly the submitted
// ids. headers, if nil, are built from the token source. The only error is a
// *domain.ValidationError for duplicate ids.
func (a *Aggregator) Execute(ctx context.Context, headers http.Header) (Results, error) {
	items := a.snapshot()

	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item.ID]; dup {
			return nil, domain.NewValidationError("id", fmt.Sprintf("duplicate batch id %q", item.ID))
		}
		seen[item.ID] = struct{}{}
	}

	switch len(items) {
	case 0:
		return Results{}, nil
	case 1:
		if headers == nil {
			headers = transport.BearerHeader(ctx, a.tokens)
		}
		return Results{items[0].ID: a.call(ctx, items[0], headers)}, nil
	}

	if headers == nil {
		headers = transport.BearerHeader(ctx, a.tokens)
	}

	results, err := a.aggregate(ctx, items, headers)
	if err != nil {
		a.log.Warn().
			Err(err).
			Int("items", len(items)).
			Msg("Aggregate request failed, falling back to individual calls")
		a.emitFallback(len(items), err)
		return a.executeIndividually(ctx, items, headers), nil
	}

	var missing []Item
	for _, item := range items {
		if _, ok := results[item.ID]; !ok {
			missing = append(missing, item)
		}
	}
	if len(missing) > 0 {
		a.log.Warn().
			Int("missing", len(missing)).
			Int("items", len(items)).
			Msg("Aggregate response incomplete, fetching missing ids individually")
		a.emitFallback(len(missing), fmt.Errorf("%w: %d ids missing from response", domain.ErrAggregateFailure, len(missing)))
		for id, r := range a.executeIndividually(ctx, missing, headers) {
			results[id] = r
		}
	}

	return results, nil
}

// ExecuteIndividually issues every pending item as its own request.
func (a *Aggregator) ExecuteIndividually(ctx context.Context, headers http.Header) Results {
	if headers == nil {
		headers = transport.BearerHeader(ctx, a.tokens)
	}
	return a.executeIndividually(ctx, a.snapshot(), headers)
}

// aggregate performs POST /batch and keeps only well-formed entries for submitted ids.
func (a *Aggregator) aggregate(ctx context.Context, items []Item, headers http.Header) (Results, error) {
	defer utils.OperationTimer("batch", slowBatch, a.log.With().Int("items", len(items)).Logger())()

	resp, err := a.doer.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   Path,
		Body:   batchRequest{Requests: items},
		Header: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAggregateFailure, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", domain.ErrAggregateFailure, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: empty response", domain.ErrAggregateFailure)
	}

	results := make(Results, len(items))
	for _, item := range items {
		entry, ok := raw[item.ID]
		if !ok {
			continue
		}
		var r Result
		if err := json.Unmarshal(entry, &r); err != nil {
			a.log.Debug().Err(err).Str("id", item.ID).Msg("Dropping malformed batch entry")
			continue
		}
		results[item.ID] = r
	}
	return results, nil
}

func (a *Aggregator) executeIndividually(ctx context.Context, items []Item, headers http.Header) Results {
	out := make([]Result, len(items))

	// Failures are captured per item, so the group never cancels its siblings.
	g := new(errgroup.Group)
	g.SetLimit(a.concurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			out[i] = a.call(ctx, item, headers)
			return nil
		})
	}
	_ = g.Wait()

	results := make(Results, len(items))
	for i, item := range items {
		results[item.ID] = out[i]
	}
	return results
}

// call issues one item directly against its own path.
func (a *Aggregator) call(ctx context.Context, item Item, headers http.Header) Result {
	resp, err := a.doer.Do(ctx, transport.Request{
		Method: item.Method,
		Path:   item.Path,
		Body:   item.Body,
		Header: headers.Clone(),
	})
	if err != nil {
		return failureFrom(err)
	}
	data := resp.Body
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return Success(data)
}

func (a *Aggregator) emitFallback(items int, err error) {
	if a.events == nil {
		return
	}
	a.events.Emit(events.BatchFallback, moduleName, &events.BatchFallbackData{Items: items, Error: err.Error()})
}

// IDs returns the sorted ids of r.
func (r Results) IDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
