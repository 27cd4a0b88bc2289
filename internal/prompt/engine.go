// Package prompt implements the record engine: validated create, update and
// delete of prompts, deduplicating batch merge, and the pure query helpers
// used to list them.
//
// Every mutation runs as a single [store.Store.Update] transaction. After a
// successful mutation the engine bumps the preferences change counter and
// calls the after-change hook, which is how auto-backups get triggered.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/calvinalkan/promptkit/internal/metrics"
	"github.com/calvinalkan/promptkit/internal/prefs"
	"github.com/calvinalkan/promptkit/internal/store"
)

// AfterChangeFunc runs after every successful mutation.
// Its error is logged and never fails the mutation.
type AfterChangeFunc func(ctx context.Context) error

// Engine performs record operations against a [store.Store].
type Engine struct {
	mu sync.Mutex

	store   *store.Store
	prefs   *prefs.Manager
	now     func() time.Time
	newID   func() string
	after   AfterChangeFunc
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// Option configures an [Engine].
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDs overrides the id generator.
func WithIDs(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithAfterChange sets the hook run after each successful mutation.
func WithAfterChange(fn AfterChangeFunc) Option {
	return func(e *Engine) { e.after = fn }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log.With().Str("component", "engine").Logger() }
}

// WithMetrics enables operation metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine returns an engine over st. p may be nil, in which case no
// change counting happens.
func NewEngine(st *store.Store, p *prefs.Manager, opts ...Option) *Engine {
	e := &Engine{
		store: st,
		prefs: p,
		now:   time.Now,
		newID: store.NewID,
		log:   zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Store returns the underlying store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Create validates d and appends it as a new record.
func (e *Engine) Create(ctx context.Context, d Draft) (store.Record, error) {
	start := time.Now()

	problems := Validate(d)
	if len(problems) > 0 {
		err := validationErr(problems)
		e.metrics.RecordOperation("create", start, err)

		return store.Record{}, err
	}

	var (
		rec   store.Record
		count int
	)

	e.mu.Lock()
	err := e.store.Update(ctx, func(st *store.State) error {
		ts := e.now().UnixMilli()
		rec = store.Record{
			ID:        e.newID(),
			Title:     strings.TrimSpace(d.Title),
			Content:   d.Content,
			Tags:      NormalizeTags(d.Tags),
			CreatedAt: ts,
			UpdatedAt: ts,
		}
		st.Prompts = append(st.Prompts, rec)
		count = len(st.Prompts)

		return nil
	})
	e.mu.Unlock()

	e.metrics.RecordOperation("create", start, err)

	if err != nil {
		return store.Record{}, err
	}

	e.log.Debug().Str("id", rec.ID).Str("title", rec.Title).Msg("created prompt")
	e.changed(ctx, count)

	return rec.Clone(), nil
}

// Update applies p to the record with id. UpdatedAt always moves forward,
// even when p is empty; id and CreatedAt never change.
func (e *Engine) Update(ctx context.Context, id string, p Patch) (store.Record, error) {
	start := time.Now()

	problems := ValidatePatch(p)
	if len(problems) > 0 {
		err := validationErr(problems)
		e.metrics.RecordOperation("update", start, err)

		return store.Record{}, err
	}

	var (
		rec   store.Record
		count int
	)

	e.mu.Lock()
	err := e.store.Update(ctx, func(st *store.State) error {
		i := st.Index(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}

		rec = st.Prompts[i]

		if p.Title != nil {
			rec.Title = strings.TrimSpace(*p.Title)
		}

		if p.Content != nil {
			rec.Content = *p.Content
		}

		if p.Tags != nil {
			rec.Tags = NormalizeTags(*p.Tags)
		}

		rec.UpdatedAt = max(e.now().UnixMilli(), rec.UpdatedAt+1)
		st.Prompts[i] = rec
		count = len(st.Prompts)

		return nil
	})
	e.mu.Unlock()

	e.metrics.RecordOperation("update", start, err)

	if err != nil {
		return store.Record{}, err
	}

	e.log.Debug().Str("id", rec.ID).Msg("updated prompt")
	e.changed(ctx, count)

	return rec.Clone(), nil
}

// Delete removes the record with id.
func (e *Engine) Delete(ctx context.Context, id string) error {
	start := time.Now()

	var count int

	e.mu.Lock()
	err := e.store.Update(ctx, func(st *store.State) error {
		i := st.Index(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}

		st.Prompts = append(st.Prompts[:i], st.Prompts[i+1:]...)
		count = len(st.Prompts)

		return nil
	})
	e.mu.Unlock()

	e.metrics.RecordOperation("delete", start, err)

	if err != nil {
		return err
	}

	e.log.Debug().Str("id", id).Msg("deleted prompt")
	e.changed(ctx, count)

	return nil
}

// Get returns the record with id.
func (e *Engine) Get(ctx context.Context, id string) (store.Record, error) {
	st, err := e.store.Load(ctx)
	if err != nil {
		return store.Record{}, err
	}

	i := st.Index(id)
	if i < 0 {
		return store.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return st.Prompts[i], nil
}

// List returns all records in insertion order.
func (e *Engine) List(ctx context.Context) ([]store.Record, error) {
	st, err := e.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	e.metrics.SetRecords(len(st.Prompts))

	return st.Prompts, nil
}

// Tags returns the distinct tags in use, sorted.
func (e *Engine) Tags(ctx context.Context) ([]string, error) {
	records, err := e.List(ctx)
	if err != nil {
		return nil, err
	}

	return CollectTags(records), nil
}

// changed runs the post-mutation bookkeeping. Failures are logged only:
// the mutation itself is already committed.
func (e *Engine) changed(ctx context.Context, count int) {
	e.metrics.SetRecords(count)

	if e.prefs != nil {
		_, err := e.prefs.IncrementChanges(ctx)
		if err != nil {
			e.log.Warn().Err(err).Msg("failed to count change")
		}
	}

	if e.after == nil {
		return
	}

	err := e.after(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		e.log.Warn().Err(err).Msg("after-change hook failed")
	}
}
