package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/calvinalkan/promptkit/internal/kv"
)

var (
	// ErrPersist wraps every failure to write the state back to the KV store.
	// Callers surface it as "save failed"; nothing was committed.
	ErrPersist = errors.New("save failed")

	// ErrNoChange may be returned from an [Store.Update] callback to finish
	// without writing anything. Update then returns nil.
	ErrNoChange = errors.New("no change")
)

// Store provides versioned read/write access to the persisted [State].
type Store struct {
	db  kv.DB
	env MigrateEnv
	log zerolog.Logger
}

// Option configures a [Store].
type Option func(*Store)

// WithClock overrides the time source used when repairing timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.env.Now = now }
}

// WithIDs overrides the id generator used when repairing ids.
func WithIDs(newID func() string) Option {
	return func(s *Store) { s.env.NewID = newID }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log.With().Str("component", "store").Logger() }
}

// New returns a Store persisting under [Key] in db.
func New(db kv.DB, opts ...Option) *Store {
	s := &Store{db: db, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// DB returns the underlying KV store so other components can share transactions.
func (s *Store) DB() kv.DB {
	return s.db
}

// Load returns the current state, migrating older or damaged data.
//
// A missing or unparseable value yields [Empty]. An error is returned only
// if the KV store itself cannot be read.
func (s *Store) Load(ctx context.Context) (State, error) {
	var st State

	err := s.db.View(ctx, func(tx kv.Tx) error {
		var readErr error
		st, readErr = s.Read(ctx, tx)

		return readErr
	})
	if err != nil {
		return State{}, fmt.Errorf("load state: %w", err)
	}

	return st, nil
}

// Read loads the state inside an existing transaction.
func (s *Store) Read(ctx context.Context, tx kv.Tx) (State, error) {
	raw, err := tx.Get(ctx, Key)
	if errors.Is(err, kv.ErrNotFound) {
		return Empty(), nil
	}

	if err != nil {
		return State{}, err
	}

	st, report := Migrate(raw, s.env)

	switch {
	case report.Discarded:
		s.log.Warn().Msg("stored state is not a JSON object, starting empty")
	case report.Upgraded() || report.Dropped > 0 || report.Repaired > 0:
		s.log.Info().
			Int("from_version", report.FromVersion).
			Int("to_version", CurrentVersion).
			Int("dropped", report.Dropped).
			Int("repaired", report.Repaired).
			Msg("migrated stored state")
	}

	return st, nil
}

// Save persists st tagged with [CurrentVersion].
// Failures wrap [ErrPersist]; the previous state stays in place.
func (s *Store) Save(ctx context.Context, st State) error {
	err := s.db.Update(ctx, func(tx kv.Tx) error {
		return s.Write(ctx, tx, st)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	return nil
}

// Write stores st inside an existing transaction.
func (s *Store) Write(ctx context.Context, tx kv.Tx, st State) error {
	st.Version = CurrentVersion
	if st.Prompts == nil {
		st.Prompts = []Record{}
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	return tx.Put(ctx, Key, data)
}

// Update loads the state, applies fn and saves the result in one write
// transaction, so concurrent writers cannot interleave.
//
// Errors returned by fn are passed through unchanged and nothing is written.
// Write or commit failures wrap [ErrPersist].
func (s *Store) Update(ctx context.Context, fn func(st *State) error) error {
	var fnErr error

	err := s.db.Update(ctx, func(tx kv.Tx) error {
		st, err := s.Read(ctx, tx)
		if err != nil {
			return err
		}

		fnErr = fn(&st)
		if fnErr != nil {
			return fnErr
		}

		return s.Write(ctx, tx, st)
	})

	switch {
	case errors.Is(fnErr, ErrNoChange):
		return nil
	case fnErr != nil:
		return fnErr
	case err != nil:
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	return nil
}
