package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/calvinalkan/promptkit/internal/kv"
	"github.com/calvinalkan/promptkit/internal/metrics"
	"github.com/calvinalkan/promptkit/internal/prefs"
	"github.com/calvinalkan/promptkit/internal/prompt"
	"github.com/calvinalkan/promptkit/internal/store"
	"github.com/calvinalkan/promptkit/internal/transfer"
)

// Merger restores snapshot contents. [*prompt.Engine] implements it.
type Merger interface {
	BatchMerge(ctx context.Context, items []prompt.Draft, mode prompt.MergeMode) (prompt.MergeResult, error)
}

// Manager runs backups for one store.
type Manager struct {
	store     *store.Store
	prefs     *prefs.Manager
	artifacts Artifacts
	merger    Merger
	now       func() time.Time
	newID     func() string
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

// Option configures a [Manager].
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDs overrides the backup id generator.
func WithIDs(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log.With().Str("component", "backup").Logger() }
}

// WithMetrics enables backup metrics.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// NewManager returns a backup manager. The ring and preferences share the
// store's KV namespace.
func NewManager(st *store.Store, p *prefs.Manager, artifacts Artifacts, merger Merger, opts ...Option) *Manager {
	m := &Manager{
		store:     st,
		prefs:     p,
		artifacts: artifacts,
		merger:    merger,
		now:       time.Now,
		newID:     store.NewID,
		log:       zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// MaybeBackup takes an auto-backup when it is enabled and the change
// counter reached the threshold. It returns nil, nil when nothing was due.
//
// A due backup writes the artifact first. Only when that succeeds is the
// snapshot pushed onto the ring and the counter reset, so a failed
// artifact write is retried after the next change.
func (m *Manager) MaybeBackup(ctx context.Context) (*Backup, error) {
	p, err := m.prefs.Get(ctx)
	if err != nil {
		return nil, err
	}

	if !p.Due() {
		return nil, nil
	}

	b, path, err := m.take(ctx, transfer.AutoBackupFilename, true)
	if err != nil {
		return nil, fmt.Errorf("auto-backup: %w", err)
	}

	m.metrics.RecordBackup(metrics.TriggerAuto)
	m.log.Info().
		Str("id", b.ID).
		Str("path", path).
		Int("changes", p.ChangeCounter).
		Msg("auto-backup written")

	return &b, nil
}

// SaveLocal pushes a snapshot onto the ring and resets the change counter.
// No artifact is written.
func (m *Manager) SaveLocal(ctx context.Context) (Backup, error) {
	b, _, err := m.take(ctx, nil, true)
	if err != nil {
		return Backup{}, fmt.Errorf("save backup: %w", err)
	}

	m.metrics.RecordBackup(metrics.TriggerManual)
	m.log.Debug().Str("id", b.ID).Msg("backup saved to ring")

	return b, nil
}

// Download writes a backup artifact and returns its location. The ring and
// the change counter are left alone.
func (m *Manager) Download(ctx context.Context) (string, error) {
	_, path, err := m.take(ctx, transfer.BackupFilename, false)
	if err != nil {
		return "", fmt.Errorf("download backup: %w", err)
	}

	m.metrics.RecordBackup(metrics.TriggerDownload)

	return path, nil
}

// List returns the ring, newest first.
func (m *Manager) List(ctx context.Context) ([]Backup, error) {
	raw, err := kv.Get(ctx, m.store.DB(), Key)
	if errors.Is(err, kv.ErrNotFound) {
		return []Backup{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("load backups: %w", err)
	}

	return decodeRing(raw), nil
}

// Get returns the backup with id from the ring.
func (m *Manager) Get(ctx context.Context, id string) (Backup, error) {
	ring, err := m.List(ctx)
	if err != nil {
		return Backup{}, err
	}

	for _, b := range ring {
		if b.ID == id {
			return b, nil
		}
	}

	return Backup{}, fmt.Errorf("%w: %s", ErrBackupNotFound, id)
}

// Restore merges the prompts of backup id back into the collection.
// Entries in the snapshot that no longer validate are skipped and reported.
func (m *Manager) Restore(ctx context.Context, id string, mode prompt.MergeMode) (prompt.MergeResult, error) {
	b, err := m.Get(ctx, id)
	if err != nil {
		return prompt.MergeResult{}, err
	}

	var shape struct {
		Prompts json.RawMessage `json:"prompts"`
	}

	err = json.Unmarshal(b.Data, &shape)
	if err != nil || len(shape.Prompts) == 0 || shape.Prompts[0] != '[' {
		return prompt.MergeResult{}, fmt.Errorf("%w: %s", ErrInvalidBackup, id)
	}

	parsed, err := transfer.Parse(b.Data)
	if err != nil {
		return prompt.MergeResult{}, fmt.Errorf("%w: %w", ErrInvalidBackup, err)
	}

	res, err := m.merger.BatchMerge(ctx, parsed.Items, mode)
	if err != nil {
		return prompt.MergeResult{}, err
	}

	res.Skipped += parsed.Total - parsed.Valid
	res.Errors = append(parsed.Errors, res.Errors...)

	m.log.Info().
		Str("id", id).
		Str("mode", string(mode)).
		Int("created", res.Created).
		Msg("backup restored")

	return res, nil
}

// take snapshots the current state. With name set it writes an artifact
// first; with ring set it then pushes the snapshot and resets the change
// counter in one transaction.
func (m *Manager) take(ctx context.Context, name func(time.Time) string, ring bool) (Backup, string, error) {
	st, err := m.store.Load(ctx)
	if err != nil {
		return Backup{}, "", err
	}

	now := m.now()

	b, err := Snapshot(st, now, m.newID())
	if err != nil {
		return Backup{}, "", err
	}

	var path string

	if name != nil {
		data, err := transfer.ExportJSON(st, now, transfer.ByBackup)
		if err != nil {
			return Backup{}, "", err
		}

		path, err = m.artifacts.Write(ctx, name(now), data)
		if err != nil {
			return Backup{}, "", err
		}
	}

	if !ring {
		return b, path, nil
	}

	err = m.store.DB().Update(ctx, func(tx kv.Tx) error {
		current := []Backup{}

		raw, err := tx.Get(ctx, Key)
		switch {
		case err == nil:
			current = decodeRing(raw)
		case !errors.Is(err, kv.ErrNotFound):
			return err
		}

		data, err := json.Marshal(push(current, b))
		if err != nil {
			return err
		}

		err = tx.Put(ctx, Key, data)
		if err != nil {
			return err
		}

		p, err := prefs.Read(ctx, tx)
		if err != nil {
			return err
		}

		p.ChangeCounter = 0

		return prefs.Write(ctx, tx, p)
	})
	if err != nil {
		return Backup{}, "", fmt.Errorf("%w: %w", store.ErrPersist, err)
	}

	return b, path, nil
}
