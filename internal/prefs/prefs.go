// Package prefs persists the small set of user preferences that drive
// auto-backup: whether it is enabled, after how many changes it fires, and
// how many changes happened since the last backup.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/calvinalkan/promptkit/internal/kv"
)

// Key is the KV key holding the serialized [Preferences].
const Key = "preferences"

// DefaultThreshold is the number of changes after which an auto-backup fires.
const DefaultThreshold = 10

// ErrInvalidThreshold is returned when a threshold below 1 is set.
var ErrInvalidThreshold = errors.New("auto-backup threshold must be a positive integer")

// Preferences are created with [Defaults] on first access.
type Preferences struct {
	AutoBackupEnabled   bool `json:"autoBackupEnabled"`
	AutoBackupThreshold int  `json:"autoBackupThreshold"`
	ChangeCounter       int  `json:"changeCounter"`
}

// Defaults returns the preferences used when nothing is stored.
func Defaults() Preferences {
	return Preferences{
		AutoBackupEnabled:   true,
		AutoBackupThreshold: DefaultThreshold,
	}
}

// Due reports whether the change counter reached the auto-backup threshold.
func (p Preferences) Due() bool {
	return p.AutoBackupEnabled && p.ChangeCounter >= p.AutoBackupThreshold
}

// Manager reads and writes [Preferences].
type Manager struct {
	db kv.DB
}

// NewManager returns a Manager persisting under [Key] in db.
func NewManager(db kv.DB) *Manager {
	return &Manager{db: db}
}

// Get returns the stored preferences, or [Defaults] if none are stored.
func (m *Manager) Get(ctx context.Context) (Preferences, error) {
	var p Preferences

	err := m.db.View(ctx, func(tx kv.Tx) error {
		var readErr error
		p, readErr = Read(ctx, tx)

		return readErr
	})
	if err != nil {
		return Preferences{}, fmt.Errorf("load preferences: %w", err)
	}

	return p, nil
}

// Update applies fn to the stored preferences and writes them back.
func (m *Manager) Update(ctx context.Context, fn func(p *Preferences) error) (Preferences, error) {
	var out Preferences

	err := m.db.Update(ctx, func(tx kv.Tx) error {
		p, err := Read(ctx, tx)
		if err != nil {
			return err
		}

		err = fn(&p)
		if err != nil {
			return err
		}

		out = p

		return Write(ctx, tx, p)
	})
	if err != nil {
		return Preferences{}, err
	}

	return out, nil
}

// IncrementChanges records one mutating operation.
func (m *Manager) IncrementChanges(ctx context.Context) (Preferences, error) {
	return m.Update(ctx, func(p *Preferences) error {
		p.ChangeCounter++

		return nil
	})
}

// ResetChanges sets the change counter back to zero.
func (m *Manager) ResetChanges(ctx context.Context) error {
	_, err := m.Update(ctx, func(p *Preferences) error {
		p.ChangeCounter = 0

		return nil
	})

	return err
}

// SetAutoBackup changes the auto-backup toggle and threshold.
// A nil argument leaves the current value untouched.
func (m *Manager) SetAutoBackup(ctx context.Context, enabled *bool, threshold *int) (Preferences, error) {
	if threshold != nil && *threshold < 1 {
		return Preferences{}, fmt.Errorf("%w: %d", ErrInvalidThreshold, *threshold)
	}

	return m.Update(ctx, func(p *Preferences) error {
		if enabled != nil {
			p.AutoBackupEnabled = *enabled
		}

		if threshold != nil {
			p.AutoBackupThreshold = *threshold
		}

		return nil
	})
}

// Read loads preferences inside an existing transaction. Missing or damaged
// values fall back to defaults field by field.
func Read(ctx context.Context, tx kv.Tx) (Preferences, error) {
	raw, err := tx.Get(ctx, Key)
	if errors.Is(err, kv.ErrNotFound) {
		return Defaults(), nil
	}

	if err != nil {
		return Preferences{}, err
	}

	p := Defaults()

	if json.Unmarshal(raw, &p) != nil {
		return Defaults(), nil
	}

	if p.AutoBackupThreshold < 1 {
		p.AutoBackupThreshold = DefaultThreshold
	}

	if p.ChangeCounter < 0 {
		p.ChangeCounter = 0
	}

	return p, nil
}

// Write stores p inside an existing transaction.
func Write(ctx context.Context, tx kv.Tx, p Preferences) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	return tx.Put(ctx, Key, data)
}
