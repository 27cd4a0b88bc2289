package template

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/calvinalkan/promptkit/internal/kv"
)

// VarsPrefix prefixes the KV key of each record's variable cache.
const VarsPrefix = "vars/"

// Vars remembers the last values used to fill each record's placeholders.
//
// Entries are keyed by record id and are not removed when the record is
// deleted; [Vars.Forget] is the explicit cleanup.
type Vars struct {
	db kv.DB
}

// NewVars returns a cache stored in db.
func NewVars(db kv.DB) *Vars {
	return &Vars{db: db}
}

func varsKey(id string) string {
	return VarsPrefix + id
}

// Load returns the cached values for id. Unknown ids and damaged entries
// yield an empty map.
func (v *Vars) Load(ctx context.Context, id string) (map[string]string, error) {
	raw, err := kv.Get(ctx, v.db, varsKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return map[string]string{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("load variables for %s: %w", id, err)
	}

	return decodeVars(raw), nil
}

// Remember merges values into the cache for id. Auto-values and empty
// values are never stored.
func (v *Vars) Remember(ctx context.Context, id string, values map[string]string) error {
	err := v.db.Update(ctx, func(tx kv.Tx) error {
		cached := map[string]string{}

		raw, err := tx.Get(ctx, varsKey(id))
		switch {
		case err == nil:
			cached = decodeVars(raw)
		case !errors.Is(err, kv.ErrNotFound):
			return err
		}

		changed := false

		for name, value := range values {
			name = strings.TrimSpace(name)
			if name == "" || value == "" || IsAuto(name) || cached[name] == value {
				continue
			}

			cached[name] = value
			changed = true
		}

		if !changed {
			return nil
		}

		data, err := json.Marshal(cached)
		if err != nil {
			return err
		}

		return tx.Put(ctx, varsKey(id), data)
	})
	if err != nil {
		return fmt.Errorf("remember variables for %s: %w", id, err)
	}

	return nil
}

// Forget drops the cache for id.
func (v *Vars) Forget(ctx context.Context, id string) error {
	err := v.db.Update(ctx, func(tx kv.Tx) error {
		return tx.Delete(ctx, varsKey(id))
	})
	if err != nil {
		return fmt.Errorf("forget variables for %s: %w", id, err)
	}

	return nil
}

// Cached returns the ids that currently have a cache entry.
func (v *Vars) Cached(ctx context.Context) ([]string, error) {
	var ids []string

	err := v.db.View(ctx, func(tx kv.Tx) error {
		keys, err := tx.Keys(ctx, VarsPrefix)
		if err != nil {
			return err
		}

		for _, k := range keys {
			ids = append(ids, strings.TrimPrefix(k, VarsPrefix))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list variable caches: %w", err)
	}

	return ids, nil
}

// Effective returns the cached values for id overlaid with the auto-values
// for now. Auto-values always win.
func (v *Vars) Effective(ctx context.Context, id string, now time.Time) (map[string]string, error) {
	values, err := v.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	maps.Copy(values, AutoValues(now))

	return values, nil
}

func decodeVars(raw []byte) map[string]string {
	out := map[string]string{}
	if json.Unmarshal(raw, &out) != nil {
		return map[string]string{}
	}

	for name := range out {
		if IsAuto(name) {
			delete(out, name)
		}
	}

	return out
}
