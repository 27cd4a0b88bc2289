package store

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

// MigrateEnv supplies the non-deterministic inputs of [Migrate].
type MigrateEnv struct {
	Now   func() time.Time
	NewID func() string
}

func (e MigrateEnv) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}

	return e.Now()
}

func (e MigrateEnv) newID() string {
	if e.NewID == nil {
		return NewID()
	}

	return e.NewID()
}

// MigrateReport describes what [Migrate] had to do.
type MigrateReport struct {
	// FromVersion is the version found in the stored value (1 when absent).
	FromVersion int
	// Discarded is set when the stored value was not a JSON object and was
	// replaced with an empty state.
	Discarded bool
	// Dropped counts records that were not objects.
	Dropped int
	// Repaired counts records that needed at least one field filled in.
	Repaired int
}

// Upgraded reports whether the stored schema was older than [CurrentVersion].
func (r MigrateReport) Upgraded() bool {
	return r.FromVersion < CurrentVersion
}

// Migrate parses a stored state and repairs it into the current shape.
//
// It never fails: unparseable input yields [Empty]. Each record is repaired
// independently; records that are not objects are dropped. Running Migrate on
// its own serialized output returns the same state.
func Migrate(raw []byte, env MigrateEnv) (State, MigrateReport) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any

	err := dec.Decode(&doc)
	if err != nil {
		return Empty(), MigrateReport{FromVersion: 1, Discarded: true}
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return Empty(), MigrateReport{FromVersion: 1, Discarded: true}
	}

	report := MigrateReport{FromVersion: storedVersion(obj["version"])}

	items, _ := obj["prompts"].([]any)
	out := Empty()
	seen := make(map[string]bool, len(items))

	for _, item := range items {
		rec, repaired, ok := repairRecord(item, seen, env)
		if !ok {
			report.Dropped++

			continue
		}

		if repaired {
			report.Repaired++
		}

		seen[rec.ID] = true
		out.Prompts = append(out.Prompts, rec)
	}

	return out, report
}

func storedVersion(v any) int {
	n, ok := number(v)
	if !ok || n < 1 {
		return 1
	}

	return int(n)
}

func repairRecord(item any, seen map[string]bool, env MigrateEnv) (Record, bool, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		return Record{}, false, false
	}

	repaired := false
	rec := Record{Tags: []string{}}

	if id, ok := obj["id"].(string); ok && id != "" && !seen[id] {
		rec.ID = id
	} else {
		rec.ID = env.newID()
		repaired = true
	}

	if title, ok := obj["title"].(string); ok && title != "" {
		rec.Title = title
	} else {
		rec.Title = "Untitled"
		repaired = true
	}

	if content, ok := obj["content"].(string); ok {
		rec.Content = content
	} else {
		repaired = true
	}

	if tags, ok := obj["tags"].([]any); ok {
		for _, tag := range tags {
			if s, ok := tag.(string); ok {
				rec.Tags = append(rec.Tags, s)
			} else {
				repaired = true
			}
		}
	} else {
		repaired = true
	}

	nowMs := env.now().UnixMilli()

	if created, ok := number(obj["createdAt"]); ok {
		rec.CreatedAt = created
	} else {
		rec.CreatedAt = nowMs
		repaired = true
	}

	if updated, ok := number(obj["updatedAt"]); ok {
		rec.UpdatedAt = updated
	} else {
		rec.UpdatedAt = nowMs
		repaired = true
	}

	if rec.UpdatedAt < rec.CreatedAt {
		rec.UpdatedAt = rec.CreatedAt
		repaired = true
	}

	return rec, repaired, true
}

// number converts a decoded JSON number to int64, truncating fractions.
func number(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}

		f, err := n.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}

		return int64(f), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
