// Package store owns the persisted prompt collection.
//
// The whole [State] lives under a single key and every mutation reads,
// modifies and writes it back inside one KV transaction (see [Store.Update]).
// Loading always runs [Migrate], which doubles as the repair path for data
// that was written by an older schema or corrupted by hand.
package store

import (
	"slices"
	"time"
)

// CurrentVersion is the schema version written by [Store.Save].
//
// Version 1 is the original shape without any guarantees about field
// presence. Version 2 guarantees every record is fully populated and has a
// unique id.
const CurrentVersion = 2

// Key is the KV key holding the serialized [State].
const Key = "state"

// Record is a single stored prompt.
//
// Timestamps are unix milliseconds so the persisted and exported JSON shapes
// stay identical.
type Record struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	r.Tags = slices.Clone(r.Tags)
	if r.Tags == nil {
		r.Tags = []string{}
	}

	return r
}

// Created returns CreatedAt as a [time.Time].
func (r Record) Created() time.Time {
	return time.UnixMilli(r.CreatedAt)
}

// Updated returns UpdatedAt as a [time.Time].
func (r Record) Updated() time.Time {
	return time.UnixMilli(r.UpdatedAt)
}

// State is the full persisted collection. Prompts keep insertion order.
type State struct {
	Version int      `json:"version"`
	Prompts []Record `json:"prompts"`
}

// Empty returns a fresh state at the current version.
func Empty() State {
	return State{Version: CurrentVersion, Prompts: []Record{}}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{Version: s.Version, Prompts: make([]Record, 0, len(s.Prompts))}
	for _, rec := range s.Prompts {
		out.Prompts = append(out.Prompts, rec.Clone())
	}

	return out
}

// Index returns the position of the record with id, or -1.
func (s State) Index(id string) int {
	return slices.IndexFunc(s.Prompts, func(r Record) bool { return r.ID == id })
}
