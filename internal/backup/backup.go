// Package backup keeps full-state snapshots of the prompt collection.
//
// Producing a snapshot ([Snapshot]) is pure. The two effects are separate:
// writing a downloadable artifact through [Artifacts], and pushing the
// snapshot onto a bounded ring stored in the KV namespace. The auto-backup
// trigger and [Manager.SaveLocal] do both; [Manager.Download] only writes
// the artifact.
package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/calvinalkan/promptkit/internal/store"
)

// Key is the KV key holding the ring.
const Key = "backups"

// Capacity is the maximum number of snapshots kept in the ring.
const Capacity = 3

var (
	// ErrBackupNotFound is returned for an id not in the ring.
	ErrBackupNotFound = errors.New("backup not found")

	// ErrInvalidBackup is returned when snapshot data has no prompt list.
	ErrInvalidBackup = errors.New("invalid backup data")
)

// Backup is one snapshot. Data holds the full state as JSON.
type Backup struct {
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Time returns Timestamp as a [time.Time].
func (b Backup) Time() time.Time {
	return time.UnixMilli(b.Timestamp)
}

// Count returns the number of prompts in the snapshot, or -1 if the data
// cannot be read.
func (b Backup) Count() int {
	var st struct {
		Prompts []json.RawMessage `json:"prompts"`
	}

	if json.Unmarshal(b.Data, &st) != nil || st.Prompts == nil {
		return -1
	}

	return len(st.Prompts)
}

// Snapshot captures st at now under id.
func Snapshot(st store.State, now time.Time, id string) (Backup, error) {
	st = st.Clone()
	st.Version = store.CurrentVersion

	data, err := json.Marshal(st)
	if err != nil {
		return Backup{}, fmt.Errorf("encode snapshot: %w", err)
	}

	return Backup{ID: id, Timestamp: now.UnixMilli(), Data: data}, nil
}

// push returns ring with b prepended, truncated to [Capacity].
func push(ring []Backup, b Backup) []Backup {
	out := make([]Backup, 0, Capacity)
	out = append(out, b)

	for _, old := range ring {
		if len(out) == Capacity {
			break
		}

		out = append(out, old)
	}

	return out
}

func decodeRing(raw []byte) []Backup {
	var ring []Backup
	if json.Unmarshal(raw, &ring) != nil {
		return []Backup{}
	}

	out := make([]Backup, 0, len(ring))

	for _, b := range ring {
		if b.ID == "" || len(bytes.TrimSpace(b.Data)) == 0 {
			continue
		}

		out = append(out, b)
	}

	if len(out) > Capacity {
		out = out[:Capacity]
	}

	return out
}
