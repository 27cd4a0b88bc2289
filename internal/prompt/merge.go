package prompt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/calvinalkan/promptkit/internal/store"
)

// MergeMode selects how [Engine.BatchMerge] treats existing records.
type MergeMode string

const (
	// ModeMerge keeps existing records and adds non-duplicates.
	ModeMerge MergeMode = "merge"
	// ModeReplace drops all existing records first.
	ModeReplace MergeMode = "replace"
)

// ParseMergeMode parses a mode name. Empty means [ModeMerge].
func ParseMergeMode(s string) (MergeMode, error) {
	switch MergeMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeMerge:
		return ModeMerge, nil
	case ModeReplace:
		return ModeReplace, nil
	default:
		return "", fmt.Errorf("%w: %q (want merge or replace)", ErrInvalidMode, s)
	}
}

// MergeResult reports the outcome of [Engine.BatchMerge].
type MergeResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

// BatchMerge adds items in one transaction.
//
// Invalid items are skipped and reported as "Item N: ..." with N 1-based.
// Items whose title and content fingerprint matches a record already in the
// collection, or an item accepted earlier in the same batch, are skipped as
// duplicates. In [ModeReplace] the collection is cleared first.
//
// Nothing is written when no item is created, so a replace that yields no
// records leaves the collection as it was.
func (e *Engine) BatchMerge(ctx context.Context, items []Draft, mode MergeMode) (MergeResult, error) {
	start := time.Now()

	res := MergeResult{Errors: []string{}}

	var count int

	e.mu.Lock()
	err := e.store.Update(ctx, func(st *store.State) error {
		res = MergeResult{Errors: []string{}}

		existing := st.Prompts
		if mode == ModeReplace {
			existing = nil
		}

		seen := make(map[string]bool, len(existing)+len(items))
		for _, rec := range existing {
			seen[recordKey(rec.Title, rec.Content)] = true
		}

		now := e.now().UnixMilli()
		added := make([]store.Record, 0, len(items))

		for i, d := range items {
			problems := Validate(d)
			if len(problems) > 0 {
				res.Errors = append(res.Errors, fmt.Sprintf("Item %d: %s", i+1, strings.Join(problems, "; ")))
				res.Skipped++

				continue
			}

			title := strings.TrimSpace(d.Title)

			key := recordKey(title, d.Content)
			if seen[key] {
				res.Skipped++

				continue
			}

			seen[key] = true

			created := d.CreatedAt
			if created <= 0 || created > now {
				created = now
			}

			added = append(added, store.Record{
				ID:        e.newID(),
				Title:     title,
				Content:   d.Content,
				Tags:      NormalizeTags(d.Tags),
				CreatedAt: created,
				UpdatedAt: now,
			})
		}

		res.Created = len(added)
		if res.Created == 0 {
			return store.ErrNoChange
		}

		st.Prompts = append(existing, added...)
		count = len(st.Prompts)

		return nil
	})
	e.mu.Unlock()

	e.metrics.RecordOperation("merge", start, err)

	if err != nil {
		return MergeResult{}, err
	}

	e.log.Debug().
		Str("mode", string(mode)).
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Msg("merged prompts")

	if res.Created > 0 {
		e.changed(ctx, count)
	}

	return res, nil
}
