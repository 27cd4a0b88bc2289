package prompt

import (
	"slices"
	"strings"

	"github.com/calvinalkan/promptkit/internal/store"
)

// Search returns the records whose title, content or any tag contains query,
// ignoring case. A blank query returns records unchanged.
func Search(records []store.Record, query string) []store.Record {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return records
	}

	out := make([]store.Record, 0, len(records))

	for _, rec := range records {
		if matches(rec, query) {
			out = append(out, rec)
		}
	}

	return out
}

func matches(rec store.Record, query string) bool {
	if strings.Contains(strings.ToLower(rec.Title), query) ||
		strings.Contains(strings.ToLower(rec.Content), query) {
		return true
	}

	return slices.ContainsFunc(rec.Tags, func(tag string) bool {
		return strings.Contains(strings.ToLower(tag), query)
	})
}

// FilterByTags returns the records carrying every tag in tags, ignoring case.
// An empty selection returns records unchanged.
func FilterByTags(records []store.Record, tags []string) []store.Record {
	want := NormalizeTags(tags)
	if len(want) == 0 {
		return records
	}

	out := make([]store.Record, 0, len(records))

	for _, rec := range records {
		have := make(map[string]bool, len(rec.Tags))
		for _, tag := range rec.Tags {
			have[strings.ToLower(tag)] = true
		}

		all := true

		for _, tag := range want {
			if !have[tag] {
				all = false

				break
			}
		}

		if all {
			out = append(out, rec)
		}
	}

	return out
}

// SortForDisplay returns a copy of records ordered by UpdatedAt, newest
// first. Records with equal timestamps keep their relative order.
func SortForDisplay(records []store.Record) []store.Record {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b store.Record) int {
		switch {
		case a.UpdatedAt > b.UpdatedAt:
			return -1
		case a.UpdatedAt < b.UpdatedAt:
			return 1
		default:
			return 0
		}
	})

	return out
}

// CollectTags returns the distinct tags used by records, sorted.
func CollectTags(records []store.Record) []string {
	seen := make(map[string]bool)
	out := []string{}

	for _, rec := range records {
		for _, tag := range rec.Tags {
			if !seen[tag] {
				seen[tag] = true
				out = append(out, tag)
			}
		}
	}

	slices.Sort(out)

	return out
}
