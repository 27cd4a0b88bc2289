// Package transfer converts the prompt collection to and from the files
// users exchange: JSON exports and backups, Markdown exports and imports.
package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/calvinalkan/promptkit/internal/prompt"
	"github.com/calvinalkan/promptkit/internal/store"
)

// Values for the exportedBy field.
const (
	ByExport = "promptkit"
	ByBackup = "promptkit-backup"
)

// ErrInvalidFormat is returned by [ParseFormat] for unknown names.
var ErrInvalidFormat = errors.New("unknown export format")

// Format is an export file format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
)

// ParseFormat accepts json, md or markdown. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w %q (want json or md)", ErrInvalidFormat, s)
	}
}

// Document is the JSON export shape: the full state plus provenance.
type Document struct {
	store.State

	ExportedAt int64  `json:"exportedAt"`
	ExportedBy string `json:"exportedBy"`
}

// ExportJSON renders st as an indented JSON document.
func ExportJSON(st store.State, now time.Time, by string) ([]byte, error) {
	st = st.Clone()
	st.Version = store.CurrentVersion

	data, err := json.MarshalIndent(Document{State: st, ExportedAt: now.UnixMilli(), ExportedBy: by}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	return append(data, '\n'), nil
}

const mdTimeLayout = "2006-01-02 15:04"

// ExportMarkdown renders records newest-updated first as a readable
// document. Times are shown in now's location.
func ExportMarkdown(records []store.Record, now time.Time) []byte {
	loc := now.Location()

	var b strings.Builder

	b.WriteString("# Prompt Library Export\n\n")
	fmt.Fprintf(&b, "Exported on: %s\n", now.Format(mdTimeLayout))
	fmt.Fprintf(&b, "Total prompts: %d\n\n", len(records))
	b.WriteString("---\n")

	for i, rec := range prompt.SortForDisplay(records) {
		if i > 0 {
			b.WriteString("\n---\n")
		}

		fmt.Fprintf(&b, "\n## %s\n\n", rec.Title)

		if len(rec.Tags) > 0 {
			fmt.Fprintf(&b, "**Tags:** %s\n\n", strings.Join(rec.Tags, ", "))
		}

		b.WriteString(rec.Content)
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "*Created: %s*\n", rec.Created().In(loc).Format(mdTimeLayout))
		fmt.Fprintf(&b, "*Updated: %s*\n", rec.Updated().In(loc).Format(mdTimeLayout))
	}

	return []byte(b.String())
}

const fileStamp = "20060102-150405"

// BackupFilename names a manually downloaded backup.
func BackupFilename(now time.Time) string {
	return "promptkit-backup-" + now.Format(fileStamp) + ".json"
}

// AutoBackupFilename names a backup written by the auto-backup trigger.
func AutoBackupFilename(now time.Time) string {
	return "promptkit-autobackup-" + now.Format(fileStamp) + ".json"
}

// ExportFilename names an export in format f.
func ExportFilename(now time.Time, f Format) string {
	ext := "json"
	if f == FormatMarkdown {
		ext = "md"
	}

	return "promptkit-export-" + now.Format(fileStamp) + "." + ext
}
