// Package app assembles promptkit's components for one data directory and
// provides the flows shared by the CLI and the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/calvinalkan/promptkit/internal/backup"
	"github.com/calvinalkan/promptkit/internal/config"
	"github.com/calvinalkan/promptkit/internal/fs"
	"github.com/calvinalkan/promptkit/internal/kv"
	"github.com/calvinalkan/promptkit/internal/metrics"
	"github.com/calvinalkan/promptkit/internal/prefs"
	"github.com/calvinalkan/promptkit/internal/prompt"
	"github.com/calvinalkan/promptkit/internal/store"
	"github.com/calvinalkan/promptkit/internal/template"
	"github.com/calvinalkan/promptkit/internal/transfer"
)

// App holds the wired components.
type App struct {
	Config    config.Config
	Log       zerolog.Logger
	Metrics   *metrics.Metrics
	FS        fs.FS
	DB        kv.DB
	Store     *store.Store
	Prefs     *prefs.Manager
	Engine    *prompt.Engine
	Backups   *backup.Manager
	Vars      *template.Vars
	Artifacts backup.Artifacts

	now func() time.Time
}

// Options overrides collaborators, mostly for tests.
type Options struct {
	Now       func() time.Time
	NewID     func() string
	FS        fs.FS
	DB        kv.DB            // opened from Config.DBPath() when nil
	Artifacts backup.Artifacts // a directory writer on Config.BackupDirAbs when nil
	Metrics   *metrics.Metrics
}

// Open wires all components for cfg.
func Open(ctx context.Context, cfg config.Config, log zerolog.Logger, opts Options) (*App, error) {
	a := &App{
		Config:  cfg,
		Log:     log,
		Metrics: opts.Metrics,
		FS:      opts.FS,
		DB:      opts.DB,
		now:     opts.Now,
	}

	if a.now == nil {
		a.now = time.Now
	}

	if a.FS == nil {
		a.FS = fs.NewReal()
	}

	if a.DB == nil {
		err := a.FS.MkdirAll(cfg.DataDirAbs, 0o750)
		if err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}

		db, err := kv.OpenSQLite(ctx, cfg.DBPath(), kv.SQLiteOptions{QuotaBytes: cfg.QuotaBytes})
		if err != nil {
			return nil, err
		}

		a.DB = db
	}

	newID := opts.NewID
	if newID == nil {
		newID = store.NewID
	}

	a.Artifacts = opts.Artifacts
	if a.Artifacts == nil {
		a.Artifacts = backup.NewDirArtifacts(a.FS, cfg.BackupDirAbs)
	}

	a.Store = store.New(a.DB, store.WithClock(a.now), store.WithIDs(newID), store.WithLogger(log))
	a.Prefs = prefs.NewManager(a.DB)
	a.Vars = template.NewVars(a.DB)

	// The engine's hook and the backup manager need each other.
	var backups *backup.Manager

	a.Engine = prompt.NewEngine(a.Store, a.Prefs,
		prompt.WithClock(a.now),
		prompt.WithIDs(newID),
		prompt.WithLogger(log),
		prompt.WithMetrics(a.Metrics),
		prompt.WithAfterChange(func(ctx context.Context) error {
			_, err := backups.MaybeBackup(ctx)

			return err
		}),
	)

	backups = backup.NewManager(a.Store, a.Prefs, a.Artifacts, a.Engine,
		backup.WithClock(a.now),
		backup.WithIDs(newID),
		backup.WithLogger(log),
		backup.WithMetrics(a.Metrics),
	)
	a.Backups = backups

	return a, nil
}

// Now returns the current time from the app's clock.
func (a *App) Now() time.Time {
	return a.now()
}

// Close writes the metrics textfile, if configured, and closes the store.
func (a *App) Close() error {
	var errs []error

	if a.Config.MetricsFile != "" {
		err := a.Metrics.WriteTextfile(a.Config.MetricsFile)
		if err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}

	err := a.DB.Close()
	if err != nil && !errors.Is(err, kv.ErrClosed) {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Query returns the records matching query that carry every tag in tags,
// newest first.
func (a *App) Query(ctx context.Context, query string, tags []string) ([]store.Record, error) {
	records, err := a.Engine.List(ctx)
	if err != nil {
		return nil, err
	}

	records = prompt.FilterByTags(prompt.Search(records, query), tags)

	return prompt.SortForDisplay(records), nil
}

// Rendered is the outcome of [App.Render].
type Rendered struct {
	template.Result

	Placeholders []template.Placeholder `json:"placeholders"`
}

// Suggestions returns the values a render of id would start from: the
// cached values plus the auto-values.
func (a *App) Suggestions(ctx context.Context, id string) (store.Record, map[string]string, error) {
	rec, err := a.Engine.Get(ctx, id)
	if err != nil {
		return store.Record{}, nil, err
	}

	values, err := a.Vars.Effective(ctx, id, a.now())
	if err != nil {
		return store.Record{}, nil, err
	}

	return rec, values, nil
}

// Render fills the placeholders of record id. Supplied values win over
// cached ones; auto-values win over both. With remember set, the supplied
// values are written back to the record's cache.
func (a *App) Render(ctx context.Context, id string, supplied map[string]string, remember bool) (Rendered, error) {
	start := time.Now()

	rec, values, err := a.Suggestions(ctx, id)
	if err != nil {
		a.Metrics.RecordOperation("render", start, err)

		return Rendered{}, err
	}

	for name, v := range supplied {
		if v != "" {
			values[name] = v
		}
	}

	res := template.Apply(rec.Content, values, a.now())
	a.Metrics.RecordMissing(len(res.Missing))

	if remember && len(supplied) > 0 {
		err = a.Vars.Remember(ctx, id, supplied)
		if err != nil {
			a.Metrics.RecordOperation("render", start, err)

			return Rendered{}, err
		}
	}

	a.Metrics.RecordOperation("render", start, nil)

	return Rendered{Result: res, Placeholders: template.Parse(rec.Content)}, nil
}

// PruneVars forgets the remembered values of records that no longer exist
// and returns their ids.
func (a *App) PruneVars(ctx context.Context) ([]string, error) {
	ids, err := a.Vars.Cached(ctx)
	if err != nil {
		return nil, err
	}

	st, err := a.Store.Load(ctx)
	if err != nil {
		return nil, err
	}

	var pruned []string

	for _, id := range ids {
		if st.Index(id) >= 0 {
			continue
		}

		err = a.Vars.Forget(ctx, id)
		if err != nil {
			return pruned, err
		}

		pruned = append(pruned, id)
	}

	return pruned, nil
}

// ImportResult combines parsing and merging counts.
type ImportResult struct {
	Total   int      `json:"total"`
	Valid   int      `json:"valid"`
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

// Import parses data and merges the valid items in one transaction.
func (a *App) Import(ctx context.Context, data []byte, mode prompt.MergeMode) (ImportResult, error) {
	parsed, err := transfer.Parse(data)
	if err != nil {
		return ImportResult{}, err
	}

	res := ImportResult{Total: parsed.Total, Valid: parsed.Valid, Errors: parsed.Errors}

	if parsed.Valid == 0 {
		res.Skipped = parsed.Total

		return res, nil
	}

	merged, err := a.Engine.BatchMerge(ctx, parsed.Items, mode)
	if err != nil {
		return ImportResult{}, err
	}

	res.Created = merged.Created
	res.Skipped = merged.Skipped + parsed.Total - parsed.Valid
	res.Errors = append(res.Errors, merged.Errors...)

	return res, nil
}

// Export renders the whole collection in format f and returns the data
// together with a suggested file name.
func (a *App) Export(ctx context.Context, f transfer.Format) ([]byte, string, error) {
	st, err := a.Store.Load(ctx)
	if err != nil {
		return nil, "", err
	}

	now := a.now()
	name := transfer.ExportFilename(now, f)

	if f == transfer.FormatMarkdown {
		return transfer.ExportMarkdown(st.Prompts, now), name, nil
	}

	data, err := transfer.ExportJSON(st, now, transfer.ByExport)
	if err != nil {
		return nil, "", err
	}

	return data, name, nil
}
