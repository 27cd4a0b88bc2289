package backup_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/promptkit/internal/backup"
	"github.com/calvinalkan/promptkit/internal/fs"
	"github.com/calvinalkan/promptkit/internal/kv"
	"github.com/calvinalkan/promptkit/internal/prefs"
	"github.com/calvinalkan/promptkit/internal/prompt"
	"github.com/calvinalkan/promptkit/internal/store"
	"github.com/calvinalkan/promptkit/internal/testutil"
	"github.com/calvinalkan/promptkit/internal/transfer"
)

type memArtifacts struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func (a *memArtifacts) Write(_ context.Context, name string, data []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.err != nil {
		return "", a.err
	}

	if a.files == nil {
		a.files = map[string][]byte{}
	}

	a.files[name] = data

	return "mem://" + name, nil
}

func (a *memArtifacts) names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := []string{}
	for name := range a.files {
		out = append(out, name)
	}

	return out
}

type fixture struct {
	db        *kv.Memory
	engine    *prompt.Engine
	prefs     *prefs.Manager
	backups   *backup.Manager
	artifacts *memArtifacts
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{db: kv.NewMemory(), artifacts: &memArtifacts{}}
	st := store.New(f.db)
	f.prefs = prefs.NewManager(f.db)
	clock := testutil.NewClock()

	f.engine = prompt.NewEngine(st, f.prefs,
		prompt.WithClock(clock.Now),
		prompt.WithIDs(testutil.NewIDs("p").Next),
		prompt.WithAfterChange(func(ctx context.Context) error {
			_, err := f.backups.MaybeBackup(ctx)

			return err
		}),
	)

	f.backups = backup.NewManager(st, f.prefs, f.artifacts, f.engine,
		backup.WithClock(clock.Now),
		backup.WithIDs(testutil.NewIDs("b").Next),
	)

	return f
}

func (f *fixture) setThreshold(t *testing.T, n int) {
	t.Helper()

	_, err := f.prefs.SetAutoBackup(context.Background(), nil, &n)
	require.NoError(t, err)
}

func (f *fixture) disableAuto(t *testing.T) {
	t.Helper()

	off := false
	_, err := f.prefs.SetAutoBackup(context.Background(), &off, nil)
	require.NoError(t, err)
}

func backupIDs(ring []backup.Backup) []string {
	out := []string{}
	for _, b := range ring {
		out = append(out, b.ID)
	}

	return out
}

func TestAutoBackup_ThresholdTwo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.setThreshold(t, 2)

	_, err := f.engine.Create(ctx, prompt.Draft{Title: "one"})
	require.NoError(t, err)

	ring, err := f.backups.List(ctx)
	require.NoError(t, err)
	require.Empty(t, ring, "first create must not back up")

	_, err = f.engine.Create(ctx, prompt.Draft{Title: "two"})
	require.NoError(t, err)

	ring, err = f.backups.List(ctx)
	require.NoError(t, err)
	require.Len(t, ring, 1)
	require.Equal(t, 2, ring[0].Count())

	p, err := f.prefs.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, p.ChangeCounter)

	names := f.artifacts.names()
	require.Len(t, names, 1)
	require.True(t, strings.HasPrefix(names[0], "promptkit-autobackup-"), names[0])

	var doc transfer.Document
	require.NoError(t, json.Unmarshal(f.artifacts.files[names[0]], &doc))
	require.Equal(t, transfer.ByBackup, doc.ExportedBy)
	require.Len(t, doc.Prompts, 2)
}

func TestAutoBackup_Disabled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.setThreshold(t, 1)
	f.disableAuto(t)

	for range 3 {
		_, err := f.engine.Create(ctx, prompt.Draft{Title: "x" + t.Name()})
		require.NoError(t, err)
	}

	b, err := f.backups.MaybeBackup(ctx)
	require.NoError(t, err)
	require.Nil(t, b)

	p, err := f.prefs.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, p.ChangeCounter, "counter keeps counting while disabled")
	require.Empty(t, f.artifacts.names())
}

func TestAutoBackup_ArtifactFailureKeepsCounter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.setThreshold(t, 1)
	f.artifacts.err = errors.New("no space")

	_, err := f.engine.Create(ctx, prompt.Draft{Title: "one"})
	require.NoError(t, err, "hook failures never fail the mutation")

	ring, err := f.backups.List(ctx)
	require.NoError(t, err)
	require.Empty(t, ring)

	p, err := f.prefs.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, p.ChangeCounter)

	f.artifacts.err = nil

	b, err := f.backups.MaybeBackup(ctx)
	require.NoError(t, err)
	require.NotNil(t, b)
}

func TestSaveLocal_RingInvariant(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.disableAuto(t)

	_, err := f.engine.Create(ctx, prompt.Draft{Title: "seed"})
	require.NoError(t, err)

	var want []string

	for i := 1; i <= 5; i++ {
		b, err := f.backups.SaveLocal(ctx)
		require.NoError(t, err)

		want = append([]string{b.ID}, want...)
		if len(want) > backup.Capacity {
			want = want[:backup.Capacity]
		}

		ring, err := f.backups.List(ctx)
		require.NoError(t, err)
		require.Len(t, ring, min(backup.Capacity, i))

		if diff := cmp.Diff(want, backupIDs(ring)); diff != "" {
			t.Fatalf("ring after %d saves (-want +got):\n%s", i, diff)
		}

		for j := 1; j < len(ring); j++ {
			require.Greater(t, ring[j-1].Timestamp, ring[j].Timestamp, "ring must be newest first")
		}
	}

	p, err := f.prefs.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, p.ChangeCounter)
	require.Empty(t, f.artifacts.names(), "SaveLocal writes no artifact")
}

func TestDownload_LeavesRingAndCounterAlone(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.Create(ctx, prompt.Draft{Title: "one"})
	require.NoError(t, err)

	path, err := f.backups.Download(ctx)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(path, "mem://promptkit-backup-"), path)

	ring, err := f.backups.List(ctx)
	require.NoError(t, err)
	require.Empty(t, ring)

	p, err := f.prefs.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, p.ChangeCounter)
}

func TestRestore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.disableAuto(t)

	_, err := f.engine.Create(ctx, prompt.Draft{Title: "A", Content: "a"})
	require.NoError(t, err)

	b, err := f.backups.SaveLocal(ctx)
	require.NoError(t, err)

	_, err = f.engine.Create(ctx, prompt.Draft{Title: "B", Content: "b"})
	require.NoError(t, err)

	res, err := f.backups.Restore(ctx, b.ID, prompt.ModeMerge)
	require.NoError(t, err)
	require.Equal(t, 0, res.Created)
	require.Equal(t, 1, res.Skipped)

	records, err := f.engine.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	res, err = f.backups.Restore(ctx, b.ID, prompt.ModeReplace)
	require.NoError(t, err)
	require.Equal(t, 1, res.Created)

	records, err = f.engine.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "A", records[0].Title)
}

func TestRestore_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	_, err := f.backups.Restore(ctx, "missing", prompt.ModeMerge)
	require.ErrorIs(t, err, backup.ErrBackupNotFound)

	ring := []backup.Backup{{ID: "bad", Timestamp: 1, Data: json.RawMessage(`{"version":2}`)}}
	data, err := json.Marshal(ring)
	require.NoError(t, err)
	require.NoError(t, kv.Put(ctx, f.db, backup.Key, data))

	_, err = f.backups.Restore(ctx, "bad", prompt.ModeMerge)
	require.ErrorIs(t, err, backup.ErrInvalidBackup)
}

func TestSaveLocal_PersistFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.db.FailWrites = kv.ErrFull

	_, err := f.backups.SaveLocal(ctx)
	require.ErrorIs(t, err, store.ErrPersist)
	require.ErrorIs(t, err, kv.ErrFull)
}

func TestSnapshot_IsPure(t *testing.T) {
	t.Parallel()

	st := store.State{Version: 1, Prompts: []store.Record{{ID: "x", Title: "T", Tags: []string{"a"}}}}

	b, err := backup.Snapshot(st, testutil.Start, "id-1")
	require.NoError(t, err)
	require.Equal(t, "id-1", b.ID)
	require.Equal(t, testutil.Start.UnixMilli(), b.Timestamp)
	require.Equal(t, 1, b.Count())
	require.Equal(t, 1, st.Version, "input must not be modified")

	var decoded store.State
	require.NoError(t, json.Unmarshal(b.Data, &decoded))
	require.Equal(t, store.CurrentVersion, decoded.Version)
}

func TestDirArtifacts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "backups")
	faulty := fs.NewFaulty(fs.NewReal())
	arts := backup.NewDirArtifacts(faulty, dir)

	path, err := arts.Write(ctx, "promptkit-backup-x.json", []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "promptkit-backup-x.json"), path)

	data, err := fs.NewReal().ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, `{}`, string(data))

	_, err = arts.Write(ctx, "../escape.json", nil)
	require.Error(t, err)

	faulty.Fail(fs.OpWrite, errors.New("read-only"))

	_, err = arts.Write(ctx, "y.json", nil)
	require.Error(t, err)
	require.True(t, fs.IsInjected(err))
}
