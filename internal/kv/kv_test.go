package kv_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/promptkit/internal/kv"
)

func openSQLite(t *testing.T, opts kv.SQLiteOptions) *kv.SQLite {
	t.Helper()

	db, err := kv.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "promptkit.db"), opts)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// backends runs the same contract tests against every DB implementation.
func backends(t *testing.T) map[string]kv.DB {
	t.Helper()

	return map[string]kv.DB{
		"memory": kv.NewMemory(),
		"sqlite": openSQLite(t, kv.SQLiteOptions{}),
	}
}

func TestDB_PutGetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := kv.Get(ctx, db, "state")
			if got, want := err, kv.ErrNotFound; !errors.Is(got, want) {
				t.Fatalf("err=%v, want=%v", got, want)
			}

			err = kv.Put(ctx, db, "state", []byte(`{"version":2}`))
			if err != nil {
				t.Fatalf("Put: %v", err)
			}

			val, err := kv.Get(ctx, db, "state")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}

			if got, want := string(val), `{"version":2}`; got != want {
				t.Fatalf("value=%q, want=%q", got, want)
			}

			err = db.Update(ctx, func(tx kv.Tx) error {
				return tx.Delete(ctx, "state")
			})
			if err != nil {
				t.Fatalf("Delete: %v", err)
			}

			_, err = kv.Get(ctx, db, "state")
			if got, want := err, kv.ErrNotFound; !errors.Is(got, want) {
				t.Fatalf("err after delete=%v, want=%v", got, want)
			}
		})
	}
}

func TestDB_UpdateRollsBackOnError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	boom := errors.New("boom")

	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := db.Update(ctx, func(tx kv.Tx) error {
				if err := tx.Put(ctx, "a", []byte("1")); err != nil {
					return err
				}

				return boom
			})
			if got, want := err, boom; !errors.Is(got, want) {
				t.Fatalf("err=%v, want=%v", got, want)
			}

			_, err = kv.Get(ctx, db, "a")
			if got, want := err, kv.ErrNotFound; !errors.Is(got, want) {
				t.Fatalf("write leaked out of failed transaction: err=%v", got)
			}
		})
	}
}

func TestDB_ViewRejectsWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := db.View(ctx, func(tx kv.Tx) error {
				return tx.Put(ctx, "a", []byte("1"))
			})
			if got, want := err, kv.ErrReadOnly; !errors.Is(got, want) {
				t.Fatalf("err=%v, want=%v", got, want)
			}
		})
	}
}

func TestDB_KeysByPrefix(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := db.Update(ctx, func(tx kv.Tx) error {
				for _, key := range []string{"vars/b", "state", "vars/a", "varsx", "backups"} {
					if err := tx.Put(ctx, key, []byte("x")); err != nil {
						return err
					}
				}

				return nil
			})
			if err != nil {
				t.Fatalf("seed: %v", err)
			}

			var keys []string

			err = db.View(ctx, func(tx kv.Tx) error {
				var keysErr error
				keys, keysErr = tx.Keys(ctx, "vars/")

				return keysErr
			})
			if err != nil {
				t.Fatalf("Keys: %v", err)
			}

			if diff := cmp.Diff([]string{"vars/a", "vars/b"}, keys); diff != "" {
				t.Fatalf("keys mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMemory_FailWritesDiscardsChanges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := kv.NewMemory()
	db.FailWrites = kv.ErrFull

	err := kv.Put(ctx, db, "state", []byte("x"))
	if got, want := err, kv.ErrFull; !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}

	db.FailWrites = nil

	_, err = kv.Get(ctx, db, "state")
	if got, want := err, kv.ErrNotFound; !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}
}

func TestSQLite_QuotaReturnsErrFull(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openSQLite(t, kv.SQLiteOptions{QuotaBytes: 64 * 1024})

	big := []byte(strings.Repeat("x", 512*1024))

	err := kv.Put(ctx, db, "state", big)
	if got, want := err, kv.ErrFull; !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}

	// Small writes still fit.
	err = kv.Put(ctx, db, "preferences", []byte("{}"))
	if err != nil {
		t.Fatalf("small Put after quota failure: %v", err)
	}
}

func TestSQLite_ReopenKeepsData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "promptkit.db")

	db, err := kv.OpenSQLite(ctx, path, kv.SQLiteOptions{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	err = kv.Put(ctx, db, "state", []byte("persisted"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err = kv.OpenSQLite(ctx, path, kv.SQLiteOptions{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	defer db.Close()

	val, err := kv.Get(ctx, db, "state")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got, want := string(val), "persisted"; got != want {
		t.Fatalf("value=%q, want=%q", got, want)
	}
}
