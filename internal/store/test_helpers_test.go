package store

import (
	"path/filepath"
	"testing"

	"github.com/goalsarm/goalsfit/internal/prior"
)

// createTestStore opens a store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// insertTestRun inserts a bare run row for constraint tests.
func insertTestRun(t *testing.T, s *Store, id string) {
	t.Helper()
	_, err := s.db.Exec(`
		INSERT INTO runs (id, command, workbook, catalog_fingerprint, method, keys, started_at)
		VALUES (?, 'calibrate', 'test.cue', 'fp', 'nelder-mead', '[]', '2026-01-01T00:00:00.000000000Z')
	`, id)
	if err != nil {
		t.Fatalf("insert run %s: %v", id, err)
	}
}

// createTestCatalog builds a two-parameter catalog.
func createTestCatalog(t *testing.T) *prior.Set {
	t.Helper()
	seed, err := prior.NewParameter("seed.prev", 0.01, "beta", 1, 99)
	if err != nil {
		t.Fatalf("NewParameter() failed: %v", err)
	}
	f2m, err := prior.NewParameter("transmit.f2m", 1.0, "lognormal", 0, 0.5)
	if err != nil {
		t.Fatalf("NewParameter() failed: %v", err)
	}
	set, err := prior.NewSet(seed, f2m)
	if err != nil {
		t.Fatalf("NewSet() failed: %v", err)
	}
	return set
}
