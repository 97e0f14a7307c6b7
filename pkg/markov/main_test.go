package markov

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// twoCycle deterministically alternates between states 0 and 1.
var twoCycle = [][]float64{{0, 1}, {1, 0}}

// uniform returns an n×n matrix where every transition is equally likely.
func uniform(n int) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		for j := range rows[i] {
			rows[i][j] = 1 / float64(n)
		}
	}
	return rows
}

// identity returns an n×n matrix where every state is absorbing.
func identity(n int) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		rows[i][i] = 1
	}
	return rows
}

// setupTestDB creates a new SQLite database in a temp dir and a Store for testing.
// It uses t.Cleanup to ensure resources are released.
func setupTestDB(t *testing.T) (*sql.DB, *Store) {
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbFile)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}

	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(s.Close)

	return db, s
}

// mustChain builds a chain or fails the test.
func mustChain(t *testing.T, rows [][]float64, opts ...Option) *Chain {
	t.Helper()
	c, err := New(rows, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}
