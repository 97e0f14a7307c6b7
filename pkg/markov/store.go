package markov

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SetupSchema initializes the tables used by Store in the provided database.
// It is idempotent and safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaMatrices = `
CREATE TABLE IF NOT EXISTS markov_matrices (
    matrix_id INTEGER PRIMARY KEY,
    matrix_name TEXT NOT NULL UNIQUE,
    matrix_size INTEGER NOT NULL,
    matrix_data TEXT NOT NULL
);
`
		schemaRuns = `
CREATE TABLE IF NOT EXISTS markov_runs (
    run_id TEXT PRIMARY KEY,
    matrix_id INTEGER NOT NULL,
    chain_id TEXT NOT NULL,
    start_state INTEGER NOT NULL,
    end_state INTEGER NOT NULL,
    steps INTEGER NOT NULL,
    step_count INTEGER NOT NULL,
    recorded INTEGER NOT NULL DEFAULT 0,
    path TEXT NOT NULL DEFAULT '[]',
    process_seed TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
`
		indexRuns = `CREATE INDEX IF NOT EXISTS markov_runs_matrix ON markov_runs (matrix_id, created_at);`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	// If the transaction succeeds, tx.Commit() will be called first, and the rollback will do nothing. If it fails, this will clean up.
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaMatrices); err != nil {
		return fmt.Errorf("could not create matrices schema: %w", err)
	}

	if _, err = tx.Exec(schemaRuns); err != nil {
		return fmt.Errorf("could not create runs schema: %w", err)
	}

	if _, err = tx.Exec(indexRuns); err != nil {
		return fmt.Errorf("could not create runs index: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// MatrixInfo holds the metadata of a stored transition matrix.
type MatrixInfo struct {
	Id   int    `json:"id"`
	Name string `json:"name"`
	Size int    `json:"size"`
}

// RunInfo is a stored run report.
type RunInfo struct {
	Id        string    `json:"id"`
	MatrixId  int       `json:"matrix_id"`
	CreatedAt time.Time `json:"created_at"`
	Report    Report    `json:"report"`
}

// Store persists named transition matrices and the reports of runs over
// them. It holds the database connection and prepared SQL statements.
type Store struct {
	db               *sql.DB
	stmtUpsertMatrix *sql.Stmt
	stmtFindMatrix   *sql.Stmt
	stmtGetMatrix    *sql.Stmt
	stmtGetMatrices  *sql.Stmt
	stmtGetData      *sql.Stmt
	stmtInsertRun    *sql.Stmt
	stmtGetRun       *sql.Stmt
	stmtGetRuns      *sql.Stmt
	stmtRunStats     *sql.Stmt
	stmtRunCount     *sql.Stmt
	logger           *slog.Logger
	now              func() time.Time
}

const runColumns = `run_id, matrix_id, chain_id, start_state, end_state, steps, step_count, recorded, path, process_seed, created_at`

// NewStore creates a Store over db, which must already have the schema from
// SetupSchema. It pre-compiles all SQL statements, returning an error if any
// preparation fails.
func NewStore(db *sql.DB) (*Store, error) {
	stmtUpsertMatrix, err := db.Prepare(`INSERT INTO markov_matrices (matrix_name, matrix_size, matrix_data) VALUES (?, ?, ?)
ON CONFLICT(matrix_name) DO UPDATE SET matrix_size = excluded.matrix_size, matrix_data = excluded.matrix_data RETURNING matrix_id;`)
	if err != nil {
		return nil, err
	}

	stmtFindMatrix, err := db.Prepare(`SELECT matrix_id, matrix_data FROM markov_matrices WHERE matrix_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetMatrix, err := db.Prepare(`SELECT matrix_id, matrix_size FROM markov_matrices WHERE matrix_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetMatrices, err := db.Prepare(`SELECT matrix_id, matrix_name, matrix_size FROM markov_matrices;`)
	if err != nil {
		return nil, err
	}

	stmtGetData, err := db.Prepare(`SELECT matrix_data FROM markov_matrices WHERE matrix_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtInsertRun, err := db.Prepare(`INSERT INTO markov_runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return nil, err
	}

	stmtGetRun, err := db.Prepare(`SELECT ` + runColumns + ` FROM markov_runs WHERE run_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetRuns, err := db.Prepare(`SELECT ` + runColumns + ` FROM markov_runs WHERE matrix_id = ? ORDER BY created_at, rowid;`)
	if err != nil {
		return nil, err
	}

	stmtRunStats, err := db.Prepare(`SELECT COUNT(*), coalesce(SUM(steps), 0), coalesce(SUM(recorded), 0) FROM markov_runs WHERE matrix_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtRunCount, err := db.Prepare(`SELECT COUNT(*) FROM markov_runs;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:               db,
		stmtUpsertMatrix: stmtUpsertMatrix,
		stmtFindMatrix:   stmtFindMatrix,
		stmtGetMatrix:    stmtGetMatrix,
		stmtGetMatrices:  stmtGetMatrices,
		stmtGetData:      stmtGetData,
		stmtInsertRun:    stmtInsertRun,
		stmtGetRun:       stmtGetRun,
		stmtGetRuns:      stmtGetRuns,
		stmtRunStats:     stmtRunStats,
		stmtRunCount:     stmtRunCount,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:              time.Now,
	}, nil
}

// Close releases all prepared SQL statements held by the Store.
func (s *Store) Close() {
	_ = s.stmtUpsertMatrix.Close()
	_ = s.stmtFindMatrix.Close()
	_ = s.stmtGetMatrix.Close()
	_ = s.stmtGetMatrices.Close()
	_ = s.stmtGetData.Close()
	_ = s.stmtInsertRun.Close()
	_ = s.stmtGetRun.Close()
	_ = s.stmtGetRuns.Close()
	_ = s.stmtRunStats.Close()
	_ = s.stmtRunCount.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SaveMatrix validates m and stores it under name, replacing any matrix
// already stored with that name. Replacing a matrix with different data
// deletes the runs recorded over the old one. The operation is performed
// within a transaction.
func (s *Store) SaveMatrix(ctx context.Context, name string, m TransitionMatrix) (MatrixInfo, error) {
	if name == "" {
		return MatrixInfo{}, newValidationError("matrix name", -1, "must not be empty")
	}
	if err := m.Validate(); err != nil {
		return MatrixInfo{}, err
	}
	data, err := json.Marshal([][]float64(m))
	if err != nil {
		return MatrixInfo{}, fmt.Errorf("could not encode matrix '%s': %w", name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return MatrixInfo{}, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	id, dropped, err := s.upsertMatrix(ctx, tx, name, m.Size(), string(data))
	if err != nil {
		return MatrixInfo{}, err
	}
	if err = tx.Commit(); err != nil {
		return MatrixInfo{}, fmt.Errorf("could not commit matrix '%s': %w", name, err)
	}

	s.logger.InfoContext(ctx, "Matrix saved",
		slog.String("matrix_name", name),
		slog.Int("matrix_id", id),
		slog.Int("states", m.Size()),
		slog.Int64("runs_dropped", dropped),
	)
	return MatrixInfo{Id: id, Name: name, Size: m.Size()}, nil
}

// upsertMatrix stores data under name within tx. When a matrix with that
// name already holds different data, its runs are deleted first, since
// they may visit states the new matrix does not have. It returns the
// matrix ID and the number of runs deleted.
func (s *Store) upsertMatrix(ctx context.Context, tx *sql.Tx, name string, size int, data string) (int, int64, error) {
	var (
		id      int
		old     string
		dropped int64
	)
	err := tx.StmtContext(ctx, s.stmtFindMatrix).QueryRowContext(ctx, name).Scan(&id, &old)
	switch {
	case err == nil && old != data:
		res, err := tx.ExecContext(ctx, "DELETE FROM markov_runs WHERE matrix_id = ?", id)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to remove runs for matrix %d: %w", id, err)
		}
		if dropped, err = res.RowsAffected(); err != nil {
			return 0, 0, err
		}
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return 0, 0, fmt.Errorf("could not look up matrix '%s': %w", name, err)
	}

	if err = tx.StmtContext(ctx, s.stmtUpsertMatrix).QueryRowContext(ctx, name, size, data).Scan(&id); err != nil {
		return 0, 0, fmt.Errorf("could not save matrix '%s': %w", name, err)
	}
	return id, dropped, nil
}

// GetMatrixInfo retrieves the metadata of the matrix stored under name.
// It returns sql.ErrNoRows if there is none.
func (s *Store) GetMatrixInfo(ctx context.Context, name string) (MatrixInfo, error) {
	info := MatrixInfo{Name: name}
	if err := s.stmtGetMatrix.QueryRowContext(ctx, name).Scan(&info.Id, &info.Size); err != nil {
		return MatrixInfo{}, err
	}
	return info, nil
}

// GetMatrixInfos retrieves metadata for all stored matrices, keyed by name.
func (s *Store) GetMatrixInfos(ctx context.Context) (map[string]MatrixInfo, error) {
	rows, err := s.stmtGetMatrices.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	infos := make(map[string]MatrixInfo)
	for rows.Next() {
		var info MatrixInfo
		if err = rows.Scan(&info.Id, &info.Name, &info.Size); err != nil {
			return nil, err
		}
		infos[info.Name] = info
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return infos, nil
}

// ListMatrices returns metadata for all stored matrices, sorted by name.
func (s *Store) ListMatrices(ctx context.Context) ([]MatrixInfo, error) {
	infos, err := s.GetMatrixInfos(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MatrixInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b MatrixInfo) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// LoadMatrix reads and validates the matrix described by info.
func (s *Store) LoadMatrix(ctx context.Context, info MatrixInfo) (TransitionMatrix, error) {
	var data string
	if err := s.stmtGetData.QueryRowContext(ctx, info.Id).Scan(&data); err != nil {
		return nil, err
	}
	var rows [][]float64
	if err := json.Unmarshal([]byte(data), &rows); err != nil {
		return nil, fmt.Errorf("stored matrix '%s' is corrupt: %w", info.Name, err)
	}
	return NewTransitionMatrix(rows)
}

// RemoveMatrix deletes a matrix and all of its runs. The operation is
// performed within a transaction.
func (s *Store) RemoveMatrix(ctx context.Context, info MatrixInfo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_runs WHERE matrix_id = ?", info.Id); err != nil {
		return fmt.Errorf("failed to remove runs for matrix %d: %w", info.Id, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_matrices WHERE matrix_id = ?", info.Id); err != nil {
		return fmt.Errorf("failed to remove matrix %d: %w", info.Id, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit removal of matrix %d: %w", info.Id, err)
	}

	s.logger.InfoContext(ctx, "Matrix removed",
		slog.String("matrix_name", info.Name),
		slog.Int("matrix_id", info.Id),
	)
	return nil
}

// SaveRun stores report as a run over the matrix described by info and
// returns the new run ID.
func (s *Store) SaveRun(ctx context.Context, info MatrixInfo, report Report) (string, error) {
	id := uuid.NewString()
	if err := s.insertRun(ctx, s.stmtInsertRun, id, info.Id, s.now(), report); err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "Run saved",
		slog.String("run_id", id),
		slog.String("matrix_name", info.Name),
		slog.Int("steps", report.Steps),
	)
	return id, nil
}

func (s *Store) insertRun(ctx context.Context, stmt *sql.Stmt, id string, matrixID int, at time.Time, report Report) error {
	path := report.Path
	if path == nil {
		path = []int{}
	}
	pathData, err := json.Marshal(path)
	if err != nil {
		return fmt.Errorf("could not encode run path: %w", err)
	}
	_, err = stmt.ExecContext(ctx,
		id, matrixID, report.ChainID, report.Start, report.End, report.Steps, report.StepCount,
		report.Recorded, string(pathData), strconv.FormatUint(report.ProcessSeed, 10), at.Unix())
	if err != nil {
		return fmt.Errorf("could not insert run %s: %w", id, err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunInfo, error) {
	var (
		run      RunInfo
		recorded bool
		path     string
		seed     string
		created  int64
	)
	err := row.Scan(&run.Id, &run.MatrixId, &run.Report.ChainID, &run.Report.Start, &run.Report.End,
		&run.Report.Steps, &run.Report.StepCount, &recorded, &path, &seed, &created)
	if err != nil {
		return RunInfo{}, err
	}
	run.Report.Recorded = recorded
	run.CreatedAt = time.Unix(created, 0)
	if run.Report.ProcessSeed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return RunInfo{}, fmt.Errorf("run %s has a corrupt seed: %w", run.Id, err)
	}
	if recorded {
		if err = json.Unmarshal([]byte(path), &run.Report.Path); err != nil {
			return RunInfo{}, fmt.Errorf("run %s has a corrupt path: %w", run.Id, err)
		}
	}
	return run, nil
}

// GetRun retrieves a stored run by ID. It returns sql.ErrNoRows if there is none.
func (s *Store) GetRun(ctx context.Context, id string) (RunInfo, error) {
	return scanRun(s.stmtGetRun.QueryRowContext(ctx, id))
}

// ListRuns returns every run over the matrix described by info, oldest first.
func (s *Store) ListRuns(ctx context.Context, info MatrixInfo) ([]RunInfo, error) {
	rows, err := s.stmtGetRuns.QueryContext(ctx, info.Id)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var runs []RunInfo
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// ExportedMatrix is the serializable representation of a stored matrix and
// its runs, used for JSON-based import and export.
type ExportedMatrix struct {
	Name   string        `json:"name"`
	Matrix [][]float64   `json:"matrix"`
	Runs   []ExportedRun `json:"runs"`
}

// ExportedRun is the serializable representation of a stored run.
type ExportedRun struct {
	Id        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
	Report    Report `json:"report"`
}

// ExportMatrix serializes a stored matrix and its runs as JSON to w.
func (s *Store) ExportMatrix(ctx context.Context, info MatrixInfo, w io.Writer) error {
	m, err := s.LoadMatrix(ctx, info)
	if err != nil {
		return fmt.Errorf("could not load matrix for export: %w", err)
	}
	runs, err := s.ListRuns(ctx, info)
	if err != nil {
		return fmt.Errorf("could not query runs for export: %w", err)
	}

	exported := ExportedMatrix{
		Name:   info.Name,
		Matrix: m,
		Runs:   make([]ExportedRun, 0, len(runs)),
	}
	for _, run := range runs {
		exported.Runs = append(exported.Runs, ExportedRun{
			Id:        run.Id,
			CreatedAt: run.CreatedAt.Unix(),
			Report:    run.Report,
		})
	}

	s.logger.InfoContext(ctx, "Matrix exported",
		slog.String("matrix_name", info.Name),
		slog.Int("matrix_id", info.Id),
		slog.Int("runs_exported", len(runs)),
	)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exported)
}

// ImportMatrix reads an ExportedMatrix from r. The matrix replaces any
// matrix of the same name, dropping its runs when the data differs; runs
// are merged, skipping IDs already present. The entire operation is
// transactional.
func (s *Store) ImportMatrix(ctx context.Context, r io.Reader) (MatrixInfo, error) {
	var imported ExportedMatrix
	if err := json.NewDecoder(r).Decode(&imported); err != nil {
		return MatrixInfo{}, fmt.Errorf("failed to decode json matrix: %w", err)
	}
	if imported.Name == "" {
		return MatrixInfo{}, newValidationError("matrix name", -1, "must not be empty")
	}
	m, err := NewTransitionMatrix(imported.Matrix)
	if err != nil {
		return MatrixInfo{}, err
	}
	data, err := json.Marshal(imported.Matrix)
	if err != nil {
		return MatrixInfo{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return MatrixInfo{}, fmt.Errorf("could not begin transaction for import: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	id, dropped, err := s.upsertMatrix(ctx, tx, imported.Name, m.Size(), string(data))
	if err != nil {
		return MatrixInfo{}, err
	}

	stmtInsertRun, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO markov_runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return MatrixInfo{}, fmt.Errorf("failed to prepare run insert statement: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmtInsertRun)

	for _, run := range imported.Runs {
		if run.Id == "" {
			run.Id = uuid.NewString()
		}
		for _, state := range append([]int{run.Report.Start, run.Report.End}, run.Report.Path...) {
			if state < 0 || state >= m.Size() {
				return MatrixInfo{}, newValidationError("imported run", -1, "run %s visits state %d outside [0, %d)", run.Id, state, m.Size())
			}
		}
		if err = s.insertRun(ctx, stmtInsertRun, run.Id, id, time.Unix(run.CreatedAt, 0), run.Report); err != nil {
			return MatrixInfo{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return MatrixInfo{}, err
	}

	s.logger.InfoContext(ctx, "Matrix imported",
		slog.String("matrix_name", imported.Name),
		slog.Int("matrix_id", id),
		slog.Int("runs_merged", len(imported.Runs)),
		slog.Int64("runs_dropped", dropped),
	)
	return MatrixInfo{Id: id, Name: imported.Name, Size: m.Size()}, nil
}

// IsNotFound reports whether err means a matrix or run does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
