package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SchemaVersion is the current catalog schema version.
const SchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    sim TEXT NOT NULL,
    name TEXT NOT NULL,
    created_at TEXT NOT NULL,
    steps INTEGER NOT NULL,
    error TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_sim ON runs(sim, created_at);

CREATE TABLE IF NOT EXISTS run_metrics (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    value REAL NOT NULL,
    PRIMARY KEY (run_id, name)
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

// Catalog indexes saved runs and their metrics for querying across runs.
type Catalog struct {
	db *sql.DB
}

// OpenCatalog opens or creates the catalog database in the store directory.
func (s *Store) OpenCatalog(ctx context.Context) (*Catalog, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	return OpenCatalog(ctx, filepath.Join(s.baseDir, "catalog.db"))
}

func OpenCatalog(ctx context.Context, path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, SchemaVersion); err != nil {
		return err
	}
	return tx.Commit()
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

// Record adds a run and its metrics, replacing any earlier record with the same ID.
func (c *Catalog) Record(ctx context.Context, meta RunMetadata) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, meta.ID); err != nil {
		return err
	}
	var runErr sql.NullString
	if meta.Error != "" {
		runErr = sql.NullString{String: meta.Error, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, sim, name, created_at, steps, error) VALUES (?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.Sim, meta.Name, meta.Timestamp.UTC().Format(time.RFC3339Nano), meta.Steps, runErr,
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", meta.ID, err)
	}
	for name, value := range meta.Metrics {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_metrics (run_id, name, value) VALUES (?, ?, ?)`,
			meta.ID, name, value,
		); err != nil {
			return fmt.Errorf("failed to insert metric %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// Runs lists recorded runs, newest first. An empty sim lists every run.
func (c *Catalog) Runs(ctx context.Context, sim string) ([]RunMetadata, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, sim, name, created_at, steps, error FROM runs
		 WHERE ? = '' OR sim = ? ORDER BY created_at DESC`, sim, sim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunMetadata
	for rows.Next() {
		var (
			meta    RunMetadata
			created string
			runErr  sql.NullString
		)
		if err := rows.Scan(&meta.ID, &meta.Sim, &meta.Name, &created, &meta.Steps, &runErr); err != nil {
			return nil, err
		}
		if meta.Timestamp, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("run %s: %w", meta.ID, err)
		}
		meta.Error = runErr.String
		runs = append(runs, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		if runs[i].Metrics, err = c.metrics(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (c *Catalog) metrics(ctx context.Context, runID string) (map[string]float64, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT name, value FROM run_metrics WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var (
			name  string
			value float64
		)
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}

// Best returns up to limit successful runs ordered by a metric, lowest first.
func (c *Catalog) Best(ctx context.Context, metric string, limit int) ([]RunMetadata, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT r.id FROM runs r JOIN run_metrics m ON m.run_id = r.id
		 WHERE m.name = ? AND r.error IS NULL ORDER BY m.value ASC LIMIT ?`, metric, limit)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	all, err := c.Runs(ctx, "")
	if err != nil {
		return nil, err
	}
	byID := make(map[string]RunMetadata, len(all))
	for _, r := range all {
		byID[r.ID] = r
	}
	out := make([]RunMetadata, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out, nil
}
