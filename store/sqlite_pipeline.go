package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/GoCodeAlone/pipelineapi/config"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS pipelines (
	name_key   TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	group_name TEXT NOT NULL,
	position   INTEGER NOT NULL,
	data       BLOB NOT NULL,
	version    INTEGER NOT NULL DEFAULT 1,
	updated_at TEXT NOT NULL,
	updated_by TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS pipeline_history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name_key   TEXT NOT NULL,
	name       TEXT NOT NULL,
	data       BLOB NOT NULL,
	version    INTEGER NOT NULL,
	changed_at TEXT NOT NULL,
	changed_by TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS pipeline_templates (
	name_key TEXT PRIMARY KEY,
	name     TEXT NOT NULL
);`

// SQLitePipelineStore keeps pipelines in a SQLite file, or in memory when
// the path is ":memory:".
type SQLitePipelineStore struct {
	db    *sql.DB
	codec Codec
}

// NewSQLitePipelineStore opens the database at dbPath and creates its
// tables if needed.
func NewSQLitePipelineStore(dbPath string, codec Codec) (*SQLitePipelineStore, error) {
	dsn := ":memory:"
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps writes serialised and an in-memory database alive.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &SQLitePipelineStore{db: db, codec: codec}, nil
}

// Close closes the underlying database.
func (s *SQLitePipelineStore) Close() error { return s.db.Close() }

func (s *SQLitePipelineStore) GetPipeline(ctx context.Context, name string) (*config.PipelineConfig, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM pipelines WHERE name_key = ?`, config.NewName(name).Folded()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pipeline %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get pipeline %q: %w", name, err)
	}
	return s.codec.Unmarshal(data)
}

func (s *SQLitePipelineStore) SavePipeline(ctx context.Context, group string, p *config.PipelineConfig, actor string) error {
	data, err := s.codec.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode pipeline %q: %w", p.Name, err)
	}
	key := p.Name.Folded()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var version int
	var currentGroup string
	err = tx.QueryRowContext(ctx,
		`SELECT version, group_name FROM pipelines WHERE name_key = ?`, key).Scan(&version, &currentGroup)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		version = 1
		_, err = tx.ExecContext(ctx, `
			INSERT INTO pipelines (name_key, name, group_name, position, data, version, updated_at, updated_by)
			VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM pipelines), ?, 1, ?, ?)`,
			key, p.Name.String(), groupOrDefault(group), data, now, actor)
	case err != nil:
		return fmt.Errorf("get pipeline %q: %w", p.Name, err)
	default:
		version++
		if group == "" {
			group = currentGroup
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE pipelines SET name = ?, group_name = ?, data = ?, version = ?, updated_at = ?, updated_by = ?
			WHERE name_key = ?`,
			p.Name.String(), group, data, version, now, actor, key)
	}
	if err != nil {
		return fmt.Errorf("upsert pipeline %q: %w", p.Name, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pipeline_history (name_key, name, data, version, changed_at, changed_by)
		VALUES (?, ?, ?, ?, ?, ?)`,
		key, p.Name.String(), data, version, now, actor)
	if err != nil {
		return fmt.Errorf("record pipeline history %q: %w", p.Name, err)
	}
	return tx.Commit()
}

func (s *SQLitePipelineStore) ListGroups(ctx context.Context) ([]*config.PipelineGroup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT group_name, data FROM pipelines ORDER BY group_name, position`)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	var groups []*config.PipelineGroup
	for rows.Next() {
		var group string
		var data []byte
		if err := rows.Scan(&group, &data); err != nil {
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		p, err := s.codec.Unmarshal(data)
		if err != nil {
			return nil, err
		}
		if len(groups) == 0 || groups[len(groups)-1].Name != group {
			groups = append(groups, &config.PipelineGroup{Name: group})
		}
		g := groups[len(groups)-1]
		g.Pipelines = append(g.Pipelines, p)
	}
	return groups, rows.Err()
}

func (s *SQLitePipelineStore) ListTemplates(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pipeline_templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *SQLitePipelineStore) SaveTemplate(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO pipeline_templates (name_key, name) VALUES (?, ?)`,
		config.NewName(name).Folded(), name)
	if err != nil {
		return fmt.Errorf("save template %q: %w", name, err)
	}
	return nil
}

// History implements HistoryStore.
func (s *SQLitePipelineStore) History(ctx context.Context, name string) ([]Revision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, version, changed_by, changed_at, data FROM pipeline_history
		WHERE name_key = ? ORDER BY version`, config.NewName(name).Folded())
	if err != nil {
		return nil, fmt.Errorf("pipeline history %q: %w", name, err)
	}
	defer rows.Close()
	var out []Revision
	for rows.Next() {
		var r Revision
		var changedAt string
		if err := rows.Scan(&r.Name, &r.Version, &r.ChangedBy, &changedAt, &r.Data); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		r.ChangedAt, _ = time.Parse(time.RFC3339Nano, changedAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("pipeline %q: %w", name, ErrNotFound)
	}
	return out, nil
}
