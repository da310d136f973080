package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/GoCodeAlone/pipelineapi/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGPipelineStore keeps pipelines in PostgreSQL. Every save also appends to
// pipeline_history in the same transaction.
type PGPipelineStore struct {
	pool  *pgxpool.Pool
	codec Codec
}

func NewPGPipelineStore(pool *pgxpool.Pool, codec Codec) *PGPipelineStore {
	return &PGPipelineStore{pool: pool, codec: codec}
}

func (s *PGPipelineStore) GetPipeline(ctx context.Context, name string) (*config.PipelineConfig, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM pipelines WHERE name_key = $1`, config.NewName(name).Folded()).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("pipeline %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get pipeline %q: %w", name, err)
	}
	return s.codec.Unmarshal(data)
}

func (s *PGPipelineStore) SavePipeline(ctx context.Context, group string, p *config.PipelineConfig, actor string) error {
	data, err := s.codec.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode pipeline %q: %w", p.Name, err)
	}
	key := p.Name.Folded()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// An empty group keeps the existing one on update.
	_, err = tx.Exec(ctx, `
		INSERT INTO pipelines (name_key, name, group_name, data, version, updated_by)
		VALUES ($1, $2, $3, $4, 1, $5)
		ON CONFLICT (name_key) DO UPDATE SET
			name = EXCLUDED.name,
			group_name = CASE WHEN $6::text = '' THEN pipelines.group_name ELSE EXCLUDED.group_name END,
			data = EXCLUDED.data,
			version = pipelines.version + 1,
			updated_at = NOW(),
			updated_by = EXCLUDED.updated_by
	`, key, p.Name.String(), groupOrDefault(group), data, actor, group)
	if err != nil {
		return fmt.Errorf("upsert pipeline %q: %w", p.Name, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO pipeline_history (name_key, name, data, version, changed_by)
		SELECT name_key, name, data, version, updated_by FROM pipelines WHERE name_key = $1
	`, key)
	if err != nil {
		return fmt.Errorf("record pipeline history %q: %w", p.Name, err)
	}
	return tx.Commit(ctx)
}

func (s *PGPipelineStore) ListGroups(ctx context.Context) ([]*config.PipelineGroup, error) {
	rows, err := s.pool.Query(ctx,
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

func (s *PGPipelineStore) ListTemplates(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM pipeline_templates ORDER BY name`)
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

func (s *PGPipelineStore) SaveTemplate(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pipeline_templates (name_key, name) VALUES ($1, $2)
		ON CONFLICT (name_key) DO UPDATE SET name = EXCLUDED.name
	`, config.NewName(name).Folded(), name)
	if err != nil {
		return fmt.Errorf("save template %q: %w", name, err)
	}
	return nil
}

// History implements HistoryStore.
func (s *PGPipelineStore) History(ctx context.Context, name string) ([]Revision, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, version, changed_by, changed_at, data FROM pipeline_history
		WHERE name_key = $1 ORDER BY version`, config.NewName(name).Folded())
	if err != nil {
		return nil, fmt.Errorf("pipeline history %q: %w", name, err)
	}
	defer rows.Close()
	var out []Revision
	for rows.Next() {
		var r Revision
		if err := rows.Scan(&r.Name, &r.Version, &r.ChangedBy, &r.ChangedAt, &r.Data); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
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
