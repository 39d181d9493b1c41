package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contentmix/internal/db"
	"github.com/sells-group/contentmix/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	sqlInsertAsset = `INSERT INTO assets (id, content_sn_id, name, creator, type, campaign, status, content_type, content_score, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	sqlGetAsset    = `SELECT data, status, content_type, content_score, created_at FROM assets WHERE id = $1`
	sqlMoveStatus  = `UPDATE assets SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	sqlInsertRun   = `INSERT INTO flow_runs (id, flow, state, error_kind, error, duration_ms, input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens, cost_usd, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
)

// preparedStatements lists queries to prepare on each new connection for
// the hottest store operations.
var preparedStatements = map[string]string{
	"insert_asset":    sqlInsertAsset,
	"get_asset":       sqlGetAsset,
	"move_status":     sqlMoveStatus,
	"insert_flow_run": sqlInsertRun,
}

// performanceUpsert merges imported rows into asset_performance.
var performanceUpsert = db.UpsertConfig{
	Table:        "asset_performance",
	Columns:      []string{"content_sn_id", "creator", "type", "length", "campaign", "tags", "daypart", "spot_length", "conversions", "updated_at"},
	ConflictKeys: []string{"content_sn_id"},
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS assets (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	content_sn_id TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL DEFAULT '',
	creator       TEXT NOT NULL DEFAULT '',
	type          TEXT NOT NULL DEFAULT '',
	campaign      TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'New',
	content_type  TEXT NOT NULL DEFAULT 'Branded',
	content_score DOUBLE PRECISION,
	data          JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS flow_runs (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	flow                  TEXT NOT NULL,
	state                 TEXT NOT NULL,
	error_kind            TEXT NOT NULL DEFAULT '',
	error                 TEXT NOT NULL DEFAULT '',
	duration_ms           BIGINT NOT NULL DEFAULT 0,
	input_tokens          INTEGER NOT NULL DEFAULT 0,
	output_tokens         INTEGER NOT NULL DEFAULT 0,
	cache_creation_tokens INTEGER NOT NULL DEFAULT 0,
	cache_read_tokens     INTEGER NOT NULL DEFAULT 0,
	cost_usd              DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS asset_performance (
	content_sn_id TEXT PRIMARY KEY,
	creator       TEXT NOT NULL,
	type          TEXT NOT NULL DEFAULT '',
	length        TEXT NOT NULL DEFAULT '',
	campaign      TEXT NOT NULL DEFAULT '',
	tags          TEXT NOT NULL DEFAULT '',
	daypart       TEXT NOT NULL DEFAULT '',
	spot_length   TEXT NOT NULL DEFAULT '',
	conversions   INTEGER NOT NULL DEFAULT 0,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_assets_status ON assets(status);
CREATE INDEX IF NOT EXISTS idx_assets_content_type ON assets(content_type);
CREATE INDEX IF NOT EXISTS idx_assets_created_at ON assets(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_flow_runs_flow ON flow_runs(flow);
CREATE INDEX IF NOT EXISTS idx_flow_runs_created_at ON flow_runs(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateAsset(ctx context.Context, a *model.Asset) error {
	doc, err := encodeAsset(a)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err = s.pool.Exec(ctx, sqlInsertAsset,
		a.ID, a.ContentSnID, a.Name, a.Creator, string(a.Type), a.Campaign,
		string(a.Status), string(a.ContentType), a.ContentScore, doc, createdAt, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return eris.Wrapf(ErrConflict, "postgres: insert asset %s", a.ContentSnID)
		}
		return eris.Wrap(err, "postgres: insert asset")
	}
	return nil
}

func (s *PostgresStore) GetAsset(ctx context.Context, id string) (*model.Asset, error) {
	a, err := scanPgAsset(s.pool.QueryRow(ctx, sqlGetAsset, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: asset %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get asset %s", id)
	}
	return a, nil
}

func (s *PostgresStore) ListAssets(ctx context.Context, filter AssetFilter) ([]model.Asset, error) {
	query := `SELECT data, status, content_type, content_score, created_at FROM assets WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Search != "" {
		query += fmt.Sprintf(` AND (name ILIKE $%d OR content_sn_id ILIKE $%d)`, argIdx, argIdx)
		args = append(args, likePattern(filter.Search))
		argIdx++
	}
	if len(filter.Statuses) > 0 {
		query += fmt.Sprintf(` AND status = ANY($%d)`, argIdx)
		args = append(args, statusStrings(filter.Statuses))
		argIdx++
	}
	if len(filter.ContentTypes) > 0 {
		query += fmt.Sprintf(` AND content_type = ANY($%d)`, argIdx)
		args = append(args, contentTypeStrings(filter.ContentTypes))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d`, argIdx)
	args = append(args, limitOf(filter.Limit))
	argIdx++
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list assets")
	}
	defer rows.Close()

	var assets []model.Asset
	for rows.Next() {
		a, err := scanPgAsset(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan asset")
		}
		assets = append(assets, *a)
	}
	return assets, eris.Wrap(rows.Err(), "postgres: list assets iterate")
}

func (s *PostgresStore) UpdateAssetStatus(ctx context.Context, id string, from, to model.AssetStatus) error {
	tag, err := s.pool.Exec(ctx, sqlMoveStatus, string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return eris.Wrapf(err, "postgres: update asset status %s", id)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := s.GetAsset(ctx, id); err != nil {
		return err
	}
	return eris.Wrapf(ErrConflict, "postgres: asset %s is no longer %q", id, from)
}

func (s *PostgresStore) UpdateAssetContentType(ctx context.Context, id string, ct model.AssetContentType) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE assets SET content_type = $1, updated_at = $2 WHERE id = $3`,
		string(ct), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update asset content type %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: asset %s", id)
	}
	return nil
}

func (s *PostgresStore) SetContentScore(ctx context.Context, id string, score float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE assets SET content_score = $1, updated_at = $2 WHERE id = $3`,
		score, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set content score %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: asset %s", id)
	}
	return nil
}

func (s *PostgresStore) RecordFlowRun(ctx context.Context, run model.FlowRun) error {
	_, err := s.pool.Exec(ctx, sqlInsertRun,
		run.ID, run.Flow, string(run.State), run.ErrorKind, run.Error, run.DurationMs,
		run.Usage.InputTokens, run.Usage.OutputTokens, run.Usage.CacheCreationTokens, run.Usage.CacheReadTokens,
		run.Usage.Cost, run.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert flow run %s", run.Flow)
}

func (s *PostgresStore) ListFlowRuns(ctx context.Context, filter FlowRunFilter) ([]model.FlowRun, error) {
	query := `SELECT id, flow, state, error_kind, error, duration_ms, input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens, cost_usd, created_at FROM flow_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Flow != "" {
		query += fmt.Sprintf(` AND flow = $%d`, argIdx)
		args = append(args, filter.Flow)
		argIdx++
	}
	if filter.State != "" {
		query += fmt.Sprintf(` AND state = $%d`, argIdx)
		args = append(args, string(filter.State))
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, limitOf(filter.Limit))
	argIdx++
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list flow runs")
	}
	defer rows.Close()

	var runs []model.FlowRun
	for rows.Next() {
		r, err := scanFlowRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan flow run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list flow runs iterate")
}

func (s *PostgresStore) UpsertPerformance(ctx context.Context, rows []model.AssetPerformance) (int64, error) {
	now := time.Now().UTC()
	data := make([][]any, 0, len(rows))
	for _, p := range rows {
		if p.ContentSnID == "" {
			return 0, eris.Errorf("postgres: performance row for %q has no contentSnId", p.Creator)
		}
		data = append(data, performanceRow(p, now))
	}
	n, err := db.BulkUpsert(ctx, s.pool, performanceUpsert, data)
	return n, eris.Wrap(err, "postgres: upsert performance")
}

func (s *PostgresStore) ListPerformance(ctx context.Context) ([]model.AssetPerformance, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT content_sn_id, creator, type, length, campaign, tags, daypart, spot_length, conversions FROM asset_performance ORDER BY creator, content_sn_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list performance")
	}
	defer rows.Close()

	var out []model.AssetPerformance
	for rows.Next() {
		p, err := scanPerformance(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan performance")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list performance iterate")
}

func scanPgAsset(row scannable) (*model.Asset, error) {
	var doc []byte
	var status, contentType string
	var score *float64
	var createdAt time.Time
	if err := row.Scan(&doc, &status, &contentType, &score, &createdAt); err != nil {
		return nil, err
	}
	return decodeAsset(doc, status, contentType, score, createdAt)
}
