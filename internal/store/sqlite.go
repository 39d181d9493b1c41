package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/contentmix/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS assets (
	id            TEXT PRIMARY KEY,
	content_sn_id TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL DEFAULT '',
	creator       TEXT NOT NULL DEFAULT '',
	type          TEXT NOT NULL DEFAULT '',
	campaign      TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'New',
	content_type  TEXT NOT NULL DEFAULT 'Branded',
	content_score REAL,
	data          TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS flow_runs (
	id                    TEXT PRIMARY KEY,
	flow                  TEXT NOT NULL,
	state                 TEXT NOT NULL,
	error_kind            TEXT NOT NULL DEFAULT '',
	error                 TEXT NOT NULL DEFAULT '',
	duration_ms           INTEGER NOT NULL DEFAULT 0,
	input_tokens          INTEGER NOT NULL DEFAULT 0,
	output_tokens         INTEGER NOT NULL DEFAULT 0,
	cache_creation_tokens INTEGER NOT NULL DEFAULT 0,
	cache_read_tokens     INTEGER NOT NULL DEFAULT 0,
	cost_usd              REAL NOT NULL DEFAULT 0,
	created_at            DATETIME NOT NULL DEFAULT (datetime('now'))
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
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_assets_status ON assets(status);
CREATE INDEX IF NOT EXISTS idx_assets_content_type ON assets(content_type);
CREATE INDEX IF NOT EXISTS idx_assets_created_at ON assets(created_at);
CREATE INDEX IF NOT EXISTS idx_flow_runs_flow ON flow_runs(flow);
CREATE INDEX IF NOT EXISTS idx_flow_runs_created_at ON flow_runs(created_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateAsset(ctx context.Context, a *model.Asset) error {
	doc, err := encodeAsset(a)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO assets (id, content_sn_id, name, creator, type, campaign, status, content_type, content_score, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ContentSnID, a.Name, a.Creator, string(a.Type), a.Campaign,
		string(a.Status), string(a.ContentType), a.ContentScore, string(doc), createdAt, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return eris.Wrapf(ErrConflict, "sqlite: insert asset %s", a.ContentSnID)
		}
		return eris.Wrap(err, "sqlite: insert asset")
	}
	return nil
}

func (s *SQLiteStore) GetAsset(ctx context.Context, id string) (*model.Asset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data, status, content_type, content_score, created_at FROM assets WHERE id = ?`, id,
	)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: asset %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get asset %s", id)
	}
	return a, nil
}

func (s *SQLiteStore) ListAssets(ctx context.Context, filter AssetFilter) ([]model.Asset, error) {
	query := `SELECT data, status, content_type, content_score, created_at FROM assets WHERE 1=1`
	var args []any

	if filter.Search != "" {
		query += ` AND (name LIKE ? ESCAPE '\' OR content_sn_id LIKE ? ESCAPE '\')`
		p := likePattern(filter.Search)
		args = append(args, p, p)
	}
	if len(filter.Statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(filter.Statuses)) + `)`
		for _, st := range statusStrings(filter.Statuses) {
			args = append(args, st)
		}
	}
	if len(filter.ContentTypes) > 0 {
		query += ` AND content_type IN (` + placeholders(len(filter.ContentTypes)) + `)`
		for _, ct := range contentTypeStrings(filter.ContentTypes) {
			args = append(args, ct)
		}
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limitOf(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list assets")
	}
	defer rows.Close() //nolint:errcheck

	var assets []model.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan asset")
		}
		assets = append(assets, *a)
	}
	return assets, eris.Wrap(rows.Err(), "sqlite: list assets iterate")
}

func (s *SQLiteStore) UpdateAssetStatus(ctx context.Context, id string, from, to model.AssetStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assets SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), time.Now().UTC(), id, string(from),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update asset status %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n > 0 {
		return nil
	}
	if _, err := s.GetAsset(ctx, id); err != nil {
		return err
	}
	return eris.Wrapf(ErrConflict, "sqlite: asset %s is no longer %q", id, from)
}

func (s *SQLiteStore) UpdateAssetContentType(ctx context.Context, id string, ct model.AssetContentType) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assets SET content_type = ?, updated_at = ? WHERE id = ?`,
		string(ct), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update asset content type %s", id)
	}
	return checkRowsAffected(res, "asset", id)
}

func (s *SQLiteStore) SetContentScore(ctx context.Context, id string, score float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assets SET content_score = ?, updated_at = ? WHERE id = ?`,
		score, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set content score %s", id)
	}
	return checkRowsAffected(res, "asset", id)
}

func (s *SQLiteStore) RecordFlowRun(ctx context.Context, run model.FlowRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO flow_runs (id, flow, state, error_kind, error, duration_ms, input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens, cost_usd, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Flow, string(run.State), run.ErrorKind, run.Error, run.DurationMs,
		run.Usage.InputTokens, run.Usage.OutputTokens, run.Usage.CacheCreationTokens, run.Usage.CacheReadTokens,
		run.Usage.Cost, run.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert flow run %s", run.Flow)
}

func (s *SQLiteStore) ListFlowRuns(ctx context.Context, filter FlowRunFilter) ([]model.FlowRun, error) {
	query := `SELECT id, flow, state, error_kind, error, duration_ms, input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens, cost_usd, created_at
		FROM flow_runs WHERE 1=1`
	var args []any

	if filter.Flow != "" {
		query += ` AND flow = ?`
		args = append(args, filter.Flow)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limitOf(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list flow runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.FlowRun
	for rows.Next() {
		r, err := scanFlowRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan flow run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list flow runs iterate")
}

func (s *SQLiteStore) UpsertPerformance(ctx context.Context, rows []model.AssetPerformance) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin performance upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO asset_performance (content_sn_id, creator, type, length, campaign, tags, daypart, spot_length, conversions, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (content_sn_id) DO UPDATE SET
			creator = excluded.creator, type = excluded.type, length = excluded.length,
			campaign = excluded.campaign, tags = excluded.tags, daypart = excluded.daypart,
			spot_length = excluded.spot_length, conversions = excluded.conversions,
			updated_at = excluded.updated_at`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare performance upsert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	var n int64
	for _, p := range rows {
		if p.ContentSnID == "" {
			return 0, eris.Errorf("sqlite: performance row for %q has no contentSnId", p.Creator)
		}
		if _, err := stmt.ExecContext(ctx, performanceRow(p, now)...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert performance %s", p.ContentSnID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit performance upsert")
	}
	return n, nil
}

func (s *SQLiteStore) ListPerformance(ctx context.Context) ([]model.AssetPerformance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content_sn_id, creator, type, length, campaign, tags, daypart, spot_length, conversions
		 FROM asset_performance ORDER BY creator, content_sn_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list performance")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.AssetPerformance
	for rows.Next() {
		p, err := scanPerformance(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan performance")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list performance iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAsset(row scannable) (*model.Asset, error) {
	var doc, status, contentType string
	var score sql.NullFloat64
	var createdAt time.Time
	if err := row.Scan(&doc, &status, &contentType, &score, &createdAt); err != nil {
		return nil, err
	}
	var sp *float64
	if score.Valid {
		sp = &score.Float64
	}
	return decodeAsset([]byte(doc), status, contentType, sp, createdAt)
}

func scanFlowRun(row scannable) (*model.FlowRun, error) {
	var r model.FlowRun
	var state string
	err := row.Scan(&r.ID, &r.Flow, &state, &r.ErrorKind, &r.Error, &r.DurationMs,
		&r.Usage.InputTokens, &r.Usage.OutputTokens, &r.Usage.CacheCreationTokens, &r.Usage.CacheReadTokens,
		&r.Usage.Cost, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.State = model.FlowState(state)
	return &r, nil
}

func scanPerformance(row scannable) (model.AssetPerformance, error) {
	var p model.AssetPerformance
	err := row.Scan(&p.ContentSnID, &p.Creator, &p.Type, &p.Length, &p.Campaign, &p.Tags, &p.Daypart, &p.SpotLength, &p.Conversions)
	return p, err
}

// performanceRow orders p's fields to match the asset_performance columns.
func performanceRow(p model.AssetPerformance, at time.Time) []any {
	return []any{p.ContentSnID, p.Creator, p.Type, p.Length, p.Campaign, p.Tags, p.Daypart, p.SpotLength, p.Conversions, at}
}
