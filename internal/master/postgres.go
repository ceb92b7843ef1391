package master

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/calder-retail/replenish-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS products (
	sku         TEXT PRIMARY KEY,
	supplier_id TEXT NOT NULL,
	moq         INTEGER NOT NULL DEFAULT 1,
	package     TEXT NOT NULL DEFAULT 'Single Unit',
	mxoq        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS markets (
	market_id TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id          TEXT PRIMARY KEY,
	run_date    TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	summary     JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_products_supplier ON products(supplier_id);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_run_date ON pipeline_runs(run_date);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_status ON pipeline_runs(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertProducts(ctx context.Context, products []model.Product) (int, error) {
	for _, p := range products {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO products (sku, supplier_id, moq, package, mxoq)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (sku) DO UPDATE SET
				supplier_id = EXCLUDED.supplier_id,
				moq = EXCLUDED.moq,
				package = EXCLUDED.package,
				mxoq = EXCLUDED.mxoq`,
			p.SKU, p.SupplierID, p.MOQ, p.Package, p.MxOQ)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: upsert product %s", p.SKU)
		}
	}
	return len(products), nil
}

func (s *PostgresStore) UpsertMarkets(ctx context.Context, marketIDs []string) (int, error) {
	for _, id := range marketIDs {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO markets (market_id) VALUES ($1) ON CONFLICT (market_id) DO NOTHING`, id)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: upsert market %s", id)
		}
	}
	return len(marketIDs), nil
}

func (s *PostgresStore) Products(ctx context.Context) ([]model.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sku, supplier_id, moq, package, mxoq FROM products ORDER BY sku`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query products")
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.SKU, &p.SupplierID, &p.MOQ, &p.Package, &p.MxOQ); err != nil {
			return nil, eris.Wrap(err, "postgres: scan product")
		}
		products = append(products, p)
	}
	return products, eris.Wrap(rows.Err(), "postgres: iterate products")
}

func (s *PostgresStore) Markets(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT market_id FROM markets ORDER BY market_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query markets")
	}
	defer rows.Close()

	var markets []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan market")
		}
		markets = append(markets, id)
	}
	return markets, eris.Wrap(rows.Err(), "postgres: iterate markets")
}

func (s *PostgresStore) CreateRun(ctx context.Context, runDate string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, run_date, status, created_at) VALUES ($1, $2, $3, $4)`,
		id, runDate, string(model.RunStatusRunning), now)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		RunDate:   runDate,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary) error {
	var summaryJSON any
	if summary != nil {
		data, err := json.Marshal(summary)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal summary")
		}
		summaryJSON = data
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE pipeline_runs SET status = $1, summary = $2, finished_at = $3 WHERE id = $4`,
		string(status), summaryJSON, time.Now().UTC(), runID)
	return eris.Wrap(err, "postgres: finish run")
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, run_date, status, summary, created_at, finished_at FROM pipeline_runs WHERE id = $1`, runID)

	run, err := scanPgRun(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: run %s not found", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get run")
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, run_date, status, summary, created_at, finished_at
		 FROM pipeline_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanPgRun(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func scanPgRun(scan func(dest ...any) error) (*model.Run, error) {
	var run model.Run
	var summaryJSON []byte
	var finished *time.Time

	if err := scan(&run.ID, &run.RunDate, &run.Status, &summaryJSON, &run.CreatedAt, &finished); err != nil {
		return nil, err
	}

	if len(summaryJSON) > 0 {
		var summary model.RunSummary
		if err := json.Unmarshal(summaryJSON, &summary); err != nil {
			return nil, eris.Wrap(err, "decode summary")
		}
		run.Summary = &summary
	}
	run.FinishedAt = finished
	return &run, nil
}
