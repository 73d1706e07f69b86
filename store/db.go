package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the tables used by the sink
const Schema = `
CREATE TABLE IF NOT EXISTS outcome_runs (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	result      TEXT NOT NULL,
	scenarios   INTEGER NOT NULL,
	duration    DOUBLE PRECISION NOT NULL
);
CREATE TABLE IF NOT EXISTS outcome_scenarios (
	id              SERIAL PRIMARY KEY,
	run_id          TEXT NOT NULL REFERENCES outcome_runs (id) ON DELETE CASCADE,
	name            TEXT NOT NULL,
	test_case       TEXT NOT NULL,
	title           TEXT NOT NULL,
	qualifier       TEXT NOT NULL,
	result          TEXT NOT NULL,
	manual          BOOLEAN NOT NULL,
	runtime         DOUBLE PRECISION NOT NULL,
	failure_type    TEXT NOT NULL,
	failure_message TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS outcome_rows (
	scenario_id INTEGER NOT NULL REFERENCES outcome_scenarios (id) ON DELETE CASCADE,
	row_index   INTEGER NOT NULL,
	vals        TEXT[] NOT NULL,
	result      TEXT NOT NULL,
	PRIMARY KEY (scenario_id, row_index)
);
`

type Run struct {
	ID        string
	StartedAt time.Time
	Result    string
	Scenarios int
	Duration  float64
}

type Scenario struct {
	ID             int
	RunID          string
	Name           string
	TestCase       string
	Title          string
	Qualifier      string
	Result         string
	Manual         bool
	Runtime        float64
	FailureType    string
	FailureMessage string
}

type Row struct {
	ScenarioID int
	Index      int
	Values     []string
	Result     string
}

type Connection interface {
	LastRun(ctx context.Context) (*Run, error)

	Begin(ctx context.Context) (Transactor, error)
	Close() error
}

type Transactor interface {
	InsertRun(ctx context.Context, r Run) error
	InsertScenario(ctx context.Context, s Scenario) (int, error)
	InsertRow(ctx context.Context, r Row) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type PGXDB struct {
	log  log.Logger
	conn *pgxpool.Pool
}

var _ Connection = (*PGXDB)(nil)

func New(ctx context.Context, logger log.Logger, uri string) (*PGXDB, error) {
	conn, err := pgxpool.New(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	return &PGXDB{log: logger, conn: conn}, nil
}

// Migrate creates any missing table
func (p *PGXDB) Migrate(ctx context.Context) error {
	if _, err := p.conn.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (p *PGXDB) LastRun(ctx context.Context) (*Run, error) {
	sql := `
SELECT id, started_at, result, scenarios, duration
FROM outcome_runs ORDER BY started_at DESC LIMIT 1
`

	row := p.conn.QueryRow(ctx, sql)
	var r Run
	if err := row.Scan(&r.ID, &r.StartedAt, &r.Result, &r.Scenarios, &r.Duration); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get last run: %w", err)
	}
	return &r, nil
}

func (p *PGXDB) Begin(ctx context.Context) (Transactor, error) {
	tx, err := p.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &PGXTransactor{tx: tx}, nil
}

func (p *PGXDB) Close() error {
	p.conn.Close()
	return nil
}

type PGXTransactor struct {
	tx  pgx.Tx
	mtx sync.Mutex
}

func (p *PGXTransactor) InsertRun(ctx context.Context, r Run) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	type queryPkg struct {
		query string
		args  []any
	}

	queries := []queryPkg{
		{
			"DELETE FROM outcome_runs WHERE id = $1",
			[]any{r.ID},
		},
		{
			`INSERT INTO outcome_runs (id, started_at, result, scenarios, duration)
VALUES ($1, $2, $3, $4, $5)`,
			[]any{
				r.ID,
				r.StartedAt,
				r.Result,
				r.Scenarios,
				r.Duration,
			},
		},
	}

	for i, q := range queries {
		if _, err := p.tx.Exec(ctx,
			q.query,
			q.args...,
		); err != nil {
			return fmt.Errorf("failed to insert run: query %d: %w", i, err)
		}
	}

	return nil
}

func (p *PGXTransactor) InsertScenario(ctx context.Context, s Scenario) (int, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	sql := `
INSERT INTO outcome_scenarios (run_id, name, test_case, title, qualifier, result, manual, runtime, failure_type, failure_message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id
`

	row := p.tx.QueryRow(ctx,
		sql,
		s.RunID,
		s.Name,
		s.TestCase,
		s.Title,
		s.Qualifier,
		s.Result,
		s.Manual,
		s.Runtime,
		s.FailureType,
		s.FailureMessage,
	)
	var id int
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert scenario: %w", err)
	}
	return id, nil
}

func (p *PGXTransactor) InsertRow(ctx context.Context, r Row) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	sql := `
INSERT INTO outcome_rows (scenario_id, row_index, vals, result)
VALUES ($1, $2, $3, $4)
`

	if _, err := p.tx.Exec(ctx,
		sql,
		r.ScenarioID,
		r.Index,
		r.Values,
		r.Result,
	); err != nil {
		return fmt.Errorf("failed to insert row: %w", err)
	}
	return nil
}

func (p *PGXTransactor) Commit(ctx context.Context) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.tx.Commit(ctx)
}

// Rollback aborts the transaction. It does not use ctx, which is usually
// the one that failed the transaction in the first place.
func (p *PGXTransactor) Rollback(_ context.Context) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if err := p.tx.Rollback(context.Background()); err != nil {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}
