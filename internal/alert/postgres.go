package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bimmerbailey/logwarden/internal/anomaly"
	"github.com/bimmerbailey/logwarden/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultFindingsTable = "logwarden_findings"

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres inserts findings into a table, creating it on first use.
type Postgres struct {
	db     execer
	table  string
	closer func()

	mu    sync.Mutex
	ready bool
}

// NewPostgres connects a pool to cfg.DSN. The connection itself is lazy;
// an unreachable server surfaces on the first SendAlert.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres: dsn is required")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: unable to create pool: %w", err)
	}
	return newPostgres(pool, cfg.Table, pool.Close), nil
}

func newPostgres(db execer, table string, closer func()) *Postgres {
	if table == "" {
		table = defaultFindingsTable
	}
	return &Postgres{
		db:     db,
		table:  pgx.Identifier{table}.Sanitize(),
		closer: closer,
	}
}

func (p *Postgres) ensureTable(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready {
		return nil
	}
	_, err := p.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+p.table+` (
	id          BIGSERIAL PRIMARY KEY,
	detected_at TIMESTAMPTZ NOT NULL,
	severity    TEXT NOT NULL,
	rule        TEXT NOT NULL,
	source      TEXT,
	details     JSONB
)`)
	if err != nil {
		return fmt.Errorf("postgres: create table %s: %w", p.table, err)
	}
	p.ready = true
	return nil
}

// SendAlert inserts f.
func (p *Postgres) SendAlert(ctx context.Context, f anomaly.Finding) error {
	if err := p.ensureTable(ctx); err != nil {
		return err
	}
	_, err := p.db.Exec(ctx,
		`INSERT INTO `+p.table+` (detected_at, severity, rule, source, details) VALUES ($1, $2, $3, $4, $5)`,
		f.Time, string(f.Severity), f.Rule, f.Source(), f.DetailsText())
	if err != nil {
		return fmt.Errorf("postgres: insert: %w", err)
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	if p.closer != nil {
		p.closer()
	}
	return nil
}
