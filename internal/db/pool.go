package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/buketp/UrbanFeed/internal/config"
)

var ErrNoRows = sql.ErrNoRows

// Options tune NewPool. The zero value migrates and discards gorm logs.
type Options struct {
	Logger      zerolog.Logger
	SkipMigrate bool
}

type CommandTag struct {
	rowsAffected int64
}

func (c CommandTag) RowsAffected() int64 {
	return c.rowsAffected
}

// Row and Rows wrap database/sql results so a nil pool degrades to ErrNoRows.
type Row struct {
	row *sql.Row
	err error
}

func (r *Row) Scan(dest ...any) error {
	switch {
	case r == nil:
		return ErrNoRows
	case r.err != nil:
		return r.err
	case r.row == nil:
		return ErrNoRows
	}
	return r.row.Scan(dest...)
}

type Rows struct {
	rows *sql.Rows
}

func (r *Rows) Next() bool {
	return r != nil && r.rows != nil && r.rows.Next()
}

func (r *Rows) Scan(dest ...any) error {
	if r == nil || r.rows == nil {
		return ErrNoRows
	}
	return r.rows.Scan(dest...)
}

func (r *Rows) Err() error {
	if r == nil || r.rows == nil {
		return nil
	}
	return r.rows.Err()
}

func (r *Rows) Close() {
	if r != nil && r.rows != nil {
		_ = r.rows.Close()
	}
}

// Querier is the raw SQL surface shared by the pool and a transaction.
type Querier interface {
	QueryRow(ctx context.Context, query string, args ...any) *Row
	Query(ctx context.Context, query string, args ...any) (*Rows, error)
	Exec(ctx context.Context, query string, args ...any) (CommandTag, error)
}

type Pool struct {
	gdb   *gorm.DB
	sqlDB *sql.DB
}

var _ Querier = (*Pool)(nil)

// NewPool opens the database, pings it and applies the schema unless told not to.
func NewPool(ctx context.Context, cfg *config.Config, opts Options) (*Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	gdb, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: newGormLogger(opts.Logger, cfg.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm database: %w", classifyError(err))
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get gorm sql db: %w", err)
	}

	maxOpen := int(cfg.DBMaxConns)
	if maxOpen <= 0 {
		maxOpen = 8
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(max(1, min(int(cfg.DBMinConns), maxOpen)))
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	pool := &Pool{gdb: gdb, sqlDB: sqlDB}
	if err := pool.Ping(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if opts.SkipMigrate {
		return pool, nil
	}
	if err := pool.autoMigrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("auto-migrate schema: %w", err)
	}
	return pool, nil
}

func (p *Pool) QueryRow(ctx context.Context, query string, args ...any) *Row {
	if p == nil || p.gdb == nil {
		return &Row{err: errNotInitialized}
	}
	return rawQueryRow(ctx, p.gdb, query, args...)
}

func (p *Pool) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	if p == nil || p.gdb == nil {
		return nil, errNotInitialized
	}
	return rawQuery(ctx, p.gdb, query, args...)
}

func (p *Pool) Exec(ctx context.Context, query string, args ...any) (CommandTag, error) {
	if p == nil || p.gdb == nil {
		return CommandTag{}, errNotInitialized
	}
	return rawExec(ctx, p.gdb, query, args...)
}

// WithTx runs fn in a transaction, committing when fn returns nil.
func (p *Pool) WithTx(ctx context.Context, fn func(tx Querier) error) error {
	if p == nil || p.gdb == nil {
		return errNotInitialized
	}
	return p.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txQuerier{db: tx})
	})
}

// Ping checks connectivity without running migrations.
func (p *Pool) Ping(ctx context.Context) error {
	if p == nil || p.sqlDB == nil {
		return errNotInitialized
	}
	if err := p.sqlDB.PingContext(ctx); err != nil {
		return classifyError(err)
	}
	return nil
}

func (p *Pool) Close() error {
	if p == nil || p.sqlDB == nil {
		return nil
	}
	return p.sqlDB.Close()
}

func (p *Pool) GORM() *gorm.DB {
	if p == nil {
		return nil
	}
	return p.gdb
}

func IsNoRows(err error) bool {
	return errors.Is(err, ErrNoRows)
}

var errNotInitialized = errors.New("database pool is not initialized")

type txQuerier struct {
	db *gorm.DB
}

func (t *txQuerier) QueryRow(ctx context.Context, q string, args ...any) *Row {
	return rawQueryRow(ctx, t.db, q, args...)
}

func (t *txQuerier) Query(ctx context.Context, q string, args ...any) (*Rows, error) {
	return rawQuery(ctx, t.db, q, args...)
}

func (t *txQuerier) Exec(ctx context.Context, q string, args ...any) (CommandTag, error) {
	return rawExec(ctx, t.db, q, args...)
}

func rawQueryRow(ctx context.Context, gdb *gorm.DB, q string, args ...any) *Row {
	return &Row{row: gdb.WithContext(ctx).Raw(q, args...).Row()}
}

func rawQuery(ctx context.Context, gdb *gorm.DB, q string, args ...any) (*Rows, error) {
	rows, err := gdb.WithContext(ctx).Raw(q, args...).Rows()
	if err != nil {
		return nil, err
	}
	return &Rows{rows: rows}, nil
}

func rawExec(ctx context.Context, gdb *gorm.DB, q string, args ...any) (CommandTag, error) {
	res := gdb.WithContext(ctx).Exec(q, args...)
	return CommandTag{rowsAffected: res.RowsAffected}, res.Error
}
