package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

type Options struct {
	Dialect string
	// DSN is required for postgres. For sqlite an empty DSN opens a private
	// in-memory database, or election.sqlite under DataDir when set.
	DSN     string
	DataDir string
}

// Database wraps the gorm handle shared by the SQL adapters.
type Database struct {
	DB      *gorm.DB
	Dialect string
}

func Open(opts Options) (*Database, error) {
	dialect := strings.ToLower(strings.TrimSpace(opts.Dialect))
	if dialect == "" {
		dialect = DialectSQLite
	}

	var dialector gorm.Dialector
	switch dialect {
	case DialectPostgres:
		if strings.TrimSpace(opts.DSN) == "" {
			return nil, errors.New("postgres dsn is required")
		}
		dialector = postgres.Open(opts.DSN)
	case DialectSQLite:
		dsn, err := sqliteDSN(opts)
		if err != nil {
			return nil, err
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", opts.Dialect)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm %s: %w", dialect, err)
	}
	if err := gdb.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("install gorm tracing: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve %s sql db handle: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// One writer at a time; transactions then serialize on the pool.
		sqlDB.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return &Database{DB: gdb, Dialect: dialect}, nil
}

func sqliteDSN(opts Options) (string, error) {
	if dsn := strings.TrimSpace(opts.DSN); dsn != "" {
		return dsn, nil
	}
	if opts.DataDir == "" {
		return fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), nil
	}
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(opts.DataDir, "election.sqlite")
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path), nil
}

func (d *Database) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
