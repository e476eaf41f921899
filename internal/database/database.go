package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mrlokans/annotator/internal/logging"
)

const slowQueryThreshold = 200 * time.Millisecond

// DB is the single handle to the embedded SQLite store. Construct it once
// at process start with Open and pass it to repositories.
//
// A DB returned by Transaction is bound to that transaction; all calls made
// through it are part of the same atomic unit.
type DB struct {
	gorm *gorm.DB
	log  logrus.FieldLogger
	inTx bool
}

type Options struct {
	// MaxOpenConns limits the connection pool. Zero keeps the driver default.
	MaxOpenConns int
}

// Open connects to the database file at path, enables foreign keys and
// applies migrations.
func Open(path string, log logrus.FieldLogger, opts ...Options) (*DB, error) {
	log = logging.Component(log, "database")

	gormLogger := logging.NewGormLogger(log, slowQueryThreshold).WithQuietErrors(IsConstraint)
	gdb, err := gorm.Open(sqlite.Open(DSN(path)), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{gorm: gdb, log: log}

	if len(opts) > 0 && opts[0].MaxOpenConns > 0 {
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(opts[0].MaxOpenConns)
	}

	if err := db.checkForeignKeys(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	if err := Migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.WithField("path", path).Info("database initialized")
	return db, nil
}

// DSN builds the mattn/go-sqlite3 connection string. Foreign keys are
// enabled per connection, so every pooled connection enforces them.
func DSN(path string) string {
	params := "_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return "file:" + path + "?" + params
}

func (d *DB) checkForeignKeys(ctx context.Context) error {
	row, ok, err := d.QueryOne(ctx, "PRAGMA foreign_keys")
	if err != nil {
		return fmt.Errorf("failed to read foreign_keys pragma: %w", err)
	}
	if !ok || asInt64(row["foreign_keys"]) != 1 {
		return fmt.Errorf("foreign key enforcement is not enabled")
	}
	return nil
}

// Gorm exposes the underlying handle for components that use GORM models
// directly (user accounts).
func (d *DB) Gorm() *gorm.DB {
	return d.gorm
}

// Logger returns the database component logger.
func (d *DB) Logger() logrus.FieldLogger {
	return d.log
}

// InTransaction reports whether d is bound to an open transaction.
func (d *DB) InTransaction() bool {
	return d.inTx
}

func (d *DB) Ping(ctx context.Context) error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *DB) Close() error {
	if d.inTx {
		return fmt.Errorf("cannot close a transaction-bound handle")
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
