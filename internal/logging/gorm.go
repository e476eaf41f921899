package logging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger adapts logrus to GORM's logger.Interface.
// SQL is logged at debug, slow queries and query errors at warn.
//
// Usage:
//
//	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
//	    Logger: logging.NewGormLogger(log, 200*time.Millisecond),
//	})
type GormLogger struct {
	log           logrus.FieldLogger
	slowThreshold time.Duration
	// Constraint failures are expected outcomes for callers that translate
	// them, so query errors matching this predicate are logged at debug.
	quiet func(error) bool
}

func NewGormLogger(log logrus.FieldLogger, slowThreshold time.Duration) *GormLogger {
	if log == nil {
		log = Discard()
	}
	return &GormLogger{log: log, slowThreshold: slowThreshold}
}

// WithQuietErrors returns a copy that demotes matching query errors to debug.
func (g *GormLogger) WithQuietErrors(pred func(error) bool) *GormLogger {
	cp := *g
	cp.quiet = pred
	return &cp
}

// LogMode returns the adapter itself; the level is owned by logrus.
func (g *GormLogger) LogMode(_ gormlogger.LogLevel) gormlogger.Interface {
	return g
}

func (g *GormLogger) Info(_ context.Context, msg string, data ...any) {
	g.log.Debug(fmt.Sprintf(msg, data...))
}

func (g *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	g.log.Warn(fmt.Sprintf(msg, data...))
}

func (g *GormLogger) Error(_ context.Context, msg string, data ...any) {
	g.log.Error(fmt.Sprintf(msg, data...))
}

func (g *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	entry := g.log.WithFields(logrus.Fields{
		"sql":           sql,
		"rows_affected": rows,
		"duration_ms":   elapsed.Milliseconds(),
	})

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		if g.quiet != nil && g.quiet(err) {
			entry.WithError(err).Debug("query rejected")
			return
		}
		entry.WithError(err).Warn("query error")
	case g.slowThreshold > 0 && elapsed > g.slowThreshold:
		entry.WithField("threshold", g.slowThreshold).Warn("slow query")
	default:
		entry.Debug("sql query")
	}
}
