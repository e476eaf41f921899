package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Row is one result row keyed by column name.
type Row = map[string]any

// Result reports the effect of a write.
type Result struct {
	RowsAffected int64
	LastInsertID int64
}

// Query runs a read statement and returns every row. Values are the
// driver's plain types: int64, float64, string, time.Time or nil.
func (d *DB) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := d.gorm.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, Classify(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, Classify(err)
	}

	result := []Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, Classify(err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify(err)
	}
	return result, nil
}

// QueryOne returns the first row. Zero rows is reported by ok=false, not
// by an error.
func (d *DB) QueryOne(ctx context.Context, query string, args ...any) (Row, bool, error) {
	rows, err := d.Query(ctx, query, args...)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// Select scans all rows into dest, a pointer to a slice.
func (d *DB) Select(ctx context.Context, dest any, query string, args ...any) error {
	if err := d.gorm.WithContext(ctx).Raw(query, args...).Scan(dest).Error; err != nil {
		return Classify(err)
	}
	return nil
}

// Get scans the first row into dest, a pointer to a struct. It reports
// whether a row was found.
func (d *DB) Get(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	res := d.gorm.WithContext(ctx).Raw(query, args...).Scan(dest)
	if res.Error != nil {
		return false, Classify(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Run executes a write statement. It goes to the connection pool directly,
// because GORM does not expose LastInsertId for raw statements.
func (d *DB) Run(ctx context.Context, query string, args ...any) (Result, error) {
	begin := time.Now()
	res, err := d.pool().ExecContext(ctx, query, args...)

	var out Result
	if err == nil {
		out.RowsAffected, _ = res.RowsAffected()
		out.LastInsertID, _ = res.LastInsertId()
	}
	d.gorm.Logger.Trace(ctx, begin, func() (string, int64) {
		return d.gorm.Dialector.Explain(query, args...), out.RowsAffected
	}, err)

	if err != nil {
		return Result{}, Classify(err)
	}
	return out, nil
}

func (d *DB) pool() gorm.ConnPool {
	return d.gorm.Statement.ConnPool
}

// Transaction runs fn atomically. If fn returns an error or panics, every
// write made through tx is rolled back; a panic is re-raised after
// rollback. Calling Transaction on a transaction-bound handle opens a
// savepoint inside the outer transaction.
func (d *DB) Transaction(ctx context.Context, fn func(tx *DB) error) error {
	err := d.gorm.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&DB{gorm: gtx, log: d.log, inTx: true})
	}, &sql.TxOptions{})
	if err != nil {
		return Classify(err)
	}
	return nil
}

// Count runs a COUNT(*) style query returning a single integer column.
func (d *DB) Count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := d.gorm.WithContext(ctx).Raw(query, args...).Scan(&n).Error; err != nil {
		return 0, fmt.Errorf("count: %w", Classify(err))
	}
	return n, nil
}
