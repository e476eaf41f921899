package database

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout matches SQLite's CURRENT_TIMESTAMP text form.
const TimestampLayout = "2006-01-02 15:04:05"

// Timestamp formats t the way CURRENT_TIMESTAMP stores it, in UTC, so
// explicit and defaulted values sort together.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// BuildUpdate renders an UPDATE for the patch keys found in allowed, in
// allowed order. It returns an empty statement when nothing applies and an
// error for keys outside allowed.
func BuildUpdate(table, keyColumn string, id int64, patch map[string]any, allowed []string) (string, []any, error) {
	permitted := make(map[string]bool, len(allowed))
	for _, col := range allowed {
		permitted[col] = true
	}
	for col := range patch {
		if !permitted[col] {
			return "", nil, fmt.Errorf("column %s cannot be updated on %s", col, table)
		}
	}

	var sets []string
	var args []any
	for _, col := range allowed {
		value, ok := patch[col]
		if !ok {
			continue
		}
		sets = append(sets, col+" = ?")
		args = append(args, value)
	}
	if len(sets) == 0 {
		return "", nil, nil
	}

	args = append(args, id)
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", table, strings.Join(sets, ", "), keyColumn)
	return stmt, args, nil
}

// EscapeLike escapes LIKE wildcards; use with ESCAPE '\'.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
