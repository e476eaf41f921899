package schema

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

type Record map[string]any

type Options struct {
	// Partial checks only the supplied fields. Used for updates.
	Partial bool
}

type Result struct {
	Valid  bool
	Errors []string
}

// Validate checks rec against the entity's table. It never panics and
// reports every problem found, in column order.
func Validate(entity string, rec Record, opts Options) Result {
	table, ok := Lookup(entity)
	if !ok {
		return Result{Errors: []string{fmt.Sprintf("unknown entity %q", entity)}}
	}

	var problems []string
	if id, present := rec[table.PrimaryKey]; present && !isNil(id) {
		if n, ok := coerce(Integer, id); !ok {
			problems = append(problems, fmt.Sprintf("%s must be an integer, got %T", table.PrimaryKey, id))
		} else if msg := positive(n); msg != "" {
			problems = append(problems, fmt.Sprintf("%s %s", table.PrimaryKey, msg))
		}
	}
	for _, col := range table.Columns {
		value, present := rec[col.Name]
		if !present {
			if !opts.Partial && col.Required() {
				problems = append(problems, fmt.Sprintf("%s is required", col.Name))
			}
			continue
		}
		if isNil(value) {
			if !col.Nullable {
				problems = append(problems, fmt.Sprintf("%s must not be null", col.Name))
			}
			continue
		}
		normalized, ok := coerce(col.Type, value)
		if !ok {
			problems = append(problems, fmt.Sprintf("%s must be %s, got %T", col.Name, article(col.Type), value))
			continue
		}
		if col.Check != nil {
			if msg := safeCheck(col.Check, normalized); msg != "" {
				problems = append(problems, fmt.Sprintf("%s %s", col.Name, msg))
			}
		}
	}

	for _, key := range unknownKeys(table, rec) {
		problems = append(problems, fmt.Sprintf("unknown field %s", key))
	}

	return Result{Valid: len(problems) == 0, Errors: problems}
}

func unknownKeys(table Table, rec Record) []string {
	var unknown []string
	for key := range rec {
		if _, ok := table.Column(key); !ok {
			unknown = append(unknown, key)
		}
	}
	slices.Sort(unknown)
	return unknown
}

func safeCheck(check Check, value any) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg = fmt.Sprintf("could not be checked: %v", r)
		}
	}()
	return check(value)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

// coerce converts value into the canonical Go type of the column type:
// int64 for Integer, float64 for Real, string for Text, time.Time for
// Datetime. Pointers are dereferenced.
func coerce(t ColumnType, value any) (any, bool) {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}

	switch t {
	case Integer:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int(), true
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			u := rv.Uint()
			if u > math.MaxInt64 {
				return nil, false
			}
			return int64(u), true
		case reflect.Float32, reflect.Float64:
			f := rv.Float()
			if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
				return nil, false
			}
			return int64(f), true
		}
	case Real:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return float64(rv.Int()), true
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return float64(rv.Uint()), true
		case reflect.Float32, reflect.Float64:
			return rv.Float(), true
		}
	case Text:
		if rv.Kind() == reflect.String {
			return rv.String(), true
		}
	case Datetime:
		if tm, ok := rv.Interface().(time.Time); ok {
			return tm, true
		}
		if rv.Kind() == reflect.String {
			if tm, ok := ParseTime(rv.String()); ok {
				return tm, true
			}
		}
	}
	return nil, false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime accepts RFC 3339 and SQLite CURRENT_TIMESTAMP layouts.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if tm, err := time.Parse(layout, s); err == nil {
			return tm, true
		}
	}
	return time.Time{}, false
}

func article(t ColumnType) string {
	switch t {
	case Integer:
		return "an integer"
	case Real:
		return "a number"
	case Text:
		return "a string"
	default:
		return "a datetime"
	}
}

func nonBlank(v any) string {
	if strings.TrimSpace(v.(string)) == "" {
		return "must not be empty"
	}
	return ""
}

func positive(v any) string {
	if v.(int64) <= 0 {
		return "must be greater than 0"
	}
	return ""
}

func imageMime(v any) string {
	if !strings.HasPrefix(strings.ToLower(v.(string)), ImageMimePrefix) {
		return fmt.Sprintf("must start with %q", ImageMimePrefix)
	}
	return ""
}

// labelName keeps names safe for the comma separated labels column of the
// interchange format and for the control-character separators used when
// aggregating labels per image.
func labelName(v any) string {
	name := NormalizeLabelName(v.(string))
	n := utf8.RuneCountInString(name)
	if n == 0 {
		return "must not be empty"
	}
	if n > MaxLabelNameLength {
		return fmt.Sprintf("must be at most %d characters", MaxLabelNameLength)
	}
	if strings.ContainsRune(name, LabelSeparator) {
		return fmt.Sprintf("must not contain %q", LabelSeparator)
	}
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return "must not contain control characters"
	}
	return ""
}

func confidence(v any) string {
	f := v.(float64)
	if math.IsNaN(f) || f < 0 || f > 1 {
		return "must be between 0.0 and 1.0"
	}
	return ""
}
