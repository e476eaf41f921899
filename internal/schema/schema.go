// Package schema declares the dataset tables and validates candidate
// records against them before any write.
//
// Validation is pure: it reads only the table registry and never touches
// the database.
//
//	res := schema.Validate(schema.Images, schema.Record{"filename": "a.jpg"}, schema.Options{Partial: true})
//	if !res.Valid {
//	    // res.Errors lists one message per problem
//	}
package schema

import "strings"

type ColumnType string

const (
	Integer  ColumnType = "integer"
	Real     ColumnType = "real"
	Text     ColumnType = "text"
	Datetime ColumnType = "datetime"
)

// Entity names, equal to the table names.
const (
	Images      = "images"
	Labels      = "labels"
	Annotations = "annotations"
)

const (
	MaxLabelNameLength = 100
	ImageMimePrefix    = "image/"
	DefaultConfidence  = 1.0
)

// Check returns a problem description, or "" when the value is acceptable.
// It is only called with non-nil values of the column's type.
type Check func(value any) string

type Column struct {
	Name       string
	Type       ColumnType
	Nullable   bool
	Unique     bool
	HasDefault bool
	Check      Check
}

// Required reports whether a full (create) record must carry the column.
func (c Column) Required() bool {
	return !c.Nullable && !c.HasDefault
}

type Table struct {
	Name       string
	PrimaryKey string
	Columns    []Column
}

// Column returns the named column, including the primary key.
func (t Table) Column(name string) (Column, bool) {
	if name == t.PrimaryKey {
		return Column{Name: name, Type: Integer, HasDefault: true}, true
	}
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the primary key followed by the declared columns.
func (t Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns)+1)
	names = append(names, t.PrimaryKey)
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}

var tables = map[string]Table{
	Images: {
		Name:       Images,
		PrimaryKey: "image_id",
		Columns: []Column{
			{Name: "filename", Type: Text, Unique: true, Check: nonBlank},
			{Name: "original_name", Type: Text, Check: nonBlank},
			{Name: "file_path", Type: Text, Check: nonBlank},
			{Name: "file_size", Type: Integer, Check: positive},
			{Name: "mime_type", Type: Text, Check: imageMime},
			{Name: "created_by", Type: Text, Nullable: true},
			{Name: "updated_by", Type: Text, Nullable: true},
			{Name: "uploaded_at", Type: Datetime, HasDefault: true},
			{Name: "updated_at", Type: Datetime, HasDefault: true},
		},
	},
	Labels: {
		Name:       Labels,
		PrimaryKey: "label_id",
		Columns: []Column{
			{Name: "label_name", Type: Text, Unique: true, Check: labelName},
			{Name: "label_description", Type: Text, Nullable: true},
			{Name: "created_at", Type: Datetime, HasDefault: true},
		},
	},
	Annotations: {
		Name:       Annotations,
		PrimaryKey: "annotation_id",
		Columns: []Column{
			{Name: "image_id", Type: Integer, Check: positive},
			{Name: "label_id", Type: Integer, Check: positive},
			{Name: "confidence", Type: Real, HasDefault: true, Check: confidence},
			{Name: "created_at", Type: Datetime, HasDefault: true},
		},
	},
}

// Lookup returns the table definition for an entity.
func Lookup(entity string) (Table, bool) {
	t, ok := tables[entity]
	return t, ok
}

// MustLookup is Lookup for the built-in entity names.
func MustLookup(entity string) Table {
	t, ok := tables[entity]
	if !ok {
		panic("schema: unknown entity " + entity)
	}
	return t
}

// LabelSeparator joins label names in the labels column of the CSV
// interchange format, so it may not appear inside a name.
const LabelSeparator = ','

// NormalizeLabelName trims surrounding whitespace.
func NormalizeLabelName(name string) string {
	return strings.TrimSpace(name)
}
