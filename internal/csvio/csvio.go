// Package csvio reads and writes the dataset interchange format: one row
// per image, with label names and confidences as comma-joined lists inside
// single quoted fields.
//
//	image_id,filename,original_name,file_path,file_size,mime_type,labels,confidences,created_by,updated_by,uploaded_at,updated_at
//	1,a.jpg,cat.jpg,uploads/a.jpg,2048,image/jpeg,"cat,dog","0.9000,1.0000",alice,,2024-05-01 10:00:00,2024-05-01 10:00:00
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mrlokans/annotator/internal/entities"
	"github.com/mrlokans/annotator/internal/schema"
)

const (
	ColImageID      = "image_id"
	ColFilename     = "filename"
	ColOriginalName = "original_name"
	ColFilePath     = "file_path"
	ColFileSize     = "file_size"
	ColMimeType     = "mime_type"
	ColLabels       = "labels"
	ColConfidences  = "confidences"
	ColCreatedBy    = "created_by"
	ColUpdatedBy    = "updated_by"
	ColUploadedAt   = "uploaded_at"
	ColUpdatedAt    = "updated_at"
)

// Header is the column order written by Writer.
var Header = []string{
	ColImageID, ColFilename, ColOriginalName, ColFilePath, ColFileSize, ColMimeType,
	ColLabels, ColConfidences, ColCreatedBy, ColUpdatedBy, ColUploadedAt, ColUpdatedAt,
}

// RequiredColumns must be present in an import header.
var RequiredColumns = []string{ColFilename, ColOriginalName, ColFilePath, ColFileSize, ColMimeType}

// ConfidencePrecision is the number of decimals written for confidences.
const ConfidencePrecision = 4

const timestampLayout = "2006-01-02 15:04:05"

// listSep may not occur in label names, so the labels column splits back
// into the names that were written.
const listSep = string(schema.LabelSeparator)

// RowError reports a row that could not be read. Reading can continue.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Record is one data row addressed by column name.
type Record struct {
	Line   int
	values map[string]string
}

// Get returns the trimmed value of column, or "" when absent.
func (r Record) Get(column string) string {
	return strings.TrimSpace(r.values[column])
}

// Has reports whether the header declared column.
func (r Record) Has(column string) bool {
	_, ok := r.values[column]
	return ok
}

// NewRecord builds a record from column values. Used by tests and callers
// that assemble rows themselves.
func NewRecord(line int, values map[string]string) Record {
	return Record{Line: line, values: values}
}

type Reader struct {
	csv    *csv.Reader
	header []string
}

func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // Field count is checked per row against the header
	return &Reader{csv: cr}
}

// ReadHeader consumes the header row and checks required columns. Any
// error here is fatal for the whole input.
func (r *Reader) ReadHeader() error {
	header, err := r.csv.Read()
	if err == io.EOF {
		return fmt.Errorf("input is empty")
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	seen := make(map[string]bool, len(header))
	r.header = make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		name := strings.ToLower(strings.TrimSpace(h))
		if seen[name] {
			return fmt.Errorf("duplicate header: %s", name)
		}
		seen[name] = true
		r.header[i] = name
	}

	for _, col := range RequiredColumns {
		if !seen[col] {
			return fmt.Errorf("missing required header: %s", col)
		}
	}
	return nil
}

// Columns returns the normalized header.
func (r *Reader) Columns() []string {
	return r.header
}

// Next returns the next row. It returns io.EOF at the end of input and a
// *RowError for rows that are malformed, after which reading may continue.
func (r *Reader) Next() (Record, error) {
	fields, err := r.csv.Read()
	if err == io.EOF {
		return Record{}, io.EOF
	}

	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return Record{}, &RowError{Line: perr.StartLine, Err: perr.Err}
		}
		return Record{}, err
	}

	line, _ := r.csv.FieldPos(0)
	if len(fields) != len(r.header) {
		return Record{}, &RowError{
			Line: line,
			Err:  fmt.Errorf("expected %d columns, got %d", len(r.header), len(fields)),
		}
	}

	values := make(map[string]string, len(fields))
	for i, v := range fields {
		values[r.header[i]] = v
	}
	return Record{Line: line, values: values}, nil
}

type Writer struct {
	csv *csv.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

func (w *Writer) WriteHeader() error {
	return w.csv.Write(Header)
}

// WriteImage writes one image row in Header order.
func (w *Writer) WriteImage(img entities.ImageWithLabels) error {
	confidences := make([]string, len(img.Confidences))
	for i, c := range img.Confidences {
		confidences[i] = FormatConfidence(c)
	}

	return w.csv.Write([]string{
		strconv.FormatInt(img.ID, 10),
		img.Filename,
		img.OriginalName,
		img.FilePath,
		strconv.FormatInt(img.FileSize, 10),
		img.MimeType,
		strings.Join(img.Labels, listSep),
		strings.Join(confidences, listSep),
		deref(img.CreatedBy),
		deref(img.UpdatedBy),
		formatTime(img.UploadedAt),
		formatTime(img.UpdatedAt),
	})
}

// Flush writes buffered rows and reports any write error.
func (w *Writer) Flush() error {
	w.csv.Flush()
	return w.csv.Error()
}

func FormatConfidence(c float64) string {
	return strconv.FormatFloat(c, 'f', ConfidencePrecision, 64)
}

// SplitList splits a comma-joined list, trimming items and dropping
// empty ones.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, listSep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// LabelConfidence is one entry of a row's label list.
type LabelConfidence struct {
	Name       string
	Confidence *float64 // nil when the row gave none
}

// ParseLabels pairs the labels and confidences lists by position. Empty
// label entries are dropped along with their confidence; a confidence
// without a label is an error.
func ParseLabels(labels, confidences string) ([]LabelConfidence, error) {
	confs, err := ParseConfidences(confidences)
	if err != nil {
		return nil, err
	}

	var names []string
	if strings.TrimSpace(labels) != "" {
		names = strings.Split(labels, listSep)
	}
	if len(confs) > len(names) {
		for _, c := range confs[len(names):] {
			if c != nil {
				return nil, fmt.Errorf("%d confidences given for %d labels", len(confs), len(names))
			}
		}
	}

	var out []LabelConfidence
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		lc := LabelConfidence{Name: name}
		if i < len(confs) {
			lc.Confidence = confs[i]
		}
		out = append(out, lc)
	}
	return out, nil
}

// ParseConfidences parses a comma-joined list of numbers. Empty items are
// kept as positions so they line up with the label list; they are reported
// as nil.
func ParseConfidences(s string) ([]*float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	items := strings.Split(s, listSep)
	out := make([]*float64, len(items))
	for i, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		f, err := strconv.ParseFloat(item, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid confidence %q", item)
		}
		out[i] = &f
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}
