package schema

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validImage() Record {
	return Record{
		"filename":      "a.jpg",
		"original_name": "cat photo.jpg",
		"file_path":     "uploads/a.jpg",
		"file_size":     int64(1024),
		"mime_type":     "image/jpeg",
	}
}

func TestValidate_FullImage(t *testing.T) {
	res := Validate(Images, validImage(), Options{})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	res := Validate(Images, Record{"filename": "a.jpg"}, Options{})

	assert.False(t, res.Valid)
	assert.Equal(t, []string{
		"original_name is required",
		"file_path is required",
		"file_size is required",
		"mime_type is required",
	}, res.Errors)
}

func TestValidate_PartialChecksOnlySuppliedFields(t *testing.T) {
	res := Validate(Images, Record{"original_name": "renamed.jpg"}, Options{Partial: true})
	assert.True(t, res.Valid)

	res = Validate(Images, Record{"file_size": 0}, Options{Partial: true})
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"file_size must be greater than 0"}, res.Errors)
}

func TestValidate_Types(t *testing.T) {
	tests := []struct {
		name   string
		entity string
		rec    Record
		valid  bool
	}{
		{"int accepted for integer", Images, Record{"file_size": 10}, true},
		{"integral float accepted for integer", Images, Record{"file_size": 10.0}, true},
		{"fractional float rejected for integer", Images, Record{"file_size": 10.5}, false},
		{"string rejected for integer", Images, Record{"file_size": "10"}, false},
		{"int accepted for real", Annotations, Record{"confidence": 1}, true},
		{"string rejected for real", Annotations, Record{"confidence": "0.5"}, false},
		{"number rejected for text", Labels, Record{"label_name": 5}, false},
		{"pointer to string accepted", Labels, Record{"label_name": ptr("dog")}, true},
		{"time accepted for datetime", Images, Record{"uploaded_at": time.Now()}, true},
		{"sqlite timestamp accepted", Images, Record{"uploaded_at": "2024-05-01 10:00:00"}, true},
		{"garbage rejected for datetime", Images, Record{"uploaded_at": "yesterday"}, false},
		{"null rejected for required column", Images, Record{"filename": nil}, false},
		{"null accepted for nullable column", Labels, Record{"label_description": nil}, true},
		{"nil pointer accepted for nullable column", Images, Record{"created_by": (*string)(nil)}, true},
		{"primary key must be positive", Images, Record{"image_id": 0}, false},
		{"primary key accepted", Images, Record{"image_id": 12}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.entity, tt.rec, Options{Partial: true})
			assert.Equal(t, tt.valid, res.Valid, res.Errors)
		})
	}
}

func TestValidate_Predicates(t *testing.T) {
	t.Run("mime type must be an image", func(t *testing.T) {
		rec := validImage()
		rec["mime_type"] = "application/pdf"
		res := Validate(Images, rec, Options{})
		assert.Equal(t, []string{`mime_type must start with "image/"`}, res.Errors)
	})

	t.Run("label name trimmed length", func(t *testing.T) {
		assert.True(t, Validate(Labels, Record{"label_name": "  cat  "}, Options{}).Valid)
		assert.False(t, Validate(Labels, Record{"label_name": "   "}, Options{}).Valid)
		assert.True(t, Validate(Labels, Record{"label_name": strings.Repeat("x", 100)}, Options{}).Valid)
		assert.False(t, Validate(Labels, Record{"label_name": strings.Repeat("x", 101)}, Options{}).Valid)
		assert.True(t, Validate(Labels, Record{"label_name": " " + strings.Repeat("é", 100) + " "}, Options{}).Valid)
	})

	t.Run("label name rejects list separator and control characters", func(t *testing.T) {
		for _, name := range []string{"cat, tabby", "a,b", "a\x1fb", "a\x1eb", "line\nbreak", "tab\tbed"} {
			res := Validate(Labels, Record{"label_name": name}, Options{})
			assert.False(t, res.Valid, "name %q", name)
		}
		assert.Equal(t, []string{`label_name must not contain ','`},
			Validate(Labels, Record{"label_name": "cat, tabby"}, Options{}).Errors)
		assert.True(t, Validate(Labels, Record{"label_name": "tabby cat; striped"}, Options{}).Valid)
		assert.True(t, Validate(Labels, Record{"label_name": "\tcat\n"}, Options{}).Valid, "surrounding whitespace is trimmed first")
	})

	t.Run("confidence range is inclusive", func(t *testing.T) {
		for _, c := range []float64{0, 0.5, 1} {
			assert.True(t, Validate(Annotations, Record{"confidence": c}, Options{Partial: true}).Valid, c)
		}
		for _, c := range []float64{-0.01, 1.0001, math.NaN(), math.Inf(1)} {
			assert.False(t, Validate(Annotations, Record{"confidence": c}, Options{Partial: true}).Valid, c)
		}
	})

	t.Run("annotation requires references", func(t *testing.T) {
		res := Validate(Annotations, Record{}, Options{})
		assert.Equal(t, []string{"image_id is required", "label_id is required"}, res.Errors)
	})
}

func TestValidate_UnknownInput(t *testing.T) {
	res := Validate("widgets", Record{}, Options{})
	assert.False(t, res.Valid)
	assert.Equal(t, []string{`unknown entity "widgets"`}, res.Errors)

	res = Validate(Labels, Record{"label_name": "cat", "colour": "red", "alpha": 1}, Options{})
	assert.Equal(t, []string{"unknown field alpha", "unknown field colour"}, res.Errors)
}

func TestTable_ColumnNames(t *testing.T) {
	assert.Equal(t,
		[]string{"annotation_id", "image_id", "label_id", "confidence", "created_at"},
		MustLookup(Annotations).ColumnNames())
}

func ptr[T any](v T) *T { return &v }
