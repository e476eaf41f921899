package entities

import "time"

// Image is one uploaded image file. FilePath points at the stored object:
// a path relative to the upload directory or an s3:// location.
type Image struct {
	ID           int64     `gorm:"column:image_id" json:"image_id"`
	Filename     string    `gorm:"column:filename" json:"filename"`
	OriginalName string    `gorm:"column:original_name" json:"original_name"`
	FilePath     string    `gorm:"column:file_path" json:"file_path"`
	FileSize     int64     `gorm:"column:file_size" json:"file_size"`
	MimeType     string    `gorm:"column:mime_type" json:"mime_type"`
	CreatedBy    *string   `gorm:"column:created_by" json:"created_by,omitempty"`
	UpdatedBy    *string   `gorm:"column:updated_by" json:"updated_by,omitempty"`
	UploadedAt   time.Time `gorm:"column:uploaded_at" json:"uploaded_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

type Label struct {
	ID          int64     `gorm:"column:label_id" json:"label_id"`
	Name        string    `gorm:"column:label_name" json:"label_name"`
	Description *string   `gorm:"column:label_description" json:"label_description,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

// Annotation attaches a label to an image. At most one per (image, label).
type Annotation struct {
	ID         int64     `gorm:"column:annotation_id" json:"annotation_id"`
	ImageID    int64     `gorm:"column:image_id" json:"image_id"`
	LabelID    int64     `gorm:"column:label_id" json:"label_id"`
	Confidence float64   `gorm:"column:confidence" json:"confidence"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

// AnnotationDetail is an annotation joined with its label.
type AnnotationDetail struct {
	Annotation
	LabelName        string  `gorm:"column:label_name" json:"label_name"`
	LabelDescription *string `gorm:"column:label_description" json:"label_description,omitempty"`
}

// ImageWithLabels is the list view of an image. Labels and Confidences are
// parallel slices.
type ImageWithLabels struct {
	Image
	Labels      []string  `json:"labels"`
	Confidences []float64 `json:"confidences"`
}

// ImageDetail is an image with all of its annotations.
type ImageDetail struct {
	Image
	Annotations []AnnotationDetail `json:"annotations"`
}

// LabelUsage reports how many images carry a label.
type LabelUsage struct {
	Label
	ImageCount int64 `gorm:"column:image_count" json:"image_count"`
}

type DatasetStats struct {
	Images      int64 `json:"images"`
	Labels      int64 `json:"labels"`
	Annotations int64 `json:"annotations"`
}
