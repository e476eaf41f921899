package dataset

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const importHeader = "image_id,filename,original_name,file_path,file_size,mime_type,labels,confidences,created_by,updated_by,uploaded_at,updated_at\n"

func TestExportImport_RoundTrip(t *testing.T) {
	src, _ := setupTestService(t)
	ctx := context.Background()

	a, err := src.CreateImage(ctx, sampleImage("a.jpg"))
	require.NoError(t, err)
	b, err := src.CreateImage(ctx, sampleImage("b.png"))
	require.NoError(t, err)
	_, err = src.CreateImage(ctx, sampleImage("unlabeled.gif"))
	require.NoError(t, err)

	for _, in := range []NewAnnotation{
		{ImageID: a.ID, LabelName: "cat", Confidence: ptr(0.9)},
		{ImageID: a.ID, LabelName: "dog", Confidence: ptr(0.25)},
		{ImageID: b.ID, LabelName: "cat"},
	} {
		_, err := src.CreateAnnotation(ctx, in)
		require.NoError(t, err)
	}

	var first bytes.Buffer
	n, err := src.Export(ctx, &first)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Contains(t, first.String(), `"cat,dog","0.9000,0.2500"`)

	dst, _ := setupTestService(t)
	result, err := dst.Import(ctx, bytes.NewReader(first.Bytes()), "importer")
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 3, result.Imported)
	assert.Zero(t, result.Errors)
	assert.Equal(t, 2, result.LabelsCreated)
	assert.Equal(t, 3, result.AnnotationsCreated)

	var second bytes.Buffer
	_, err = dst.Export(ctx, &second)
	require.NoError(t, err)
	assert.Equal(t, first.String(), second.String())
}

func TestExportImport_RoundTripKeepsLabelNames(t *testing.T) {
	src, _ := setupTestService(t)
	ctx := context.Background()

	img, err := src.CreateImage(ctx, sampleImage("a.jpg"))
	require.NoError(t, err)
	names := []string{"tabby cat", "Maine Coon (long-hair)", `say "meow"`, "café; bistro"}
	for _, name := range names {
		_, err := src.CreateAnnotation(ctx, NewAnnotation{ImageID: img.ID, LabelName: name, Confidence: ptr(0.5)})
		require.NoError(t, err)
	}
	_, err = src.CreateAnnotation(ctx, NewAnnotation{ImageID: img.ID, LabelName: "cat, tabby"})
	require.ErrorIs(t, err, ErrValidation)

	var first bytes.Buffer
	_, err = src.Export(ctx, &first)
	require.NoError(t, err)

	dst, _ := setupTestService(t)
	result, err := dst.Import(ctx, bytes.NewReader(first.Bytes()), "importer")
	require.NoError(t, err)
	assert.Equal(t, len(names), result.LabelsCreated)
	assert.Equal(t, len(names), result.AnnotationsCreated)

	labels, err := dst.ListLabels(ctx)
	require.NoError(t, err)
	var got []string
	for _, l := range labels {
		got = append(got, l.Name)
	}
	assert.ElementsMatch(t, names, got)

	var second bytes.Buffer
	_, err = dst.Export(ctx, &second)
	require.NoError(t, err)
	assert.Equal(t, first.String(), second.String())
}

func TestImport_MalformedRowDoesNotAbort(t *testing.T) {
	svc, db := setupTestService(t)
	input := importHeader +
		",a.jpg,a.jpg,uploads/a.jpg,100,image/jpeg,cat,0.5,,,,\n" +
		",b.jpg,b.jpg,uploads/b.jpg\n"

	result, err := svc.Import(context.Background(), strings.NewReader(input), "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalRows)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Errors)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "line 3: expected 12 columns, got 4", result.Messages[0])

	assert.Equal(t, int64(1), countRows(t, db, "SELECT COUNT(*) FROM images"))
}

func TestImport_SkipsExistingImageID(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()
	img, err := svc.CreateImage(ctx, sampleImage("kept.jpg"))
	require.NoError(t, err)

	input := importHeader +
		fmt.Sprintf("%d,replacement.jpg,r.jpg,uploads/r.jpg,5,image/png,dog,,,,,\n", img.ID) +
		",new.jpg,n.jpg,uploads/n.jpg,7,image/png,,,,,,\n"

	result, err := svc.Import(ctx, strings.NewReader(input), "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Imported)
	assert.Zero(t, result.LabelsCreated)

	kept, err := svc.GetImage(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, "kept.jpg", kept.Filename)
	assert.Empty(t, kept.Annotations)
	assert.Zero(t, countRows(t, db, "SELECT COUNT(*) FROM labels"))

	created, err := svc.ListImages(ctx)
	require.NoError(t, err)
	require.Len(t, created, 2)
	for _, c := range created {
		if c.Filename == "new.jpg" {
			assert.Equal(t, "bob", *c.CreatedBy)
		}
	}
}

func TestImport_InvalidRowsAreRolledBack(t *testing.T) {
	svc, db := setupTestService(t)
	input := importHeader +
		",a.jpg,a.jpg,uploads/a.jpg,100,image/jpeg,\"cat,dog\",\"0.5,1.7\",,,,\n" +
		",b.jpg,b.jpg,uploads/b.jpg,100,text/plain,,,,,,\n" +
		",c.jpg,c.jpg,uploads/c.jpg,abc,image/jpeg,,,,,,\n" +
		",d.jpg,d.jpg,uploads/d.jpg,100,image/jpeg,\"cat, cat\",,,,,\n"

	result, err := svc.Import(context.Background(), strings.NewReader(input), "")
	require.NoError(t, err)
	assert.Equal(t, 4, result.TotalRows)
	assert.Equal(t, 3, result.Errors)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.AnnotationsCreated, "repeated label in one row is attached once")

	assert.Equal(t, int64(1), countRows(t, db, "SELECT COUNT(*) FROM images"))
	assert.Equal(t, int64(1), countRows(t, db, "SELECT COUNT(*) FROM labels"))
}

func TestImport_BadHeader(t *testing.T) {
	svc, _ := setupTestService(t)

	for name, input := range map[string]string{
		"empty":          "",
		"missing column": "filename,original_name,file_path,file_size\n",
		"duplicate":      "filename,filename,original_name,file_path,file_size,mime_type\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Import(context.Background(), strings.NewReader(input), "")
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestImport_CapsErrorMessages(t *testing.T) {
	svc, _ := setupTestService(t, WithMaxImportErrors(2))

	var sb strings.Builder
	sb.WriteString(importHeader)
	for i := 0; i < 5; i++ {
		sb.WriteString("broken\n")
	}

	result, err := svc.Import(context.Background(), strings.NewReader(sb.String()), "")
	require.NoError(t, err)
	assert.Equal(t, 5, result.Errors)
	assert.Len(t, result.Messages, 2)
	assert.True(t, result.MessagesTruncated)
}

func TestImport_CancelledContext(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Import(ctx, strings.NewReader(importHeader+",a.jpg,a,p,1,image/png,,,,,,\n"), "")
	assert.ErrorIs(t, err, context.Canceled)
}
