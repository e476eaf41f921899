// Command seed_demo creates a demo database with a small labeled dataset.
// Usage: go run ./cmd/seed_demo [-db path/to/demo.db]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/mrlokans/annotator/internal/database"
	"github.com/mrlokans/annotator/internal/dataset"
	"github.com/mrlokans/annotator/internal/logging"
)

const defaultDemoDatabasePath = "./demo/demo.db"

type demoImage struct {
	name        string
	size        int64
	mime        string
	annotations map[string]float64
}

var demoLabels = []struct {
	name        string
	description string
}{
	{"cat", "Domestic cat, any breed"},
	{"dog", "Domestic dog, any breed"},
	{"car", "Passenger vehicle"},
	{"tree", ""},
	{"person", "Human, full or partial body"},
}

var demoImages = []demoImage{
	{"cat_on_sofa.jpg", 182_344, "image/jpeg", map[string]float64{"cat": 0.98}},
	{"dog_park.jpg", 241_002, "image/jpeg", map[string]float64{"dog": 0.95, "person": 0.71, "tree": 0.64}},
	{"street.png", 530_118, "image/png", map[string]float64{"car": 0.88, "person": 0.52}},
	{"forest.webp", 96_540, "image/webp", map[string]float64{"tree": 1.0}},
	{"cat_and_dog.jpg", 210_775, "image/jpeg", map[string]float64{"cat": 0.91, "dog": 0.89}},
	{"unlabeled.gif", 12_480, "image/gif", nil},
}

func main() {
	dbPath := flag.String("db", defaultDemoDatabasePath, "path to the demo database file")
	flag.Parse()

	log := logging.New(logging.Options{Level: "info", Format: "text"})
	log.Infof("Generating demo database at %s...", *dbPath)

	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing demo database: %v", err)
	}

	if err := seed(context.Background(), *dbPath, log); err != nil {
		log.Fatal(err)
	}
	log.Info("Demo database generated successfully!")
}

func seed(ctx context.Context, path string, log *logrus.Logger) error {
	db, err := database.Open(path, log)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	svc := dataset.NewService(db, log)

	for _, l := range demoLabels {
		in := dataset.NewLabel{Name: l.name}
		if l.description != "" {
			desc := l.description
			in.Description = &desc
		}
		if _, _, err := svc.CreateLabel(ctx, in); err != nil {
			return fmt.Errorf("create label %s: %w", l.name, err)
		}
	}

	for _, d := range demoImages {
		img, err := svc.CreateImage(ctx, dataset.NewImage{
			Filename:     d.name,
			OriginalName: d.name,
			FilePath:     "demo/" + d.name,
			FileSize:     d.size,
			MimeType:     d.mime,
			Actor:        "demo",
		})
		if err != nil {
			log.WithError(err).Warnf("Failed to save image %s", d.name)
			continue
		}

		for label, confidence := range d.annotations {
			confidence := confidence
			_, err := svc.CreateAnnotation(ctx, dataset.NewAnnotation{
				ImageID:    img.ID,
				LabelName:  label,
				Confidence: &confidence,
			})
			if err != nil {
				log.WithError(err).Warnf("Failed to annotate %s with %s", d.name, label)
			}
		}
		log.Infof("Saved: %s (%d labels)", d.name, len(d.annotations))
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"images":      stats.Images,
		"labels":      stats.Labels,
		"annotations": stats.Annotations,
	}).Info("Dataset summary")
	return nil
}
