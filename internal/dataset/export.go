package dataset

import (
	"context"
	"fmt"
	"io"

	"github.com/mrlokans/annotator/internal/csvio"
)

// Export writes every image with its labels in the interchange format and
// returns the number of image rows written.
func (s *Service) Export(ctx context.Context, out io.Writer) (n int, err error) {
	defer s.track("dataset", "export")(&err)

	list, err := s.ListImages(ctx)
	if err != nil {
		return 0, err
	}

	w := csvio.NewWriter(out)
	if err := w.WriteHeader(); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	for _, img := range list {
		if err := w.WriteImage(img); err != nil {
			return n, fmt.Errorf("write image %d: %w", img.ID, err)
		}
		n++
	}
	if err := w.Flush(); err != nil {
		return n, fmt.Errorf("flush export: %w", err)
	}
	return n, nil
}
