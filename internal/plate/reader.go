package plate

import (
	"context"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"parking-gate-service/internal/detect"
)

// Reader runs the full detection-to-plate pipeline over one image:
// detector rows are post-processed into vehicle boxes, then the extractor
// tries each box in discovery order until one yields a readable plate.
type Reader struct {
	detector  detect.Detector
	processor *detect.PostProcessor
	extractor *Extractor
	log       zerolog.Logger
}

func NewReader(detector detect.Detector, processor *detect.PostProcessor, extractor *Extractor, log zerolog.Logger) *Reader {
	return &Reader{
		detector:  detector,
		processor: processor,
		extractor: extractor,
		log:       log,
	}
}

// ReadPlate returns the cleaned plate text for an image, or false when the
// image holds no vehicle with a readable plate. Only detector transport
// failures surface as errors; an unreadable image is a plain absence.
func (r *Reader) ReadPlate(ctx context.Context, img image.Image) (string, bool, error) {
	bounds := img.Bounds()

	rows, err := r.detector.Detect(ctx, img)
	if err != nil {
		return "", false, fmt.Errorf("detection failed: %w", err)
	}

	detections := r.processor.Process(rows, bounds.Dx(), bounds.Dy())
	if len(detections) == 0 {
		r.log.Debug().Msg("no vehicle detected in image")
		return "", false, nil
	}

	plate, ok := r.extractor.Extract(ctx, img, detections)
	return plate, ok, nil
}
