package plate

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"parking-gate-service/internal/domain/gate"
	"parking-gate-service/internal/utils"
)

// Recognizer is the external text-recognition collaborator. It returns
// zero or more candidates per crop, in library-chosen order.
type Recognizer interface {
	Read(ctx context.Context, crop *image.Gray) ([]gate.PlateCandidate, error)
}

// Extractor crops vehicle regions out of an image, runs text recognition
// over them and picks the first candidate that looks like a plate.
type Extractor struct {
	recognizer    Recognizer
	minConfidence float64
	minLength     int
	maxLength     int
	debugDir      string
	log           zerolog.Logger
}

func NewExtractor(recognizer Recognizer, minConfidence float64, minLength, maxLength int, debugDir string, log zerolog.Logger) *Extractor {
	return &Extractor{
		recognizer:    recognizer,
		minConfidence: minConfidence,
		minLength:     minLength,
		maxLength:     maxLength,
		debugDir:      debugDir,
		log:           log,
	}
}

// Accepts reports whether a cleaned candidate text and its confidence
// pass the plate heuristics. Both length bounds are exclusive, as is the
// confidence bound.
func (e *Extractor) Accepts(cleaned string, confidence float64) bool {
	return confidence > e.minConfidence &&
		len(cleaned) > e.minLength &&
		len(cleaned) < e.maxLength
}

// Extract walks the detections in their given order and returns the first
// accepted plate text, cleaned and upper-cased. The second return is false
// when no detection yielded a readable plate; that is an absence, not an
// error. Recognizer failures on individual crops are logged and skipped.
func (e *Extractor) Extract(ctx context.Context, img image.Image, detections []gate.Detection) (string, bool) {
	bounds := img.Bounds()

	for _, det := range detections {
		rect := clampRect(det.Box, bounds)
		if rect.Empty() {
			continue
		}

		crop := cropImage(img, rect)
		gray := toGray(crop)

		candidates, err := e.recognizer.Read(ctx, gray)
		if err != nil {
			e.log.Warn().Err(err).
				Int("class_id", det.ClassID).
				Msg("recognizer failed on crop, skipping detection")
			continue
		}

		for _, cand := range candidates {
			cleaned := utils.CleanPlate(cand.RawText)
			if !e.Accepts(cleaned, cand.Confidence) {
				continue
			}

			if err := e.saveDebugCrop(cleaned, crop); err != nil {
				e.log.Warn().Err(err).Str("plate", cleaned).Msg("failed to save debug crop")
			}

			e.log.Info().
				Str("plate", cleaned).
				Str("raw_text", cand.RawText).
				Float64("confidence", cand.Confidence).
				Msg("accepted plate candidate")
			return cleaned, true
		}
	}

	return "", false
}

// saveDebugCrop writes the color crop keyed by the accepted plate text,
// overwriting any earlier crop for the same plate.
func (e *Extractor) saveDebugCrop(cleaned string, crop image.Image) error {
	if e.debugDir == "" {
		return nil
	}
	path := filepath.Join(e.debugDir, cleaned+".png")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create debug file: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, crop); err != nil {
		return fmt.Errorf("failed to encode debug crop: %w", err)
	}
	return nil
}

// clampRect converts a center/size box to a corner rectangle clamped to
// the image bounds.
func clampRect(b gate.Box, bounds image.Rectangle) image.Rectangle {
	x1 := max(bounds.Min.X, b.Left())
	y1 := max(bounds.Min.Y, b.Top())
	x2 := min(bounds.Max.X, b.Right())
	y2 := min(bounds.Max.Y, b.Bottom())
	if x2 <= x1 || y2 <= y1 {
		return image.Rectangle{}
	}
	return image.Rect(x1, y1, x2, y2)
}

func cropImage(img image.Image, rect image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out
}

// toGray converts a crop to single-channel luminance; the recognizer is
// documented to perform better on grayscale input.
func toGray(img image.Image) *image.Gray {
	out := image.NewGray(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}
