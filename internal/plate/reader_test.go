package plate

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-gate-service/internal/detect"
	"parking-gate-service/internal/domain/gate"
)

type mockDetector struct {
	rows []detect.RawDetection
	err  error
}

func (m *mockDetector) Detect(_ context.Context, _ image.Image) ([]detect.RawDetection, error) {
	return m.rows, m.err
}

func carRow(cx, cy, w, h, score float64) detect.RawDetection {
	scores := make([]float64, 8)
	scores[2] = score
	return detect.RawDetection{
		Box:         [4]float64{cx, cy, w, h},
		Objectness:  0.9,
		ClassScores: scores,
	}
}

func newTestReader(t *testing.T, detector detect.Detector, rec Recognizer) *Reader {
	t.Helper()
	processor := detect.NewPostProcessor(0.5, 0.5, []int{2, 5, 7}, zerolog.Nop())
	extractor := NewExtractor(rec, 0.3, 4, 9, t.TempDir(), zerolog.Nop())
	return NewReader(detector, processor, extractor, zerolog.Nop())
}

func TestReader_EndToEnd(t *testing.T) {
	detector := &mockDetector{rows: []detect.RawDetection{carRow(0.5, 0.5, 0.5, 0.5, 0.9)}}
	rec := &mockRecognizer{
		ReadFunc: func(_ context.Context, _ *image.Gray) ([]gate.PlateCandidate, error) {
			return []gate.PlateCandidate{{RawText: "abc-123", Confidence: 0.8}}, nil
		},
	}
	r := newTestReader(t, detector, rec)

	plate, ok, err := r.ReadPlate(context.Background(), image.NewRGBA(image.Rect(0, 0, 640, 480)))

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ABC123", plate)
}

func TestReader_NoVehicleIsAbsence(t *testing.T) {
	rec := &mockRecognizer{}
	r := newTestReader(t, &mockDetector{}, rec)

	plate, ok, err := r.ReadPlate(context.Background(), image.NewRGBA(image.Rect(0, 0, 640, 480)))

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, plate)
	assert.Equal(t, 0, rec.ReadCalls)
}

func TestReader_DetectorErrorPropagates(t *testing.T) {
	r := newTestReader(t, &mockDetector{err: errors.New("sidecar down")}, &mockRecognizer{})

	_, _, err := r.ReadPlate(context.Background(), image.NewRGBA(image.Rect(0, 0, 640, 480)))

	assert.Error(t, err)
}
