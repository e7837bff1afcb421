package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Detector is the external object-detection collaborator. Implementations
// must pre-filter rows by objectness before returning them.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]RawDetection, error)
}

// HTTPDetector talks to a detector sidecar over HTTP. The sidecar accepts
// a PNG body and answers with one row per candidate object:
// [cx, cy, w, h, objectness, class_score_0..N], coordinates normalized.
type HTTPDetector struct {
	baseURL             string
	objectnessThreshold float64
	client              *http.Client
	log                 zerolog.Logger
}

func NewHTTPDetector(baseURL string, timeout time.Duration, objectnessThreshold float64, log zerolog.Logger) *HTTPDetector {
	return &HTTPDetector{
		baseURL:             baseURL,
		objectnessThreshold: objectnessThreshold,
		client:              &http.Client{Timeout: timeout},
		log:                 log,
	}
}

type detectResponse struct {
	Detections [][]float64 `json:"detections"`
}

// Detect runs one inference pass and returns rows above the objectness
// threshold. Rows shorter than the fixed prefix (box + objectness) are
// dropped as malformed.
func (d *HTTPDetector) Detect(ctx context.Context, img image.Image) ([]RawDetection, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/detect", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build detect request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detector returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode detector response: %w", err)
	}

	rows := make([]RawDetection, 0, len(payload.Detections))
	for _, row := range payload.Detections {
		if len(row) < 5 {
			d.log.Warn().Int("len", len(row)).Msg("dropping malformed detection row")
			continue
		}
		if row[4] <= d.objectnessThreshold {
			continue
		}
		rows = append(rows, RawDetection{
			Box:         [4]float64{row[0], row[1], row[2], row[3]},
			Objectness:  row[4],
			ClassScores: row[5:],
		})
	}
	return rows, nil
}
