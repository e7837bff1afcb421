package plate

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

	"parking-gate-service/internal/domain/gate"
)

// HTTPRecognizer talks to a text-recognition sidecar over HTTP. The
// sidecar accepts a grayscale PNG body and answers with zero or more
// (text, confidence) results.
type HTTPRecognizer struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRecognizer(baseURL string, timeout time.Duration) *HTTPRecognizer {
	return &HTTPRecognizer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type recognizeResponse struct {
	Results []struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"results"`
}

func (r *HTTPRecognizer) Read(ctx context.Context, crop *image.Gray) ([]gate.PlateCandidate, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, crop); err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/recognize", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build recognize request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recognizer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("recognizer returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode recognizer response: %w", err)
	}

	candidates := make([]gate.PlateCandidate, 0, len(payload.Results))
	for _, res := range payload.Results {
		candidates = append(candidates, gate.PlateCandidate{
			RawText:    res.Text,
			Confidence: res.Confidence,
		})
	}
	return candidates, nil
}
