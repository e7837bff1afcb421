package detect

import (
	"sort"

	"github.com/rs/zerolog"

	"parking-gate-service/internal/domain/gate"
)

// RawDetection is one row of network output in normalized coordinates:
// a center/size box, the objectness score and the per-class score vector.
type RawDetection struct {
	Box         [4]float64 // cx, cy, w, h in [0,1]
	Objectness  float64
	ClassScores []float64
}

// PostProcessor turns raw detector rows into accepted vehicle detections:
// argmax class selection, pixel-space conversion, vehicle-class filtering
// and non-maximum suppression.
type PostProcessor struct {
	scoreThreshold float64
	iouThreshold   float64
	allowed        map[int]struct{}
	log            zerolog.Logger
}

func NewPostProcessor(scoreThreshold, iouThreshold float64, vehicleClasses []int, log zerolog.Logger) *PostProcessor {
	allowed := make(map[int]struct{}, len(vehicleClasses))
	for _, c := range vehicleClasses {
		allowed[c] = struct{}{}
	}
	return &PostProcessor{
		scoreThreshold: scoreThreshold,
		iouThreshold:   iouThreshold,
		allowed:        allowed,
		log:            log,
	}
}

// Process converts rows to pixel-space detections, keeps only vehicle
// classes and suppresses overlapping duplicates. Survivors are returned
// in their original discovery order. An empty result is a normal outcome.
func (p *PostProcessor) Process(rows []RawDetection, imgWidth, imgHeight int) []gate.Detection {
	candidates := make([]gate.Detection, 0, len(rows))
	for _, row := range rows {
		if len(row.ClassScores) == 0 {
			continue
		}
		classID, score := argmax(row.ClassScores)
		if _, ok := p.allowed[classID]; !ok {
			continue
		}
		candidates = append(candidates, gate.Detection{
			Box: gate.Box{
				CX: int(row.Box[0] * float64(imgWidth)),
				CY: int(row.Box[1] * float64(imgHeight)),
				W:  int(row.Box[2] * float64(imgWidth)),
				H:  int(row.Box[3] * float64(imgHeight)),
			},
			ClassID: classID,
			Score:   score,
		})
	}

	survivors := p.suppress(candidates)
	p.log.Debug().
		Int("rows", len(rows)).
		Int("vehicle_candidates", len(candidates)).
		Int("survivors", len(survivors)).
		Msg("post-processed detector output")
	return survivors
}

// suppress applies greedy non-maximum suppression: candidates below the
// score threshold are dropped, then each remaining box suppresses any
// lower-scored box it overlaps beyond the IoU threshold. Survivors keep
// their discovery order.
func (p *PostProcessor) suppress(candidates []gate.Detection) []gate.Detection {
	order := make([]int, 0, len(candidates))
	for i, d := range candidates {
		if d.Score > p.scoreThreshold {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return candidates[order[a]].Score > candidates[order[b]].Score
	})

	suppressed := make(map[int]bool, len(order))
	for i := 0; i < len(order); i++ {
		if suppressed[order[i]] {
			continue
		}
		for j := i + 1; j < len(order); j++ {
			if suppressed[order[j]] {
				continue
			}
			if IoU(candidates[order[i]].Box, candidates[order[j]].Box) > p.iouThreshold {
				suppressed[order[j]] = true
			}
		}
	}

	kept := make([]gate.Detection, 0, len(order))
	for i, d := range candidates {
		if d.Score > p.scoreThreshold && !suppressed[i] {
			kept = append(kept, d)
		}
	}
	return kept
}

// IoU returns the intersection-over-union overlap of two boxes in [0,1].
func IoU(a, b gate.Box) float64 {
	ix := min(a.Right(), b.Right()) - max(a.Left(), b.Left())
	iy := min(a.Bottom(), b.Bottom()) - max(a.Top(), b.Top())
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func argmax(scores []float64) (int, float64) {
	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}
	return best, scores[best]
}
