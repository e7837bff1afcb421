package gate

import (
	"time"

	"github.com/google/uuid"
)

// Box is an axis-aligned bounding box in pixel units, stored as
// center plus size the way the detector emits it.
type Box struct {
	CX int `json:"cx"`
	CY int `json:"cy"`
	W  int `json:"w"`
	H  int `json:"h"`
}

// Left, Top, Right, Bottom derive the corner form of the box.
func (b Box) Left() int   { return b.CX - b.W/2 }
func (b Box) Top() int    { return b.CY - b.H/2 }
func (b Box) Right() int  { return b.CX + b.W/2 }
func (b Box) Bottom() int { return b.CY + b.H/2 }

// Area returns the box area in pixels, spanned by the derived corners so
// it agrees with any intersection computed from them. Degenerate boxes
// report zero.
func (b Box) Area() int {
	w := b.Right() - b.Left()
	h := b.Bottom() - b.Top()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Detection is one accepted object instance from an inference pass.
type Detection struct {
	Box     Box     `json:"box"`
	ClassID int     `json:"class_id"`
	Score   float64 `json:"score"`
}

// PlateCandidate is a single OCR result over a cropped region.
type PlateCandidate struct {
	RawText    string  `json:"raw_text"`
	Confidence float64 `json:"confidence"`
}

// EntryResult is emitted on a successful entry transaction.
type EntryResult struct {
	TicketID  uuid.UUID `json:"ticket_id"`
	Plate     string    `json:"plate"`
	EntryTime time.Time `json:"entry_time"`
}

// Receipt is emitted on a successful exit transaction.
type Receipt struct {
	ReceiptID       uuid.UUID `json:"receipt_id"`
	Plate           string    `json:"plate"`
	EntryTime       time.Time `json:"entry_time"`
	ExitTime        time.Time `json:"exit_time"`
	DurationMinutes float64   `json:"duration_minutes"`
	Fee             float64   `json:"fee"`
}

// Occupant is one currently-parked vehicle, as reported by occupancy queries.
type Occupant struct {
	Plate     string    `json:"plate"`
	EntryTime time.Time `json:"entry_time"`
}
