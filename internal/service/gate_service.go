package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"parking-gate-service/internal/config"
	"parking-gate-service/internal/domain/gate"
	"parking-gate-service/internal/ledger"
)

var (
	ErrNoPlate       = errors.New("could not read plate")
	ErrAlreadyParked = errors.New("vehicle already parked")
	ErrNotFound      = errors.New("vehicle not found")
)

// PlateReader runs the detection-to-plate pipeline over one image. The
// boolean is false when the image holds no readable plate.
type PlateReader interface {
	ReadPlate(ctx context.Context, img image.Image) (string, bool, error)
}

// GateService orchestrates entry and exit transactions against the
// occupancy ledger. The mutex makes each check-then-act transition
// atomic so concurrent HTTP requests cannot race past each other.
type GateService struct {
	reader  PlateReader
	ledger  *ledger.Ledger
	pricing config.PricingConfig
	// exitOffset is added to the clock when computing exit time; zero in
	// real deployments, non-zero only for demo runs.
	exitOffset time.Duration
	now        func() time.Time
	mu         sync.Mutex
	log        zerolog.Logger
}

func NewGateService(reader PlateReader, lgr *ledger.Ledger, pricing config.PricingConfig, exitOffset time.Duration, log zerolog.Logger) *GateService {
	return &GateService{
		reader:     reader,
		ledger:     lgr,
		pricing:    pricing,
		exitOffset: exitOffset,
		now:        time.Now,
		log:        log,
	}
}

// WithClock replaces the wall clock, for tests.
func (s *GateService) WithClock(now func() time.Time) *GateService {
	s.now = now
	return s
}

// Enter processes an entry transaction for the vehicle in the image.
// An unreadable plate aborts with ErrNoPlate; a plate that is already
// parked is an idempotent no-op reported as ErrAlreadyParked.
func (s *GateService) Enter(ctx context.Context, img image.Image) (*gate.EntryResult, error) {
	plateNum, ok, err := s.readPlate(ctx, img)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoPlate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ledger.Contains(plateNum) {
		s.log.Warn().Str("plate", plateNum).Msg("vehicle is already in the parking lot")
		return nil, fmt.Errorf("%w: %s", ErrAlreadyParked, plateNum)
	}

	entryTime := s.now().Truncate(time.Second)
	s.ledger.Put(plateNum, entryTime)
	if err := s.ledger.Save(); err != nil {
		s.ledger.Remove(plateNum)
		s.log.Error().Err(err).Str("plate", plateNum).Msg("failed to persist ledger after entry")
		return nil, fmt.Errorf("failed to persist entry: %w", err)
	}

	result := &gate.EntryResult{
		TicketID:  uuid.New(),
		Plate:     plateNum,
		EntryTime: entryTime,
	}
	s.log.Info().
		Str("ticket_id", result.TicketID.String()).
		Str("plate", plateNum).
		Time("entry_time", entryTime).
		Msg("vehicle entered")
	return result, nil
}

// Exit processes an exit transaction: looks the plate up, computes the
// fee and removes the occupancy record. An absent plate keeps the gate
// closed and the ledger untouched.
func (s *GateService) Exit(ctx context.Context, img image.Image) (*gate.Receipt, error) {
	plateNum, ok, err := s.readPlate(ctx, img)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoPlate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, found := s.ledger.Get(plateNum)
	if !found {
		s.log.Error().Str("plate", plateNum).Msg("vehicle not found in system, gate stays closed")
		return nil, fmt.Errorf("%w: %s", ErrNotFound, plateNum)
	}

	exitTime := s.now().Add(s.exitOffset).Truncate(time.Second)
	minutes := exitTime.Sub(entry.EntryTime).Minutes()
	fee := s.computeFee(minutes)

	s.ledger.Remove(plateNum)
	if err := s.ledger.Save(); err != nil {
		s.ledger.Put(plateNum, entry.EntryTime)
		s.log.Error().Err(err).Str("plate", plateNum).Msg("failed to persist ledger after exit")
		return nil, fmt.Errorf("failed to persist exit: %w", err)
	}

	receipt := &gate.Receipt{
		ReceiptID:       uuid.New(),
		Plate:           plateNum,
		EntryTime:       entry.EntryTime,
		ExitTime:        exitTime,
		DurationMinutes: minutes,
		Fee:             fee,
	}
	s.log.Info().
		Str("receipt_id", receipt.ReceiptID.String()).
		Str("plate", plateNum).
		Time("entry_time", entry.EntryTime).
		Time("exit_time", exitTime).
		Float64("duration_minutes", minutes).
		Float64("fee", fee).
		Msg("vehicle exited")
	return receipt, nil
}

// Occupancy lists every currently-parked vehicle.
func (s *GateService) Occupancy() []gate.Occupant {
	s.mu.Lock()
	defer s.mu.Unlock()

	plates := s.ledger.Plates()
	occupants := make([]gate.Occupant, 0, len(plates))
	for _, p := range plates {
		entry, _ := s.ledger.Get(p)
		occupants = append(occupants, gate.Occupant{Plate: p, EntryTime: entry.EntryTime})
	}
	return occupants
}

// Lookup returns the occupancy record for one plate, accepting loosely
// formatted operator input.
func (s *GateService) Lookup(plate string) (*gate.Occupant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, found := s.ledger.Get(plate)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, plate)
	}
	return &gate.Occupant{Plate: plate, EntryTime: entry.EntryTime}, nil
}

func (s *GateService) readPlate(ctx context.Context, img image.Image) (string, bool, error) {
	plateNum, ok, err := s.reader.ReadPlate(ctx, img)
	if err != nil {
		s.log.Error().Err(err).Msg("plate pipeline failed")
		return "", false, fmt.Errorf("plate pipeline failed: %w", err)
	}
	return plateNum, ok, nil
}

// computeFee charges the base rate for the first free window and the
// additional rate for every completed billing period past it.
func (s *GateService) computeFee(minutes float64) float64 {
	fee := s.pricing.BaseRate
	free := float64(s.pricing.FreeMinutes)
	if minutes > free {
		periods := math.Floor((minutes - free) / float64(s.pricing.PeriodMinutes))
		fee += periods * s.pricing.AdditionalRate
	}
	return fee
}
