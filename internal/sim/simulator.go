// Package sim drives a batch parking simulation over numbered image
// files: every image enters the lot in sequence, then a configured
// subset exits again.
package sim

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"parking-gate-service/internal/config"
	"parking-gate-service/internal/service"
)

type Simulator struct {
	gateService *service.GateService
	cfg         config.SimConfig
	log         zerolog.Logger
}

func New(gateService *service.GateService, cfg config.SimConfig, log zerolog.Logger) *Simulator {
	return &Simulator{
		gateService: gateService,
		cfg:         cfg,
		log:         log,
	}
}

// Run performs the full simulation: entries for images 1..entry_count,
// then exits for the configured subset. Missing images and per-image
// pipeline failures are reported and skipped; they never abort the run.
func (s *Simulator) Run(ctx context.Context) error {
	s.log.Info().Msg("parking simulation started")

	s.log.Info().Msg("vehicles entering")
	for i := 1; i <= s.cfg.EntryCount; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.enter(ctx, i)
	}

	s.log.Info().Msg("vehicles exiting")
	for _, i := range s.cfg.ExitIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.exit(ctx, i)
	}

	s.log.Info().Msg("simulation complete")
	return nil
}

func (s *Simulator) enter(ctx context.Context, id int) {
	img, path, ok := s.loadImage(id)
	if !ok {
		return
	}

	result, err := s.gateService.Enter(ctx, img)
	switch {
	case errors.Is(err, service.ErrNoPlate):
		s.log.Warn().Str("image", path).Msg("could not read license plate")
	case errors.Is(err, service.ErrAlreadyParked):
		s.log.Warn().Str("image", path).Msg("vehicle is already in the parking lot")
	case err != nil:
		s.log.Error().Err(err).Str("image", path).Msg("entry failed")
	default:
		s.log.Info().
			Str("plate", result.Plate).
			Time("entry_time", result.EntryTime).
			Msg("vehicle entered")
	}
}

func (s *Simulator) exit(ctx context.Context, id int) {
	img, path, ok := s.loadImage(id)
	if !ok {
		return
	}

	receipt, err := s.gateService.Exit(ctx, img)
	switch {
	case errors.Is(err, service.ErrNoPlate):
		s.log.Warn().Str("image", path).Msg("could not read license plate")
	case errors.Is(err, service.ErrNotFound):
		s.log.Error().Str("image", path).Msg("vehicle not found in system, gate will not open")
	case err != nil:
		s.log.Error().Err(err).Str("image", path).Msg("exit failed")
	default:
		s.log.Info().
			Str("plate", receipt.Plate).
			Time("entry_time", receipt.EntryTime).
			Time("exit_time", receipt.ExitTime).
			Float64("duration_minutes", receipt.DurationMinutes).
			Float64("fee", receipt.Fee).
			Msg("exit receipt")
	}
}

func (s *Simulator) loadImage(id int) (image.Image, string, bool) {
	path := filepath.Join(s.cfg.DataDir, fmt.Sprintf("%d.png", id))

	f, err := os.Open(path)
	if err != nil {
		s.log.Warn().Str("image", path).Msg("image missing, skipping")
		return nil, path, false
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		s.log.Warn().Err(err).Str("image", path).Msg("could not decode image, skipping")
		return nil, path, false
	}
	return img, path, true
}
