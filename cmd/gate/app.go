package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"parking-gate-service/internal/config"
	"parking-gate-service/internal/detect"
	"parking-gate-service/internal/ledger"
	"parking-gate-service/internal/plate"
	"parking-gate-service/internal/service"
)

// newLogger builds the zerolog root logger from flags, falling back to
// the config file values when the flags keep their defaults.
func newLogger(cmd *cobra.Command, cfg *config.Config) (zerolog.Logger, error) {
	level := cfg.Logging.Level
	if cmd.Flags().Changed("log-level") {
		level, _ = cmd.Flags().GetString("log-level")
	}
	format := cfg.Logging.Format
	if cmd.Flags().Changed("log-format") {
		format, _ = cmd.Flags().GetString("log-format")
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var log zerolog.Logger
	if format == "json" {
		log = zerolog.New(os.Stderr)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return log.Level(lvl).With().Timestamp().Logger(), nil
}

// buildGateService wires the full pipeline: HTTP adapters, post-processor,
// extractor, ledger and gate controller. Unrecoverable conditions (bad
// config, unreadable ledger file) fail here, before any transaction runs.
func buildGateService(cfg *config.Config, log zerolog.Logger) (*service.GateService, error) {
	if err := os.MkdirAll(cfg.Extractor.DebugDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create debug directory: %w", err)
	}

	lgr := ledger.New(cfg.Ledger.Path, log.With().Str("component", "ledger").Logger())
	res, err := lgr.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	if res.Recovered {
		log.Warn().Str("path", cfg.Ledger.Path).Msg("ledger recovered empty from corrupt file")
	} else {
		log.Info().Int("entries", res.Entries).Msg("ledger loaded")
	}

	detector := detect.NewHTTPDetector(
		cfg.Detector.BaseURL,
		cfg.Detector.Timeout,
		cfg.Detector.ObjectnessThreshold,
		log.With().Str("component", "detector").Logger(),
	)
	processor := detect.NewPostProcessor(
		cfg.Detector.ScoreThreshold,
		cfg.Detector.IoUThreshold,
		cfg.Detector.VehicleClasses,
		log.With().Str("component", "postprocess").Logger(),
	)
	recognizer := plate.NewHTTPRecognizer(cfg.Recognizer.BaseURL, cfg.Recognizer.Timeout)
	extractor := plate.NewExtractor(
		recognizer,
		cfg.Extractor.MinConfidence,
		cfg.Extractor.MinLength,
		cfg.Extractor.MaxLength,
		cfg.Extractor.DebugDir,
		log.With().Str("component", "extractor").Logger(),
	)
	reader := plate.NewReader(detector, processor, extractor, log.With().Str("component", "reader").Logger())

	return service.NewGateService(
		reader,
		lgr,
		cfg.Pricing,
		cfg.Demo.ExitOffset,
		log.With().Str("component", "gate").Logger(),
	), nil
}
