package main

import (
	"time"

	"github.com/spf13/cobra"

	"parking-gate-service/internal/config"
	"parking-gate-service/internal/sim"
)

func simulateCmd() *cobra.Command {
	var exitOffsetMin int

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a batch parking simulation over numbered image files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			log, err := newLogger(cmd, cfg)
			if err != nil {
				return err
			}

			// simulate always runs in demo mode: the offset stands in for
			// the elapsed parking time a real exit camera would observe
			cfg.Demo.ExitOffset = time.Duration(exitOffsetMin) * time.Minute

			gateService, err := buildGateService(cfg, log)
			if err != nil {
				return err
			}

			simulator := sim.New(gateService, cfg.Sim, log.With().Str("component", "sim").Logger())
			return simulator.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&exitOffsetMin, "exit-offset-minutes", 75,
		"simulated minutes added to the clock at exit time")
	return cmd
}
