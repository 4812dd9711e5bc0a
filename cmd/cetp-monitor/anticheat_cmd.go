package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shieldai/cetp-monitor/internal/config"
	"github.com/shieldai/cetp-monitor/internal/pipeline"
	"github.com/shieldai/cetp-monitor/internal/sink"
)

var anticheatFactoryDir string

var anticheatCmd = &cobra.Command{
	Use:   "anticheat",
	Short: "Run the three tamper detectors over historical per-factory discharge data",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAntiCheat()
	},
}

func init() {
	anticheatCmd.Flags().StringVar(&anticheatFactoryDir, "factory-dir", "", "directory containing per-factory discharge CSV files (required)")
	_ = anticheatCmd.MarkFlagRequired("factory-dir")
}

func runAntiCheat() error {
	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	if _, err := os.Stat(anticheatFactoryDir); err != nil {
		return ExitCodeError{Code: 2}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error("config validation failed", zap.Error(err))
		return ExitCodeError{Code: 1}
	}

	_, byFactory, err := pipeline.LoadFactoryReadings(cfg, anticheatFactoryDir)
	if err != nil {
		return fmt.Errorf("load factory readings: %w", err)
	}

	sinks := pipeline.Sinks{
		Tamper: sink.NewJSONLWriter(filepath.Join(anticheatFactoryDir, "tamper.jsonl")),
	}
	defer sinks.Tamper.Close()

	p := pipeline.New(cfg, log, nil, sinks)
	if err := p.RunAntiCheat(byFactory); err != nil {
		return fmt.Errorf("run anti-cheat: %w", err)
	}
	return nil
}
