package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shieldai/cetp-monitor/internal/backtrack"
	"github.com/shieldai/cetp-monitor/internal/config"
	"github.com/shieldai/cetp-monitor/internal/ingest"
	"github.com/shieldai/cetp-monitor/internal/pipeline"
	"github.com/shieldai/cetp-monitor/internal/sink"
)

var (
	cetpDir     string
	factoryDir  string
	metricsAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the CETP inlet and per-factory discharge monitoring pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline()
	},
}

func init() {
	runCmd.Flags().StringVar(&cetpDir, "cetp-dir", "", "directory containing the CETP inlet CSV files (required)")
	runCmd.Flags().StringVar(&factoryDir, "factory-dir", "", "directory containing per-factory discharge CSV files (required)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "listen address for the Prometheus /metrics endpoint (empty disables it)")
	_ = runCmd.MarkFlagRequired("cetp-dir")
	_ = runCmd.MarkFlagRequired("factory-dir")
}

func newLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// runPipeline wires every stage from config, eagerly loads the factory
// index, then drains the CETP and factory streams in file order, matching
// fail-fast config validation and a simple cancellation model
// (SIGINT/SIGTERM finish the in-flight factory before exiting).
func runPipeline() error {
	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	if _, err := os.Stat(cetpDir); err != nil {
		return ExitCodeError{Code: 2}
	}
	if _, err := os.Stat(factoryDir); err != nil {
		return ExitCodeError{Code: 2}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error("config validation failed", zap.Error(err))
		return ExitCodeError{Code: 1}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	merged, byFactory, err := pipeline.LoadFactoryReadings(cfg, factoryDir)
	if err != nil {
		return fmt.Errorf("load factory readings: %w", err)
	}

	dbPath := filepath.Join(os.TempDir(), "cetp-monitor-factory-index.db")
	index, err := backtrack.BuildIndex(dbPath, merged)
	if err != nil {
		return fmt.Errorf("build factory index: %w", err)
	}
	defer index.Close()

	sinks := pipeline.Sinks{
		Evidence: sink.NewJSONLWriter(filepath.Join(cetpDir, "evidence.jsonl")),
		Alerts:   sink.NewJSONLWriter(filepath.Join(factoryDir, "alerts.jsonl")),
		Tamper:   sink.NewJSONLWriter(filepath.Join(factoryDir, "tamper.jsonl")),
		Metrics:  sink.NewAtomicJSONSink(filepath.Join(factoryDir, "metrics.json")),
	}
	defer sinks.Evidence.Close()
	defer sinks.Alerts.Close()
	defer sinks.Tamper.Close()

	p := pipeline.New(cfg, log, index, sinks)

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           p.Exporter().Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("prometheus endpoint failed", zap.Error(err))
			}
		}()
		log.Info("prometheus metrics listening", zap.String("addr", metricsAddr))
	}

	files, err := ingest.ListCETPFiles(cetpDir)
	if err != nil {
		return fmt.Errorf("list cetp files: %w", err)
	}
	for _, path := range files {
		result, err := ingest.IngestCETP(cfg, ingest.FileSource{Path: path})
		if err != nil {
			return fmt.Errorf("ingest cetp file %s: %w", path, err)
		}
		if err := p.ProcessCETP(result.Clean); err != nil {
			return fmt.Errorf("process cetp stream: %w", err)
		}
		select {
		case <-sigCh:
			log.Info("interrupt received, draining current batch and shutting down")
			return p.WriteMetricsSnapshot(time.Now())
		default:
		}
	}

	factoryIDs := make([]string, 0, len(byFactory))
	for id := range byFactory {
		factoryIDs = append(factoryIDs, id)
	}
	sort.Strings(factoryIDs)

	for _, id := range factoryIDs {
		start := time.Now()
		if err := p.ProcessFactory(byFactory[id]); err != nil {
			return fmt.Errorf("process factory %s: %w", id, err)
		}
		now := time.Now()
		p.Latency().Record(float64(now.Sub(start).Milliseconds()), now)
		p.Reporter().MaybeReport(now)
		select {
		case <-sigCh:
			log.Info("interrupt received, draining current batch and shutting down")
			if err := p.Flush(); err != nil {
				return err
			}
			return p.WriteMetricsSnapshot(time.Now())
		default:
		}
	}

	if err := p.Flush(); err != nil {
		return fmt.Errorf("flush pipeline: %w", err)
	}
	if err := p.RunAntiCheat(byFactory); err != nil {
		return fmt.Errorf("run anti-cheat: %w", err)
	}
	if err := p.WriteMetricsSnapshot(time.Now()); err != nil {
		return fmt.Errorf("write metrics snapshot: %w", err)
	}
	return nil
}
