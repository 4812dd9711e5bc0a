// Package pipeline wires the per-stage components in internal/{stats,score,
// persistence,multivariate,attribution,tripwire,backtrack,eri,alert,
// anticheat,sink,metrics} into the two dataflows the pipeline drives: the
// CETP inlet stream (tripwire + backtrack attribution) and the per-factory
// stream (windowed stats + scoring + persistence + multivariate + ERI +
// alerting). Each stage is an explicit instance held by the Pipeline and
// driven per input stream rather than on a fixed tick.
package pipeline

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shieldai/cetp-monitor/internal/alert"
	"github.com/shieldai/cetp-monitor/internal/anticheat"
	"github.com/shieldai/cetp-monitor/internal/attribution"
	"github.com/shieldai/cetp-monitor/internal/backtrack"
	"github.com/shieldai/cetp-monitor/internal/config"
	"github.com/shieldai/cetp-monitor/internal/eri"
	"github.com/shieldai/cetp-monitor/internal/ingest"
	"github.com/shieldai/cetp-monitor/internal/metrics"
	"github.com/shieldai/cetp-monitor/internal/model"
	"github.com/shieldai/cetp-monitor/internal/multivariate"
	"github.com/shieldai/cetp-monitor/internal/persistence"
	"github.com/shieldai/cetp-monitor/internal/score"
	"github.com/shieldai/cetp-monitor/internal/sink"
	"github.com/shieldai/cetp-monitor/internal/stats"
	"github.com/shieldai/cetp-monitor/internal/tripwire"
)

// Sinks groups every output stream the pipeline writes to.
type Sinks struct {
	Evidence *sink.JSONLWriter
	Alerts   *sink.JSONLWriter
	Tamper   *sink.JSONLWriter
	Metrics  *sink.AtomicJSONSink
}

// Pipeline owns every stage's process-wide state (persistence counters,
// cooldown store, metrics collector), constructed once at startup instead
// of living as package-level singletons.
type Pipeline struct {
	cfg *config.Config
	log *zap.Logger

	statsMgr   *stats.Manager
	scorer     *score.Scorer
	gate       *persistence.Gate
	groupAgg   *multivariate.Aggregator
	tripwireD  *tripwire.Detector
	backtrackE *backtrack.Engine
	eriScorer  *eri.Scorer
	router     *alert.Router

	aggregator *metrics.Aggregator
	latency    *metrics.LatencyCollector
	reporter   *metrics.Reporter
	exporter   *metrics.Exporter

	sinks Sinks
}

// New constructs a Pipeline wiring every stage from cfg. index may be nil if
// only the CETP stream will be driven (no backtrack attribution available).
func New(cfg *config.Config, log *zap.Logger, index *backtrack.FactoryIndex, sinks Sinks) *Pipeline {
	duration := time.Duration(cfg.WindowDurationMS) * time.Millisecond
	hop := time.Duration(cfg.WindowHopMS) * time.Millisecond
	syncTol := time.Duration(cfg.SyncToleranceMS) * time.Millisecond
	pipeTravel := time.Duration(cfg.PipeTravelMinutes) * time.Minute
	asofTol := time.Duration(cfg.AsofToleranceSeconds) * time.Second
	cooldown := time.Duration(cfg.AlertCooldownSeconds) * time.Second

	var bt *backtrack.Engine
	if index != nil {
		bt = backtrack.NewEngine(index, pipeTravel, asofTol)
	}

	now := time.Now()
	p := &Pipeline{
		cfg:        cfg,
		log:        log,
		statsMgr:   stats.NewManager(duration, hop),
		scorer:     score.NewScorer(cfg.ZScoreThreshold),
		gate:       persistence.NewGate(cfg.PersistenceCount, log),
		groupAgg:   multivariate.NewAggregator(cfg.SensorGroups, cfg.GroupThreshold, syncTol),
		tripwireD:  tripwire.NewDetector(cfg.CODThreshold, cfg.CODBaseline),
		backtrackE: bt,
		eriScorer:  eri.NewScorer(cfg.RiverSensitivity, cfg.DefaultSensitivity, cfg.SeverityMultiplier, eri.Thresholds{Low: cfg.ERIThresholdLow, Medium: cfg.ERIThresholdMedium, High: cfg.ERIThresholdHigh}),
		router:     alert.NewRouter(model.RiskBand(cfg.AlertMinRiskBand), cooldown),
		aggregator: metrics.NewAggregator(now),
		latency:    metrics.NewLatencyCollector(),
		exporter:   metrics.NewExporter(),
		sinks:      sinks,
	}
	p.reporter = metrics.NewReporter(p.latency, time.Duration(cfg.MetricsIntervalSeconds*float64(time.Second)), time.Duration(cfg.MetricsRateWindowSeconds*float64(time.Second)), log)
	return p
}

// ProcessCETP runs the tripwire + backtrack attribution dataflow over one
// ordered stream of CETP readings, writing confirmed evidence records.
func (p *Pipeline) ProcessCETP(readings []model.Reading) error {
	for _, r := range readings {
		p.aggregator.RecordEvent(r.Timestamp)
		p.exporter.IncEventsProcessed()
		if r.Value == nil {
			continue
		}
		evt, ok := p.tripwireD.Check(r.Timestamp, *r.Value)
		if !ok {
			continue
		}

		var evidence model.EvidenceRecord
		if p.backtrackE != nil {
			evidence = p.backtrackE.Attribute(r.Timestamp, evt.CODValue, evt.BreachMag, evt.AlertLevel)
		} else {
			evidence = model.EvidenceRecord{CETPEventTime: r.Timestamp, CETPCOD: evt.CODValue, BreachMag: evt.BreachMag, AlertLevel: evt.AlertLevel}
		}
		if p.sinks.Evidence != nil {
			if err := p.sinks.Evidence.Write(evidence); err != nil {
				return fmt.Errorf("write evidence record: %w", err)
			}
		}
		p.aggregator.RecordAnomaly(r.Timestamp, model.ERIReading{ERI: evt.BreachMag, RiskBand: model.RiskBand(evt.AlertLevel)})
		p.exporter.IncAnomaliesDetected()
	}
	return nil
}

// ProcessFactory runs the windowed-stats + scoring + persistence +
// multivariate + attribution + ERI + alert-routing dataflow over one
// factory's ordered reading stream.
func (p *Pipeline) ProcessFactory(readings []model.Reading) error {
	for _, r := range readings {
		p.aggregator.RecordEvent(r.Timestamp)
		p.exporter.IncEventsProcessed()

		for _, ws := range p.statsMgr.Process(r) {
			p.scorer.Observe(ws)
		}

		scored, ok := p.scorer.Score(r)
		if !ok {
			continue
		}
		confirmed := p.gate.Observe(r.SensorID, scored.IsAnomaly)
		if !confirmed {
			continue
		}

		for _, gw := range p.groupAgg.Observe(r.SensorID, r.Timestamp, scored.ZScore) {
			if err := p.emitGroupWindow(gw); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush drains every stage's remaining buffered state (final windows, open
// group-sync buckets), emitting whatever they produce.
func (p *Pipeline) Flush() error {
	for _, ws := range p.statsMgr.Flush() {
		p.scorer.Observe(ws)
	}
	for _, gw := range p.groupAgg.Flush() {
		if err := p.emitGroupWindow(gw); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) emitGroupWindow(gw model.GroupWindow) error {
	if !gw.IsGroupAnomaly {
		return nil
	}
	attributed := attribution.Format(gw)
	eriReading := p.eriScorer.Score(attributed)
	p.aggregator.RecordAnomaly(eriReading.Timestamp, eriReading)
	p.exporter.IncAnomaliesDetected()

	alertRecord, ok := p.router.Route(eriReading)
	if !ok {
		return nil
	}
	p.aggregator.RecordAlert()
	if p.sinks.Alerts != nil {
		if err := p.sinks.Alerts.Write(alertRecord); err != nil {
			return fmt.Errorf("write alert record: %w", err)
		}
	}
	return nil
}

// RunAntiCheat runs the three tumbling-window tamper detectors over every
// factory's full reading history and writes the combined, time-sorted
// results to the tamper sink.
func (p *Pipeline) RunAntiCheat(byFactory map[string][]model.Reading) error {
	acCfg := anticheat.Config{
		ZeroVarianceWindow: time.Duration(p.cfg.ZeroVarianceMinutes) * time.Minute,
		DilutionWindow:     time.Duration(p.cfg.DilutionWindowMinutes) * time.Minute,
		CODDropFraction:    p.cfg.CODDropFraction,
		TSSStableFraction:  p.cfg.TSSStableFraction,
		BlackoutWindow:     time.Duration(p.cfg.BlackoutMinMinutes) * time.Minute,
		BlackoutThreshold:  0.8,
	}
	records := anticheat.RunAll(byFactory, acCfg)
	for _, rec := range records {
		p.exporter.IncTamperDetection(string(rec.TamperType))
		if p.sinks.Tamper != nil {
			if err := p.sinks.Tamper.Write(rec); err != nil {
				return fmt.Errorf("write tamper record: %w", err)
			}
		}
	}
	return nil
}

// WriteMetricsSnapshot computes the current aggregator snapshot, mirrors it
// into the Prometheus exporter, and writes it to the metrics sink.
func (p *Pipeline) WriteMetricsSnapshot(now time.Time) error {
	snap := p.aggregator.Snapshot(now)
	p.exporter.Update(snap, p.latency.P50(), p.latency.P99())
	if p.sinks.Metrics == nil {
		return nil
	}
	if err := p.sinks.Metrics.Write(snap); err != nil {
		return fmt.Errorf("write metrics snapshot: %w", err)
	}
	return nil
}

// Exporter returns the Prometheus exporter for mounting its HTTP handler.
func (p *Pipeline) Exporter() *metrics.Exporter { return p.exporter }

// Reporter returns the periodic latency-summary reporter.
func (p *Pipeline) Reporter() *metrics.Reporter { return p.reporter }

// Latency returns the rolling latency collector so callers can record
// per-alert processing latency.
func (p *Pipeline) Latency() *metrics.LatencyCollector { return p.latency }

// LoadFactoryReadings ingests every factory_*.csv file in dir and returns
// both the merged, time-sorted, non-null stream (for the backtrack index)
// and the per-factory full stream, BLACKOUT rows included, for windowed
// stats and anti-cheat (the blackout detector counts null-cod rows).
func LoadFactoryReadings(cfg *config.Config, dir string) (merged []model.FactoryRow, byFactory map[string][]model.Reading, err error) {
	files, err := ingest.ListFactoryFiles(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("list factory files: %w", err)
	}
	byFactory = make(map[string][]model.Reading, len(files))

	for _, path := range files {
		factoryID := factoryIDFromPath(path)
		result, err := ingest.IngestFactory(cfg, ingest.FileSource{Path: path}, factoryID)
		if err != nil {
			return nil, nil, fmt.Errorf("ingest %s: %w", path, err)
		}
		byFactory[factoryID] = append(byFactory[factoryID], result.Full...)
		for _, r := range result.Clean {
			if r.Value == nil {
				continue
			}
			merged = append(merged, model.FactoryRow{FactoryID: r.FactoryID, Time: r.Timestamp, COD: *r.Value, BOD: r.BOD, PH: r.PH, TSS: r.TSS})
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Time.Before(merged[j].Time) })
	return merged, byFactory, nil
}

func factoryIDFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".csv")
}
