package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Cioraz/Iot-Project/internal/logging"
	"github.com/Cioraz/Iot-Project/internal/observability"
	"github.com/Cioraz/Iot-Project/internal/report"
	"github.com/Cioraz/Iot-Project/internal/scenario"
	"github.com/Cioraz/Iot-Project/internal/store"
	"github.com/Cioraz/Iot-Project/timectrl"
)

type runFlags struct {
	scenario    string
	configPath  string
	mitigation  bool
	simTime     float64
	format      string
	summary     bool
	timeline    bool
	compare     bool
	dbPath      string
	metricsAddr string
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario and print every delivery outcome",
		Long: `run executes a built-in scenario (--scenario) or a JSON scenario file
(--config) to completion and prints each receiver decision in time order.

With --compare the scenario is run twice, mitigation off and on, and both
reports are printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), f, cmd.Flags().Changed("mitigation"))
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.scenario, "scenario", scenario.PresetReplay, "built-in scenario name (see `simulator scenarios`)")
	fl.StringVar(&f.configPath, "config", "", "path to a JSON scenario; overrides --scenario")
	fl.BoolVar(&f.mitigation, "mitigation", false, "drop DIOs whose sequence number was already seen")
	fl.Float64Var(&f.simTime, "sim-time", 0, "stop time in seconds (default: the scenario's own)")
	fl.StringVar(&f.format, "format", "text", "outcome format: text, json or ns3")
	fl.BoolVar(&f.summary, "summary", true, "print per-node accepted/dropped counts")
	fl.BoolVar(&f.timeline, "timeline", false, "print the cumulative accepted-DIO curve")
	fl.BoolVar(&f.compare, "compare", false, "run with mitigation off and on and report both")
	fl.StringVar(&f.dbPath, "db", "", "SQLite file to record the run in")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus /metrics on this address until interrupted")
	return cmd
}

func (a *app) run(ctx context.Context, f *runFlags, mitigationSet bool) error {
	log := a.logger()
	ctx, _ = logging.EnsureRunID(ctx)

	if err := report.CheckFormat(f.format); err != nil {
		return err
	}
	cfg, err := resolveConfig(f, mitigationSet)
	if err != nil {
		return err
	}

	tcfg := observability.TracingConfigFromEnv()
	tcfg.Scenario = cfg.Name
	shutdown, err := observability.InitTracing(ctx, tcfg, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	collector, err := observability.NewSimCollector(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	var metricsSrv *http.Server
	if f.metricsAddr != "" {
		metricsSrv = serveMetrics(f.metricsAddr, collector, log)
	}

	configs := []scenario.Config{cfg}
	if f.compare {
		configs = []scenario.Config{cfg.WithMitigation(false), cfg.WithMitigation(true)}
	}
	results, err := runAll(ctx, configs, log, collector)
	if err != nil {
		return err
	}

	var db *store.Store
	if f.dbPath != "" {
		db, err = store.Open(f.dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	for i, res := range results {
		on := mitigationOf(configs[i])
		if f.compare {
			fmt.Fprintf(a.out, "== %s mitigation=%s ==\n", configs[i].Name, onOff(on))
		}
		if err := report.Write(a.out, f.format, res.Outcomes); err != nil {
			return err
		}
		if f.summary {
			if err := report.WriteSummary(a.out, res.Summary()); err != nil {
				return err
			}
		}
		if f.timeline {
			if err := report.WriteTimeline(a.out, report.Timeline(res.Outcomes)); err != nil {
				return err
			}
		}
		if db != nil {
			id, err := db.SaveRun(ctx, configs[i].Name, on, res)
			if err != nil {
				return err
			}
			log.Info(ctx, "run recorded", logging.String("db", f.dbPath), logging.String("id", id))
		}
	}

	if metricsSrv != nil {
		log.Info(ctx, "run finished; serving metrics until interrupted", logging.String("addr", f.metricsAddr))
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// runAll executes each config on its own goroutine. Runs are independent,
// so results come back in input order regardless of completion order.
func runAll(ctx context.Context, configs []scenario.Config, log logging.Logger, metrics scenario.MetricsRecorder) ([]*scenario.Result, error) {
	ctx, base := logging.EnsureRunID(ctx)
	results := make([]*scenario.Result, len(configs))
	errs := make([]error, len(configs))

	var wg sync.WaitGroup
	for i, cfg := range configs {
		wg.Add(1)
		go func(i int, cfg scenario.Config) {
			defer wg.Done()
			runCtx := logging.ContextWithRunID(ctx, fmt.Sprintf("%s-%d", base, i))
			results[i], errs[i] = scenario.Run(runCtx, cfg,
				scenario.WithLogger(log.With(logging.Bool("mitigation", mitigationOf(cfg)))),
				scenario.WithMetrics(metrics),
				scenario.WithSink(report.NewLogSink(runCtx, log)),
			)
		}(i, cfg)
	}
	wg.Wait()
	return results, errors.Join(errs...)
}

func resolveConfig(f *runFlags, mitigationSet bool) (scenario.Config, error) {
	var (
		cfg scenario.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = loadConfigFile(f.configPath)
		if err != nil {
			return scenario.Config{}, err
		}
		if mitigationSet {
			cfg = cfg.WithMitigation(f.mitigation)
		}
	} else {
		cfg, err = scenario.Preset(f.scenario, f.mitigation)
		if err != nil {
			return scenario.Config{}, err
		}
	}

	switch {
	case f.simTime < 0:
		return scenario.Config{}, fmt.Errorf("--sim-time must not be negative, got %g", f.simTime)
	case f.simTime > 0:
		stop, err := timectrl.ParseSeconds(f.simTime)
		if err != nil {
			return scenario.Config{}, fmt.Errorf("--sim-time: %w", err)
		}
		cfg = cfg.WithStopTime(stop)
	}
	if cfg.Name == "" {
		cfg.Name = "custom"
	}
	return cfg, cfg.Validate()
}

func loadConfigFile(path string) (scenario.Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return scenario.Config{}, fmt.Errorf("open scenario %q: %w", path, err)
	}
	defer fh.Close()
	cfg, err := scenario.LoadConfig(fh)
	if err != nil {
		return scenario.Config{}, fmt.Errorf("load scenario %q: %w", path, err)
	}
	return cfg, nil
}

// mitigationOf reports whether every receiver in cfg drops replays.
func mitigationOf(cfg scenario.Config) bool {
	if len(cfg.Receivers) == 0 {
		return false
	}
	for _, r := range cfg.Receivers {
		if !r.Mitigation {
			return false
		}
	}
	return true
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func metricsMux(collector *observability.SimCollector) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	return mux
}

func serveMetrics(addr string, collector *observability.SimCollector, log logging.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metricsMux(collector),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
