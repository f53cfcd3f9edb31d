//go:build linux

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/cgwatch/cgwatch/pkg/config"
	"github.com/cgwatch/cgwatch/pkg/exporter"
	"github.com/cgwatch/cgwatch/pkg/system/cgroup"
)

var (
	listenFlag string
	goMetrics  bool
)

func main() {
	root := &cobra.Command{
		Use:   "cgwatch",
		Short: "Cgroup and process metrics exporter for a single target PID",
		Long: `cgwatch watches one process from the outside: it resolves the cgroup the
target PID lives in (cgroup v1 or v2), reads the kernel's CPU throttling and
memory accounting for it, and serves everything as Prometheus metrics.

Configuration is environment-driven:
  TARGET_PID             pid whose cgroup is inspected (required)
  METRICS_PREFIX         prefix for all metric names (required)
  TARGET_PID_REGEXP      widen the process metrics to matching cmdlines
  EXPORTER_LISTEN        listen address (default :9100)
  METRICS_STATIC_LABELS  k=v,k2=v2 labels stamped on every metric
  CGROUP_ROOT            unified hierarchy mount override
  NET_INTERFACE          interface for network counters (default eth0)
  DOWNWARD_API_DIR       optional Downward API volume to expose as info
  LOG_LEVEL              debug, info, warn or error`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	root.Flags().StringVar(&listenFlag, "listen", "", "listen address, overrides EXPORTER_LISTEN")
	root.Flags().BoolVar(&goMetrics, "go-metrics", false, "also expose Go runtime metrics for the exporter itself")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if listenFlag != "" {
		cfg.ListenAddr = listenFlag
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ver, detail, err := cgroup.Detect(cfg.ProcRoot)
	if err != nil {
		logger.Warn("cgroup detection failed", "err", err)
	} else {
		logger.Info("detected cgroup mode", "mode", ver.String(), "detail", detail)
	}

	reg, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     newMux(reg, logger),
		ReadTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting",
			"listen_addr", cfg.ListenAddr,
			"target_pid", cfg.TargetPID,
			"prefix", cfg.MetricsPrefix,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func newMux(reg *prometheus.Registry, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorLog:      slog.NewLogLogger(logger.Handler(), slog.LevelError),
		ErrorHandling: promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

func buildRegistry(cfg *config.Config, logger *slog.Logger) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels(cfg.StaticLabels)

	var locOpts []cgroup.LocatorOption
	if cfg.ProcRoot != "/proc" {
		locOpts = append(locOpts, cgroup.WithProcRoot(cfg.ProcRoot))
	}
	if cfg.CgroupRoot != "" {
		locOpts = append(locOpts, cgroup.WithCgroupRoot(cfg.CgroupRoot))
	}
	locator := cgroup.NewLocator(locOpts...)
	reg.MustRegister(exporter.NewCgroupCollector(locator, cfg.TargetPID, cfg.MetricsPrefix, constLabels, logger))

	process, err := exporter.NewProcessCollector(cfg.ProcRoot,
		exporter.Target{PID: cfg.TargetPID, Regex: cfg.TargetRegexp},
		cfg.MetricsPrefix, constLabels, logger)
	if err != nil {
		return nil, err
	}
	reg.MustRegister(process)

	host, err := exporter.NewHostCollector(cfg.ProcRoot, cfg.MetricsPrefix, constLabels, logger)
	if err != nil {
		return nil, err
	}
	reg.MustRegister(host)

	tcp, err := exporter.NewTCPCollector(cfg.ProcRoot, cfg.MetricsPrefix, constLabels, logger)
	if err != nil {
		return nil, err
	}
	reg.MustRegister(tcp)

	if cfg.NetInterface != "" {
		netdev, err := exporter.NewNetdevCollector(cfg.ProcRoot, cfg.NetInterface, cfg.MetricsPrefix, constLabels, logger)
		if err != nil {
			return nil, err
		}
		reg.MustRegister(netdev)
	}
	if cfg.DownwardDir != "" {
		reg.MustRegister(exporter.NewDownwardCollector(cfg.DownwardDir, cfg.MetricsPrefix, constLabels, logger))
	}
	if goMetrics {
		reg.MustRegister(collectors.NewGoCollector())
	}
	return reg, nil
}
