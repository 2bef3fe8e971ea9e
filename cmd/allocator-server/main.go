package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/constellation-allocator/core"
	"github.com/signalsfoundry/constellation-allocator/internal/allocsvc"
	"github.com/signalsfoundry/constellation-allocator/internal/logging"
	"github.com/signalsfoundry/constellation-allocator/internal/observability"
	"github.com/signalsfoundry/constellation-allocator/internal/store"
	"github.com/signalsfoundry/constellation-allocator/kb"
)

// Config holds the server's runtime settings.
type Config struct {
	ListenAddress   string
	MetricsAddress  string
	ScenarioPath    string
	DBPath          string
	Mode            string
	Parallelism     int
	MaxSatellites   int
	MaxApplications int
}

func main() {
	cfg := Config{}
	flag.StringVar(&cfg.ListenAddress, "grpc-addr", ":50061", "TCP address the allocation gRPC server listens on")
	flag.StringVar(&cfg.MetricsAddress, "metrics-addr", ":9091", "HTTP address for Prometheus /metrics (empty disables)")
	flag.StringVar(&cfg.ScenarioPath, "scenario", os.Getenv("ALLOC_SCENARIO"), "scenario JSON file to load at startup")
	flag.StringVar(&cfg.DBPath, "db", os.Getenv("ALLOC_DB"), "run history database (empty disables history)")
	flag.StringVar(&cfg.Mode, "mode", core.ModeExhaustive.String(), "default exact search mode: exhaustive or first-fit")
	flag.IntVar(&cfg.Parallelism, "parallel", 1, "default exact search parallelism")
	flag.IntVar(&cfg.MaxSatellites, "max-satellites", 0, "reject scenarios with more satellites (0 = unlimited)")
	flag.IntVar(&cfg.MaxApplications, "max-applications", 0, "reject runs with more applications (0 = unlimited)")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.ListenAddress), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "allocator server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then stops gracefully.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	mode, err := core.ParseSearchMode(cfg.Mode)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rpcMetrics, err := observability.NewRPCCollector(reg)
	if err != nil {
		return fmt.Errorf("rpc metrics: %w", err)
	}
	allocMetrics, err := observability.NewAllocationCollector(reg)
	if err != nil {
		return fmt.Errorf("allocation metrics: %w", err)
	}

	base := kb.NewKnowledgeBase()
	unsubscribe := base.Subscribe(func(ev kb.Event) {
		rpcMetrics.SetScenarioCounts(ev.Satellites, ev.Applications)
	})
	defer unsubscribe()
	if err := loadScenario(base, cfg.ScenarioPath); err != nil {
		return err
	}
	log.Info(ctx, "scenario loaded",
		logging.String("dataset", base.Dataset()),
		logging.Int("satellites", len(base.ListSatellites())),
		logging.Int("applications", len(base.ListApplications())),
		logging.Int("steps", base.StepCount()),
	)

	opts := []allocsvc.Option{
		allocsvc.WithLimits(core.Limits{MaxSatellites: cfg.MaxSatellites, MaxApplications: cfg.MaxApplications}),
		allocsvc.WithExactConfig(core.ExactConfig{Mode: mode, Parallelism: cfg.Parallelism}),
		allocsvc.WithMetrics(allocMetrics),
		allocsvc.WithLogger(log),
	}
	if cfg.DBPath != "" {
		history, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		defer history.Close()
		opts = append(opts, allocsvc.WithHistory(history))
	}

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			allocsvc.RunIDUnaryServerInterceptor(log),
			allocsvc.TracingUnaryServerInterceptor(),
			rpcMetrics.UnaryServerInterceptor(),
		),
	)
	allocsvc.RegisterAllocationServiceServer(server, allocsvc.NewService(base, opts...))

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(server, healthSrv)
	healthSrv.SetServingStatus(allocsvc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	metricsSrv := serveMetrics(cfg.MetricsAddress, rpcMetrics, log)

	serveErr := make(chan error, 1)
	log.Info(ctx, "starting allocation gRPC server", logging.String("addr", lis.Addr().String()))
	go func() {
		serveErr <- server.Serve(lis)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("gRPC server: %w", err)
		}
	}

	log.Info(context.Background(), "shutting down allocation server")
	healthSrv.Shutdown()
	server.GracefulStop()

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}

func loadScenario(base *kb.KnowledgeBase, path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()

	sc, err := core.DecodeScenario(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return base.LoadScenario(sc)
}

func serveMetrics(addr string, collector *observability.RPCCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
