package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cartridge/replay/internal/config"
	"github.com/cartridge/replay/internal/events"
	adminhttp "github.com/cartridge/replay/internal/http"
	"github.com/cartridge/replay/internal/metrics"
	"github.com/cartridge/replay/internal/middleware"
	"github.com/cartridge/replay/internal/schedule"
	"github.com/cartridge/replay/internal/service"
	"github.com/cartridge/replay/internal/storage"
	replayv1 "github.com/cartridge/replay/pkg/replay/v1"
)

var rootCmd = &cobra.Command{
	Use:   "replay-server",
	Short: "Cartridge experience replay service",
	Long: `Replay service that stores transitions from actors and serves
uniform or prioritized sample batches to learners over gRPC.

Every flag can also be set through a REPLAY_ environment variable,
e.g. REPLAY_MAX_SIZE=500000.`,
	RunE:         runServer,
	SilenceUsage: true,
}

func init() {
	config.RegisterFlags(rootCmd.Flags(), config.Default())
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.New(), cmd.Flags())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := zerolog.New(os.Stdout).Level(level).With().
		Timestamp().
		Str("service", "replay").
		Logger()

	logger.Info().
		Int("port", cfg.Port).
		Int("admin_port", cfg.AdminPort).
		Str("mode", cfg.Mode).
		Int("max_size", cfg.MaxSize).
		Int("initial_size", cfg.InitialSize).
		Msg("Starting replay service")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	publisher, closePublisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	backend, err := newBackend(cfg, publisher, metrics.NewCollector(registry, logger), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing backend")
		}
	}()

	server := grpc.NewServer(
		grpc.UnaryInterceptor(middleware.UnaryLogger(logger)),
	)
	replayv1.RegisterReplayServer(server, service.NewReplayService(backend, logger))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(replayv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", cfg.Port, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info().Str("addr", lis.Addr().String()).Msg("Replay service listening")
		if err := server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})

	var admin *http.Server
	if cfg.AdminPort != 0 {
		admin = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.AdminPort),
			Handler:           adminhttp.NewServer(backend, registry, logger).Routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		group.Go(func() error {
			logger.Info().Str("addr", admin.Addr).Msg("Admin server listening")
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin serve: %w", err)
			}
			return nil
		})
	}

	// Runs on a signal or when either server fails.
	group.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("Shutting down gracefully...")
		shutdown(cfg.ShutdownTimeout, server, healthServer, admin, logger)
		return nil
	})

	return group.Wait()
}

func shutdown(timeout time.Duration, server *grpc.Server, healthServer *health.Server, admin *http.Server, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	healthServer.Shutdown()
	if admin != nil {
		if err := admin.Shutdown(ctx); err != nil {
			logger.Warn().Err(err).Msg("Admin server shutdown")
		}
	}

	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		logger.Warn().Msg("Shutdown timeout exceeded, forcing stop")
		server.Stop()
	case <-stopped:
		logger.Info().Msg("Server stopped gracefully")
	}
}

func newPublisher(cfg *config.Config, logger zerolog.Logger) (events.Publisher, func(), error) {
	if cfg.NATSURL == "" {
		return events.NoopPublisher{}, func() {}, nil
	}
	pub, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats: %w", err)
	}
	logger.Info().Str("url", cfg.NATSURL).Str("subject", cfg.NATSSubject).Msg("Publishing buffer events")
	return pub, pub.Close, nil
}

func newBackend(cfg *config.Config, publisher events.Publisher, collector *metrics.Collector, logger zerolog.Logger) (*storage.MemoryBackend, error) {
	opts := storage.Options{
		Mode:        storage.Mode(cfg.Mode),
		InitialSize: cfg.InitialSize,
		MaxSize:     cfg.MaxSize,
		Alpha:       cfg.Alpha,
		Epsilon:     cfg.Epsilon,
		Publisher:   publisher,
		Metrics:     collector,
		Logger:      logger,
	}
	if cfg.Seed != 0 {
		opts.Source = rand.New(rand.NewSource(cfg.Seed))
	}
	if opts.Mode == storage.ModePrioritized {
		beta, err := schedule.NewLinear(cfg.BetaStart, cfg.BetaEnd, cfg.BetaSteps)
		if err != nil {
			return nil, fmt.Errorf("beta schedule: %w", err)
		}
		opts.Beta = beta
	}

	backend, err := storage.NewMemoryBackend(opts)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}
	return backend, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
