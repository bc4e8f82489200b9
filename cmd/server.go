package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rentalagent/internal/conf"
	"rentalagent/internal/dockerx"
	"rentalagent/internal/metrics"
	"rentalagent/internal/netx"
	"rentalagent/internal/system"
	"rentalagent/internal/tunnel"
	"rentalagent/internal/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "rentalagent",
		Short:         "Stream host telemetry and control containers over socket.io",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "Path to the TOML config file")

	serve := &cobra.Command{
		Use:   "serve [notify-url]",
		Short: "Start the telemetry server and publish it through a tunnel",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var notifyURL string
			if len(args) == 1 {
				notifyURL = args[0]
			}
			return runServe(cmd.Context(), configPath, notifyURL)
		},
	}

	root.AddCommand(serve, newRegistryCmd())
	return root
}

func runServe(ctx context.Context, configPath, notifyURL string) error {
	if err := conf.LoadConfig(configPath); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if notifyURL != "" {
		conf.SetNotifyURL(notifyURL)
	}
	cfg := conf.Read()

	logger := configureLogger(cfg.Log.Level)
	slog.SetDefault(logger)
	logger.Info("Starting telemetry server", slog.String("config", configPath))

	m := metrics.New()

	probe := system.NewHostProbe(cfg.GPU.Command)
	info := system.NewInfoCache(probe, logger)
	info.Prime(ctx)

	sampler := system.NewSampler(probe, cfg.Stream.CPUWindow, cfg.Stream.DiskPath, logger)
	sampler.OnGPUFailure = m.GPUQueryFailed

	dockerClient, err := dockerx.NewClient(cfg.Docker.Host)
	if err != nil {
		return err
	}
	defer dockerClient.Close()

	io := new(netx.Socket)
	io.Initialize()
	ns := io.AddNamespace("/")

	dash := web.NewDashboard(info, sampler, web.DashboardOptions{
		StartupDelay: cfg.Stream.StartupDelay,
		Interval:     cfg.Stream.Interval,
	}, m, logger)
	dash.Register(ctx, ns)
	web.NewContainers(dockerx.NewController(dockerClient, logger), m, logger).Register(ctx, ns)
	ns.RegisterEvents()

	mux := http.NewServeMux()
	web.StartSocket(mux, io)
	web.StartMetrics(mux, m)
	web.StartHealth(mux, dash)
	if web.StartAssets(mux) {
		logger.Info("Serving dashboard assets", slog.String("root", cfg.Web.RootPath))
	}

	// Failing to bind is the one fatal startup error.
	addr := cfg.Server.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Socket.IO server started", slog.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		dash.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Tunnel.Enabled {
		notifier := tunnel.NewNotifier(cfg.Tunnel.NotifyURL, cfg.Tunnel.NotifyTimeout)
		publisher := tunnel.NewPublisher(tunnel.NgrokOpener{Authtoken: cfg.Tunnel.Authtoken}, notifier, logger)
		g.Go(func() error {
			return publisher.Run(gctx, cfg.Server.Port)
		})
	}

	return g.Wait()
}

func configureLogger(level string) *slog.Logger {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		log.Printf("Invalid log level: %s. Defaulting to info.\n", level)
		logLevel = slog.LevelInfo
	}

	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(logHandler)
}
