package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/pipetakeoff/internal/async"
	"github.com/joseph-ayodele/pipetakeoff/internal/common"
	"github.com/joseph-ayodele/pipetakeoff/internal/ingest"
	"github.com/joseph-ayodele/pipetakeoff/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr     string
		watchDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Starts the takeoff API with an in-memory session store, a gRPC health
service on a separate port and, when a watch directory is set, a hot folder
that ingests every PDF dropped into it.`,
		Example: `  # Start on the configured address
  pipetakeoff serve

  # Override the address and watch a folder
  pipetakeoff serve --addr :9090 --watch ./inbox`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if addr != "" {
				cfg.Server.HTTPAddr = addr
			}
			if watchDir != "" {
				cfg.Watch.Dir = watchDir
			}
			return serve(cmd.Context(), cfg, opts.logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	cmd.Flags().StringVar(&watchDir, "watch", "", "Directory to watch for new PDFs (overrides WATCH_DIR)")

	return cmd
}

func serve(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	go a.store.Run(ctx)

	if cfg.Watch.Dir != "" {
		queue, err := startHotFolder(ctx, a, cfg.Watch, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancelShutdown()
			queue.Shutdown(shutdownCtx)
		}()
	}

	health := server.NewHealthServer(logger)
	healthErr := make(chan error, 1)
	go func() { healthErr <- health.ListenAndServe(cfg.Server.GRPCHealthAddr) }()
	defer health.Stop()

	lis, err := net.Listen("tcp", cfg.Server.HTTPAddr)
	if err != nil {
		return err
	}
	api := server.New(server.Deps{
		Ingest:   a.ingest,
		Sessions: a.store,
		Analysis: a.analysis,
		Export:   a.export,
	}, server.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadMB:    cfg.Server.MaxUploadMB,
		BeforeShutdown: func() { health.SetServing(false) },
	}, logger)

	httpErr := make(chan error, 1)
	go func() { httpErr <- api.Serve(ctx, lis) }()
	health.SetServing(true)
	logger.Info("pipetakeoff.started",
		"http_addr", lis.Addr().String(),
		"grpc_health_addr", cfg.Server.GRPCHealthAddr,
		"provider", cfg.LLM.Provider,
		"session_ttl", cfg.Session.TTL.String(),
	)

	select {
	case err = <-httpErr:
	case err = <-healthErr:
		if err == nil {
			err = errors.New("grpc health server stopped unexpectedly")
		}
		cancel()
		<-httpErr
	}
	health.SetServing(false)
	return err
}

func startHotFolder(ctx context.Context, a *app, cfg common.WatchConfig, logger *slog.Logger) (*async.WorkerQueue, error) {
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{cfg.Dir},
		InitialScan: true,
		Debounce:    cfg.Debounce,
	}, logger)
	if err != nil {
		return nil, err
	}

	queue := async.NewWorkerQueue(a.ingest.JobHandler(), logger, async.WithWorkers(cfg.Workers))
	go ingest.Feed(ctx, events, errs, queue, logger)
	logger.Info("hotfolder.started", "dir", cfg.Dir, "workers", cfg.Workers)
	return queue, nil
}
