// Command counter serves the reference counter application over the
// ABCI socket protocol, and optionally over gRPC.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/blockberries/abci/example/counter"
	abcigrpc "github.com/blockberries/abci/grpc"
	"github.com/blockberries/abci/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "counter: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		flags      Config
	)
	cmd := &cobra.Command{
		Use:           "counter",
		Short:         "Serve the counter application over ABCI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := DefaultConfig()
			if configPath != "" {
				loaded, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			// Flags override the file.
			fs := cmd.Flags()
			if fs.Changed("addr") {
				cfg.Addr = flags.Addr
			}
			if fs.Changed("grpc-addr") {
				cfg.GRPCAddr = flags.GRPCAddr
			}
			if fs.Changed("metrics-addr") {
				cfg.MetricsAddr = flags.MetricsAddr
			}
			if fs.Changed("serial") {
				cfg.Serial = flags.Serial
			}
			if fs.Changed("db") {
				cfg.DBPath = flags.DBPath
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, newLogger(cfg.LogLevel))
		},
	}
	d := DefaultConfig()
	fs := cmd.Flags()
	fs.StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	fs.StringVar(&flags.Addr, "addr", d.Addr, "ABCI socket listen address")
	fs.StringVar(&flags.GRPCAddr, "grpc-addr", "", "gRPC listen address (disabled when empty)")
	fs.StringVar(&flags.MetricsAddr, "metrics-addr", "", "prometheus listen address (disabled when empty)")
	fs.BoolVar(&flags.Serial, "serial", d.Serial, "require transactions to encode the next count")
	fs.StringVar(&flags.DBPath, "db", "", "bbolt database path (in-memory when empty)")
	return cmd
}

func newLogger(level zerolog.Level) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(level).With().Timestamp().Str("app", "counter").Logger()
}

func openApp(cfg Config, log zerolog.Logger) (*counter.App, error) {
	opts := []counter.Option{
		counter.WithSerial(cfg.Serial),
		counter.WithLogger(log.With().Str("component", "counter").Logger()),
	}
	if cfg.DBPath == "" {
		return counter.New(opts...), nil
	}
	store, err := counter.OpenBoltStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	app, err := counter.Open(store, opts...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return app, nil
}

func run(ctx context.Context, cfg Config, log zerolog.Logger) error {
	app, err := openApp(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := server.New(app, cfg.Server,
		server.WithLogger(log),
		server.WithMetrics(server.NewMetrics("counter", reg)),
	)

	committed := app.Committed()
	log.Info().
		Str("addr", cfg.Addr).
		Bool("serial", cfg.Serial).
		Int64("height", committed.Height).
		Uint64("txs", committed.TxCount).
		Msg("starting counter")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx, cfg.Addr)
	})

	if cfg.GRPCAddr != "" {
		network, address := server.ParseAddress(cfg.GRPCAddr)
		lis, err := net.Listen(network, address)
		if err != nil {
			cancel()
			_ = g.Wait()
			return fmt.Errorf("grpc listen: %w", err)
		}
		gs := grpc.NewServer()
		abcigrpc.NewGRPCServer(app, abcigrpc.WithLogger(log)).Register(gs)
		g.Go(func() error {
			log.Info().Str("addr", cfg.GRPCAddr).Msg("grpc server started")
			return gs.Serve(lis)
		})
		g.Go(func() error {
			<-ctx.Done()
			gs.GracefulStop()
			return nil
		})
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		hs := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Info().Str("addr", cfg.MetricsAddr).Str("endpoint", "/metrics").Msg("metrics server started")
			if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Shutdown(sctx)
		})
	}

	err = g.Wait()
	log.Info().Msg("counter stopped")
	return err
}
