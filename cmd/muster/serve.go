package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/aretw0/muster/pkg/adapters/http"
	"github.com/aretw0/muster/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the graph over HTTP and WebSocket",
	Long: `Starts the engine on the configured graph and exposes it over HTTP:
POST / resolves a query, GET /ws streams subscriptions, GET /metrics reports
Prometheus metrics. When redis.addr is configured, events are relayed to every
other instance on the same channel.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("addr") {
			a.cfg.HTTP.Addr, _ = flags.GetString("addr")
		}
		if flags.Changed("root") {
			a.cfg.Root, _ = flags.GetStringSlice("root")
		}
		if flags.Changed("redis") {
			a.cfg.Redis.Addr, _ = flags.GetString("redis")
		}

		hooks := observability.LogHooks(a.logger)
		opts := []httpAdapter.Option{
			httpAdapter.WithRoot(a.cfg.Root...),
			httpAdapter.WithTimeout(a.cfg.HTTP.Timeout),
			httpAdapter.WithMaxBytes(a.cfg.HTTP.MaxBytes),
			httpAdapter.WithLogger(a.logger),
		}
		if a.cfg.HTTP.Metrics {
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			hooks = observability.Combine(hooks, observability.NewMetrics(reg).Hooks())
			opts = append(opts, httpAdapter.WithMetrics(observability.Handler(reg)))
		}

		eng, err := a.engine(hooks)
		if err != nil {
			return err
		}
		defer eng.Close()

		srv := &http.Server{
			Addr:              a.cfg.HTTP.Addr,
			Handler:           httpAdapter.NewHandler(eng, opts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			a.logger.Info("Starting Muster Server", "address", srv.Addr, "graph", a.cfg.Graph)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
				return srv.Close()
			}
			a.logger.Info("Muster Server stopped gracefully")
			return nil
		})
		if bridge, client := a.bridge(eng); bridge != nil {
			defer client.Close()
			g.Go(func() error {
				return bridge.Run(ctx)
			})
		}
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (default from config, :8080)")
	serveCmd.Flags().StringSlice("root", nil, "Path of the subtree queries resolve against")
	serveCmd.Flags().String("redis", "", "Redis address of the event bridge")
}
