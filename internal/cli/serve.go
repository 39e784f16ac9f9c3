package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/jobstore/api"
	"github.com/xraph/jobstore/job"
	"github.com/xraph/jobstore/middleware"
	"github.com/xraph/jobstore/monitor"
	"github.com/xraph/jobstore/storage"
	"github.com/xraph/jobstore/worker"
)

// shutdownTimeout bounds draining of in-flight jobs and HTTP requests.
const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run workers, maintenance and the monitoring API",
	RunE:  runServe,
}

func init() {
	fs := serveCmd.Flags()
	fs.StringSlice("queues", []string{worker.DefaultQueue}, "queues to process, highest priority first")
	fs.Int("workers", 4, "concurrent workers")
	fs.Int("max-retries", 3, "retries before a job is marked failed")
	fs.Duration("job-timeout", 0, "per-job execution timeout (0 disables)")
	fs.String("http-addr", ":8080", "monitoring API and /metrics address")
	fs.Duration("poll-interval", 15*time.Second, "delay between empty claim rounds")
	fs.Duration("invisibility-timeout", 30*time.Minute, "age after which a claimed entry is reclaimed")
	fs.Duration("expiration-interval", time.Hour, "pause between expiration sweeps")
	fs.Duration("aggregate-interval", 5*time.Minute, "pause between counter aggregation runs")
	fs.Duration("lock-lifetime", 30*time.Second, "lifetime of an unrenewed distributed lock")

	bindFlag("queues", fs, "queues")
	bindFlag("workers", fs, "workers")
	bindFlag("max_retries", fs, "max-retries")
	bindFlag("job_timeout", fs, "job-timeout")
	bindFlag("http_addr", fs, "http-addr")
	bindFlag("poll_interval", fs, "poll-interval")
	bindFlag("invisibility_timeout", fs, "invisibility-timeout")
	bindFlag("expiration_interval", fs, "expiration-interval")
	bindFlag("aggregate_interval", fs, "aggregate-interval")
	bindFlag("lock_lifetime", fs, "lock-lifetime")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, logger := loadConfig()

	reg := job.NewRegistry()
	registerBuiltins(reg, logger)

	st, err := openStorage(cfg, logger, storage.WithResolver(reg))
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn := st.Connection()
	exec := worker.NewExecutor(conn, reg, logger,
		worker.WithMaxRetries(cfg.MaxRetries),
		worker.WithJobTimeout(cfg.JobTimeout),
		worker.WithMiddleware(
			middleware.Logging(logger),
			middleware.Recover(logger),
			middleware.Tracing(),
			middleware.Metrics(st.Metrics()),
			middleware.Timeout(logger),
		),
	)
	pool := worker.NewPool(conn, exec, logger,
		worker.WithPoolConcurrency(cfg.Workers),
		worker.WithPoolQueues(cfg.Queues),
	)
	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(st, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return st.Run(gctx) })
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down, draining in-flight jobs...")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(pool.Stop(sctx), srv.Shutdown(sctx))
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("stopped cleanly")
	return nil
}

// newRouter mounts the monitoring API and the Prometheus endpoint.
func newRouter(st *storage.Storage, logger *slog.Logger) http.Handler {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		monitor.NewCollector(st.Monitoring(), logger),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(api.RequestLogger(logger))
	api.New(st.Monitoring(), api.WithLogger(logger), api.WithPinger(st)).RegisterRoutes(r)
	r.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	return r
}
