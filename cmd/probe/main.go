package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HerbHall/larkwatch/internal/config"
	"github.com/HerbHall/larkwatch/internal/notify"
	"github.com/HerbHall/larkwatch/internal/probe"
	"github.com/HerbHall/larkwatch/internal/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to settings file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-config settings.yaml] <tasks.yaml>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	tasksPath := flag.Arg(0)

	// Load configuration (before logger, so log level/format can be configured).
	v, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("larkwatch probe starting", zap.String("version", version.Short()))

	bot, err := notify.New(config.BotConfig(v), logger.Named("notify"))
	if err != nil {
		logger.Fatal("failed to create notification bot", zap.Error(err))
	}

	tasks, err := probe.LoadTasks(tasksPath, logger.Named("tasks"))
	if err != nil {
		logger.Fatal("failed to load tasks", zap.Error(err))
	}

	executor := probe.NewExecutor(bot, logger.Named("executor"))
	sched := probe.NewScheduler(tasks, executor, logger.Named("scheduler"))

	var metricsSrv *http.Server
	if addr := v.GetString("metrics.addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics listener started", zap.String("addr", addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Start(ctx)

	<-ctx.Done()
	logger.Info("received shutdown signal, waiting for tasks to finish")

	// In-flight commands run to completion; there is no deadline here.
	sched.Wait()

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics listener shutdown error", zap.Error(err))
		}
		cancel()
	}

	logger.Info("probe exit")
}
