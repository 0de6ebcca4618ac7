package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HerbHall/larkwatch/internal/config"
	"github.com/HerbHall/larkwatch/internal/notify"
	"github.com/HerbHall/larkwatch/internal/server"
	"github.com/HerbHall/larkwatch/internal/version"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to settings file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

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

	logger.Info("larkwatch relay starting", zap.String("version", version.Short()))

	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	}

	srvCfg, err := config.Server(v)
	if err != nil {
		logger.Fatal("invalid server configuration", zap.Error(err))
	}

	botCfg := config.BotConfig(v)
	bot, err := notify.New(botCfg, logger.Named("notify"))
	if err != nil {
		logger.Fatal("failed to create notification bot", zap.Error(err))
	}

	srv := server.New(srvCfg.Addr(), bot, logger.Named("server"), server.Options{
		RateLimit:  srvCfg.RateLimit,
		RateBurst:  srvCfg.RateBurst,
		BotTimeout: botCfg.Timeout,
		TrustProxy: srvCfg.TrustProxy,
	})

	// Start server in background
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("larkwatch relay stopped")
}
