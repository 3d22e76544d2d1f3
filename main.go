package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/marcopiovanello/dlp-bridge/server"
	"github.com/marcopiovanello/dlp-bridge/server/config"
)

func main() {
	var (
		configFile string
		envFile    string
		dumpConfig bool
	)
	flag.StringVar(&configFile, "conf", "./config.yml", "Config file path")
	flag.StringVar(&envFile, "env", ".env", "Optional .env file loaded before the config")
	flag.BoolVar(&dumpConfig, "dump-config", false, "Print the effective config and exit")
	flag.Parse()

	if err := godotenv.Load(envFile); err != nil {
		slog.Debug("no .env file loaded", slog.String("path", envFile))
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	if dumpConfig {
		if err := cfg.Dump(os.Stdout); err != nil {
			slog.Error("failed to dump config", slog.Any("err", err))
			os.Exit(1)
		}
		return
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting server",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("download_path", cfg.Paths.DownloadPath),
	)

	if err := server.Run(ctx, cfg); err != nil {
		slog.Error("server stopped with error", slog.Any("err", err))
		os.Exit(1)
	}

	slog.Info("server exited cleanly")
}
