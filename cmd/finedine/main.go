package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"finedine/internal/app/api"
	"finedine/internal/app/notify"
	"finedine/internal/common/logger"
	"finedine/internal/config"
)

func main() {
	mode := flag.String("mode", "", "api | notifier")
	flag.Parse()

	lg := logger.New("bootstrap")
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "api":
		lg.Info("service_started", map[string]any{"service": "api", "addr": cfg.HTTPAddr})
		if err := api.Run(ctx, cfg); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	case "notifier":
		lg.Info("service_started", map[string]any{"service": "notifier"})
		if err := notify.Run(ctx, cfg); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: api | notifier")
		os.Exit(2)
	}
}
