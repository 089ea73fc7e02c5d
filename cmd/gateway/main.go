// Command gateway serves the demo contestant gateway over HTTP so the voting server can run
// against a remote gateway end to end.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/talentvote/internal/adapter/gateway"
	"github.com/pscheid92/talentvote/internal/platform/config"
	"github.com/pscheid92/talentvote/internal/platform/logging"
	"github.com/pscheid92/talentvote/internal/platform/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logging.InitLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.Info("Gateway starting", "version", version.Get().String(), "port", cfg.GatewayPort, "latency", cfg.GatewayLatency)

	demo := gateway.NewDemo(clockwork.NewRealClock(), cfg.GatewayLatency)
	srv := gateway.NewServer(demo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Gateway shutdown error", "error", err)
		}
	}()

	if err := srv.Start(":" + cfg.GatewayPort); err != nil {
		slog.Error("Gateway server error", "error", err)
		os.Exit(1)
	}
}
