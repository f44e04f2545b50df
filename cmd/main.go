package main

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/joho/godotenv/autoload"
	glog "github.com/labstack/gommon/log"

	"taleweaver/pkg/app"
	"taleweaver/pkg/config"
	"taleweaver/pkg/server"
)

func main() {
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer done()

	cfg, err := config.Load(cmp.Or(os.Getenv("TALEWEAVER_CONFIG"), "taleweaver.yaml"))
	if err != nil {
		log.Fatal("failed to load config", "error", err)
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn("unknown log level, using info", "level", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal("failed to initialize", "error", err)
	}

	srv := server.NewServer(ctx, a.Extractor, a.Storyteller, a.Builder, a.Store)
	srv.Echo.Logger.SetLevel(echoLevel(level))

	finishedShutDown := make(chan struct{})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", "error", err)
		}
		close(finishedShutDown)
	}()

	if err := srv.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server stopped", "error", err)
		done()
	}
	<-finishedShutDown
}

func echoLevel(l log.Level) glog.Lvl {
	switch {
	case l <= log.DebugLevel:
		return glog.DEBUG
	case l == log.InfoLevel:
		return glog.INFO
	case l == log.WarnLevel:
		return glog.WARN
	default:
		return glog.ERROR
	}
}
