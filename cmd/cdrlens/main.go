package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cdrlens/adapters/geocode"
	"cdrlens/adapters/render"
	"cdrlens/adapters/report"
	"cdrlens/adapters/store"
	"cdrlens/adapters/tabular"
	"cdrlens/internal/api"
	"cdrlens/internal/config"
	"cdrlens/internal/logx"
	"cdrlens/internal/pipeline"
)

func main() {
	log := logx.NewDefaultLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Error("configuration: %v", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.Paths.DatabasePath)
	if err != nil {
		log.Error("opening store: %v", err)
		os.Exit(1)
	}
	defer st.Close()

	locator := geocode.NewCache(cfg.Geocode, st, log)
	orch := pipeline.NewOrchestrator(
		cfg.Paths.OutputDir,
		locator,
		render.NewGenerator(log),
		report.NewBuilder(),
		st,
		log,
	)

	server := api.NewServer(orch, tabular.NewReader(), st, cfg.Paths.OutputDir, log)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Handler(),
	}

	go func() {
		log.Info("listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server: %v", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("shutdown: %v", err)
	}
}
