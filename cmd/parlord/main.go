// Command parlord runs the realtime card and tile game server: a REST
// surface for room discovery plus a WebSocket transport for gameplay.
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

	"github.com/gin-gonic/gin"

	"github.com/parlorgames/parlord/pkg/dominoes"
	"github.com/parlorgames/parlord/pkg/engine"
	"github.com/parlorgames/parlord/pkg/logging"
	"github.com/parlorgames/parlord/pkg/server"
	"github.com/parlorgames/parlord/pkg/spades"
	"github.com/parlorgames/parlord/pkg/transport/httpapi"
	"github.com/parlorgames/parlord/pkg/transport/ws"
)

func realMain() error {
	cfg := server.LoadConfig()
	flag.IntVar(&cfg.Port, "port", cfg.Port, "listen port")
	flag.StringVar(&cfg.LogFile, "logfile", cfg.LogFile, "rotated log file path")
	flag.StringVar(&cfg.DebugLevel, "debuglevel", cfg.DebugLevel, "log level or per-subsystem spec")
	flag.BoolVar(&cfg.Dev, "dev", cfg.Dev, "development mode (disables empty-room deletion)")
	flag.Parse()

	backend, err := logging.NewBackend(logging.Config{
		LogFile:    cfg.LogFile,
		DebugLevel: cfg.DebugLevel,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer backend.Close()
	log := backend.Logger("MAIN")

	registry := engine.NewRegistry(backend.Logger("GAME"))
	registry.RegisterModule(spades.New())
	registry.RegisterModule(dominoes.New())

	srv := server.New(backend.Logger("ROOM"), cfg, registry, nil)
	hub := ws.NewHub(backend.Logger("WS"))
	srv.SetEmitter(hub)

	if !cfg.Dev {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	httpapi.New(backend.Logger("HTTP"), srv).Register(router)
	router.GET("/ws", gin.WrapH(ws.NewHandler(backend.Logger("WS"), hub, srv)))

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	errc := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case sig := <-sigc:
		log.Infof("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}

func main() {
	if err := realMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
