package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"termsweeper/config"
	"termsweeper/server"
)

func main() {
	confPath := flag.String("conf", "", "config file (yaml)")
	addr := flag.String("addr", "", "listen address (overrides server.addr)")
	flag.Parse()

	cfg, err := config.Load(*confPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		logrus.WithError(err).Fatal("init logger")
	}

	hub := server.NewHub(cfg.Server.MaxSessions, cfg.Server.SessionTTL, log)
	defer hub.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.CleanupInterval > 0 {
		go hub.Maintain(ctx, cfg.Server.CleanupInterval)
	}

	s := server.NewServer(hub, cfg.Game, log)
	srv := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     server.NewRouter(s, cfg.Server),
		ReadTimeout: 5 * time.Second,
		// websocket は長く繋がるので WriteTimeout は付けない
		IdleTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("http server shutdown")
		}
	}()

	log.WithFields(logrus.Fields{
		"addr":   srv.Addr,
		"static": cfg.Server.StaticDir,
	}).Info("server starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server failed")
	}
	log.Info("server stopped")
}
