package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sekmet/corefans-relay/internal/api"
	"github.com/sekmet/corefans-relay/internal/config"
	"github.com/sekmet/corefans-relay/internal/relay"
	"github.com/sekmet/corefans-relay/internal/stats"
)

// dev-only key, override with RELAY_SIGNING_SECRET
const defaultSigningSecret = "c2VrbWV0LXJlbGF5LWRldi1rZXk="

var configPath string

func main() {
	flag.StringVar(&configPath, "config", "", "path to a config file, optional")
	flag.Parse()

	logger := log.New(os.Stderr, "[relay] ", log.LstdFlags)

	if os.Getenv("RELAY_SIGNING_SECRET") == "" {
		os.Setenv("RELAY_SIGNING_SECRET", defaultSigningSecret)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("config:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	relayServer := relay.NewRelayServer(logger, statsUpdater)

	srv := api.NewRelayApp(mux, logger, relayServer, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("draining sessions...")
	if err := relayServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("relay shutdown:", err)
	}

	logger.Println("shutdown complete")
}
