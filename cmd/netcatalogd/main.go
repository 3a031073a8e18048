// Command netcatalogd is the network-catalog daemon: it owns the
// store, the scan/discovery engine, the scheduler, and the HTTP/
// WebSocket API, and wires them together the way cmd/server wired the
// homelab orchestrator's services.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bmetallica/netcatalog/internal/config"
	"github.com/bmetallica/netcatalog/internal/deepdiscovery"
	"github.com/bmetallica/netcatalog/internal/httpapi"
	"github.com/bmetallica/netcatalog/internal/portscan"
	"github.com/bmetallica/netcatalog/internal/probe"
	"github.com/bmetallica/netcatalog/internal/scanengine"
	"github.com/bmetallica/netcatalog/internal/scheduler"
	"github.com/bmetallica/netcatalog/internal/secrets"
	"github.com/bmetallica/netcatalog/internal/store"
	"github.com/bmetallica/netcatalog/internal/wshub"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := config.Load()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	if err := st.RecoverStaleScans(); err != nil {
		log.Error().Err(err).Msg("failed to recover stale scans")
	}

	secretsStore, err := secrets.New()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open secrets store")
	}

	portDriver := portscan.New(cfg.NmapPath)
	prober := probe.New()

	discovery := deepdiscovery.NewEngine(
		deepdiscovery.ARPSource{},
		deepdiscovery.MDNSSource{},
		deepdiscovery.SSDPSource{},
		deepdiscovery.RTTSource{},
		deepdiscovery.TTLSource{},
		deepdiscovery.TracerouteSource{BinaryPath: cfg.TraceroutePath},
		deepdiscovery.SNMPSource{Communities: []string{"public"}},
	)

	hub := wshub.NewHub()
	go hub.Run()

	engine := scanengine.New(st, portDriver, prober, discovery, secretsStore, hub)

	sched := scheduler.New(st, engine)
	sched.Start(context.Background())

	app := httpapi.New(st, engine, sched, secretsStore, hub, cfg.Origins())

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan
	log.Info().Msg("shutting down")

	sched.Stop()

	hub.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	if err := st.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close store")
	}

	log.Info().Msg("shutdown complete")
}
