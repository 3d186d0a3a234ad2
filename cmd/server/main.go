package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"voxelcraft.ai/internal/atlas"
	persistlog "voxelcraft.ai/internal/persistence/log"
	"voxelcraft.ai/internal/sim/catalogs"
	"voxelcraft.ai/internal/sim/tuning"
	"voxelcraft.ai/internal/transport/ws"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		configDir   = flag.String("configs", "./configs", "config directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		texturesDir = flag.String("textures", "", "texture directory (empty: procedural placeholder textures)")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite event index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	reg, err := catalogs.Load(*configDir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatalf("load catalogs: %v", err)
		}
		logger.Printf("blocks.json not found in %s; using built-in catalog", *configDir)
		reg = catalogs.Defaults()
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	tex := atlas.NewImageTexture(tune.Atlas.Size, tune.Atlas.MipLevels)
	var loader atlas.Loader = atlas.PlaceholderLoader{Size: 16}
	if *texturesDir != "" {
		loader = atlas.DirLoader{Root: *texturesDir}
	}
	at := atlas.New(tune.Atlas.Size, reg, loader, tex, logger)
	if err := at.Preload(); err != nil {
		logger.Fatalf("preload atlas: %v", err)
	}
	at.Bind(0)
	logger.Printf("atlas ready size=%d entries=%d", tune.Atlas.Size, at.Len())

	events := persistlog.NewEventLogger(*dataDir)

	// Optional read-model index (the event log stays the source of truth).
	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	wsCfg := ws.Config{
		Tuning:   tune,
		Registry: reg,
		UVs:      at,
		Sinks:    []ws.EventSink{events},
	}
	if idx != nil {
		if err := idx.UpsertCatalogs(*configDir, reg, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
		wsCfg.Sinks = append(wsCfg.Sinks, idx)
		wsCfg.Sessions = idx
	}

	wsSrv := ws.NewServer(wsCfg, logger)
	mux := newMux(httpDeps{
		ws:    wsSrv,
		atlas: at,
		tex:   tex,
		idx:   idx,
		size:  tune.Atlas.Size,
		pprof: envBool("VC_ENABLE_PPROF_HTTP", false),
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Printf("listening on %s seed=%d", *addr, tune.Seed)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		err := srv.Shutdown(ctx2)
		// Hijacked websocket connections outlive srv.Shutdown.
		return errors.Join(err, wsSrv.Shutdown(ctx2))
	})
	runErr := g.Wait()

	// Sessions are drained; flush the sinks.
	if idx != nil {
		if err := idx.Close(); err != nil {
			logger.Printf("index backend: close: %v", err)
		}
	}
	if err := events.Close(); err != nil {
		logger.Printf("event log: close: %v", err)
	}
	if runErr != nil {
		logger.Fatalf("server: %v", runErr)
	}
	logger.Printf("shutdown complete")
}
