package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"voxelcraft.ai/internal/atlas"
	persistlog "voxelcraft.ai/internal/persistence/log"
	"voxelcraft.ai/internal/sim/catalogs"
	"voxelcraft.ai/internal/sim/tuning"
	"voxelcraft.ai/internal/sim/world/chunk"
	"voxelcraft.ai/internal/sim/world/terrain/gen"
	"voxelcraft.ai/internal/sim/world/terrain/store"
)

type result struct {
	seed     int32
	chunks   int
	stats    store.Stats
	duration time.Duration
}

func main() {
	var (
		seed       = flag.Int("seed", 1337, "world seed of the first run")
		radius     = flag.Int("radius", 8, "disc radius in chunks")
		workers    = flag.Int("workers", 4, "pregeneration workers per run")
		runs       = flag.Int("runs", 1, "independent runs, seeds seed..seed+runs-1")
		parallel   = flag.Int("parallel", 1, "runs executed concurrently")
		tuningPath = flag.String("tuning", "", "optional tuning.yaml for terrain and atlas settings")
		dataDir    = flag.String("data", "", "write pipeline events under <data>/events (optional)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bench] ", log.LstdFlags|log.Lmicroseconds)

	tune := tuning.Defaults()
	if *tuningPath != "" {
		t, err := tuning.Load(*tuningPath)
		if err != nil {
			logger.Fatalf("load tuning: %v", err)
		}
		tune = t
	}

	reg := catalogs.Defaults()
	tex := atlas.NewImageTexture(tune.Atlas.Size, 1)
	at := atlas.New(tune.Atlas.Size, reg, atlas.PlaceholderLoader{Size: 16}, tex, logger)
	if err := at.Preload(); err != nil {
		logger.Fatalf("preload atlas: %v", err)
	}
	chunkCfg := &chunk.Config{Registry: reg, UVs: at, AOStrength: tune.Mesh.AOStrength}

	var events *persistlog.EventLogger
	if *dataDir != "" {
		events = persistlog.NewEventLogger(*dataDir)
		defer events.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results := make([]result, *runs)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*parallel, 1))
	for i := range results {
		i := i
		s := int32(*seed + i)
		g.Go(func() error {
			cfg := tune.StoreConfig()
			cfg.Generator = gen.New(s, tune.GenParams())
			cfg.Chunk = chunkCfg
			cfg.Workers = *workers
			cfg.Logger = logger
			session := fmt.Sprintf("bench-%d", s)
			if events != nil {
				cfg.OnEvent = func(ev store.Event) {
					if err := events.WriteEvent(ev.Entry(session)); err != nil {
						logger.Printf("event log: %v", err)
					}
				}
			}
			m := store.NewManager(cfg)

			start := time.Now()
			n, err := m.Pregenerate(gctx, chunk.Coords{}, *radius, 0)
			if err != nil {
				return fmt.Errorf("seed %d: %w", s, err)
			}
			results[i] = result{seed: s, chunks: n, stats: m.Stats(), duration: time.Since(start)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Fatalf("bench: %v", err)
	}

	var total result
	for _, r := range results {
		perChunk := time.Duration(0)
		if r.chunks > 0 {
			perChunk = r.duration / time.Duration(r.chunks)
		}
		fmt.Printf("seed=%d chunks=%d vertices=%d triangles=%d elapsed=%s per_chunk=%s\n",
			r.seed, r.chunks, r.stats.Vertices, r.stats.Triangles, r.duration.Round(time.Millisecond), perChunk.Round(time.Microsecond))
		total.chunks += r.chunks
		total.stats.Vertices += r.stats.Vertices
		total.stats.Triangles += r.stats.Triangles
		total.duration += r.duration
	}
	if len(results) > 1 {
		fmt.Printf("total chunks=%d vertices=%d triangles=%d cpu_elapsed=%s\n",
			total.chunks, total.stats.Vertices, total.stats.Triangles, total.duration.Round(time.Millisecond))
	}
	logger.Printf("atlas entries=%d uploads=%d", at.Len(), tex.Uploads())
}
