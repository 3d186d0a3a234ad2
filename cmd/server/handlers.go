package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"voxelcraft.ai/internal/atlas"
	"voxelcraft.ai/internal/persistence/indexdb"
	"voxelcraft.ai/internal/transport/ws"
)

type httpDeps struct {
	ws    *ws.Server
	atlas *atlas.Atlas
	tex   *atlas.ImageTexture
	idx   runtimeIndex
	size  int
	pprof bool
}

type statsResponse struct {
	Sessions ws.Stats       `json:"sessions"`
	Atlas    atlasStats     `json:"atlas"`
	Index    *indexdb.Stats `json:"index,omitempty"`
}

type atlasStats struct {
	Size    int `json:"size"`
	Entries int `json:"entries"`
	Uploads int `json:"uploads"`
}

func newMux(d httpDeps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/atlas.png", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "image/png")
		rw.Header().Set("Cache-Control", "no-cache")
		if err := d.tex.EncodePNG(rw); err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
		}
	})
	mux.HandleFunc("/stats", func(rw http.ResponseWriter, r *http.Request) {
		resp := statsResponse{
			Sessions: d.ws.Stats(),
			Atlas:    atlasStats{Size: d.size, Entries: d.atlas.Len(), Uploads: d.tex.Uploads()},
		}
		if d.idx != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if st, err := d.idx.Stats(ctx); err == nil {
				resp.Index = &st
			}
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		s := d.ws.Stats()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP voxelcraft_sessions_active Current number of viewer sessions.\n")
		fmt.Fprintf(rw, "# TYPE voxelcraft_sessions_active gauge\n")
		fmt.Fprintf(rw, "voxelcraft_sessions_active %d\n", s.ActiveSessions)

		fmt.Fprintf(rw, "# HELP voxelcraft_sessions_total Total accepted viewer sessions.\n")
		fmt.Fprintf(rw, "# TYPE voxelcraft_sessions_total counter\n")
		fmt.Fprintf(rw, "voxelcraft_sessions_total %d\n", s.TotalSessions)

		fmt.Fprintf(rw, "# HELP voxelcraft_meshes_sent_total Chunk meshes pushed to viewers.\n")
		fmt.Fprintf(rw, "# TYPE voxelcraft_meshes_sent_total counter\n")
		fmt.Fprintf(rw, "voxelcraft_meshes_sent_total %d\n", s.MeshesSent)

		fmt.Fprintf(rw, "# HELP voxelcraft_edits_total Block edits by result.\n")
		fmt.Fprintf(rw, "# TYPE voxelcraft_edits_total counter\n")
		fmt.Fprintf(rw, "voxelcraft_edits_total{result=%q} %d\n", "ok", s.Edits)
		fmt.Fprintf(rw, "voxelcraft_edits_total{result=%q} %d\n", "rejected", s.EditsRejected)

		fmt.Fprintf(rw, "# HELP voxelcraft_atlas_entries Cached (block, face texture) atlas entries.\n")
		fmt.Fprintf(rw, "# TYPE voxelcraft_atlas_entries gauge\n")
		fmt.Fprintf(rw, "voxelcraft_atlas_entries %d\n", d.atlas.Len())

		if d.idx != nil {
			writeIndexMetrics(r.Context(), rw, d.idx)
		}
	})
	if d.pprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", d.ws.Handler())
	return mux
}

func writeIndexMetrics(ctx context.Context, rw http.ResponseWriter, idx runtimeIndex) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	s, err := idx.Stats(ctx)
	if err != nil {
		return
	}
	fmt.Fprintf(rw, "# HELP voxelcraft_index_queue_depth Current index writer queue depth.\n")
	fmt.Fprintf(rw, "# TYPE voxelcraft_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "voxelcraft_index_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(rw, "# HELP voxelcraft_index_dropped_total Index writes dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE voxelcraft_index_dropped_total counter\n")
	fmt.Fprintf(rw, "voxelcraft_index_dropped_total{kind=%q} %d\n", "event", s.DropEvents)
	fmt.Fprintf(rw, "voxelcraft_index_dropped_total{kind=%q} %d\n", "session", s.DropSessions)

	fmt.Fprintf(rw, "# HELP voxelcraft_pipeline_events_total Indexed pipeline events by kind.\n")
	fmt.Fprintf(rw, "# TYPE voxelcraft_pipeline_events_total counter\n")
	for _, k := range s.Kinds {
		fmt.Fprintf(rw, "voxelcraft_pipeline_events_total{kind=%q} %d\n", k.Kind, k.Count)
	}
}
