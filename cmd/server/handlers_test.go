package main

import (
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"voxelcraft.ai/internal/atlas"
	"voxelcraft.ai/internal/sim/catalogs"
	"voxelcraft.ai/internal/sim/tuning"
	"voxelcraft.ai/internal/sim/world/terrain/store"
	"voxelcraft.ai/internal/transport/ws"
)

func newTestMux(t *testing.T, withIndex bool) *httptest.Server {
	t.Helper()
	tune := tuning.Defaults()
	reg := catalogs.Defaults()
	tex := atlas.NewImageTexture(tune.Atlas.Size, tune.Atlas.MipLevels)
	at := atlas.New(tune.Atlas.Size, reg, atlas.PlaceholderLoader{Size: 16}, tex, nil)
	if err := at.Preload(); err != nil {
		t.Fatalf("preload: %v", err)
	}
	d := httpDeps{
		ws:    ws.NewServer(ws.Config{Tuning: tune, Registry: reg, UVs: at}, nil),
		atlas: at,
		tex:   tex,
		size:  tune.Atlas.Size,
	}
	if withIndex {
		idx, err := openRuntimeIndex(filepath.Join(t.TempDir(), "data"), false)
		if err != nil {
			t.Fatalf("index: %v", err)
		}
		t.Cleanup(func() { _ = idx.Close() })
		_ = idx.WriteEvent(store.EventEntry{Kind: "generate", Vertices: 10})
		d.idx = idx
	}
	hs := httptest.NewServer(newMux(d))
	t.Cleanup(hs.Close)
	return hs
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, b
}

func TestHealthz(t *testing.T) {
	hs := newTestMux(t, false)
	resp, body := get(t, hs.URL+"/healthz")
	if resp.StatusCode != 200 || string(body) != "ok" {
		t.Fatalf("unexpected healthz %d %q", resp.StatusCode, body)
	}
}

func TestAtlasPNG(t *testing.T) {
	hs := newTestMux(t, false)
	resp, err := http.Get(hs.URL + "/atlas.png")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 128 || img.Bounds().Dy() != 128 {
		t.Fatalf("unexpected atlas bounds %v", img.Bounds())
	}
}

func TestStats(t *testing.T) {
	hs := newTestMux(t, true)
	_, body := get(t, hs.URL+"/stats")
	var st statsResponse
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode: %v (%s)", err, body)
	}
	if st.Atlas.Size != 128 || st.Atlas.Entries == 0 || st.Atlas.Uploads == 0 {
		t.Fatalf("unexpected atlas stats %+v", st.Atlas)
	}
	if st.Index == nil {
		t.Fatalf("expected index stats")
	}
}

func TestMetrics(t *testing.T) {
	hs := newTestMux(t, true)
	_, body := get(t, hs.URL+"/metrics")
	for _, want := range []string{
		"voxelcraft_sessions_active 0",
		"voxelcraft_atlas_entries ",
		"voxelcraft_index_queue_depth ",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestDisabledIndex(t *testing.T) {
	idx, err := openRuntimeIndex(t.TempDir(), true)
	if err != nil || idx != nil {
		t.Fatalf("expected no index, got %v %v", idx, err)
	}
}
