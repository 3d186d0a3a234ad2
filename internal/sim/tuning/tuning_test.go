package tuning

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestLoadRepoTuningMatchesDefaults(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, Defaults()) {
		t.Fatalf("configs/tuning.yaml drifted from Defaults:\n got %+v\nwant %+v", got, Defaults())
	}
}

func TestLoadBackfillsZeroFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := "seed: 42\nstreaming:\n  render_distance: 3\nmesh:\n  ao_strength: 0.35\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := Defaults()
	if got.Seed != 42 || got.Streaming.RenderDistance != 3 || got.Mesh.AOStrength != 0.35 {
		t.Fatalf("explicit values lost: %+v", got)
	}
	if got.Streaming.EvictDistance != def.Streaming.EvictDistance || got.Atlas.Size != def.Atlas.Size {
		t.Fatalf("zero fields not back-filled: %+v", got)
	}
	if len(got.Terrain.ContinentalCurve) != len(def.Terrain.ContinentalCurve) {
		t.Fatalf("curve not back-filled")
	}
	if got.Terrain.TreePermille != 0 {
		t.Fatalf("tree_permille zero should disable trees, got %d", got.Terrain.TreePermille)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("streaming: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "tuning.yaml") {
		t.Fatalf("expected wrapped yaml error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestGenParams(t *testing.T) {
	p := Defaults().GenParams()
	if p.SeaLevel != 127 || p.BaseHeight != 100 || p.DirtDepth != 3 {
		t.Fatalf("unexpected params %+v", p)
	}
}

func TestStoreConfig(t *testing.T) {
	tu := Defaults()
	tu.Streaming.RenderDistance = 5
	c := tu.StoreConfig()
	if c.RenderDistance != 5 || c.EvictDistance != 50 || c.OptimizeDelay != 0.5 || c.Workers != 4 {
		t.Fatalf("unexpected store config %+v", c)
	}
	if c.Generator != nil || c.OnEvent != nil {
		t.Fatalf("collaborators should be left unset")
	}
}
