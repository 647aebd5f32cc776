package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsAreSane(t *testing.T) {
	cfg := Default()
	if cfg.SweepsPerBatch <= 0 || cfg.Batches <= 0 {
		t.Fatalf("bad defaults: %+v", cfg)
	}
	if cfg.Engine.LowerCutoff != 1e-50 || cfg.Engine.UpperCutoff != 1e50 {
		t.Fatalf("bad cutoff defaults: %+v", cfg.Engine)
	}
	if !cfg.UpdateSwappedBeforeAccept {
		t.Fatalf("swapped update should default to before-accept")
	}
}

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("batches: 7\nengine:\n  careful: true\nsubsystem_lengths: [3]\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Batches != 7 {
		t.Fatalf("batches: got=%d want=7", cfg.Batches)
	}
	if !cfg.Engine.Careful {
		t.Fatalf("careful flag lost")
	}
	if cfg.SweepsPerBatch != 12 {
		t.Fatalf("default sweeps lost: %d", cfg.SweepsPerBatch)
	}
	if got := cfg.SubsystemLength(0, 8); got != 3 {
		t.Fatalf("subsystem length: got=%d want=3", got)
	}
	if got := cfg.SubsystemLength(1, 8); got != 2 {
		t.Fatalf("subsystem fallback: got=%d want=2", got)
	}
	if got := cfg.SubsystemLength(0, 2); got != 2 {
		t.Fatalf("subsystem clamp: got=%d want=2", got)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("batches: [not an int\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("malformed yaml accepted")
	}
}
