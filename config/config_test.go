package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRequestOptionsValidate(t *testing.T) {
	valid := DefaultRequestOptions()
	if err := valid.Validate(); err != nil {
		t.Fatalf("default options should validate, got %v", err)
	}

	invalid := RequestOptions{Timeout: valid.Timeout, MaxRetries: 0}
	if err := invalid.Validate(); err == nil {
		t.Fatal("expected ErrInvalidArgument for MaxRetries=0")
	}
}

func TestBoxConfigForFillsDefaults(t *testing.T) {
	nc := NodeConfig{}
	bc := nc.BoxConfigFor()

	if bc.QueueSize != DefaultBoxConfig().QueueSize {
		t.Errorf("expected default queue size, got %d", bc.QueueSize)
	}
	if bc.CacheTTL != DefaultBoxConfig().CacheTTL {
		t.Errorf("expected default cache TTL, got %v", bc.CacheTTL)
	}
	if bc.Logger == nil {
		t.Error("expected non-nil logger default")
	}
}

func TestLoadSystemMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "system_map.yaml")
	contents := "A: 127.0.0.1:7000\nB: 127.0.0.1:7001\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed writing fixture: %v", err)
	}

	m, err := LoadSystemMap(path)
	if err != nil {
		t.Fatalf("LoadSystemMap failed: %v", err)
	}
	if m["A"] != "127.0.0.1:7000" || m["B"] != "127.0.0.1:7001" {
		t.Fatalf("unexpected system map: %+v", m)
	}
}

func TestLoadSystemMapMissingFile(t *testing.T) {
	if _, err := LoadSystemMap("/does/not/exist.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
