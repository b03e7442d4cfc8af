package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 7227 {
		t.Errorf("Server.Port = %d, want 7227", cfg.Server.Port)
	}
	if cfg.Agent.MaxTurns != 16 {
		t.Errorf("Agent.MaxTurns = %d, want 16", cfg.Agent.MaxTurns)
	}
	if cfg.Agent.MaxPayloadBytes != 30000 {
		t.Errorf("Agent.MaxPayloadBytes = %d, want 30000", cfg.Agent.MaxPayloadBytes)
	}
	if cfg.Model.Provider != "gemini" {
		t.Errorf("Model.Provider = %q, want %q", cfg.Model.Provider, "gemini")
	}
	if len(cfg.Agent.NodeBlacklist) == 0 {
		t.Error("Agent.NodeBlacklist is empty, want defaults")
	}
	if cfg.GateTimeout() != 2*time.Minute {
		t.Errorf("GateTimeout() = %v, want 2m", cfg.GateTimeout())
	}
	if cfg.TickInterval() != 10*time.Minute {
		t.Errorf("TickInterval() = %v, want 10m", cfg.TickInterval())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7227 {
		t.Errorf("Server.Port = %d, want default 7227", cfg.Server.Port)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surge.yaml")
	body := `server:
  port: 9100
agent:
  network: testnet
  maxTurns: 4
model:
  provider: ollama
  name: llama3.2
gate:
  timeoutSeconds: 30
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Agent.Network != "testnet" {
		t.Errorf("Agent.Network = %q, want testnet", cfg.Agent.Network)
	}
	if cfg.Agent.MaxTurns != 4 {
		t.Errorf("Agent.MaxTurns = %d, want 4", cfg.Agent.MaxTurns)
	}
	if cfg.Model.Name != "llama3.2" {
		t.Errorf("Model.Name = %q, want llama3.2", cfg.Model.Name)
	}
	if cfg.GateTimeout() != 30*time.Second {
		t.Errorf("GateTimeout() = %v, want 30s", cfg.GateTimeout())
	}
	// Sections absent from the file keep their defaults.
	if cfg.Mempool.BaseURL != "https://mempool.space/api" {
		t.Errorf("Mempool.BaseURL = %q, want default", cfg.Mempool.BaseURL)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() accepted malformed YAML, want error")
	}
}
