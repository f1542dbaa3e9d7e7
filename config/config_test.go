package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ServerURL != "http://localhost:5000" {
		t.Errorf("unexpected default server url %q", cfg.ServerURL)
	}
	if cfg.DataDir != ".alphachat" {
		t.Errorf("unexpected default data dir %q", cfg.DataDir)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("unexpected default timeout %v", cfg.HTTPTimeout)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_URL", "http://backend:8080")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ServerURL != "http://backend:8080" {
		t.Errorf("override not applied, got %q", cfg.ServerURL)
	}
	if cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("override not applied, got %v", cfg.HTTPTimeout)
	}
	if !cfg.DevMode || cfg.LogLevel != "debug" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "sempre")

	if _, err := Load(); err == nil {
		t.Error("expected parse error for invalid duration")
	}
}
