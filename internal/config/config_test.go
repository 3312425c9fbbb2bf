package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MIN_CONFIDENCE", "")
	t.Setenv("ADAPTER_TIMEOUT", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("PIPELINE_CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MinConfidence != 0.2 {
		t.Fatalf("expected default min confidence 0.2, got %v", cfg.MinConfidence)
	}
	if cfg.AdapterTimeout != 10*time.Minute {
		t.Fatalf("expected default adapter timeout 10m, got %v", cfg.AdapterTimeout)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected default origins %v", cfg.AllowedOrigins)
	}
	if cfg.QualifierEnabled() {
		t.Fatalf("qualifier should be disabled without an api key")
	}
	if len(cfg.Keywords.Intent) != len(DefaultIntentKeywords) || len(cfg.Keywords.GrantsSearch) != 0 {
		t.Fatalf("unexpected default keyword lists %+v", cfg.Keywords)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("MIN_CONFIDENCE", "0.55")
	t.Setenv("ADAPTER_TIMEOUT", "90")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("BATCH_SCREEN_ENABLED", "true")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("PIPELINE_CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MinConfidence != 0.55 || cfg.AdapterTimeout != 90*time.Second || cfg.HTTPTimeout != 5*time.Second {
		t.Fatalf("unexpected numeric overrides %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if !cfg.BatchScreenEnabled || !cfg.QualifierEnabled() {
		t.Fatalf("expected batch screen and qualifier enabled")
	}
}

func TestLoadRejectsOutOfRangeConfidence(t *testing.T) {
	t.Setenv("MIN_CONFIDENCE", "1.5")
	t.Setenv("PIPELINE_CONFIG_FILE", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for min confidence outside [0,1]")
	}
}

func TestLoadAppliesYAMLKeywordFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	content := `
intent_keywords: ["museum app"]
grants_keywords: ["oral history"]
fallback_feeds:
  - https://feeds.example/rfp.xml
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	t.Setenv("PIPELINE_CONFIG_FILE", path)
	t.Setenv("MIN_CONFIDENCE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Keywords.Intent) != 1 || cfg.Keywords.Intent[0] != "museum app" {
		t.Fatalf("expected intent override, got %v", cfg.Keywords.Intent)
	}
	if len(cfg.Keywords.Sector) != len(DefaultSectorKeywords) {
		t.Fatalf("expected sector defaults to remain, got %v", cfg.Keywords.Sector)
	}
	if len(cfg.Keywords.GrantsSearch) != 1 || cfg.Keywords.FallbackFeeds[0] != "https://feeds.example/rfp.xml" {
		t.Fatalf("unexpected grants/feeds override %+v", cfg.Keywords)
	}
}

func TestLoadFailsOnMissingConfigFile(t *testing.T) {
	t.Setenv("PIPELINE_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("MIN_CONFIDENCE", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
