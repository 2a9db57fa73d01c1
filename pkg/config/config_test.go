package config

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Check defaults
	if cfg.Port != "8089" {
		t.Errorf("Expected Port to be 8089, got %s", cfg.Port)
	}

	if cfg.Env != "development" {
		t.Errorf("Expected Env to be development, got %s", cfg.Env)
	}

	if cfg.Scanner.ChunkSize != 500 {
		t.Errorf("Expected ChunkSize to be 500, got %d", cfg.Scanner.ChunkSize)
	}

	if cfg.Scanner.Tier3Cap != 375 {
		t.Errorf("Expected Tier3Cap to be 375, got %d", cfg.Scanner.Tier3Cap)
	}

	if cfg.News.VaultExpiration.Hours() != 72 {
		t.Errorf("Expected VaultExpiration to be 72h, got %v", cfg.News.VaultExpiration)
	}

	if cfg.Gates.HODMinRVOL != 5.0 {
		t.Errorf("Expected HODMinRVOL to be 5.0, got %f", cfg.Gates.HODMinRVOL)
	}
}

func TestLoadWithCustomValues(t *testing.T) {
	os.Setenv("PORT", "9000")
	os.Setenv("ENV", "production")
	os.Setenv("SCAN_CHUNK_SIZE", "250")
	os.Setenv("GATE_RVSL_MIN_RVOL", "6.5")
	os.Setenv("TIER2_WINDOW", "45s")

	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("ENV")
		os.Unsetenv("SCAN_CHUNK_SIZE")
		os.Unsetenv("GATE_RVSL_MIN_RVOL")
		os.Unsetenv("TIER2_WINDOW")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("Expected Port to be 9000, got %s", cfg.Port)
	}

	if cfg.Env != "production" {
		t.Errorf("Expected Env to be production, got %s", cfg.Env)
	}

	if cfg.Scanner.ChunkSize != 250 {
		t.Errorf("Expected ChunkSize to be 250, got %d", cfg.Scanner.ChunkSize)
	}

	if cfg.Gates.RvslMinRVOL != 6.5 {
		t.Errorf("Expected RvslMinRVOL to be 6.5, got %f", cfg.Gates.RvslMinRVOL)
	}

	if cfg.Scanner.Tier2Window.Seconds() != 45 {
		t.Errorf("Expected Tier2Window to be 45s, got %v", cfg.Scanner.Tier2Window)
	}
}

func TestValidation(t *testing.T) {
	os.Setenv("ENV", "bogus")
	defer os.Unsetenv("ENV")

	if _, err := Load(); err == nil {
		t.Error("Expected validation error for bogus ENV")
	}
}

func TestMissingVendorKeysAllowed(t *testing.T) {
	// No vendor credentials set: config must still load, adapters decide
	// for themselves whether they are enabled.
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.News.PolygonKey != "" && os.Getenv("POLYGON_API_KEY") == "" {
		t.Error("PolygonKey should be empty without POLYGON_API_KEY")
	}
}
