package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 8080 || cfg.DBPath != "./data/tabsplit.db" || cfg.TokenTTL != 24*time.Hour {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.StoreRetries != 3 || cfg.StoreRetryBase != 50*time.Millisecond || cfg.MaxReceiptBytes != 10<<20 {
		t.Errorf("unexpected store/receipt defaults: %+v", cfg)
	}
	if !cfg.UsesDevSecret() {
		t.Error("expected dev secret by default")
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
}

func TestLoad_EnvAndDotenv(t *testing.T) {
	dotenv := filepath.Join(t.TempDir(), ".env")
	content := "TABSPLIT_PORT=9090\nTABSPLIT_JWT_SECRET=from-file\n"
	if err := os.WriteFile(dotenv, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TABSPLIT_PORT", "7070")
	t.Setenv("TABSPLIT_TOKEN_TTL", "2h")
	t.Setenv("TABSPLIT_OCR_ENDPOINT", "http://ocr.internal/analyze")
	// godotenv.Load sets variables process-wide; restore afterwards.
	t.Setenv("TABSPLIT_JWT_SECRET", "")
	os.Unsetenv("TABSPLIT_JWT_SECRET")

	cfg, err := Load(dotenv)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 7070 {
		t.Errorf("Port = %d, want environment to win over .env", cfg.Port)
	}
	if cfg.JWTSecret != "from-file" {
		t.Errorf("JWTSecret = %q, want value from .env", cfg.JWTSecret)
	}
	if cfg.TokenTTL != 2*time.Hour {
		t.Errorf("TokenTTL = %v, want 2h", cfg.TokenTTL)
	}
	if cfg.OCREndpoint != "http://ocr.internal/analyze" {
		t.Errorf("OCREndpoint = %q", cfg.OCREndpoint)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{Port: 0, DBPath: "", JWTSecret: "", TokenTTL: 0, MaxReceiptBytes: 0, StoreRetryBase: 0}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"TABSPLIT_PORT", "TABSPLIT_DB_PATH", "TABSPLIT_JWT_SECRET", "TABSPLIT_MAX_RECEIPT_BYTES"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
