package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("AUTOPOST_CATEGORIES", "")
	t.Setenv("AUTOPOST_INTERVAL", "40m")
	t.Setenv("MOLTBOOK_BASE_URL", "https://www.moltbook.com/api/v1/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AutoPost.Interval != DefaultAutoPostInterval {
		t.Errorf("expected interval %v, got %v", DefaultAutoPostInterval, cfg.AutoPost.Interval)
	}
	if cfg.Moltbook.BaseURL != "https://www.moltbook.com/api/v1" {
		t.Errorf("expected trailing slash to be trimmed, got %q", cfg.Moltbook.BaseURL)
	}
	if cfg.AutoPost.Categories != nil {
		t.Errorf("expected no categories, got %v", cfg.AutoPost.Categories)
	}
	if cfg.GenerationEnabled() {
		t.Error("expected generation to be disabled without a key")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AUTOPOST_INTERVAL", "5m")
	t.Setenv("AUTOPOST_CATEGORIES", "coding, ,general")
	t.Setenv("MOLTBOOK_TIMEOUT", "15s")
	t.Setenv("GEMINI_API_KEY", "k")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AutoPost.Interval != 5*time.Minute {
		t.Errorf("expected 5m, got %v", cfg.AutoPost.Interval)
	}
	if len(cfg.AutoPost.Categories) != 2 || cfg.AutoPost.Categories[1] != "general" {
		t.Errorf("unexpected categories %v", cfg.AutoPost.Categories)
	}
	if cfg.Moltbook.Timeout != 15*time.Second {
		t.Errorf("expected 15s timeout, got %v", cfg.Moltbook.Timeout)
	}
	if !cfg.GenerationEnabled() {
		t.Error("expected generation to be enabled")
	}
}

func TestValidateRejectsBadInterval(t *testing.T) {
	for _, v := range []string{"-1m", "30s", "59s"} {
		t.Setenv("AUTOPOST_INTERVAL", v)
		if _, err := Load(); err == nil {
			t.Errorf("expected error for interval %s", v)
		}
	}

	t.Setenv("AUTOPOST_INTERVAL", "1m")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected 1m to be accepted: %v", err)
	}
	if cfg.AutoPost.Interval != time.Minute {
		t.Errorf("expected 1m, got %v", cfg.AutoPost.Interval)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("AUTOPOST_INTERVAL", "soon")
	t.Setenv("RATE_LIMIT_BURST", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AutoPost.Interval != DefaultAutoPostInterval {
		t.Errorf("expected default interval, got %v", cfg.AutoPost.Interval)
	}
	if cfg.RateLimit.Burst != 5 {
		t.Errorf("expected default burst, got %d", cfg.RateLimit.Burst)
	}
}
