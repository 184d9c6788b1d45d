package config_test

import (
	"testing"

	"resale-bot/api/internal/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("GEMINI_API_KEY", "gk")
	t.Setenv("SUPABASE_URL", "https://proj.supabase.co")
	t.Setenv("SUPABASE_KEY", "sk")
	t.Setenv("SUPABASE_BUCKET", "items")
	t.Setenv("SHEET_ID", "sheet-1")
	t.Setenv("GOOGLE_CREDENTIALS_JSON_PATH", "/tmp/creds.json")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("TELEGRAM_WHITELIST", "")
	t.Setenv("PORT", "")
	t.Setenv("REQUIRE_PRICE", "")

	cfg := config.Load()
	if cfg.Port != "8000" {
		t.Fatalf("port = %q, want 8000", cfg.Port)
	}
	if cfg.GeminiModel != "gemini-2.5-flash" {
		t.Fatalf("model = %q", cfg.GeminiModel)
	}
	if !cfg.RequirePrice {
		t.Fatal("price must be required by default")
	}
	if cfg.FlagEmptyText {
		t.Fatal("empty text must not force review by default")
	}
	if cfg.DefaultGender != "M" {
		t.Fatalf("gender = %q, want M", cfg.DefaultGender)
	}
	if len(cfg.Whitelist) != 0 {
		t.Fatalf("whitelist = %v, want empty", cfg.Whitelist)
	}
}

func TestLoadWhitelist(t *testing.T) {
	setRequired(t)
	t.Setenv("TELEGRAM_WHITELIST", "42, 1001 ,7")

	cfg := config.Load()
	want := []int64{42, 1001, 7}
	if len(cfg.Whitelist) != len(want) {
		t.Fatalf("whitelist = %v, want %v", cfg.Whitelist, want)
	}
	for i := range want {
		if cfg.Whitelist[i] != want[i] {
			t.Fatalf("whitelist = %v, want %v", cfg.Whitelist, want)
		}
	}
}

func TestLoadPolicyOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("REQUIRE_PRICE", "false")
	t.Setenv("FLAG_EMPTY_TEXT", "true")

	cfg := config.Load()
	if cfg.RequirePrice {
		t.Fatal("REQUIRE_PRICE=false not honored")
	}
	if !cfg.FlagEmptyText {
		t.Fatal("FLAG_EMPTY_TEXT=true not honored")
	}
}
