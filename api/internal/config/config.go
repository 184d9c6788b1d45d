package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port       string
	WebhookURL string

	TelegramBotToken string
	Whitelist        []int64

	GeminiAPIKey string
	GeminiModel  string

	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	SheetID               string
	GoogleCredentialsPath string

	VocabPath     string
	DefaultGender string
	RequirePrice  bool
	FlagEmptyText bool
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing required env %s", k)
	}
	return v
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("env %s: %q is not a bool", k, v)
	}
	return b
}

func Load() *Config {
	return &Config{
		Port:       getEnv("PORT", "8000"),
		WebhookURL: getEnv("WEBHOOK_URL", ""),

		TelegramBotToken: mustEnv("BOT_TOKEN"),
		Whitelist:        parseWhitelist(getEnv("TELEGRAM_WHITELIST", "")),

		GeminiAPIKey: mustEnv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		SupabaseURL:    mustEnv("SUPABASE_URL"),
		SupabaseKey:    mustEnv("SUPABASE_KEY"),
		SupabaseBucket: mustEnv("SUPABASE_BUCKET"),

		SheetID:               mustEnv("SHEET_ID"),
		GoogleCredentialsPath: mustEnv("GOOGLE_CREDENTIALS_JSON_PATH"),

		VocabPath:     getEnv("VOCAB_PATH", ""),
		DefaultGender: getEnv("DEFAULT_GENDER", "M"),
		RequirePrice:  getBool("REQUIRE_PRICE", true),
		FlagEmptyText: getBool("FLAG_EMPTY_TEXT", false),
	}
}

func parseWhitelist(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Fatalf("TELEGRAM_WHITELIST: %q is not a user id", part)
		}
		ids = append(ids, id)
	}
	return ids
}
