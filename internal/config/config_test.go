package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE_BACKEND", "ASSISTANT_NAME", "ASSISTANT_DEFAULT_USERNAME", "ASSISTANT_GREETING_DELAY_MS", "SPEECH_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Store.Backend != "memory" {
		t.Fatalf("unexpected store backend: %s", cfg.Store.Backend)
	}
	if cfg.Assistant.Name != "KISKA" {
		t.Fatalf("unexpected assistant name: %s", cfg.Assistant.Name)
	}
	if cfg.Assistant.DefaultUsername != "Trent" {
		t.Fatalf("unexpected default username: %s", cfg.Assistant.DefaultUsername)
	}
	if cfg.Assistant.GreetingDelay != 1500*time.Millisecond {
		t.Fatalf("unexpected greeting delay: %v", cfg.Assistant.GreetingDelay)
	}
	if !cfg.Speech.Enabled {
		t.Fatal("speech should default to enabled")
	}
}

func TestLoadServerConfigPortForms(t *testing.T) {
	cases := []struct {
		value   string
		want    string
		wantErr bool
	}{
		{value: "9090", want: ":9090"},
		{value: ":9090", want: ":9090"},
		{value: "127.0.0.1:9090", want: "127.0.0.1:9090"},
		{value: "bad port", wantErr: true},
	}

	for _, tc := range cases {
		t.Setenv("PORT", tc.value)
		got, err := loadServerConfig()
		if tc.wantErr {
			if err == nil {
				t.Fatalf("PORT=%q: expected error", tc.value)
			}
			continue
		}
		if err != nil {
			t.Fatalf("PORT=%q err: %v", tc.value, err)
		}
		if got.Addr != tc.want {
			t.Fatalf("PORT=%q: got %s want %s", tc.value, got.Addr, tc.want)
		}
	}
}

func TestLoadStoreConfigRejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	if _, err := loadStoreConfig(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLoadAuthConfigParsesUsers(t *testing.T) {
	t.Setenv("AUTH_USERS", "alice:$2a$10$abc, bob:$2a$10$def")

	cfg, err := loadAuthConfig()
	if err != nil {
		t.Fatalf("loadAuthConfig err: %v", err)
	}
	if len(cfg.Users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(cfg.Users))
	}
	if cfg.Users["alice"] != "$2a$10$abc" {
		t.Fatalf("unexpected hash for alice: %s", cfg.Users["alice"])
	}
}

func TestLoadAuthConfigRejectsMalformedEntry(t *testing.T) {
	t.Setenv("AUTH_USERS", "alice")
	if _, err := loadAuthConfig(); err == nil {
		t.Fatal("expected error for malformed AUTH_USERS entry")
	}
}

func TestLoadAssistantDelaysFromEnv(t *testing.T) {
	t.Setenv("ASSISTANT_GREETING_DELAY_MS", "0")
	t.Setenv("ASSISTANT_REPLY_DELAY_MS", "250")

	cfg, err := loadAssistantConfig()
	if err != nil {
		t.Fatalf("loadAssistantConfig err: %v", err)
	}
	if cfg.GreetingDelay != 0 {
		t.Fatalf("unexpected greeting delay: %v", cfg.GreetingDelay)
	}
	if cfg.ReplyDelay != 250*time.Millisecond {
		t.Fatalf("unexpected reply delay: %v", cfg.ReplyDelay)
	}
}

func TestLoadSpeechConfigRejectsNonPositiveRate(t *testing.T) {
	t.Setenv("SPEECH_WORDS_PER_MINUTE", "0")
	if _, err := loadSpeechConfig(); err == nil {
		t.Fatal("expected error for non-positive rate")
	}
}
