package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kiskahq/kiska/internal/store"
)

// Config aggregates every section of the service configuration.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Auth      AuthConfig
	Assistant AssistantConfig
	Speech    SpeechConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	storeCfg, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	authCfg, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	assistant, err := loadAssistantConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Store:     storeCfg,
		Auth:      authCfg,
		Assistant: assistant,
		Speech:    speech,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow passing ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// StoreConfig selects the session store backend at startup. Call sites only
// ever see the store.Store interface.
type StoreConfig struct {
	Backend string // "memory" or "badger"
	Path    string
}

func loadStoreConfig() (StoreConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("STORE_BACKEND", "memory"))
	switch backend {
	case "memory", "badger":
	default:
		return StoreConfig{}, fmt.Errorf("invalid STORE_BACKEND value %q (valid: memory, badger)", backend)
	}

	path := getEnvOrDefault("STORE_PATH", "data/sessions")
	return StoreConfig{Backend: backend, Path: path}, nil
}

// Open creates the configured session store.
func (c StoreConfig) Open() (store.Store, error) {
	switch c.Backend {
	case "badger":
		return store.OpenBadgerStore(c.Path)
	default:
		return store.NewMemoryStore(), nil
	}
}

// AuthConfig seeds the credential table. AUTH_USERS carries
// "username:bcrypt-hash" pairs separated by commas; when it is empty the demo
// pair is used so the prototype stays usable out of the box.
type AuthConfig struct {
	Users        map[string]string
	DemoUsername string
	DemoPassword string
}

func loadAuthConfig() (AuthConfig, error) {
	users := make(map[string]string)
	raw := strings.TrimSpace(os.Getenv("AUTH_USERS"))
	if raw != "" {
		for _, pair := range strings.Split(raw, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			name, hash, ok := strings.Cut(pair, ":")
			if !ok || name == "" || hash == "" {
				return AuthConfig{}, fmt.Errorf("invalid AUTH_USERS entry %q, want username:bcrypt-hash", pair)
			}
			users[name] = hash
		}
	}

	return AuthConfig{
		Users:        users,
		DemoUsername: getEnvOrDefault("AUTH_DEMO_USERNAME", "trent"),
		DemoPassword: getEnvOrDefault("AUTH_DEMO_PASSWORD", "kiska-demo"),
	}, nil
}

// AssistantConfig describes the assistant identity and the turn-flow timings.
type AssistantConfig struct {
	Name            string
	DefaultUsername string
	GreetingDelay   time.Duration
	ReplyDelay      time.Duration
	WeatherTemp     string
	WeatherCond     string
}

func loadAssistantConfig() (AssistantConfig, error) {
	greetingDelay, err := parseDurationMsEnv("ASSISTANT_GREETING_DELAY_MS", 1500*time.Millisecond)
	if err != nil {
		return AssistantConfig{}, err
	}

	replyDelay, err := parseDurationMsEnv("ASSISTANT_REPLY_DELAY_MS", time.Second)
	if err != nil {
		return AssistantConfig{}, err
	}

	return AssistantConfig{
		Name:            getEnvOrDefault("ASSISTANT_NAME", "KISKA"),
		DefaultUsername: getEnvOrDefault("ASSISTANT_DEFAULT_USERNAME", "Trent"),
		GreetingDelay:   greetingDelay,
		ReplyDelay:      replyDelay,
		WeatherTemp:     getEnvOrDefault("WEATHER_TEMPERATURE", "72°"),
		WeatherCond:     getEnvOrDefault("WEATHER_CONDITION", "Clear"),
	}, nil
}

// SpeechConfig describes the simulated synthesis backend. Disabling speech
// swaps in the noop synthesizer; the conversation continues text-only.
type SpeechConfig struct {
	Enabled        bool
	WordsPerMinute int
}

func loadSpeechConfig() (SpeechConfig, error) {
	enabled, err := parseBoolEnv("SPEECH_ENABLED", true)
	if err != nil {
		return SpeechConfig{}, err
	}

	wpm := 160
	if override, err := parseOptionalIntEnv("SPEECH_WORDS_PER_MINUTE"); err != nil {
		return SpeechConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return SpeechConfig{}, fmt.Errorf("SPEECH_WORDS_PER_MINUTE must be positive, got %d", *override)
		}
		wpm = *override
	}

	return SpeechConfig{Enabled: enabled, WordsPerMinute: wpm}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseDurationMsEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	override, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if override == nil {
		return defaultValue, nil
	}
	if *override < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %d", key, *override)
	}
	return time.Duration(*override) * time.Millisecond, nil
}
