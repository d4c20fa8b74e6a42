package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kiskahq/kiska/internal/config"
	"github.com/kiskahq/kiska/internal/handler"
	authservice "github.com/kiskahq/kiska/internal/service/auth"
	"github.com/kiskahq/kiska/internal/service/conversation"
	"github.com/kiskahq/kiska/internal/service/speech"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Session store backend is chosen once here; everything else sees the
	// Store interface.
	sessions, err := cfg.Store.Open()
	if err != nil {
		log.Fatalf("failed to open session store: %v", err)
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			log.Printf("warning: failed to close session store: %v", err)
		}
	}()
	log.Printf("session store initialized (backend=%s)", cfg.Store.Backend)

	credentials, err := credentialTable(cfg.Auth)
	if err != nil {
		log.Fatalf("failed to build credential table: %v", err)
	}
	authenticator := authservice.NewStaticAuthenticator(credentials)
	gate := authservice.NewGate(authenticator, sessions, cfg.Assistant.DefaultUsername)

	responder := conversation.NewResponder(cfg.Assistant.Name, conversation.WeatherSnapshot{
		Temperature: cfg.Assistant.WeatherTemp,
		Condition:   cfg.Assistant.WeatherCond,
	}, nil)

	var synthesizer speech.Synthesizer
	if cfg.Speech.Enabled {
		synthesizer = speech.NewSimulated(cfg.Speech.WordsPerMinute)
		log.Println("speech synthesis enabled (simulated)")
	} else {
		synthesizer = speech.NewNoop()
		log.Println("speech synthesis disabled, conversations run text-only")
	}

	engine := conversation.NewEngine(conversation.Config{
		GreetingDelay: cfg.Assistant.GreetingDelay,
		ReplyDelay:    cfg.Assistant.ReplyDelay,
	}, responder, synthesizer)

	router := handler.NewRouter(gate, engine, cfg.Assistant.DefaultUsername)

	startServer(ctx, cfg.Server, router)
}

// credentialTable prefers the configured bcrypt pairs; without any it hashes
// the demo credentials so the prototype works out of the box.
func credentialTable(cfg config.AuthConfig) (map[string]string, error) {
	if len(cfg.Users) > 0 {
		return cfg.Users, nil
	}

	log.Printf("AUTH_USERS not configured, using demo user %q", cfg.DemoUsername)
	hash, err := authservice.HashPassword(cfg.DemoPassword)
	if err != nil {
		return nil, err
	}
	return map[string]string{cfg.DemoUsername: hash}, nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("KISKA backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
