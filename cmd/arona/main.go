package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/xonecas/arona-chat/internal/backend"
	"github.com/xonecas/arona-chat/internal/config"
	"github.com/xonecas/arona-chat/internal/constants"
	"github.com/xonecas/arona-chat/internal/core"
	"github.com/xonecas/arona-chat/internal/gateway"
	"github.com/xonecas/arona-chat/internal/provider"
	"github.com/xonecas/arona-chat/internal/rpc"
	"github.com/xonecas/arona-chat/internal/store"
	"github.com/xonecas/arona-chat/internal/tui"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// Parse flags
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		configPath  = flag.String("config", "config.toml", "Path to config file")
		debug       = flag.Bool("debug", false, "Enable debug logging")
		serve       = flag.Bool("serve", false, "Run only the backend RPC server on remote.listen")
		remoteURL   = flag.String("remote", "", "Use the backend at this websocket URL instead of the in-process one")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("Arona Chat %s\n", Version)
		os.Exit(0)
	}

	// Initialize logging
	if err := initLogging(*debug, *serve); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	log.Info().Str("version", Version).Msg("Starting Arona Chat")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *remoteURL != "" {
		cfg.Remote.URL = *remoteURL
	}
	log.Debug().Str("provider", cfg.Chat.Provider).Int("page_size", cfg.Chat.PageSize).Msg("Configuration loaded")

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serve {
		if err := runServer(ctx, cfg); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
		return
	}

	if err := runClient(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("TUI error")
	}
	log.Info().Msg("Arona Chat shutdown complete")
}

// openBackend opens the database and registers the command surface on a
// new dispatcher.
func openBackend(cfg *config.Config) (*rpc.Dispatcher, func(), error) {
	s, err := store.New()
	if err != nil {
		return nil, nil, fmt.Errorf("initialize store: %w", err)
	}
	log.Debug().Msg("Store initialized")

	registry := provider.RegistryFromConfig(cfg)
	log.Debug().Strs("providers", registry.List()).Msg("Providers initialized")

	d := rpc.NewDispatcher()
	backend.New(s, registry, cfg).Register(d)
	log.Debug().Strs("methods", d.Methods()).Msg("Backend registered")

	return d, func() { s.Close() }, nil
}

func runServer(ctx context.Context, cfg *config.Config) error {
	d, closeStore, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	mux := http.NewServeMux()
	mux.Handle("/rpc", rpc.NewServer(d, false))
	srv := &http.Server{
		Addr:              cfg.Remote.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Remote.Listen).Msg("RPC server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.StopTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runClient(ctx context.Context, cfg *config.Config) error {
	// Connect the gateway to a remote backend or an in-process one
	var inv rpc.Invoker
	if cfg.Remote.URL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		client, err := rpc.Dial(dialCtx, cfg.Remote.URL)
		cancel()
		if err != nil {
			return err
		}
		defer client.Close()
		inv = client
		log.Info().Str("url", cfg.Remote.URL).Msg("Connected to remote backend")
	} else {
		d, closeStore, err := openBackend(cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		inv = rpc.NewLocal(d)
	}
	gw := gateway.New(inv)

	// Initialize event bus
	bus := core.NewEventBus(1000)
	defer bus.Close()
	eventCh := bus.Subscribe()

	st := core.NewStore(gw, bus, core.StoreOptions{
		DefaultTitle:   cfg.Chat.DefaultTitle,
		DefaultPersona: cfg.Chat.DefaultPersona,
	})
	msgs := core.NewMessages(gw, st, bus)
	coord := core.NewCoordinator(gw, st, msgs, bus)
	_, providerCfg, _ := cfg.ActiveProvider()
	settings := core.NewSettings(gw, bus, providerCfg.APIKey != "")

	model := tui.New(ctx, tui.Deps{
		Store:           st,
		Messages:        msgs,
		Coordinator:     coord,
		Settings:        settings,
		Events:          eventCh,
		PageSize:        cfg.Chat.PageSize,
		ScrollThreshold: cfg.Chat.ScrollThreshold,
		DefaultPersona:  cfg.Chat.DefaultPersona,
	})
	program := tea.NewProgram(model, tea.WithAltScreen())

	// Handle shutdown in a goroutine
	go func() {
		<-ctx.Done()
		log.Info().Msg("Received shutdown signal")
		coord.Cancel()
		program.Quit()
	}()

	// Run the TUI
	if _, err := program.Run(); err != nil {
		return err
	}

	// Clean shutdown
	coord.Cancel()
	return nil
}

func initLogging(debug, toStderr bool) error {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// The headless server has a free terminal
	if toStderr {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		return nil
	}

	// Ensure data directory exists
	dataDir, err := config.EnsureDataDir()
	if err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}

	// Open log file (truncate on startup)
	logPath := filepath.Join(dataDir, "arona.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	// Log to file only (TUI owns stdout/stderr)
	log.Logger = zerolog.New(logFile).With().Timestamp().Logger()

	return nil
}
