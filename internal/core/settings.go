package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/xonecas/arona-chat/internal/constants"
)

// SettingsData is published when settings are loaded or changed.
type SettingsData struct {
	APIKeyPresent bool
	Theme         string
}

// Settings caches the persisted client settings.
type Settings struct {
	gw  Gateway
	bus *EventBus

	// fallbackKey is set when the backend has an API key from its own
	// environment.
	fallbackKey bool

	mu     sync.RWMutex
	apiKey string
	theme  string
}

// NewSettings creates a settings cache.
func NewSettings(gw Gateway, bus *EventBus, fallbackKey bool) *Settings {
	return &Settings{gw: gw, bus: bus, fallbackKey: fallbackKey}
}

// Load reads the API key and theme.
func (s *Settings) Load(ctx context.Context) error {
	var apiKey, theme string
	if _, err := s.gw.GetStore(ctx, constants.SettingAPIKey, &apiKey); err != nil {
		return fmt.Errorf("load api key: %w", err)
	}
	if _, err := s.gw.GetStore(ctx, constants.SettingTheme, &theme); err != nil {
		return fmt.Errorf("load theme: %w", err)
	}

	s.mu.Lock()
	s.apiKey = apiKey
	s.theme = theme
	s.mu.Unlock()

	log.Debug().Bool("api_key_present", s.APIKeyPresent()).Str("theme", theme).Msg("settings loaded")
	s.publish()
	return nil
}

// APIKey returns the stored key, or "" when none is stored.
func (s *Settings) APIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiKey
}

// APIKeyPresent reports whether a key is configured. The view warns when it
// is not.
func (s *Settings) APIKeyPresent() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiKey != "" || s.fallbackKey
}

// Theme returns the stored theme preference.
func (s *Settings) Theme() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// SetAPIKey persists key.
func (s *Settings) SetAPIKey(ctx context.Context, key string) error {
	if err := s.gw.SetStore(ctx, constants.SettingAPIKey, key); err != nil {
		return fmt.Errorf("save api key: %w", err)
	}
	s.mu.Lock()
	s.apiKey = key
	s.mu.Unlock()
	s.publish()
	return nil
}

// SetTheme persists theme.
func (s *Settings) SetTheme(ctx context.Context, theme string) error {
	if err := s.gw.SetStore(ctx, constants.SettingTheme, theme); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	s.mu.Lock()
	s.theme = theme
	s.mu.Unlock()
	s.publish()
	return nil
}

func (s *Settings) publish() {
	s.bus.Publish(Event{Type: EventSettingsLoaded, Data: SettingsData{
		APIKeyPresent: s.APIKeyPresent(),
		Theme:         s.Theme(),
	}})
}
