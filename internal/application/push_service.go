package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/bnema/kintales-cli/internal/ports"
	"github.com/rs/zerolog"
)

type PushService struct {
	api    ports.PushAPI
	prefs  ports.PreferencesRepository
	logger zerolog.Logger

	mu sync.Mutex
}

func NewPushService(api ports.PushAPI, prefs ports.PreferencesRepository, logger zerolog.Logger) *PushService {
	return &PushService{api: api, prefs: prefs, logger: logger}
}

// Enable turns notifications on and registers the device token. It reports
// false when another registration is already in flight.
func (s *PushService) Enable(ctx context.Context, deviceToken, platform string) (bool, error) {
	if err := s.setEnabled(ctx, true); err != nil {
		return false, err
	}
	return s.Register(ctx, deviceToken, platform)
}

// Disable turns notifications off and removes the server registration.
func (s *PushService) Disable(ctx context.Context) error {
	if err := s.setEnabled(ctx, false); err != nil {
		return err
	}
	return s.Unregister(ctx)
}

// Register is a no-op when a push token id is already stored and returns
// false without waiting when a registration is in flight.
func (s *PushService) Register(ctx context.Context, deviceToken, platform string) (bool, error) {
	if !s.mu.TryLock() {
		s.logger.Debug().Msg("push registration already in flight")
		return false, nil
	}
	defer s.mu.Unlock()

	prefs, err := s.prefs.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("get preferences: %w", err)
	}
	if prefs.PushTokenID != "" {
		return true, nil
	}

	id, err := s.api.RegisterPushToken(ctx, domain.PushRegistration{
		DeviceToken: deviceToken,
		Platform:    platform,
		DeviceInfo:  DeviceInfo,
	})
	if err != nil {
		return false, fmt.Errorf("register push token: %w", err)
	}

	prefs.PushTokenID = id
	if err := s.prefs.Save(ctx, prefs); err != nil {
		return false, fmt.Errorf("save push token id: %w", err)
	}

	return true, nil
}

// Unregister removes the stored registration. The id is kept for a later retry
// unless the server accepted the removal or no longer knows the token.
func (s *PushService) Unregister(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs, err := s.prefs.Get(ctx)
	if err != nil {
		return fmt.Errorf("get preferences: %w", err)
	}
	if prefs.PushTokenID == "" {
		return nil
	}

	err = s.api.RemovePushToken(ctx, prefs.PushTokenID)
	if err != nil && !errors.Is(err, domain.ErrUnauthorized) && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("remove push token: %w", err)
	}
	if err != nil {
		s.logger.Debug().Err(err).Msg("push token already gone server-side")
	}

	prefs.PushTokenID = ""
	if err := s.prefs.Save(ctx, prefs); err != nil {
		return fmt.Errorf("clear push token id: %w", err)
	}

	return nil
}

func (s *PushService) setEnabled(ctx context.Context, enabled bool) error {
	prefs, err := s.prefs.Get(ctx)
	if err != nil {
		return fmt.Errorf("get preferences: %w", err)
	}
	if prefs.NotificationsEnabled == enabled {
		return nil
	}

	prefs.NotificationsEnabled = enabled
	if err := s.prefs.Save(ctx, prefs); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
