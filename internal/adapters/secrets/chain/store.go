package chain

import (
	"context"
	"errors"
	"fmt"

	filestore "github.com/bnema/kintales-cli/internal/adapters/secrets/file"
	passstore "github.com/bnema/kintales-cli/internal/adapters/secrets/pass"
	"github.com/bnema/kintales-cli/internal/ports"
	"github.com/rs/zerolog"
)

type Store struct {
	primary  ports.SecretStore
	fallback ports.SecretStore
	logger   zerolog.Logger
}

var _ ports.SecretStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary secret store is nil")
	errNilFallbackStore = errors.New("fallback secret store is nil")
)

func NewStore(primary ports.SecretStore, fallback ports.SecretStore, logger zerolog.Logger) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Store{primary: primary, fallback: fallback, logger: logger}, nil
}

// NewPassFirstWithFileFallback prefers pass and falls back to the encrypted
// file store. Without a pass binary the file store is used alone.
func NewPassFirstWithFileFallback(fileRoot string, logger zerolog.Logger) (ports.SecretStore, error) {
	files := filestore.NewStore(fileRoot)
	pass := passstore.NewStore()
	if !pass.Available() {
		logger.Debug().Str("dir", fileRoot).Msg("pass not found, using file secret store")
		return files, nil
	}
	return NewStore(pass, files, logger)
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	err := s.primary.Put(ctx, key, value)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}
	s.logger.Debug().Err(err).Str("key", key).Msg("primary secret backend put failed, using fallback")

	fallbackErr := s.fallback.Put(ctx, key, value)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary backend put failed: %w; fallback backend put failed: %w", err, fallbackErr)
}

// Get reports domain.ErrSecretNotFound only when neither backend has the key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.primary.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if shouldSkipFallback(err) {
		return "", err
	}
	s.logger.Debug().Err(err).Str("key", key).Msg("primary secret backend get failed, using fallback")

	fallbackValue, fallbackErr := s.fallback.Get(ctx, key)
	if fallbackErr == nil {
		return fallbackValue, nil
	}

	return "", fmt.Errorf("primary backend get failed: %w; fallback backend get failed: %w", err, fallbackErr)
}

// Delete clears the key from both backends so a stale copy in the fallback
// cannot resurrect a signed-out session.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.primary.Delete(ctx, key)
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Delete(ctx, key)
	switch {
	case err != nil && fallbackErr != nil:
		return fmt.Errorf("primary backend delete failed: %w; fallback backend delete failed: %w", err, fallbackErr)
	case fallbackErr != nil:
		s.logger.Debug().Err(fallbackErr).Str("key", key).Msg("fallback secret backend delete failed")
	case err != nil:
		s.logger.Debug().Err(err).Str("key", key).Msg("primary secret backend delete failed")
	}

	return nil
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
