package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/bnema/kintales-cli/internal/ports"
)

const (
	accessTokenKey  = "kintales/session/access_token"
	refreshTokenKey = "kintales/session/refresh_token"
)

// CredentialStore mirrors the two session tokens into a SecretStore. The user
// profile is never persisted.
type CredentialStore struct {
	secrets ports.SecretStore
}

func NewCredentialStore(secrets ports.SecretStore) *CredentialStore {
	return &CredentialStore{secrets: secrets}
}

// LoadTokens returns empty tokens, not an error, when nothing is stored.
func (c *CredentialStore) LoadTokens(ctx context.Context) (domain.Tokens, error) {
	access, err := c.get(ctx, accessTokenKey)
	if err != nil {
		return domain.Tokens{}, fmt.Errorf("load access token: %w", err)
	}
	refresh, err := c.get(ctx, refreshTokenKey)
	if err != nil {
		return domain.Tokens{}, fmt.Errorf("load refresh token: %w", err)
	}

	return domain.Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

func (c *CredentialStore) RefreshToken(ctx context.Context) (string, error) {
	refresh, err := c.get(ctx, refreshTokenKey)
	if err != nil {
		return "", fmt.Errorf("load refresh token: %w", err)
	}
	return refresh, nil
}

func (c *CredentialStore) SaveTokens(ctx context.Context, tokens domain.Tokens) error {
	if err := c.secrets.Put(ctx, accessTokenKey, tokens.AccessToken); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	if err := c.secrets.Put(ctx, refreshTokenKey, tokens.RefreshToken); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// Clear attempts both deletions even when the first one fails.
func (c *CredentialStore) Clear(ctx context.Context) error {
	var errs error
	if err := c.secrets.Delete(ctx, accessTokenKey); err != nil {
		errs = errors.Join(errs, fmt.Errorf("delete access token: %w", err))
	}
	if err := c.secrets.Delete(ctx, refreshTokenKey); err != nil {
		errs = errors.Join(errs, fmt.Errorf("delete refresh token: %w", err))
	}
	return errs
}

func (c *CredentialStore) get(ctx context.Context, key string) (string, error) {
	value, err := c.secrets.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}
