package ports

import (
	"context"

	"github.com/bnema/kintales-cli/internal/domain"
)

// AuthGateway talks to the auth endpoints directly. It never goes through the
// request dispatcher, so a failed refresh cannot recurse into renewal.
type AuthGateway interface {
	Login(ctx context.Context, credentials domain.Credentials) (domain.AuthResult, error)
	Register(ctx context.Context, registration domain.Registration) (domain.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (domain.Tokens, error)
	Logout(ctx context.Context, refreshToken string) error
}
