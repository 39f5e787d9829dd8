package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/bnema/kintales-cli/internal/ports"
)

// AuthGateway calls the auth endpoints without the dispatcher so a rejected
// refresh can never trigger another renewal.
type AuthGateway struct {
	transport  transport
	deviceInfo string
}

var _ ports.AuthGateway = (*AuthGateway)(nil)

func NewAuthGateway(baseURL string, client *http.Client, deviceInfo string) *AuthGateway {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &AuthGateway{
		transport:  transport{baseURL: baseURL, client: client},
		deviceInfo: deviceInfo,
	}
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceInfo string `json:"deviceInfo,omitempty"`
}

type registerRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"fullName"`
	Language   string `json:"language,omitempty"`
	DeviceInfo string `json:"deviceInfo,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         domain.User `json:"user"`
}

func (g *AuthGateway) Login(ctx context.Context, credentials domain.Credentials) (domain.AuthResult, error) {
	return g.authenticate(ctx, "/api/auth/login", loginRequest{
		Email:      credentials.Email,
		Password:   credentials.Password,
		DeviceInfo: g.deviceInfo,
	})
}

func (g *AuthGateway) Register(ctx context.Context, registration domain.Registration) (domain.AuthResult, error) {
	return g.authenticate(ctx, "/api/auth/register", registerRequest{
		Email:      registration.Email,
		Password:   registration.Password,
		FullName:   registration.FullName,
		Language:   registration.Language,
		DeviceInfo: g.deviceInfo,
	})
}

func (g *AuthGateway) Refresh(ctx context.Context, refreshToken string) (domain.Tokens, error) {
	c, err := newCall(http.MethodPost, refreshPath, refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return domain.Tokens{}, err
	}
	resp, err := g.transport.send(ctx, c, "")
	if err != nil {
		return domain.Tokens{}, err
	}

	var out authResponse
	if err := decode(resp, &out, kindForStatus); err != nil {
		return domain.Tokens{}, fmt.Errorf("refresh tokens: %w", err)
	}
	if out.AccessToken == "" {
		return domain.Tokens{}, fmt.Errorf("refresh tokens: %w: empty access token", domain.ErrServerError)
	}

	return domain.Tokens{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}, nil
}

func (g *AuthGateway) Logout(ctx context.Context, refreshToken string) error {
	c, err := newCall(http.MethodPost, "/api/auth/logout", refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	resp, err := g.transport.send(ctx, c, "")
	if err != nil {
		return err
	}
	return decode(resp, nil, kindForStatus)
}

func (g *AuthGateway) authenticate(ctx context.Context, path string, payload any) (domain.AuthResult, error) {
	c, err := newCall(http.MethodPost, path, payload)
	if err != nil {
		return domain.AuthResult{}, err
	}
	resp, err := g.transport.send(ctx, c, "")
	if err != nil {
		return domain.AuthResult{}, err
	}

	var out authResponse
	if err := decode(resp, &out, kindForCredentialStatus); err != nil {
		return domain.AuthResult{}, err
	}
	if out.AccessToken == "" || out.RefreshToken == "" {
		return domain.AuthResult{}, fmt.Errorf("%w: auth response without tokens", domain.ErrServerError)
	}

	return domain.AuthResult{
		Tokens: domain.Tokens{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken},
		User:   out.User,
	}, nil
}
