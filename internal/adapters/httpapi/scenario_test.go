package httpapi

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bnema/kintales-cli/internal/adapters/secrets/file"
	"github.com/bnema/kintales-cli/internal/application"
	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/bnema/kintales-cli/internal/fakeapi"
	"github.com/bnema/kintales-cli/internal/ports"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type stack struct {
	api      *fakeapi.Server
	sessions *application.SessionService
	client   *Client
}

func newStack(t *testing.T) stack {
	t.Helper()

	api := fakeapi.New()
	api.AddUser(domain.User{ID: "u1", Email: "ada@example.com", FullName: "Ada"}, "secret-pw")
	api.SeedStory(domain.Story{ID: "s1", Content: "First harvest"})
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	creds := application.NewCredentialStore(file.NewStore(t.TempDir()))
	auth := NewAuthGateway(srv.URL, srv.Client(), application.DeviceInfo)
	sessions := application.NewSessionService(auth, creds, ports.SystemClock{}, zerolog.Nop())
	client := NewClient(NewDispatcher(srv.URL, sessions, WithHTTPClient(srv.Client())))

	return stack{api: api, sessions: sessions, client: client}
}

func TestLoginExpiryTransparentRenewal(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	_, err := s.sessions.Login(ctx, domain.Credentials{Email: "ada@example.com", Password: "secret-pw"})
	require.NoError(t, err)
	before := s.sessions.AccessToken()

	s.api.ExpireAccessTokens()
	s.api.SetRefreshDelay(30 * time.Millisecond)

	var group errgroup.Group
	for range 5 {
		group.Go(func() error {
			_, err := s.client.GetStory(ctx, "s1")
			return err
		})
	}
	require.NoError(t, group.Wait())

	assert.Equal(t, 1, s.api.RefreshCount())
	assert.NotEqual(t, before, s.sessions.AccessToken())
	assert.Equal(t, domain.UserID("u1"), s.sessions.Current().User.ID)
}

func TestRejectedRefreshSignsOut(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	_, err := s.sessions.Login(ctx, domain.Credentials{Email: "ada@example.com", Password: "secret-pw"})
	require.NoError(t, err)

	s.api.ExpireAccessTokens()
	s.api.FailRefresh(true)

	_, err = s.client.GetProfile(ctx)
	require.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.False(t, s.sessions.Current().Present())

	_, err = s.client.GetProfile(ctx)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, 1, s.api.RefreshCount())
}

func TestRestoreValidatesAgainstServer(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	_, err := s.sessions.Login(ctx, domain.Credentials{Email: "ada@example.com", Password: "secret-pw"})
	require.NoError(t, err)
	require.NoError(t, s.sessions.Expire(ctx))

	_, err = s.sessions.Login(ctx, domain.Credentials{Email: "ada@example.com", Password: "secret-pw"})
	require.NoError(t, err)

	restored, err := s.sessions.Restore(ctx, s.client)
	require.NoError(t, err)
	assert.Equal(t, "Ada", restored.User.FullName)
}

func TestInvalidLoginSurfacesInvalidCredentials(t *testing.T) {
	s := newStack(t)

	_, err := s.sessions.Login(context.Background(), domain.Credentials{Email: "ada@example.com", Password: "wrong"})
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.False(t, s.sessions.Current().Present())
}
