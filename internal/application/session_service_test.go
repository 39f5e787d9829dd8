package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/bnema/kintales-cli/internal/ports/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

type sessionFixture struct {
	service *SessionService
	auth    *mocks.MockAuthGateway
	secrets *memorySecrets
}

func newSessionFixture(t *testing.T, stored map[string]string) sessionFixture {
	t.Helper()

	auth := mocks.NewMockAuthGateway(t)
	clock := mocks.NewMockClock(t)
	clock.EXPECT().Now().Return(testNow).Maybe()
	secrets := newMemorySecrets(stored)

	return sessionFixture{
		service: NewSessionService(auth, NewCredentialStore(secrets), clock, zerolog.Nop()),
		auth:    auth,
		secrets: secrets,
	}
}

func storedTokens(access, refresh string) map[string]string {
	return map[string]string{accessTokenKey: access, refreshTokenKey: refresh}
}

func TestSessionServiceLoginPersistsTokensAndNotifies(t *testing.T) {
	f := newSessionFixture(t, nil)
	credentials := domain.Credentials{Email: "ada@example.com", Password: "pw"}
	user := domain.User{ID: "u1", Email: "ada@example.com", FullName: "Ada"}
	f.auth.EXPECT().Login(mockAnyContext(), credentials).Return(domain.AuthResult{
		Tokens: domain.Tokens{AccessToken: "access-1", RefreshToken: "refresh-1"},
		User:   user,
	}, nil).Once()

	var seen []domain.Session
	f.service.Watch(func(s domain.Session) { seen = append(seen, s) })

	session, err := f.service.Login(context.Background(), credentials)
	require.NoError(t, err)

	assert.Equal(t, "access-1", session.Tokens.AccessToken)
	require.NotNil(t, session.User)
	assert.Equal(t, user, *session.User)
	assert.Equal(t, testNow, session.UpdatedAt)
	assert.Equal(t, storedTokens("access-1", "refresh-1"), f.secrets.snapshot())
	require.Len(t, seen, 1)
	assert.Equal(t, session, seen[0])
}

func TestSessionServiceLoginSurfacesGatewayError(t *testing.T) {
	f := newSessionFixture(t, nil)
	loginErr := &domain.APIError{Kind: domain.ErrInvalidCredentials, Status: 401, Message: "Invalid email or password"}
	f.auth.EXPECT().Login(mockAnyContext(), mock.Anything).Return(domain.AuthResult{}, loginErr).Once()

	_, err := f.service.Login(context.Background(), domain.Credentials{Email: "a", Password: "b"})
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Same(t, loginErr, err)
	assert.False(t, f.service.Current().Present())
	assert.Empty(t, f.secrets.snapshot())
}

func TestSessionServiceRegisterInstallsSession(t *testing.T) {
	f := newSessionFixture(t, nil)
	registration := domain.Registration{
		Credentials: domain.Credentials{Email: "bo@example.com", Password: "pw"},
		FullName:    "Bo",
		Language:    "fr",
	}
	f.auth.EXPECT().Register(mockAnyContext(), registration).Return(domain.AuthResult{
		Tokens: domain.Tokens{AccessToken: "access-1", RefreshToken: "refresh-1"},
		User:   domain.User{ID: "u2", FullName: "Bo"},
	}, nil).Once()

	session, err := f.service.Register(context.Background(), registration)
	require.NoError(t, err)
	assert.True(t, session.Present())
	assert.Equal(t, domain.UserID("u2"), session.User.ID)
}

func TestSessionServiceRestoreWithoutStoredTokensIsAbsent(t *testing.T) {
	f := newSessionFixture(t, nil)
	profiles := mocks.NewMockProfileAPI(t)

	session, err := f.service.Restore(context.Background(), profiles)
	require.NoError(t, err)
	assert.False(t, session.Present())
}

func TestSessionServiceRestoreValidatesThroughProfile(t *testing.T) {
	f := newSessionFixture(t, storedTokens("access-1", "refresh-1"))
	profiles := mocks.NewMockProfileAPI(t)
	profiles.EXPECT().GetProfile(mockAnyContext()).RunAndReturn(func(context.Context) (domain.User, error) {
		assert.Equal(t, "access-1", f.service.AccessToken())
		return domain.User{ID: "u1", FullName: "Ada"}, nil
	}).Once()

	var seen []domain.Session
	f.service.Watch(func(s domain.Session) { seen = append(seen, s) })

	session, err := f.service.Restore(context.Background(), profiles)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", session.Tokens.RefreshToken)
	assert.Equal(t, domain.UserID("u1"), session.User.ID)
	require.Len(t, seen, 1)
	assert.NotNil(t, seen[0].User)
}

func TestSessionServiceRestoreFailureWipesStoredTokens(t *testing.T) {
	f := newSessionFixture(t, storedTokens("access-1", "refresh-1"))
	profiles := mocks.NewMockProfileAPI(t)
	profiles.EXPECT().GetProfile(mockAnyContext()).Return(domain.User{}, domain.ErrNetworkUnavailable).Once()

	_, err := f.service.Restore(context.Background(), profiles)
	require.ErrorIs(t, err, domain.ErrNetworkUnavailable)
	assert.False(t, f.service.Current().Present())
	assert.Empty(t, f.secrets.snapshot())
}

func TestSessionServiceRestoreWipesOrphanRefreshToken(t *testing.T) {
	f := newSessionFixture(t, map[string]string{refreshTokenKey: "refresh-1"})

	session, err := f.service.Restore(context.Background(), mocks.NewMockProfileAPI(t))
	require.NoError(t, err)
	assert.False(t, session.Present())
	assert.Empty(t, f.secrets.snapshot())
}

func TestSessionServiceRenewReplacesTokensAndKeepsUser(t *testing.T) {
	f := newSessionFixture(t, nil)
	f.auth.EXPECT().Login(mockAnyContext(), mock.Anything).Return(domain.AuthResult{
		Tokens: domain.Tokens{AccessToken: "access-1", RefreshToken: "refresh-1"},
		User:   domain.User{ID: "u1"},
	}, nil).Once()
	f.auth.EXPECT().Refresh(mockAnyContext(), "refresh-1").Return(domain.Tokens{AccessToken: "access-2", RefreshToken: "refresh-2"}, nil).Once()

	before, err := f.service.Login(context.Background(), domain.Credentials{})
	require.NoError(t, err)

	token, err := f.service.Renew(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-2", token)

	after := f.service.Current()
	assert.Equal(t, domain.UserID("u1"), after.User.ID)
	assert.Greater(t, after.Generation, before.Generation)
	assert.Equal(t, storedTokens("access-2", "refresh-2"), f.secrets.snapshot())
}

func TestSessionServiceRenewKeepsRefreshTokenWhenServerDoesNotRotate(t *testing.T) {
	f := newSessionFixture(t, storedTokens("access-1", "refresh-1"))
	profiles := mocks.NewMockProfileAPI(t)
	profiles.EXPECT().GetProfile(mockAnyContext()).Return(domain.User{ID: "u1"}, nil).Once()
	f.auth.EXPECT().Refresh(mockAnyContext(), "refresh-1").Return(domain.Tokens{AccessToken: "access-2"}, nil).Once()

	_, err := f.service.Restore(context.Background(), profiles)
	require.NoError(t, err)

	_, err = f.service.Renew(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", f.service.Current().Tokens.RefreshToken)
}

func TestSessionServiceRenewWithoutRefreshTokenExpires(t *testing.T) {
	f := newSessionFixture(t, nil)

	_, err := f.service.Renew(context.Background())
	require.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestSessionServiceRenewFailureReportsSessionExpired(t *testing.T) {
	f := newSessionFixture(t, storedTokens("access-1", "refresh-1"))
	refreshErr := &domain.APIError{Kind: domain.ErrUnauthorized, Status: 401}
	f.auth.EXPECT().Refresh(mockAnyContext(), "refresh-1").Return(domain.Tokens{}, refreshErr).Once()

	_, err := f.service.Renew(context.Background())
	require.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSessionServiceRenewDoesNotOverwriteSessionReplacedMeanwhile(t *testing.T) {
	f := newSessionFixture(t, nil)
	ada := domain.Credentials{Email: "ada@example.com", Password: "pw"}
	bo := domain.Credentials{Email: "bo@example.com", Password: "pw"}
	f.auth.EXPECT().Login(mockAnyContext(), ada).Return(domain.AuthResult{
		Tokens: domain.Tokens{AccessToken: "access-a", RefreshToken: "refresh-a"},
		User:   domain.User{ID: "u-a"},
	}, nil).Once()
	f.auth.EXPECT().Login(mockAnyContext(), bo).Return(domain.AuthResult{
		Tokens: domain.Tokens{AccessToken: "access-b", RefreshToken: "refresh-b"},
		User:   domain.User{ID: "u-b"},
	}, nil).Once()
	f.auth.EXPECT().Logout(mockAnyContext(), "refresh-a").Return(nil).Once()

	started := make(chan struct{})
	release := make(chan struct{})
	f.auth.EXPECT().Refresh(mockAnyContext(), "refresh-a").RunAndReturn(func(context.Context, string) (domain.Tokens, error) {
		close(started)
		<-release
		return domain.Tokens{AccessToken: "access-a2", RefreshToken: "refresh-a2"}, nil
	}).Once()

	ctx := context.Background()
	_, err := f.service.Login(ctx, ada)
	require.NoError(t, err)

	renewed := make(chan error, 1)
	go func() {
		_, err := f.service.Renew(ctx)
		renewed <- err
	}()
	<-started

	require.NoError(t, f.service.Logout(ctx))
	_, err = f.service.Login(ctx, bo)
	require.NoError(t, err)
	close(release)

	require.ErrorIs(t, <-renewed, domain.ErrSessionSuperseded)
	current := f.service.Current()
	assert.Equal(t, domain.Tokens{AccessToken: "access-b", RefreshToken: "refresh-b"}, current.Tokens)
	require.NotNil(t, current.User)
	assert.Equal(t, domain.UserID("u-b"), current.User.ID)
	assert.Equal(t, storedTokens("access-b", "refresh-b"), f.secrets.snapshot())
}

func TestSessionServiceLogoutIgnoresServerFailure(t *testing.T) {
	f := newSessionFixture(t, nil)
	f.auth.EXPECT().Login(mockAnyContext(), mock.Anything).Return(domain.AuthResult{
		Tokens: domain.Tokens{AccessToken: "access-1", RefreshToken: "refresh-1"},
	}, nil).Once()
	f.auth.EXPECT().Logout(mockAnyContext(), "refresh-1").Return(errors.New("connection refused")).Once()

	_, err := f.service.Login(context.Background(), domain.Credentials{})
	require.NoError(t, err)

	var last domain.Session
	f.service.Watch(func(s domain.Session) { last = s })

	require.NoError(t, f.service.Logout(context.Background()))
	assert.False(t, f.service.Current().Present())
	assert.False(t, last.Present())
	assert.Empty(t, f.secrets.snapshot())
}

func TestSessionServiceWatchUnsubscribe(t *testing.T) {
	f := newSessionFixture(t, nil)

	calls := 0
	stop := f.service.Watch(func(domain.Session) { calls++ })
	require.NoError(t, f.service.Expire(context.Background()))
	stop()
	require.NoError(t, f.service.Expire(context.Background()))

	assert.Equal(t, 1, calls)
}
