package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/bnema/kintales-cli/internal/ports"
	"github.com/rs/zerolog"
)

const DeviceInfo = "KinTales CLI"

// SessionService owns the process-wide Session. Readers get value snapshots;
// every change bumps Generation and is announced to watchers in generation
// order.
type SessionService struct {
	auth   ports.AuthGateway
	creds  *CredentialStore
	clock  ports.Clock
	logger zerolog.Logger

	// writeMu serializes credential-store writes with the in-memory change
	// they belong to.
	writeMu sync.Mutex

	mu      sync.RWMutex
	session domain.Session

	watchMu      sync.Mutex
	watchers     map[int]func(domain.Session)
	nextWatcher  int
	notifyMu     sync.Mutex
	lastNotified uint64
}

func NewSessionService(auth ports.AuthGateway, creds *CredentialStore, clock ports.Clock, logger zerolog.Logger) *SessionService {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &SessionService{
		auth:     auth,
		creds:    creds,
		clock:    clock,
		logger:   logger,
		watchers: map[int]func(domain.Session){},
	}
}

func (s *SessionService) Current() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *SessionService) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Tokens.AccessToken
}

// Watch registers fn for every later session change and returns a function
// that removes it. fn runs outside the session locks but must not itself
// change the session.
func (s *SessionService) Watch(fn func(domain.Session)) func() {
	s.watchMu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = fn
	s.watchMu.Unlock()

	return func() {
		s.watchMu.Lock()
		delete(s.watchers, id)
		s.watchMu.Unlock()
	}
}

func (s *SessionService) Login(ctx context.Context, credentials domain.Credentials) (domain.Session, error) {
	result, err := s.auth.Login(ctx, credentials)
	if err != nil {
		return domain.Session{}, err
	}
	return s.establish(ctx, result)
}

func (s *SessionService) Register(ctx context.Context, registration domain.Registration) (domain.Session, error) {
	result, err := s.auth.Register(ctx, registration)
	if err != nil {
		return domain.Session{}, err
	}
	return s.establish(ctx, result)
}

func (s *SessionService) establish(ctx context.Context, result domain.AuthResult) (domain.Session, error) {
	s.writeMu.Lock()
	if err := s.creds.SaveTokens(ctx, result.Tokens); err != nil {
		s.writeMu.Unlock()
		return domain.Session{}, err
	}
	user := result.User
	snapshot := s.install(result.Tokens, &user)
	s.writeMu.Unlock()

	s.notify(snapshot)
	return snapshot, nil
}

// Restore reinstates a stored session and validates it against the profile
// endpoint. Any failure wipes the stored tokens. An absent session is not an
// error.
func (s *SessionService) Restore(ctx context.Context, profiles ports.ProfileAPI) (domain.Session, error) {
	tokens, err := s.creds.LoadTokens(ctx)
	if err != nil {
		return domain.Session{}, errors.Join(err, s.Expire(ctx))
	}
	if tokens.AccessToken == "" {
		if !tokens.Empty() {
			return domain.Session{}, s.Expire(ctx)
		}
		return domain.Session{}, nil
	}

	s.writeMu.Lock()
	s.install(tokens, nil)
	s.writeMu.Unlock()

	user, err := profiles.GetProfile(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("stored session failed validation")
		if expireErr := s.Expire(ctx); expireErr != nil {
			return domain.Session{}, fmt.Errorf("validate stored session: %w", errors.Join(err, expireErr))
		}
		return domain.Session{}, fmt.Errorf("validate stored session: %w", err)
	}

	s.writeMu.Lock()
	current := s.Current()
	if !current.Present() {
		s.writeMu.Unlock()
		return domain.Session{}, domain.ErrSessionExpired
	}
	snapshot := s.install(current.Tokens, &user)
	s.writeMu.Unlock()

	s.notify(snapshot)
	return snapshot, nil
}

// Renew exchanges the refresh token for a new pair and returns the new access
// token. It never clears the session; callers decide that on failure. A result
// is installed only while the session still holds the refresh token it was
// obtained with, otherwise Renew fails with ErrSessionSuperseded.
func (s *SessionService) Renew(ctx context.Context) (string, error) {
	refresh := s.Current().Tokens.RefreshToken
	if refresh == "" {
		stored, err := s.creds.RefreshToken(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrSessionExpired, err)
		}
		refresh = stored
	}
	if refresh == "" {
		return "", fmt.Errorf("%w: no refresh token", domain.ErrSessionExpired)
	}

	tokens, err := s.auth.Refresh(ctx, refresh)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrSessionExpired, err)
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refresh
	}

	s.writeMu.Lock()
	current := s.Current()
	if !current.Present() {
		s.writeMu.Unlock()
		return "", fmt.Errorf("%w: signed out during renewal", domain.ErrSessionExpired)
	}
	if current.Tokens.RefreshToken != refresh {
		s.writeMu.Unlock()
		return "", domain.ErrSessionSuperseded
	}
	if err := s.creds.SaveTokens(ctx, tokens); err != nil {
		s.logger.Warn().Err(err).Msg("renewed tokens kept in memory only")
	}
	snapshot := s.install(tokens, current.User)
	s.writeMu.Unlock()

	s.notify(snapshot)
	return tokens.AccessToken, nil
}

// Expire clears the session locally without contacting the server.
func (s *SessionService) Expire(ctx context.Context) error {
	s.writeMu.Lock()
	err := s.creds.Clear(ctx)
	snapshot := s.install(domain.Tokens{}, nil)
	s.writeMu.Unlock()

	s.notify(snapshot)
	if err != nil {
		return fmt.Errorf("clear stored session: %w", err)
	}
	return nil
}

// Logout invalidates the refresh token server-side on a best-effort basis,
// then clears the session unconditionally.
func (s *SessionService) Logout(ctx context.Context) error {
	refresh := s.Current().Tokens.RefreshToken
	if refresh == "" {
		if stored, err := s.creds.RefreshToken(ctx); err == nil {
			refresh = stored
		}
	}
	if refresh != "" {
		if err := s.auth.Logout(ctx, refresh); err != nil {
			s.logger.Debug().Err(err).Msg("server logout failed")
		}
	}

	return s.Expire(ctx)
}

// install must be called with writeMu held.
func (s *SessionService) install(tokens domain.Tokens, user *domain.User) domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tokens.AccessToken == "" {
		tokens = domain.Tokens{}
		user = nil
	}
	s.session = domain.Session{
		Tokens:     tokens,
		User:       user,
		Generation: s.session.Generation + 1,
		UpdatedAt:  s.clock.Now(),
	}
	return s.session
}

func (s *SessionService) notify(snapshot domain.Session) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if snapshot.Generation <= s.lastNotified {
		return
	}
	s.lastNotified = snapshot.Generation

	s.watchMu.Lock()
	ids := make([]int, 0, len(s.watchers))
	for id := range s.watchers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(domain.Session), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.watchers[id])
	}
	s.watchMu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}
