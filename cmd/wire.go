package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/bnema/kintales-cli/internal/adapters/httpapi"
	"github.com/bnema/kintales-cli/internal/adapters/realtime"
	commentsrender "github.com/bnema/kintales-cli/internal/adapters/render/comments"
	tomlrepo "github.com/bnema/kintales-cli/internal/adapters/repo/toml"
	chainstore "github.com/bnema/kintales-cli/internal/adapters/secrets/chain"
	filestore "github.com/bnema/kintales-cli/internal/adapters/secrets/file"
	passstore "github.com/bnema/kintales-cli/internal/adapters/secrets/pass"
	"github.com/bnema/kintales-cli/internal/application"
	"github.com/bnema/kintales-cli/internal/config"
	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/bnema/kintales-cli/internal/obs"
	"github.com/bnema/kintales-cli/internal/ports"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

var errNotSignedIn = fmt.Errorf("%w: run \"kt login\" first", domain.ErrNoSession)

type app struct {
	cfg            config.Config
	logger         zerolog.Logger
	metrics        *obs.Metrics
	sessions       *application.SessionService
	api            *httpapi.Client
	push           *application.PushService
	prefs          ports.PreferencesRepository
	commentsRender func(domain.StoryID, []domain.Comment, commentsrender.RenderOptions) (string, error)
	now            func() time.Time
}

func wireApp() (*app, error) {
	cfg, err := config.Load(viper.New())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := obs.NewLogger(os.Stderr, cfg.LogLevel)
	metrics := obs.NewMetrics()

	secrets, err := newSecretStore(cfg.Secrets, logger)
	if err != nil {
		return nil, fmt.Errorf("wire secret store: %w", err)
	}

	prefs, err := tomlrepo.NewRepository(cfg.PrefsPath)
	if err != nil {
		return nil, fmt.Errorf("wire preferences repository: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.API.Timeout}
	auth := httpapi.NewAuthGateway(cfg.API.BaseURL, httpClient, application.DeviceInfo)
	sessions := application.NewSessionService(auth, application.NewCredentialStore(secrets), ports.SystemClock{}, logger)

	dispatcher := httpapi.NewDispatcher(cfg.API.BaseURL, sessions,
		httpapi.WithHTTPClient(httpClient),
		httpapi.WithLogger(logger),
		httpapi.WithMetrics(metrics),
	)
	api := httpapi.NewClient(dispatcher)

	return &app{
		cfg:            cfg,
		logger:         logger,
		metrics:        metrics,
		sessions:       sessions,
		api:            api,
		push:           application.NewPushService(api, prefs, logger),
		prefs:          prefs,
		commentsRender: commentsrender.Render,
		now:            time.Now,
	}, nil
}

func newSecretStore(cfg config.SecretsConfig, logger zerolog.Logger) (ports.SecretStore, error) {
	switch cfg.Backend {
	case config.SecretsBackendPass:
		return passstore.NewStore(), nil
	case config.SecretsBackendFile:
		return filestore.NewStore(cfg.Dir), nil
	default:
		return chainstore.NewPassFirstWithFileFallback(cfg.Dir, logger)
	}
}

// newManager opens the realtime channel for commands that follow rooms. The
// caller owns Shutdown.
func (a *app) newManager() *realtime.Manager {
	return realtime.NewManager(a.sessions, realtime.Config{
		URL:               a.cfg.Realtime.URL,
		ReconnectAttempts: a.cfg.Realtime.ReconnectAttempts,
		ReconnectDelay:    a.cfg.Realtime.ReconnectDelay,
		ReconnectDelayMax: a.cfg.Realtime.ReconnectDelayMax,
	}, realtime.WithLogger(a.logger), realtime.WithMetrics(a.metrics))
}

// explain adds sign-in guidance to errors that ended the session.
func explain(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrSessionExpired) {
		return fmt.Errorf("%w: signed out, run \"kt login\" again", err)
	}
	return err
}
