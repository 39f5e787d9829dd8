package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/bnema/kintales-cli/internal/obs"
	"github.com/rs/zerolog"
)

const (
	refreshPath = "/api/auth/refresh"

	defaultTimeout      = 15 * time.Second
	defaultRenewTimeout = 15 * time.Second
)

// TokenSource is the session side of the dispatcher.
type TokenSource interface {
	AccessToken() string
	Renew(ctx context.Context) (string, error)
	Expire(ctx context.Context) error
}

type renewal struct {
	token string
	err   error
}

// Dispatcher sends authenticated requests. On a 401 it keeps at most one
// renewal in flight; concurrent callers park until that renewal settles and
// all of them replay once with its outcome.
type Dispatcher struct {
	transport    transport
	tokens       TokenSource
	logger       zerolog.Logger
	metrics      *obs.Metrics
	renewTimeout time.Duration

	mu       sync.Mutex
	renewing bool
	waiters  []chan renewal
}

type DispatcherOption func(*Dispatcher)

func WithHTTPClient(client *http.Client) DispatcherOption {
	return func(d *Dispatcher) {
		d.transport.client = client
	}
}

func WithLogger(logger zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(metrics *obs.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = metrics
	}
}

func WithRenewTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.renewTimeout = timeout
	}
}

func NewDispatcher(baseURL string, tokens TokenSource, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		transport: transport{
			baseURL: baseURL,
			client:  &http.Client{Timeout: defaultTimeout},
		},
		tokens:       tokens,
		logger:       zerolog.Nop(),
		renewTimeout: defaultRenewTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) do(ctx context.Context, c call, out any) error {
	sentWith := d.tokens.AccessToken()
	resp, err := d.transport.send(ctx, c, sentWith)
	if err != nil {
		return err
	}
	if resp.status != http.StatusUnauthorized {
		return decode(resp, out, kindForStatus)
	}

	// Refresh normally goes through AuthGateway; this guards callers that route it here.
	if c.path == refreshPath {
		if expireErr := d.tokens.Expire(context.WithoutCancel(ctx)); expireErr != nil {
			d.logger.Warn().Err(expireErr).Msg("clear session after refresh rejection")
		}
		return fmt.Errorf("%w: refresh rejected", domain.ErrSessionExpired)
	}
	if sentWith == "" {
		return decode(resp, out, kindForStatus)
	}

	token, err := d.awaitToken(ctx, sentWith)
	if err != nil {
		return err
	}

	d.metrics.RequestReplayed()
	resp, err = d.transport.send(ctx, c, token)
	if err != nil {
		return err
	}
	return decode(resp, out, kindForStatus)
}

// awaitToken returns the token a call rejected with sentWith should replay
// with, starting a renewal unless one already superseded sentWith.
func (d *Dispatcher) awaitToken(ctx context.Context, sentWith string) (string, error) {
	d.mu.Lock()
	current := d.tokens.AccessToken()
	if current == "" {
		d.mu.Unlock()
		return "", fmt.Errorf("%w: signed out", domain.ErrSessionExpired)
	}
	if current != sentWith && !d.renewing {
		d.mu.Unlock()
		return current, nil
	}

	wait := make(chan renewal, 1)
	d.waiters = append(d.waiters, wait)
	if !d.renewing {
		d.renewing = true
		go d.renew(ctx)
	}
	d.mu.Unlock()

	select {
	case outcome := <-wait:
		return outcome.token, outcome.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (d *Dispatcher) renew(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), d.renewTimeout)
	defer cancel()

	token, err := d.tokens.Renew(ctx)
	d.metrics.RenewalFinished(err)
	switch {
	case errors.Is(err, domain.ErrSessionSuperseded):
		d.logger.Debug().Msg("session replaced during renewal")
		err = fmt.Errorf("%w: %w", domain.ErrSessionExpired, err)
	case err != nil:
		d.logger.Info().Err(err).Msg("token renewal failed, signing out")
		if expireErr := d.tokens.Expire(ctx); expireErr != nil {
			err = errors.Join(err, expireErr)
		}
		if !errors.Is(err, domain.ErrSessionExpired) {
			err = fmt.Errorf("%w: %w", domain.ErrSessionExpired, err)
		}
	default:
		d.logger.Debug().Msg("token renewed")
	}

	d.mu.Lock()
	waiters := d.waiters
	d.waiters = nil
	d.renewing = false
	d.mu.Unlock()

	outcome := renewal{token: token, err: err}
	for _, wait := range waiters {
		wait <- outcome
	}
}

// Get, Post and Delete decode the response data envelope into out when out is
// non-nil.
func (d *Dispatcher) Get(ctx context.Context, path string, out any) error {
	c, err := newCall(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return d.do(ctx, c, out)
}

func (d *Dispatcher) Post(ctx context.Context, path string, payload any, out any, header http.Header) error {
	c, err := newCall(http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	for key, values := range header {
		c.header[key] = values
	}
	return d.do(ctx, c, out)
}

func (d *Dispatcher) Delete(ctx context.Context, path string) error {
	c, err := newCall(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	return d.do(ctx, c, nil)
}
