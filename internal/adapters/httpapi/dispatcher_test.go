package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/bnema/kintales-cli/internal/obs"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type fakeTokens struct {
	mu      sync.Mutex
	token   string
	next    string
	err     error
	gate    chan struct{}
	renews  atomic.Int32
	expires atomic.Int32
}

func (f *fakeTokens) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeTokens) Renew(context.Context) (string, error) {
	f.renews.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = f.next
	return f.next, nil
}

func (f *fakeTokens) Expire(context.Context) error {
	f.expires.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	return nil
}

// profileServer accepts only "Bearer <valid>" and counts rejections.
func profileServer(t *testing.T, valid string, rejected *atomic.Int32) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+valid {
			rejected.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Access token expired"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":"u1","email":"ada@example.com","fullName":"Ada"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDispatcherConcurrentExpiryRenewsOnce(t *testing.T) {
	const callers = 8

	var rejected atomic.Int32
	srv := profileServer(t, "fresh", &rejected)
	tokens := &fakeTokens{token: "stale", next: "fresh", gate: make(chan struct{})}
	metrics := obs.NewMetrics()
	client := NewClient(NewDispatcher(srv.URL, tokens, WithMetrics(metrics)))

	go func() {
		assert.Eventually(t, func() bool { return rejected.Load() == callers }, 2*time.Second, time.Millisecond)
		close(tokens.gate)
	}()

	var group errgroup.Group
	for range callers {
		group.Go(func() error {
			user, err := client.GetProfile(context.Background())
			if err != nil {
				return err
			}
			if user.ID != "u1" {
				return errors.New("unexpected user")
			}
			return nil
		})
	}

	require.NoError(t, group.Wait())
	assert.Equal(t, int32(1), tokens.renews.Load())
	assert.Equal(t, int32(0), tokens.expires.Load())
	assert.Equal(t, float64(callers), testutil.ToFloat64(metrics.Replays))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Renewals.WithLabelValues("success")))
}

func TestDispatcherFailedRenewalRejectsEveryCallerIdentically(t *testing.T) {
	const callers = 6

	var rejected atomic.Int32
	srv := profileServer(t, "fresh", &rejected)
	tokens := &fakeTokens{
		token: "stale",
		err:   &domain.APIError{Kind: domain.ErrUnauthorized, Status: 401},
		gate:  make(chan struct{}),
	}
	client := NewClient(NewDispatcher(srv.URL, tokens))

	go func() {
		assert.Eventually(t, func() bool { return rejected.Load() == callers }, 2*time.Second, time.Millisecond)
		close(tokens.gate)
	}()

	errs := make([]error, callers)
	var group errgroup.Group
	for i := range callers {
		group.Go(func() error {
			_, errs[i] = client.GetProfile(context.Background())
			return nil
		})
	}
	require.NoError(t, group.Wait())

	for _, err := range errs {
		require.ErrorIs(t, err, domain.ErrSessionExpired)
	}
	assert.Equal(t, int32(1), tokens.renews.Load())
	assert.Equal(t, int32(1), tokens.expires.Load())
	assert.Equal(t, int32(callers), rejected.Load())
}

func TestDispatcherSupersededRenewalKeepsNewSession(t *testing.T) {
	var rejected atomic.Int32
	srv := profileServer(t, "fresh", &rejected)
	tokens := &fakeTokens{token: "stale", err: domain.ErrSessionSuperseded}
	client := NewClient(NewDispatcher(srv.URL, tokens))

	_, err := client.GetProfile(context.Background())
	require.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.ErrorIs(t, err, domain.ErrSessionSuperseded)
	assert.Equal(t, int32(1), tokens.renews.Load())
	assert.Equal(t, int32(0), tokens.expires.Load())
	assert.Equal(t, "stale", tokens.AccessToken())
}

func TestDispatcherReplayRejectedAgainIsUnauthorized(t *testing.T) {
	var rejected atomic.Int32
	srv := profileServer(t, "never", &rejected)
	tokens := &fakeTokens{token: "stale", next: "fresh"}
	client := NewClient(NewDispatcher(srv.URL, tokens))

	_, err := client.GetProfile(context.Background())
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.NotErrorIs(t, err, domain.ErrSessionExpired)
	assert.Equal(t, int32(2), rejected.Load())
	assert.Equal(t, int32(1), tokens.renews.Load())
	assert.Equal(t, "fresh", tokens.AccessToken())
}

func TestDispatcherReplaysWithNewerTokenWithoutRenewing(t *testing.T) {
	var rejected atomic.Int32
	srv := profileServer(t, "fresh", &rejected)
	tokens := &fakeTokens{token: "stale"}
	dispatcher := NewDispatcher(srv.URL, tokens)

	token, err := dispatcher.awaitToken(context.Background(), "older")
	require.NoError(t, err)
	assert.Equal(t, "stale", token)
	assert.Equal(t, int32(0), tokens.renews.Load())
}

func TestDispatcherRefreshPathIsNeverRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	tokens := &fakeTokens{token: "stale", next: "fresh"}
	dispatcher := NewDispatcher(srv.URL, tokens)

	err := dispatcher.Post(context.Background(), refreshPath, map[string]string{"refreshToken": "r"}, nil, nil)
	require.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, int32(0), tokens.renews.Load())
	assert.Equal(t, int32(1), tokens.expires.Load())
}

func TestDispatcherWithoutSessionDoesNotRenew(t *testing.T) {
	var rejected atomic.Int32
	srv := profileServer(t, "fresh", &rejected)
	tokens := &fakeTokens{}
	client := NewClient(NewDispatcher(srv.URL, tokens))

	_, err := client.GetProfile(context.Background())
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, int32(0), tokens.renews.Load())
}

func TestDispatcherParkedCallerCanGiveUp(t *testing.T) {
	var rejected atomic.Int32
	srv := profileServer(t, "fresh", &rejected)
	tokens := &fakeTokens{token: "stale", next: "fresh", gate: make(chan struct{})}
	client := NewClient(NewDispatcher(srv.URL, tokens))
	t.Cleanup(func() { close(tokens.gate) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.GetProfile(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatcherTransportFailureIsNetworkUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewClient(NewDispatcher(srv.URL, &fakeTokens{token: "t"}))

	_, err := client.GetProfile(context.Background())
	require.ErrorIs(t, err, domain.ErrNetworkUnavailable)
}
