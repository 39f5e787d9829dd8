package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/bnema/kintales-cli/internal/obs"
	"github.com/bnema/kintales-cli/internal/ports"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeTimeout            = 5 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
)

// SessionSource is what the manager needs from the session: the handshake
// credential and change notifications that drive the connection lifecycle.
type SessionSource interface {
	AccessToken() string
	Watch(fn func(domain.Session)) func()
}

type Config struct {
	URL               string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	ReconnectDelayMax time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = 10
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = time.Second
	}
	if c.ReconnectDelayMax < c.ReconnectDelay {
		c.ReconnectDelayMax = max(10*time.Second, c.ReconnectDelay)
	}
	return c
}

type Option func(*Manager)

func WithDialer(dialer *websocket.Dialer) Option {
	return func(m *Manager) {
		m.dialer = dialer
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(metrics *obs.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// Manager owns the single realtime connection of the process. The connection
// exists exactly while a session is present; memberships are re-asserted on
// every reconnection.
type Manager struct {
	cfg      Config
	sessions SessionSource
	dialer   *websocket.Dialer
	logger   zerolog.Logger
	metrics  *obs.Metrics

	mu           sync.Mutex
	state        domain.ChannelState
	conn         *websocket.Conn
	members      map[domain.StoryID]*subscription
	loopID       uint64
	cancel       context.CancelFunc
	loopDone     chan struct{}
	retry        bool
	listeners    map[int]func(domain.ChannelState)
	nextListener int
	shutdown     bool

	stopWatch func()
}

var _ ports.RoomChannel = (*Manager)(nil)

func NewManager(sessions SessionSource, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:       cfg.withDefaults(),
		sessions:  sessions,
		dialer:    &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout},
		logger:    zerolog.Nop(),
		state:     domain.ChannelAbsent,
		members:   map[domain.StoryID]*subscription{},
		listeners: map[int]func(domain.ChannelState){},
	}
	for _, opt := range opts {
		opt(m)
	}

	m.stopWatch = sessions.Watch(m.sessionChanged)
	if sessions.AccessToken() != "" {
		m.start()
	}

	return m
}

func (m *Manager) State() domain.ChannelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnStateChange registers fn for connectivity changes and returns a function
// that removes it.
func (m *Manager) OnStateChange(fn func(domain.ChannelState)) func() {
	m.mu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Memberships lists the rooms currently joined, sorted.
func (m *Manager) Memberships() []domain.StoryID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.StoryID, 0, len(m.members))
	for id := range m.members {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Join subscribes to a story room. Only one subscription per room may exist.
func (m *Manager) Join(storyID domain.StoryID) (ports.RoomSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown || m.state == domain.ChannelAbsent {
		return nil, domain.ErrNoSession
	}
	if _, ok := m.members[storyID]; ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRoomAlreadyObserved, storyID)
	}

	sub := newSubscription(m, storyID)
	m.members[storyID] = sub
	if m.conn != nil {
		m.writeLocked(commandJoin, storyID)
		sub.joined = true
	}

	return sub, nil
}

// Reconnect restarts the connection loop after it gave up.
func (m *Manager) Reconnect() {
	if m.sessions.AccessToken() == "" {
		return
	}
	m.start()
}

// Shutdown closes the connection, ends every subscription and stops
// following the session.
func (m *Manager) Shutdown() {
	m.stopWatch()

	m.mu.Lock()
	m.shutdown = true
	done := m.loopDone
	m.mu.Unlock()

	m.teardown()
	if done != nil {
		<-done
	}
}

func (m *Manager) sessionChanged(session domain.Session) {
	if session.Present() {
		m.start()
		return
	}
	m.teardown()
}

func (m *Manager) start() {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	if m.cancel != nil {
		m.retry = true
		m.mu.Unlock()
		return
	}
	m.retry = false

	ctx, cancel := context.WithCancel(context.Background())
	m.loopID++
	id := m.loopID
	m.cancel = cancel
	done := make(chan struct{})
	m.loopDone = done
	from, changed := m.transitionLocked(domain.ChannelConnecting)
	m.mu.Unlock()

	m.publish(from, domain.ChannelConnecting, changed)
	go m.run(ctx, id, done)
}

func (m *Manager) teardown() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	conn := m.conn
	m.conn = nil
	members := m.members
	m.members = map[domain.StoryID]*subscription{}
	from, changed := m.transitionLocked(domain.ChannelAbsent)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	for _, sub := range members {
		sub.finish()
	}
	m.publish(from, domain.ChannelAbsent, changed)
}

func (m *Manager) run(ctx context.Context, id uint64, done chan struct{}) {
	defer close(done)
	defer m.loopExited(id)

	failures := 0
	delay := m.cfg.ReconnectDelay
	for {
		m.setState(ctx, domain.ChannelConnecting)

		conn, err := m.dial(ctx)
		m.metrics.ChannelDialed(err)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			m.logger.Debug().Err(err).Int("attempt", failures).Msg("realtime connect failed")
			m.setState(ctx, domain.ChannelDisconnected)
			if failures >= m.cfg.ReconnectAttempts {
				if m.giveUp(id) {
					m.logger.Warn().Int("attempts", failures).Msg("realtime reconnect gave up")
					return
				}
				failures = 0
				delay = m.cfg.ReconnectDelay
			}
			if !sleep(ctx, delay) {
				return
			}
			delay = min(delay*2, m.cfg.ReconnectDelayMax)
			continue
		}

		failures = 0
		delay = m.cfg.ReconnectDelay
		if !m.attach(ctx, conn) {
			_ = conn.Close()
			return
		}
		m.readLoop(conn)
		m.detach(conn)

		if ctx.Err() != nil {
			return
		}
		m.setState(ctx, domain.ChannelDisconnected)
	}
}

// giveUp ends loop id unless a start arrived since it last connected, in
// which case the loop owes another round of attempts.
func (m *Manager) giveUp(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loopID != id {
		return true
	}
	if m.retry {
		m.retry = false
		return false
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	return true
}

func (m *Manager) loopExited(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loopID == id && m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	token := m.sessions.AccessToken()
	if token == "" {
		return nil, domain.ErrNoSession
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := m.dialer.DialContext(ctx, m.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("realtime handshake rejected with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial realtime: %w", err)
	}

	return conn, nil
}

// attach installs conn and re-sends room:join for every membership under the
// same lock that guards Join and leave.
func (m *Manager) attach(ctx context.Context, conn *websocket.Conn) bool {
	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		return false
	}

	m.conn = conn
	m.retry = false
	var resubscribed []*subscription
	for storyID, sub := range m.members {
		m.writeLocked(commandJoin, storyID)
		if sub.joined {
			resubscribed = append(resubscribed, sub)
		}
		sub.joined = true
	}
	rooms := len(m.members)
	from, changed := m.transitionLocked(domain.ChannelConnected)
	m.mu.Unlock()

	m.logger.Debug().Int("rooms", rooms).Msg("realtime connected")
	m.publish(from, domain.ChannelConnected, changed)
	for _, sub := range resubscribed {
		sub.deliver(domain.RoomEvent{Kind: domain.RoomEventResubscribed, StoryID: sub.storyID})
	}

	return true
}

func (m *Manager) detach(conn *websocket.Conn) {
	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
	}
	m.mu.Unlock()
	_ = conn.Close()
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		var in frame
		if err := conn.ReadJSON(&in); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				m.logger.Debug().Err(err).Msg("realtime read ended")
			}
			return
		}

		event, ok, err := decodeEvent(in)
		if err != nil {
			m.logger.Debug().Err(err).Msg("dropping malformed realtime frame")
			continue
		}
		if ok {
			m.route(event)
		}
	}
}

func (m *Manager) route(event domain.RoomEvent) {
	m.mu.Lock()
	var targets []*subscription
	if event.Kind == domain.RoomEventError && event.StoryID == "" {
		for _, sub := range m.members {
			targets = append(targets, sub)
		}
	} else if sub, ok := m.members[event.StoryID]; ok {
		targets = append(targets, sub)
	}
	m.mu.Unlock()

	if len(targets) == 0 {
		m.metrics.RoomEvent(string(event.Kind), false)
		return
	}
	for _, sub := range targets {
		delivered := event
		delivered.StoryID = sub.storyID
		sub.deliver(delivered)
	}
}

func (m *Manager) leave(sub *subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.members[sub.storyID] != sub {
		return nil
	}
	delete(m.members, sub.storyID)
	if m.conn != nil {
		m.writeLocked(commandLeave, sub.storyID)
	}
	return nil
}

// writeLocked must be called with m.mu held, which also makes it the only
// writer on the connection. A failed write is left to the read loop, which
// sees the broken connection and reconnects.
func (m *Manager) writeLocked(command string, storyID domain.StoryID) {
	f, err := encodeCommand(command, storyID)
	if err != nil {
		m.logger.Debug().Err(err).Msg("encode realtime command")
		return
	}

	_ = m.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := m.conn.WriteJSON(f); err != nil {
		m.logger.Debug().Err(err).Str("command", command).Str("story_id", string(storyID)).Msg("realtime write failed")
	}
}

func (m *Manager) setState(ctx context.Context, to domain.ChannelState) {
	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	from, changed := m.transitionLocked(to)
	m.mu.Unlock()

	m.publish(from, to, changed)
}

func (m *Manager) transitionLocked(to domain.ChannelState) (domain.ChannelState, bool) {
	from := m.state
	m.state = to
	return from, from != to
}

func (m *Manager) publish(from, to domain.ChannelState, changed bool) {
	if !changed {
		return
	}
	m.metrics.ChannelStateChanged(string(from), string(to))

	m.mu.Lock()
	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(domain.ChannelState), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.listeners[id])
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(to)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
