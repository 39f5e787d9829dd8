// Package fakeapi is an in-memory KinTales backend for tests. It speaks the
// same REST envelope and websocket room protocol as the real service and
// exposes hooks to force token expiry, refresh failures and dropped
// connections.
package fakeapi

import (
	"crypto/rand"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

type account struct {
	user     domain.User
	password string
}

type Server struct {
	router    chi.Router
	secret    []byte
	accessTTL time.Duration
	limiter   *rate.Limiter
	upgrader  websocket.Upgrader

	mu              sync.Mutex
	accounts        map[string]*account
	refreshTokens   map[string]domain.UserID
	epoch           int
	refreshCount    int
	refreshDelay    time.Duration
	failRefresh     bool
	stories         map[domain.StoryID]*domain.Story
	deleted         map[domain.CommentID]struct{}
	idempotent      map[string]domain.Comment
	pushTokens      map[string]domain.PushRegistration
	rejectHandshake bool
	conns           map[*peer]struct{}
	joins           []domain.StoryID
	handshakes      []string
	requests        map[string]int
}

type Option func(*Server)

// WithLoginRate limits login attempts; exceeding it yields 429.
func WithLoginRate(limit rate.Limit, burst int) Option {
	return func(s *Server) {
		s.limiter = rate.NewLimiter(limit, burst)
	}
}

func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

func New(opts ...Option) *Server {
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)

	s := &Server{
		secret:        secret,
		accessTTL:     15 * time.Minute,
		limiter:       rate.NewLimiter(rate.Inf, 0),
		accounts:      map[string]*account{},
		refreshTokens: map[string]domain.UserID{},
		stories:       map[domain.StoryID]*domain.Story{},
		deleted:       map[domain.CommentID]struct{}{},
		idempotent:    map[string]domain.Comment{},
		pushTokens:    map[string]domain.PushRegistration{},
		conns:         map[*peer]struct{}{},
		requests:      map[string]int{},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.countRequests)

	r.Post("/api/auth/login", s.login)
	r.Post("/api/auth/register", s.register)
	r.Post("/api/auth/refresh", s.refresh)
	r.Post("/api/auth/logout", s.logout)
	r.Get("/ws", s.serveRealtime)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/api/profile", s.profile)
		r.Get("/api/stories/{id}", s.getStory)
		r.Post("/api/stories/{id}/comments", s.createComment)
		r.Delete("/api/comments/{id}", s.deleteComment)
		r.Post("/api/notifications/push-tokens", s.registerPushToken)
		r.Delete("/api/notifications/push-tokens/{id}", s.removePushToken)
	})
	s.router = r

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// AddUser creates an account that can log in.
func (s *Server) AddUser(user domain.User, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[user.Email] = &account{user: user, password: password}
}

// SeedStory installs a story with its initial comments.
func (s *Server) SeedStory(story domain.Story) {
	s.mu.Lock()
	defer s.mu.Unlock()
	comments := append([]domain.Comment(nil), story.Comments...)
	story.Comments = comments
	s.stories[story.ID] = &story
}

// ExpireAccessTokens invalidates every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
}

func (s *Server) FailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

// SetRefreshDelay slows every refresh exchange down by d.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

func (s *Server) RefreshCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCount
}

// Requests reports how often "METHOD /path" was served.
func (s *Server) Requests(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[key]
}

func (s *Server) Comments(id domain.StoryID) []domain.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, ok := s.stories[id]
	if !ok {
		return nil
	}
	return append([]domain.Comment(nil), story.Comments...)
}

func (s *Server) PushTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pushTokens)
}

type dataEnvelope struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dataEnvelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	var env errorEnvelope
	env.Error.Message = message
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
