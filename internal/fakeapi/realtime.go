package fakeapi

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	eventCommentNew     = "comment:new"
	eventCommentDeleted = "comment:deleted"
	eventRoomError      = "room:error"
	commandJoin         = "room:join"
	commandLeave        = "room:leave"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type roomPayload struct {
	ResourceID domain.StoryID `json:"resourceId"`
}

type deletedPayload struct {
	CommentID domain.CommentID `json:"commentId"`
	StoryID   domain.StoryID   `json:"storyId"`
}

type errorPayload struct {
	Message    string         `json:"message"`
	ResourceID domain.StoryID `json:"resourceId,omitempty"`
}

type peer struct {
	conn    *websocket.Conn
	userID  domain.UserID
	writeMu sync.Mutex
	rooms   map[domain.StoryID]struct{}
}

func (p *peer) send(event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.WriteJSON(frame{Event: event, Data: raw})
}

func (s *Server) serveRealtime(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	reject := s.rejectHandshake
	s.mu.Unlock()
	if reject {
		writeError(w, http.StatusServiceUnavailable, "Realtime unavailable")
		return
	}

	header := r.Header.Get("Authorization")
	userID, err := s.authenticate(header)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Access token expired or invalid")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	p := &peer{conn: conn, userID: userID, rooms: map[domain.StoryID]struct{}{}}
	s.mu.Lock()
	s.conns[p] = struct{}{}
	s.handshakes = append(s.handshakes, strings.TrimPrefix(header, "Bearer "))
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, p)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		var in frame
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		var room roomPayload
		if err := json.Unmarshal(in.Data, &room); err != nil || room.ResourceID == "" {
			p.send(eventRoomError, errorPayload{Message: "Invalid room payload"})
			continue
		}

		switch in.Event {
		case commandJoin:
			s.mu.Lock()
			_, exists := s.stories[room.ResourceID]
			if exists {
				p.rooms[room.ResourceID] = struct{}{}
				s.joins = append(s.joins, room.ResourceID)
			}
			s.mu.Unlock()
			if !exists {
				p.send(eventRoomError, errorPayload{Message: "Story not found", ResourceID: room.ResourceID})
			}
		case commandLeave:
			s.mu.Lock()
			delete(p.rooms, room.ResourceID)
			s.mu.Unlock()
		default:
			p.send(eventRoomError, errorPayload{Message: "Unknown event " + in.Event})
		}
	}
}

func (s *Server) broadcast(storyID domain.StoryID, event string, data any) {
	s.mu.Lock()
	targets := make([]*peer, 0, len(s.conns))
	for p := range s.conns {
		if _, ok := p.rooms[storyID]; ok {
			targets = append(targets, p)
		}
	}
	s.mu.Unlock()

	for _, p := range targets {
		p.send(event, data)
	}
}

// RoomError sends a room:error to every member of storyID. An empty storyID
// sends one without a resource id to every connection.
func (s *Server) RoomError(storyID domain.StoryID, message string) {
	s.mu.Lock()
	targets := make([]*peer, 0, len(s.conns))
	for p := range s.conns {
		if _, ok := p.rooms[storyID]; ok || storyID == "" {
			targets = append(targets, p)
		}
	}
	s.mu.Unlock()

	for _, p := range targets {
		p.send(eventRoomError, errorPayload{Message: message, ResourceID: storyID})
	}
}

// Joins lists every accepted room:join in arrival order.
func (s *Server) Joins() []domain.StoryID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.joins)
}

// HandshakeTokens lists the access token of every accepted websocket, in
// order.
func (s *Server) HandshakeTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.handshakes)
}

// Members lists the rooms currently joined across all connections.
func (s *Server) Members() []domain.StoryID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StoryID
	for p := range s.conns {
		for id := range p.rooms {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// DropConnections closes every websocket from the server side.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := make([]*peer, 0, len(s.conns))
	for p := range s.conns {
		conns = append(conns, p)
	}
	s.mu.Unlock()

	for _, p := range conns {
		_ = p.conn.Close()
	}
}

// RejectHandshakes makes /ws answer 503 until called with false.
func (s *Server) RejectHandshakes(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectHandshake = reject
}
