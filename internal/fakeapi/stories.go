package fakeapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) getStory(w http.ResponseWriter, r *http.Request) {
	id := domain.StoryID(chi.URLParam(r, "id"))

	s.mu.Lock()
	story, ok := s.stories[id]
	var out domain.Story
	if ok {
		out = *story
		out.Comments = append([]domain.Comment{}, story.Comments...)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "Story not found")
		return
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	storyID := domain.StoryID(chi.URLParam(r, "id"))
	userID := userFromContext(r.Context())

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "Content is required")
		return
	}

	key := r.Header.Get("Idempotency-Key")
	s.mu.Lock()
	if key != "" {
		if existing, ok := s.idempotent[string(userID)+"/"+key]; ok {
			s.mu.Unlock()
			writeData(w, http.StatusCreated, existing)
			return
		}
	}
	story, ok := s.stories[storyID]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "Story not found")
		return
	}
	created := domain.Comment{
		ID:        domain.CommentID(uuid.NewString()),
		StoryID:   storyID,
		AuthorID:  userID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	story.Comments = append(story.Comments, created)
	if key != "" {
		s.idempotent[string(userID)+"/"+key] = created
	}
	s.mu.Unlock()

	s.broadcast(storyID, eventCommentNew, created)
	writeData(w, http.StatusCreated, created)
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	id := domain.CommentID(chi.URLParam(r, "id"))

	storyID, status := s.removeComment(id)
	switch status {
	case http.StatusNoContent:
		s.broadcast(storyID, eventCommentDeleted, deletedPayload{CommentID: id, StoryID: storyID})
		w.WriteHeader(http.StatusNoContent)
	case http.StatusGone:
		writeError(w, http.StatusGone, "Comment already deleted")
	default:
		writeError(w, http.StatusNotFound, "Comment not found")
	}
}

func (s *Server) removeComment(id domain.CommentID) (domain.StoryID, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, gone := s.deleted[id]; gone {
		return "", http.StatusGone
	}
	for storyID, story := range s.stories {
		for i, c := range story.Comments {
			if c.ID == id {
				story.Comments = append(story.Comments[:i:i], story.Comments[i+1:]...)
				s.deleted[id] = struct{}{}
				return storyID, http.StatusNoContent
			}
		}
	}
	return "", http.StatusNotFound
}

// PeerComment adds a comment as another user would, broadcasting it to the
// room.
func (s *Server) PeerComment(storyID domain.StoryID, authorID domain.UserID, content string) domain.Comment {
	created := domain.Comment{
		ID:        domain.CommentID(uuid.NewString()),
		StoryID:   storyID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	if story, ok := s.stories[storyID]; ok {
		story.Comments = append(story.Comments, created)
	}
	s.mu.Unlock()

	s.broadcast(storyID, eventCommentNew, created)
	return created
}

// PeerDelete removes a comment as another user would.
func (s *Server) PeerDelete(id domain.CommentID) bool {
	storyID, status := s.removeComment(id)
	if status != http.StatusNoContent {
		return false
	}
	s.broadcast(storyID, eventCommentDeleted, deletedPayload{CommentID: id, StoryID: storyID})
	return true
}

func (s *Server) registerPushToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceToken string `json:"deviceToken"`
		Platform    string `json:"platform"`
		DeviceInfo  string `json:"deviceInfo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceToken == "" || req.Platform == "" {
		writeError(w, http.StatusBadRequest, "deviceToken and platform are required")
		return
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.pushTokens[id] = domain.PushRegistration{DeviceToken: req.DeviceToken, Platform: req.Platform, DeviceInfo: req.DeviceInfo}
	s.mu.Unlock()

	writeData(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) removePushToken(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	_, ok := s.pushTokens[id]
	delete(s.pushTokens, id)
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "Push token not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
