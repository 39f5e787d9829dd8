package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/bnema/kintales-cli/internal/obs"
	"github.com/bnema/kintales-cli/internal/ports"
	"github.com/rs/zerolog"
)

const resyncTimeout = 15 * time.Second

type RoomOptions struct {
	// OnChange receives a copy of the collection after every local change.
	OnChange func([]domain.Comment)
	// OnError receives errors wrapping domain.ErrRoomError and failed resyncs.
	OnError           func(error)
	ResyncOnReconnect bool
	Logger            zerolog.Logger
	Metrics           *obs.Metrics
}

// CommentRoom keeps the comments of one story consistent with the server feed.
// One goroutine consumes the room subscription; local mutations and feed
// events go through the same mutex-guarded reducer.
type CommentRoom struct {
	storyID domain.StoryID
	stories ports.StoryAPI
	channel ports.RoomChannel
	opts    RoomOptions

	mu           sync.Mutex
	comments     domain.CommentList
	active       bool
	sub          ports.RoomSubscription
	resyncing    bool
	resyncAgain  bool
	cancelResync context.CancelFunc
}

func NewCommentRoom(storyID domain.StoryID, stories ports.StoryAPI, channel ports.RoomChannel, opts RoomOptions) *CommentRoom {
	return &CommentRoom{
		storyID: storyID,
		stories: stories,
		channel: channel,
		opts:    opts,
	}
}

// WithCommentRoom activates a room for the duration of fn and releases it on
// every exit path.
func WithCommentRoom(ctx context.Context, storyID domain.StoryID, stories ports.StoryAPI, channel ports.RoomChannel, opts RoomOptions, fn func(*CommentRoom) error) (err error) {
	room := NewCommentRoom(storyID, stories, channel, opts)
	if err := room.Activate(ctx); err != nil {
		return err
	}
	defer func() {
		if closeErr := room.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close room: %w", closeErr))
		}
	}()

	return fn(room)
}

func (r *CommentRoom) StoryID() domain.StoryID {
	return r.storyID
}

// Activate seeds the collection from the story and joins its room.
func (r *CommentRoom) Activate(ctx context.Context) error {
	r.mu.Lock()
	active := r.active
	r.mu.Unlock()
	if active {
		return nil
	}

	story, err := r.stories.GetStory(ctx, r.storyID)
	if err != nil {
		return fmt.Errorf("load story %s: %w", r.storyID, err)
	}

	sub, err := r.channel.Join(r.storyID)
	if err != nil {
		return fmt.Errorf("join room %s: %w", r.storyID, err)
	}

	r.mu.Lock()
	r.comments = domain.NewCommentList(story.Comments)
	r.active = true
	r.sub = sub
	items := r.comments.Items()
	r.mu.Unlock()

	go r.consume(sub)

	r.changed(items)
	return nil
}

// Close leaves the room. Calling it again is a no-op.
func (r *CommentRoom) Close() error {
	r.mu.Lock()
	sub := r.sub
	r.active = false
	r.sub = nil
	cancelResync := r.cancelResync
	r.mu.Unlock()

	if cancelResync != nil {
		cancelResync()
	}

	if sub == nil {
		return nil
	}
	return sub.Close()
}

func (r *CommentRoom) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *CommentRoom) Comments() []domain.Comment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.comments.Items()
}

// AddComment creates a comment and appends it once the server confirms it.
// A peer echo that already delivered the comment makes the append a no-op.
func (r *CommentRoom) AddComment(ctx context.Context, content string) (domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Comment{}, domain.ErrEmptyComment
	}

	created, err := r.stories.CreateComment(ctx, r.storyID, content)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("create comment: %w", err)
	}

	r.mu.Lock()
	appended := r.comments.Append(created)
	items := r.comments.Items()
	r.mu.Unlock()

	if appended {
		r.changed(items)
	}
	return created, nil
}

// DeleteComment removes the comment optimistically. A conflict means someone
// else already deleted it and counts as success; any other failure rolls the
// collection back before the error is returned.
func (r *CommentRoom) DeleteComment(ctx context.Context, id domain.CommentID) error {
	snapshot := r.applyOptimisticDelete(id)

	err := r.stories.DeleteComment(ctx, id)
	if err == nil || errors.Is(err, domain.ErrConflictOnWrite) {
		return nil
	}

	r.rollback(ctx, snapshot)
	return fmt.Errorf("delete comment %s: %w", id, err)
}

// Refresh replaces the collection with the server state.
func (r *CommentRoom) Refresh(ctx context.Context) error {
	story, err := r.stories.GetStory(ctx, r.storyID)
	if err != nil {
		return fmt.Errorf("refresh story %s: %w", r.storyID, err)
	}

	r.mu.Lock()
	r.comments.Replace(story.Comments)
	items := r.comments.Items()
	r.mu.Unlock()

	r.changed(items)
	return nil
}

func (r *CommentRoom) applyOptimisticDelete(id domain.CommentID) domain.CommentList {
	r.mu.Lock()
	snapshot := r.comments.Clone()
	removed := r.comments.Remove(id)
	items := r.comments.Items()
	r.mu.Unlock()

	if removed {
		r.changed(items)
	}
	return snapshot
}

func (r *CommentRoom) rollback(ctx context.Context, snapshot domain.CommentList) {
	err := r.Refresh(ctx)
	if err == nil {
		r.opts.Metrics.RolledBack("refetch")
		return
	}
	r.opts.Logger.Debug().Err(err).Str("story_id", string(r.storyID)).Msg("rollback refetch failed, restoring snapshot")

	r.mu.Lock()
	r.comments = snapshot
	items := r.comments.Items()
	r.mu.Unlock()

	r.opts.Metrics.RolledBack("snapshot")
	r.changed(items)
}

func (r *CommentRoom) consume(sub ports.RoomSubscription) {
	for event := range sub.Events() {
		r.handle(sub, event)
	}

	r.mu.Lock()
	if r.sub == sub {
		r.sub = nil
		r.active = false
	}
	r.mu.Unlock()
}

func (r *CommentRoom) handle(sub ports.RoomSubscription, event domain.RoomEvent) {
	r.mu.Lock()
	if !r.active || r.sub != sub {
		r.mu.Unlock()
		r.opts.Metrics.RoomEvent(string(event.Kind), false)
		return
	}

	var (
		applied bool
		items   []domain.Comment
	)
	switch event.Kind {
	case domain.RoomEventCommentCreated:
		applied = r.comments.Append(event.Comment)
	case domain.RoomEventCommentDeleted:
		applied = r.comments.Remove(event.CommentID)
	}
	if applied {
		items = r.comments.Items()
	}
	r.mu.Unlock()

	switch event.Kind {
	case domain.RoomEventError:
		applied = true
		r.failed(fmt.Errorf("%w: %s", domain.ErrRoomError, event.Message))
	case domain.RoomEventResubscribed:
		applied = r.opts.ResyncOnReconnect
		if applied {
			r.resync()
		}
	}

	r.opts.Metrics.RoomEvent(string(event.Kind), applied)
	if items != nil {
		r.changed(items)
	}
}

// resync refetches the story off the feed goroutine. Requests that arrive
// while one is running collapse into a single follow-up.
func (r *CommentRoom) resync() {
	r.mu.Lock()
	if r.resyncing {
		r.resyncAgain = true
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.resyncing = true
	r.cancelResync = cancel
	r.mu.Unlock()

	go func() {
		defer cancel()
		for {
			refreshCtx, done := context.WithTimeout(ctx, resyncTimeout)
			err := r.Refresh(refreshCtx)
			done()
			if err != nil && ctx.Err() == nil {
				r.failed(err)
			}

			r.mu.Lock()
			again := r.resyncAgain && r.active && ctx.Err() == nil
			r.resyncAgain = false
			if !again {
				r.resyncing = false
				r.cancelResync = nil
				r.mu.Unlock()
				return
			}
			r.mu.Unlock()
		}
	}()
}

func (r *CommentRoom) changed(items []domain.Comment) {
	if r.opts.OnChange != nil {
		r.opts.OnChange(items)
	}
}

func (r *CommentRoom) failed(err error) {
	r.opts.Logger.Debug().Err(err).Str("story_id", string(r.storyID)).Msg("room error")
	if r.opts.OnError != nil {
		r.opts.OnError(err)
	}
}
