package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/bnema/kintales-cli/internal/obs"
	"github.com/bnema/kintales-cli/internal/ports/mocks"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storyID domain.StoryID = "story-1"

func roomComment(id string) domain.Comment {
	return domain.Comment{ID: domain.CommentID(id), StoryID: storyID, AuthorID: "u1", Content: "text " + id}
}

func commentIDs(comments []domain.Comment) []domain.CommentID {
	out := make([]domain.CommentID, 0, len(comments))
	for _, c := range comments {
		out = append(out, c.ID)
	}
	return out
}

type roomFixture struct {
	room    *CommentRoom
	stories *mocks.MockStoryAPI
	channel *fakeChannel
	metrics *obs.Metrics

	mu     sync.Mutex
	errors []error
}

func newRoomFixture(t *testing.T, seed []domain.Comment, opts RoomOptions) *roomFixture {
	t.Helper()

	f := &roomFixture{
		stories: mocks.NewMockStoryAPI(t),
		channel: &fakeChannel{},
		metrics: obs.NewMetrics(),
	}
	opts.Metrics = f.metrics
	opts.OnError = func(err error) {
		f.mu.Lock()
		f.errors = append(f.errors, err)
		f.mu.Unlock()
	}
	f.room = NewCommentRoom(storyID, f.stories, f.channel, opts)

	f.stories.EXPECT().GetStory(mockAnyContext(), storyID).Return(domain.Story{ID: storyID, Comments: seed}, nil).Once()
	require.NoError(t, f.room.Activate(context.Background()))
	t.Cleanup(func() { _ = f.room.Close() })

	return f
}

func (f *roomFixture) send(event domain.RoomEvent) {
	event.StoryID = storyID
	f.channel.last().events <- event
}

func (f *roomFixture) reportedErrors() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.errors...)
}

func (f *roomFixture) waitFor(t *testing.T, want []domain.CommentID) {
	t.Helper()
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, commentIDs(f.room.Comments()))
	}, time.Second, 5*time.Millisecond)
}

func TestCommentRoomActivateSeedsAndJoins(t *testing.T) {
	var changes [][]domain.Comment
	f := newRoomFixture(t, []domain.Comment{roomComment("c1"), roomComment("c2")}, RoomOptions{
		OnChange: func(items []domain.Comment) { changes = append(changes, items) },
	})

	assert.True(t, f.room.Active())
	assert.Equal(t, []domain.StoryID{storyID}, f.channel.joins)
	assert.Equal(t, []domain.CommentID{"c1", "c2"}, commentIDs(f.room.Comments()))
	require.Len(t, changes, 1)
}

func TestCommentRoomActivateFailureDoesNotJoin(t *testing.T) {
	stories := mocks.NewMockStoryAPI(t)
	channel := &fakeChannel{}
	room := NewCommentRoom(storyID, stories, channel, RoomOptions{})
	stories.EXPECT().GetStory(mockAnyContext(), storyID).Return(domain.Story{}, domain.ErrNotFound).Once()

	err := room.Activate(context.Background())
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, channel.joins)
	assert.False(t, room.Active())
}

func TestCommentRoomActivateReportsJoinFailure(t *testing.T) {
	stories := mocks.NewMockStoryAPI(t)
	channel := &fakeChannel{err: domain.ErrRoomAlreadyObserved}
	room := NewCommentRoom(storyID, stories, channel, RoomOptions{})
	stories.EXPECT().GetStory(mockAnyContext(), storyID).Return(domain.Story{ID: storyID}, nil).Once()

	err := room.Activate(context.Background())
	require.ErrorIs(t, err, domain.ErrRoomAlreadyObserved)
	assert.False(t, room.Active())
}

func TestCommentRoomAddCommentRejectsBlankContent(t *testing.T) {
	f := newRoomFixture(t, nil, RoomOptions{})

	_, err := f.room.AddComment(context.Background(), "   \n\t")
	require.ErrorIs(t, err, domain.ErrEmptyComment)
}

func TestCommentRoomAddCommentTrimsAndAppendsOnConfirmation(t *testing.T) {
	f := newRoomFixture(t, []domain.Comment{roomComment("c1")}, RoomOptions{})
	f.stories.EXPECT().CreateComment(mockAnyContext(), storyID, "hello").Return(roomComment("c2"), nil).Once()

	created, err := f.room.AddComment(context.Background(), "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, domain.CommentID("c2"), created.ID)
	assert.Equal(t, []domain.CommentID{"c1", "c2"}, commentIDs(f.room.Comments()))
}

func TestCommentRoomOwnCreateAndPeerEchoProduceOneEntry(t *testing.T) {
	f := newRoomFixture(t, nil, RoomOptions{})
	f.stories.EXPECT().CreateComment(mockAnyContext(), storyID, "hello").Return(roomComment("c1"), nil).Once()

	_, err := f.room.AddComment(context.Background(), "hello")
	require.NoError(t, err)

	f.send(domain.RoomEvent{Kind: domain.RoomEventCommentCreated, Comment: roomComment("c1")})
	f.send(domain.RoomEvent{Kind: domain.RoomEventCommentCreated, Comment: roomComment("c2")})

	f.waitFor(t, []domain.CommentID{"c1", "c2"})
}

func TestCommentRoomPeerEchoBeforeConfirmationProducesOneEntry(t *testing.T) {
	f := newRoomFixture(t, nil, RoomOptions{})
	f.stories.EXPECT().CreateComment(mockAnyContext(), storyID, "hello").RunAndReturn(
		func(context.Context, domain.StoryID, string) (domain.Comment, error) {
			f.send(domain.RoomEvent{Kind: domain.RoomEventCommentCreated, Comment: roomComment("c1")})
			f.waitFor(t, []domain.CommentID{"c1"})
			return roomComment("c1"), nil
		}).Once()

	_, err := f.room.AddComment(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []domain.CommentID{"c1"}, commentIDs(f.room.Comments()))
}

func TestCommentRoomOfflineCreateLeavesCollectionUntouched(t *testing.T) {
	f := newRoomFixture(t, []domain.Comment{roomComment("c1")}, RoomOptions{})
	f.stories.EXPECT().CreateComment(mockAnyContext(), storyID, "hello").Return(domain.Comment{}, domain.ErrNetworkUnavailable).Twice()

	for range 2 {
		_, err := f.room.AddComment(context.Background(), "hello")
		require.ErrorIs(t, err, domain.ErrNetworkUnavailable)
	}
	assert.Equal(t, []domain.CommentID{"c1"}, commentIDs(f.room.Comments()))
}

func TestCommentRoomDeleteRemovesBeforeRequest(t *testing.T) {
	f := newRoomFixture(t, []domain.Comment{roomComment("c1"), roomComment("c2")}, RoomOptions{})
	f.stories.EXPECT().DeleteComment(mockAnyContext(), domain.CommentID("c1")).RunAndReturn(
		func(context.Context, domain.CommentID) error {
			assert.Equal(t, []domain.CommentID{"c2"}, commentIDs(f.room.Comments()))
			return nil
		}).Once()

	require.NoError(t, f.room.DeleteComment(context.Background(), "c1"))
	assert.Equal(t, []domain.CommentID{"c2"}, commentIDs(f.room.Comments()))
}

func TestCommentRoomDeleteIsIdempotent(t *testing.T) {
	f := newRoomFixture(t, []domain.Comment{roomComment("c1"), roomComment("c2")}, RoomOptions{})
	f.stories.EXPECT().DeleteComment(mockAnyContext(), domain.CommentID("c1")).Return(nil).Once()
	f.stories.EXPECT().DeleteComment(mockAnyContext(), domain.CommentID("c1")).
		Return(&domain.APIError{Kind: domain.ErrConflictOnWrite, Status: 409}).Once()

	require.NoError(t, f.room.DeleteComment(context.Background(), "c1"))
	require.NoError(t, f.room.DeleteComment(context.Background(), "c1"))
	assert.Equal(t, []domain.CommentID{"c2"}, commentIDs(f.room.Comments()))
}

func TestCommentRoomDeleteFailureRollsBackToAuthoritativeState(t *testing.T) {
	f := newRoomFixture(t, []domain.Comment{roomComment("c1"), roomComment("c2")}, RoomOptions{})
	f.stories.EXPECT().DeleteComment(mockAnyContext(), domain.CommentID("c1")).Return(domain.ErrServerError).Once()
	f.stories.EXPECT().GetStory(mockAnyContext(), storyID).Return(domain.Story{
		ID:       storyID,
		Comments: []domain.Comment{roomComment("c1"), roomComment("c2"), roomComment("c3")},
	}, nil).Once()

	err := f.room.DeleteComment(context.Background(), "c1")
	require.ErrorIs(t, err, domain.ErrServerError)
	assert.Equal(t, []domain.CommentID{"c1", "c2", "c3"}, commentIDs(f.room.Comments()))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Rollbacks.WithLabelValues("refetch")))
}

func TestCommentRoomDeleteRollbackRestoresExactSnapshotWhenRefetchFails(t *testing.T) {
	seed := []domain.Comment{roomComment("c1"), roomComment("c2"), roomComment("c3")}
	f := newRoomFixture(t, seed, RoomOptions{})
	f.stories.EXPECT().DeleteComment(mockAnyContext(), domain.CommentID("c2")).Return(domain.ErrNetworkUnavailable).Once()
	f.stories.EXPECT().GetStory(mockAnyContext(), storyID).Return(domain.Story{}, domain.ErrNetworkUnavailable).Once()

	err := f.room.DeleteComment(context.Background(), "c2")
	require.ErrorIs(t, err, domain.ErrNetworkUnavailable)
	assert.Equal(t, seed, f.room.Comments())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Rollbacks.WithLabelValues("snapshot")))
}

func TestCommentRoomPeerDeleteTombstonesID(t *testing.T) {
	f := newRoomFixture(t, []domain.Comment{roomComment("c1"), roomComment("c2")}, RoomOptions{})

	f.send(domain.RoomEvent{Kind: domain.RoomEventCommentDeleted, CommentID: "c1"})
	f.send(domain.RoomEvent{Kind: domain.RoomEventCommentDeleted, CommentID: "c1"})
	f.send(domain.RoomEvent{Kind: domain.RoomEventCommentCreated, Comment: roomComment("c1")})
	f.send(domain.RoomEvent{Kind: domain.RoomEventCommentCreated, Comment: roomComment("c3")})

	f.waitFor(t, []domain.CommentID{"c2", "c3"})
}

func TestCommentRoomRoomErrorIsReportedWithoutTouchingState(t *testing.T) {
	f := newRoomFixture(t, []domain.Comment{roomComment("c1")}, RoomOptions{})

	f.send(domain.RoomEvent{Kind: domain.RoomEventError, Message: "Access denied"})

	require.Eventually(t, func() bool { return len(f.reportedErrors()) == 1 }, time.Second, 5*time.Millisecond)
	err := f.reportedErrors()[0]
	assert.ErrorIs(t, err, domain.ErrRoomError)
	assert.ErrorContains(t, err, "Access denied")
	assert.Equal(t, []domain.CommentID{"c1"}, commentIDs(f.room.Comments()))
}

func TestCommentRoomResyncsAfterResubscribe(t *testing.T) {
	f := newRoomFixture(t, []domain.Comment{roomComment("c1")}, RoomOptions{ResyncOnReconnect: true})
	f.stories.EXPECT().GetStory(mockAnyContext(), storyID).Return(domain.Story{
		ID:       storyID,
		Comments: []domain.Comment{roomComment("c1"), roomComment("c9")},
	}, nil).Once()

	f.send(domain.RoomEvent{Kind: domain.RoomEventResubscribed})

	f.waitFor(t, []domain.CommentID{"c1", "c9"})
}

func TestCommentRoomResyncKeepsFeedFlowingAndCollapsesRepeats(t *testing.T) {
	f := newRoomFixture(t, []domain.Comment{roomComment("c1")}, RoomOptions{ResyncOnReconnect: true})
	release := make(chan struct{})
	var calls atomic.Int32
	f.stories.EXPECT().GetStory(mockAnyContext(), storyID).RunAndReturn(func(context.Context, domain.StoryID) (domain.Story, error) {
		if calls.Add(1) == 1 {
			<-release
		}
		return domain.Story{
			ID:       storyID,
			Comments: []domain.Comment{roomComment("c1"), roomComment("c2"), roomComment("c9")},
		}, nil
	}).Times(2)

	f.send(domain.RoomEvent{Kind: domain.RoomEventResubscribed})
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	f.send(domain.RoomEvent{Kind: domain.RoomEventResubscribed})
	f.send(domain.RoomEvent{Kind: domain.RoomEventResubscribed})
	f.send(domain.RoomEvent{Kind: domain.RoomEventCommentCreated, Comment: roomComment("c2")})
	f.waitFor(t, []domain.CommentID{"c1", "c2"})

	close(release)
	f.waitFor(t, []domain.CommentID{"c1", "c2", "c9"})
	require.Eventually(t, func() bool {
		f.room.mu.Lock()
		defer f.room.mu.Unlock()
		return !f.room.resyncing
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCommentRoomDiscardsEventsAfterClose(t *testing.T) {
	f := newRoomFixture(t, []domain.Comment{roomComment("c1")}, RoomOptions{})
	sub := f.channel.last()

	require.NoError(t, f.room.Close())
	require.NoError(t, f.room.Close())
	assert.True(t, sub.isClosed())

	f.room.handle(sub, domain.RoomEvent{Kind: domain.RoomEventCommentDeleted, StoryID: storyID, CommentID: "c1"})
	assert.Equal(t, []domain.CommentID{"c1"}, commentIDs(f.room.Comments()))
	assert.False(t, f.room.Active())
}

func TestCommentRoomRefreshReplacesState(t *testing.T) {
	f := newRoomFixture(t, []domain.Comment{roomComment("c1")}, RoomOptions{})
	f.stories.EXPECT().GetStory(mockAnyContext(), storyID).Return(domain.Story{
		ID:       storyID,
		Comments: []domain.Comment{roomComment("c2")},
	}, nil).Once()

	require.NoError(t, f.room.Refresh(context.Background()))
	assert.Equal(t, []domain.CommentID{"c2"}, commentIDs(f.room.Comments()))
}

func TestWithCommentRoomReleasesOnError(t *testing.T) {
	stories := mocks.NewMockStoryAPI(t)
	channel := &fakeChannel{}
	stories.EXPECT().GetStory(mockAnyContext(), storyID).Return(domain.Story{ID: storyID}, nil).Once()
	workErr := errors.New("render failed")

	err := WithCommentRoom(context.Background(), storyID, stories, channel, RoomOptions{}, func(room *CommentRoom) error {
		assert.True(t, room.Active())
		return workErr
	})

	require.ErrorIs(t, err, workErr)
	assert.True(t, channel.last().isClosed())
}
