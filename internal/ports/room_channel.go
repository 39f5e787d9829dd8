package ports

import "github.com/bnema/kintales-cli/internal/domain"

// RoomSubscription is one membership of a room. Events is closed once the
// membership ends, either through Close or because the session went away.
type RoomSubscription interface {
	Events() <-chan domain.RoomEvent
	Close() error
}

type RoomChannel interface {
	Join(storyID domain.StoryID) (RoomSubscription, error)
}
