package domain

type ChannelState string

const (
	ChannelAbsent       ChannelState = "absent"
	ChannelConnecting   ChannelState = "connecting"
	ChannelConnected    ChannelState = "connected"
	ChannelDisconnected ChannelState = "disconnected"
)

type RoomEventKind string

const (
	RoomEventCommentCreated RoomEventKind = "comment:new"
	RoomEventCommentDeleted RoomEventKind = "comment:deleted"
	RoomEventError          RoomEventKind = "room:error"
	// RoomEventResubscribed is local: the room was re-joined after a reconnect.
	RoomEventResubscribed RoomEventKind = "room:resubscribed"
)

// RoomEvent is one typed item of a room's feed. Only the fields relevant to
// Kind are set.
type RoomEvent struct {
	Kind      RoomEventKind
	StoryID   StoryID
	Comment   Comment
	CommentID CommentID
	Message   string
}
