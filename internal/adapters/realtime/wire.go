package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/bnema/kintales-cli/internal/domain"
)

const (
	commandJoin  = "room:join"
	commandLeave = "room:leave"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type roomCommand struct {
	ResourceID domain.StoryID `json:"resourceId"`
}

type deletedEvent struct {
	CommentID domain.CommentID `json:"commentId"`
	StoryID   domain.StoryID   `json:"storyId"`
}

type errorEvent struct {
	Message    string         `json:"message"`
	ResourceID domain.StoryID `json:"resourceId"`
}

func encodeCommand(event string, storyID domain.StoryID) (frame, error) {
	data, err := json.Marshal(roomCommand{ResourceID: storyID})
	if err != nil {
		return frame{}, err
	}
	return frame{Event: event, Data: data}, nil
}

// decodeEvent turns a server frame into a room event. A room:error without a
// resource id comes back with an empty StoryID. Unknown events report ok=false.
func decodeEvent(f frame) (domain.RoomEvent, bool, error) {
	switch domain.RoomEventKind(f.Event) {
	case domain.RoomEventCommentCreated:
		var c domain.Comment
		if err := json.Unmarshal(f.Data, &c); err != nil {
			return domain.RoomEvent{}, false, fmt.Errorf("decode %s: %w", f.Event, err)
		}
		return domain.RoomEvent{Kind: domain.RoomEventCommentCreated, StoryID: c.StoryID, Comment: c}, true, nil
	case domain.RoomEventCommentDeleted:
		var d deletedEvent
		if err := json.Unmarshal(f.Data, &d); err != nil {
			return domain.RoomEvent{}, false, fmt.Errorf("decode %s: %w", f.Event, err)
		}
		return domain.RoomEvent{Kind: domain.RoomEventCommentDeleted, StoryID: d.StoryID, CommentID: d.CommentID}, true, nil
	case domain.RoomEventError:
		var e errorEvent
		if err := json.Unmarshal(f.Data, &e); err != nil {
			return domain.RoomEvent{}, false, fmt.Errorf("decode %s: %w", f.Event, err)
		}
		return domain.RoomEvent{Kind: domain.RoomEventError, StoryID: e.ResourceID, Message: e.Message}, true, nil
	default:
		return domain.RoomEvent{}, false, nil
	}
}
