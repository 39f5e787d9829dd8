package domain

import "time"

type StoryID string
type CommentID string

type Comment struct {
	ID        CommentID `json:"id"`
	StoryID   StoryID   `json:"storyId"`
	AuthorID  UserID    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type Story struct {
	ID        StoryID   `json:"id"`
	TreeID    string    `json:"treeId,omitempty"`
	AuthorID  UserID    `json:"authorId,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Comments  []Comment `json:"comments"`
}

// CommentList is the local collection of one room: ordered by arrival and
// keyed by server id. Removed ids are tombstoned so a stale peer event cannot
// bring them back; only authoritative state lifts a tombstone.
type CommentList struct {
	items   []Comment
	removed map[CommentID]struct{}
}

func NewCommentList(comments []Comment) CommentList {
	var list CommentList
	list.Replace(comments)
	return list
}

func (l *CommentList) Has(id CommentID) bool {
	for _, c := range l.items {
		if c.ID == id {
			return true
		}
	}
	return false
}

// Append adds c at the end unless its id is already present or tombstoned.
func (l *CommentList) Append(c Comment) bool {
	if c.ID == "" || l.Has(c.ID) {
		return false
	}
	if _, gone := l.removed[c.ID]; gone {
		return false
	}

	l.items = append(l.items, c)
	return true
}

// Remove drops id and tombstones it. Removing an absent id is a no-op that
// still records the tombstone.
func (l *CommentList) Remove(id CommentID) bool {
	if l.removed == nil {
		l.removed = map[CommentID]struct{}{}
	}
	l.removed[id] = struct{}{}

	for i, c := range l.items {
		if c.ID == id {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}

// Replace installs authoritative state. Ids present in it lose their tombstone.
func (l *CommentList) Replace(comments []Comment) {
	items := make([]Comment, 0, len(comments))
	seen := make(map[CommentID]struct{}, len(comments))
	for _, c := range comments {
		if c.ID == "" {
			continue
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		items = append(items, c)
		delete(l.removed, c.ID)
	}
	l.items = items
}

func (l *CommentList) Items() []Comment {
	out := make([]Comment, len(l.items))
	copy(out, l.items)
	return out
}

func (l *CommentList) Len() int {
	return len(l.items)
}

func (l *CommentList) Clone() CommentList {
	clone := CommentList{items: l.Items()}
	if len(l.removed) > 0 {
		clone.removed = make(map[CommentID]struct{}, len(l.removed))
		for id := range l.removed {
			clone.removed[id] = struct{}{}
		}
	}
	return clone
}
