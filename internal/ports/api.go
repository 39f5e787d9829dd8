package ports

import (
	"context"

	"github.com/bnema/kintales-cli/internal/domain"
)

type ProfileAPI interface {
	GetProfile(ctx context.Context) (domain.User, error)
}

type StoryAPI interface {
	GetStory(ctx context.Context, id domain.StoryID) (domain.Story, error)
	CreateComment(ctx context.Context, storyID domain.StoryID, content string) (domain.Comment, error)
	DeleteComment(ctx context.Context, id domain.CommentID) error
}

type PushAPI interface {
	RegisterPushToken(ctx context.Context, registration domain.PushRegistration) (domain.PushTokenID, error)
	RemovePushToken(ctx context.Context, id domain.PushTokenID) error
}
