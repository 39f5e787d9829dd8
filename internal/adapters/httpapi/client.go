package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/bnema/kintales-cli/internal/ports"
	"github.com/oklog/ulid/v2"
)

const idempotencyHeader = "Idempotency-Key"

// Client is the resource API. Every call goes through the dispatcher.
type Client struct {
	dispatcher *Dispatcher
	newKey     func() string
}

var (
	_ ports.ProfileAPI = (*Client)(nil)
	_ ports.StoryAPI   = (*Client)(nil)
	_ ports.PushAPI    = (*Client)(nil)
)

func NewClient(dispatcher *Dispatcher) *Client {
	return &Client{
		dispatcher: dispatcher,
		newKey:     func() string { return ulid.Make().String() },
	}
}

func (c *Client) GetProfile(ctx context.Context) (domain.User, error) {
	var user domain.User
	if err := c.dispatcher.Get(ctx, "/api/profile", &user); err != nil {
		return domain.User{}, fmt.Errorf("get profile: %w", err)
	}
	return user, nil
}

func (c *Client) GetStory(ctx context.Context, id domain.StoryID) (domain.Story, error) {
	var story domain.Story
	if err := c.dispatcher.Get(ctx, "/api/stories/"+url.PathEscape(string(id)), &story); err != nil {
		return domain.Story{}, fmt.Errorf("get story: %w", err)
	}
	if story.ID == "" {
		story.ID = id
	}
	return story, nil
}

type createCommentRequest struct {
	Content string `json:"content"`
}

// CreateComment sends an Idempotency-Key so a replay after renewal cannot
// create the comment twice.
func (c *Client) CreateComment(ctx context.Context, storyID domain.StoryID, content string) (domain.Comment, error) {
	header := http.Header{}
	header.Set(idempotencyHeader, c.newKey())

	var created domain.Comment
	path := "/api/stories/" + url.PathEscape(string(storyID)) + "/comments"
	if err := c.dispatcher.Post(ctx, path, createCommentRequest{Content: content}, &created, header); err != nil {
		return domain.Comment{}, err
	}
	if created.StoryID == "" {
		created.StoryID = storyID
	}
	return created, nil
}

func (c *Client) DeleteComment(ctx context.Context, id domain.CommentID) error {
	return c.dispatcher.Delete(ctx, "/api/comments/"+url.PathEscape(string(id)))
}

type pushTokenResponse struct {
	ID string `json:"id"`
}

func (c *Client) RegisterPushToken(ctx context.Context, registration domain.PushRegistration) (domain.PushTokenID, error) {
	payload := struct {
		DeviceToken string `json:"deviceToken"`
		Platform    string `json:"platform"`
		DeviceInfo  string `json:"deviceInfo,omitempty"`
	}{
		DeviceToken: registration.DeviceToken,
		Platform:    registration.Platform,
		DeviceInfo:  registration.DeviceInfo,
	}

	var out pushTokenResponse
	if err := c.dispatcher.Post(ctx, "/api/notifications/push-tokens", payload, &out, nil); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: push token response without id", domain.ErrServerError)
	}
	return domain.PushTokenID(out.ID), nil
}

func (c *Client) RemovePushToken(ctx context.Context, id domain.PushTokenID) error {
	return c.dispatcher.Delete(ctx, "/api/notifications/push-tokens/"+url.PathEscape(string(id)))
}
