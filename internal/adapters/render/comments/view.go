package comments

import (
	"fmt"
	"strings"
	"time"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now time.Time
	// Self marks comments written by the signed-in user.
	Self domain.UserID
}

func renderView(storyID domain.StoryID, comments []domain.Comment, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render(fmt.Sprintf("Story %s", storyID)),
		s.header.Render(fmt.Sprintf("comments: %d", len(comments))),
	}

	if len(comments) == 0 {
		lines = append(lines, s.empty.Render("No comments yet."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, c := range comments {
		lines = append(lines, s.section.Render(renderComment(c, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderComment(c domain.Comment, opts RenderOptions, s styles) string {
	author := s.author.Render(authorLabel(c.AuthorID))
	if opts.Self != "" && c.AuthorID == opts.Self {
		author = s.self.Render("you")
	}

	heading := lipgloss.JoinHorizontal(
		lipgloss.Top,
		author,
		" ",
		s.timestamp.Render(formatWhen(c.CreatedAt, opts.Now)),
		" ",
		s.timestamp.Render("#"+string(c.ID)),
	)

	return lipgloss.JoinVertical(lipgloss.Left, heading, s.content.Render(strings.TrimSpace(c.Content)))
}

func authorLabel(id domain.UserID) string {
	if id == "" {
		return "unknown"
	}
	return string(id)
}

func formatWhen(at, now time.Time) string {
	if at.IsZero() {
		return "unknown time"
	}
	if now.IsZero() {
		return at.Format(time.RFC3339)
	}

	elapsed := now.Sub(at)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return plural(int(elapsed.Minutes()), "minute") + " ago"
	case elapsed < 24*time.Hour:
		return plural(int(elapsed.Hours()), "hour") + " ago"
	default:
		return at.Format("15:04 on 02 Jan")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func stateLabel(state domain.ChannelState, s styles) string {
	switch state {
	case domain.ChannelConnected:
		return s.online.Render("live")
	case domain.ChannelConnecting:
		return s.offline.Render("connecting")
	case domain.ChannelDisconnected:
		return s.offline.Render("offline, retrying")
	default:
		return s.warning.Render("signed out")
	}
}
