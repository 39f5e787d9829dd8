package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	commentsrender "github.com/bnema/kintales-cli/internal/adapters/render/comments"
	"github.com/bnema/kintales-cli/internal/application"
	"github.com/bnema/kintales-cli/internal/domain"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

const metricsShutdownTimeout = 2 * time.Second

func newCommentsCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comments",
		Short: "Read, write and follow story comments",
	}

	cmd.AddCommand(
		newCommentsListCmd(app),
		newCommentsAddCmd(app),
		newCommentsDeleteCmd(app),
		newCommentsWatchCmd(app),
	)

	return cmd
}

func newCommentsListCmd(app *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list <story-id>",
		Short: "List the comments of a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := requireSession(cmd, app)
			if err != nil {
				return err
			}

			storyID := domain.StoryID(args[0])
			story, err := app.api.GetStory(cmd.Context(), storyID)
			if err != nil {
				return explain(fmt.Errorf("load story %s: %w", storyID, err))
			}

			if jsonOutput {
				encoded, err := json.MarshalIndent(story.Comments, "", "  ")
				if err != nil {
					return fmt.Errorf("encode comments: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
				return nil
			}

			output, err := app.commentsRender(storyID, story.Comments, commentsrender.RenderOptions{
				Now:  app.now(),
				Self: selfID(session),
			})
			if err != nil {
				return fmt.Errorf("render comments: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")

	return cmd
}

func newCommentsAddCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <story-id> <content>",
		Short: "Comment on a story",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireSession(cmd, app); err != nil {
				return err
			}

			manager := app.newManager()
			defer manager.Shutdown()

			storyID := domain.StoryID(args[0])
			content := strings.Join(args[1:], " ")
			err := application.WithCommentRoom(cmd.Context(), storyID, app.api, manager, app.roomOptions(nil, nil),
				func(room *application.CommentRoom) error {
					created, err := room.AddComment(cmd.Context(), content)
					if err != nil {
						return fmt.Errorf("add comment: %w", err)
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added comment %s\n", created.ID)
					return nil
				})
			return explain(err)
		},
	}
}

func newCommentsDeleteCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <story-id> <comment-id>",
		Short: "Delete a comment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireSession(cmd, app); err != nil {
				return err
			}

			manager := app.newManager()
			defer manager.Shutdown()

			storyID := domain.StoryID(args[0])
			commentID := domain.CommentID(args[1])
			err := application.WithCommentRoom(cmd.Context(), storyID, app.api, manager, app.roomOptions(nil, nil),
				func(room *application.CommentRoom) error {
					if err := room.DeleteComment(cmd.Context(), commentID); err != nil {
						return fmt.Errorf("delete comment: %w", err)
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted comment %s\n", commentID)
					return nil
				})
			return explain(err)
		},
	}
}

func newCommentsWatchCmd(app *app) *cobra.Command {
	var (
		metricsAddr string
		noResync    bool
	)

	cmd := &cobra.Command{
		Use:   "watch <story-id>",
		Short: "Follow a story's comments live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := requireSession(cmd, app)
			if err != nil {
				return err
			}

			if metricsAddr != "" {
				stop, err := serveMetrics(app, metricsAddr)
				if err != nil {
					return err
				}
				defer stop()
			}

			manager := app.newManager()
			defer manager.Shutdown()

			storyID := domain.StoryID(args[0])
			p := tea.NewProgram(
				commentsrender.NewWatchModel(storyID, selfID(session), app.now),
				tea.WithContext(cmd.Context()),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			)

			opts := app.roomOptions(
				func(items []domain.Comment) { p.Send(commentsrender.CommentsMsg(items)) },
				func(err error) { p.Send(commentsrender.ErrorMsg{Err: err}) },
			)
			opts.ResyncOnReconnect = !noResync
			room := application.NewCommentRoom(storyID, app.api, manager, opts)
			defer func() { _ = room.Close() }()

			stopState := manager.OnStateChange(func(state domain.ChannelState) {
				p.Send(commentsrender.StateMsg(state))
			})
			defer stopState()

			go func() {
				p.Send(commentsrender.StateMsg(manager.State()))
				if err := room.Activate(cmd.Context()); err != nil {
					p.Send(commentsrender.ErrorMsg{Err: explain(err)})
				}
			}()

			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("watch comments: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	cmd.Flags().BoolVar(&noResync, "no-resync", false, "Do not re-fetch comments after a reconnect")

	return cmd
}

func (a *app) roomOptions(onChange func([]domain.Comment), onError func(error)) application.RoomOptions {
	return application.RoomOptions{
		OnChange: onChange,
		OnError:  onError,
		Logger:   a.logger,
		Metrics:  a.metrics,
	}
}

func serveMetrics(app *app, addr string) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for metrics on %s: %w", addr, err)
	}

	server := &http.Server{Handler: app.metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}

func selfID(session domain.Session) domain.UserID {
	if session.User == nil {
		return ""
	}
	return session.User.ID
}
