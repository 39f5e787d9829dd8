package comments

import (
	"time"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Messages a caller sends into a running watch program.
type (
	CommentsMsg []domain.Comment
	StateMsg    domain.ChannelState
	ErrorMsg    struct{ Err error }
)

// WatchModel is the live view of one room. Feed it with Program.Send.
type WatchModel struct {
	storyID  domain.StoryID
	comments []domain.Comment
	state    domain.ChannelState
	lastErr  error
	opts     RenderOptions
	now      func() time.Time
	spinner  spinner.Model
	styles   styles
}

func NewWatchModel(storyID domain.StoryID, self domain.UserID, now func() time.Time) WatchModel {
	if now == nil {
		now = time.Now
	}

	return WatchModel{
		storyID: storyID,
		state:   domain.ChannelConnecting,
		opts:    RenderOptions{Self: self},
		now:     now,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
		),
		styles: newStyles(),
	}
}

func (m WatchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	case CommentsMsg:
		m.comments = msg
		return m, nil
	case StateMsg:
		m.state = domain.ChannelState(msg)
		if m.state == domain.ChannelConnected {
			m.lastErr = nil
		}
		if m.state == domain.ChannelAbsent {
			return m, tea.Quit
		}
		return m, nil
	case ErrorMsg:
		m.lastErr = msg.Err
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	default:
		return m, nil
	}
}

func (m WatchModel) View() string {
	opts := m.opts
	opts.Now = m.now()

	status := stateLabel(m.state, m.styles)
	if m.state == domain.ChannelConnecting || m.state == domain.ChannelDisconnected {
		status = m.spinner.View() + " " + status
	}

	lines := []string{renderView(m.storyID, m.comments, opts, m.styles), "", status}
	if m.lastErr != nil {
		lines = append(lines, m.styles.warning.Render(m.lastErr.Error()))
	}
	lines = append(lines, m.styles.hint.Render("q to quit"))

	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n"
}

func (m WatchModel) Comments() []domain.Comment {
	return m.comments
}

func (m WatchModel) State() domain.ChannelState {
	return m.state
}
