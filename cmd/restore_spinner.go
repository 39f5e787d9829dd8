package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

type restoreDoneMsg struct {
	session domain.Session
	err     error
}

type restoreSpinnerModel struct {
	spinner spinner.Model
	label   string
	restore tea.Cmd
	session domain.Session
	err     error
	done    bool
}

func newRestoreSpinnerModel(label string, restore tea.Cmd) restoreSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return restoreSpinnerModel{
		spinner: s,
		label:   label,
		restore: restore,
	}
}

func (m restoreSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.restore)
}

func (m restoreSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case restoreDoneMsg:
		m.done = true
		m.session = msg.session
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m restoreSpinnerModel) View() string {
	if m.done {
		return ""
	}

	return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
}

func runRestoreSpinner(ctx context.Context, output io.Writer, restore func(context.Context) (domain.Session, error)) (domain.Session, error) {
	restoreCmd := func() tea.Msg {
		session, err := restore(ctx)
		return restoreDoneMsg{session: session, err: err}
	}

	p := tea.NewProgram(
		newRestoreSpinnerModel("Restoring session...", restoreCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return domain.Session{}, err
	}

	result, ok := finalModel.(restoreSpinnerModel)
	if !ok {
		return domain.Session{}, fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.session, result.err
}

// restoreSession reinstates the stored session, with a spinner when stdout is
// a terminal.
func restoreSession(cmd *cobra.Command, app *app) (domain.Session, error) {
	restore := func(ctx context.Context) (domain.Session, error) {
		return app.sessions.Restore(ctx, app.api)
	}

	if isTerminal(cmd.OutOrStdout()) {
		return runRestoreSpinner(cmd.Context(), cmd.OutOrStdout(), restore)
	}
	return restore(cmd.Context())
}

// requireSession restores the session and fails when nobody is signed in.
func requireSession(cmd *cobra.Command, app *app) (domain.Session, error) {
	session, err := restoreSession(cmd, app)
	if err != nil {
		return domain.Session{}, explain(err)
	}
	if !session.Present() {
		return domain.Session{}, errNotSignedIn
	}
	return session, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
