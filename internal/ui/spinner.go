package ui

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// doneMsg carries the result of the background operation.
type doneMsg struct {
	err error
}

// spinnerModel shows a spinner while run executes. Ctrl+C cancels the
// operation's context and waits for it to return.
type spinnerModel struct {
	spinner  spinner.Model
	title    string
	run      func() error
	cancel   context.CancelFunc
	err      error
	done     bool
	canceled bool
}

func newSpinnerModel(title string, run func() error, cancel context.CancelFunc) spinnerModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ColorBlue)

	return spinnerModel{
		spinner: sp,
		title:   title,
		run:     run,
		cancel:  cancel,
	}
}

// Init starts the spinner and the operation.
func (m spinnerModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg { return doneMsg{err: m.run()} },
	)
}

// Update handles spinner ticks, completion and cancellation.
func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			m.canceled = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the spinner line, or nothing once finished.
func (m spinnerModel) View() string {
	if m.done {
		return ""
	}
	title := m.title
	if m.canceled {
		title += " (canceling)"
	}
	return fmt.Sprintf("%s %s\n", m.spinner.View(), title)
}

// Spin runs fn while showing a spinner titled title on out. fn receives a
// context that is canceled when the user presses Ctrl+C.
func Spin[T any](ctx context.Context, out io.Writer, title string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var result T
	run := func() error {
		var err error
		result, err = fn(ctx)
		return err
	}

	p := tea.NewProgram(
		newSpinnerModel(title, run, cancel),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		var zero T
		return zero, fmt.Errorf("running spinner: %w", err)
	}

	m, ok := final.(spinnerModel)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unexpected spinner model %T", final)
	}
	if m.err != nil {
		var zero T
		return zero, m.err
	}
	return result, nil
}
