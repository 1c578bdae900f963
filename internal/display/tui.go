package display

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ColonelBlimp/handmorse/internal/recovery"
)

// updateMsg carries decoder state into the bubbletea program.
type updateMsg Update

// Model is the full-screen view: the pending signal, the sentence and a key
// help line.
type Model struct {
	state   Update
	width   int
	onReset func()
	styles  tuiStyles
}

type tuiStyles struct {
	title    lipgloss.Style
	label    lipgloss.Style
	signal   lipgloss.Style
	sentence lipgloss.Style
	help     lipgloss.Style
	box      lipgloss.Style
}

func defaultTUIStyles() tuiStyles {
	return tuiStyles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		label:    lipgloss.NewStyle().Faint(true),
		signal:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		sentence: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		help:     lipgloss.NewStyle().Faint(true),
		box:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

// NewModel creates the view model. onReset is called when the user presses r.
func NewModel(onReset func()) Model {
	return Model{onReset: onReset, styles: defaultTUIStyles()}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			if m.onReset != nil {
				m.onReset()
			}
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case updateMsg:
		m.state = Update(msg)
	}
	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("handmorse"))
	b.WriteString("\n\n")

	signal := m.state.Signal
	if signal == "" {
		signal = " "
	}
	fmt.Fprintf(&b, "%s %s\n", m.styles.label.Render("Morse:   "), m.styles.signal.Render(signal))
	fmt.Fprintf(&b, "%s %s", m.styles.label.Render("Sentence:"), m.styles.sentence.Render(m.state.Sentence))

	box := m.styles.box
	if m.width > 4 {
		box = box.Width(m.width - 2)
	}
	return box.Render(b.String()) + "\n" + m.styles.help.Render("fist = dot · open hand = dash · r reset · q quit") + "\n"
}

// State returns the last state received.
func (m Model) State() Update {
	return m.state
}

// TUI runs the bubbletea program and implements Sink.
type TUI struct {
	program *tea.Program
	box     *mailbox
}

// NewTUI creates the terminal UI. Additional program options (input,
// output) may be supplied.
func NewTUI(onReset func(), opts ...tea.ProgramOption) *TUI {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return &TUI{
		program: tea.NewProgram(NewModel(onReset), opts...),
		box:     newMailbox(),
	}
}

// Show hands the state to the program without blocking.
func (t *TUI) Show(u Update) {
	t.box.put(u)
}

// Run blocks until the user quits or ctx is cancelled.
func (t *TUI) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)

	go t.forward(ctx, done, t.program.Send, t.program.Quit)

	if _, err := t.program.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// forward relays mailbox updates to send until done closes or ctx ends. A
// panic while relaying quits the program instead of leaving a frozen view.
func (t *TUI) forward(ctx context.Context, done <-chan struct{}, send func(tea.Msg), quit func()) {
	panicked := recovery.Guard("tui", func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				quit()
				return
			case u := <-t.box.ch:
				send(updateMsg(u))
			}
		}
	})
	if panicked {
		quit()
	}
}

// Release restores the terminal; used when the process is about to exit abnormally.
func (t *TUI) Release() {
	_ = t.program.ReleaseTerminal()
}
