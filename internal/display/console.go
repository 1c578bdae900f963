package display

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Console writes one styled line per state change.
type Console struct {
	out io.Writer

	labelStyle    lipgloss.Style
	signalStyle   lipgloss.Style
	sentenceStyle lipgloss.Style

	mu    sync.Mutex
	last  Update
	shown bool
}

// NewConsole creates a console sink writing to out. Colours are used only
// when out is a terminal that supports them.
func NewConsole(out io.Writer) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		out:           out,
		labelStyle:    r.NewStyle().Faint(true),
		signalStyle:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		sentenceStyle: r.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
	}
}

// Show prints the state if it differs from the last printed state.
func (c *Console) Show(u Update) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shown && u == c.last {
		return
	}
	c.last = u
	c.shown = true

	_, _ = fmt.Fprintf(c.out, "%s %s  %s %s\n",
		c.labelStyle.Render("Morse:"),
		c.signalStyle.Render(u.Signal),
		c.labelStyle.Render("Sentence:"),
		c.sentenceStyle.Render(u.Sentence),
	)
}
