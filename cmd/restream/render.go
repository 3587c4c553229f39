package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/restream"
	"github.com/mattn/go-runewidth"
)

// styles maps a Theme to lipgloss styles bound to one output.
type styles struct {
	Text     lipgloss.Style
	Thinking lipgloss.Style
	ToolCall lipgloss.Style
	Error    lipgloss.Style
	Muted    lipgloss.Style
	Accent   lipgloss.Style
}

func newStyles(w io.Writer, t restream.Theme) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		Text:     r.NewStyle().Foreground(ansiColor(t.Text)).TabWidth(lipgloss.NoTabConversion),
		Thinking: r.NewStyle().Foreground(ansiColor(t.Thinking)).Faint(true).TabWidth(lipgloss.NoTabConversion),
		ToolCall: r.NewStyle().Foreground(ansiColor(t.ToolCall)).Bold(true),
		Error:    r.NewStyle().Foreground(ansiColor(t.Error)),
		Muted:    r.NewStyle().Foreground(ansiColor(t.Muted)).Faint(true),
		Accent:   r.NewStyle().Foreground(ansiColor(t.Accent)).Bold(true),
	}
}

// paint renders s line by line. Rendering a multi-line string in one call
// pads every line to the widest one.
func paint(st lipgloss.Style, s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = st.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}

// renderer is a Sink that prints events as styled terminal output.
type renderer struct {
	w      io.Writer
	styles styles
	width  int

	span      string
	lineStart bool
}

var _ restream.Sink = (*renderer)(nil)

func newRenderer(w io.Writer, t restream.Theme, width int) *renderer {
	return &renderer{w: w, styles: newStyles(w, t), width: width, lineStart: true}
}

func (r *renderer) Emit(e restream.Event) error {
	switch ev := e.(type) {
	case restream.EventText:
		return r.write(paint(r.styles.Text, ev.Text))
	case restream.EventThinking:
		return r.thinking(ev)
	case restream.EventToolCall:
		args := strings.ReplaceAll(string(ev.Arguments), "\n", " ")
		args = runewidth.Truncate(args, r.width, "…")
		return r.line(r.styles.ToolCall.Render("▸ "+ev.Name) + " " + r.styles.Muted.Render(args))
	}
	return fmt.Errorf("render: unknown event type %T", e)
}

func (r *renderer) thinking(ev restream.EventThinking) error {
	if ev.IsClose() {
		if ev.ID != r.span {
			return nil
		}
		r.span = ""
		return r.newline()
	}
	if ev.ID != r.span {
		r.span = ev.ID
		if err := r.line(r.styles.Muted.Render("┆ thinking")); err != nil {
			return err
		}
	}
	var out string
	switch ev.Metadata.Kind {
	case restream.ReasoningEncrypted:
		out = r.styles.Muted.Render("[encrypted reasoning]")
	default:
		out = paint(r.styles.Thinking, ev.Text)
	}
	if ev.Metadata.Signature != "" {
		out += r.styles.Accent.Render(" ✓signed")
	}
	return r.write(out)
}

// line writes s on a line of its own.
func (r *renderer) line(s string) error {
	if err := r.newline(); err != nil {
		return err
	}
	return r.write(s + "\n")
}

func (r *renderer) newline() error {
	if r.lineStart {
		return nil
	}
	return r.write("\n")
}

func (r *renderer) write(s string) error {
	if s == "" {
		return nil
	}
	if _, err := io.WriteString(r.w, s); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	r.lineStart = strings.HasSuffix(s, "\n")
	return nil
}

// header prints a file header ahead of a capture's events.
func (r *renderer) header(path string) error {
	return r.line(r.styles.Muted.Render("── " + path))
}

// failure prints a capture-level error without aborting the run.
func (r *renderer) failure(path string, err error) error {
	return r.line(paint(r.styles.Error, path+": "+err.Error()))
}
