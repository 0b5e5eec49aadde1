package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/raphaelgruber/chorus/internal/models"
)

// Theme defines the color scheme for terminal output.
type Theme struct {
	Persona  lipgloss.Color
	Label    lipgloss.Color
	Degraded lipgloss.Color
	Hint     lipgloss.Color
}

var defaultTheme = Theme{
	Persona:  lipgloss.Color("#00D787"), // green
	Label:    lipgloss.Color("#5FAFD7"), // light blue
	Degraded: lipgloss.Color("#FF005F"), // red
	Hint:     lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) personaStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Persona).Bold(true)
}

func (t Theme) labelStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Label)
}

func (t Theme) degradedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Degraded).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// printer writes command output, styled only when w is a terminal.
type printer struct {
	w      io.Writer
	styled bool
	theme  Theme
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, styled: isTerminal(w), theme: defaultTheme}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *printer) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// result prints the answer, prefixed with the persona name when known.
// With details set, the diagnostics follow.
func (p *printer) result(persona string, r *models.ChatResult, details bool) {
	if persona != "" {
		fmt.Fprintf(p.w, "%s %s\n", p.render(p.theme.personaStyle(), persona+":"), r.Response)
	} else {
		fmt.Fprintln(p.w, r.Response)
	}
	if details {
		p.diagnostics(r.Diagnostics)
	}
}

func (p *printer) diagnostics(d models.Diagnostics) {
	label := func(s string) string { return p.render(p.theme.labelStyle(), s) }

	fmt.Fprintln(p.w)
	fmt.Fprintf(p.w, "%s %s (%dms)\n", label("request:"), d.RequestID, d.DurationMs)
	fmt.Fprintf(p.w, "%s %d consulted, %d used\n", label("agents:"), d.AgentsConsulted, d.SpecialistsUsed)
	for _, a := range d.Agents {
		status := fmt.Sprintf("%.2f", a.Confidence)
		if a.Degraded {
			status = p.render(p.theme.degradedStyle(), "degraded")
		}
		fmt.Fprintf(p.w, "  - %-8s %-26s %s\n", a.Agent, a.Specialty, status)
	}
	fmt.Fprintf(p.w, "%s %s (%.2f)\n", label("sentiment:"), d.Sentiment.Label, d.Sentiment.Score)
	fmt.Fprintf(p.w, "%s %s (%.2f)\n", label("emotion:"), d.Emotion.Label, d.Emotion.Score)
	fmt.Fprintf(p.w, "%s %d\n", label("memories:"), d.MemoryHits)
	if len(d.Degraded) > 0 {
		fmt.Fprintf(p.w, "%s %s\n", p.render(p.theme.degradedStyle(), "degraded:"), strings.Join(d.Degraded, ", "))
	}
}

func (p *printer) memories(hits []models.MemoryHit) {
	if len(hits) == 0 {
		fmt.Fprintln(p.w, p.render(p.theme.hintStyle(), "No memories found."))
		return
	}
	for i, h := range hits {
		when := h.Metadata.Timestamp.Local().Format("2006-01-02 15:04")
		header := fmt.Sprintf("%d. %s  distance %.3f  %s/%s", i+1, when, h.Distance,
			h.Metadata.Sentiment.Label, h.Metadata.Emotion.Label)
		fmt.Fprintln(p.w, p.render(p.theme.labelStyle(), header))
		for _, line := range strings.Split(h.Content, "\n") {
			fmt.Fprintf(p.w, "   %s\n", line)
		}
	}
}

func (p *printer) agents(persona string, roster []models.AgentDefinition) {
	if persona != "" {
		fmt.Fprintf(p.w, "%s %s\n\n", p.render(p.theme.labelStyle(), "persona:"), persona)
	}
	for _, a := range roster {
		fmt.Fprintf(p.w, "%s  %s  %s\n",
			p.render(p.theme.personaStyle(), fmt.Sprintf("%-8s", a.Name)),
			fmt.Sprintf("%-14s", a.Model),
			a.Specialty)
	}
}
