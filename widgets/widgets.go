package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-cycle/theme"
)

// RenderPad renders a single colored symbol
func RenderPad(color lipgloss.Color, symbol rune) string {
	return lipgloss.NewStyle().Foreground(color).Render(string(symbol))
}

// RenderBeatMeter draws one pad per beat of the bar, lighting the beat the
// phase falls in. Pads are shaded along the palette by their position in
// the bar.
func RenderBeatMeter(th *theme.Theme, phase, beatsPerBar float64, playing bool) string {
	n := int(math.Ceil(beatsPerBar))
	if n < 1 {
		n = 1
	}
	current := int(math.Floor(phase))
	var out strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			out.WriteString(" ")
		}
		switch {
		case playing && i == current:
			out.WriteString(RenderPad(th.Color(0.3+0.7*float64(i)/float64(n)), th.Symbols.BeatOn))
		case i == 0:
			out.WriteString(RenderPad(th.Muted(), th.Symbols.Downbeat))
		default:
			out.WriteString(RenderPad(th.Muted(), th.Symbols.BeatOff))
		}
	}
	return out.String()
}

// VoiceRow is one line of the voice list
type VoiceRow struct {
	Name    string
	Output  string
	Channel int
	Muted   bool
}

// RenderVoices lists voices with a colored marker each. Muted voices are
// dimmed.
func RenderVoices(th *theme.Theme, rows []VoiceRow) string {
	if len(rows) == 0 {
		return lipgloss.NewStyle().Foreground(th.Muted()).Render("  no voices")
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r.Name))
	}
	lines := make([]string, 0, len(rows))
	for i, r := range rows {
		marker := RenderPad(lipgloss.Color(theme.Hex(th.Palette.Index(i+2))), th.Symbols.Voice)
		style := lipgloss.NewStyle().Foreground(th.FG())
		if r.Muted {
			marker = RenderPad(th.Muted(), th.Symbols.Muted)
			style = style.Foreground(th.Muted())
		}
		target := r.Output
		if r.Channel > 0 {
			target = fmt.Sprintf("%s:%d", r.Output, r.Channel)
		}
		lines = append(lines, fmt.Sprintf("  %d %s %s", i+1, marker,
			style.Render(fmt.Sprintf("%-*s  %s", width, r.Name, target))))
	}
	return strings.Join(lines, "\n")
}

// RenderKeyHelp formats key bindings on one line
func RenderKeyHelp(keys []KeyBinding) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k.Key+":"+k.Desc)
	}
	return strings.Join(parts, "  ")
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
