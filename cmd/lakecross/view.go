package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/divijg19/lakecross/internal/core"
	"github.com/divijg19/lakecross/internal/puzzle"
)

var (
	colorTeal  = lipgloss.Color("#20B9B4")
	colorRed   = lipgloss.Color("#E74C3C")
	colorGold  = lipgloss.Color("#F4D03F")
	colorSlate = lipgloss.Color("#2C4A54")
	colorWater = lipgloss.Color("#157483")
)

var styles = struct {
	Title     lipgloss.Style
	Priest    lipgloss.Style
	Carnivore lipgloss.Style
	Water     lipgloss.Style
	Boat      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Box       lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(colorTeal),
	Priest:    lipgloss.NewStyle().Bold(true).Foreground(colorTeal),
	Carnivore: lipgloss.NewStyle().Bold(true).Foreground(colorRed),
	Water:     lipgloss.NewStyle().Foreground(colorWater),
	Boat:      lipgloss.NewStyle().Foreground(colorGold),
	Muted:     lipgloss.NewStyle().Foreground(colorSlate),
	Success:   lipgloss.NewStyle().Bold(true).Foreground(colorTeal),
	Warning:   lipgloss.NewStyle().Foreground(colorGold),
	Error:     lipgloss.NewStyle().Foreground(colorRed),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorWater).
		Padding(0, 1),
}

func units(p puzzle.Population) string {
	return styles.Priest.Render(strings.Repeat("P", p.Priests)) +
		styles.Carnivore.Render(strings.Repeat("C", p.Carnivores))
}

// renderState draws both shores and the boat on one line, with the crossing count below.
func renderState(s puzzle.State, rules puzzle.Rules) string {
	shoreWidth := 2*rules.Units + 1
	shore := lipgloss.NewStyle().Width(shoreWidth)

	boat := styles.Boat.Render(`\_`) + units(s.Boat.Cargo) +
		styles.Boat.Render(strings.Repeat("_", rules.Capacity-s.Boat.Cargo.Total()+1)+`/`)
	water := styles.Water.Render(strings.Repeat("~", 6))

	var lake string
	if s.Boat.Location == core.Left {
		lake = boat + water
	} else {
		lake = water + boat
	}

	row := lipgloss.JoinHorizontal(lipgloss.Top,
		shore.Render(units(s.Left)),
		" ", lake, " ",
		shore.Align(lipgloss.Right).Render(units(s.Right)),
	)

	status := fmt.Sprintf("Crossings: %d", s.MoveCount)
	switch s.Phase {
	case puzzle.Won:
		status += "  " + styles.Success.Render("Everyone made it across!")
	case puzzle.Lost:
		status += "  " + styles.Error.Render("The carnivores ate the priests.")
	}
	return styles.Box.Render(row + "\n" + status)
}

func renderMistakes(ms []core.Mistake) string {
	if len(ms) == 0 {
		return ""
	}
	labels := make([]string, 0, len(ms))
	for _, m := range ms {
		labels = append(labels, m.Label())
	}
	return styles.Warning.Render("Warning: " + strings.Join(labels, ", "))
}

func formatShortUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04Z")
}

func formatRelative(t time.Time, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func sessionResult(rec core.SessionRecord) string {
	switch {
	case rec.Status != core.StatusCompleted:
		return "playing"
	case rec.Won:
		return "won"
	default:
		return "lost"
	}
}
