package tui

import "github.com/charmbracelet/lipgloss"

// Theme holds the color scheme of the chat screen.
type Theme struct {
	User      lipgloss.Color
	Assistant lipgloss.Color
	System    lipgloss.Color
	Hint      lipgloss.Color
	Online    lipgloss.Color
	Busy      lipgloss.Color
	Offline   lipgloss.Color
	Border    lipgloss.Color
	Selected  lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	User:      lipgloss.Color("#5FAFD7"), // light blue
	Assistant: lipgloss.Color("#00D787"), // green
	System:    lipgloss.Color("#FF005F"), // red
	Hint:      lipgloss.Color("#6C6C6C"), // dim gray
	Online:    lipgloss.Color("#00D787"),
	Busy:      lipgloss.Color("#FFAF00"), // amber
	Offline:   lipgloss.Color("#FF005F"),
	Border:    lipgloss.Color("#3A3A3A"), // dark gray
	Selected:  lipgloss.Color("#D7AFFF"), // lavender
}

func (t Theme) badgeStyle(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) dimStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint)
}

func (t Theme) dotStyle(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func (t Theme) sidebarStyle(width, height int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(t.Border).
		PaddingRight(1)
}

func (t Theme) drawerStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(t.Hint).
		Padding(0, 1)
}
