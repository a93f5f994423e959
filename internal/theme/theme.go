package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// Styles shared by every view. They are rebuilt by Apply.
var (
	HeaderStyle       lipgloss.Style
	StatusBarStyle    lipgloss.Style
	PanelStyle        lipgloss.Style
	ListItemStyle     lipgloss.Style
	SelectedItemStyle lipgloss.Style
	HelpStyle         lipgloss.Style
	DimmedStyle       lipgloss.Style
	UnreadBadgeStyle  lipgloss.Style
	ErrorStyle        lipgloss.Style
	WarningStyle      lipgloss.Style
	TitleStyle        lipgloss.Style
)

func init() {
	Apply("default")
}

// Apply selects a named theme: "default" or "mono". Unknown names fall
// back to "default".
func Apply(name string) {
	mono := name == "mono"
	color := func(c lipgloss.TerminalColor) lipgloss.TerminalColor {
		if mono {
			return lipgloss.NoColor{}
		}
		return c
	}

	HeaderStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(color(ColorWhite)).
		Background(color(ColorBlue)).
		Padding(0, 1)

	StatusBarStyle = lipgloss.NewStyle().
		Foreground(color(ColorWhite)).
		Background(color(ColorSubtle)).
		Padding(0, 1)

	PanelStyle = lipgloss.NewStyle().
		Padding(1, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color(ColorBorder))

	ListItemStyle = lipgloss.NewStyle().
		PaddingLeft(2)

	SelectedItemStyle = lipgloss.NewStyle().
		PaddingLeft(1).
		Bold(true).
		Foreground(color(ColorBlue)).
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(color(ColorBlue))

	HelpStyle = lipgloss.NewStyle().
		Foreground(color(ColorGray)).
		Italic(true)

	DimmedStyle = lipgloss.NewStyle().
		Foreground(color(ColorGray))

	UnreadBadgeStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(color(ColorWhite)).
		Background(color(ColorRed)).
		Padding(0, 1)

	ErrorStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(color(ColorRed))

	WarningStyle = lipgloss.NewStyle().
		Foreground(color(ColorYellow))

	TitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(color(ColorWhite)).
		MarginBottom(1)
}

// KindStyle returns a color-coded style for a notification kind label.
func KindStyle(kind string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch kind {
	case "message":
		return base.Foreground(ColorBlue)
	case "assignment":
		return base.Foreground(ColorOrange)
	case "grade":
		return base.Foreground(ColorGreen)
	case "course":
		return base.Foreground(ColorMagenta)
	default:
		return base.Foreground(ColorGray)
	}
}

// RoleStyle returns a color-coded style for a user role label.
func RoleStyle(role string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch role {
	case "admin":
		return base.Foreground(ColorRed)
	case "instructor":
		return base.Foreground(ColorMagenta)
	case "student":
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}
