package command

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/lms-client/internal/theme"
)

// Command names accepted by the palette.
const (
	Home          = "home"
	Notifications = "notifications"
	Refresh       = "refresh"
	ReadAll       = "read-all"
	Settings      = "settings"
	Logout        = "logout"
	Quit          = "quit"
)

// aliases maps alternative spellings to a command name.
var aliases = map[string]string{
	Home:          Home,
	Notifications: Notifications,
	"inbox":       Notifications,
	Refresh:       Refresh,
	"sync":        Refresh,
	ReadAll:       ReadAll,
	"mark all":    ReadAll,
	Settings:      Settings,
	"config":      Settings,
	Logout:        Logout,
	"signout":     Logout,
	Quit:          Quit,
	"q":           Quit,
}

// CommandMsg is emitted when the user executes a known command.
type CommandMsg string

// CancelMsg is emitted when the palette is dismissed.
type CancelMsg struct{}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	err    string
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions([]string{Home, Notifications, Refresh, ReadAll, Settings, Logout, Quit})
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Parse resolves input to a command name.
func Parse(input string) (string, error) {
	name := strings.ToLower(strings.Join(strings.Fields(input), " "))
	if cmd, ok := aliases[name]; ok {
		return cmd, nil
	}
	return "", fmt.Errorf("unknown command %q", input)
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "enter":
			input := strings.TrimSpace(m.input.Value())
			if input == "" {
				return m, nil
			}
			name, err := Parse(input)
			if err != nil {
				m.err = err.Error()
				return m, nil
			}
			m.input.Reset()
			m.err = ""
			return m, func() tea.Msg { return CommandMsg(name) }

		case "esc":
			m.input.Reset()
			m.err = ""
			return m, func() tea.Msg { return CancelMsg{} }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	parts := []string{
		theme.TitleStyle.Render("Command Palette"),
		m.input.View(),
	}
	if m.err != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.err))
	}
	parts = append(parts, theme.HelpStyle.Render("tab complete | enter run | esc close"))

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
