package home

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/lms-client/internal/model"
	"github.com/nhle/lms-client/internal/notify"
	"github.com/nhle/lms-client/internal/theme"
)

// Model is the role landing page shown after sign-in.
type Model struct {
	session        model.Session
	unread         int
	unreadMessages int
	status         notify.Status
	width          int
	height         int
}

// New creates a home view.
func New(width, height int) Model {
	return Model{width: width, height: height}
}

// SetSession sets the signed-in user shown on the page.
func (m *Model) SetSession(s model.Session) {
	m.session = s
}

// SetCounts updates the notification summary.
func (m *Model) SetCounts(unread, unreadMessages int, status notify.Status) {
	m.unread = unread
	m.unreadMessages = unreadMessages
	m.status = status
}

// View renders the dashboard.
func (m Model) View() string {
	role := string(m.session.Role)
	greeting := theme.TitleStyle.Render(fmt.Sprintf("Welcome, %s", m.session.DisplayName))
	roleLine := "Signed in as " + theme.RoleStyle(role).Render(role)

	lines := []string{greeting, roleLine, ""}
	lines = append(lines, fmt.Sprintf("Unread notifications: %d", m.unread))
	lines = append(lines, fmt.Sprintf("Unread messages:      %d", m.unreadMessages))
	lines = append(lines, "", m.syncLine())

	if !m.session.TokenExpiry.IsZero() {
		lines = append(lines, theme.HelpStyle.Render(
			"Session valid until "+m.session.TokenExpiry.Local().Format("Mon Jan 2 15:04")))
	}

	lines = append(lines, "", theme.HelpStyle.Render(roleHint(m.session.Role)))

	return theme.PanelStyle.
		Width(max(m.width-4, 20)).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) syncLine() string {
	switch m.status.State {
	case notify.PollRunning:
		return theme.HelpStyle.Render("Checking for notifications...")
	case notify.PollError:
		return theme.WarningStyle.Render("Last check failed; retrying shortly.")
	}
	if m.status.LastSync.IsZero() {
		return theme.HelpStyle.Render("Notifications not checked yet.")
	}
	ago := time.Since(m.status.LastSync).Round(time.Second)
	return theme.HelpStyle.Render(fmt.Sprintf("Notifications checked %s ago.", ago))
}

func roleHint(role model.Role) string {
	var b strings.Builder
	switch role {
	case model.RoleInstructor:
		b.WriteString("Your courses and submissions are waiting.")
	case model.RoleAdmin:
		b.WriteString("Manage users and courses from the web console.")
	default:
		b.WriteString("Check your assignments and grades.")
	}
	b.WriteString(" Press n for notifications.")
	return b.String()
}
