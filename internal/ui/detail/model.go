package detail

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/lms-client/internal/keys"
	"github.com/nhle/lms-client/internal/model"
	"github.com/nhle/lms-client/internal/theme"
)

// BackMsg signals the parent to return to the inbox.
type BackMsg struct{}

// Model shows one notification in full.
type Model struct {
	item     *model.NotificationItem
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok && key.Matches(km, m.keys.Back) {
		return m, func() tea.Msg { return BackMsg{} }
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.item == nil {
		return theme.DimmedStyle.Render("Notification not found.")
	}
	return m.viewport.View()
}

// SetItem shows n and scrolls to the top.
func (m *Model) SetItem(n model.NotificationItem) {
	m.item = &n
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// ID returns the id of the notification shown, or "".
func (m Model) ID() string {
	if m.item == nil {
		return ""
	}
	return m.item.ID
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.item != nil {
		m.viewport.SetContent(m.renderContent())
	}
}

func (m Model) renderContent() string {
	n := m.item
	labelStyle := lipgloss.NewStyle().Bold(true).Width(10)

	status := theme.UnreadBadgeStyle.Render("unread")
	if n.IsRead {
		status = theme.DimmedStyle.Render("read")
	}

	sections := []string{
		theme.KindStyle(string(n.Kind)).Render(strings.ToUpper(string(n.Kind))) + "  " + status,
		"",
		labelStyle.Render("Received") + n.CreatedAt.Local().Format("Mon Jan 2 2006 15:04"),
		labelStyle.Render("ID") + n.ID,
	}
	if n.RelatedID != "" {
		sections = append(sections, labelStyle.Render(relatedLabel(n.Kind))+n.RelatedID)
	}

	separator := theme.DimmedStyle.Render(strings.Repeat("─", max(m.width-4, 10)))
	body := lipgloss.NewStyle().Width(max(m.width-4, 20)).Render(n.Message)

	sections = append(sections, "", separator, "", body)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// relatedLabel names what RelatedID points at for kind.
func relatedLabel(kind model.NotificationKind) string {
	switch kind {
	case model.NotificationCourse:
		return "Course"
	case model.NotificationAssignment:
		return "Assignment"
	case model.NotificationGrade:
		return "Grade"
	case model.NotificationMessage:
		return "Thread"
	default:
		return "Related"
	}
}
