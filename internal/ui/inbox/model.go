package inbox

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/lms-client/internal/keys"
	"github.com/nhle/lms-client/internal/model"
	"github.com/nhle/lms-client/internal/theme"
)

// MarkReadMsg asks for one notification to be marked read.
type MarkReadMsg struct {
	ID string
}

// OpenMsg asks for a notification to be shown in full.
type OpenMsg struct {
	Notification model.NotificationItem
}

// MarkAllReadMsg asks for every notification to be marked read.
type MarkAllReadMsg struct{}

// RefreshMsg asks for an immediate fetch.
type RefreshMsg struct{}

// Model is the notification inbox view.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	width  int
	height int
}

// New creates an empty inbox.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{list: l, keys: k, width: width, height: height}
}

// SetItems replaces the rows, keeping the cursor where it was.
func (m *Model) SetItems(items []model.NotificationItem, unread int) tea.Cmd {
	rows := make([]list.Item, len(items))
	for i, n := range items {
		rows[i] = Item{Notification: n}
	}
	m.list.Title = fmt.Sprintf("Notifications (%d unread)", unread)
	return m.list.SetItems(rows)
}

// Selected returns the highlighted notification.
func (m Model) Selected() (model.NotificationItem, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.NotificationItem{}, false
	}
	return it.Notification, true
}

// Update handles messages for the inbox.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(km, m.keys.Select):
			n, ok := m.Selected()
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg { return OpenMsg{Notification: n} }

		case key.Matches(km, m.keys.MarkRead):
			n, ok := m.Selected()
			if !ok || n.IsRead {
				return m, nil
			}
			id := n.ID
			return m, func() tea.Msg { return MarkReadMsg{ID: id} }

		case key.Matches(km, m.keys.MarkAllRead):
			return m, func() tea.Msg { return MarkAllReadMsg{} }

		case key.Matches(km, m.keys.Refresh):
			return m, func() tea.Msg { return RefreshMsg{} }
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the list, or a placeholder when it is empty.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return theme.PanelStyle.
			Width(m.width - 4).
			Render(theme.HelpStyle.Render("No notifications yet."))
	}
	return m.list.View()
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
