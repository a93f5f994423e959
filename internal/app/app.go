package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/lms-client/internal/auth"
	"github.com/nhle/lms-client/internal/guard"
	"github.com/nhle/lms-client/internal/keys"
	"github.com/nhle/lms-client/internal/model"
	"github.com/nhle/lms-client/internal/notify"
	"github.com/nhle/lms-client/internal/theme"
	"github.com/nhle/lms-client/internal/ui"
	"github.com/nhle/lms-client/internal/ui/command"
	configview "github.com/nhle/lms-client/internal/ui/config"
	"github.com/nhle/lms-client/internal/ui/detail"
	helpview "github.com/nhle/lms-client/internal/ui/help"
	"github.com/nhle/lms-client/internal/ui/home"
	"github.com/nhle/lms-client/internal/ui/inbox"
	"github.com/nhle/lms-client/internal/ui/login"
)

const expiredNotice = "Your session has expired. Please sign in again."

// navigateMsg asks the router to resolve and show path.
type navigateMsg struct {
	path string
}

// authResultMsg carries the outcome of a login or registration.
type authResultMsg struct {
	err error
}

// profileResultMsg carries the outcome of restoring a persisted session.
type profileResultMsg struct {
	err error
}

// markResultMsg carries the outcome of a mark-read request. The poller
// already reported any revert through an UpdateMsg.
type markResultMsg struct {
	err error
}

// settingsSavedMsg carries the outcome of writing the config file.
type settingsSavedMsg struct {
	err error
}

// Model is the root Bubble Tea model. It routes between views by path,
// consulting the route guard on every navigation, and reacts to session
// intents and notification updates.
type Model struct {
	svc     *Services
	cfgPath string
	keys    *keys.KeyMap
	layout  ui.Layout

	path        string
	returnPath  string
	loginNotice string
	showHelp    bool
	showPalette bool
	// viewingDetail is set while one notification is open in the inbox.
	viewingDetail bool

	banner    string
	bannerErr bool

	unread         int
	unreadMessages int

	login    login.Model
	home     home.Model
	inbox    inbox.Model
	detail   detail.Model
	palette  command.Model
	settings configview.Model
	helpView helpview.Model

	ready bool
}

// New creates the root model. cfgPath is where the settings view saves.
func New(svc *Services, cfgPath string) Model {
	k := keys.DefaultKeyMap()
	theme.Apply(svc.Config.Display.Theme)

	return Model{
		svc:      svc,
		cfgPath:  cfgPath,
		keys:     k,
		login:    login.New(80, 24),
		home:     home.New(80, 24),
		inbox:    inbox.New(k, 80, 24),
		detail:   detail.New(k, 80, 24),
		palette:  command.New(80, 24),
		settings: configview.New(80, 24),
		helpView: helpview.New(k, 80, 24),
	}
}

// Init starts the intent and update listeners, then either re-validates a
// persisted session or sends the user to the root path.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.svc.Auth.WaitForIntent(),
		m.svc.Poller.WaitForUpdate(),
	}
	if m.svc.Auth.State() == auth.StateAuthenticating {
		cmds = append(cmds, m.refreshProfile())
	} else {
		cmds = append(cmds, navigateTo(guard.RootPath))
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.login.SetSize(w, h)
		m.home.SetSize(w, h)
		m.inbox.SetSize(w, h)
		m.detail.SetSize(w, h)
		m.palette.SetSize(w, h)
		m.settings.SetSize(w, h)
		m.helpView.SetSize(w, h)
		return m.updateActiveView(msg)

	case navigateMsg:
		cmd := m.navigate(msg.path)
		return m, cmd

	case auth.Intent:
		cmd := m.handleIntent(msg)
		return m, tea.Batch(m.svc.Auth.WaitForIntent(), cmd)

	case profileResultMsg:
		// Failures arrive as a NavigateLogin intent.
		return m, nil

	case login.LoginSubmitMsg:
		mgr, req := m.svc.Auth, msg.Request
		return m, func() tea.Msg {
			_, err := mgr.Login(context.Background(), req)
			return authResultMsg{err: err}
		}

	case login.RegisterSubmitMsg:
		mgr, req := m.svc.Auth, msg.Request
		return m, func() tea.Msg {
			_, err := mgr.Register(context.Background(), req)
			return authResultMsg{err: err}
		}

	case authResultMsg:
		cmd := m.login.SetResult(msg.err)
		return m, cmd

	case login.SwitchModeMsg:
		if msg.Register {
			cmd := m.navigate(guard.RegisterPath)
			return m, cmd
		}
		cmd := m.navigate(guard.LoginPath)
		return m, cmd

	case notify.UpdateMsg:
		m.unread = msg.Unread
		m.unreadMessages = msg.UnreadMessages
		switch {
		case msg.Warning != nil:
			m.setBanner("Could not mark as read: "+msg.Warning.Error(), true)
		case msg.Err != nil:
			m.setBanner("Could not refresh notifications: "+msg.Err.Error(), false)
		default:
			m.clearBanner()
		}
		m.home.SetCounts(m.unread, m.unreadMessages, m.svc.Poller.Status())
		cmd := m.inbox.SetItems(m.svc.Poller.Items(), m.unread)
		if m.viewingDetail {
			m.refreshDetail()
		}
		return m, tea.Batch(m.svc.Poller.WaitForUpdate(), cmd)

	case inbox.OpenMsg:
		n := msg.Notification
		m.detail.SetItem(n)
		m.viewingDetail = true
		if n.IsRead {
			return m, nil
		}
		return m, m.markRead(n.ID)

	case detail.BackMsg:
		m.viewingDetail = false
		return m, nil

	case command.CommandMsg:
		m.showPalette = false
		return m.runCommand(string(msg))

	case command.CancelMsg:
		m.showPalette = false
		return m, nil

	case inbox.MarkReadMsg:
		return m, m.markRead(msg.ID)

	case inbox.MarkAllReadMsg:
		p := m.svc.Poller
		return m, func() tea.Msg {
			return markResultMsg{err: p.MarkAllRead(context.Background())}
		}

	case inbox.RefreshMsg:
		m.svc.Poller.Refresh()
		return m, nil

	case markResultMsg:
		if msg.err != nil {
			m.svc.Logger.Debug("mark read: %v", msg.err)
		}
		return m, nil

	case configview.SettingsSavedMsg:
		cfg, path := msg.Config, m.cfgPath
		*m.svc.Config = cfg
		theme.Apply(cfg.Display.Theme)
		return m, tea.Batch(
			func() tea.Msg { return settingsSavedMsg{err: model.SaveConfig(path, &cfg)} },
			navigateTo(guard.RootPath),
		)

	case configview.SettingsClosedMsg:
		return m, navigateTo(guard.RootPath)

	case settingsSavedMsg:
		if msg.err != nil {
			m.setBanner("Could not save settings: "+msg.err.Error(), true)
		} else {
			m.setBanner("Settings saved to "+m.cfgPath, false)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.svc.Poller.Stop()
			return m, tea.Quit
		}
		// Forms own the keyboard.
		if m.formActive() {
			return m.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			m.svc.Poller.Stop()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, m.keys.Command):
			m.showPalette = true
			m.showHelp = false
			cmd := m.palette.Focus()
			return m, cmd

		case m.showHelp && key.Matches(msg, m.keys.Back):
			m.showHelp = false
			return m, nil

		case key.Matches(msg, m.keys.Logout):
			m.svc.Auth.Logout()
			return m, nil

		case key.Matches(msg, m.keys.Inbox):
			cmd := m.navigate(guard.NotificationsPath)
			return m, cmd

		case key.Matches(msg, m.keys.Home):
			cmd := m.navigate(guard.RootPath)
			return m, cmd

		case key.Matches(msg, m.keys.Settings):
			cmd := m.navigate(guard.SettingsPath)
			return m, cmd

		case m.path == guard.NotificationsPath && !m.viewingDetail && key.Matches(msg, m.keys.Back):
			cmd := m.navigate(guard.RootPath)
			return m, cmd
		}
	}

	return m.updateActiveView(msg)
}

// handleIntent honors a navigation request from the session manager.
func (m *Model) handleIntent(intent auth.Intent) tea.Cmd {
	switch intent.Kind {
	case auth.NavigateHome:
		m.loginNotice = ""
		m.svc.Poller.Start(m.svc.Auth.Active())
		target := intent.Path
		if m.returnPath != "" {
			target, m.returnPath = m.returnPath, ""
		}
		return m.navigate(target)

	case auth.NavigateLogin:
		m.loginNotice = ""
		if intent.Expired {
			m.loginNotice = expiredNotice
		}
		m.showHelp = false
		m.clearBanner()
		m.svc.Poller.Reset()
		m.unread, m.unreadMessages = 0, 0
		return tea.Batch(m.inbox.SetItems(nil, 0), m.navigate(guard.LoginPath))
	}
	return nil
}

// navigate resolves path through the route guard and activates the view
// for the destination it returns.
func (m *Model) navigate(path string) tea.Cmd {
	var sess *model.Session
	if s, ok := m.svc.Auth.Session(); ok {
		sess = &s
	}

	d := guard.Navigate(sess, path)
	if d.Outcome == guard.RedirectToLogin && d.ReturnPath != "" {
		m.returnPath = d.ReturnPath
	}
	if d.Path == m.path && d.Outcome != guard.Render {
		return nil
	}
	m.path = d.Path
	m.showHelp = false
	m.showPalette = false
	m.viewingDetail = false

	switch d.Path {
	case guard.LoginPath:
		return m.login.Start(false, m.loginNotice)
	case guard.RegisterPath:
		return m.login.Start(true, "")
	case guard.SettingsPath:
		return m.settings.Start(*m.svc.Config)
	case guard.NotificationsPath:
		return m.inbox.SetItems(m.svc.Poller.Items(), m.svc.Poller.UnreadCount())
	case guard.UnauthorizedPath:
		return nil
	}

	if sess != nil {
		m.home.SetSession(*sess)
		m.home.SetCounts(m.unread, m.unreadMessages, m.svc.Poller.Status())
	}
	return nil
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if m.showPalette {
		m.palette, cmd = m.palette.Update(msg)
		return m, cmd
	}
	if m.showHelp {
		m.helpView, cmd = m.helpView.Update(msg)
		return m, cmd
	}

	switch m.path {
	case guard.LoginPath, guard.RegisterPath:
		m.login, cmd = m.login.Update(msg)
	case guard.SettingsPath:
		m.settings, cmd = m.settings.Update(msg)
	case guard.NotificationsPath:
		if m.viewingDetail {
			m.detail, cmd = m.detail.Update(msg)
		} else {
			m.inbox, cmd = m.inbox.Update(msg)
		}
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.title(), m.unread, m.syncStatus())
	banner := m.layout.RenderBanner(m.banner, m.bannerErr)
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, m.renderContent(), banner, statusBar)
}

// renderContent returns the rendered string for the current path.
func (m Model) renderContent() string {
	if m.showPalette {
		return m.palette.View()
	}
	if m.showHelp {
		return m.helpView.View()
	}

	switch m.path {
	case "":
		if m.svc.Auth.State() == auth.StateAuthenticating {
			return theme.HelpStyle.Render("Restoring your session...")
		}
		return ""
	case guard.LoginPath, guard.RegisterPath:
		return m.login.View()
	case guard.SettingsPath:
		return m.settings.View()
	case guard.NotificationsPath:
		if m.viewingDetail {
			return m.detail.View()
		}
		return m.inbox.View()
	case guard.UnauthorizedPath:
		return theme.PanelStyle.Render(
			theme.ErrorStyle.Render("You do not have access to this page.") + "\n" +
				theme.HelpStyle.Render("Press h to go to your home page."))
	default:
		return m.home.View()
	}
}

func (m Model) title() string {
	if s, ok := m.svc.Auth.Session(); ok {
		return "LMS · " + s.DisplayName
	}
	return "LMS"
}

// syncStatus returns a short string describing the poller state.
func (m Model) syncStatus() string {
	st := m.svc.Poller.Status()
	switch st.State {
	case notify.PollRunning:
		return "syncing"
	case notify.PollError:
		return "⚠ offline"
	}
	if !m.svc.Poller.Running() {
		return "idle"
	}
	if st.LastSync.IsZero() {
		return "waiting"
	}
	return fmt.Sprintf("synced %s", st.LastSync.Local().Format("15:04:05"))
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.showPalette {
		return "tab complete | enter run | esc close"
	}
	if m.showHelp {
		return "? close help | esc back"
	}
	if m.path == guard.NotificationsPath && m.viewingDetail {
		return "j/k scroll | esc back to inbox"
	}
	switch m.path {
	case guard.LoginPath, guard.RegisterPath:
		return "enter submit | ctrl+n switch form | ctrl+c quit"
	case guard.SettingsPath:
		return "enter next | esc cancel"
	case guard.NotificationsPath:
		return "enter/m mark read | M mark all | r refresh | esc back | ? help"
	default:
		return "n notifications | s settings | : command | L log out | q quit | ? help"
	}
}

func (m Model) formActive() bool {
	if m.showPalette {
		return true
	}
	switch m.path {
	case guard.LoginPath, guard.RegisterPath, guard.SettingsPath:
		return !m.showHelp
	}
	return false
}

func (m Model) refreshProfile() tea.Cmd {
	mgr := m.svc.Auth
	return func() tea.Msg {
		return profileResultMsg{err: mgr.RefreshProfile(context.Background())}
	}
}

// runCommand executes a command palette entry.
func (m Model) runCommand(name string) (tea.Model, tea.Cmd) {
	switch name {
	case command.Home:
		cmd := m.navigate(guard.RootPath)
		return m, cmd
	case command.Notifications:
		cmd := m.navigate(guard.NotificationsPath)
		return m, cmd
	case command.Settings:
		cmd := m.navigate(guard.SettingsPath)
		return m, cmd
	case command.Refresh:
		m.svc.Poller.Refresh()
	case command.ReadAll:
		return m.Update(inbox.MarkAllReadMsg{})
	case command.Logout:
		m.svc.Auth.Logout()
	case command.Quit:
		m.svc.Poller.Stop()
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) markRead(id string) tea.Cmd {
	p := m.svc.Poller
	return func() tea.Msg {
		return markResultMsg{err: p.MarkRead(context.Background(), id)}
	}
}

// refreshDetail re-reads the open notification from the cache.
func (m *Model) refreshDetail() {
	id := m.detail.ID()
	for _, n := range m.svc.Poller.Items() {
		if n.ID == id {
			m.detail.SetItem(n)
			return
		}
	}
}

func (m *Model) setBanner(text string, isError bool) {
	m.banner = text
	m.bannerErr = isError
}

func (m *Model) clearBanner() {
	m.banner = ""
	m.bannerErr = false
}

func navigateTo(path string) tea.Cmd {
	return func() tea.Msg { return navigateMsg{path: path} }
}
