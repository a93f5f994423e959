package app

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/lms-client/internal/apiclient"
	"github.com/nhle/lms-client/internal/auth"
	"github.com/nhle/lms-client/internal/guard"
	"github.com/nhle/lms-client/internal/logging"
	"github.com/nhle/lms-client/internal/model"
	"github.com/nhle/lms-client/internal/notify"
	"github.com/nhle/lms-client/internal/ui/command"
	"github.com/nhle/lms-client/internal/ui/detail"
	"github.com/nhle/lms-client/internal/ui/inbox"
	"github.com/nhle/lms-client/internal/ui/login"
	"github.com/nhle/lms-client/tests/testutil"
)

func newTestModel(t *testing.T) (Model, *testutil.FakeLMS) {
	t.Helper()
	srv := testutil.NewFakeLMS(t)
	srv.AddAccount(testutil.StudentAccount())
	srv.SetNotifications(testutil.Notifications(4, 2))

	cfg := &model.AppConfig{
		Server:        model.ServerConfig{BaseURL: srv.BaseURL(), TimeoutSec: 5},
		Notifications: model.NotificationConfig{PollIntervalSec: 60},
		Display:       model.DisplayConfig{Theme: "mono"},
	}
	svc := Wire(cfg, logging.Discard(), testutil.NewTestTokens(t), testutil.NewTestStore(t))
	t.Cleanup(func() { svc.Poller.Stop() })

	m := New(svc, t.TempDir()+"/config.yaml")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model), srv
}

// step feeds msg to m and returns the updated model.
func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// nextIntent waits for the session manager's next navigation request.
func nextIntent(t *testing.T, m Model) auth.Intent {
	t.Helper()
	select {
	case in := <-m.svc.Auth.Intents():
		return in
	case <-time.After(2 * time.Second):
		t.Fatal("no intent emitted")
		return auth.Intent{}
	}
}

func signIn(t *testing.T, m Model) Model {
	t.Helper()
	acct := testutil.StudentAccount()
	m, cmd := step(t, m, loginSubmit(acct.Email, acct.Password))
	require.NotNil(t, cmd)
	m, _ = step(t, m, cmd())
	m, _ = step(t, m, nextIntent(t, m))
	return m
}

func loginSubmit(email, password string) tea.Msg {
	return login.LoginSubmitMsg{Request: apiclient.LoginRequest{Email: email, Password: password}}
}

func TestModel_RootWithoutSessionShowsLogin(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = step(t, m, navigateMsg{path: guard.RootPath})
	assert.Equal(t, guard.LoginPath, m.path)
	assert.Contains(t, m.View(), "Sign in")
}

func TestModel_LoginNavigatesToRoleHomeAndPolls(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = step(t, m, navigateMsg{path: guard.RootPath})

	m = signIn(t, m)
	assert.Equal(t, guard.StudentHomePath, m.path)
	assert.True(t, m.svc.Poller.Running())

	assert.Eventually(t, func() bool {
		return m.svc.Poller.UnreadCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	m, _ = step(t, m, notify.UpdateMsg{Unread: 2, UnreadMessages: 1})
	assert.Equal(t, 2, m.unread)
	assert.Contains(t, m.View(), "Welcome, Ada Lovelace")
}

func TestModel_LoginReturnsToRequestedPath(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = step(t, m, navigateMsg{path: guard.NotificationsPath})
	require.Equal(t, guard.LoginPath, m.path)
	assert.Equal(t, guard.NotificationsPath, m.returnPath)

	m = signIn(t, m)
	assert.Equal(t, guard.NotificationsPath, m.path)
	assert.Empty(t, m.returnPath)
}

func TestModel_WrongRoleGoesHome(t *testing.T) {
	m, _ := newTestModel(t)
	m = signIn(t, m)

	m, _ = step(t, m, navigateMsg{path: guard.AdminHomePath})
	assert.Equal(t, guard.StudentHomePath, m.path)
}

func TestModel_FailedLoginStaysOnForm(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = step(t, m, navigateMsg{path: guard.RootPath})

	m, cmd := step(t, m, loginSubmit("a@b.com", "wrong-password"))
	msg := cmd()
	res, ok := msg.(authResultMsg)
	require.True(t, ok)
	assert.True(t, apiclient.IsKind(res.err, apiclient.KindInvalidCredentials))

	m, _ = step(t, m, msg)
	assert.Equal(t, guard.LoginPath, m.path)
	assert.Equal(t, auth.StateUnauthenticated, m.svc.Auth.State())
}

func TestModel_LogoutKeyReturnsToLogin(t *testing.T) {
	m, _ := newTestModel(t)
	m = signIn(t, m)

	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("L")})
	in := nextIntent(t, m)
	assert.Equal(t, auth.NavigateLogin, in.Kind)
	assert.False(t, in.Expired)

	m, _ = step(t, m, in)
	assert.Equal(t, guard.LoginPath, m.path)
	assert.False(t, m.svc.Poller.Running())
	assert.Empty(t, m.svc.Poller.Items())
	assert.Zero(t, m.unread)
}

func TestModel_HelpToggle(t *testing.T) {
	m, _ := newTestModel(t)
	m = signIn(t, m)
	help := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")}

	m, _ = step(t, m, help)
	assert.True(t, m.showHelp)
	assert.Contains(t, m.View(), "Keyboard Shortcuts")

	m, _ = step(t, m, help)
	assert.False(t, m.showHelp)
	assert.NotContains(t, m.View(), "Keyboard Shortcuts")

	m, _ = step(t, m, help)
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.showHelp)
	assert.Equal(t, guard.StudentHomePath, m.path)
}

func TestModel_RevokedTokenShowsExpiredNotice(t *testing.T) {
	m, srv := newTestModel(t)
	m = signIn(t, m)

	srv.RevokeToken(testutil.StudentAccount().Token)
	err := m.svc.Poller.Sync(context.Background())
	require.Error(t, err)

	in := nextIntent(t, m)
	require.True(t, in.Expired)
	m, _ = step(t, m, in)

	assert.Equal(t, guard.LoginPath, m.path)
	assert.Equal(t, expiredNotice, m.loginNotice)
	assert.Contains(t, m.View(), expiredNotice)
}

func TestModel_UpdateWarningShowsBanner(t *testing.T) {
	m, _ := newTestModel(t)
	m = signIn(t, m)

	m, _ = step(t, m, notify.UpdateMsg{Unread: 3, Warning: errors.New("boom")})
	assert.Equal(t, 3, m.unread)
	assert.True(t, m.bannerErr)
	assert.Contains(t, m.banner, "boom")

	m, _ = step(t, m, notify.UpdateMsg{Unread: 3})
	assert.Empty(t, m.banner)
}

func TestModel_OpenNotificationMarksRead(t *testing.T) {
	m, srv := newTestModel(t)
	m = signIn(t, m)
	// Stop background polling so only this Sync fills the cache.
	m.svc.Poller.Stop()
	require.NoError(t, m.svc.Poller.Sync(context.Background()))

	m, _ = step(t, m, navigateMsg{path: guard.NotificationsPath})
	require.Equal(t, guard.NotificationsPath, m.path)

	first := m.svc.Poller.Items()[0]
	require.False(t, first.IsRead)

	m, cmd := step(t, m, inbox.OpenMsg{Notification: first})
	assert.True(t, m.viewingDetail)
	require.NotNil(t, cmd)
	res, ok := cmd().(markResultMsg)
	require.True(t, ok)
	require.NoError(t, res.err)
	assert.True(t, srv.Notifications()[0].IsRead)
	assert.Equal(t, 1, m.svc.Poller.UnreadCount())

	m, _ = step(t, m, detail.BackMsg{})
	assert.False(t, m.viewingDetail)
}

func TestModel_PaletteRunsCommands(t *testing.T) {
	m, _ := newTestModel(t)
	m = signIn(t, m)

	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(":")})
	assert.True(t, m.showPalette)
	assert.Contains(t, m.View(), "Command Palette")

	m, _ = step(t, m, command.CommandMsg(command.Notifications))
	assert.False(t, m.showPalette)
	assert.Equal(t, guard.NotificationsPath, m.path)

	m, _ = step(t, m, command.CommandMsg(command.Logout))
	in := nextIntent(t, m)
	assert.Equal(t, auth.NavigateLogin, in.Kind)
}
