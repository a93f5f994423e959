package main

import (
	"bytes"
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/lms-client/internal/app"
	"github.com/nhle/lms-client/internal/credential"
	"github.com/nhle/lms-client/internal/logging"
	"github.com/nhle/lms-client/internal/model"
	"github.com/nhle/lms-client/tests/testutil"
)

type cliEnv struct {
	cli    *commandLine
	out    *bytes.Buffer
	srv    *testutil.FakeLMS
	tokens *credential.Store
}

func setup(t *testing.T) *cliEnv {
	t.Helper()
	srv := testutil.NewFakeLMS(t)
	srv.AddAccount(testutil.StudentAccount())
	srv.SetNotifications(testutil.Notifications(5, 2))

	tokens := testutil.NewTestTokens(t)
	return &cliEnv{srv: srv, tokens: tokens, out: &bytes.Buffer{}}
}

// start wires fresh services over the env's keyring, as a new process would.
func (e *cliEnv) start(t *testing.T) *commandLine {
	t.Helper()
	cfg := &model.AppConfig{
		Server:        model.ServerConfig{BaseURL: e.srv.BaseURL(), TimeoutSec: 5},
		Notifications: model.NotificationConfig{PollIntervalSec: 30},
	}
	svc := app.Wire(cfg, logging.Discard(), e.tokens, testutil.NewTestStore(t))
	t.Cleanup(func() { svc.Poller.Stop() })

	e.out.Reset()
	e.cli = &commandLine{svc: svc, cfgPath: t.TempDir() + "/config.yaml", out: e.out}
	return e.cli
}

func mockPassword(t *testing.T, pwd string) {
	t.Helper()
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func runCLI(t *testing.T, cli *commandLine, tt cliTest) {
	t.Helper()
	err := cli.run(append([]string{"lms"}, tt.args...))
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		require.Error(t, err)
		assert.Contains(t, err.Error(), tt.wantErrStr)
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_usage(t *testing.T) {
	e := setup(t)
	mockPassword(t, "")

	tests := []cliTest{
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "login: no email", args: []string{"login"}, wantErr: errHelp},
		{name: "login: empty password", args: []string{"login", "-email", "a@b.com"}, wantErr: errHelp},
		{name: "login: bad flag", args: []string{"login", "-nope"}, wantErr: errHelp},
		{name: "register: missing names", args: []string{"register", "-email", "a@b.com"}, wantErr: errHelp},
		{name: "read: no id", args: []string{"read"}, wantErr: errHelp},
		{name: "whoami: signed out", args: []string{"whoami"}, wantErr: errNotSignedIn},
		{name: "notifications: signed out", args: []string{"notifications"}, wantErr: errNotSignedIn},
		{name: "logout: signed out", args: []string{"logout"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runCLI(t, e.start(t), tt)
		})
	}
}

func Test_commandLine_tui(t *testing.T) {
	e := setup(t)
	cli := e.start(t)

	var got tea.Model
	orig := runProgramFunc
	runProgramFunc = func(m tea.Model) error { got = m; return nil }
	t.Cleanup(func() { runProgramFunc = orig })

	require.NoError(t, cli.run([]string{"lms"}))
	assert.IsType(t, app.Model{}, got)

	got = nil
	require.NoError(t, cli.run([]string{"lms", "tui"}))
	assert.NotNil(t, got)
}

func Test_commandLine_sessionAcrossRuns(t *testing.T) {
	e := setup(t)
	acct := testutil.StudentAccount()

	mockPassword(t, "wrong-password")
	runCLI(t, e.start(t), cliTest{args: []string{"login", "-email", acct.Email}, wantErrStr: "invalid credentials"})

	mockPassword(t, acct.Password)
	runCLI(t, e.start(t), cliTest{args: []string{"login", "-email", acct.Email}})
	assert.Contains(t, e.out.String(), "Signed in as Ada Lovelace (student)")

	// A new process restores the persisted token through /users/me.
	runCLI(t, e.start(t), cliTest{args: []string{"whoami"}})
	assert.Contains(t, e.out.String(), "a@b.com")
	assert.Len(t, e.srv.RequestsTo("me"), 1)

	runCLI(t, e.start(t), cliTest{args: []string{"notifications", "-unread"}})
	out := e.out.String()
	assert.Contains(t, out, "5 notifications, 2 unread (1 messages)")
	assert.Contains(t, out, "n1")
	assert.NotContains(t, out, "n5")

	runCLI(t, e.start(t), cliTest{args: []string{"read", "-id", "n1"}})
	assert.Contains(t, e.out.String(), "Marked n1 read")
	assert.True(t, e.srv.Notifications()[0].IsRead)

	runCLI(t, e.start(t), cliTest{args: []string{"read-all"}})
	for _, n := range e.srv.Notifications() {
		assert.True(t, n.IsRead, n.ID)
	}

	runCLI(t, e.start(t), cliTest{args: []string{"logout"}})
	assert.Contains(t, e.out.String(), "Signed out")
	_, ok := e.tokens.Read()
	assert.False(t, ok)

	runCLI(t, e.start(t), cliTest{args: []string{"whoami"}, wantErr: errNotSignedIn})
}

func Test_commandLine_revokedToken(t *testing.T) {
	e := setup(t)
	acct := testutil.StudentAccount()
	require.NoError(t, e.tokens.Save(acct.Token, acct.User))
	e.srv.RevokeToken(acct.Token)

	runCLI(t, e.start(t), cliTest{args: []string{"whoami"}, wantErrStr: "session expired"})
	_, ok := e.tokens.Read()
	assert.False(t, ok)
}

func Test_commandLine_history(t *testing.T) {
	e := setup(t)
	cli := e.start(t)
	mockPassword(t, testutil.StudentAccount().Password)

	runCLI(t, cli, cliTest{args: []string{"history"}})
	assert.Contains(t, e.out.String(), "No notification snapshot yet")

	runCLI(t, cli, cliTest{args: []string{"login", "-email", "a@b.com"}})
	require.NoError(t, cli.svc.Poller.Sync(context.Background()))

	e.out.Reset()
	runCLI(t, cli, cliTest{args: []string{"history", "-limit", "10"}})
	out := e.out.String()
	assert.Contains(t, out, "login")
	assert.Contains(t, out, "5 notifications, 2 unread")
}

func Test_commandLine_loginWithPersistedToken(t *testing.T) {
	acct := testutil.StudentAccount()

	t.Run("token still valid", func(t *testing.T) {
		e := setup(t)
		mockPassword(t, acct.Password)
		runCLI(t, e.start(t), cliTest{args: []string{"login", "-email", acct.Email}})

		runCLI(t, e.start(t), cliTest{args: []string{"login", "-email", acct.Email}})
		assert.Contains(t, e.out.String(), "Already signed in as Ada Lovelace (student)")
		assert.Len(t, e.srv.RequestsTo("login"), 1)
	})

	t.Run("token revoked", func(t *testing.T) {
		e := setup(t)
		mockPassword(t, acct.Password)
		runCLI(t, e.start(t), cliTest{args: []string{"login", "-email", acct.Email}})
		e.srv.RevokeToken(acct.Token)

		cli := e.start(t)
		runCLI(t, cli, cliTest{args: []string{"login", "-email", acct.Email}})
		assert.Contains(t, e.out.String(), "Signed in as Ada Lovelace (student)")
		assert.Len(t, e.srv.RequestsTo("login"), 2)

		creds, ok := e.tokens.Read()
		require.True(t, ok)
		assert.Equal(t, acct.Token, creds.Token)
	})

	t.Run("register while signed in", func(t *testing.T) {
		e := setup(t)
		mockPassword(t, acct.Password)
		runCLI(t, e.start(t), cliTest{args: []string{"login", "-email", acct.Email}})

		mockPassword(t, "Compiler1")
		runCLI(t, e.start(t), cliTest{args: []string{
			"register", "-email", "grace@navy.mil", "-first", "Grace", "-last", "Hopper",
		}})
		assert.Contains(t, e.out.String(), "Already signed in as Ada Lovelace")
		assert.Empty(t, e.srv.RequestsTo("register"))
	})
}
