package auth_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/lms-client/internal/apiclient"
	"github.com/nhle/lms-client/internal/auth"
	"github.com/nhle/lms-client/internal/credential"
	"github.com/nhle/lms-client/internal/model"
	"github.com/nhle/lms-client/tests/testutil"
)

type recorder struct {
	mu     sync.Mutex
	events []model.SessionEvent
}

func (r *recorder) RecordSessionEvent(_ context.Context, ev model.SessionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) kinds() []model.SessionEventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.SessionEventKind
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type harness struct {
	srv    *testutil.FakeLMS
	tokens *credential.Store
	client *apiclient.Client
	events *recorder
	now    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := testutil.NewFakeLMS(t)
	srv.AddAccount(testutil.StudentAccount())
	tokens := testutil.NewTestTokens(t)
	return &harness{
		srv:    srv,
		tokens: tokens,
		client: apiclient.New(srv.BaseURL(), tokens),
		events: &recorder{},
		now:    time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC),
	}
}

// manager builds a Manager over the harness state and wires it as the
// client's 401 handler.
func (h *harness) manager() *auth.Manager {
	m := auth.New(h.client, h.tokens, auth.Options{
		Events: h.events,
		Now:    func() time.Time { return h.now },
	})
	h.client.SetUnauthorizedHandler(m)
	return m
}

func drain(m *auth.Manager) []auth.Intent {
	var out []auth.Intent
	for {
		select {
		case intent := <-m.Intents():
			out = append(out, intent)
		default:
			return out
		}
	}
}

func signedToken(t *testing.T, issued, expires time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		IssuedAt:  issued.Unix(),
		ExpiresAt: expires.Unix(),
		Subject:   "u1",
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func studentLogin() apiclient.LoginRequest {
	return apiclient.LoginRequest{Email: "a@b.com", Password: "Secret123"}
}

func TestManager_InitialState(t *testing.T) {
	t.Run("no persisted token", func(t *testing.T) {
		h := newHarness(t)
		m := h.manager()
		assert.Equal(t, auth.StateUnauthenticated, m.State())
		assert.False(t, m.Active())
	})

	t.Run("persisted token", func(t *testing.T) {
		h := newHarness(t)
		acct := testutil.StudentAccount()
		require.NoError(t, h.tokens.Save(acct.Token, acct.User))

		m := h.manager()
		assert.Equal(t, auth.StateAuthenticating, m.State())
		_, ok := m.Session()
		assert.False(t, ok)
	})

	t.Run("persisted token already expired", func(t *testing.T) {
		h := newHarness(t)
		token := signedToken(t, h.now.Add(-2*time.Hour), h.now.Add(-time.Hour))
		require.NoError(t, h.tokens.Save(token, testutil.StudentAccount().User))

		m := h.manager()
		assert.Equal(t, auth.StateUnauthenticated, m.State())
		_, ok := h.tokens.Read()
		assert.False(t, ok)
		assert.Equal(t, []model.SessionEventKind{model.SessionEventExpired}, h.events.kinds())
	})
}

func TestManager_LoginScenario(t *testing.T) {
	h := newHarness(t)
	m := h.manager()

	session, err := m.Login(context.Background(), studentLogin())
	require.NoError(t, err)
	assert.Equal(t, "u1", session.UserID)
	assert.Equal(t, model.RoleStudent, session.Role)
	assert.Equal(t, "tok1", session.Token)
	assert.Equal(t, "Ada Lovelace", session.DisplayName)

	assert.Equal(t, auth.StateAuthenticated, m.State())
	assert.True(t, m.Active())

	creds, ok := h.tokens.Read()
	require.True(t, ok)
	assert.Equal(t, "tok1", creds.Token)
	assert.Equal(t, "u1", creds.User.ID)

	require.NoError(t, m.RefreshProfile(context.Background()))
	reqs := h.srv.RequestsTo("me")
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer tok1", reqs[0].Authorization)

	assert.Equal(t, []auth.Intent{{Kind: auth.NavigateHome, Path: "/student"}}, drain(m))
	assert.Equal(t, []model.SessionEventKind{model.SessionEventLogin}, h.events.kinds())
}

func TestManager_LoginValidation(t *testing.T) {
	tests := []struct {
		name  string
		req   apiclient.LoginRequest
		field string
	}{
		{name: "missing password", req: apiclient.LoginRequest{Email: "a@b.com"}, field: "password"},
		{name: "missing email", req: apiclient.LoginRequest{Password: "Secret123"}, field: "email"},
		{name: "bad email", req: apiclient.LoginRequest{Email: "nope", Password: "Secret123"}, field: "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			m := h.manager()

			_, err := m.Login(context.Background(), tt.req)
			require.Error(t, err)

			var apiErr *apiclient.Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, apiclient.KindValidation, apiErr.Kind)
			require.Len(t, apiErr.Fields, 1)
			assert.Equal(t, tt.field, apiErr.Fields[0].Field)

			assert.Empty(t, h.srv.Requests())
			assert.Equal(t, auth.StateUnauthenticated, m.State())
		})
	}
}

func TestManager_InvalidCredentials(t *testing.T) {
	h := newHarness(t)
	m := h.manager()

	_, err := m.Login(context.Background(), apiclient.LoginRequest{Email: "a@b.com", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, apiclient.IsKind(err, apiclient.KindInvalidCredentials), "got %v", err)
	assert.Contains(t, err.Error(), "Invalid email or password")

	// The server answered 401, which always leaves no session behind.
	assert.Equal(t, auth.StateUnauthenticated, m.State())
	assert.Error(t, m.Err())
	_, ok := h.tokens.Read()
	assert.False(t, ok)
	assert.Empty(t, drain(m))

	// Error is not terminal.
	_, err = m.Login(context.Background(), studentLogin())
	require.NoError(t, err)
	assert.Equal(t, auth.StateAuthenticated, m.State())
	assert.NoError(t, m.Err())
}

func TestManager_MalformedLoginResponse(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{name: "token only", body: map[string]interface{}{"token": "tok1"}},
		{name: "user only", body: map[string]interface{}{"user": map[string]string{"_id": "u1", "role": "student"}}},
		{name: "nested envelope", body: map[string]interface{}{
			"data": map[string]interface{}{"token": "tok1", "user": map[string]string{"_id": "u1", "role": "student"}},
		}},
		{name: "user without id", body: map[string]interface{}{
			"token": "tok1", "user": map[string]string{"role": "student"},
		}},
		{name: "unknown role", body: map[string]interface{}{
			"token": "tok1", "user": map[string]string{"_id": "u1", "role": "janitor"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.srv.Override("login", func(w http.ResponseWriter, _ *http.Request) {
				testutil.WriteJSON(w, http.StatusOK, tt.body)
			})
			m := h.manager()

			_, err := m.Login(context.Background(), studentLogin())
			assert.True(t, apiclient.IsKind(err, apiclient.KindMalformedResponse), "got %v", err)
			assert.Equal(t, auth.StateError, m.State())
			_, ok := h.tokens.Read()
			assert.False(t, ok)
		})
	}
}

func TestManager_NetworkErrorOnLogin(t *testing.T) {
	h := newHarness(t)
	m := h.manager()
	h.srv.Server.Close()

	_, err := m.Login(context.Background(), studentLogin())
	assert.True(t, apiclient.IsKind(err, apiclient.KindNetwork), "got %v", err)
	assert.Equal(t, auth.StateError, m.State())
}

func TestManager_LoginThenLogoutLeavesStoreEmpty(t *testing.T) {
	h := newHarness(t)
	m := h.manager()

	for i := 0; i < 3; i++ {
		_, err := m.Login(context.Background(), studentLogin())
		require.NoError(t, err)
		m.Logout()

		_, ok := h.tokens.Read()
		assert.False(t, ok)
		assert.Equal(t, auth.StateUnauthenticated, m.State())
	}

	intents := drain(m)
	require.Len(t, intents, 6)
	assert.Equal(t, auth.Intent{Kind: auth.NavigateLogin}, intents[1])
}

func TestManager_LoginWhileAuthenticatedIsRejected(t *testing.T) {
	h := newHarness(t)
	m := h.manager()

	_, err := m.Login(context.Background(), studentLogin())
	require.NoError(t, err)

	_, err = m.Login(context.Background(), studentLogin())
	assert.True(t, apiclient.IsKind(err, apiclient.KindValidation))
	assert.Equal(t, auth.StateAuthenticated, m.State())
}

func TestManager_ConcurrentLoginIsRejected(t *testing.T) {
	h := newHarness(t)
	acct := testutil.StudentAccount()
	release := make(chan struct{})
	h.srv.Override("login", func(w http.ResponseWriter, _ *http.Request) {
		<-release
		testutil.WriteJSON(w, http.StatusOK, map[string]interface{}{"user": acct.User, "token": acct.Token})
	})
	m := h.manager()

	done := make(chan error, 1)
	go func() {
		_, err := m.Login(context.Background(), studentLogin())
		done <- err
	}()

	assert.Eventually(t, func() bool {
		return m.State() == auth.StateAuthenticating
	}, time.Second, 5*time.Millisecond)

	_, err := m.Login(context.Background(), studentLogin())
	require.Error(t, err)
	assert.True(t, apiclient.IsKind(err, apiclient.KindValidation))
	assert.Contains(t, err.Error(), "already in progress")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, auth.StateAuthenticated, m.State())
	assert.Len(t, h.srv.RequestsTo("login"), 1)
}

func TestManager_LogoutDuringLoginDiscardsResult(t *testing.T) {
	h := newHarness(t)
	acct := testutil.StudentAccount()
	release := make(chan struct{})
	h.srv.Override("login", func(w http.ResponseWriter, _ *http.Request) {
		<-release
		testutil.WriteJSON(w, http.StatusOK, map[string]interface{}{"user": acct.User, "token": acct.Token})
	})
	m := h.manager()

	done := make(chan error, 1)
	go func() {
		_, err := m.Login(context.Background(), studentLogin())
		done <- err
	}()
	assert.Eventually(t, func() bool {
		return m.State() == auth.StateAuthenticating
	}, time.Second, 5*time.Millisecond)

	m.Logout()
	close(release)

	assert.Error(t, <-done)
	assert.Equal(t, auth.StateUnauthenticated, m.State())
	_, ok := h.tokens.Read()
	assert.False(t, ok)
}

func TestManager_UnauthorizedEndsSessionOnce(t *testing.T) {
	h := newHarness(t)
	m := h.manager()

	_, err := m.Login(context.Background(), studentLogin())
	require.NoError(t, err)
	drain(m)

	h.srv.SetNotifications(testutil.Notifications(3, 1))
	h.srv.RevokeToken("tok1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = h.client.ListNotifications(context.Background())
			} else {
				_, _ = h.client.Me(context.Background())
			}
		}(i)
	}
	wg.Wait()

	_, ok := h.tokens.Read()
	assert.False(t, ok)
	assert.Equal(t, auth.StateUnauthenticated, m.State())
	_, ok = m.Session()
	assert.False(t, ok)

	assert.Equal(t, []auth.Intent{{Kind: auth.NavigateLogin, Expired: true}}, drain(m))
	assert.Equal(t,
		[]model.SessionEventKind{model.SessionEventLogin, model.SessionEventExpired},
		h.events.kinds())
}

func TestManager_UnauthorizedFromStaleSessionIsIgnored(t *testing.T) {
	h := newHarness(t)
	m := h.manager()

	_, err := m.Login(context.Background(), studentLogin())
	require.NoError(t, err)
	drain(m)

	m.HandleUnauthorized("some-older-token")
	assert.Equal(t, auth.StateAuthenticated, m.State())
	assert.Empty(t, drain(m))
}

func TestManager_RefreshProfile(t *testing.T) {
	t.Run("restores persisted session", func(t *testing.T) {
		h := newHarness(t)
		acct := testutil.StudentAccount()
		require.NoError(t, h.tokens.Save(acct.Token, acct.User))
		m := h.manager()

		require.NoError(t, m.RefreshProfile(context.Background()))
		assert.Equal(t, auth.StateAuthenticated, m.State())
		session, ok := m.Session()
		require.True(t, ok)
		assert.Equal(t, "u1", session.UserID)
		assert.Equal(t, []auth.Intent{{Kind: auth.NavigateHome, Path: "/student"}}, drain(m))
		assert.Equal(t, []model.SessionEventKind{model.SessionEventRestore}, h.events.kinds())
	})

	t.Run("not allowed without session", func(t *testing.T) {
		h := newHarness(t)
		m := h.manager()

		err := m.RefreshProfile(context.Background())
		assert.True(t, apiclient.IsKind(err, apiclient.KindValidation))
		assert.Empty(t, h.srv.Requests())
	})

	t.Run("profile missing identity invalidates", func(t *testing.T) {
		h := newHarness(t)
		m := h.manager()
		_, err := m.Login(context.Background(), studentLogin())
		require.NoError(t, err)
		drain(m)

		h.srv.Override("me", func(w http.ResponseWriter, _ *http.Request) {
			testutil.WriteJSON(w, http.StatusOK, map[string]interface{}{"user": map[string]string{"role": "student"}})
		})

		err = m.RefreshProfile(context.Background())
		assert.True(t, apiclient.IsKind(err, apiclient.KindMalformedResponse), "got %v", err)
		assert.Equal(t, auth.StateUnauthenticated, m.State())
		_, ok := h.tokens.Read()
		assert.False(t, ok)
		assert.Equal(t, []auth.Intent{{Kind: auth.NavigateLogin, Expired: true}}, drain(m))
	})

	t.Run("server error invalidates", func(t *testing.T) {
		h := newHarness(t)
		acct := testutil.StudentAccount()
		require.NoError(t, h.tokens.Save(acct.Token, acct.User))
		h.srv.Override("me", func(w http.ResponseWriter, _ *http.Request) {
			testutil.WriteJSON(w, http.StatusInternalServerError, map[string]string{"message": "boom"})
		})
		m := h.manager()

		assert.Error(t, m.RefreshProfile(context.Background()))
		assert.Equal(t, auth.StateUnauthenticated, m.State())
		_, ok := h.tokens.Read()
		assert.False(t, ok)
	})

	t.Run("revoked persisted token", func(t *testing.T) {
		h := newHarness(t)
		acct := testutil.StudentAccount()
		require.NoError(t, h.tokens.Save(acct.Token, acct.User))
		h.srv.RevokeToken(acct.Token)
		m := h.manager()

		err := m.RefreshProfile(context.Background())
		assert.True(t, apiclient.IsKind(err, apiclient.KindSessionExpired))
		assert.Equal(t, auth.StateUnauthenticated, m.State())
		assert.Len(t, drain(m), 1)
	})
}

func TestManager_TokenExpiry(t *testing.T) {
	h := newHarness(t)
	acct := testutil.StudentAccount()
	acct.Token = signedToken(t, h.now.Add(-time.Minute), h.now.Add(time.Hour))
	h.srv.AddAccount(acct)
	m := h.manager()

	session, err := m.Login(context.Background(), studentLogin())
	require.NoError(t, err)
	assert.Equal(t, h.now.Add(time.Hour).Unix(), session.TokenExpiry.Unix())
	assert.Equal(t, h.now.Add(-time.Minute).Unix(), session.TokenIssuedAt.Unix())
	assert.True(t, m.Active())
	drain(m)

	h.now = h.now.Add(2 * time.Hour)
	assert.False(t, m.Active())
	assert.Equal(t, auth.StateUnauthenticated, m.State())
	_, ok := h.tokens.Read()
	assert.False(t, ok)
	assert.Equal(t, []auth.Intent{{Kind: auth.NavigateLogin, Expired: true}}, drain(m))
}

func TestManager_Register(t *testing.T) {
	reg := apiclient.RegisterRequest{
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     "grace@navy.mil",
		Password:  "Compiler1",
		Role:      model.RoleInstructor,
	}

	t.Run("signs in new account", func(t *testing.T) {
		h := newHarness(t)
		m := h.manager()

		session, err := m.Register(context.Background(), reg)
		require.NoError(t, err)
		assert.Equal(t, model.RoleInstructor, session.Role)
		assert.Equal(t, "Grace Hopper", session.DisplayName)
		assert.Equal(t, []auth.Intent{{Kind: auth.NavigateHome, Path: "/instructor"}}, drain(m))
		assert.Equal(t, []model.SessionEventKind{model.SessionEventRegister}, h.events.kinds())
	})

	t.Run("existing account", func(t *testing.T) {
		h := newHarness(t)
		m := h.manager()
		dup := reg
		dup.Email = "a@b.com"

		_, err := m.Register(context.Background(), dup)
		assert.True(t, apiclient.IsKind(err, apiclient.KindInvalidCredentials), "got %v", err)
		assert.Equal(t, auth.StateError, m.State())
	})

	t.Run("local validation", func(t *testing.T) {
		h := newHarness(t)
		m := h.manager()
		bad := reg
		bad.Password = "short"
		bad.Role = model.RoleAdmin

		_, err := m.Register(context.Background(), bad)
		var apiErr *apiclient.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, apiclient.KindValidation, apiErr.Kind)
		assert.Len(t, apiErr.Fields, 2)
		assert.Empty(t, h.srv.Requests())
	})
}
