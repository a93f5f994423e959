package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/nhle/lms-client/internal/apiclient"
	"github.com/nhle/lms-client/internal/credential"
	"github.com/nhle/lms-client/internal/guard"
	"github.com/nhle/lms-client/internal/logging"
	"github.com/nhle/lms-client/internal/model"
)

// API is the part of the LMS backend the session manager talks to.
type API interface {
	Login(ctx context.Context, req apiclient.LoginRequest) (*apiclient.AuthEnvelope, error)
	Register(ctx context.Context, req apiclient.RegisterRequest) (*apiclient.AuthEnvelope, error)
	Me(ctx context.Context) (*model.User, error)
}

// TokenStore persists the bearer token together with its user.
type TokenStore interface {
	Save(token string, user model.User) error
	Read() (credential.Credentials, bool)
	Clear() error
}

// EventRecorder receives the session audit trail.
type EventRecorder interface {
	RecordSessionEvent(ctx context.Context, ev model.SessionEvent) error
}

// Options holds the optional collaborators of a Manager.
type Options struct {
	Events EventRecorder
	Logger logging.Logger

	// Now is mockable; defaults to time.Now.
	Now func() time.Time
}

const (
	intentBuffer  = 16
	recordTimeout = 5 * time.Second
)

// Manager owns the current session and every transition of it. It is safe
// for concurrent use; all transitions happen under one lock and the token
// store is written in the same critical section as the in-memory session.
type Manager struct {
	api       API
	tokens    TokenStore
	events    EventRecorder
	logger    logging.Logger
	validator *inputValidator
	now       func() time.Time

	mu      sync.Mutex
	state   State
	session *model.Session
	// token and user describe the session being restored or held; token is
	// empty while no session exists or a login is in flight.
	token   string
	user    model.User
	lastErr error
	// gen changes whenever a session is destroyed, so results of calls
	// started under an older session are discarded.
	gen uint64

	intents chan Intent
}

// New creates a Manager. If the token store holds an unexpired token the
// manager starts in StateAuthenticating and RefreshProfile must be called
// to re-validate it; otherwise it starts in StateUnauthenticated.
func New(api API, tokens TokenStore, opts Options) *Manager {
	m := &Manager{
		api:       api,
		tokens:    tokens,
		events:    opts.Events,
		logger:    opts.Logger,
		validator: newInputValidator(),
		now:       opts.Now,
		state:     StateUnauthenticated,
		intents:   make(chan Intent, intentBuffer),
	}
	if m.logger == nil {
		m.logger = logging.Discard()
	}
	if m.now == nil {
		m.now = time.Now
	}

	creds, ok := tokens.Read()
	if !ok {
		return m
	}

	_, expiry := tokenTimes(creds.Token, m.now())
	if !expiry.IsZero() && !m.now().Before(expiry) {
		m.clearTokens()
		m.record(creds.User.ID, model.SessionEventExpired, "persisted token expired")
		return m
	}

	m.state = StateAuthenticating
	m.token = creds.Token
	m.user = creds.User
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the failure of the last login or registration attempt.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Session returns a copy of the current session, if authenticated.
func (m *Manager) Session() (model.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticated || m.session == nil {
		return model.Session{}, false
	}
	return *m.session, true
}

// Active reports whether an authenticated, unexpired session exists. A
// session found past its token expiry is ended on the spot.
func (m *Manager) Active() bool {
	m.mu.Lock()
	if m.state != StateAuthenticated || m.session == nil {
		m.mu.Unlock()
		return false
	}
	if !m.session.Expired(m.now()) {
		m.mu.Unlock()
		return true
	}
	userID := m.session.UserID
	m.destroyLocked()
	m.mu.Unlock()

	m.logger.Info("session for %s expired", userID)
	m.record(userID, model.SessionEventExpired, "token expired")
	m.emit(Intent{Kind: NavigateLogin, Expired: true})
	return false
}

// Login validates credentials locally, exchanges them for a session, and
// persists it. It fails with KindValidation without any network call when
// the input is incomplete or another authentication is in flight.
func (m *Manager) Login(ctx context.Context, req apiclient.LoginRequest) (*model.Session, error) {
	const op = "login"

	if err := m.validator.check(op, req); err != nil {
		return nil, err
	}
	gen, err := m.begin(op)
	if err != nil {
		return nil, err
	}

	env, err := m.api.Login(ctx, req)
	if err != nil {
		return nil, m.fail(gen, classify(op, err))
	}
	return m.commit(gen, op, env, model.SessionEventLogin)
}

// Register creates an account and signs it in. The NavigateHome intent it
// emits carries the role-dependent landing path.
func (m *Manager) Register(ctx context.Context, req apiclient.RegisterRequest) (*model.Session, error) {
	const op = "register"

	if err := m.validator.check(op, req); err != nil {
		return nil, err
	}
	gen, err := m.begin(op)
	if err != nil {
		return nil, err
	}

	env, err := m.api.Register(ctx, req)
	if err != nil {
		return nil, m.fail(gen, classify(op, err))
	}
	return m.commit(gen, op, env, model.SessionEventRegister)
}

// Logout ends the session unconditionally and clears the token store.
func (m *Manager) Logout() {
	m.mu.Lock()
	userID := m.currentUserIDLocked()
	m.destroyLocked()
	m.mu.Unlock()

	m.record(userID, model.SessionEventLogout, "")
	m.emit(Intent{Kind: NavigateLogin})
}

// RefreshProfile re-fetches the user's profile. It is valid only while
// authenticated or restoring a persisted session. Any failure, including a
// profile missing its identity, ends the session.
func (m *Manager) RefreshProfile(ctx context.Context) error {
	const op = "refresh profile"

	m.mu.Lock()
	if m.state != StateAuthenticated && m.state != StateAuthenticating {
		m.mu.Unlock()
		return apiclient.NewError(apiclient.KindValidation, op, "no session to refresh")
	}
	if m.token == "" {
		m.mu.Unlock()
		return apiclient.NewError(apiclient.KindValidation, op, "authentication already in progress")
	}
	gen, token := m.gen, m.token
	restoring := m.state == StateAuthenticating
	m.mu.Unlock()

	usr, err := m.api.Me(ctx)
	if err == nil {
		err = checkUser(op, usr)
	}
	if err != nil {
		m.invalidate(gen, model.SessionEventProfileInvalid, err)
		return err
	}

	session := m.newSession(token, *usr)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return apiclient.NewError(apiclient.KindSessionExpired, op, "session ended during refresh")
	}
	if err := m.tokens.Save(token, *usr); err != nil {
		m.logger.Warn("persisting refreshed profile: %v", err)
	}
	m.state = StateAuthenticated
	m.session = &session
	m.user = *usr
	m.mu.Unlock()

	m.setPerson(usr)
	if restoring {
		m.record(usr.ID, model.SessionEventRestore, "")
		m.emit(Intent{Kind: NavigateHome, Path: homePath(usr.Role)})
	}
	return nil
}

// HandleUnauthorized ends the session that issued token. It is registered
// with the API client and is a no-op for requests made under a session
// that has already ended, so concurrent 401s produce one redirect.
func (m *Manager) HandleUnauthorized(token string) {
	m.mu.Lock()
	if m.token == "" {
		// Nothing to end; make sure no stray token survives.
		m.clearTokens()
		m.mu.Unlock()
		return
	}
	if token != m.token {
		m.mu.Unlock()
		return
	}
	userID := m.currentUserIDLocked()
	m.destroyLocked()
	m.mu.Unlock()

	m.logger.Warn("session for %s rejected by server", userID)
	m.record(userID, model.SessionEventExpired, "server returned 401")
	m.emit(Intent{Kind: NavigateLogin, Expired: true})
}

// Intents returns the channel navigation intents are delivered on.
func (m *Manager) Intents() <-chan Intent {
	return m.intents
}

// WaitForIntent returns a tea.Cmd that waits for the next navigation
// intent. Call it again after handling each Intent to keep listening.
func (m *Manager) WaitForIntent() tea.Cmd {
	return func() tea.Msg {
		intent, ok := <-m.intents
		if !ok {
			return nil
		}
		return intent
	}
}

// begin moves to StateAuthenticating, rejecting concurrent attempts.
func (m *Manager) begin(op string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateAuthenticating:
		return 0, apiclient.NewError(apiclient.KindValidation, op, "authentication already in progress")
	case StateAuthenticated:
		return 0, apiclient.NewError(apiclient.KindValidation, op, "already signed in; log out first")
	}
	m.state = StateAuthenticating
	m.lastErr = nil
	return m.gen, nil
}

// commit installs a session from a login or registration response. Token
// and user are persisted together or not at all.
func (m *Manager) commit(
	gen uint64,
	op string,
	env *apiclient.AuthEnvelope,
	kind model.SessionEventKind,
) (*model.Session, error) {
	if env == nil || env.User == nil || env.Token == "" {
		return nil, m.fail(gen, apiclient.NewError(
			apiclient.KindMalformedResponse, op, "response must carry both user and token",
		))
	}
	if err := checkUser(op, env.User); err != nil {
		return nil, m.fail(gen, err)
	}

	session := m.newSession(env.Token, *env.User)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return nil, apiclient.NewError(apiclient.KindValidation, op, "cancelled by logout")
	}
	if err := m.tokens.Save(session.Token, session.User); err != nil {
		err = fmt.Errorf("%s: persisting session: %w", op, err)
		m.state = StateError
		m.lastErr = err
		m.clearTokens()
		m.mu.Unlock()
		return nil, err
	}
	m.state = StateAuthenticated
	m.session = &session
	m.token = session.Token
	m.user = session.User
	m.mu.Unlock()

	m.setPerson(&session.User)
	m.logger.Info("%s succeeded for %s (%s)", op, session.UserID, session.Role)
	m.record(session.UserID, kind, "")
	m.emit(Intent{Kind: NavigateHome, Path: homePath(session.Role)})

	out := session
	return &out, nil
}

// fail moves to StateError unless the attempt was superseded by a logout.
// A 401 from the server leaves the manager unauthenticated instead; Err
// still reports the rejection.
func (m *Manager) fail(gen uint64, err error) error {
	m.mu.Lock()
	if gen == m.gen {
		m.state = StateError
		if apiclient.IsStatus(err, http.StatusUnauthorized) {
			m.state = StateUnauthenticated
		}
		m.lastErr = err
		m.session = nil
		m.token = ""
		m.user = model.User{}
		m.clearTokens()
	}
	m.mu.Unlock()

	m.record("", model.SessionEventLoginFailed, apiclient.KindOf(err).String())
	return err
}

// invalidate ends the session of generation gen after a failed refresh.
func (m *Manager) invalidate(gen uint64, kind model.SessionEventKind, cause error) {
	m.mu.Lock()
	if gen != m.gen || m.state == StateUnauthenticated {
		m.mu.Unlock()
		return
	}
	userID := m.currentUserIDLocked()
	m.destroyLocked()
	m.mu.Unlock()

	m.logger.Warn("ending session for %s: %v", userID, cause)
	m.record(userID, kind, cause.Error())
	m.emit(Intent{Kind: NavigateLogin, Expired: true})
}

// destroyLocked drops the session and the persisted token. m.mu must be held.
func (m *Manager) destroyLocked() {
	m.gen++
	m.state = StateUnauthenticated
	m.session = nil
	m.token = ""
	m.user = model.User{}
	m.lastErr = nil
	m.clearTokens()
	m.setPerson(nil)
}

func (m *Manager) clearTokens() {
	if err := m.tokens.Clear(); err != nil {
		m.logger.Error("clearing token store: %v", err)
	}
}

func (m *Manager) currentUserIDLocked() string {
	if m.session != nil {
		return m.session.UserID
	}
	return m.user.ID
}

func (m *Manager) newSession(token string, usr model.User) model.Session {
	issuedAt, expiry := tokenTimes(token, m.now())
	return model.Session{
		UserID:        usr.ID,
		Role:          usr.Role,
		DisplayName:   usr.DisplayName(),
		Token:         token,
		TokenIssuedAt: issuedAt,
		TokenExpiry:   expiry,
		User:          usr,
	}
}

func (m *Manager) setPerson(usr *model.User) {
	if ps, ok := m.logger.(logging.PersonSetter); ok {
		ps.SetPerson(usr)
	}
}

// emit sends an intent without blocking.
func (m *Manager) emit(intent Intent) {
	select {
	case m.intents <- intent:
	default:
		m.logger.Warn("navigation intent dropped; channel full")
	}
}

func (m *Manager) record(userID string, kind model.SessionEventKind, detail string) {
	if m.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	err := m.events.RecordSessionEvent(ctx, model.SessionEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Detail:    detail,
		CreatedAt: m.now().UTC(),
	})
	if err != nil {
		m.logger.Warn("recording %s event: %v", kind, err)
	}
}

// checkUser rejects profiles missing the fields a session is built from.
func checkUser(op string, usr *model.User) error {
	if usr == nil {
		return apiclient.NewError(apiclient.KindMalformedResponse, op, "missing user")
	}
	if usr.ID == "" {
		return apiclient.NewError(apiclient.KindMalformedResponse, op, "user missing _id")
	}
	if !usr.Role.Valid() {
		return apiclient.NewError(apiclient.KindMalformedResponse, op,
			fmt.Sprintf("user has unknown role %q", usr.Role))
	}
	return nil
}

// classify maps the server's rejection of a login or registration to
// KindInvalidCredentials; other failures keep their kind.
func classify(op string, err error) error {
	var se *apiclient.StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
			http.StatusConflict, http.StatusUnprocessableEntity:
			return &apiclient.Error{
				Kind:    apiclient.KindInvalidCredentials,
				Op:      op,
				Message: se.Message,
				Err:     err,
			}
		}
	}
	return err
}

func homePath(role model.Role) string {
	home, _ := guard.RoleHome(role)
	return home
}
