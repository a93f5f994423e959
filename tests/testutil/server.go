package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"github.com/nhle/lms-client/internal/model"
)

// Account is a user the fake backend will sign in.
type Account struct {
	Email    string
	Password string
	Token    string
	User     model.User
}

// RecordedRequest is what the fake backend saw for one request.
type RecordedRequest struct {
	Route         string
	Method        string
	Path          string
	Authorization string
}

// FakeLMS is an in-process LMS backend speaking the canonical envelopes.
// Individual routes can be replaced with Override.
type FakeLMS struct {
	Server *httptest.Server

	mu            sync.Mutex
	accounts      map[string]Account // by email
	tokens        map[string]model.User
	notifications []model.NotificationItem
	overrides     map[string]http.HandlerFunc
	requests      []RecordedRequest
}

// NewFakeLMS starts a fake backend and stops it when the test completes.
// Its API root is BaseURL().
func NewFakeLMS(t *testing.T) *FakeLMS {
	t.Helper()

	f := &FakeLMS{
		accounts:  make(map[string]Account),
		tokens:    make(map[string]model.User),
		overrides: make(map[string]http.HandlerFunc),
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/auth/login", f.route("login", f.login)).Methods(http.MethodPost)
	api.Handle("/auth/register", f.route("register", f.register)).Methods(http.MethodPost)
	api.Handle("/users/me", f.route("me", f.authed(f.me))).Methods(http.MethodGet)
	api.Handle("/notifications", f.route("notifications", f.authed(f.list))).Methods(http.MethodGet)
	api.Handle("/notifications/read-all", f.route("read-all", f.authed(f.readAll))).Methods(http.MethodPatch)
	api.Handle("/notifications/{id}/read", f.route("read", f.authed(f.read))).Methods(http.MethodPatch)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)

	return f
}

// BaseURL returns the API root to hand to apiclient.New.
func (f *FakeLMS) BaseURL() string {
	return f.Server.URL + "/api"
}

// AddAccount registers a user that can log in and whose token is accepted.
func (f *FakeLMS) AddAccount(a Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[strings.ToLower(a.Email)] = a
	f.tokens[a.Token] = a.User
}

// RevokeToken makes subsequent requests with token fail with 401.
func (f *FakeLMS) RevokeToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, token)
}

// SetNotifications replaces the notifications the backend returns.
func (f *FakeLMS) SetNotifications(items []model.NotificationItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append([]model.NotificationItem(nil), items...)
}

// Notifications returns the backend's current notification state.
func (f *FakeLMS) Notifications() []model.NotificationItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.NotificationItem(nil), f.notifications...)
}

// Override replaces the handler of a named route: login, register, me,
// notifications, read, read-all.
func (f *FakeLMS) Override(route string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrides[route] = h
}

// Requests returns every request seen so far.
func (f *FakeLMS) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

// RequestsTo returns the requests seen on one named route.
func (f *FakeLMS) RequestsTo(route string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range f.Requests() {
		if r.Route == route {
			out = append(out, r)
		}
	}
	return out
}

func (f *FakeLMS) route(name string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, RecordedRequest{
			Route:         name,
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
		})
		override := f.overrides[name]
		f.mu.Unlock()

		if override != nil {
			override(w, r)
			return
		}
		h(w, r)
	})
}

type userHandler func(w http.ResponseWriter, r *http.Request, usr model.User)

func (f *FakeLMS) authed(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

		f.mu.Lock()
		usr, ok := f.tokens[token]
		f.mu.Unlock()

		if token == "" || !ok {
			WriteJSON(w, http.StatusUnauthorized, map[string]string{"message": "Not authorized"})
			return
		}
		h(w, r, usr)
	}
}

func (f *FakeLMS) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "bad body"})
		return
	}

	f.mu.Lock()
	acct, ok := f.accounts[strings.ToLower(body.Email)]
	f.mu.Unlock()

	if !ok || acct.Password != body.Password {
		WriteJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid email or password"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"user": acct.User, "token": acct.Token})
}

func (f *FakeLMS) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FirstName string     `json:"firstName"`
		LastName  string     `json:"lastName"`
		Email     string     `json:"email"`
		Password  string     `json:"password"`
		Role      model.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "bad body"})
		return
	}

	f.mu.Lock()
	if _, exists := f.accounts[strings.ToLower(body.Email)]; exists {
		f.mu.Unlock()
		WriteJSON(w, http.StatusConflict, map[string]string{"message": "User already exists"})
		return
	}
	f.mu.Unlock()

	acct := Account{
		Email:    body.Email,
		Password: body.Password,
		Token:    "tok-" + strings.ToLower(body.Email),
		User: model.User{
			ID:        "u-" + strings.ToLower(body.Email),
			FirstName: body.FirstName,
			LastName:  body.LastName,
			Email:     body.Email,
			Role:      body.Role,
		},
	}
	f.AddAccount(acct)
	WriteJSON(w, http.StatusCreated, map[string]interface{}{"user": acct.User, "token": acct.Token})
}

func (f *FakeLMS) me(w http.ResponseWriter, _ *http.Request, usr model.User) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{"user": usr})
}

func (f *FakeLMS) list(w http.ResponseWriter, _ *http.Request, _ model.User) {
	items := f.Notifications()
	if items == nil {
		items = []model.NotificationItem{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (f *FakeLMS) read(w http.ResponseWriter, r *http.Request, _ model.User) {
	id := mux.Vars(r)["id"]

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.notifications {
		if f.notifications[i].ID == id {
			f.notifications[i].IsRead = true
			WriteJSON(w, http.StatusOK, map[string]interface{}{"item": f.notifications[i]})
			return
		}
	}
	WriteJSON(w, http.StatusNotFound, map[string]string{"message": "Notification not found"})
}

func (f *FakeLMS) readAll(w http.ResponseWriter, _ *http.Request, _ model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.notifications {
		f.notifications[i].IsRead = true
	}
	w.WriteHeader(http.StatusNoContent)
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
