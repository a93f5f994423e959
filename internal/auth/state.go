package auth

// State is the session manager's position in its lifecycle.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateError
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// IntentKind is a navigation the routing layer should perform.
type IntentKind int

const (
	// NavigateLogin: the session ended; show the login view.
	NavigateLogin IntentKind = iota
	// NavigateHome: a session started; show the role's home view.
	NavigateHome
)

// Intent is a declarative navigation request emitted on session
// transitions. The routing layer decides how to honor it.
type Intent struct {
	Kind IntentKind

	// Path is the role home for NavigateHome; empty for NavigateLogin.
	Path string

	// Expired marks a NavigateLogin caused by server-side session loss
	// (401, token expiry, invalid profile) rather than an explicit logout.
	Expired bool
}
