// Package guard decides whether a route may be shown for the current
// session, and where to send the user when it may not.
package guard

import "github.com/nhle/lms-client/internal/model"

// Fixed navigation targets.
const (
	LoginPath        = "/login"
	RegisterPath     = "/register"
	UnauthorizedPath = "/unauthorized"
	RootPath         = "/"
)

// Outcome is the result of evaluating a route.
type Outcome int

const (
	Render Outcome = iota
	RedirectToLogin
	RedirectToRoleHome
	RedirectToUnauthorized
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case RedirectToLogin:
		return "redirect-login"
	case RedirectToRoleHome:
		return "redirect-home"
	case RedirectToUnauthorized:
		return "redirect-unauthorized"
	default:
		return "unknown"
	}
}

// Route describes access rules for one navigable view.
type Route struct {
	Path string
	// Public routes render for everyone.
	Public bool
	// GuestOnly routes (login, register) send signed-in users home.
	GuestOnly bool
	// Roles allowed on a protected route; empty means any signed-in user.
	Roles []model.Role
}

// Allows reports whether role may view the route.
func (r Route) Allows(role model.Role) bool {
	if len(r.Roles) == 0 {
		return true
	}
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// Decision is the outcome of Decide plus the path to navigate to.
type Decision struct {
	Outcome Outcome
	// Path is the destination; for Render it is the route itself.
	Path string
	// ReturnPath is set on RedirectToLogin so the user can be sent back
	// after signing in.
	ReturnPath string
}

// Decide evaluates route for session. A nil session means no one is signed
// in. currentPath is remembered as the return path on login redirects.
func Decide(session *model.Session, route Route, currentPath string) Decision {
	if route.Public {
		return Decision{Outcome: Render, Path: route.Path}
	}

	if route.GuestOnly {
		if session == nil {
			return Decision{Outcome: Render, Path: route.Path}
		}
		home, _ := RoleHome(session.Role)
		return Decision{Outcome: RedirectToRoleHome, Path: home}
	}

	if session == nil {
		return Decision{Outcome: RedirectToLogin, Path: LoginPath, ReturnPath: currentPath}
	}
	if !route.Allows(session.Role) {
		if home, ok := RoleHome(session.Role); ok {
			return Decision{Outcome: RedirectToRoleHome, Path: home}
		}
		return Decision{Outcome: RedirectToUnauthorized, Path: UnauthorizedPath}
	}
	return Decision{Outcome: Render, Path: route.Path}
}

// RoleHome returns the landing path for role. Unknown roles land on the
// root path and report false.
func RoleHome(role model.Role) (string, bool) {
	switch role {
	case model.RoleStudent:
		return StudentHomePath, true
	case model.RoleInstructor:
		return InstructorHomePath, true
	case model.RoleAdmin:
		return AdminHomePath, true
	default:
		return RootPath, false
	}
}
