package guard

import "github.com/nhle/lms-client/internal/model"

// Paths of the client's views.
const (
	StudentHomePath    = "/student"
	InstructorHomePath = "/instructor"
	AdminHomePath      = "/admin"
	NotificationsPath  = "/notifications"
	SettingsPath       = "/settings"
)

// Routes is the access table of every navigable view.
var Routes = []Route{
	{Path: LoginPath, GuestOnly: true},
	{Path: RegisterPath, GuestOnly: true},
	{Path: UnauthorizedPath, Public: true},
	{Path: SettingsPath, Public: true},
	{Path: StudentHomePath, Roles: []model.Role{model.RoleStudent}},
	{Path: InstructorHomePath, Roles: []model.Role{model.RoleInstructor}},
	{Path: AdminHomePath, Roles: []model.Role{model.RoleAdmin}},
	{Path: NotificationsPath},
}

// Lookup finds the route registered for path. Unknown paths are treated as
// protected routes open to any signed-in user.
func Lookup(path string) Route {
	for _, r := range Routes {
		if r.Path == path {
			return r
		}
	}
	return Route{Path: path}
}

// Navigate resolves path against the route table for session.
func Navigate(session *model.Session, path string) Decision {
	if path == RootPath || path == "" {
		if session == nil {
			return Decision{Outcome: RedirectToLogin, Path: LoginPath}
		}
		home, _ := RoleHome(session.Role)
		return Decision{Outcome: RedirectToRoleHome, Path: home}
	}
	return Decide(session, Lookup(path), path)
}
