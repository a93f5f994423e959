package login

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/lms-client/internal/apiclient"
	"github.com/nhle/lms-client/internal/model"
	"github.com/nhle/lms-client/internal/theme"
)

// LoginSubmitMsg is dispatched when the sign-in form is completed.
type LoginSubmitMsg struct {
	Request apiclient.LoginRequest
}

// RegisterSubmitMsg is dispatched when the registration form is completed.
type RegisterSubmitMsg struct {
	Request apiclient.RegisterRequest
}

// SwitchModeMsg asks the router to show the other form.
type SwitchModeMsg struct {
	Register bool
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	email     string
	password  string
	firstName string
	lastName  string
	role      model.Role
}

// Model is the sign-in / registration view.
type Model struct {
	form     *huh.Form
	fb       *formBindings
	register bool
	busy     bool
	notice   string
	err      error
	width    int
	height   int
}

// New creates a login view.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{role: model.RoleStudent},
		width:  width,
		height: height,
	}
}

// Start builds a fresh form. notice is shown above it, e.g. after a
// session expired.
func (m *Model) Start(register bool, notice string) tea.Cmd {
	m.register = register
	m.busy = false
	m.notice = notice
	m.err = nil
	m.fb.password = ""
	if register {
		m.form = m.buildRegisterForm()
	} else {
		m.form = m.buildLoginForm()
	}
	return m.form.Init()
}

// SetResult reports the outcome of a submission. A nil error leaves the
// form disabled until the router navigates away.
func (m *Model) SetResult(err error) tea.Cmd {
	if err == nil {
		return nil
	}
	notice := m.notice
	cmd := m.Start(m.register, notice)
	m.err = err
	return cmd
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.busy {
		return m, nil
	}

	if km, ok := msg.(tea.KeyMsg); ok && km.String() == "ctrl+n" {
		register := !m.register
		return m, func() tea.Msg { return SwitchModeMsg{Register: register} }
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.busy = true
		return m, m.submit()
	}
	if m.form.State == huh.StateAborted {
		return m, m.Start(m.register, m.notice)
	}

	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	title := "Sign in"
	if m.register {
		title = "Create an account"
	}

	var parts []string
	parts = append(parts, theme.TitleStyle.Render(title))
	if m.notice != "" {
		parts = append(parts, theme.WarningStyle.Render(m.notice))
	}
	if m.err != nil {
		parts = append(parts, theme.ErrorStyle.Render(describe(m.err)))
	}
	if m.busy {
		parts = append(parts, theme.HelpStyle.Render("Signing in..."))
	} else {
		parts = append(parts, m.form.View())
	}

	switchHint := "ctrl+n create an account"
	if m.register {
		switchHint = "ctrl+n sign in instead"
	}
	parts = append(parts, theme.HelpStyle.Render(switchHint))

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(strings.Join(parts, "\n"))
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Registering reports whether the registration form is shown.
func (m Model) Registering() bool {
	return m.register
}

func (m *Model) submit() tea.Cmd {
	fb := *m.fb
	if m.register {
		return func() tea.Msg {
			return RegisterSubmitMsg{Request: apiclient.RegisterRequest{
				FirstName: strings.TrimSpace(fb.firstName),
				LastName:  strings.TrimSpace(fb.lastName),
				Email:     strings.TrimSpace(fb.email),
				Password:  fb.password,
				Role:      fb.role,
			}}
		}
	}
	return func() tea.Msg {
		return LoginSubmitMsg{Request: apiclient.LoginRequest{
			Email:    strings.TrimSpace(fb.email),
			Password: fb.password,
		}}
	}
}

func (m *Model) buildLoginForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(m.emailField(), m.passwordField()),
	).WithWidth(m.formWidth()).WithShowHelp(false)
}

func (m *Model) buildRegisterForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("First name").
				Value(&m.fb.firstName),
			huh.NewInput().
				Title("Last name").
				Value(&m.fb.lastName),
			m.emailField(),
			m.passwordField(),
			huh.NewSelect[model.Role]().
				Title("I am a").
				Options(
					huh.NewOption("Student", model.RoleStudent),
					huh.NewOption("Instructor", model.RoleInstructor),
				).
				Value(&m.fb.role),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
}

func (m *Model) emailField() huh.Field {
	return huh.NewInput().
		Title("Email").
		Placeholder("you@school.edu").
		Value(&m.fb.email)
}

func (m *Model) passwordField() huh.Field {
	return huh.NewInput().
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Value(&m.fb.password)
}

func (m *Model) formWidth() int {
	w := m.width - 8
	if w > 60 {
		w = 60
	}
	if w < 20 {
		w = 20
	}
	return w
}

// describe renders an error for the form, listing field problems.
func describe(err error) string {
	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) {
		return err.Error()
	}

	switch apiErr.Kind {
	case apiclient.KindValidation:
		if len(apiErr.Fields) == 0 {
			return apiErr.Message
		}
		lines := make([]string, 0, len(apiErr.Fields))
		for _, f := range apiErr.Fields {
			lines = append(lines, f.Field+": "+f.Message)
		}
		return strings.Join(lines, "\n")
	case apiclient.KindInvalidCredentials:
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return "Invalid email or password"
	case apiclient.KindNetwork:
		return "Could not reach the server. Check your connection and try again."
	case apiclient.KindMalformedResponse:
		return "The server sent an unexpected response."
	default:
		return err.Error()
	}
}
