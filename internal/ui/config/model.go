package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/lms-client/internal/model"
	"github.com/nhle/lms-client/internal/theme"
)

// SettingsSavedMsg carries the edited configuration back to the router.
type SettingsSavedMsg struct {
	Config model.AppConfig
}

// SettingsClosedMsg signals the view was dismissed without saving.
type SettingsClosedMsg struct{}

// formBindings holds huh's Value() targets on the heap.
type formBindings struct {
	baseURL      string
	timeoutSec   string
	pollInterval string
	theme        string
	debug        bool
}

// Model is the client settings editor.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	base   model.AppConfig
	width  int
	height int
}

// New creates a settings view.
func New(width, height int) Model {
	return Model{fb: &formBindings{}, width: width, height: height}
}

// Start loads cfg into a fresh form.
func (m *Model) Start(cfg model.AppConfig) tea.Cmd {
	m.base = cfg
	*m.fb = formBindings{
		baseURL:      cfg.Server.BaseURL,
		timeoutSec:   strconv.Itoa(cfg.Server.TimeoutSec),
		pollInterval: strconv.Itoa(cfg.Notifications.PollIntervalSec),
		theme:        cfg.Display.Theme,
		debug:        cfg.Logging.Debug,
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		cfg := m.result()
		m.form = nil
		return m, func() tea.Msg { return SettingsSavedMsg{Config: cfg} }
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return SettingsClosedMsg{} }
	}

	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			theme.TitleStyle.Render("Settings"),
			m.form.View(),
			theme.HelpStyle.Render("Server and polling changes apply after restart. esc cancel"),
		))
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// result applies the form values to the configuration it was started with.
// Inputs are validated by the form, so parse errors cannot occur here.
func (m Model) result() model.AppConfig {
	cfg := m.base
	cfg.Server.BaseURL = strings.TrimRight(strings.TrimSpace(m.fb.baseURL), "/")
	cfg.Server.TimeoutSec, _ = strconv.Atoi(strings.TrimSpace(m.fb.timeoutSec))
	cfg.Notifications.PollIntervalSec, _ = strconv.Atoi(strings.TrimSpace(m.fb.pollInterval))
	cfg.Display.Theme = m.fb.theme
	cfg.Logging.Debug = m.fb.debug
	return cfg
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server URL").
				Description("LMS API root (e.g., http://localhost:5000/api)").
				Value(&m.fb.baseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Request timeout (seconds)").
				Value(&m.fb.timeoutSec).
				Validate(validatePositive("Timeout")),
			huh.NewInput().
				Title("Notification poll interval (seconds)").
				Value(&m.fb.pollInterval).
				Validate(validatePositive("Poll interval")),
			huh.NewSelect[string]().
				Title("Theme").
				Options(
					huh.NewOption("Default", "default"),
					huh.NewOption("Monochrome", "mono"),
				).
				Value(&m.fb.theme),
			huh.NewConfirm().
				Title("Debug logging").
				Affirmative("On").
				Negative("Off").
				Value(&m.fb.debug),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func validatePositive(fieldName string) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive number", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., http://localhost:5000)")
	}
	return nil
}
