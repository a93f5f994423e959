package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "home", want: Home},
		{in: "  Inbox ", want: Notifications},
		{in: "sync", want: Refresh},
		{in: "mark   all", want: ReadAll},
		{in: "config", want: Settings},
		{in: "q", want: Quit},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := Parse("grades")
	assert.EqualError(t, err, `unknown command "grades"`)
}

func TestPalette_EnterRunsCommand(t *testing.T) {
	m := New(80, 10)
	m.Focus()
	m.input.SetValue("logout")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, CommandMsg(Logout), cmd())
	assert.Empty(t, m.input.Value())
}

func TestPalette_UnknownCommandShowsError(t *testing.T) {
	m := New(80, 10)
	m.input.SetValue("grades")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), `unknown command "grades"`)
}
