package detail

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/lms-client/internal/keys"
	"github.com/nhle/lms-client/internal/model"
)

func TestDetail_RendersNotification(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	assert.Empty(t, m.ID())

	m.SetItem(model.NotificationItem{
		ID:        "n7",
		Kind:      model.NotificationGrade,
		Message:   "Your essay was graded: A-",
		CreatedAt: time.Date(2026, time.October, 18, 9, 30, 0, 0, time.UTC),
		RelatedID: "sub-42",
	})

	assert.Equal(t, "n7", m.ID())
	view := m.View()
	assert.Contains(t, view, "GRADE")
	assert.Contains(t, view, "unread")
	assert.Contains(t, view, "Your essay was graded: A-")
	assert.Contains(t, view, "sub-42")
}

func TestDetail_BackKey(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, BackMsg{}, cmd())
}

func TestRelatedLabel(t *testing.T) {
	assert.Equal(t, "Course", relatedLabel(model.NotificationCourse))
	assert.Equal(t, "Thread", relatedLabel(model.NotificationMessage))
	assert.Equal(t, "Related", relatedLabel(model.NotificationGeneric))
}
