package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/lms-client/internal/model"
	"github.com/nhle/lms-client/tests/testutil"
)

func TestSessionEvents(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.October, 19, 8, 0, 0, 0, time.UTC)

	kinds := []model.SessionEventKind{
		model.SessionEventLogin,
		model.SessionEventExpired,
		model.SessionEventLogin,
		model.SessionEventLogout,
	}
	for i, k := range kinds {
		require.NoError(t, s.RecordSessionEvent(ctx, model.SessionEvent{
			UserID:    "u1",
			Kind:      k,
			Detail:    "step",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := s.GetSessionEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, model.SessionEventLogout, events[0].Kind)
	assert.Equal(t, model.SessionEventLogin, events[3].Kind)
	assert.NotEmpty(t, events[0].ID)
	assert.True(t, events[0].CreatedAt.Equal(base.Add(3*time.Minute)))

	events, err = s.GetSessionEvents(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	require.NoError(t, s.ClearSessionEvents(ctx))
	events, err = s.GetSessionEvents(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRecordSessionEventRequiresKind(t *testing.T) {
	s := testutil.NewTestStore(t)
	assert.Error(t, s.RecordSessionEvent(context.Background(), model.SessionEvent{UserID: "u1"}))
}

func TestNotificationSnapshot(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	snap, err := s.GetNotificationSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)

	first := testutil.Notifications(4, 2)
	first[1].RelatedID = "course-7"
	fetched := time.Date(2026, time.October, 19, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.SaveNotificationSnapshot(ctx, first, fetched))

	snap, err = s.GetNotificationSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.FetchedAt.Equal(fetched))
	require.Len(t, snap.Items, 4)
	for i := range first {
		assert.Equal(t, first[i].ID, snap.Items[i].ID)
		assert.Equal(t, first[i].Kind, snap.Items[i].Kind)
		assert.Equal(t, first[i].IsRead, snap.Items[i].IsRead)
		assert.True(t, first[i].CreatedAt.Equal(snap.Items[i].CreatedAt))
	}
	assert.Equal(t, "course-7", snap.Items[1].RelatedID)

	// A later poll replaces the snapshot entirely.
	require.NoError(t, s.SaveNotificationSnapshot(ctx, []model.NotificationItem{}, fetched.Add(time.Minute)))
	snap, err = s.GetNotificationSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Empty(t, snap.Items)
	assert.True(t, snap.FetchedAt.Equal(fetched.Add(time.Minute)))
}
