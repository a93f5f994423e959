package store

import (
	"context"
	"time"

	"github.com/nhle/lms-client/internal/model"
)

// DefaultEventLimit caps GetSessionEvents when no limit is given.
const DefaultEventLimit = 50

// Store defines local persistence for the session audit log and the last
// notification snapshot. Neither is consulted to decide whether a session
// is valid; the server stays the authority.
type Store interface {
	// === Session audit log ===

	RecordSessionEvent(ctx context.Context, ev model.SessionEvent) error
	GetSessionEvents(ctx context.Context, limit int) ([]model.SessionEvent, error)
	ClearSessionEvents(ctx context.Context) error

	// === Notification snapshot ===

	SaveNotificationSnapshot(ctx context.Context, items []model.NotificationItem, fetchedAt time.Time) error
	GetNotificationSnapshot(ctx context.Context) (*model.NotificationSnapshot, error)

	Close() error
}
