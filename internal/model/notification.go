package model

import "time"

// NotificationKind identifies what kind of LMS activity a notification is about.
type NotificationKind string

const (
	NotificationMessage    NotificationKind = "message"
	NotificationCourse     NotificationKind = "course"
	NotificationAssignment NotificationKind = "assignment"
	NotificationGrade      NotificationKind = "grade"
	NotificationGeneric    NotificationKind = "generic"
)

// Normalize maps unknown kinds to NotificationGeneric.
func (k NotificationKind) Normalize() NotificationKind {
	switch k {
	case NotificationMessage, NotificationCourse, NotificationAssignment, NotificationGrade:
		return k
	}
	return NotificationGeneric
}

// NotificationItem is an alert delivered to the signed-in user.
type NotificationItem struct {
	// ID is the unique identifier for this notification.
	ID string `json:"_id"`

	// RecipientID is the user the notification was addressed to.
	RecipientID string `json:"recipientId"`

	Kind NotificationKind `json:"kind"`

	// Message is the human-readable notification text.
	Message string `json:"message"`

	// IsRead indicates whether the user has seen this notification.
	IsRead bool `json:"isRead"`

	// CreatedAt is when the backend generated this notification.
	CreatedAt time.Time `json:"createdAt"`

	// RelatedID points at the course, assignment, or message this is about.
	RelatedID string `json:"relatedId,omitempty"`
}

// NotificationSnapshot is the list a poll saw, as kept in the local store.
type NotificationSnapshot struct {
	FetchedAt time.Time
	Items     []NotificationItem
}
