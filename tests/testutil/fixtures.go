package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/99designs/keyring"

	"github.com/nhle/lms-client/internal/credential"
	"github.com/nhle/lms-client/internal/model"
)

// NewTestTokens returns a token store over an in-memory keyring.
func NewTestTokens(t *testing.T) *credential.Store {
	t.Helper()
	return credential.NewStore(keyring.NewArrayKeyring(nil))
}

// StudentAccount is the account used by the login scenarios.
func StudentAccount() Account {
	return Account{
		Email:    "a@b.com",
		Password: "Secret123",
		Token:    "tok1",
		User:     model.User{ID: "u1", FirstName: "Ada", LastName: "Lovelace", Email: "a@b.com", Role: model.RoleStudent},
	}
}

// Notifications builds n notifications for recipient u1, of which the
// first unread are unread. Every third one is a message.
func Notifications(n, unread int) []model.NotificationItem {
	base := time.Date(2026, time.October, 1, 9, 0, 0, 0, time.UTC)
	items := make([]model.NotificationItem, n)
	for i := range items {
		kind := model.NotificationAssignment
		if i%3 == 0 {
			kind = model.NotificationMessage
		}
		items[i] = model.NotificationItem{
			ID:          fmt.Sprintf("n%d", i+1),
			RecipientID: "u1",
			Kind:        kind,
			Message:     fmt.Sprintf("notification %d", i+1),
			IsRead:      i >= unread,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
	}
	return items
}
