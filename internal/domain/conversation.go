package domain

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID              uuid.UUID     `json:"id"`
	IsGroup         bool          `json:"is_group"`
	Name            string        `json:"name"`
	AdminID         *uuid.UUID    `json:"admin_id,omitempty"`
	Members         []UserSummary `json:"members"`
	LatestMessageID *uuid.UUID    `json:"latest_message_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	// Joined fields
	LatestMessage *Message `json:"latest_message,omitempty"`
}

// HasMember reports whether userID is in the member list.
func (c *Conversation) HasMember(userID uuid.UUID) bool {
	for _, m := range c.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

func (c *Conversation) IsAdmin(userID uuid.UUID) bool {
	return c.AdminID != nil && *c.AdminID == userID
}

func (c *Conversation) MemberIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(c.Members))
	for i, m := range c.Members {
		ids[i] = m.ID
	}
	return ids
}

// DirectKey is the order-independent key of a one-to-one conversation.
func DirectKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if x > y {
		x, y = y, x
	}
	return x + ":" + y
}
