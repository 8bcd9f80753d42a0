package domain

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	// Joined fields
	Sender       *UserSummary  `json:"sender,omitempty"`
	Conversation *Conversation `json:"conversation,omitempty"`
}
