// Package chat holds the conversation log and the host session the
// director engine drives.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Turn is one entry in the conversation log.
type Turn struct {
	ID             string    `json:"id"`
	Author         string    `json:"author"`
	IsUserAuthored bool      `json:"is_user_authored"`
	IsSystemNotice bool      `json:"is_system_notice"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewUserTurn creates a user-authored turn.
func NewUserTurn(author, text string) Turn {
	return Turn{
		ID:             uuid.NewString(),
		Author:         author,
		IsUserAuthored: true,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
}

// NewAssistantTurn creates an assistant-authored turn.
func NewAssistantTurn(author, text string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Author:    author,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

// NewSystemNotice creates an out-of-band notice turn. Notices are shown in
// the transcript but excluded from prompt assembly.
func NewSystemNotice(text string) Turn {
	return Turn{
		ID:             uuid.NewString(),
		Author:         "system",
		IsSystemNotice: true,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
}
