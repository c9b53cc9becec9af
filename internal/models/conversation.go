// Package models defines data structures for the diarist journaling service.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Message roles. Dialogue turns use RoleUser and RoleAssistant, everything else
// is metadata extracted from the user's utterance.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleEmotion   = "emotion"
	RoleCondition = "condition"
	RoleDoneToday = "doneToday"
	RoleFavorite  = "favorite"
	RoleHate      = "hate"
	RoleRoutine   = "routine"
	RolePrompt    = "prompt"
)

// MetadataRoles lists every role an extractor may produce.
var MetadataRoles = []string{
	RoleEmotion, RoleCondition, RoleDoneToday, RoleFavorite, RoleHate, RoleRoutine, RolePrompt,
}

// DiaryRoles are the metadata roles that feed a diary summary.
var DiaryRoles = []string{RoleEmotion, RoleCondition, RoleDoneToday}

// Conversation is one stored chat turn: the user's message, extracted metadata
// and the assistant reply, stamped with the time it was written.
type Conversation struct {
	ID        surrealmodels.RecordID `json:"id"`
	UserID    string                 `json:"user_id"`
	Messages  []Message              `json:"messages"`
	UpdatedAt time.Time              `json:"updated_at"`
	Docs      []string               `json:"docs,omitempty"`
}

// Message represents a single tagged entry within a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IsDialogue reports whether the message is a chat turn rather than metadata.
func (m Message) IsDialogue() bool {
	return m.Role == RoleUser || m.Role == RoleAssistant
}

// IsMetadataRole reports whether role is one of the extractor roles.
func IsMetadataRole(role string) bool {
	for _, r := range MetadataRoles {
		if r == role {
			return true
		}
	}
	return false
}
