// Package core holds the domain types shared across the bot:
// dialogue turns, speakers, and the user identity the memory
// subsystem partitions on.
package core

import "time"

// Speaker tags one line of dialogue.
type Speaker string

const (
	// SpeakerUser marks a line written by the human.
	SpeakerUser Speaker = "user"

	// SpeakerBot marks a line written by the assistant.
	SpeakerBot Speaker = "bot"
)

// Label returns the transcript label for this speaker ("User" / "Bot").
func (s Speaker) Label() string {
	if s == SpeakerBot {
		return "Bot"
	}
	return "User"
}

// Turn is a single line of dialogue in the short-term buffer.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// User is a registered chat user. The memory subsystem reads only
// ID (partition key) and Activated (precondition gate); everything
// else belongs to the persistence layer.
type User struct {
	ID        int64
	FirstName string
	Activated bool
	CreatedAt time.Time
}
