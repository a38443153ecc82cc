package viewmodel

import "github.com/hangarlinks/hangarlinks/app/models"

// ThreadMessage marks which side of a conversation wrote a message.
type ThreadMessage struct {
	models.Message
	Mine bool
}

func NewThread(userID uint, messages []models.Message) []ThreadMessage {
	out := make([]ThreadMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, ThreadMessage{Message: m, Mine: m.SenderID != nil && *m.SenderID == userID})
	}
	return out
}
