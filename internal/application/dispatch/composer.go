package dispatch

import (
	"time"

	"github.com/go-push-dispatch/internal/domain"
)

// Fixed message presentation.
const (
	messageSound     = "default"
	messageBadge     = 1
	messageChannelID = "default"
	messagePriority  = "high"
)

// Outgoing is one logical notification before fan-out.
type Outgoing struct {
	// ID is the queue row id. Empty for broadcasts.
	ID      string
	Type    string
	Payload domain.NotificationPayload
}

// Composition collects the push messages of a run.
type Composition struct {
	Messages      []domain.PushMessage
	TokenOwners   map[string]string
	WithTokens    int
	WithoutTokens int
}

func NewComposition() *Composition {
	return &Composition{TokenOwners: make(map[string]string)}
}

// Add emits one message per (recipient, token) pair. Every recipient counts
// once, as either with or without tokens.
func (c *Composition) Add(n Outgoing, recipients []string, tokens domain.TokenSet) {
	data := messageData(n)
	for _, userID := range recipients {
		devices := tokens[userID]
		if len(devices) == 0 {
			c.WithoutTokens++
			continue
		}
		c.WithTokens++
		for _, d := range devices {
			c.Messages = append(c.Messages, domain.PushMessage{
				To:        d.Token,
				Sound:     messageSound,
				Title:     n.Payload.Title,
				Body:      n.Payload.Message,
				Data:      data,
				Badge:     messageBadge,
				ChannelID: messageChannelID,
				Priority:  messagePriority,
			})
			c.TokenOwners[d.Token] = userID
		}
	}
}

func messageData(n Outgoing) map[string]any {
	data := map[string]any{"type": n.Type}
	if n.Payload.Screen != "" {
		data["screen"] = n.Payload.Screen
	}
	if len(n.Payload.Metadata) > 0 {
		data["metadata"] = n.Payload.Metadata
	}
	if n.ID != "" {
		data["notificationId"] = n.ID
	}
	return data
}

// newRecord builds the in-app record of n for one user.
func newRecord(id, userID string, n Outgoing, now time.Time) domain.NotificationRecord {
	return domain.NotificationRecord{
		NotificationID: id,
		UserID:         userID,
		Type:           n.Type,
		Title:          n.Payload.Title,
		Message:        n.Payload.Message,
		Data:           messageData(n),
		CreatedAt:      domain.NewTimestamp(now),
	}
}
