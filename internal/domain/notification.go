package domain

import "time"

// Notification types written by this service when the caller does not name one.
const (
	TypeAdminBroadcast = "admin_broadcast"
	TypeGeneral        = "general"
)

// NotificationPayload is the user-facing content of a notification.
type NotificationPayload struct {
	Title    string         `json:"title" dynamodbav:"title"`
	Message  string         `json:"message" dynamodbav:"message"`
	Screen   string         `json:"screen,omitempty" dynamodbav:"screen,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" dynamodbav:"metadata,omitempty"`
}

// PendingNotification is a row of the notification queue table. Rows enqueued
// by other services carry Pending so they appear in the pending index; claiming
// a row sets Processed and removes Pending in the same conditional write.
type PendingNotification struct {
	ID         string              `json:"id" dynamodbav:"id"`
	UserID     string              `json:"user_id" dynamodbav:"user_id"`
	Type       string              `json:"type" dynamodbav:"type"`
	Payload    NotificationPayload `json:"payload" dynamodbav:"payload"`
	Processed  bool                `json:"processed" dynamodbav:"processed"`
	Pending    string              `json:"-" dynamodbav:"pending,omitempty"`
	SenderID   string              `json:"sender_id,omitempty" dynamodbav:"sender_id,omitempty"`
	SentAt     *time.Time          `json:"sent_at,omitempty" dynamodbav:"sent_at,omitempty"`
	HourBucket string              `json:"hour_bucket,omitempty" dynamodbav:"hour_bucket,omitempty"`
	CreatedAt  Timestamp           `json:"created_at" dynamodbav:"created_at"`
}

// HourBucket truncates t to the hour in UTC, e.g. "2026-10-17T14".
func HourBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02T15")
}

// NewAuditRow builds a queue row for a notification that was already sent by
// an administrator. It is created processed and without a pending marker, so
// the batch scan never selects it.
func NewAuditRow(id, senderID, userID, notifType string, payload NotificationPayload, now time.Time) PendingNotification {
	sentAt := now.UTC()
	return PendingNotification{
		ID:         id,
		UserID:     userID,
		Type:       notifType,
		Payload:    payload,
		Processed:  true,
		SenderID:   senderID,
		SentAt:     &sentAt,
		HourBucket: HourBucket(sentAt),
		CreatedAt:  NewTimestamp(sentAt),
	}
}

// NotificationRecord is the in-app notification shown in the user's inbox.
type NotificationRecord struct {
	NotificationID string         `json:"id" dynamodbav:"notification_id"`
	UserID         string         `json:"user_id" dynamodbav:"user_id"`
	Type           string         `json:"type" dynamodbav:"type"`
	Title          string         `json:"title" dynamodbav:"title"`
	Message        string         `json:"message" dynamodbav:"message"`
	Data           map[string]any `json:"data,omitempty" dynamodbav:"data,omitempty"`
	IsRead         bool           `json:"is_read" dynamodbav:"is_read"`
	CreatedAt      Timestamp      `json:"created" dynamodbav:"created_at"`
}
