package dispatch

import (
	"context"

	"github.com/go-push-dispatch/internal/domain"
)

// QueueStore is the claim protocol of the notification queue.
type QueueStore interface {
	FetchPending(ctx context.Context, limit int) ([]domain.PendingNotification, error)
	Claim(ctx context.Context, rows []domain.PendingNotification) ([]domain.PendingNotification, error)
}

// AuditStore appends already-processed rows to the queue table.
type AuditStore interface {
	PutAudit(ctx context.Context, rows []domain.PendingNotification) (int, error)
}

type TokenStore interface {
	// TokensByUsers returns the tokens of one page of users.
	TokensByUsers(ctx context.Context, userIDs []string, filter domain.TokenFilter) ([]domain.PushToken, error)
	// Deactivate sets active=false on exactly the given tokens.
	Deactivate(ctx context.Context, tokens []string) (int, error)
}

type RecordStore interface {
	PutBatch(ctx context.Context, records []domain.NotificationRecord) (int, error)
}

// Gateway sends one chunk of messages and returns tickets in request order.
type Gateway interface {
	Send(ctx context.Context, messages []domain.PushMessage) ([]domain.Ticket, error)
}

// BatchLock keeps two batch runs from overlapping.
type BatchLock interface {
	Acquire(ctx context.Context, owner string) (bool, error)
	Release(ctx context.Context, owner string) error
}

// ReportSink receives the report of every finished run.
type ReportSink interface {
	Record(ctx context.Context, report *domain.DispatchReport) error
}
