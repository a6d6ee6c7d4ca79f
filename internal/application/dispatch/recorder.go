package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-push-dispatch/internal/domain"
	"github.com/go-push-dispatch/internal/pkg/batch"
)

// Recorder writes in-app records and broadcast audit rows in fixed-size
// batches. A failing batch is reported and the next one still runs.
type Recorder struct {
	records   RecordStore
	audit     AuditStore
	batchSize int
	newID     func() string
	now       func() time.Time
	logger    *slog.Logger
}

func NewRecorder(records RecordStore, audit AuditStore, batchSize int, newID func() string, logger *slog.Logger) *Recorder {
	return &Recorder{
		records:   records,
		audit:     audit,
		batchSize: batchSize,
		newID:     newID,
		now:       time.Now,
		logger:    logger.With("component", "recorder"),
	}
}

// Store writes records and returns how many were stored.
func (r *Recorder) Store(ctx context.Context, records []domain.NotificationRecord) (int, []string) {
	stored := 0
	var errs []string
	for i, group := range batch.Split(records, r.batchSize) {
		n, err := r.records.PutBatch(ctx, group)
		stored += n
		if err != nil {
			r.logger.Warn("notification batch failed", "batch", i, "records", len(group), "stored", n, "err", err)
			errs = append(errs, fmt.Sprintf("store notifications batch %d (%d records): %v", i, len(group), err))
		}
	}
	return stored, errs
}

// Audit writes one processed queue row per recipient of a broadcast.
func (r *Recorder) Audit(ctx context.Context, senderID string, n Outgoing, recipients []string) (int, []string) {
	now := r.now()
	rows := make([]domain.PendingNotification, len(recipients))
	for i, userID := range recipients {
		rows[i] = domain.NewAuditRow(r.newID(), senderID, userID, n.Type, n.Payload, now)
	}
	written := 0
	var errs []string
	for i, group := range batch.Split(rows, r.batchSize) {
		c, err := r.audit.PutAudit(ctx, group)
		written += c
		if err != nil {
			r.logger.Warn("audit batch failed", "batch", i, "rows", len(group), "err", err)
			errs = append(errs, fmt.Sprintf("audit batch %d (%d rows): %v", i, len(group), err))
		}
	}
	return written, errs
}

// recordsFor builds one in-app record per recipient of n.
func (r *Recorder) recordsFor(n Outgoing, recipients []string) []domain.NotificationRecord {
	now := r.now()
	out := make([]domain.NotificationRecord, len(recipients))
	for i, userID := range recipients {
		out[i] = newRecord(r.newID(), userID, n, now)
	}
	return out
}
