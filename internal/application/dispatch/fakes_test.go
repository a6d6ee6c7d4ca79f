package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-push-dispatch/internal/domain"
	"github.com/stretchr/testify/mock"
)

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// memQueue is an in-memory queue with a compare-and-set claim.
type memQueue struct {
	mu       sync.Mutex
	rows     []domain.PendingNotification
	audit    []domain.PendingNotification
	fetchErr error
	claimErr error
}

func (q *memQueue) FetchPending(_ context.Context, limit int) ([]domain.PendingNotification, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fetchErr != nil {
		return nil, q.fetchErr
	}
	var out []domain.PendingNotification
	for _, r := range q.rows {
		if !r.Processed && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (q *memQueue) Claim(_ context.Context, rows []domain.PendingNotification) ([]domain.PendingNotification, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.claimErr != nil {
		return nil, q.claimErr
	}
	var won []domain.PendingNotification
	for _, r := range rows {
		for i := range q.rows {
			if q.rows[i].ID == r.ID && !q.rows[i].Processed {
				q.rows[i].Processed = true
				won = append(won, q.rows[i])
			}
		}
	}
	return won, nil
}

func (q *memQueue) PutAudit(_ context.Context, rows []domain.PendingNotification) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.audit = append(q.audit, rows...)
	return len(rows), nil
}

// memTokens serves tokens by user and records every call.
type memTokens struct {
	mu          sync.Mutex
	tokens      []domain.PushToken
	failPages   map[int]bool
	pages       [][]string
	deactivated []string
	deactErr    error
}

func (s *memTokens) TokensByUsers(_ context.Context, userIDs []string, _ domain.TokenFilter) ([]domain.PushToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page := len(s.pages)
	s.pages = append(s.pages, append([]string(nil), userIDs...))
	if s.failPages[page] {
		return nil, fmt.Errorf("page %d: %w", page, errBoom)
	}
	want := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		want[id] = true
	}
	var out []domain.PushToken
	for _, t := range s.tokens {
		if want[t.UserID] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memTokens) Deactivate(_ context.Context, tokens []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deactErr != nil {
		return 0, s.deactErr
	}
	s.deactivated = append(s.deactivated, tokens...)
	return len(tokens), nil
}

// memRecords stores records, failing the batches listed in failBatches.
type memRecords struct {
	mu          sync.Mutex
	records     []domain.NotificationRecord
	calls       int
	failBatches map[int]bool
}

func (s *memRecords) PutBatch(_ context.Context, records []domain.NotificationRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := s.calls
	s.calls++
	if s.failBatches[call] {
		return 0, errBoom
	}
	s.records = append(s.records, records...)
	return len(records), nil
}

// recordingGateway records every chunk and answers with reply, or all ok.
type recordingGateway struct {
	mu     sync.Mutex
	chunks [][]domain.PushMessage
	reply  func(call int, msgs []domain.PushMessage) ([]domain.Ticket, error)
}

func (g *recordingGateway) Send(_ context.Context, msgs []domain.PushMessage) ([]domain.Ticket, error) {
	g.mu.Lock()
	call := len(g.chunks)
	g.chunks = append(g.chunks, msgs)
	g.mu.Unlock()
	if g.reply != nil {
		return g.reply(call, msgs)
	}
	return okTickets(len(msgs)), nil
}

func (g *recordingGateway) sent() []domain.PushMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []domain.PushMessage
	for _, c := range g.chunks {
		out = append(out, c...)
	}
	return out
}

func okTickets(n int) []domain.Ticket {
	out := make([]domain.Ticket, n)
	for i := range out {
		out[i] = domain.Ticket{Status: domain.TicketStatusOK, ID: fmt.Sprintf("t-%d", i)}
	}
	return out
}

func notRegistered() domain.Ticket {
	return domain.Ticket{
		Status:  domain.TicketStatusError,
		Message: "device gone",
		Details: &domain.TicketDetails{Error: domain.TicketErrorDeviceNotRegistered},
	}
}

type mockLock struct{ mock.Mock }

func (m *mockLock) Acquire(ctx context.Context, owner string) (bool, error) {
	args := m.Called(ctx, owner)
	return args.Bool(0), args.Error(1)
}

func (m *mockLock) Release(ctx context.Context, owner string) error {
	return m.Called(ctx, owner).Error(0)
}

type mockSink struct{ mock.Mock }

func (m *mockSink) Record(ctx context.Context, report *domain.DispatchReport) error {
	return m.Called(ctx, report).Error(0)
}

func token(user, id string) domain.PushToken {
	return domain.PushToken{UserID: user, Token: "ExponentPushToken[" + id + "]", DeviceType: "ios", Active: true, SignedIn: true}
}

func pending(id, user string) domain.PendingNotification {
	return domain.PendingNotification{
		ID:      id,
		UserID:  user,
		Type:    "listing_update",
		Payload: domain.NotificationPayload{Title: "T-" + id, Message: "M-" + id},
		Pending: "1",
	}
}
