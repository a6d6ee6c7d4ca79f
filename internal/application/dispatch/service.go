package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-push-dispatch/internal/domain"
	"github.com/go-push-dispatch/internal/pkg/batch"
	"github.com/go-push-dispatch/internal/pkg/id"
	"github.com/google/uuid"
)

const noPendingMessage = "No pending notifications"

// BroadcastRequest is the body of an admin broadcast.
type BroadcastRequest struct {
	Recipients       []string       `json:"recipients" validate:"required,min=1,dive,required"`
	Title            string         `json:"title" validate:"required"`
	Message          string         `json:"message" validate:"required"`
	NotificationType string         `json:"notification_type"`
	Screen           string         `json:"screen"`
	Metadata         map[string]any `json:"metadata"`
}

func (r BroadcastRequest) outgoing() Outgoing {
	t := r.NotificationType
	if t == "" {
		t = domain.TypeAdminBroadcast
	}
	return Outgoing{
		Type: t,
		Payload: domain.NotificationPayload{
			Title:    r.Title,
			Message:  r.Message,
			Screen:   r.Screen,
			Metadata: r.Metadata,
		},
	}
}

// BroadcastResult is returned to the administrator.
type BroadcastResult struct {
	Success                  bool     `json:"success"`
	TotalRecipients          int      `json:"totalRecipients"`
	WithTokens               int      `json:"withTokens"`
	WithoutTokens            int      `json:"withoutTokens"`
	MessagesComposed         int      `json:"messagesComposed"`
	PushSent                 int      `json:"pushSent"`
	PushFailed               int      `json:"pushFailed"`
	Stored                   int      `json:"stored"`
	InvalidTokensDeactivated int      `json:"invalidTokensDeactivated"`
	Errors                   []string `json:"errors"`
	RunID                    string   `json:"runId"`
	ExecutionTimeMs          int64    `json:"executionTimeMs"`
}

// BatchResult is returned to the scheduler.
type BatchResult struct {
	Success                  bool     `json:"success"`
	Message                  string   `json:"message,omitempty"`
	Total                    int      `json:"total"`
	WithTokens               int      `json:"withTokens"`
	Sent                     int      `json:"sent"`
	Failed                   int      `json:"failed"`
	Stored                   int      `json:"stored"`
	SkippedNoToken           int      `json:"skippedNoToken"`
	InvalidTokensDeactivated int      `json:"invalidTokensDeactivated"`
	Errors                   int      `json:"errors"`
	ErrorDetails             []string `json:"errorDetails,omitempty"`
	RunID                    string   `json:"runId"`
	ExecutionTimeMs          int64    `json:"executionTimeMs"`
}

type Service interface {
	// Broadcast sends one notification to every recipient on behalf of an
	// administrator. The caller must already be authorized.
	Broadcast(ctx context.Context, callerID string, req BroadcastRequest) (*BroadcastResult, error)
	// RunBatch claims and delivers the oldest pending queue rows.
	RunBatch(ctx context.Context) (*BatchResult, error)
}

// Deps holds the collaborators of the service. Lock and Sinks are optional.
type Deps struct {
	Queue   QueueStore
	Audit   AuditStore
	Tokens  TokenStore
	Records RecordStore
	Gateway Gateway
	Lock    BatchLock
	Sinks   []ReportSink
	Logger  *slog.Logger
}

// Options sizes the pages and chunks of a run.
type Options struct {
	TokenPageSize    int
	ChunkSize        int
	ChunkDelay       time.Duration
	ClaimLimit       int
	PersistBatchSize int
	Filter           domain.TokenFilter
}

type service struct {
	queue       QueueStore
	resolver    *Resolver
	dispatcher  *Dispatcher
	invalidator *Invalidator
	recorder    *Recorder
	lock        BatchLock
	sinks       []ReportSink
	claimLimit  int
	filter      domain.TokenFilter
	logger      *slog.Logger
	now         func() time.Time
	newRunID    func() string
}

func NewService(deps Deps, opts Options) Service {
	logger := deps.Logger.With("component", "dispatch_service")
	return &service{
		queue:       deps.Queue,
		resolver:    NewResolver(deps.Tokens, opts.TokenPageSize, deps.Logger),
		dispatcher:  NewDispatcher(deps.Gateway, opts.ChunkSize, opts.ChunkDelay, deps.Logger),
		invalidator: NewInvalidator(deps.Tokens, opts.TokenPageSize, deps.Logger),
		recorder:    NewRecorder(deps.Records, deps.Audit, opts.PersistBatchSize, id.New, deps.Logger),
		lock:        deps.Lock,
		sinks:       deps.Sinks,
		claimLimit:  opts.ClaimLimit,
		filter:      opts.Filter,
		logger:      logger,
		now:         time.Now,
		newRunID:    uuid.NewString,
	}
}

// run accumulates the counters and error fragments of one invocation.
type run struct {
	id       string
	mode     string
	senderID string
	started  time.Time
	stats    domain.DispatchStats
	errs     []string
}

func (r *run) fail(errs ...string) {
	r.errs = append(r.errs, errs...)
	r.stats.Errors = len(r.errs)
}

func (s *service) start(mode, senderID string) *run {
	return &run{id: s.newRunID(), mode: mode, senderID: senderID, started: s.now()}
}

func (s *service) Broadcast(ctx context.Context, callerID string, req BroadcastRequest) (*BroadcastResult, error) {
	r := s.start(domain.ModeAdminBroadcast, callerID)
	recipients := batch.Unique(req.Recipients)
	n := req.outgoing()
	r.stats.Recipients = len(recipients)

	tokens, _, err := s.resolver.Resolve(ctx, recipients, s.filter, true)
	if err != nil {
		s.logger.Error("broadcast aborted", "run_id", r.id, "err", err)
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}

	comp := NewComposition()
	comp.Add(n, recipients, tokens)
	s.deliver(ctx, r, comp)

	stored, errs := s.recorder.Store(ctx, s.recorder.recordsFor(n, recipients))
	r.stats.Stored = stored
	r.fail(errs...)

	_, errs = s.recorder.Audit(ctx, callerID, n, recipients)
	r.fail(errs...)

	report := s.finish(ctx, r)
	errList := r.errs
	if errList == nil {
		errList = []string{}
	}
	return &BroadcastResult{
		Success:                  true,
		TotalRecipients:          r.stats.Recipients,
		WithTokens:               r.stats.WithTokens,
		WithoutTokens:            r.stats.WithoutTokens,
		MessagesComposed:         len(comp.Messages),
		PushSent:                 r.stats.Sent,
		PushFailed:               r.stats.Failed,
		Stored:                   r.stats.Stored,
		InvalidTokensDeactivated: r.stats.Deactivated,
		Errors:                   errList,
		RunID:                    r.id,
		ExecutionTimeMs:          report.DurationMs,
	}, nil
}

func (s *service) RunBatch(ctx context.Context) (*BatchResult, error) {
	r := s.start(domain.ModeBatch, "")

	if s.lock != nil {
		ok, err := s.lock.Acquire(ctx, r.id)
		switch {
		case err != nil:
			// The conditional claim still guards every row.
			s.logger.Warn("batch lease unavailable, continuing without it", "run_id", r.id, "err", err)
		case !ok:
			return nil, fmt.Errorf("batch run already in progress: %w", domain.ErrConflict)
		default:
			defer func() {
				if err := s.lock.Release(context.WithoutCancel(ctx), r.id); err != nil {
					s.logger.Warn("batch lease release failed", "run_id", r.id, "err", err)
				}
			}()
		}
	}

	rows, err := s.queue.FetchPending(ctx, s.claimLimit)
	if err != nil {
		s.logger.Error("batch aborted", "run_id", r.id, "err", err)
		return nil, fmt.Errorf("fetch pending notifications: %w", err)
	}
	if len(rows) == 0 {
		return s.emptyBatch(r), nil
	}

	claimed, err := s.queue.Claim(ctx, rows)
	if err != nil {
		if len(claimed) == 0 {
			s.logger.Error("batch aborted", "run_id", r.id, "err", err)
			return nil, fmt.Errorf("claim pending notifications: %w", err)
		}
		r.fail(fmt.Sprintf("claim: %v", err))
	}
	if len(claimed) == 0 {
		s.logger.Info("pending rows were claimed by another run", "run_id", r.id, "fetched", len(rows))
		return s.emptyBatch(r), nil
	}
	r.stats.Recipients = len(claimed)

	userIDs := make([]string, len(claimed))
	for i := range claimed {
		userIDs[i] = claimed[i].UserID
	}
	tokens, errs, _ := s.resolver.Resolve(ctx, userIDs, s.filter, false)
	r.fail(errs...)

	comp := NewComposition()
	var records []domain.NotificationRecord
	for i := range claimed {
		n := rowOutgoing(claimed[i])
		comp.Add(n, []string{claimed[i].UserID}, tokens)
		records = append(records, s.recorder.recordsFor(n, []string{claimed[i].UserID})...)
	}
	s.deliver(ctx, r, comp)

	stored, errs := s.recorder.Store(ctx, records)
	r.stats.Stored = stored
	r.fail(errs...)

	report := s.finish(ctx, r)
	return &BatchResult{
		Success:                  true,
		Total:                    r.stats.Recipients,
		WithTokens:               r.stats.WithTokens,
		Sent:                     r.stats.Sent,
		Failed:                   r.stats.Failed,
		Stored:                   r.stats.Stored,
		SkippedNoToken:           r.stats.WithoutTokens,
		InvalidTokensDeactivated: r.stats.Deactivated,
		Errors:                   r.stats.Errors,
		ErrorDetails:             r.errs,
		RunID:                    r.id,
		ExecutionTimeMs:          report.DurationMs,
	}, nil
}

func rowOutgoing(row domain.PendingNotification) Outgoing {
	t := row.Type
	if t == "" {
		t = domain.TypeGeneral
	}
	return Outgoing{ID: row.ID, Type: t, Payload: row.Payload}
}

// deliver sends the composed messages and retires dead tokens.
func (s *service) deliver(ctx context.Context, r *run, comp *Composition) {
	r.stats.WithTokens += comp.WithTokens
	r.stats.WithoutTokens += comp.WithoutTokens
	if len(comp.Messages) == 0 {
		return
	}

	outcome := Reduce(s.dispatcher.Send(ctx, comp.Messages))
	r.stats.Sent += outcome.Sent
	r.stats.Failed += outcome.Failed
	r.fail(outcome.Errors...)

	if len(outcome.Invalid) == 0 {
		return
	}
	for _, tok := range outcome.Invalid {
		s.logger.Debug("token not registered", "run_id", r.id, "user_id", comp.TokenOwners[tok], "token", tok)
	}
	n, errs := s.invalidator.Invalidate(ctx, outcome.Invalid)
	r.stats.Deactivated += n
	r.fail(errs...)
}

func (s *service) emptyBatch(r *run) *BatchResult {
	return &BatchResult{
		Success:         true,
		Message:         noPendingMessage,
		RunID:           r.id,
		ExecutionTimeMs: s.now().Sub(r.started).Milliseconds(),
	}
}

// finish logs the run and hands its report to every sink. Sink failures are
// logged only.
func (s *service) finish(ctx context.Context, r *run) *domain.DispatchReport {
	report := &domain.DispatchReport{
		RunID:      r.id,
		Mode:       r.mode,
		SenderID:   r.senderID,
		Stats:      r.stats,
		Errors:     r.errs,
		StartedAt:  r.started.UTC(),
		DurationMs: s.now().Sub(r.started).Milliseconds(),
	}
	level := slog.LevelInfo
	if report.Degraded() {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "dispatch run finished",
		"run_id", r.id,
		"mode", r.mode,
		"recipients", r.stats.Recipients,
		"with_tokens", r.stats.WithTokens,
		"without_tokens", r.stats.WithoutTokens,
		"sent", r.stats.Sent,
		"failed", r.stats.Failed,
		"stored", r.stats.Stored,
		"deactivated", r.stats.Deactivated,
		"errors", r.stats.Errors,
		"duration_ms", report.DurationMs,
	)

	sinkCtx := context.WithoutCancel(ctx)
	for _, sink := range s.sinks {
		if err := sink.Record(sinkCtx, report); err != nil {
			s.logger.Warn("dispatch report sink failed", "run_id", r.id, "sink", fmt.Sprintf("%T", sink), "err", err)
		}
	}
	return report
}
