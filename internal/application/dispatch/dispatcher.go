package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-push-dispatch/internal/domain"
	"github.com/go-push-dispatch/internal/pkg/batch"
	"golang.org/x/time/rate"
)

// ChunkResult is the outcome of one gateway call. Err is set when the call
// as a whole failed; otherwise Tickets is aligned with Messages.
type ChunkResult struct {
	Index    int
	Messages []domain.PushMessage
	Tickets  []domain.Ticket
	Err      error
}

// Outcome aggregates chunk results.
type Outcome struct {
	Sent   int
	Failed int
	// Invalid holds tokens the gateway reported as permanently gone.
	Invalid []string
	Errors  []string
}

// Dispatcher sends messages in gateway-sized chunks. Chunk calls are paced
// by a token bucket shared by every run using this dispatcher.
type Dispatcher struct {
	gateway   Gateway
	chunkSize int
	limiter   *rate.Limiter
	logger    *slog.Logger
}

func NewDispatcher(gateway Gateway, chunkSize int, delay time.Duration, logger *slog.Logger) *Dispatcher {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Dispatcher{
		gateway:   gateway,
		chunkSize: chunkSize,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger.With("component", "push_dispatcher"),
	}
}

// Send makes one gateway call per chunk and never stops early.
func (d *Dispatcher) Send(ctx context.Context, messages []domain.PushMessage) []ChunkResult {
	chunks := batch.Split(messages, d.chunkSize)
	results := make([]ChunkResult, 0, len(chunks))
	for i, chunk := range chunks {
		res := ChunkResult{Index: i, Messages: chunk}
		if err := d.limiter.Wait(ctx); err != nil {
			res.Err = fmt.Errorf("pacing: %w", err)
		} else {
			res.Tickets, res.Err = d.gateway.Send(ctx, chunk)
			if res.Err == nil && len(res.Tickets) != len(chunk) {
				res.Err = fmt.Errorf("gateway returned %d tickets for %d messages", len(res.Tickets), len(chunk))
			}
		}
		if res.Err != nil {
			d.logger.Warn("push chunk failed", "chunk", i, "size", len(chunk), "err", res.Err)
		}
		results = append(results, res)
	}
	return results
}

// Reduce folds chunk results into counters. A failed chunk counts all of its
// messages as failed and contributes one error fragment.
func Reduce(results []ChunkResult) Outcome {
	var out Outcome
	for _, r := range results {
		if r.Err != nil {
			out.Failed += len(r.Messages)
			out.Errors = append(out.Errors, fmt.Sprintf("chunk %d (%d messages): %v", r.Index, len(r.Messages), r.Err))
			continue
		}
		for i, t := range r.Tickets {
			switch {
			case t.Status == domain.TicketStatusOK:
				out.Sent++
			case t.Permanent():
				out.Failed++
				out.Invalid = append(out.Invalid, r.Messages[i].To)
			default:
				out.Failed++
			}
		}
	}
	return out
}
