package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-push-dispatch/internal/pkg/batch"
)

// Invalidator retires tokens the gateway reported as permanently gone.
// Failures are reported, never fatal.
type Invalidator struct {
	store    TokenStore
	pageSize int
	logger   *slog.Logger
}

func NewInvalidator(store TokenStore, pageSize int, logger *slog.Logger) *Invalidator {
	return &Invalidator{store: store, pageSize: pageSize, logger: logger.With("component", "token_invalidator")}
}

func (v *Invalidator) Invalidate(ctx context.Context, tokens []string) (int, []string) {
	deactivated := 0
	var errs []string
	for i, page := range batch.Split(batch.Unique(tokens), v.pageSize) {
		n, err := v.store.Deactivate(ctx, page)
		deactivated += n
		if err != nil {
			v.logger.Warn("token deactivation failed", "page", i, "tokens", len(page), "err", err)
			errs = append(errs, fmt.Sprintf("deactivate tokens page %d: %v", i, err))
		}
	}
	return deactivated, errs
}
