package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-push-dispatch/internal/domain"
	"github.com/go-push-dispatch/internal/pkg/batch"
	"github.com/go-push-dispatch/internal/pkg/pushtoken"
)

// Resolver looks up the device tokens of many users, one page of ids per
// store query.
type Resolver struct {
	store    TokenStore
	pageSize int
	logger   *slog.Logger
}

func NewResolver(store TokenStore, pageSize int, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, pageSize: pageSize, logger: logger.With("component", "token_resolver")}
}

// Resolve groups the valid tokens of userIDs by user. With failFast set, the
// first failing page fails the whole call; otherwise the page is skipped and
// reported in the returned error fragments.
func (r *Resolver) Resolve(ctx context.Context, userIDs []string, filter domain.TokenFilter, failFast bool) (domain.TokenSet, []string, error) {
	set := make(domain.TokenSet)
	seen := make(map[[2]string]struct{})
	var errs []string
	discarded := 0

	for i, page := range batch.Split(batch.Unique(userIDs), r.pageSize) {
		tokens, err := r.store.TokensByUsers(ctx, page, filter)
		if err != nil {
			if failFast {
				return nil, nil, fmt.Errorf("resolve tokens page %d: %w", i, err)
			}
			r.logger.Warn("token page failed", "page", i, "users", len(page), "err", err)
			errs = append(errs, fmt.Sprintf("token lookup page %d (%d users): %v", i, len(page), err))
			continue
		}
		for _, t := range tokens {
			if !pushtoken.Valid(t.Token) {
				discarded++
				continue
			}
			key := [2]string{t.UserID, t.Token}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			set[t.UserID] = append(set[t.UserID], domain.DeviceToken{Token: t.Token, DeviceType: t.DeviceType})
		}
	}
	if discarded > 0 {
		r.logger.Info("discarded malformed tokens", "count", discarded)
	}
	return set, errs, nil
}
