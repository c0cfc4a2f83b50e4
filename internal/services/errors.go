package services

import (
	"context"
	stderrors "errors"

	"github.com/abrezinsky/rafflebook/internal/errors"
	"github.com/abrezinsky/rafflebook/internal/models"
	"github.com/abrezinsky/rafflebook/internal/repository"
)

// DefaultMaxRetries bounds the optimistic-concurrency retry loop
const DefaultMaxRetries = 5

// requireCapability rejects actors whose role does not grant c
func requireCapability(actor models.Actor, c models.Capability) error {
	if actor.ID == "" {
		return errors.Unauthorized("missing actor identity")
	}
	if !actor.Can(c) {
		return errors.Unauthorizedf("role %q may not %s", actor.Role, c)
	}
	return nil
}

// storeError translates repository sentinels and context errors into
// application errors. what names the record for NotFound messages.
func storeError(ctx context.Context, err error, what string) error {
	if err == nil {
		return nil
	}
	var appErr *errors.Error
	if stderrors.As(err, &appErr) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Timeout(ctxErr)
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return errors.Timeout(err)
	}
	if stderrors.Is(err, repository.ErrNotFound) {
		return errors.NotFoundf("%s not found", what)
	}
	return errors.Internal(err)
}

func isVersionConflict(err error) bool {
	return stderrors.Is(err, repository.ErrVersionConflict)
}

// appendWarning adds w to ws when it is non-empty
func appendWarning(ws []string, w string) []string {
	if w == "" {
		return ws
	}
	return append(ws, w)
}
