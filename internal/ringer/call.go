package ringer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/mute-zones-service/internal/domain"
)

// bounded runs a device call with a deadline. Platform calls may ignore
// their context, so the call runs on its own goroutine and is abandoned
// when the deadline passes. Errors and panics come back wrapping
// domain.ErrDeviceAPI, except permission refusals, which keep
// domain.ErrPermissionDenied as their only sentinel.
func bounded[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%w: panic: %v", domain.ErrDeviceAPI, r)}
			}
		}()
		v, err := fn(callCtx)
		done <- result{val: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, fmt.Errorf("%w: %w after %s", domain.ErrDeviceAPI, domain.ErrDeviceTimeout, timeout)
		}
		if r.err != nil {
			return zero, asDeviceError(r.err)
		}
		return r.val, nil
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%w: %w", domain.ErrDeviceAPI, ctx.Err())
		}
		return zero, fmt.Errorf("%w: %w after %s", domain.ErrDeviceAPI, domain.ErrDeviceTimeout, timeout)
	}
}

func asDeviceError(err error) error {
	if errors.Is(err, domain.ErrDeviceAPI) || errors.Is(err, domain.ErrPermissionDenied) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrDeviceAPI, err)
}
