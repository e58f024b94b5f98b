package persona

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// callBounded runs fn in its own goroutine and waits for it or for the
// deadline, whichever comes first. A collaborator that ignores its context
// can outlive the call but cannot hold the caller past the bound.
func callBounded(ctx context.Context, bound time.Duration, fn func(context.Context) (string, error)) (string, error) {
	if bound > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, bound)
		defer cancel()
	}

	type reply struct {
		text string
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		text, err := fn(ctx)
		done <- reply{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", classify(r.err, bound)
		}
		return r.text, nil
	case <-ctx.Done():
		return "", classify(ctx.Err(), bound)
	}
}

func classify(err error, bound time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrRemoteTimeout, bound, err)
	}
	return fmt.Errorf("%w: %w", ErrRemoteFailure, err)
}
