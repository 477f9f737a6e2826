package session

import (
	"context"
	"errors"
	"time"

	"github.com/esub/esub-go/internal/observability"
)

type loopFunc func(ctx context.Context, conn Conn) error

// run is the timeout/cancellation envelope around one session. It opens
// the connection, drives loop in its own goroutine, and guarantees the
// connection is closed exactly once before any failure is returned. On
// deadline expiry the in-flight operation is abandoned by force-closing
// the connection, which unblocks the loop's pending read or write.
func run(ctx context.Context, d Dialer, url string, timeout time.Duration, direction string, loop loopFunc) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	conn, err := d.Dial(ctx, url)
	if err != nil {
		observability.RecordSession(direction, outcomeLabel(err), time.Since(start))
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- loop(ctx, conn)
	}()

	var result error
	select {
	case err := <-done:
		_ = conn.Close()
		result = err
	case <-ctx.Done():
		_ = conn.Close()
		<-done // loop observes the closed connection and exits
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result = ErrTimeout
		} else {
			result = ctx.Err()
		}
	}

	observability.RecordSession(direction, outcomeLabel(result), time.Since(start))
	return result
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrConnectionClosed):
		return "connection_closed"
	case errors.Is(err, ErrCaller):
		return "caller_error"
	default:
		return "connection_error"
	}
}
