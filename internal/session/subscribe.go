package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/esub/esub-go/internal/observability"
	"github.com/esub/esub-go/internal/protocol"
)

// Handler receives one delivered message. It must be quick; an error tears
// the session down as a caller error.
type Handler func(message []byte) error

// SubscribeConfig drives one persistent sub session.
type SubscribeConfig struct {
	// URL is the psub endpoint, including key and query flags.
	URL string

	// Confirm answers every delivery with the fixed ack frame. When unset
	// the keepalive prober runs instead; exactly one of the two is active.
	Confirm bool

	// ProbeInterval overrides the keepalive period. Zero uses
	// DefaultProbeInterval. Ignored when Confirm is set.
	ProbeInterval time.Duration

	// Timeout bounds the whole session; zero waits indefinitely.
	Timeout time.Duration
}

// Subscribe receives server-pushed messages until the peer ends the
// subscription, the timeout fires, or delivery fails. A clean peer close
// is normal end-of-stream and returns nil.
func Subscribe(ctx context.Context, d Dialer, cfg SubscribeConfig, deliver Handler) error {
	if deliver == nil {
		return fmt.Errorf("%w: nil delivery handler", ErrCaller)
	}

	return run(ctx, d, cfg.URL, cfg.Timeout, observability.DirectionSubscribe, func(ctx context.Context, conn Conn) error {
		if !cfg.Confirm {
			probeCtx, cancelProbe := context.WithCancel(ctx)
			probeDone := make(chan struct{})
			go func() {
				defer close(probeDone)
				keepalive(probeCtx, conn, cfg.ProbeInterval)
			}()
			// The prober must be fully stopped before any error leaves
			// this loop, whatever the termination path.
			defer func() {
				cancelProbe()
				<-probeDone
			}()
		}

		for {
			msg, err := conn.Receive()
			if errors.Is(err, ErrConnectionClosed) {
				return nil
			}
			if err != nil {
				return err
			}
			observability.RecordFrameReceived(observability.DirectionSubscribe)

			if err := deliver(msg); err != nil {
				return fmt.Errorf("%w: %v", ErrCaller, err)
			}

			if cfg.Confirm {
				if err := conn.Send([]byte(protocol.Ack)); err != nil {
					return err
				}
				observability.RecordFrameSent(observability.DirectionSubscribe, observability.FrameKindAck)
			}
		}
	})
}
