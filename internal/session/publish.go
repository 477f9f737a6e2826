package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/esub/esub-go/internal/observability"
	"github.com/esub/esub-go/internal/protocol"
)

// ConfirmFunc observes one confirmed publish: the data that was sent and
// the confirmation frame the server answered with.
type ConfirmFunc func(sent string, confirmation []byte)

// PublishConfig drives one persistent rep session.
type PublishConfig struct {
	// URL is the prep endpoint.
	URL string

	// Defaults supplies session-level key/token/psub; per-item fields win.
	Defaults protocol.Envelope

	// Confirm requires one confirmation frame per sent item. Sends and
	// receives then strictly alternate with no pipelining.
	Confirm bool

	// OnConfirm is invoked per confirmation when Confirm is set. Default
	// logs the pair.
	OnConfirm ConfirmFunc

	// Timeout bounds the whole session; zero waits indefinitely.
	Timeout time.Duration
}

// Publish sends every item the source yields over one connection, in
// order, then closes it. Transport failures close the connection and
// propagate; this layer never retries.
func Publish(ctx context.Context, d Dialer, cfg PublishConfig, next Source) error {
	if next == nil {
		return fmt.Errorf("%w: nil item source", ErrCaller)
	}
	onConfirm := cfg.OnConfirm
	if onConfirm == nil {
		onConfirm = func(sent string, confirmation []byte) {
			log.Info().Str("sent", sent).Bytes("confirmation", confirmation).Msg("rep confirmed")
		}
	}

	return run(ctx, d, cfg.URL, cfg.Timeout, observability.DirectionPublish, func(ctx context.Context, conn Conn) error {
		for {
			item, err := next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("%w: item source: %v", ErrCaller, err)
			}

			env := protocol.Merge(cfg.Defaults, protocol.Envelope{
				Key:   item.Key,
				Token: item.Token,
				Psub:  item.Psub,
				Data:  item.Data,
			})
			payload, err := env.Encode()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCaller, err)
			}
			if err := conn.Send(payload); err != nil {
				return err
			}
			observability.RecordFrameSent(observability.DirectionPublish, observability.FrameKindData)

			if !cfg.Confirm {
				continue
			}
			confirmation, err := conn.Receive()
			if err != nil {
				return err
			}
			observability.RecordFrameReceived(observability.DirectionPublish)
			onConfirm(item.Data, confirmation)
		}
	})
}
