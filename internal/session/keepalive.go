package session

import (
	"context"
	"time"

	"github.com/esub/esub-go/internal/observability"
)

// DefaultProbeInterval is 90% of the default 60s idle-timeout hint.
const DefaultProbeInterval = 54 * time.Second

// keepalive probes the connection every interval so intermediate
// infrastructure does not tear down an idle subscription. It never reads.
// It exits when ctx is cancelled or a probe fails; a failed probe is not
// reported here since the concurrent receive observes the same closure.
func keepalive(ctx context.Context, conn Conn, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Probe(); err != nil {
				return
			}
			observability.RecordProbe()
		}
	}
}
