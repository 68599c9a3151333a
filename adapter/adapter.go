// Package adapter defines the delivery sink boundary.
//
// An adapter transmits one base64-armored frame to the telemetry service.
// Two transport modes exist: request upload (aio) and publish messaging
// (mqtt, or redis as an alternative broker). The CLI picks exactly one
// adapter at startup; the capture loop never switches adapters.
//
// Session management is the adapter's own concern. Adapters are handed to
// the loop already connected and must recover from dropped sessions
// themselves (MQTT auto-reconnect, the go-redis connection pool, or an
// independent HTTP request per frame). The loop neither reconnects nor
// retries beyond what Send does internally.
package adapter

import (
	"context"
	"fmt"
)

// DefaultFeed is the feed key frames are delivered to.
const DefaultFeed = "img"

// Adapter delivers encoded frames to a downstream system.
type Adapter interface {
	// Send transmits payload as a single feed value or message.
	// Must respect context cancellation and deadlines.
	// Failures are returned as *TransportError.
	Send(ctx context.Context, payload []byte) error

	// Close releases adapter resources.
	Close() error
}

// TransportError wraps a failed delivery.
// It never affects capture buffer sizing.
type TransportError struct {
	// Adapter names the adapter that failed: aio, mqtt or redis.
	Adapter string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Adapter, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FeedTopic returns the account-scoped feed path "<username>/feeds/<feed>".
func FeedTopic(username, feed string) string {
	if feed == "" {
		feed = DefaultFeed
	}
	return username + "/feeds/" + feed
}
