// Package mqtt implements the publish-message adapter over MQTT.
//
// Each frame is one message on the account feed topic
// ("<username>/feeds/img"). The paho client keeps the session alive and
// reconnects on its own; Send fails fast while the connection is down and
// the capture loop simply moves on to the next frame.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/justapithecus/snapfeed/adapter"
	"github.com/justapithecus/snapfeed/log"
)

// DefaultBroker is the Adafruit IO broker on its plain-TCP port.
const DefaultBroker = "tcp://io.adafruit.com:1883"

// DefaultConnectTimeout bounds the initial connection.
const DefaultConnectTimeout = 10 * time.Second

// DefaultPublishTimeout bounds a single publish.
const DefaultPublishTimeout = 5 * time.Second

// disconnectQuiesce is the grace period given to in-flight work on Close, in ms.
const disconnectQuiesce = 250

// ErrNotConnected is returned by Send while the client is reconnecting.
var ErrNotConnected = errors.New("mqtt not connected")

// Config configures the MQTT adapter.
type Config struct {
	// Broker is the broker URL (default tcp://io.adafruit.com:1883).
	Broker string
	// Username and Password are the account credentials.
	Username string
	Password string
	// ClientID identifies the session (required).
	ClientID string
	// Topic is the feed topic (required), normally
	// adapter.FeedTopic(username, "img").
	Topic string
	// QoS is the publish QoS level (0, 1 or 2).
	QoS byte
	// ConnectTimeout bounds Dial (default 10s).
	ConnectTimeout time.Duration
	// PublishTimeout bounds one Send (default 5s).
	PublishTimeout time.Duration
	// Logger receives connection state changes. Optional.
	Logger *log.Logger
}

func (c *Config) applyDefaults() error {
	if c.Broker == "" {
		c.Broker = DefaultBroker
	}
	if c.ClientID == "" {
		return errors.New("mqtt adapter requires a client id")
	}
	if c.Topic == "" {
		return errors.New("mqtt adapter requires a topic")
	}
	if c.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", c.QoS)
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = DefaultPublishTimeout
	}
	return nil
}

// publisher is the subset of the paho client the adapter uses.
type publisher interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// Adapter publishes frames to an MQTT topic.
type Adapter struct {
	config Config
	client publisher

	mu        sync.Mutex
	published uint64
	failures  uint64
}

// Stats holds publish counters.
type Stats struct {
	Published uint64
	Failures  uint64
}

// Dial connects to the broker and returns a ready adapter.
// Auto-reconnect stays enabled for the life of the adapter.
func Dial(ctx context.Context, cfg Config) (*Adapter, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	logger := cfg.Logger.With(map[string]any{"adapter": "mqtt", "broker": cfg.Broker})

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		logger.Info("mqtt connected", nil)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warn("mqtt connection lost, reconnecting", map[string]any{"error": err.Error()})
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if err := wait(ctx, token, cfg.ConnectTimeout); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}

	return &Adapter{config: cfg, client: client}, nil
}

// newWithClient wraps an already-connected client.
func newWithClient(cfg Config, client publisher) (*Adapter, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &Adapter{config: cfg, client: client}, nil
}

// Send publishes the payload as a single non-retained message.
func (a *Adapter) Send(ctx context.Context, payload []byte) error {
	if !a.client.IsConnectionOpen() {
		a.recordFailure()
		return &adapter.TransportError{Adapter: "mqtt", Err: ErrNotConnected}
	}

	token := a.client.Publish(a.config.Topic, a.config.QoS, false, payload)
	if err := wait(ctx, token, a.config.PublishTimeout); err != nil {
		a.recordFailure()
		return &adapter.TransportError{Adapter: "mqtt", Err: fmt.Errorf("publish %s: %w", a.config.Topic, err)}
	}

	a.mu.Lock()
	a.published++
	a.mu.Unlock()
	return nil
}

// Stats returns publish counters.
func (a *Adapter) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{Published: a.published, Failures: a.failures}
}

// Close disconnects from the broker.
func (a *Adapter) Close() error {
	a.client.Disconnect(disconnectQuiesce)
	return nil
}

func (a *Adapter) recordFailure() {
	a.mu.Lock()
	a.failures++
	a.mu.Unlock()
}

// errTimeout is returned when a token does not complete in time.
var errTimeout = errors.New("timed out")

// wait blocks until the token completes, the timeout elapses or ctx ends.
func wait(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return errTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ adapter.Adapter = (*Adapter)(nil)
