package redis

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/justapithecus/snapfeed/adapter"
	"github.com/justapithecus/snapfeed/iox"
)

const testChannel = "alice/feeds/img"

func retries(n int) *int { return &n }

// asyncReceive starts a goroutine that reads one message from the subscriber
// and sends it to the returned channel. Must be called BEFORE Send to avoid
// deadlocking miniredis's synchronous pub/sub delivery.
func asyncReceive(sub *miniredis.Subscriber) <-chan miniredis.PubsubMessage {
	ch := make(chan miniredis.PubsubMessage, 1)
	go func() {
		ch <- <-sub.Messages()
	}()
	return ch
}

func waitMessage(t *testing.T, ch <-chan miniredis.PubsubMessage) miniredis.PubsubMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pub/sub message")
		return miniredis.PubsubMessage{}
	}
}

func TestSend_Success(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr(), Channel: testChannel, Retries: retries(0)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(iox.CloseFunc(a))

	sub := mr.NewSubscriber()
	sub.Subscribe(testChannel)
	ch := asyncReceive(sub)

	if err := a.Send(t.Context(), []byte("/9j/4AAQSkZJRg==")); err != nil {
		t.Fatalf("send: %v", err)
	}

	msg := waitMessage(t, ch)
	if msg.Channel != testChannel {
		t.Errorf("channel = %q, want %q", msg.Channel, testChannel)
	}
	if msg.Message != "/9j/4AAQSkZJRg==" {
		t.Errorf("message = %q", msg.Message)
	}
}

func TestPing(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr(), Channel: testChannel})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(iox.CloseFunc(a))

	if err := a.Ping(t.Context()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestSend_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	a, err := New(Config{
		URL:     "redis://" + addr,
		Channel: testChannel,
		Retries: retries(1),
		Timeout: 200 * time.Millisecond,
		Backoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(iox.CloseFunc(a))

	err = a.Send(t.Context(), []byte("x"))
	var transportErr *adapter.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if transportErr.Adapter != "redis" {
		t.Errorf("adapter = %q", transportErr.Adapter)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing url", Config{Channel: testChannel}},
		{"missing channel", Config{URL: "redis://localhost:6379"}},
		{"bad url", Config{URL: "://bad", Channel: testChannel}},
		{"negative retries", Config{URL: "redis://localhost:6379", Channel: testChannel, Retries: retries(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	a, err := New(Config{URL: "redis://localhost:6379", Channel: testChannel})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(iox.CloseFunc(a))

	if a.config.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v", a.config.Timeout)
	}
	if *a.config.Retries != DefaultRetries {
		t.Errorf("retries = %d", *a.config.Retries)
	}
	if a.config.Backoff != DefaultBackoff {
		t.Errorf("backoff = %v", a.config.Backoff)
	}
}
