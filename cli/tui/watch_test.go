package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/snapfeed/metrics"
	"github.com/justapithecus/snapfeed/status"
)

func sampleStats() *status.Stats {
	return &status.Stats{
		Version:    "0.1.0",
		Mode:       "HTTP",
		BufferSize: 17000,
		UptimeSec:  90,
		Metrics: metrics.Snapshot{
			Iterations:        6,
			Delivered:         5,
			TransportFailures: 1,
			LastFrameBytes:    12000,
			DeviceID:          "cam-1",
			Adapter:           "aio",
		},
	}
}

func TestWatchModel_InitFetches(t *testing.T) {
	calls := 0
	m := NewWatchModel(func(context.Context) (*status.Stats, error) {
		calls++
		return sampleStats(), nil
	}, time.Second)

	cmd := m.Init()
	if cmd == nil {
		t.Fatal("Init should return a fetch command")
	}
	msg, ok := cmd().(statsMsg)
	if !ok {
		t.Fatalf("fetch command returned %T, want statsMsg", msg)
	}
	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1", calls)
	}
	if msg.stats.BufferSize != 17000 {
		t.Errorf("BufferSize = %d, want 17000", msg.stats.BufferSize)
	}
}

func TestWatchModel_StatsMessageSchedulesTick(t *testing.T) {
	m := NewWatchModel(nil, time.Second)

	updated, cmd := m.Update(statsMsg{stats: sampleStats(), at: time.Now()})
	if cmd == nil {
		t.Error("expected a tick command after stats arrive")
	}

	view := updated.View()
	for _, want := range []string{"cam-1", "HTTP", "aio", "17000", "Delivered", "12000 bytes"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestWatchModel_FetchErrorKeepsLastStats(t *testing.T) {
	m := NewWatchModel(nil, time.Second)

	updated, _ := m.Update(statsMsg{stats: sampleStats(), at: time.Now()})
	updated, _ = updated.Update(statsMsg{err: errors.New("connection refused"), at: time.Now()})

	view := updated.View()
	if !strings.Contains(view, "cam-1") {
		t.Error("view should keep the last good stats")
	}
	if !strings.Contains(view, "stale: connection refused") {
		t.Errorf("view should flag stale data:\n%s", view)
	}
}

func TestWatchModel_Unreachable(t *testing.T) {
	m := NewWatchModel(nil, time.Second)

	if !strings.Contains(m.View(), "connecting...") {
		t.Error("initial view should show connecting")
	}

	updated, _ := m.Update(statsMsg{err: errors.New("dial tcp: refused")})
	if !strings.Contains(updated.View(), "unreachable: dial tcp: refused") {
		t.Errorf("view should show unreachable:\n%s", updated.View())
	}
}

func TestWatchModel_Keys(t *testing.T) {
	m := NewWatchModel(func(context.Context) (*status.Stats, error) {
		return sampleStats(), nil
	}, time.Second)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if cmd == nil {
		t.Fatal("r should trigger a refresh")
	}
	if _, ok := cmd().(statsMsg); !ok {
		t.Error("refresh command should produce stats")
	}

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if updated.View() != "" {
		t.Error("view should be empty after quitting")
	}
}

func TestWatchModel_TickFetches(t *testing.T) {
	m := NewWatchModel(func(context.Context) (*status.Stats, error) {
		return sampleStats(), nil
	}, time.Second)

	_, cmd := m.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("tick should trigger a fetch")
	}
}

func TestRenderStatic(t *testing.T) {
	out := RenderStatic(sampleStats())
	for _, want := range []string{"cam-1", "Send failures", "1m30s"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderStatic missing %q:\n%s", want, out)
		}
	}
}

func TestRunWatch_Validation(t *testing.T) {
	if err := RunWatch(context.Background(), nil, time.Second); err == nil {
		t.Error("expected error for nil fetch")
	}
	fetch := func(context.Context) (*status.Stats, error) { return nil, nil }
	if err := RunWatch(context.Background(), fetch, 0); err == nil {
		t.Error("expected error for zero interval")
	}
}
