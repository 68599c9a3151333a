package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/snapfeed/status"
)

// FetchFunc reads the agent's current stats.
type FetchFunc func(ctx context.Context) (*status.Stats, error)

type keyMap struct {
	Quit    key.Binding
	Refresh key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
}

type statsMsg struct {
	stats *status.Stats
	err   error
	at    time.Time
}

type tickMsg time.Time

// WatchModel is a Bubble Tea model that polls /stats and renders it.
type WatchModel struct {
	fetch     FetchFunc
	interval  time.Duration
	stats     *status.Stats
	err       error
	fetchedAt time.Time
	width     int
	height    int
	quitting  bool
}

// NewWatchModel creates a watch model refreshing every interval.
func NewWatchModel(fetch FetchFunc, interval time.Duration) WatchModel {
	return WatchModel{fetch: fetch, interval: interval}
}

// Init implements tea.Model.
func (m WatchModel) Init() tea.Cmd {
	return m.fetchCmd()
}

// Update implements tea.Model.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Refresh):
			return m, m.fetchCmd()
		}

	case statsMsg:
		m.fetchedAt = msg.at
		m.err = msg.err
		if msg.err == nil {
			m.stats = msg.stats
		}
		return m, tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })

	case tickMsg:
		return m, m.fetchCmd()
	}

	return m, nil
}

func (m WatchModel) fetchCmd() tea.Cmd {
	fetch, timeout := m.fetch, m.interval
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		stats, err := fetch(ctx)
		return statsMsg{stats: stats, err: err, at: time.Now()}
	}
}

// View implements tea.Model.
func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("snapfeed"))
	b.WriteString("\n")

	if m.stats == nil {
		if m.err != nil {
			b.WriteString(ErrorStyle.Render("unreachable: " + m.err.Error()))
		} else {
			b.WriteString(LabelStyle.Render("connecting..."))
		}
		b.WriteString("\n")
		b.WriteString(HelpStyle.Render("Press q or Ctrl+C to quit"))
		return b.String()
	}

	b.WriteString(renderStats(m.stats))

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("stale: " + m.err.Error()))
	}
	if !m.fetchedAt.IsZero() {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s %s",
			LabelStyle.Render("Updated:"),
			ValueStyle.Render(m.fetchedAt.Format("15:04:05"))))
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("Press r to refresh, q or Ctrl+C to quit"))
	return b.String()
}

func renderStats(s *status.Stats) string {
	snap := s.Metrics

	var b strings.Builder
	for _, row := range [][2]string{
		{"Device:", snap.DeviceID},
		{"Mode:", s.Mode},
		{"Adapter:", snap.Adapter},
		{"Version:", s.Version},
		{"Uptime:", (time.Duration(s.UptimeSec) * time.Second).String()},
	} {
		b.WriteString(LabelStyle.Render(row[0]))
		b.WriteString(ValueStyle.Render(row[1]))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		renderStatBox("Buffer", int64(s.BufferSize), highlightColor),
		renderStatBox("Iterations", snap.Iterations, primaryColor),
		renderStatBox("Delivered", snap.Delivered, successColor),
		renderStatBox("Send failures", snap.TransportFailures, errorColor),
	))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		renderStatBox("Empty", snap.CapturesEmpty, mutedColor),
		renderStatBox("Out of memory", snap.CapturesOOM, warningColor),
		renderStatBox("Failed", snap.CapturesFailed, errorColor),
		renderStatBox("Archived", snap.ArchiveWriteSuccess, highlightColor),
	))
	b.WriteString("\n")

	healthy := snap.TransportFailures == 0 && snap.CapturesFailed == 0
	b.WriteString(fmt.Sprintf("%s %s",
		LabelStyle.Render("Last frame:"),
		OutcomeStyle(healthy).Render(fmt.Sprintf("%d bytes", snap.LastFrameBytes))))
	return b.String()
}

func renderStatBox(label string, value int64, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// RunWatch runs the watch TUI until the user quits or ctx is canceled.
func RunWatch(ctx context.Context, fetch FetchFunc, interval time.Duration) error {
	if fetch == nil {
		return errors.New("watch requires a stats source")
	}
	if interval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", interval)
	}

	p := tea.NewProgram(NewWatchModel(fetch, interval), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// RenderStatic renders stats once without the interactive program.
func RenderStatic(s *status.Stats) string {
	return lipgloss.NewStyle().Padding(1, 2).Render(renderStats(s))
}
