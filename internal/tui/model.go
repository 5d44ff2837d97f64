// Package tui is a read-only status viewer over a running TaskScheduler: a
// single table of tasks refreshed on a tick, no download-initiation flows.
// Grounded on the teacher's internal/tui (RootModel/DownloadModel split,
// lipgloss styling, bubbles/progress bars) scoped down to the subset that
// fits a scheduler status surface rather than a client-initiated downloader.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/caracaldl/caracal/internal/scheduler"
	"github.com/caracaldl/caracal/internal/tui/colors"
	"github.com/caracaldl/caracal/internal/utils"
)

// StatusSource is whatever the model polls for task statuses. *scheduler.Scheduler
// satisfies it; tests can fake it.
type StatusSource interface {
	GetAllTaskStatuses(ctx context.Context) ([]scheduler.TaskStatus, error)
}

type tickMsg struct{}

type statusMsg struct {
	statuses []scheduler.TaskStatus
	err      error
}

// Model is the root bubbletea model for the scheduler status table.
type Model struct {
	source  StatusSource
	version string
	port    int

	width, height int
	statuses      []scheduler.TaskStatus
	err           error
	bar           progress.Model
	quitting      bool
}

// New builds the status-table model for the given scheduler and listening port.
func New(source StatusSource, version string, port int) Model {
	return Model{
		source:  source,
		version: version,
		port:    port,
		bar:     progress.New(progress.WithDefaultGradient()),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(TickInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m Model) fetch() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), TickInterval)
		defer cancel()
		statuses, err := m.source.GetAllTaskStatuses(ctx)
		return statusMsg{statuses: statuses, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.bar.Width = m.width - ProgressBarWidthOffset
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	case tickMsg:
		return m, m.fetch()
	case statusMsg:
		m.statuses = msg.statuses
		m.err = msg.err
		sort.Slice(m.statuses, func(i, j int) bool { return m.statuses[i].TaskID < m.statuses[j].TaskID })
		return m, tick()
	default:
		return m, nil
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	fmt.Fprintln(&b, headerStyle.Render(fmt.Sprintf("caracal %s — port %d", m.version, m.port)))
	if m.err != nil {
		fmt.Fprintln(&b, errorStyle.Render(fmt.Sprintf("status fetch error: %v", m.err)))
	}
	if len(m.statuses) == 0 {
		fmt.Fprintln(&b, dimStyle.Render("no tasks yet — use `caracal get <url>` from another terminal"))
		return b.String()
	}
	for _, ts := range m.statuses {
		fmt.Fprintln(&b, renderRow(ts, m.bar))
	}
	fmt.Fprint(&b, dimStyle.Render("q to quit"))
	return b.String()
}

func renderRow(ts scheduler.TaskStatus, bar progress.Model) string {
	pct := 0.0
	if ts.Status.ContentLength > 0 {
		pct = float64(ts.Status.TotalReceived) / float64(ts.Status.ContentLength)
	} else if ts.State == scheduler.Completed {
		pct = 1.0
	}
	name := ts.Status.FilePath
	if name == "" {
		name = fmt.Sprintf("task #%d", ts.TaskID)
	}
	sizeInfo := fmt.Sprintf("%s / %s",
		utils.ConvertBytesToHumanReadable(int64(ts.Status.TotalReceived)),
		utils.ConvertBytesToHumanReadable(int64(ts.Status.ContentLength)))
	return fmt.Sprintf("%s %s %s  %s",
		stateStyle(ts.State).Render(fmt.Sprintf("[%-11s]", ts.State.String())),
		bar.ViewAs(pct),
		lipgloss.NewStyle().Width(24).Render(truncate(name, 24)),
		dimStyle.Render(sizeInfo),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}

func stateStyle(s scheduler.TaskState) lipgloss.Style {
	switch s {
	case scheduler.Downloading:
		return lipgloss.NewStyle().Foreground(colors.StateDownloading)
	case scheduler.Paused:
		return lipgloss.NewStyle().Foreground(colors.StatePaused)
	case scheduler.Completed:
		return lipgloss.NewStyle().Foreground(colors.StateDone)
	case scheduler.Failed, scheduler.Canceled:
		return lipgloss.NewStyle().Foreground(colors.StateError)
	default:
		return dimStyle
	}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colors.NeonCyan)
	errorStyle  = lipgloss.NewStyle().Foreground(colors.StateError)
	dimStyle    = lipgloss.NewStyle().Foreground(colors.LightGray)
)
