// Package tui provides the live status view for a run. It is a
// read-only observer of the run documents: the only writes it performs
// are control signal files, so the single-writer rule for run documents
// is preserved.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"

	"github.com/coxlabs/coxswain/internal/control"
	"github.com/coxlabs/coxswain/internal/qa"
	"github.com/coxlabs/coxswain/internal/store"
	"github.com/coxlabs/coxswain/pkg/models"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ECDC4"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	flaggedMark = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC857")).Render("⚑")

	stateStyles = map[control.State]lipgloss.Style{
		control.StateRunning:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#96E6A1")),
		control.StatePaused:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFC857")),
		control.StateCancelled: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")),
		control.StateCompleted: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#45B7D1")),
	}
)

// snapshot is one consistent read of the run documents.
type snapshot struct {
	state    *control.ControlState
	backlog  *models.Backlog
	history  *qa.QAHistory
	readErr  error
	readTime time.Time
}

type refreshMsg snapshot

type fileChangedMsg struct{}

type watchErrMsg struct{ err error }

// Model is the bubbletea model for `coxswain status --watch`.
type Model struct {
	runID   string
	store   *store.Store
	spinner spinner.Model
	watcher *fsnotify.Watcher

	snap     snapshot
	refresh  time.Duration
	width    int
	quitting bool
	notice   string
}

// NewModel creates a watch model over a run directory.
func NewModel(runID string, st *store.Store, refresh time.Duration) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4"))
	if refresh <= 0 {
		refresh = 500 * time.Millisecond
	}
	return Model{
		runID:   runID,
		store:   st,
		spinner: sp,
		refresh: refresh,
		width:   80,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.read(), m.startWatcher(), m.tick())
}

// read loads a fresh snapshot of the run documents.
func (m Model) read() tea.Cmd {
	st := m.store
	return func() tea.Msg {
		snap := snapshot{readTime: time.Now()}

		var cs control.ControlState
		if _, err := st.Load(store.DocControlState, store.SchemaControlState, &cs); err == nil {
			snap.state = &cs
		} else if !errors.Is(err, store.ErrNotFound) {
			snap.readErr = err
		}

		if backlog, _, err := st.LoadBacklog(); err == nil {
			snap.backlog = backlog
		} else if !errors.Is(err, store.ErrNotFound) && snap.readErr == nil {
			snap.readErr = err
		}

		if history, err := qa.OpenHistory(st).Current(); err == nil {
			snap.history = history
		} else if snap.readErr == nil {
			snap.readErr = err
		}

		return refreshMsg(snap)
	}
}

// startWatcher begins watching the run directory for document changes.
func (m Model) startWatcher() tea.Cmd {
	st := m.store
	return func() tea.Msg {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return watchErrMsg{err}
		}
		if err := watcher.Add(st.Root()); err != nil {
			watcher.Close()
			return watchErrMsg{err}
		}
		return watcherReadyMsg{watcher}
	}
}

type watcherReadyMsg struct{ watcher *fsnotify.Watcher }

// waitForChange blocks until the watcher reports a write in the run
// directory.
func waitForChange(watcher *fsnotify.Watcher) tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					return fileChangedMsg{}
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
			}
		}
	}
}

type tickMsg time.Time

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.watcher != nil {
				m.watcher.Close()
			}
			return m, tea.Quit
		case "p":
			return m.signal(control.SignalPause, "paused from status view")
		case "r":
			return m.signal(control.SignalResume, "")
		case "c":
			return m.signal(control.SignalCancel, "cancelled from status view")
		}
		return m, nil

	case watcherReadyMsg:
		m.watcher = msg.watcher
		return m, waitForChange(m.watcher)

	case watchErrMsg:
		// Watcher is best effort; polling still refreshes the view.
		m.notice = fmt.Sprintf("file watcher unavailable: %v", msg.err)
		return m, nil

	case fileChangedMsg:
		cmds := []tea.Cmd{m.read()}
		if m.watcher != nil {
			cmds = append(cmds, waitForChange(m.watcher))
		}
		return m, tea.Batch(cmds...)

	case tickMsg:
		return m, tea.Batch(m.read(), m.tick())

	case refreshMsg:
		m.snap = snapshot(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// signal writes a control signal file for the runner to pick up.
func (m Model) signal(kind control.SignalKind, reason string) (tea.Model, tea.Cmd) {
	if err := control.WriteSignal(m.store, kind, reason); err != nil {
		m.notice = fmt.Sprintf("signal failed: %v", err)
		return m, nil
	}
	m.notice = fmt.Sprintf("%s requested", kind)
	return m, m.read()
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", titleStyle.Render("coxswain run"), valueStyle.Render(m.runID))

	if m.snap.readErr != nil {
		fmt.Fprintf(&b, "%s\n", errorStyle.Render(m.snap.readErr.Error()))
	}

	b.WriteString(m.renderState())
	b.WriteString(m.renderBacklog())
	b.WriteString(m.renderHistory())

	if m.notice != "" {
		fmt.Fprintf(&b, "\n%s\n", helpStyle.Render(m.notice))
	}
	b.WriteString("\n" + helpStyle.Render("p pause · r resume · c cancel · q quit") + "\n")
	return b.String()
}

func (m Model) renderState() string {
	cs := m.snap.state
	if cs == nil {
		return labelStyle.Render("state") + "  " + valueStyle.Render("not started") + "\n"
	}

	style, ok := stateStyles[cs.State]
	if !ok {
		style = valueStyle
	}
	line := labelStyle.Render("state") + "  " + style.Render(string(cs.State))
	if cs.State == control.StateRunning {
		line += " " + m.spinner.View()
	}
	if cs.State == control.StatePaused && cs.PauseReason != "" {
		line += "  " + labelStyle.Render(cs.PauseReason)
	}
	if cs.State == control.StateCancelled && cs.CancelReason != "" {
		line += "  " + labelStyle.Render(cs.CancelReason)
	}
	line += "\n"

	if cs.CurrentItemID != "" {
		line += labelStyle.Render("item ") + "  " + valueStyle.Render(cs.CurrentItemID) + "\n"
	}
	line += labelStyle.Render("ckpts") + "  " + valueStyle.Render(fmt.Sprintf("%d", len(cs.Checkpoints))) + "\n"
	return line
}

func (m Model) renderBacklog() string {
	backlog := m.snap.backlog
	if backlog == nil {
		return ""
	}

	passed := 0
	for _, item := range backlog.Items {
		if item.Passes {
			passed++
		}
	}
	line := labelStyle.Render("items") + "  " + valueStyle.Render(fmt.Sprintf("%d/%d passed", passed, len(backlog.Items))) + "\n"
	if backlog.Classified() {
		line += labelStyle.Render("level") + "  " + valueStyle.Render(string(backlog.Complexity)) + "\n"
	}
	return line
}

func (m Model) renderHistory() string {
	history := m.snap.history
	if history == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", labelStyle.Render("qa   "), valueStyle.Render(fmt.Sprintf("%d session(s)", len(history.Sessions))))

	flagged := 0
	for _, ri := range history.RecurringIssues {
		if ri.FlaggedForReview {
			flagged++
		}
	}
	if flagged > 0 {
		fmt.Fprintf(&b, "%s %s %s\n", labelStyle.Render("flags"), flaggedMark,
			valueStyle.Render(fmt.Sprintf("%d recurring issue(s) need review", flagged)))
		for _, ri := range history.RecurringIssues {
			if !ri.FlaggedForReview {
				continue
			}
			file := ri.File
			if file == "" {
				file = "(no file)"
			}
			fmt.Fprintf(&b, "       %s\n", labelStyle.Render(fmt.Sprintf("%s in %s (%d×)", ri.Type, file, ri.Occurrences)))
		}
	}
	return b.String()
}

// Run starts the watch view and blocks until the user quits.
func Run(runID string, st *store.Store, refresh time.Duration) error {
	program := tea.NewProgram(NewModel(runID, st, refresh))
	_, err := program.Run()
	return err
}
