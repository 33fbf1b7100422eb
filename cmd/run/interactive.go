package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/config"
	"github.com/wippyai/wasm-bridge/runtime"
	"github.com/wippyai/wasm-bridge/task"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
)

const maxJobRows = 8

type interactiveModel struct {
	err      error
	s        *session
	result   string
	funcs    []funcInfo
	jobs     []jobRow
	input    textinput.Model
	spin     spinner.Model
	selected int
	digests  int
	state    modelState
}

type funcInfo struct {
	module string
	name   string
}

type jobRow struct {
	at    time.Time
	err   error
	id    string
	name  string
	state task.State
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

func newInteractiveModel(s *session) *interactiveModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = typeStyle
	return &interactiveModel{
		s:     s,
		spin:  sp,
		state: stateSelectFunc,
	}
}

type loadedMsg struct {
	err   error
	funcs []funcInfo
}

type callResultMsg struct {
	err    error
	result string
}

type jobMsg task.Event

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(m.loadExports, m.spin.Tick)
}

func (m *interactiveModel) loadExports() tea.Msg {
	ctx := context.Background()
	mods, err := m.s.iso.Modules(ctx)
	if err != nil {
		return loadedMsg{err: err}
	}
	var funcs []funcInfo
	for _, mod := range mods {
		exports, err := m.s.iso.Exports(ctx, mod)
		if err != nil {
			return loadedMsg{err: err}
		}
		for _, e := range exports {
			funcs = append(funcs, funcInfo{module: mod, name: e})
		}
	}
	return loadedMsg{funcs: funcs}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "d":
			if m.state == stateSelectFunc {
				m.digests++
				return m, m.scheduleDigest(fmt.Sprintf("interactive-%d", m.digests))
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.funcs) == 0 {
					break
				}
				m.prepareInput()
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.callFunction(m.funcs[m.selected], m.input.Value())

			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.funcs = msg.funcs

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult

	case jobMsg:
		m.track(task.Event(msg))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	if m.state == stateInputArgs {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	return m, nil
}

// track records a job lifecycle event, newest job first. Events are
// delivered asynchronously, so a stale state never overwrites a later one.
func (m *interactiveModel) track(ev task.Event) {
	for k := range m.jobs {
		if m.jobs[k].id == ev.Job.ID {
			if ev.State < m.jobs[k].state {
				return
			}
			m.jobs[k].state = ev.State
			m.jobs[k].err = ev.Err
			m.jobs[k].at = ev.At
			return
		}
	}
	row := jobRow{at: ev.At, err: ev.Err, id: ev.Job.ID, name: ev.Name, state: ev.State}
	m.jobs = append([]jobRow{row}, m.jobs...)
	if len(m.jobs) > maxJobRows {
		m.jobs = m.jobs[:maxJobRows]
	}
}

func (m *interactiveModel) prepareInput() {
	ti := textinput.New()
	ti.Placeholder = "comma separated, e.g. 2, 3"
	ti.Prompt = "args: "
	ti.Width = 40
	ti.Focus()
	m.input = ti
}

func (m *interactiveModel) callFunction(f funcInfo, raw string) tea.Cmd {
	return func() tea.Msg {
		var args []any
		if strings.TrimSpace(raw) != "" {
			for _, a := range strings.Split(raw, ",") {
				args = append(args, parseArg(strings.TrimSpace(a)))
			}
		}
		res, err := m.s.iso.Call(context.Background(), f.module, f.name, args...)
		if err != nil {
			return callResultMsg{err: err}
		}
		return callResultMsg{result: formatValue(res)}
	}
}

func (m *interactiveModel) scheduleDigest(text string) tea.Cmd {
	return func() tea.Msg {
		if _, err := m.s.iso.Call(context.Background(), "jobs", "digest", text, 200000); err != nil {
			return callResultMsg{err: err}
		}
		return nil
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.funcs == nil {
		return m.spin.View() + " Loading modules..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Bridge Runner"))
	if m.s.guest != nil {
		b.WriteString(" guest ")
		b.WriteString(funcStyle.Render(m.s.guest.Name()))
	}
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a function to call:\n\n")
		for i, f := range m.funcs {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + f.module + "." + f.name))
			} else {
				b.WriteString("  " + formatFunc(f))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • d schedule digest • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", formatFunc(f)))
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", formatFunc(f)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	b.WriteString("\n\n")
	b.WriteString(panelStyle.Render(m.jobsView()))
	return b.String()
}

func (m *interactiveModel) jobsView() string {
	if len(m.jobs) == 0 {
		return helpStyle.Render("no tasks")
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Tasks (%d active)\n", len(m.s.iso.Scheduler().Active())))
	for k, j := range m.jobs {
		if k > 0 {
			b.WriteString("\n")
		}
		mark := m.spin.View()
		if j.state == task.Done {
			mark = resultStyle.Render("✓")
			if j.err != nil {
				mark = errorStyle.Render("✗")
			}
		}
		b.WriteString(fmt.Sprintf("%s %s %s %s", mark, j.id[:8], funcStyle.Render(j.name), typeStyle.Render(j.state.String())))
		if j.state != task.Done {
			continue
		}
		if j.err != nil {
			b.WriteString(" " + errorStyle.Render(j.err.Error()))
		} else if v, ok := m.s.results.Get(j.id); ok {
			b.WriteString(" " + resultStyle.Render(v[:min(16, len(v))]))
		}
	}
	return b.String()
}

func formatFunc(f funcInfo) string {
	return typeStyle.Render(f.module) + "." + funcStyle.Render(f.name)
}

func runInteractive(cfg *config.Config, wasmFile string) error {
	ctx := context.Background()

	// Log lines on the terminal would tear the alt screen.
	for _, out := range cfg.Log.Output {
		if out == "stderr" || out == "stdout" {
			runtime.SetLogger(zap.NewNop())
			break
		}
	}

	s, err := open(ctx, cfg, wasmFile)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	p := tea.NewProgram(newInteractiveModel(s), tea.WithAltScreen())
	cancel := s.iso.Scheduler().Subscribe(func(ev task.Event) {
		go p.Send(jobMsg(ev))
	})
	defer cancel()

	_, err = p.Run()
	return err
}
