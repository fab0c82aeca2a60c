package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"murmur/config"
	"murmur/controller"
	"murmur/hotkey"
	"murmur/paste"
)

const historySize = 5

type eventMsg controller.Event
type rewriteDoneMsg struct{ err error }
type tickMsg time.Time

type tuiModel struct {
	app *app
	ctx context.Context

	state     controller.State
	recStart  time.Time
	elapsed   time.Duration
	history   []string
	noSpeech  bool
	metrics   []string
	rewrite   string
	rewriting bool
	notice    string
	lastErr   string
	width     int
	height    int
}

var (
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	busyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	rewriteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
)

func newTUIModel(ctx context.Context, a *app) tuiModel {
	m := tuiModel{app: a, ctx: ctx}
	if a.promptErr != nil {
		m.lastErr = a.promptErr.Error()
	}
	return m
}

// runTUI blocks until the user quits or ctx is cancelled.
func runTUI(ctx context.Context, a *app) int {
	p := tea.NewProgram(newTUIModel(ctx, a), tea.WithAltScreen())
	go func() {
		for {
			select {
			case <-ctx.Done():
				p.Quit()
				return
			case ev := <-a.ctrl.Events():
				feedback(ev)
				p.Send(eventMsg(ev))
			}
		}
	}()
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}
	return 0
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case tickMsg:
		if m.state == controller.Recording {
			m.elapsed = time.Since(m.recStart)
		}
		return m, tuiTick()

	case rewriteDoneMsg:
		m.rewriting = false
		if errors.Is(msg.err, controller.ErrNoTranscript) {
			m.notice = "nothing to rewrite yet"
		}

	case eventMsg:
		m.handleEvent(controller.Event(msg))
	}
	return m, nil
}

func (m tuiModel) handleKey(key string) (tea.Model, tea.Cmd) {
	ctrl := m.app.ctrl
	m.notice = ""
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r", " ":
		if err := ctrl.Start(m.ctx); err != nil {
			m.notice = err.Error()
		}
	case "c":
		s := ctrl.Update(func(s *controller.Settings) { s.Continuous = !s.Continuous })
		m.notice = "continuous " + onOff(s.Continuous)
	case "m":
		s := ctrl.Update(func(s *controller.Settings) { s.MaxRecord = config.NextMaxRecord(s.MaxRecord) })
		m.notice = "max record " + config.MaxRecordLabel(s.MaxRecord)
	case "t":
		s := ctrl.Update(func(s *controller.Settings) { s.Tone = s.Tone.Next() })
		m.notice = "tone " + string(s.Tone)
	case "a":
		s := ctrl.Update(func(s *controller.Settings) { s.AutoPaste = !s.AutoPaste })
		m.notice = "auto-paste " + onOff(s.AutoPaste)
	case "w":
		if m.rewriting {
			return m, nil
		}
		m.rewriting = true
		ctx := m.ctx
		return m, func() tea.Msg {
			_, err := ctrl.Rewrite(ctx)
			return rewriteDoneMsg{err: err}
		}
	}
	return m, nil
}

func (m *tuiModel) handleEvent(ev controller.Event) {
	switch ev.Kind {
	case controller.StateChanged:
		m.state = ev.State
		if ev.State == controller.Recording {
			m.recStart = time.Now()
			m.elapsed = 0
		}
	case controller.CaptureDone:
		m.elapsed = ev.Duration
	case controller.SilenceStop:
		m.notice = describe(ev)
	case controller.Transcribed:
		m.noSpeech = ev.NoSpeech
		m.metrics = ev.Metrics
		m.lastErr = ""
		if !ev.NoSpeech {
			m.history = append(m.history, ev.Text)
			if len(m.history) > historySize {
				m.history = m.history[len(m.history)-historySize:]
			}
		}
	case controller.Rewritten:
		m.rewrite = fmt.Sprintf("%s: %s", ev.Tone, ev.Text)
		m.lastErr = ""
	case controller.Failed:
		m.lastErr = describe(ev)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (m tuiModel) statusLine() string {
	switch m.state {
	case controller.Recording:
		return recStyle.Render(fmt.Sprintf("● REC %.1fs", m.elapsed.Seconds()))
	case controller.Transcribing:
		return busyStyle.Render("◌ TRANSCRIBING")
	case controller.Restarting:
		return busyStyle.Render("↻ RESTARTING")
	}
	return idleStyle.Render("○ STANDBY")
}

func (m tuiModel) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	wrapWidth := max(width-2, 10)

	var b strings.Builder
	b.WriteString(m.statusLine() + "\n")
	b.WriteString(dimStyle.Render(m.app.modeLine()) + "\n")
	b.WriteString(idleStyle.Render(deviceLine(m.app.device)) + "\n")
	b.WriteString(idleStyle.Render("prompt: "+m.app.prompts.Label()) + "\n\n")

	if len(m.history) == 0 && !m.noSpeech {
		b.WriteString(idleStyle.Render("No transcriptions yet") + "\n")
	} else {
		b.WriteString(titleStyle.Render("Transcripts") + "\n")
		for _, t := range m.history {
			for _, line := range wrapText(t, wrapWidth) {
				b.WriteString(textStyle.Render(line) + "\n")
			}
		}
		if m.noSpeech {
			b.WriteString(warnStyle.Render("(no speech detected)") + "\n")
		}
	}
	for _, metric := range m.metrics {
		b.WriteString(helpStyle.Render(metric) + "\n")
	}

	if m.rewriting {
		b.WriteString("\n" + busyStyle.Render("rewriting...") + "\n")
	} else if m.rewrite != "" {
		b.WriteString("\n" + titleStyle.Render("Rewrite") + "\n")
		for _, line := range wrapText(m.rewrite, wrapWidth) {
			b.WriteString(rewriteStyle.Render(line) + "\n")
		}
	}

	if m.lastErr != "" {
		b.WriteString("\n" + errStyle.Render(m.lastErr) + "\n")
	}
	if m.notice != "" {
		b.WriteString("\n" + warnStyle.Render(m.notice) + "\n")
	}

	b.WriteString("\n")
	help := []string{
		keyStyle.Render("r") + helpStyle.Render(" record"),
		keyStyle.Render("c") + helpStyle.Render(" continuous"),
		keyStyle.Render("m") + helpStyle.Render(" max"),
		keyStyle.Render("t") + helpStyle.Render(" tone"),
		keyStyle.Render("w") + helpStyle.Render(" rewrite"),
		keyStyle.Render("a") + helpStyle.Render(" autopaste"),
		keyStyle.Render("q") + helpStyle.Render(" quit"),
	}
	b.WriteString(strings.Join(help, helpStyle.Render("  ")) + "\n")
	b.WriteString(keyStyle.Render(hotkey.Label) + helpStyle.Render(" records from anywhere, pastes with "+paste.ShortcutLabel) + "\n")
	b.WriteString(helpStyle.Render("murmur " + version))
	return b.String()
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
