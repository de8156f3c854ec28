package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	yasl "github.com/yasl-lang/yaslapi-go"
	"github.com/yasl-lang/yaslapi-go/rt/wazerort"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// runREPL drives one State through ResetFromSource+ExecuteREPL per input
// line. The engine's stdout is captured so the interpreter's own output
// can be woven into the transcript.
func runREPL(ctx context.Context, cfg *Config) error {
	var out bytes.Buffer
	eng, err := wazerort.NewFromFile(ctx, cfg.Runtime.Wasm,
		wazerort.WithStdout(&out), wazerort.WithStderr(&out))
	if err != nil {
		return err
	}
	defer eng.Close()

	s, err := yasl.NewStateWithEngine(eng, "")
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.DeclareLibs(); err != nil {
		return err
	}

	var quit bool
	s.PushFunction(func(*yasl.Ref) int {
		quit = true
		return 0
	}, 0)
	if err := s.DeclareGlobal("quit"); err != nil {
		return err
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return pipedREPL(s, &out, &quit)
	}

	m := newReplModel(cfg, s, &out, &quit)
	_, err = tea.NewProgram(m).Run()
	return err
}

// evalLine runs one input line and returns whatever the interpreter wrote
// plus the taxonomy error, if any.
func evalLine(s *yasl.State, out *bytes.Buffer, line string) (string, error) {
	out.Reset()
	if err := s.ResetFromSource(line); err != nil {
		return "", err
	}
	err := s.ExecuteREPL()
	return strings.TrimRight(out.String(), "\n"), err
}

// pipedREPL is the non-tty fallback: a plain line loop without the TUI.
func pipedREPL(s *yasl.State, out *bytes.Buffer, quit *bool) error {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		text, err := evalLine(s, out, sc.Text())
		if text != "" {
			fmt.Println(text)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		if *quit {
			return nil
		}
	}
	return sc.Err()
}

type replModel struct {
	state      *yasl.State
	out        *bytes.Buffer
	quit       *bool
	input      textinput.Model
	transcript []string
	history    []string
	histIdx    int // len(history) means "not navigating"
	histLimit  int
	prompt     string
}

func newReplModel(cfg *Config, s *yasl.State, out *bytes.Buffer, quit *bool) *replModel {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render(cfg.REPL.Prompt)
	ti.Focus()

	return &replModel{
		state:     s,
		out:       out,
		quit:      quit,
		input:     ti,
		histLimit: cfg.REPL.HistoryLimit,
		prompt:    cfg.REPL.Prompt,
	}
}

func (m *replModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit

		case tea.KeyUp:
			if len(m.history) > 0 && m.histIdx > 0 {
				m.histIdx--
				m.input.SetValue(m.history[m.histIdx])
				m.input.CursorEnd()
			}
			return m, nil

		case tea.KeyDown:
			if m.histIdx < len(m.history) {
				m.histIdx++
				if m.histIdx == len(m.history) {
					m.input.SetValue("")
				} else {
					m.input.SetValue(m.history[m.histIdx])
					m.input.CursorEnd()
				}
			}
			return m, nil

		case tea.KeyEnter:
			line := m.input.Value()
			m.input.SetValue("")
			if strings.TrimSpace(line) == "" {
				return m, nil
			}
			m.remember(line)
			m.transcript = append(m.transcript, m.prompt+line)

			text, err := evalLine(m.state, m.out, line)
			if text != "" {
				m.transcript = append(m.transcript, resultStyle.Render(text))
			}
			if err != nil {
				m.transcript = append(m.transcript, errorStyle.Render(err.Error()))
			}
			if *m.quit {
				return m, tea.Quit
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *replModel) remember(line string) {
	m.history = append(m.history, line)
	if len(m.history) > m.histLimit {
		m.history = m.history[len(m.history)-m.histLimit:]
	}
	m.histIdx = len(m.history)
}

func (m *replModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("YASL"))
	b.WriteString("\n\n")
	for _, line := range m.transcript {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("up/down: history • quit() or ctrl+d: exit"))
	b.WriteString("\n")
	return b.String()
}
