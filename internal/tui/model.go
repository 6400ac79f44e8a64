package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"geotech-rag/internal/models"
	"geotech-rag/internal/rag"
)

// ChatPort is the TUI-facing subset of the pipeline, bound to one session.
type ChatPort interface {
	Ask(ctx context.Context, question string) (rag.Answer, error)
	Rebuild(ctx context.Context) (rag.State, error)
	ClearHistory(ctx context.Context) error
}

// SessionPort binds a pipeline to a single session.
type SessionPort struct {
	Pipeline *rag.Pipeline
	Session  *rag.Session
}

func (p SessionPort) Ask(ctx context.Context, question string) (rag.Answer, error) {
	return p.Pipeline.Ask(ctx, p.Session, question)
}

func (p SessionPort) Rebuild(ctx context.Context) (rag.State, error) {
	return p.Pipeline.Rebuild(ctx, p.Session)
}

func (p SessionPort) ClearHistory(ctx context.Context) error {
	return p.Pipeline.ClearHistory(ctx, p.Session)
}

type answerMsg struct {
	answer rag.Answer
	err    error
}

type rebuildMsg struct {
	state rag.State
	err   error
}

type clearMsg struct {
	err error
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx      context.Context
	port     ChatPort
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	entries  []string
	status   string
	busy     bool
	ready    bool
}

func New(ctx context.Context, port ChatPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the PDFs, /clear or /rebuild"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		ctx:      ctx,
		port:     port,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Type a question and press Enter.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := chatBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-ch)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.entries = append(m.entries, renderAnswer(msg.answer))
			m.status = "State: " + msg.answer.State.String()
		}
		m.refresh()
		return m, nil
	case rebuildMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Rebuild failed: " + msg.err.Error()
		} else {
			m.status = "Index rebuilt. State: " + msg.state.String()
		}
		return m, nil
	case clearMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Clear failed: " + msg.err.Error()
			return m, nil
		}
		m.entries = nil
		m.status = "Chat cleared."
		m.refresh()
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	q := strings.TrimSpace(m.input.Value())
	if q == "" || m.busy {
		return m, nil
	}
	m.input.SetValue("")
	switch q {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/clear":
		m.busy = true
		m.status = "Clearing chat..."
		return m, tea.Batch(m.clearCmd(), m.spinner.Tick)
	case "/rebuild":
		m.busy = true
		m.status = "Rebuilding index..."
		return m, tea.Batch(m.rebuildCmd(), m.spinner.Tick)
	}
	m.busy = true
	m.status = "Thinking..."
	m.entries = append(m.entries, userStyle.Render("You: ")+q)
	m.refresh()
	return m, tea.Batch(m.askCmd(q), m.spinner.Tick)
}

func (m Model) askCmd(q string) tea.Cmd {
	return func() tea.Msg {
		answer, err := m.port.Ask(m.ctx, q)
		return answerMsg{answer: answer, err: err}
	}
}

func (m Model) rebuildCmd() tea.Cmd {
	return func() tea.Msg {
		state, err := m.port.Rebuild(m.ctx)
		return rebuildMsg{state: state, err: err}
	}
}

func (m Model) clearCmd() tea.Cmd {
	return func() tea.Msg {
		return clearMsg{err: m.port.ClearHistory(m.ctx)}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Geotechnical Assistant")
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + chatBoxStyle.Render(m.viewport.View()) + "\n" + inputBoxStyle.Render(m.input.View()) + "\n" + status
}

func (m *Model) refresh() {
	if len(m.entries) == 0 {
		m.viewport.SetContent("No messages yet.")
		return
	}
	m.viewport.SetContent(strings.Join(m.entries, "\n\n"))
	m.viewport.GotoBottom()
}

func renderAnswer(a rag.Answer) string {
	var sb strings.Builder
	sb.WriteString(assistantStyle.Render("Assistant: "))
	sb.WriteString(a.Text)
	if len(a.Sources) > 0 {
		sb.WriteString("\n")
		sb.WriteString(sourceStyle.Render("Sources: " + formatSources(a.Sources)))
	}
	return sb.String()
}

func formatSources(sources []models.ScoredChunk) string {
	labels := make([]string, len(sources))
	for i, s := range sources {
		labels[i] = fmt.Sprintf("%s p.%d (%.2f)", s.Source, s.Page, s.Score)
	}
	return strings.Join(labels, ", ")
}

var (
	chatBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
