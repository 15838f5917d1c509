// Package tui renders a terminal dashboard for a running session:
// participants and the presenter badge, the chat tail, and the current
// capture settings. It polls the session on a tick and never blocks it.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tomaslejdung/gomeet/pkg/session"
)

type tickMsg time.Time

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))

	presenterStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14"))

	chatNameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("13"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

// chatTail is how many recent chat entries the dashboard shows.
const chatTail = 8

type model struct {
	sess *session.Session
	addr string

	snap     session.Snapshot
	chat     []session.ChatMessage
	settings session.CaptureSettings
	frameSeq uint64

	width  int
	height int
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.SetWindowTitle("gomeet - Session Dashboard"),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.snap = m.sess.List()
		m.chat = m.sess.Messages()
		m.settings = m.sess.Settings()
		m.frameSeq = m.sess.FetchFrame().Seq
		return m, tickCmd()
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("gomeet"))
	b.WriteString(dimStyle.Render(" - Session Dashboard"))
	if m.addr != "" {
		b.WriteString(dimStyle.Render("  (" + m.addr + ")"))
	}
	b.WriteString("\n\n")

	left := boxStyle.Render(m.renderParticipants())
	right := boxStyle.Render(m.renderChat())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right))
	b.WriteString("\n")

	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("q: quit"))

	return b.String()
}

func (m model) renderParticipants() string {
	var b strings.Builder

	b.WriteString(statusStyle.Render(fmt.Sprintf("Participants (%d)", len(m.snap.Participants))))
	b.WriteString("\n")

	if len(m.snap.Participants) == 0 {
		b.WriteString(dimStyle.Render("nobody here yet"))
		return b.String()
	}

	for _, p := range m.snap.Participants {
		if p.Presenter {
			b.WriteString(presenterStyle.Render("* " + p.Name + " [presenting]"))
		} else {
			b.WriteString(normalStyle.Render("  " + p.Name))
		}
		b.WriteString("\n")
	}

	if len(m.snap.Requests) > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("%d waiting for the slot", len(m.snap.Requests))))
	}

	return strings.TrimRight(b.String(), "\n")
}

func (m model) renderChat() string {
	var b strings.Builder

	b.WriteString(statusStyle.Render("Chat"))
	b.WriteString("\n")

	if len(m.chat) == 0 {
		b.WriteString(dimStyle.Render("no messages"))
		return b.String()
	}

	tail := m.chat
	if len(tail) > chatTail {
		tail = tail[len(tail)-chatTail:]
	}
	for _, msg := range tail {
		b.WriteString(chatNameStyle.Render(msg.Name + ": "))
		b.WriteString(normalStyle.Render(msg.Text))
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func (m model) renderStatus() string {
	var b strings.Builder

	b.WriteString(statusStyle.Render("Capture: "))
	b.WriteString(normalStyle.Render(fmt.Sprintf("%dx%d @ %d fps, quality %d",
		m.settings.Width, m.settings.Height, m.settings.FPS, m.settings.Quality)))
	b.WriteString("  ")
	b.WriteString(statusStyle.Render("Frames: "))
	b.WriteString(normalStyle.Render(fmt.Sprintf("%d", m.frameSeq)))

	return b.String()
}

// Run starts the dashboard and blocks until the user quits.
func Run(sess *session.Session, addr string) error {
	m := model{
		sess:     sess,
		addr:     addr,
		settings: sess.Settings(),
	}
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
