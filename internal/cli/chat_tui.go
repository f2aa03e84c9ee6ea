package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/valter-silva-au/onboard-ai/internal/core"
	"github.com/valter-silva-au/onboard-ai/pkg/models"
)

const sidebarWidth = 30

type chatModel struct {
	ctx     context.Context
	session core.ChatSession

	input   []rune
	width   int
	height  int
	pending int
	err     error
}

// chatChangedMsg is sent whenever the session reports a state change.
type chatChangedMsg struct{}

// chatDoneMsg carries the result of a session operation back to the model.
type chatDoneMsg struct {
	op  string
	err error
}

func newChatModel(ctx context.Context, session core.ChatSession) chatModel {
	return chatModel{ctx: ctx, session: session}
}

func (m chatModel) Init() tea.Cmd {
	return m.run("sync", m.session.Sync)
}

// run executes a session operation off the event loop.
func (m chatModel) run(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return chatDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case chatDoneMsg:
		if m.pending > 0 {
			m.pending--
		}
		m.err = msg.err
		return m, nil

	case chatChangedMsg:
		return m, nil
	}
	return m, nil
}

func (m chatModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+c":
		return m, tea.Quit
	case "enter":
		text := strings.TrimSpace(string(m.input))
		if text == "" {
			return m, nil
		}
		m.input = nil
		m.pending++
		return m, m.run("send", func(ctx context.Context) error {
			return m.session.SendMessage(ctx, text)
		})
	case "tab":
		return m.cycle(1)
	case "shift+tab":
		return m.cycle(-1)
	case "ctrl+n":
		m.pending++
		return m, m.run("new", func(ctx context.Context) error {
			return m.session.Select(ctx, "")
		})
	case "ctrl+r":
		m.pending++
		return m, m.run("reload", func(ctx context.Context) error {
			if err := m.session.LoadConversations(ctx); err != nil {
				return err
			}
			_, err := m.session.EvaluateWelcome(ctx)
			return err
		})
	case "backspace":
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
		return m, nil
	}

	switch msg.Type {
	case tea.KeyRunes:
		m.input = append(m.input, msg.Runes...)
	case tea.KeySpace:
		m.input = append(m.input, ' ')
	}
	return m, nil
}

// cycle selects the conversation step places away from the current one,
// wrapping around. With no selection tab starts at the first conversation.
func (m chatModel) cycle(step int) (tea.Model, tea.Cmd) {
	convs := m.session.Conversations()
	if len(convs) == 0 {
		return m, nil
	}
	next := 0
	if step < 0 {
		next = len(convs) - 1
	}
	current := m.session.SelectedConversationID()
	for i, c := range convs {
		if c.ID == current {
			next = (i + step + len(convs)) % len(convs)
			break
		}
	}
	id := convs[next].ID
	m.pending++
	return m, m.run("select", func(ctx context.Context) error {
		return m.session.Select(ctx, id)
	})
}

func (m chatModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" OnboardAI Chat ")
	help := helpStyle.Render("enter: send | tab: next conversation | ctrl+n: new | ctrl+r: reload | esc: quit")

	bodyHeight := m.height - 8
	if bodyHeight < 5 {
		bodyHeight = 5
	}
	mainWidth := m.width - sidebarWidth - 6
	if mainWidth < 20 {
		mainWidth = 20
	}

	sidebar := panelStyle.Width(sidebarWidth).Height(bodyHeight).Render(m.renderSidebar(bodyHeight))
	main := panelStyle.Width(mainWidth).Height(bodyHeight).Render(m.renderMessages(mainWidth, bodyHeight))
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)

	status := ""
	switch err := m.currentErr(); {
	case m.busy():
		status = helpStyle.Render("Thinking...")
	case err != nil:
		status = localStyle.Render("Error: " + err.Error())
	}

	input := "> " + string(m.input) + "█"
	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s", title, body, status, input, help)
}

func (m chatModel) busy() bool {
	return m.pending > 0 || m.session.IsLoading()
}

func (m chatModel) currentErr() error {
	if m.err != nil {
		return m.err
	}
	return m.session.LastError()
}

func (m chatModel) renderSidebar(height int) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Conversations"))
	b.WriteString("\n")

	convs := m.session.Conversations()
	if len(convs) == 0 {
		b.WriteString(helpStyle.Render("none yet"))
		return b.String()
	}
	selected := m.session.SelectedConversationID()
	for i, c := range convs {
		if i >= height-1 {
			b.WriteString(helpStyle.Render(fmt.Sprintf("+%d more", len(convs)-i)))
			break
		}
		line := truncate(conversationTitle(c), sidebarWidth-2)
		if c.ID == selected {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (m chatModel) renderMessages(width, height int) string {
	msgs := m.session.Messages()
	if len(msgs) == 0 {
		if m.session.SelectedConversationID() == "" {
			return helpStyle.Render("Ask anything about your onboarding.")
		}
		return helpStyle.Render("No messages yet.")
	}

	wrap := lipgloss.NewStyle().Width(width)
	var lines []string
	for _, msg := range msgs {
		lines = append(lines, strings.Split(wrap.Render(renderMessage(msg)), "\n")...)
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

func renderMessage(msg models.Message) string {
	var b strings.Builder
	switch {
	case msg.Role == models.RoleUser:
		b.WriteString(userStyle.Render("You: "))
		b.WriteString(msg.Content)
	case msg.Local:
		b.WriteString(botStyle.Render("Assistant: "))
		b.WriteString(localStyle.Render(msg.Content))
	default:
		b.WriteString(botStyle.Render("Assistant: "))
		b.WriteString(msg.Content)
	}
	for i, s := range msg.Sources {
		b.WriteString("\n")
		b.WriteString(sourceStyle.Render(fmt.Sprintf("  [%d] %s", i+1, sourceLabel(s))))
	}
	return b.String()
}
