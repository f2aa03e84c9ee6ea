package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/onboard-ai/internal/core"
	"github.com/valter-silva-au/onboard-ai/pkg/models"
)

var (
	chatNewTitle         string
	chatSendConversation string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the onboarding assistant",
	Long: `Open the interactive chat.

Conversations are listed on the left and the selected conversation on the
right. Type a message and press Enter to send it; the first message of a new
conversation creates it. Employees without any conversation are greeted with
a personalized welcome.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if NewChatSession == nil {
			return fmt.Errorf("chat session not initialized")
		}
		var prog *tea.Program
		session := NewChatSession(core.ChatSessionOptions{
			WelcomeEnabled: true,
			OnChange:       func() {
				if prog != nil {
					prog.Send(chatChangedMsg{})
				}
			},
		})
		prog = tea.NewProgram(newChatModel(commandContext(cmd), session), tea.WithAltScreen())
		_, err := prog.Run()
		return err
	},
}

var chatListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if NewChatSession == nil {
			return fmt.Errorf("chat session not initialized")
		}
		session := NewChatSession(core.ChatSessionOptions{})
		if err := session.LoadConversations(commandContext(cmd)); err != nil {
			return err
		}
		if err := session.LastError(); err != nil {
			return fmt.Errorf("loading conversations: %w", err)
		}

		out := cmd.OutOrStdout()
		convs := session.Conversations()
		if len(convs) == 0 {
			fmt.Fprintln(out, "No conversations yet. Start one with `onboard chat send <question>`.")
			return nil
		}
		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%-24s  %-8s  %-16s  %s", "ID", "MESSAGES", "CREATED", "TITLE")))
		for _, c := range convs {
			fmt.Fprintf(out, "%-24s  %-8d  %-16s  %s\n", c.ID, len(c.Messages), formatCreated(c.CreatedAt), conversationTitle(c))
		}
		return nil
	},
}

var chatNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create an empty conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if NewChatSession == nil {
			return fmt.Errorf("chat session not initialized")
		}
		session := NewChatSession(core.ChatSessionOptions{})
		id, err := session.CreateConversation(commandContext(cmd), chatNewTitle)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created conversation %s\n", id)
		return nil
	},
}

var chatHistoryCmd = &cobra.Command{
	Use:   "history <conversation-id>",
	Short: "Print a conversation's messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if NewChatSession == nil {
			return fmt.Errorf("chat session not initialized")
		}
		session := NewChatSession(core.ChatSessionOptions{})
		if err := session.Select(commandContext(cmd), args[0]); err != nil {
			return err
		}
		if err := session.LastError(); err != nil {
			return fmt.Errorf("loading messages: %w", err)
		}
		msgs := session.Messages()
		if len(msgs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No messages in this conversation.")
			return nil
		}
		printTranscript(cmd.OutOrStdout(), msgs)
		return nil
	},
}

var chatSendCmd = &cobra.Command{
	Use:   "send <message>...",
	Short: "Ask the assistant a question",
	Long: `Send a message and print the assistant's answer with its sources.

Without --conversation a new conversation is started.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if NewChatSession == nil {
			return fmt.Errorf("chat session not initialized")
		}
		ctx := commandContext(cmd)
		out := cmd.OutOrStdout()
		session := NewChatSession(core.ChatSessionOptions{
			OnConversationCreated: func(id string) {
				fmt.Fprintf(out, "Started conversation %s\n", id)
			},
		})

		if chatSendConversation != "" {
			if err := session.Select(ctx, chatSendConversation); err != nil {
				return err
			}
			if err := session.LastError(); err != nil {
				return fmt.Errorf("loading conversation: %w", err)
			}
		}

		before := len(session.Messages())
		if err := session.SendMessage(ctx, strings.Join(args, " ")); err != nil {
			return err
		}
		msgs := session.Messages()
		if before > len(msgs) {
			before = 0
		}
		printTranscript(out, msgs[before:])

		if n := len(msgs); n > 0 && msgs[n-1].Local {
			return fmt.Errorf("the assistant could not answer: %w", session.LastError())
		}
		return nil
	},
}

// printTranscript writes messages with colored role labels and numbered
// sources under each assistant answer.
func printTranscript(w io.Writer, msgs []models.Message) {
	for _, m := range msgs {
		switch {
		case m.Role == models.RoleUser:
			fmt.Fprintf(w, "%s %s\n", youLabel("You:"), m.Content)
		case m.Local:
			fmt.Fprintf(w, "%s %s\n", assistantLabel("Assistant:"), apologyText(m.Content))
		default:
			fmt.Fprintf(w, "%s %s\n", assistantLabel("Assistant:"), m.Content)
		}
		for i, s := range m.Sources {
			fmt.Fprintln(w, sourceText(fmt.Sprintf("    [%d] %s", i+1, sourceLabel(s))))
		}
	}
}

func sourceLabel(s models.Source) string {
	title := s.Title
	if title == "" {
		title = s.FileName
	}
	switch {
	case s.URL != "" && s.URL != title:
		return fmt.Sprintf("%s (%s)", title, s.URL)
	case s.FileName != "" && s.FileName != title:
		return fmt.Sprintf("%s (%s)", title, s.FileName)
	default:
		return title
	}
}

func conversationTitle(c models.Conversation) string {
	if c.Title != "" {
		return c.Title
	}
	return "New conversation"
}

func formatCreated(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func init() {
	chatNewCmd.Flags().StringVar(&chatNewTitle, "title", "", "Conversation title")
	chatSendCmd.Flags().StringVar(&chatSendConversation, "conversation", "", "Conversation ID to continue")

	chatCmd.AddCommand(chatListCmd, chatNewCmd, chatHistoryCmd, chatSendCmd)
	rootCmd.AddCommand(chatCmd)
}
