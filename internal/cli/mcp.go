package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/onboard-ai/internal/core"
	onboardmcp "github.com/valter-silva-au/onboard-ai/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the onboard MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the onboard MCP server on stdio",
	Long: `Start the onboard MCP server on stdio transport.

The server lets AI coding assistants ask the onboarding assistant questions
on behalf of the logged-in account: ask, list_resources, list_conversations,
get_messages, get_metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if NewChatSession == nil {
			return fmt.Errorf("chat session not initialized")
		}

		session := NewChatSession(core.ChatSessionOptions{})
		srv := onboardmcp.NewServer(session, Resources, MetricsCalc, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
