package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/onboard-ai/internal/stubserver"
)

const stubShutdownTimeout = 5 * time.Second

var (
	stubAddrFlag  string
	stubAccessLog bool
)

var stubServerCmd = &cobra.Command{
	Use:   "stub-server",
	Short: "Run an in-memory backend for local development",
	Long: `Run an in-memory stand-in for the OnboardAI backend.

It serves the same HTTP API under /api with canned assistant answers that
cite the company's resources. State is lost when the server stops. Point the
client at it with api.url: http://localhost:8000/api.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := stubAddrFlag
		if addr == "" {
			addr = StubAddr
		}
		if addr == "" {
			addr = ":8000"
		}

		srv := stubserver.New(stubserver.Options{AccessLog: stubAccessLog})
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start(addr)
		}()
		log.Printf("stub backend listening on %s (API under /api)", addr)

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("running stub backend: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), stubShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("stopping stub backend: %w", err)
		}
		log.Printf("stub backend stopped")
		return nil
	},
}

func init() {
	stubServerCmd.Flags().StringVar(&stubAddrFlag, "addr", "", "Listen address (defaults to stub.addr)")
	stubServerCmd.Flags().BoolVar(&stubAccessLog, "access-log", false, "Log every request")
	rootCmd.AddCommand(stubServerCmd)
}
