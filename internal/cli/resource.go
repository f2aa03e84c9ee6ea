package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/onboard-ai/internal/core"
	"github.com/valter-silva-au/onboard-ai/internal/integration"
)

// watchSettle coalesces the burst of events an editor or copy produces.
const watchSettle = 500 * time.Millisecond

var (
	resourceUploadTitle string
	resourceURLTitle    string
	resourceDownloadDir string
)

var resourceCmd = &cobra.Command{
	Use:     "resource",
	Aliases: []string{"resources"},
	Short:   "Manage the company's knowledge resources",
	Long: `Manage the documents and links the assistant answers from.

Resource commands require a company login.`,
}

var resourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the company's resources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Resources == nil {
			return fmt.Errorf("resource library not initialized")
		}
		res, err := Resources.List(commandContext(cmd))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(res) == 0 {
			fmt.Fprintln(out, "No resources yet. Add one with `onboard resource upload <file>` or `onboard resource add-url <url>`.")
			return nil
		}
		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%-24s  %-4s  %-32s  %s", "ID", "TYPE", "TITLE", "LOCATION")))
		for _, r := range res {
			fmt.Fprintf(out, "%-24s  %-4s  %-32s  %s\n", r.ID, r.Type, truncate(r.Title, 32), r.Location())
		}
		fmt.Fprintf(out, "\n%d resource(s)\n", len(res))
		return nil
	},
}

var resourceUploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload one or more files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Resources == nil {
			return fmt.Errorf("resource library not initialized")
		}
		ctx := commandContext(cmd)
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			r, err := Resources.UploadFile(ctx, args[0], resourceUploadTitle)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Uploaded %s as %q (%s)\n", args[0], r.Title, r.ID)
			return nil
		}
		if resourceUploadTitle != "" {
			return fmt.Errorf("--title can only be used with a single file")
		}

		paths := make(chan string, len(args))
		for _, p := range args {
			paths <- p
		}
		close(paths)

		var failed int
		err := Resources.UploadEach(ctx, paths, func(res core.UploadResult) {
			if res.Err != nil {
				failed++
				fmt.Fprintf(out, "  failed   %s: %v\n", res.Path, res.Err)
				return
			}
			fmt.Fprintf(out, "  uploaded %s (%s)\n", res.Path, res.Resource.ID)
		})
		if err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d uploads failed", failed, len(args))
		}
		return nil
	},
}

var resourceAddURLCmd = &cobra.Command{
	Use:   "add-url <url>",
	Short: "Add a web link as a resource",
	Long: `Add a web link as a resource. The title defaults to the URL's host.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Resources == nil {
			return fmt.Errorf("resource library not initialized")
		}
		r, err := Resources.AddURL(commandContext(cmd), args[0], resourceURLTitle)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %q (%s)\n", r.Title, r.ID)
		return nil
	},
}

var resourceDeleteCmd = &cobra.Command{
	Use:   "delete <resource-id>",
	Short: "Delete a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Resources == nil {
			return fmt.Errorf("resource library not initialized")
		}
		if err := Resources.Delete(commandContext(cmd), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

var resourceDownloadCmd = &cobra.Command{
	Use:   "download <resource-id>",
	Short: "Download a file resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Resources == nil {
			return fmt.Errorf("resource library not initialized")
		}
		path, err := Resources.Download(commandContext(cmd), args[0], resourceDownloadDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
		return nil
	},
}

var resourceWatchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Upload documents as they appear in a directory",
	Long: `Watch a directory and upload every new document whose extension is
listed in resources.watch_extensions. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Resources == nil {
			return fmt.Errorf("resource library not initialized")
		}
		w, err := integration.NewDirWatcher(WatchExtensions, watchSettle)
		if err != nil {
			return err
		}
		defer w.Stop()

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
		defer stop()

		events, err := w.Watch(ctx, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Watching %s for new documents...\n", args[0])

		return watchUploads(ctx, events, Resources, func(res core.UploadResult) {
			if res.Err != nil {
				fmt.Fprintf(out, "  failed   %s: %v\n", res.Path, res.Err)
				return
			}
			fmt.Fprintf(out, "  uploaded %s (%s)\n", res.Path, res.Resource.ID)
		})
	},
}

// watchUploads feeds created files from events into the library until the
// event channel closes or ctx is done.
func watchUploads(ctx context.Context, events <-chan integration.FileEvent, lib core.ResourceLibrary, report func(core.UploadResult)) error {
	paths := make(chan string)
	go func() {
		defer close(paths)
		for ev := range events {
			if ev.Operation != integration.FileCreated {
				continue
			}
			select {
			case paths <- ev.Path:
			case <-ctx.Done():
				return
			}
		}
	}()
	return lib.UploadEach(ctx, paths, report)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	resourceUploadCmd.Flags().StringVar(&resourceUploadTitle, "title", "", "Title (defaults to the file name)")
	resourceAddURLCmd.Flags().StringVar(&resourceURLTitle, "title", "", "Title (defaults to the URL host)")
	resourceDownloadCmd.Flags().StringVar(&resourceDownloadDir, "dir", ".", "Directory to save the file in")

	resourceCmd.AddCommand(resourceListCmd, resourceUploadCmd, resourceAddURLCmd, resourceDeleteCmd, resourceDownloadCmd, resourceWatchCmd)
	rootCmd.AddCommand(resourceCmd)
}
