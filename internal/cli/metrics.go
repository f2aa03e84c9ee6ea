package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	metricsJSON  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display chat and resource metrics",
	Long: `Display aggregated metrics derived from the event log.

Metrics include answered and failed messages, conversations created,
welcome messages generated and resource changes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (observability may be disabled)")
		}

		sinceTime, err := parseSinceDuration(metricsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		if metricsJSON {
			data, err := json.MarshalIndent(metrics, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting metrics as JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		// Table format.
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Metrics (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Fprintf(out, "  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Fprintf(out, "  %-24s %d\n", "Messages answered:", metrics.MessagesSent)
		fmt.Fprintf(out, "  %-24s %d (%.0f%%)\n", "Failed replies:", metrics.RepliesFailed, metrics.ReplyFailureRate()*100)
		fmt.Fprintf(out, "  %-24s %d\n", "Conversations created:", metrics.ConversationsCreated)
		fmt.Fprintf(out, "  %-24s %d\n", "Welcomes generated:", metrics.WelcomesGenerated)
		fmt.Fprintf(out, "  %-24s %d\n", "Welcomes failed:", metrics.WelcomesFailed)
		fmt.Fprintf(out, "  %-24s %d\n", "Load failures:", metrics.LoadFailures)
		fmt.Fprintf(out, "  %-24s %d\n", "Files uploaded:", metrics.ResourcesUploaded)
		fmt.Fprintf(out, "  %-24s %d\n", "Links added:", metrics.ResourcesAdded)
		fmt.Fprintf(out, "  %-24s %d\n", "Resources deleted:", metrics.ResourcesDeleted)

		if len(metrics.Logins) > 0 {
			fmt.Fprintln(out, "\n  Logins by actor:")
			actors := make([]string, 0, len(metrics.Logins))
			for actor := range metrics.Logins {
				actors = append(actors, actor)
			}
			sort.Strings(actors)
			for _, actor := range actors {
				fmt.Fprintf(out, "    %-20s %d\n", actor+":", metrics.Logins[actor])
			}
		}

		if metrics.OldestEvent != nil {
			fmt.Fprintf(out, "\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Fprintf(out, "  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time in the past.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(metricsCmd)
}
