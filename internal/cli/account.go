package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/onboard-ai/internal/core"
	"github.com/valter-silva-au/onboard-ai/pkg/models"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the persisted session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Auth == nil {
			return fmt.Errorf("auth service not initialized")
		}
		if err := Auth.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show who the persisted session belongs to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Auth == nil {
			return fmt.Errorf("auth service not initialized")
		}
		out := cmd.OutOrStdout()
		id := Auth.WhoAmI()
		if !id.Authenticated {
			fmt.Fprintln(out, "Not logged in. Run `onboard company login` or `onboard employee login`.")
			return nil
		}

		fmt.Fprintf(out, "  %-10s %s\n", "Actor:", actorLabel(id.Actor))
		if id.Employee != nil && id.Actor == models.ActorEmployee {
			fmt.Fprintf(out, "  %-10s %s <%s>\n", "Employee:", displayName(id.Employee), id.Employee.Email)
			fmt.Fprintf(out, "  %-10s %s\n", "Company:", id.Employee.CompanyID)
		}
		if id.Company != nil && id.Actor == models.ActorCompany {
			fmt.Fprintf(out, "  %-10s %s (%s)\n", "Company:", id.Company.Name, id.Company.ID)
		}
		fmt.Fprintf(out, "  %-10s %s\n", "Home:", homeHint(id.Home))
		return nil
	},
}

func actorLabel(a models.ActorType) string {
	if a == models.ActorNone {
		return "unknown"
	}
	return string(a)
}

func homeHint(home string) string {
	switch home {
	case core.HomeChat:
		return "chat (onboard chat)"
	case core.HomeDashboard:
		return "dashboard (onboard resource list)"
	default:
		return "login (onboard company login | onboard employee login)"
	}
}

func init() {
	rootCmd.AddCommand(logoutCmd, whoamiCmd)
}
