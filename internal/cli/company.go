package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/onboard-ai/internal/core"
	"github.com/valter-silva-au/onboard-ai/pkg/models"
)

type companyFlags struct {
	name     string
	industry string
	size     string
	contact  string
	email    string
	password string
}

func (f *companyFlags) bind(cmd *cobra.Command, withPassword bool) {
	cmd.Flags().StringVar(&f.name, "name", "", "Company name")
	cmd.Flags().StringVar(&f.industry, "industry", "", "Industry")
	cmd.Flags().StringVar(&f.size, "size", "", "Company size (e.g. 11-50)")
	cmd.Flags().StringVar(&f.contact, "contact", "", "Contact person name")
	cmd.Flags().StringVar(&f.email, "email", "", "Contact email")
	if withPassword {
		cmd.Flags().StringVar(&f.password, "password", "", "Account password")
	}
}

var (
	companyRegisterFlags companyFlags
	companyUpdateFlags   companyFlags

	companyLoginEmail    string
	companyLoginPassword string
	companyShowRefresh   bool
)

var companyCmd = &cobra.Command{
	Use:   "company",
	Short: "Manage the company account",
}

var companyRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new company",
	Long: `Register a new company with the backend and make it the active account.

The printed company ID is what employees enter when they register.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Auth == nil {
			return fmt.Errorf("auth service not initialized")
		}
		f := companyRegisterFlags
		if f.name == "" || f.email == "" {
			return fmt.Errorf("--name and --email are required")
		}
		company, err := Auth.RegisterCompany(commandContext(cmd), models.CompanyRegistration{
			Name:        f.name,
			Industry:    f.industry,
			Size:        f.size,
			ContactName: f.contact,
			Email:       f.email,
			Password:    f.password,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Registered company %s (%s)\n", company.Name, company.ID)
		fmt.Fprintf(out, "Share this company ID with your employees: %s\n", company.ID)
		return nil
	},
}

var companyLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in as a company",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Auth == nil {
			return fmt.Errorf("auth service not initialized")
		}
		company, err := Auth.LoginCompany(commandContext(cmd), models.Credentials{
			Email:    companyLoginEmail,
			Password: companyLoginPassword,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", company.Name, company.ID)
		return nil
	},
}

var companyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active company profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Auth == nil {
			return fmt.Errorf("auth service not initialized")
		}
		var company *models.Company
		if companyShowRefresh {
			c, err := Auth.RefreshCompany(commandContext(cmd))
			if err != nil {
				return err
			}
			company = c
		} else {
			id := Auth.WhoAmI()
			if id.Actor != models.ActorCompany || id.Company == nil {
				return core.ErrNotAuthenticated
			}
			company = id.Company
		}
		printCompany(cmd.OutOrStdout(), company)
		return nil
	},
}

var companyUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the active company profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Auth == nil {
			return fmt.Errorf("auth service not initialized")
		}
		f := companyUpdateFlags
		upd := models.CompanyUpdate{
			Name:        f.name,
			Industry:    f.industry,
			Size:        f.size,
			ContactName: f.contact,
			Email:       f.email,
		}
		if upd == (models.CompanyUpdate{}) {
			return fmt.Errorf("nothing to update: pass at least one field flag")
		}
		company, err := Auth.UpdateCompany(commandContext(cmd), upd)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Company profile updated.")
		printCompany(cmd.OutOrStdout(), company)
		return nil
	},
}

var companyEmployeesCmd = &cobra.Command{
	Use:   "employees",
	Short: "List the company's employees",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Auth == nil {
			return fmt.Errorf("auth service not initialized")
		}
		emps, err := Auth.ListEmployees(commandContext(cmd))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(emps) == 0 {
			fmt.Fprintln(out, "No employees registered yet.")
			return nil
		}
		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%-24s  %-20s  %-28s  %s", "ID", "NAME", "EMAIL", "DEPARTMENT")))
		for _, e := range emps {
			fmt.Fprintf(out, "%-24s  %-20s  %-28s  %s\n", e.ID, e.Name, e.Email, e.Department)
		}
		return nil
	},
}

func printCompany(w io.Writer, c *models.Company) {
	fmt.Fprintf(w, "  %-10s %s\n", "ID:", c.ID)
	fmt.Fprintf(w, "  %-10s %s\n", "Name:", c.Name)
	fmt.Fprintf(w, "  %-10s %s\n", "Industry:", c.Industry)
	fmt.Fprintf(w, "  %-10s %s\n", "Size:", c.Size)
	fmt.Fprintf(w, "  %-10s %s\n", "Contact:", c.ContactName)
	fmt.Fprintf(w, "  %-10s %s\n", "Email:", c.Email)
}

func init() {
	companyRegisterFlags.bind(companyRegisterCmd, true)
	companyUpdateFlags.bind(companyUpdateCmd, false)

	companyLoginCmd.Flags().StringVar(&companyLoginEmail, "email", "", "Company email")
	companyLoginCmd.Flags().StringVar(&companyLoginPassword, "password", "", "Account password")
	_ = companyLoginCmd.MarkFlagRequired("email")

	companyShowCmd.Flags().BoolVar(&companyShowRefresh, "refresh", false, "Fetch the latest profile from the backend")

	companyCmd.AddCommand(companyRegisterCmd, companyLoginCmd, companyShowCmd, companyUpdateCmd, companyEmployeesCmd)
	rootCmd.AddCommand(companyCmd)
}
