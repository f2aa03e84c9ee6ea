package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/onboard-ai/internal/core"
	"github.com/valter-silva-au/onboard-ai/pkg/models"
)

type employeeFlags struct {
	name       string
	email      string
	password   string
	companyID  string
	department string
	roles      []string
	skills     []string
	interests  []string
}

func (f *employeeFlags) bindProfile(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Full name")
	cmd.Flags().StringVar(&f.department, "department", "", "Department")
	cmd.Flags().StringSliceVar(&f.roles, "roles", nil, "Role tags (comma separated)")
	cmd.Flags().StringSliceVar(&f.skills, "skills", nil, "Skill tags (comma separated)")
	cmd.Flags().StringSliceVar(&f.interests, "interests", nil, "Interest tags (comma separated)")
}

func (f *employeeFlags) tags() models.EmployeeTags {
	return models.EmployeeTags{Roles: f.roles, Skills: f.skills, Interests: f.interests}
}

var (
	employeeRegisterFlags employeeFlags
	employeeUpdateFlags   employeeFlags

	employeeLoginEmail    string
	employeeLoginPassword string
)

var employeeCmd = &cobra.Command{
	Use:   "employee",
	Short: "Manage the employee account",
}

var employeeRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register as an employee of a company",
	Long: `Register as an employee. The company ID is the 24-character identifier
your HR department received when the company registered.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Auth == nil {
			return fmt.Errorf("auth service not initialized")
		}
		f := employeeRegisterFlags
		emp, err := Auth.RegisterEmployee(commandContext(cmd), models.EmployeeRegistration{
			Name:       f.name,
			Email:      f.email,
			Password:   f.password,
			CompanyID:  f.companyID,
			Department: f.department,
			Tags:       f.tags(),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %s. Run `onboard chat` to meet your assistant.\n", displayName(emp))
		return nil
	},
}

var employeeLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in as an employee",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Auth == nil {
			return fmt.Errorf("auth service not initialized")
		}
		emp, err := Auth.LoginEmployee(commandContext(cmd), models.Credentials{
			Email:    employeeLoginEmail,
			Password: employeeLoginPassword,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", displayName(emp))
		return nil
	},
}

var employeeUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update your employee profile",
	Long: `Update your employee profile. Tag flags replace that kind of tag; tag
kinds you do not pass keep their current values.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Auth == nil {
			return fmt.Errorf("auth service not initialized")
		}
		current := Auth.WhoAmI().Employee
		if current == nil {
			return core.ErrNotAuthenticated
		}
		f := employeeUpdateFlags
		tags := current.Tags
		if cmd.Flags().Changed("roles") {
			tags.Roles = f.roles
		}
		if cmd.Flags().Changed("skills") {
			tags.Skills = f.skills
		}
		if cmd.Flags().Changed("interests") {
			tags.Interests = f.interests
		}
		emp, err := Auth.UpdateEmployee(commandContext(cmd), models.EmployeeUpdate{
			Name:       f.name,
			Department: f.department,
			Tags:       tags,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Profile updated.")
		printEmployee(cmd.OutOrStdout(), emp)
		return nil
	},
}

func displayName(e *models.Employee) string {
	if e.Name != "" {
		return e.Name
	}
	return e.Email
}

func printEmployee(w io.Writer, e *models.Employee) {
	fmt.Fprintf(w, "  %-12s %s\n", "ID:", e.ID)
	fmt.Fprintf(w, "  %-12s %s\n", "Name:", e.Name)
	fmt.Fprintf(w, "  %-12s %s\n", "Email:", e.Email)
	fmt.Fprintf(w, "  %-12s %s\n", "Company:", e.CompanyID)
	fmt.Fprintf(w, "  %-12s %s\n", "Department:", e.Department)
	if len(e.Tags.Roles) > 0 {
		fmt.Fprintf(w, "  %-12s %s\n", "Roles:", strings.Join(e.Tags.Roles, ", "))
	}
	if len(e.Tags.Skills) > 0 {
		fmt.Fprintf(w, "  %-12s %s\n", "Skills:", strings.Join(e.Tags.Skills, ", "))
	}
	if len(e.Tags.Interests) > 0 {
		fmt.Fprintf(w, "  %-12s %s\n", "Interests:", strings.Join(e.Tags.Interests, ", "))
	}
}

func init() {
	employeeRegisterCmd.Flags().StringVar(&employeeRegisterFlags.email, "email", "", "Email address")
	employeeRegisterCmd.Flags().StringVar(&employeeRegisterFlags.password, "password", "", "Account password")
	employeeRegisterCmd.Flags().StringVar(&employeeRegisterFlags.companyID, "company-id", "", "Company ID provided by your HR department")
	employeeRegisterFlags.bindProfile(employeeRegisterCmd)
	_ = employeeRegisterCmd.MarkFlagRequired("email")
	_ = employeeRegisterCmd.MarkFlagRequired("company-id")

	employeeLoginCmd.Flags().StringVar(&employeeLoginEmail, "email", "", "Email address")
	employeeLoginCmd.Flags().StringVar(&employeeLoginPassword, "password", "", "Account password")
	_ = employeeLoginCmd.MarkFlagRequired("email")

	employeeUpdateFlags.bindProfile(employeeUpdateCmd)

	employeeCmd.AddCommand(employeeRegisterCmd, employeeLoginCmd, employeeUpdateCmd)
	rootCmd.AddCommand(employeeCmd)
}
