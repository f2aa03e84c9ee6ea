package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
)

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62"))
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	botStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)
	localStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	sourceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Transcript colors for the non-interactive chat commands.
var (
	youLabel       = color.New(color.FgGreen, color.Bold).SprintFunc()
	assistantLabel = color.New(color.FgCyan, color.Bold).SprintFunc()
	apologyText    = color.New(color.FgRed).SprintFunc()
	sourceText     = color.New(color.Faint).SprintFunc()
)
