// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "complitrack",
	Short: "CompliTrack is a web-based compliance and training management tool",
	Long: `CompliTrack is a web-based compliance and training management tool
that tracks controlled documents, training modules, role profiles, shifts,
audits and per-user training assignments for an organization.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
