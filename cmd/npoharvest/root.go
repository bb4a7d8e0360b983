package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for npoharvest.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "npoharvest",
		Short: "Collect currently valid social organizations from the national registry",
		Long: `npoharvest drives a real browser through the social organization registry
(xxgs.chinanpo.mca.gov.cn), searches each requested region for a keyword and keeps
the organizations whose validity period ends on or after the cutoff date.

The registry protects itself with interactive challenges. npoharvest never tries
to solve them: it pauses, tells you what it saw and waits until you have solved
the challenge in the browser window.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewRegionsCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}
