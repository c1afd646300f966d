package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/sysguard/pkg/checks"
)

var checksCmd = &cobra.Command{
	Use:   "checks",
	Short: "List the catalogue of checks and the report keys they fill",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-18s %-50s %s\n", "ID", "TITLE", "KEYS")
		for _, chk := range checks.Default(checks.DefaultLocale()).Checks() {
			fmt.Fprintf(out, "%-18s %-50s %s\n", chk.ID(), chk.Title(), strings.Join(chk.Keys(), ","))
		}
	},
}

func init() {
	rootCmd.AddCommand(checksCmd)
}
