package cmd

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/sysguard/pkg/checks"
	"github.com/user/sysguard/pkg/engine"
	"github.com/user/sysguard/pkg/facts"
	"github.com/user/sysguard/pkg/report"
	"go.uber.org/zap"
)

// newCollector is swapped out by tests.
var newCollector = func(root string, timeout time.Duration) facts.Collector {
	return facts.NewLocalCollector(root, timeout)
}

var (
	scanOutput  string
	scanRoot    string
	scanTimeout time.Duration
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Evaluate the host against the hardening catalogue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !slices.Contains(report.Formats, scanOutput) {
			return fmt.Errorf("%w: %q (want one of %s)", report.ErrUnknownFormat, scanOutput, strings.Join(report.Formats, ", "))
		}

		opts := appConfig.Scan
		if cmd.Flags().Changed("root") {
			opts.Root = scanRoot
		}
		if cmd.Flags().Changed("timeout") {
			if scanTimeout < 0 {
				return fmt.Errorf("--timeout must not be negative, got %s", scanTimeout)
			}
			opts.CommandTimeout = scanTimeout
		}

		cat := checks.Default(checks.Locale{
			OffKeywords:     appConfig.Locale.OffKeywords,
			RunningKeywords: appConfig.Locale.RunningKeywords,
			StoppedKeywords: appConfig.Locale.StoppedKeywords,
		})
		scanner := engine.NewScanner(cat, newCollector(opts.Root, opts.CommandTimeout), logger)

		logger.Info("Starting scan", zap.String("root", opts.Root), zap.Int("checks", len(cat.Checks())))
		started := time.Now()
		findings, err := scanner.Scan(cmd.Context())
		if err != nil {
			return err
		}

		r := report.New(findings, started, time.Since(started))
		return report.Render(cmd.OutOrStdout(), scanOutput, r, cat)
	},
}

func init() {
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "text", "Output format: text, json or yaml")
	scanCmd.Flags().StringVar(&scanRoot, "root", "", "Read host files under this directory (overrides scan.root)")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 0, "Per-command timeout, 0 for none (overrides scan.command_timeout)")
	rootCmd.AddCommand(scanCmd)
}
