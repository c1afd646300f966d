package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/user/sysguard/pkg/config"
	"github.com/user/sysguard/pkg/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var rootCmd = &cobra.Command{
	Use:   "sysguard",
	Short: "Host security-hardening compliance scanner",
	Long: `sysguard inspects the local host against a fixed catalogue of hardening
rules (password policy, high-risk ports, exposed services, audit logging,
access control) and reports a pass/fail checklist per rule.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bootstrap(cmd)
	},
}

var (
	DebugMode bool
	cfgFile   string

	appConfig = config.Default()
	logger    = zap.NewNop()
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	// An interrupt stops the scan at the next check boundary.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logger.Sync()
	cobra.CheckErr(err)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&DebugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./sysguard.yaml or ~/.sysguard/sysguard.yaml)")
}

// bootstrap loads the configuration and builds the logger shared by every
// subcommand. Logs go to stderr so report output on stdout stays clean.
func bootstrap(cmd *cobra.Command) error {
	cfg, err := config.Load(viper.New(), cfgFile)
	if err != nil {
		return err
	}
	l, err := logging.New(cfg.Logger, zapcore.Lock(zapcore.AddSync(cmd.ErrOrStderr())), DebugMode)
	if err != nil {
		return err
	}
	appConfig, logger = cfg, l
	logger.Debug("Configuration loaded", zap.String("config", cfgFile), zap.Duration("command_timeout", cfg.Scan.CommandTimeout))
	return nil
}
