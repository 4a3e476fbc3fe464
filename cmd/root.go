package cmd

import (
	"github.com/spf13/cobra"

	"github.com/user/credit-sentinel/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "credit-sentinel",
	Short: "Loan covenant extraction and compliance monitoring",
	Long: `Credit Sentinel reads loan agreements, extracts the financial covenants
they impose, computes the borrower's ratios from reported financials and
classifies every covenant as Compliant, Warning or Breach.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := ""
		if DebugMode {
			level = "debug"
		}
		cfg, err := loadConfig()
		if err == nil && level == "" {
			level = cfg.Log.Level
		}
		var dir string
		if cfg != nil {
			dir = cfg.Log.Dir
		}
		return logging.InitLogger(level, dir)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
}

var (
	DebugMode  bool
	ConfigPath string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&DebugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&ConfigPath, "config", "", "Config file (default ~/.credit-sentinel/config.yaml)")
}
