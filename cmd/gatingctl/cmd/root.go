package cmd

import (
	"course_gating_backend/internal/app"
	"course_gating_backend/internal/config"
	"course_gating_backend/internal/util"
	"course_gating_backend/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = NewRootCmd()

func Execute() error {
	return rootCmd.Execute()
}

// NewRootCmd builds a fresh command tree; tests use it to avoid shared flag state.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gatingctl",
		Short:         "Manage subsection gating for courses",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("config", "configs", "Directory containing config.yaml")
	root.PersistentFlags().String("db", "", "SQLite database path (switches the driver to sqlite)")
	root.PersistentFlags().Bool("verbose", false, "Log to stdout")

	root.AddCommand(newPrereqCmd())
	root.AddCommand(newRequiredContentCmd())
	root.AddCommand(newRecalcCmd())
	root.AddCommand(newUserCmd())
	return root
}

// openCore loads config, applies flag overrides and wires the services.
func openCore(cmd *cobra.Command) (*app.Core, error) {
	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(dir)
	if err != nil {
		return nil, err
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.Database.Driver = util.DriverSQLite
		cfg.Database.SQLitePath = p
	}
	// CLI 总是保证表结构存在
	cfg.ForceMigrate = true

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			logger.Log = l
		}
	}
	return app.NewCore(cfg)
}
