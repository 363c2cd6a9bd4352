package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/KaramelBytes/co2lens-cli/internal/config"
	"github.com/KaramelBytes/co2lens-cli/internal/logging"
)

var (
	// Global flags
	cfgFile  string
	debug    bool
	logLevel string

	// Loaded configuration
	cfg    *cfgpkg.Global
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "co2lens",
	Short: "co2lens: explain emissions data and suggest reduction actions",
	Long: `co2lens loads a country/organization emissions table, profiles it, flags
anomalous emitters, and answers free-text questions with rule-based
recommendations that always carry a confidence and their caveats.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute is the entry point called by main.main()
func Execute() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.co2lens/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
}

// setup loads configuration and builds the logger before any subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = &cfgpkg.Global{}
	}
	cfg = c
	if logLevel != "" {
		if err := cfg.Set("log_level", logLevel); err != nil {
			return err
		}
	}
	l, err := logging.New(cfg.LogLevel, debug)
	if err != nil {
		return err
	}
	logger = l
	logger.Debug("config loaded",
		zap.String("config", cfgFile),
		zap.String("sessions_dir", cfg.SessionsDir),
		zap.String("db_path", cfg.DBPath))
	return nil
}
