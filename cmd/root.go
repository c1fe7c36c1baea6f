package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "mail-triage",
	Short: "Pull mail into a local store and apply triage rules",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// Setup logger after flag parsing
		setupLogger()
	},
}

func init() {
	// Add persistent flag to enable verbose logging
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose (info/debug) logging")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	cobra.OnInitialize(initConfig)
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("No config.yaml found in current directory.",
				"hint", "Run `mail-triage init` to create one interactively.")
		} else {
			slog.Error("Failed to read config", "error", err)
		}
	} else {
		// Validate config after successful load
		validateConfig()
	}
}

func validateConfig() {
	backend := viper.GetString("mail.backend")
	switch backend {
	case "", "gmail", "imap":
	default:
		slog.Warn("Unknown mail backend configured",
			"backend", backend,
			"hint", "Expected gmail or imap; commands that need the provider will fail")
	}

	if backend == "imap" && viper.GetString("imap.server") == "" {
		slog.Warn("IMAP backend selected but imap.server is not set")
	}

	if _, err := os.Stat(rulesPath()); err != nil {
		slog.Warn("Rules file not found",
			"path", rulesPath(),
			"hint", "Run `mail-triage init` to create a starter rules file")
	}
}

func setupLogger() {
	var level slog.Level
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	} else {
		level = slog.LevelError
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	slog.SetDefault(slog.New(handler))
}

// rulesPath and storePath resolve the two file locations every command
// shares, defaulting to the working directory names `init` generates.
func rulesPath() string {
	if path := viper.GetString("rules.path"); path != "" {
		return path
	}
	return "rules.yaml"
}

func storePath() string {
	if path := viper.GetString("store.path"); path != "" {
		return path
	}
	return "mail-triage.db"
}
