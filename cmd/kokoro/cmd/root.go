package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kokoro/src/app"
	"kokoro/src/config"
)

var (
	cfgFile  string
	logLevel string
	dbPath   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kokoro",
	Short: "Personality-driven companion replies with provider fallback",
	Long: `kokoro turns a character and a user message into an in-character reply.

It derives a per-turn personality profile, composes a system prompt, and
walks an ordered chain of text providers before answering from local
templates. The daemon serves chat, portrait, speech and video session
endpoints over HTTP.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/kokoro/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (\":memory:\" for a throwaway store)")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
}

// initConfig wires environment overrides. The settings file itself is read
// by config.LoadSettings so defaults and durations stay typed.
func initConfig() {
	viper.SetEnvPrefix("KOKORO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.GetConfigPath()
}

// loadSettings reads the settings file and layers flag and env overrides.
func loadSettings() (*config.Settings, error) {
	settings, err := config.LoadSettings(configPath())
	if err != nil {
		return nil, err
	}
	settings.ApplyOverrides(viper.GetViper())
	return settings, nil
}

func newLogger(settings *config.Settings) *slog.Logger {
	logger := app.NewLogger(settings.Log, os.Stderr)
	slog.SetDefault(logger)
	return logger
}
