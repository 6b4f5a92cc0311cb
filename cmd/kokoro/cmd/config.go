package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kokoro/src/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage kokoro configuration",
	Long: `Manage kokoro configuration settings.

Examples:
  kokoro config get text.retry.timeout
  kokoro config set text.providers openai,gemini,ollama
  kokoro config list
  kokoro config edit`,
}

// configGetCmd represents the config get command
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		value, ok := settings.Lookup(args[0])
		if !ok {
			return fmt.Errorf("key '%s' not found", args[0])
		}
		fmt.Println(formatValue(args[0], value, false))
		return nil
	},
}

// configSetCmd represents the config set command
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		// Only the file is written back; env overrides must not leak into it.
		settings, err := config.LoadSettings(configPath())
		if err != nil {
			return err
		}
		if _, ok := settings.Lookup(key); !ok {
			return fmt.Errorf("unknown key '%s'", key)
		}

		v := viper.New()
		if current, _ := settings.Lookup(key); isList(current) {
			v.Set(key, splitList(value))
		} else {
			v.Set(key, value)
		}
		settings.ApplyOverrides(v)
		if err := settings.Validate(); err != nil {
			return err
		}

		path := configPath()
		if err := settings.Save(path); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}

		fmt.Printf("Set %s = %v\n", key, value)
		fmt.Printf("Config saved to %s\n", path)
		return nil
	},
}

// configListCmd represents the config list command
var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration values",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}

		fmt.Println("Configuration settings:")
		for _, key := range settings.Keys() {
			value, _ := settings.Lookup(key)
			fmt.Printf("  %s = %s\n", key, formatValue(key, value, true))
		}
		fmt.Printf("\nConfig file: %s\n", configPath())
		return nil
	},
}

// configPathCmd prints the settings file location
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(configPath())
	},
}

// configInitCmd writes the defaults to disk
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.DefaultSettings().Save(path); err != nil {
			return err
		}
		fmt.Printf("Config written to %s\n", path)
		return nil
	},
}

// configEditCmd represents the config edit command
var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file in your default editor",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := config.DefaultSettings().Save(path); err != nil {
				return err
			}
		}

		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = os.Getenv("VISUAL")
		}
		if editor == "" {
			for _, e := range []string{"vim", "vi", "nano", "emacs"} {
				if _, err := exec.LookPath(e); err == nil {
					editor = e
					break
				}
			}
		}
		if editor == "" {
			return fmt.Errorf("no editor found; set $EDITOR or $VISUAL")
		}

		editorCmd := exec.Command(editor, path)
		editorCmd.Stdin = os.Stdin
		editorCmd.Stdout = os.Stdout
		editorCmd.Stderr = os.Stderr
		return editorCmd.Run()
	},
}

func isList(v interface{}) bool {
	_, ok := v.([]string)
	return ok
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// formatValue renders a setting, hiding secrets when mask is set.
func formatValue(key string, value interface{}, mask bool) string {
	if list, ok := value.([]string); ok {
		return strings.Join(list, ", ")
	}
	s := fmt.Sprintf("%v", value)
	if mask && isSecret(key) && s != "" {
		if len(s) <= 4 {
			return "****"
		}
		return "****" + s[len(s)-4:]
	}
	return s
}

func isSecret(key string) bool {
	return strings.HasSuffix(key, ".api_key") || strings.HasSuffix(key, ".password") || key == "mongo.uri"
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configGetCmd, configSetCmd, configListCmd, configPathCmd, configInitCmd, configEditCmd)
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}
