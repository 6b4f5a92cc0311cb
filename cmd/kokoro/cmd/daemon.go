package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kokoro/src/config"
	"kokoro/src/daemon"
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the HTTP daemon",
	Long: `Manage the HTTP daemon serving chat, portrait, speech and video session
endpoints. "start" runs in the foreground; send SIGHUP (or "daemon reload")
to re-read the allowed CORS origins.`,
}

// daemonStartCmd starts the daemon
var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		if running, pid := daemon.IsRunning(); running {
			return fmt.Errorf("daemon is already running (PID: %d)", pid)
		}

		settings, err := loadSettings()
		if err != nil {
			return err
		}
		if err := config.EnsureDirs(); err != nil {
			return err
		}
		return daemon.Run(settings, newLogger(settings), loadSettings)
	},
}

// daemonStopCmd stops the daemon
var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		running, pid := daemon.IsRunning()
		if !running {
			fmt.Println("Daemon is not running")
			return nil
		}

		fmt.Printf("Stopping daemon (PID: %d)...\n", pid)
		if err := daemon.Stop(pid); err != nil {
			return err
		}
		fmt.Println("Daemon stopped successfully")
		return nil
	},
}

// daemonReloadCmd signals the daemon to re-read its configuration
var daemonReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Ask the daemon to reload its configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		running, pid := daemon.IsRunning()
		if !running {
			return fmt.Errorf("daemon is not running")
		}
		return daemon.Reload(pid)
	},
}

// daemonStatusCmd shows daemon status
var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		running, pid := daemon.IsRunning()
		if !running {
			fmt.Println("Daemon is not running")
			return nil
		}

		fmt.Printf("Daemon is running (PID: %d)\n", pid)
		if settings, err := loadSettings(); err == nil {
			fmt.Printf("Listening on: %s\n", settings.Server.Listen)
			fmt.Printf("PID file:     %s\n", config.PidFilePath())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.AddCommand(daemonStartCmd, daemonStopCmd, daemonReloadCmd, daemonStatusCmd)

	daemonStartCmd.Flags().String("listen", "", "listen address (default from settings, :8080)")
	viper.BindPFlag("server.listen", daemonStartCmd.Flags().Lookup("listen"))
}
