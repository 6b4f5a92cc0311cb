package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"kokoro/src/app"
	"kokoro/src/config"
)

// janitorInterval is how often expired speech cache entries are dropped.
const janitorInterval = time.Minute

// ReloadFunc re-reads settings on SIGHUP.
type ReloadFunc func() (*config.Settings, error)

// Run starts the HTTP daemon and blocks until SIGINT or SIGTERM.
func Run(settings *config.Settings, logger *slog.Logger, reload ReloadFunc) error {
	pidPath := config.PidFilePath()
	if err := writePidFile(pidPath); err != nil {
		return err
	}
	defer os.Remove(pidPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, settings, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close(context.Background())

	server := NewServer(a)
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	a.Speech.StartJanitor(ctx, janitorInterval)

	logger.Info("daemon started", "pid", os.Getpid(), "addr", server.Addr(), "database", settings.Database.Path)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			logger.Info("received SIGHUP, reloading configuration")
			if reload == nil {
				continue
			}
			next, err := reload()
			if err != nil {
				logger.Error("failed to reload config", "error", err)
				continue
			}
			server.SetAllowedOrigins(next.Server.AllowedOrigins)
			logger.Info("configuration reloaded", "allowed_origins", next.Server.AllowedOrigins)
			continue
		}

		logger.Info("shutting down gracefully", "signal", sig.String())
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		return server.Stop(shutdownCtx)
	}
	return nil
}

// IsRunning checks if the daemon is already running
func IsRunning() (bool, int) {
	pidPath := config.PidFilePath()
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	if err := process.Signal(syscall.Signal(0)); err != nil {
		// stale PID file
		os.Remove(pidPath)
		return false, 0
	}

	return true, pid
}

// Stop sends SIGTERM to a running daemon and kills it if it lingers.
func Stop(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := process.Signal(syscall.Signal(0)); err != nil {
			os.Remove(config.PidFilePath())
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	slog.Warn("graceful shutdown timed out, forcing kill", "pid", pid)
	if err := process.Kill(); err != nil {
		return fmt.Errorf("failed to kill process: %w", err)
	}
	os.Remove(config.PidFilePath())
	return nil
}

// Reload asks a running daemon to re-read its configuration.
func Reload(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	return process.Signal(syscall.SIGHUP)
}

func writePidFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}
