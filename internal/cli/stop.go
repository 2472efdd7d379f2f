package cli

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/harun/recbridge/internal/daemon"
	"github.com/spf13/cobra"
)

var (
	stopTimeout int
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the recbridge daemon",
	Long: `Stop the recbridge daemon gracefully.
Sends SIGTERM to the daemon and waits for it to shut down. An open recording
is ended before the daemon exits.`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().IntVar(&stopTimeout, "timeout", 30, "timeout in seconds to wait for daemon to stop")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	pid, err := daemon.SignalStop(cfg.DataDir, time.Duration(stopTimeout)*time.Second)
	if err == nil {
		fmt.Fprintln(out, "Daemon stopped successfully")
		return nil
	}

	pidFile := daemon.PIDFilePath(cfg.DataDir)
	if pid == 0 || !daemon.ProcessAlive(pid) {
		return err
	}

	fmt.Fprintln(out, "Timeout reached, sending SIGKILL...")

	process, findErr := os.FindProcess(pid)
	if findErr != nil {
		return fmt.Errorf("failed to find process: %w", findErr)
	}
	if killErr := process.Signal(syscall.SIGKILL); killErr != nil {
		return errors.Join(err, fmt.Errorf("failed to send SIGKILL: %w", killErr))
	}

	_ = os.Remove(pidFile)
	fmt.Fprintln(out, "Daemon killed")
	return nil
}
