package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/harun/recbridge/internal/daemon"
	"github.com/harun/recbridge/pkg/gateway"
	"github.com/harun/recbridge/pkg/recording"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and recording status",
	Long:  `Show whether the recbridge daemon is running and, if so, its recording state.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	pidFile := daemon.PIDFilePath(cfg.DataDir)

	pid, err := daemon.ReadPID(pidFile)
	if err != nil || !daemon.ProcessAlive(pid) {
		fmt.Fprintln(out, "Status: stopped")
		return nil
	}

	fmt.Fprintf(out, "Status: running\n")
	fmt.Fprintf(out, "PID: %d\n", pid)
	if info, err := os.Stat(pidFile); err == nil {
		fmt.Fprintf(out, "Uptime: %s\n", formatDuration(time.Since(info.ModTime())))
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), 5*time.Second)
	defer cancel()

	var status recording.Status
	if err := newRPCClient(cfg).Call(ctx, gateway.MethodRecordingStatus, nil, "", &status); err != nil {
		fmt.Fprintf(out, "Recording: unavailable (%v)\n", err)
		return nil
	}
	printRecordingStatus(out, status)
	return nil
}

func printRecordingStatus(out io.Writer, status recording.Status) {
	fmt.Fprintf(out, "Recording: %s\n", status.State)
	if status.SessionID != "" {
		fmt.Fprintf(out, "  Session: %s\n", status.SessionID)
		fmt.Fprintf(out, "  Path: %s\n", status.Path)
	}
	if status.PendingFailure != "" {
		fmt.Fprintf(out, "  Pending failure: %s\n", status.PendingFailure)
	}
	fmt.Fprintf(out, "  Queued events: %d\n", status.QueuedEvents)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
