package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harun/recbridge/pkg/gateway"
	"github.com/harun/recbridge/pkg/recording"
	"github.com/spf13/cobra"
)

var (
	recordUser       string
	recordFile       string
	recordSource     string
	recordRate       int
	recordChannels   int
	recordSession    string
	recordStopSessID string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Start or stop a recording on the running daemon",
}

var recordStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Send a record_start control message",
	Long: `Send a record_start control message to the running daemon.
Omitted options fall back to the daemon's configured defaults.`,
	RunE: runRecordStart,
}

var recordStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Send a record_stop control message",
	RunE:  runRecordStop,
}

func init() {
	recordStartCmd.Flags().StringVar(&recordUser, "user", "", "user id owning the recording")
	recordStartCmd.Flags().StringVar(&recordFile, "file", "", "output file name")
	recordStartCmd.Flags().StringVar(&recordSource, "source", "", "capture source (mic, plugin)")
	recordStartCmd.Flags().IntVar(&recordRate, "rate", 0, "sample rate in Hz")
	recordStartCmd.Flags().IntVar(&recordChannels, "channels", 0, "channel count")
	recordStartCmd.Flags().StringVar(&recordSession, "session", "", "session id (generated when empty)")

	recordStopCmd.Flags().StringVar(&recordStopSessID, "session", "", "session id to stop (any when empty)")

	recordCmd.AddCommand(recordStartCmd)
	recordCmd.AddCommand(recordStopCmd)
	rootCmd.AddCommand(recordCmd)
}

func runRecordStart(cmd *cobra.Command, args []string) error {
	params := map[string]interface{}{
		"type":   recording.MessageTypeIPlug,
		"action": string(recording.ActionStart),
	}
	setIfNotEmpty(params, "userId", recordUser)
	setIfNotEmpty(params, "fileName", recordFile)
	setIfNotEmpty(params, "source", recordSource)
	setIfNotEmpty(params, "sessionId", recordSession)
	if recordRate > 0 {
		params["sampleRate"] = recordRate
	}
	if recordChannels > 0 {
		params["channels"] = recordChannels
	}

	resp, err := sendControl(cmd, params)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("record start rejected: %s", resp.Error)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Recording started: %s\n", resp.SessionID)
	return nil
}

func runRecordStop(cmd *cobra.Command, args []string) error {
	params := map[string]interface{}{
		"type":   recording.MessageTypeIPlug,
		"action": string(recording.ActionStop),
	}
	setIfNotEmpty(params, "sessionId", recordStopSessID)

	resp, err := sendControl(cmd, params)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("record stop rejected: %s", resp.Error)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Recording stopped, run 'recbridge poll' for the outcome")
	return nil
}

func sendControl(cmd *cobra.Command, params map[string]interface{}) (*recording.Response, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), 30*time.Second)
	defer cancel()

	var resp recording.Response
	if err := newRPCClient(cfg).Call(ctx, gateway.MethodControlMessage, params, uuid.NewString(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func setIfNotEmpty(params map[string]interface{}, key, value string) {
	if value != "" {
		params[key] = value
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
