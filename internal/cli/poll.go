package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/harun/recbridge/pkg/gateway"
	"github.com/harun/recbridge/pkg/recording"
	"github.com/spf13/cobra"
)

var pollJSON bool

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Drain and print queued recording events",
	Long: `Drain the daemon's event queue and print each event.
Events are delivered once; a second poll only shows newer events.`,
	RunE: runPoll,
}

func init() {
	pollCmd.Flags().BoolVar(&pollJSON, "json", false, "print events as JSON")
	rootCmd.AddCommand(pollCmd)
}

func runPoll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), 10*time.Second)
	defer cancel()

	var events []recording.Event
	if err := newRPCClient(cfg).Call(ctx, gateway.MethodEventsPoll, nil, "", &events); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if pollJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}

	if len(events) == 0 {
		fmt.Fprintln(out, "No events")
		return nil
	}
	for _, event := range events {
		printEvent(out, event)
	}
	return nil
}

func printEvent(out io.Writer, event recording.Event) {
	switch event.Kind {
	case recording.EventStarted:
		fmt.Fprintf(out, "#%d started %s source=%s rate=%d channels=%d path=%s\n",
			event.Seq, event.SessionID, event.Source, event.SampleRate, event.Channels, event.Path)
	case recording.EventDone:
		fmt.Fprintf(out, "#%d done %s duration=%.2fs path=%s\n",
			event.Seq, event.SessionID, event.Duration, event.Path)
	default:
		fmt.Fprintf(out, "#%d error %s: %s\n", event.Seq, event.SessionID, event.Message)
	}
}
