package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"testcase-workflow-be/pkg/events"
	pktNats "testcase-workflow-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail workflow events published to NATS",
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("nats")
		sessionId, _ := cmd.Flags().GetString("session")

		sub, err := pktNats.NewSubscriber(url)
		if err != nil {
			return err
		}
		defer sub.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		subject := pktNats.SessionSubject(sessionId)
		if err := sub.Subscribe(ctx, subject, "", printEvent); err != nil {
			return err
		}

		color.Cyan("Listening on %s (Ctrl+C to stop)", subject)
		<-ctx.Done()
		return nil
	},
}

func init() {
	eventsCmd.Flags().String("nats", "nats://localhost:4222", "NATS server URL")
	eventsCmd.Flags().String("session", "", "only show events of this session")
	rootCmd.AddCommand(eventsCmd)
}

func printEvent(ctx context.Context, e events.Event) error {
	payload, err := json.Marshal(e.Payload())
	if err != nil {
		return err
	}

	label := color.GreenString(e.EventType())
	if e.EventType() == events.TypeBackendCallFailed || e.EventType() == events.TypeStaleResultDropped {
		label = color.RedString(e.EventType())
	}
	fmt.Printf("%s %s %s %s\n", e.Timestamp().Format("15:04:05"), label, e.SessionID(), payload)
	return nil
}
