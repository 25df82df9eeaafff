/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/taskflow/apiserver/internal/mq"
)

// eventsCmd groups commands that inspect the domain event stream.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect published domain events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail [channel]",
	Short: "Print events from a channel until interrupted",
	Long: fmt.Sprintf(`Subscribes to a channel on the configured broker and logs each event.
Channels: %s, %s. Usage:

	taskflow events tail %s
`, mq.ChannelIdentity, mq.ChannelTask, mq.ChannelIdentity),
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{mq.ChannelIdentity, mq.ChannelTask},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadConfig()
		channel := args[0]

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logger.WithContext(ctx)

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		defer broker.Close()

		logger.Info().Str("channel", channel).Str("backend", cfg.MQ.Backend).Msg("tailing events")
		err = broker.Subscribe(ctx, channel, func(_ context.Context, msg mq.Message) error {
			var event mq.Event
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				logger.Warn().Err(err).Str("message_id", msg.ID).Msg("undecodable event")
				return nil
			}
			logger.Info().
				Str("message_id", msg.ID).
				Str("type", event.Type).
				Str("actor_id", event.ActorID).
				Time("occurred_at", event.OccurredAt).
				RawJSON("data", event.Data).
				Msg("event")
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
