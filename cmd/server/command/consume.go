package command

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliyamo/room-queue/internal/config"
	"github.com/iliyamo/room-queue/internal/queue"
)

// Consume drains room assignment events into the notification log.
type Consume struct {
	Logger *logrus.Logger
}

func (cmd Consume) Command(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "deliver room assignment notifications from RabbitMQ",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := config.LoadNotifyConfig()
			sink := queue.NewFileSink(cfg.LogDir)
			cmd.Logger.WithFields(logrus.Fields{"queue": cfg.Queue, "sink": sink.Path()}).Info("consumer starting")
			return queue.StartRoomAssignedConsumer(ctx, cfg.AMQPURL, cfg.Queue, sink, cmd.Logger)
		},
	}
}
