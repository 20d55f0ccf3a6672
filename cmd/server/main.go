package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliyamo/room-queue/cmd/server/command"
	"github.com/iliyamo/room-queue/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("failed to load .env")
	}

	logger := config.NewLogger(os.Getenv("LOG_LEVEL"), os.Getenv("APP_ENV"))

	root := &cobra.Command{
		Use:          "room-queue",
		Short:        "Consultation room queue server",
		SilenceUsage: true,
	}
	root.AddCommand(
		command.Serve{Logger: logger}.Command(ctx),
		command.Migrate{Logger: logger}.Command(ctx),
		command.Consume{Logger: logger}.Command(ctx),
		command.Token{}.Command(),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		logger.Fatalf("failed to execute root command: %v", err)
	}
}
