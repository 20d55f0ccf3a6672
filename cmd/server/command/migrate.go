package command

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliyamo/room-queue/internal/config"
	"github.com/iliyamo/room-queue/internal/database"
)

// Migrate applies or reverts the embedded schema migrations.
type Migrate struct {
	Logger *logrus.Logger
}

func (cmd Migrate) Command(ctx context.Context) *cobra.Command {
	c := &cobra.Command{
		Use:   "migrate",
		Short: "run database migrations",
	}
	c.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "apply all pending migrations",
			RunE: func(_ *cobra.Command, _ []string) error {
				return cmd.run("up", database.MigrateUp)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "revert every migration",
			RunE: func(_ *cobra.Command, _ []string) error {
				return cmd.run("down", database.MigrateDown)
			},
		},
	)
	return c
}

func (cmd Migrate) run(direction string, fn func(db *sql.DB, dbName string) error) error {
	cfg := config.LoadDatabase()
	db, err := database.Open(cfg.User, cfg.Pass, cfg.Host, cfg.Port, cfg.Name)
	if err != nil {
		return errors.Wrap(err, "migrate: failed to connect to mysql")
	}
	defer db.Close()

	if err := fn(db, cfg.Name); err != nil {
		return errors.Wrapf(err, "migrate %s", direction)
	}
	cmd.Logger.WithField("database", cfg.Name).Infof("migrate %s: done", direction)
	return nil
}
