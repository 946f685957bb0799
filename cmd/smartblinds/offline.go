package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgard/smartblinds/internal/config"
	"github.com/edgard/smartblinds/internal/database"
	"github.com/edgard/smartblinds/internal/logger"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)

			db, err := database.NewDB(cfg.Database.Path)
			if err != nil {
				log.Error("Failed to migrate database", "path", cfg.Database.Path, "error", err)
				return err
			}
			database.CloseDB(db)
			log.Info("Database is up to date", "path", cfg.Database.Path)
			return nil
		},
	}
}

func newActionsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List persisted actions and their next run times",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)

			db, err := database.NewDB(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer database.CloseDB(db)

			actions, err := database.NewStore(db, log).ListActions(cmd.Context())
			if err != nil {
				return err
			}

			now := time.Now()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tWEEKDAY\tTIME\tTARGET\tNEXT RUN")
			for _, a := range actions {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					a.ID, a.Weekday, a.Time, a.TargetName(), a.NextOccurrence(now).Format(time.RFC1123))
			}
			return w.Flush()
		},
	}
}
