package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/konsul-app/konsul-backend/internal/repo"
	"github.com/konsul-app/konsul-backend/internal/seed"
)

func seedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load workspaces, agents, channels and intents from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := log.Logger.WithContext(cmd.Context())
			db, err := a.openDB(ctx, true)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close(db) }()

			rep, err := seed.LoadFile(ctx, db, args[0])
			if err != nil {
				return err
			}
			cmd.Printf("seeded %d agents, %d channels, %d intents (%d skipped)\n",
				rep.Agents, rep.Channels, rep.Intents, rep.Skipped)
			return nil
		},
	}
}
