// Command konsul runs the Kônsul backend: the HTTP server, schema migrations
// and seed loading.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/konsul-app/konsul-backend/internal/config"
	"github.com/konsul-app/konsul-backend/internal/repo"
	"github.com/konsul-app/konsul-backend/internal/sysutil"
)

var version = "dev"

// app carries what every subcommand needs after PersistentPreRunE.
type app struct {
	envFile string
	cfg     config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "konsul",
		Short:         "Kônsul conversational agent backend",
		Version:       sysutil.FirstNonEmpty(os.Getenv("KONSUL_VERSION"), version),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(serveCmd(a), migrateCmd(a), seedCmd(a))
	return root
}

// init loads the dotenv file (a missing file is fine), then configuration
// and logging.
func (a *app) init() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	sysutil.ConfigureLogger(cfg.LogLevel, cfg.LogPretty)
	return nil
}

// openDB connects and migrates the schema when migrate is true.
func (a *app) openDB(ctx context.Context, migrate bool) (*gorm.DB, error) {
	db, err := repo.Open(ctx, a.cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", a.cfg.DB.Driver, err)
	}
	if migrate {
		if err := repo.AutoMigrate(db); err != nil {
			_ = repo.Close(db)
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info().Str("driver", a.cfg.DB.Driver).Msg("schema migrated")
	}
	return db, nil
}

func migrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB(cmd.Context(), true)
			if err != nil {
				return err
			}
			return repo.Close(db)
		},
	}
}
