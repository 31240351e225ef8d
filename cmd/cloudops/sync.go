package main

import (
	"github.com/jholst/cloudops/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var withData bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the production schema to the local database",
	Long: `Dump the production database schema and apply it to the local
development database:
1. pg_dump the production schema (add --with-data to include rows)
2. Replay the dump against the local database with psql

The dump file is written under the dump directory and kept afterwards.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&withData, "with-data", false, "include table data in the dump")
}

func runSync(cmd *cobra.Command, args []string) error {
	resolver, err := loadResolver()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	cfg, err := resolver.Sync()
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}

	log.Info().
		Str("prod_host", cfg.Prod.Host).
		Str("local_host", cfg.Local.Host).
		Bool("with_data", withData).
		Msg("configuration loaded")

	ctx, cancel := signalContext()
	defer cancel()

	runnerSvc := runner.New(log.Logger)
	if err := runnerSvc.Sync(ctx, *cfg, withData); err != nil {
		log.Error().Err(err).Msg("schema sync failed")
		return err
	}

	log.Info().Msg("schema sync completed successfully")
	return nil
}
