package main

import (
	"github.com/spf13/cobra"

	"github.com/yoockh/yoocv/config"
	"github.com/yoockh/yoocv/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create MongoDB indexes and migrate the PostgreSQL schema",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log := logger.New(cfg.LogLevel)
		if err := config.InitMongo(cfg); err != nil {
			return err
		}
		if err := config.EnsureMongoIndexes(cfg); err != nil {
			return err
		}
		log.Info("mongo indexes ensured")

		if err := config.InitPostgres(cfg); err != nil {
			return err
		}
		if err := config.MigratePostgres(); err != nil {
			return err
		}
		log.Info("postgres schema migrated")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
