package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bigkaa/quickshare/internal/config"
	"github.com/bigkaa/quickshare/internal/database"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции схемы хранилища записей и завершиться",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			switch cfg.RecordStore {
			case config.RecordStorePostgres:
				err = database.MigratePostgres(cfg.PostgresDSN(), logger)
			case config.RecordStoreSQLite:
				err = database.MigrateSQLite(cfg.SQLitePath, logger)
			default:
				logger.Info("Хранилище записей не требует миграций",
					slog.String("record_store", cfg.RecordStore),
				)
				return nil
			}
			if err != nil {
				logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
				return fmt.Errorf("миграции: %w", err)
			}
			return nil
		},
	}
}
