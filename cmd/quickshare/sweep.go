package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// newSweepCommand — разовая очистка истёкших передач для внешнего
// планировщика (CronJob, cron).
func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Удалить истёкшие передачи и завершиться",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := buildApp(cmd.Context(), cfg, logger, false)
			if err != nil {
				logger.Error("Ошибка инициализации хранилищ", slog.String("error", err.Error()))
				return err
			}
			defer a.Close()

			result, err := a.transfers.SweepExpired(cmd.Context())
			if err != nil {
				logger.Error("Ошибка очистки", slog.String("error", err.Error()))
				return err
			}

			logger.Info("Очистка завершена",
				slog.Int("cleaned", result.Cleaned),
				slog.Int("deleted", result.Deleted),
				slog.Int("blob_errors", result.BlobErrors),
				slog.Duration("duration", result.Duration),
			)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "cleaned: %d\n", result.Cleaned)
			return err
		},
	}
}
