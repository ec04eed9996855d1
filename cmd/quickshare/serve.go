package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bigkaa/quickshare/internal/api/handlers"
	"github.com/bigkaa/quickshare/internal/api/middleware"
	"github.com/bigkaa/quickshare/internal/config"
	"github.com/bigkaa/quickshare/internal/server"
	"github.com/bigkaa/quickshare/internal/service"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP-сервер и фоновую очистку",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

// runServe загружает конфигурацию, подключает хранилища, запускает
// фоновую очистку, topologymetrics и HTTP-сервер с graceful shutdown.
func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Info("QuickShare запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("record_store", cfg.RecordStore),
		slog.String("blob_store", cfg.BlobStore),
	)

	a, err := buildApp(ctx, cfg, logger, true)
	if err != nil {
		logger.Error("Ошибка инициализации хранилищ", slog.String("error", err.Error()))
		return err
	}
	defer a.Close()

	sweeper := service.NewSweeperService(a.transfers, cfg.SweepInterval, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// topologymetrics — только при наличии сетевых зависимостей
	if !a.deps.Empty() {
		dephealthSvc, dhErr := service.NewDephealthService("quickshare", cfg.DephealthGroup,
			a.deps, cfg.DephealthCheckInterval, logger)
		if dhErr != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", dhErr.Error()),
			)
		} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		} else {
			defer dephealthSvc.Stop()
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	cleanupAuth, err := middleware.NewCleanupAuth(middleware.CleanupAuthConfig{
		Secret:          cfg.CleanupSecret,
		JWKSURL:         cfg.JWKSUrl,
		RefreshInterval: cfg.JWKSRefreshInterval,
		JWTLeeway:       cfg.JWTLeeway,
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания проверки доступа к /cleanup", slog.String("error", err.Error()))
		return err
	}
	if !cleanupAuth.Enabled() {
		logger.Warn("QS_CLEANUP_SECRET и QS_JWKS_URL не заданы, /cleanup открыт")
	}

	h := server.Handlers{
		Transfers:   handlers.NewTransfersHandler(a.transfers, sweeper, logger),
		Health:      handlers.NewHealthHandler(a.recordReady, a.blobReady),
		CleanupAuth: cleanupAuth,
	}
	if a.files != nil {
		h.Files = handlers.NewFilesHandler(a.files, logger)
	}

	if err := server.New(cfg, logger, h).Run(ctx); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		return err
	}

	logger.Info("QuickShare остановлен")
	return nil
}
