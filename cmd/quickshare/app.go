package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/afero"

	"github.com/bigkaa/quickshare/internal/api/handlers"
	"github.com/bigkaa/quickshare/internal/blobstore"
	"github.com/bigkaa/quickshare/internal/blobstore/filestore"
	"github.com/bigkaa/quickshare/internal/blobstore/s3store"
	"github.com/bigkaa/quickshare/internal/config"
	"github.com/bigkaa/quickshare/internal/database"
	"github.com/bigkaa/quickshare/internal/repository"
	"github.com/bigkaa/quickshare/internal/service"
)

// app — собранные зависимости: хранилища, сервис передач, проверки готовности.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	repo  repository.TransferRepository
	blobs blobstore.BlobStore
	// files — локальное хранилище (nil для s3)
	files *filestore.FileStore

	transfers *service.TransferService

	recordReady handlers.ReadinessChecker
	blobReady   handlers.ReadinessChecker
	deps        service.DephealthDeps

	closers []func()
}

// buildApp подключает хранилища по конфигурации. migrate — применить
// миграции перед подключением.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, migrate bool) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if err := a.openRecordStore(ctx, migrate); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openBlobStore(); err != nil {
		a.Close()
		return nil, err
	}

	a.transfers = service.NewTransferService(a.repo, a.blobs, service.RandomCodeGenerator{},
		service.TransferConfig{
			TTL:             cfg.TransferTTL,
			MaxFileSize:     cfg.MaxFileSize,
			MaxCodeAttempts: cfg.CodeMaxAttempts,
		}, nil, logger)

	return a, nil
}

func (a *app) openRecordStore(ctx context.Context, migrate bool) error {
	cfg := a.cfg

	switch cfg.RecordStore {
	case config.RecordStorePostgres:
		if migrate {
			a.logger.Info("Применение миграций БД...")
			if err := database.MigratePostgres(cfg.PostgresDSN(), a.logger); err != nil {
				return fmt.Errorf("миграции PostgreSQL: %w", err)
			}
		}
		pool, err := database.Connect(ctx, cfg.PostgresDSN(), a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pool.Close)

		// Адаптер pgxpool → *sql.DB для topologymetrics: проверка идёт
		// через тот же пул и обнаруживает его исчерпание.
		pgDB := stdlib.OpenDBFromPool(pool)
		a.closers = append(a.closers, func() { _ = pgDB.Close() })

		a.repo = repository.NewTransferPgRepository(pool)
		a.recordReady = database.NewReadinessChecker("postgresql", pool.Ping)
		a.deps.DB = pgDB
		a.deps.PgURL = cfg.PostgresURLForLabels()

	case config.RecordStoreSQLite:
		if migrate {
			a.logger.Info("Применение миграций БД...")
			if err := database.MigrateSQLite(cfg.SQLitePath, a.logger); err != nil {
				return fmt.Errorf("миграции SQLite: %w", err)
			}
		}
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath, a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })

		a.repo = repository.NewTransferSQLiteRepository(db)
		a.recordReady = database.NewReadinessChecker("sqlite", db.PingContext)

	case config.RecordStoreMemory:
		a.logger.Warn("Записи о передачах хранятся в памяти и теряются при перезапуске")
		a.repo = repository.NewMemoryTransferRepository()
		a.recordReady = database.NewReadinessChecker("memory", nil)
		return nil

	default:
		return fmt.Errorf("неизвестное хранилище записей %q", cfg.RecordStore)
	}

	if cfg.CacheSize > 0 {
		a.repo = repository.NewCachedTransferRepository(a.repo, cfg.CacheSize, cfg.CacheTTL, nil)
		a.logger.Info("Кэш записей включён",
			slog.Int("size", cfg.CacheSize),
			slog.Duration("ttl", cfg.CacheTTL),
		)
	}
	return nil
}

func (a *app) openBlobStore() error {
	cfg := a.cfg

	switch cfg.BlobStore {
	case config.BlobStoreLocal:
		store, err := filestore.New(afero.NewOsFs(), cfg.DataDir, cfg.PublicBaseURL)
		if err != nil {
			return err
		}
		a.blobs = store
		a.files = store
		a.blobReady = store
		a.logger.Info("Blob-ы хранятся на диске",
			slog.String("data_dir", cfg.DataDir),
			slog.String("public_base_url", cfg.PublicBaseURL),
		)

	case config.BlobStoreS3:
		store, err := s3store.New(s3store.Config{
			Endpoint:       cfg.S3Endpoint,
			Region:         cfg.S3Region,
			Bucket:         cfg.S3Bucket,
			AccessKey:      cfg.S3AccessKey,
			SecretKey:      cfg.S3SecretKey,
			PublicURL:      cfg.S3PublicURL,
			ForcePathStyle: cfg.S3ForcePathStyle,
		})
		if err != nil {
			return err
		}
		a.blobs = store
		a.deps.S3Endpoint = cfg.S3Endpoint
		a.logger.Info("Blob-ы хранятся в S3",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("endpoint", cfg.S3Endpoint),
		)

	default:
		return errors.New("неизвестное хранилище blob-ов " + cfg.BlobStore)
	}
	return nil
}

// Close освобождает ресурсы в обратном порядке.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
