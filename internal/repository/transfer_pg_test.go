package repository

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/quickshare/internal/database"
)

// TestTransferPgRepository запускает контракт репозитория на PostgreSQL
// в Docker-контейнере. Один контейнер на тест, таблица очищается
// перед каждым подтестом.
func TestTransferPgRepository(t *testing.T) {
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("quickshare_test"),
		postgres.WithUsername("quickshare"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quickshare:test-password@%s:%s/quickshare_test?sslmode=disable", host, port.Port())

	if err := database.MigratePostgres(dsn, logger); err != nil {
		t.Fatalf("MigratePostgres: %v", err)
	}
	pool, err := database.Connect(ctx, dsn, logger)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(pool.Close)

	runRepositoryContract(t, func(t *testing.T) TransferRepository {
		if _, err := pool.Exec(ctx, `TRUNCATE transfers`); err != nil {
			t.Fatalf("TRUNCATE: %v", err)
		}
		return NewTransferPgRepository(pool)
	})
}
