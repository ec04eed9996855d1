// Пакет repository — слой доступа к записям о передачах.
// Реализации: PostgreSQL (pgx), SQLite (database/sql), in-memory
// и кэширующая обёртка поверх любой из них.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bigkaa/quickshare/internal/domain/model"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — код уже занят другой записью.
	ErrConflict = errors.New("конфликт — запись уже существует")
)

// TransferRepository — хранилище записей о передачах.
// Записи только создаются и удаляются пакетно, операции обновления нет.
type TransferRepository interface {
	// Insert сохраняет новую запись. ErrConflict, если код уже занят.
	Insert(ctx context.Context, rec *model.TransferRecord) error
	// FindByCode возвращает запись по коду или ErrNotFound.
	FindByCode(ctx context.Context, code string) (*model.TransferRecord, error)
	// FindExpired возвращает записи с expires_at < before.
	FindExpired(ctx context.Context, before time.Time) ([]*model.TransferRecord, error)
	// DeleteExpired удаляет записи с expires_at < before и возвращает их количество.
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
	// Count возвращает количество хранимых записей.
	Count(ctx context.Context) (int, error)
}

// DBTX — интерфейс для выполнения SQL-запросов PostgreSQL.
// Реализуется как *pgxpool.Pool, так и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// normalizeKind приводит пустую категорию к raw перед сохранением.
func normalizeKind(k model.ResourceKind) model.ResourceKind {
	if k == "" {
		return model.KindRaw
	}
	return k
}
