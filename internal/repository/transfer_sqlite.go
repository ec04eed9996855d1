package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/bigkaa/quickshare/internal/domain/model"
)

// transferSQLiteRepo — реализация TransferRepository поверх SQLite.
// Моменты времени хранятся как INTEGER (Unix-миллисекунды UTC), чтобы
// сравнение expires_at < ? выполнялось численно.
type transferSQLiteRepo struct {
	db *sql.DB
}

// NewTransferSQLiteRepository создаёт репозиторий передач в SQLite.
// db должен быть открыт драйвером "sqlite3".
func NewTransferSQLiteRepository(db *sql.DB) TransferRepository {
	return &transferSQLiteRepo{db: db}
}

func (r *transferSQLiteRepo) Insert(ctx context.Context, rec *model.TransferRecord) error {
	query := `
		INSERT INTO transfers (` + transferColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		rec.Code, rec.Secret, rec.Locator.URL, rec.Locator.Key, string(normalizeKind(rec.ResourceKind)),
		rec.Size, rec.ContentType, rec.OriginalFilename,
		rec.ExpiresAt.UnixMilli(), rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		if isSQLiteConstraint(err) {
			return fmt.Errorf("%w: код %s уже используется", ErrConflict, rec.Code)
		}
		return fmt.Errorf("ошибка создания передачи: %w", err)
	}
	return nil
}

func (r *transferSQLiteRepo) FindByCode(ctx context.Context, code string) (*model.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE code = ?`

	rec, err := scanSQLiteTransfer(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения передачи: %w", err)
	}
	return rec, nil
}

func (r *transferSQLiteRepo) FindExpired(ctx context.Context, before time.Time) ([]*model.TransferRecord, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE expires_at < ?
		ORDER BY expires_at`

	rows, err := r.db.QueryContext(ctx, query, before.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска истёкших передач: %w", err)
	}
	defer rows.Close()

	var result []*model.TransferRecord
	for rows.Next() {
		rec, err := scanSQLiteTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования передачи: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации передач: %w", err)
	}
	return result, nil
}

func (r *transferSQLiteRepo) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transfers WHERE expires_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления истёкших передач: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ошибка получения числа удалённых передач: %w", err)
	}
	return int(n), nil
}

func (r *transferSQLiteRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transfers`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта передач: %w", err)
	}
	return count, nil
}

type sqlScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTransfer(row sqlScanner) (*model.TransferRecord, error) {
	rec := &model.TransferRecord{}
	var kind string
	var expiresAt, createdAt int64
	err := row.Scan(
		&rec.Code, &rec.Secret, &rec.Locator.URL, &rec.Locator.Key, &kind,
		&rec.Size, &rec.ContentType, &rec.OriginalFilename, &expiresAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	rec.ResourceKind = model.ResourceKind(kind)
	rec.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	return rec, nil
}

// isSQLiteConstraint проверяет нарушение PRIMARY KEY / UNIQUE в SQLite.
func isSQLiteConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
