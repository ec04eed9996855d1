package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/quickshare/internal/domain/model"
)

// transferPgRepo — реализация TransferRepository поверх PostgreSQL.
type transferPgRepo struct {
	db DBTX
}

// NewTransferPgRepository создаёт репозиторий передач в PostgreSQL.
func NewTransferPgRepository(db DBTX) TransferRepository {
	return &transferPgRepo{db: db}
}

const transferColumns = `code, secret, blob_url, blob_key, resource_kind,
			size, content_type, original_filename, expires_at, created_at`

func (r *transferPgRepo) Insert(ctx context.Context, rec *model.TransferRecord) error {
	query := `
		INSERT INTO transfers (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		rec.Code, rec.Secret, rec.Locator.URL, rec.Locator.Key, normalizeKind(rec.ResourceKind),
		rec.Size, rec.ContentType, rec.OriginalFilename, rec.ExpiresAt, rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: код %s уже используется", ErrConflict, rec.Code)
		}
		return fmt.Errorf("ошибка создания передачи: %w", err)
	}
	return nil
}

func (r *transferPgRepo) FindByCode(ctx context.Context, code string) (*model.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE code = $1`

	rec, err := scanTransfer(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения передачи: %w", err)
	}
	return rec, nil
}

func (r *transferPgRepo) FindExpired(ctx context.Context, before time.Time) ([]*model.TransferRecord, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE expires_at < $1
		ORDER BY expires_at`

	rows, err := r.db.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска истёкших передач: %w", err)
	}
	defer rows.Close()

	var result []*model.TransferRecord
	for rows.Next() {
		rec, err := scanTransfer(rows)
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

func (r *transferPgRepo) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM transfers WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления истёкших передач: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *transferPgRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM transfers`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта передач: %w", err)
	}
	return count, nil
}

// scanTransfer сканирует строку в TransferRecord.
func scanTransfer(row pgx.Row) (*model.TransferRecord, error) {
	rec := &model.TransferRecord{}
	var kind string
	err := row.Scan(
		&rec.Code, &rec.Secret, &rec.Locator.URL, &rec.Locator.Key, &kind,
		&rec.Size, &rec.ContentType, &rec.OriginalFilename, &rec.ExpiresAt, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.ResourceKind = model.ResourceKind(kind)
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}
