package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/quickshare/internal/domain/model"
)

// baseTime — момент времени с точностью до миллисекунды, чтобы значения
// без потерь проходили через PostgreSQL и SQLite.
var baseTime = time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func newRecord(code string, expiresAt time.Time) *model.TransferRecord {
	return &model.TransferRecord{
		Code:   code,
		Secret: "swordfish",
		Locator: model.BlobLocator{
			URL: "http://localhost:5000/files/raw/" + code,
			Key: "raw/" + code,
		},
		ResourceKind:     model.KindRaw,
		ExpiresAt:        expiresAt,
		CreatedAt:        expiresAt.Add(-10 * time.Minute),
		Size:             5,
		ContentType:      "text/plain; charset=utf-8",
		OriginalFilename: "hello.txt",
	}
}

// runRepositoryContract проверяет общий контракт TransferRepository
// на любой реализации.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) TransferRepository) {
	t.Run("Insert и FindByCode", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		rec := newRecord("123456", baseTime)
		rec.ResourceKind = model.KindImage
		if err := repo.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert: %v", err)
		}

		got, err := repo.FindByCode(ctx, "123456")
		if err != nil {
			t.Fatalf("FindByCode: %v", err)
		}
		if got.Secret != rec.Secret {
			t.Errorf("Secret: ожидалось %q, получено %q", rec.Secret, got.Secret)
		}
		if got.Locator != rec.Locator {
			t.Errorf("Locator: ожидалось %+v, получено %+v", rec.Locator, got.Locator)
		}
		if got.ResourceKind != model.KindImage {
			t.Errorf("ResourceKind: ожидалось image, получено %q", got.ResourceKind)
		}
		if !got.ExpiresAt.Equal(rec.ExpiresAt) {
			t.Errorf("ExpiresAt: ожидалось %v, получено %v", rec.ExpiresAt, got.ExpiresAt)
		}
		if !got.CreatedAt.Equal(rec.CreatedAt) {
			t.Errorf("CreatedAt: ожидалось %v, получено %v", rec.CreatedAt, got.CreatedAt)
		}
		if got.Size != 5 || got.OriginalFilename != "hello.txt" || got.ContentType != rec.ContentType {
			t.Errorf("метаданные не совпадают: %+v", got)
		}
	})

	t.Run("пустая категория сохраняется как raw", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		rec := newRecord("200000", baseTime)
		rec.ResourceKind = ""
		if err := repo.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		got, err := repo.FindByCode(ctx, "200000")
		if err != nil {
			t.Fatalf("FindByCode: %v", err)
		}
		if got.ResourceKind != model.KindRaw {
			t.Errorf("ResourceKind: ожидалось raw, получено %q", got.ResourceKind)
		}
	})

	t.Run("дубликат кода", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		if err := repo.Insert(ctx, newRecord("111111", baseTime)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		err := repo.Insert(ctx, newRecord("111111", baseTime.Add(time.Hour)))
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("ожидалась ErrConflict, получено %v", err)
		}

		// Исходная запись не изменилась
		got, err := repo.FindByCode(ctx, "111111")
		if err != nil {
			t.Fatalf("FindByCode: %v", err)
		}
		if !got.ExpiresAt.Equal(baseTime) {
			t.Errorf("ExpiresAt изменился после конфликта: %v", got.ExpiresAt)
		}
	})

	t.Run("неизвестный код", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.FindByCode(context.Background(), "999999")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("ожидалась ErrNotFound, получено %v", err)
		}
	})

	t.Run("FindExpired и DeleteExpired", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		records := []*model.TransferRecord{
			newRecord("100001", baseTime.Add(-2*time.Minute)),
			newRecord("100002", baseTime.Add(-time.Millisecond)),
			newRecord("100003", baseTime), // ровно в момент before — не истёк
			newRecord("100004", baseTime.Add(time.Minute)),
		}
		for _, r := range records {
			if err := repo.Insert(ctx, r); err != nil {
				t.Fatalf("Insert %s: %v", r.Code, err)
			}
		}

		expired, err := repo.FindExpired(ctx, baseTime)
		if err != nil {
			t.Fatalf("FindExpired: %v", err)
		}
		if len(expired) != 2 {
			t.Fatalf("FindExpired: ожидалось 2 записи, получено %d", len(expired))
		}
		if expired[0].Code != "100001" || expired[1].Code != "100002" {
			t.Errorf("FindExpired: ожидались 100001, 100002 по возрастанию expires_at, получено %s, %s",
				expired[0].Code, expired[1].Code)
		}

		deleted, err := repo.DeleteExpired(ctx, baseTime)
		if err != nil {
			t.Fatalf("DeleteExpired: %v", err)
		}
		if deleted != 2 {
			t.Errorf("DeleteExpired: ожидалось 2, получено %d", deleted)
		}

		count, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if count != 2 {
			t.Errorf("Count: ожидалось 2, получено %d", count)
		}

		if _, err := repo.FindByCode(ctx, "100001"); !errors.Is(err, ErrNotFound) {
			t.Errorf("удалённая запись: ожидалась ErrNotFound, получено %v", err)
		}
		if _, err := repo.FindByCode(ctx, "100003"); err != nil {
			t.Errorf("запись с expires_at == before не должна удаляться: %v", err)
		}

		// Повторное удаление ничего не находит
		deleted, err = repo.DeleteExpired(ctx, baseTime)
		if err != nil {
			t.Fatalf("повторный DeleteExpired: %v", err)
		}
		if deleted != 0 {
			t.Errorf("повторный DeleteExpired: ожидалось 0, получено %d", deleted)
		}
	})

	t.Run("конкурентная вставка одного кода", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		const workers = 8
		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded, conflicts := 0, 0

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				rec := newRecord("555555", baseTime)
				rec.Secret = fmt.Sprintf("secret-%d", i)
				err := repo.Insert(ctx, rec)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, ErrConflict):
					conflicts++
				default:
					t.Errorf("неожиданная ошибка: %v", err)
				}
			}(i)
		}
		wg.Wait()

		if succeeded != 1 {
			t.Errorf("ожидалась ровно 1 успешная вставка, получено %d", succeeded)
		}
		if conflicts != workers-1 {
			t.Errorf("ожидалось %d конфликтов, получено %d", workers-1, conflicts)
		}
	})
}
