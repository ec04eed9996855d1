package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bigkaa/quickshare/internal/domain/model"
)

// MemoryTransferRepository — потокобезопасное in-memory хранилище передач.
// Используется в тестах и при QS_RECORD_STORE=memory (один процесс,
// записи теряются при рестарте).
type MemoryTransferRepository struct {
	mu        sync.RWMutex
	transfers map[string]*model.TransferRecord // code → запись
}

// NewMemoryTransferRepository создаёт пустое in-memory хранилище.
func NewMemoryTransferRepository() *MemoryTransferRepository {
	return &MemoryTransferRepository{
		transfers: make(map[string]*model.TransferRecord),
	}
}

// Insert сохраняет копию записи. ErrConflict, если код уже занят.
func (m *MemoryTransferRepository) Insert(ctx context.Context, rec *model.TransferRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transfers[rec.Code]; ok {
		return fmt.Errorf("%w: код %s уже используется", ErrConflict, rec.Code)
	}

	// Копия, чтобы внешние изменения не влияли на хранимую запись
	copied := *rec
	copied.ResourceKind = normalizeKind(rec.ResourceKind)
	m.transfers[rec.Code] = &copied
	return nil
}

// FindByCode возвращает копию записи по коду.
func (m *MemoryTransferRepository) FindByCode(ctx context.Context, code string) (*model.TransferRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.transfers[code]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

// FindExpired возвращает копии записей с ExpiresAt < before,
// отсортированные по ExpiresAt.
func (m *MemoryTransferRepository) FindExpired(ctx context.Context, before time.Time) ([]*model.TransferRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*model.TransferRecord
	for _, rec := range m.transfers {
		if rec.ExpiresAt.Before(before) {
			copied := *rec
			result = append(result, &copied)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ExpiresAt.Before(result[j].ExpiresAt)
	})
	return result, nil
}

// DeleteExpired удаляет записи с ExpiresAt < before.
func (m *MemoryTransferRepository) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for code, rec := range m.transfers {
		if rec.ExpiresAt.Before(before) {
			delete(m.transfers, code)
			deleted++
		}
	}
	return deleted, nil
}

// Count возвращает количество хранимых записей.
func (m *MemoryTransferRepository) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.transfers), nil
}
