package repository

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/quickshare/internal/domain/model"
)

// Prometheus-метрики кэша записей.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qs_record_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш записей о передачах.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qs_record_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша записей о передачах.",
	})
)

// CachedTransferRepository — обёртка над TransferRepository с LRU-кэшем
// для FindByCode. Кэшируются только найденные записи. Запись из кэша
// отдаётся, только пока она не истекла: код освобождается лишь после
// удаления истёкшей записи, поэтому действующая запись в кэше не может
// устареть.
type CachedTransferRepository struct {
	next  TransferRepository
	cache *expirable.LRU[string, *model.TransferRecord]
	now   func() time.Time
}

// NewCachedTransferRepository оборачивает next кэшем на maxSize записей с TTL.
// now — источник текущего времени (nil — time.Now).
func NewCachedTransferRepository(next TransferRepository, maxSize int, ttl time.Duration, now func() time.Time) *CachedTransferRepository {
	if now == nil {
		now = time.Now
	}
	return &CachedTransferRepository{
		next:  next,
		cache: expirable.NewLRU[string, *model.TransferRecord](maxSize, nil, ttl),
		now:   now,
	}
}

func (c *CachedTransferRepository) Insert(ctx context.Context, rec *model.TransferRecord) error {
	if err := c.next.Insert(ctx, rec); err != nil {
		return err
	}
	copied := *rec
	copied.ResourceKind = normalizeKind(rec.ResourceKind)
	c.cache.Add(rec.Code, &copied)
	return nil
}

func (c *CachedTransferRepository) FindByCode(ctx context.Context, code string) (*model.TransferRecord, error) {
	if rec, ok := c.cache.Get(code); ok {
		if !rec.IsExpired(c.now()) {
			cacheHitsTotal.Inc()
			copied := *rec
			return &copied, nil
		}
		c.cache.Remove(code)
	}
	cacheMissesTotal.Inc()

	rec, err := c.next.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	copied := *rec
	c.cache.Add(code, &copied)
	return rec, nil
}

func (c *CachedTransferRepository) FindExpired(ctx context.Context, before time.Time) ([]*model.TransferRecord, error) {
	return c.next.FindExpired(ctx, before)
}

// DeleteExpired удаляет записи в обёрнутом хранилище и вычищает
// из кэша все записи с ExpiresAt < before.
func (c *CachedTransferRepository) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	n, err := c.next.DeleteExpired(ctx, before)
	if err != nil {
		return 0, err
	}
	for _, code := range c.cache.Keys() {
		if rec, ok := c.cache.Peek(code); ok && rec.ExpiresAt.Before(before) {
			c.cache.Remove(code)
		}
	}
	return n, nil
}

func (c *CachedTransferRepository) Count(ctx context.Context) (int, error) {
	return c.next.Count(ctx)
}

// Len возвращает текущее число записей в кэше.
func (c *CachedTransferRepository) Len() int {
	return c.cache.Len()
}
