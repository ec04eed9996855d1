// sweeper.go — фоновая очистка истёкших передач.
//
// Запускается как горутина с периодическим тикером (QS_SWEEP_INTERVAL):
// первый проход сразу после старта, далее по тикеру. Тот же RunOnce
// вызывается HTTP-обработчиком /cleanup и командой sweep; mutex
// исключает параллельные проходы.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики очистки
var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qs_sweep_runs_total",
		Help: "Общее количество запусков очистки",
	})

	sweepRecordsCleanedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qs_sweep_records_cleaned_total",
		Help: "Общее количество истёкших передач, обработанных очисткой",
	})

	sweepBlobErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qs_sweep_blob_errors_total",
		Help: "Общее количество ошибок удаления blob-ов при очистке",
	})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "qs_sweep_duration_seconds",
		Help:    "Длительность очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// Sweeper — операция очистки, которую выполняет SweeperService.
type Sweeper interface {
	SweepExpired(ctx context.Context) (*SweepResult, error)
}

// SweeperService — сервис периодической очистки истёкших передач.
type SweeperService struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeperService создаёт сервис очистки.
func NewSweeperService(sweeper Sweeper, interval time.Duration, logger *slog.Logger) *SweeperService {
	return &SweeperService{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger.With(slog.String("component", "sweeper")),
	}
}

// Start запускает фоновую горутину очистки.
// При нулевом интервале фоновый цикл не запускается: очистка
// выполняется только по внешнему вызову.
func (sw *SweeperService) Start(ctx context.Context) {
	if sw.interval <= 0 {
		sw.logger.Info("Фоновая очистка отключена, ожидается внешний вызов /cleanup")
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	sw.cancel = cancel
	sw.done = make(chan struct{})

	go sw.run(sweepCtx)

	sw.logger.Info("Очистка запущена",
		slog.String("interval", sw.interval.String()),
	)
}

// Stop останавливает фоновый цикл и дожидается завершения текущего прохода.
func (sw *SweeperService) Stop() {
	if sw.cancel == nil {
		return
	}
	sw.cancel()
	<-sw.done
	sw.cancel = nil
	sw.logger.Info("Очистка остановлена")
}

func (sw *SweeperService) run(ctx context.Context) {
	defer close(sw.done)

	// Первый запуск — сразу после старта
	sw.RunOnce(ctx) //nolint:errcheck // ошибка уже залогирована

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.RunOnce(ctx) //nolint:errcheck // ошибка уже залогирована
		}
	}
}

// RunOnce выполняет один проход очистки.
// Потокобезопасен: параллельные вызовы выполняются последовательно.
func (sw *SweeperService) RunOnce(ctx context.Context) (*SweepResult, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sweepRunsTotal.Inc()
	sw.logger.Debug("Очистка начата")

	result, err := sw.sweeper.SweepExpired(ctx)
	if err != nil {
		sw.logger.Error("Ошибка очистки истёкших передач",
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	sweepRecordsCleanedTotal.Add(float64(result.Cleaned))
	sweepBlobErrorsTotal.Add(float64(result.BlobErrors))
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	sw.logger.Info("Очистка завершена",
		slog.Int("cleaned", result.Cleaned),
		slog.Int("deleted", result.Deleted),
		slog.Int("blob_errors", result.BlobErrors),
		slog.Duration("duration", result.Duration),
	)

	return result, nil
}
