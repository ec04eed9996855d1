// transfer.go — сервис передач: создание, получение и очистка истёкших.
//
// Создание: валидация → определение категории → загрузка blob-а →
// генерация кода и вставка записи (с повтором при конфликте кода).
// Получение: поиск по коду → сверка секрета → проверка срока.
// Очистка: поиск истёкших → удаление blob-ов (best-effort) →
// пакетное удаление записей по предикату срока.
package service

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/quickshare/internal/blobstore"
	"github.com/bigkaa/quickshare/internal/domain/model"
	"github.com/bigkaa/quickshare/internal/repository"
)

// sniffLen — сколько байт читается для определения MIME-типа.
const sniffLen = 3072

// blobCleanupTimeout — таймаут удаления blob-а при откате создания.
const blobCleanupTimeout = 10 * time.Second

// transfersTotal — операции с передачами по результату.
var transfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "qs_transfers_total",
	Help: "Общее количество операций с передачами",
}, []string{"operation", "result"})

// TransferConfig — параметры сервиса передач.
type TransferConfig struct {
	// TTL — время жизни передачи
	TTL time.Duration
	// MaxFileSize — максимальный размер файла в байтах
	MaxFileSize int64
	// MaxCodeAttempts — попыток генерации кода при конфликтах
	MaxCodeAttempts int
}

// CreateParams — входные данные для создания передачи.
type CreateParams struct {
	// Reader — содержимое файла
	Reader io.Reader
	// Size — заявленный размер файла в байтах
	Size int64
	// Filename — исходное имя файла
	Filename string
	// Secret — секретное слово отправителя
	Secret string
}

// SweepResult — результат одной очистки.
type SweepResult struct {
	// Cleaned — количество истёкших записей, для которых выполнялась очистка
	Cleaned int
	// Deleted — количество записей, удалённых пакетным удалением
	Deleted int
	// BlobErrors — количество неудачных удалений blob-ов
	BlobErrors int
	// Duration — длительность очистки
	Duration time.Duration
}

// TransferService — бизнес-логика передач. Все зависимости внедряются.
type TransferService struct {
	repo   repository.TransferRepository
	blobs  blobstore.BlobStore
	codes  CodeGenerator
	now    func() time.Time
	cfg    TransferConfig
	logger *slog.Logger
}

// NewTransferService создаёт сервис передач.
// now — источник текущего времени (nil — time.Now).
func NewTransferService(
	repo repository.TransferRepository,
	blobs blobstore.BlobStore,
	codes CodeGenerator,
	cfg TransferConfig,
	now func() time.Time,
	logger *slog.Logger,
) *TransferService {
	if now == nil {
		now = time.Now
	}
	if cfg.MaxCodeAttempts < 1 {
		cfg.MaxCodeAttempts = 1
	}
	return &TransferService{
		repo:   repo,
		blobs:  blobs,
		codes:  codes,
		now:    now,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "transfer")),
	}
}

// MaxFileSize возвращает допустимый размер файла.
func (s *TransferService) MaxFileSize() int64 {
	return s.cfg.MaxFileSize
}

// CreateTransfer сохраняет файл и создаёт запись о передаче.
// Запись становится видимой только после успешной загрузки blob-а и вставки.
func (s *TransferService) CreateTransfer(ctx context.Context, p CreateParams) (*model.TransferRecord, error) {
	rec, err := s.createTransfer(ctx, p)
	if err != nil {
		transfersTotal.WithLabelValues("create", resultLabel(err)).Inc()
		return nil, err
	}
	transfersTotal.WithLabelValues("create", "ok").Inc()
	return rec, nil
}

func (s *TransferService) createTransfer(ctx context.Context, p CreateParams) (*model.TransferRecord, error) {
	// Валидация до любых побочных эффектов
	if p.Reader == nil || p.Secret == "" {
		return nil, newError(ErrValidation, MsgUploadRequired, nil)
	}
	if p.Size > s.cfg.MaxFileSize {
		return nil, s.tooLarge()
	}

	body, head, err := sniff(p.Reader)
	if err != nil {
		return nil, newError(ErrStorage, MsgUploadFailed, fmt.Errorf("ошибка чтения файла: %w", err))
	}
	if len(head) == 0 {
		return nil, newError(ErrValidation, MsgUploadRequired, nil)
	}
	// Размер неизвестен: определяется, только если файл целиком поместился в head
	size := p.Size
	if size <= 0 && len(head) < sniffLen {
		size = int64(len(head))
	}
	kind, contentType := blobstore.DetectKind(head)

	if err := ctx.Err(); err != nil {
		return nil, newError(ErrStorage, MsgUploadFailed, err)
	}

	// Заявленный размер может быть занижен или неизвестен: лимит проверяется по потоку
	guard := &limitReader{r: body, limit: s.cfg.MaxFileSize}
	loc, err := s.blobs.Put(ctx, blobstore.PutParams{
		Reader:      guard,
		Size:        size,
		Filename:    p.Filename,
		ContentType: contentType,
		Kind:        kind,
	})
	if errors.Is(err, errOverLimit) {
		s.logger.Warn("Файл превышает допустимый размер",
			slog.String("filename", p.Filename),
			slog.Int64("max_size", s.cfg.MaxFileSize),
		)
		return nil, s.tooLarge()
	}
	if err != nil {
		s.logger.Error("Ошибка загрузки blob-а",
			slog.String("filename", p.Filename),
			slog.String("error", err.Error()),
		)
		return nil, newError(ErrStorage, MsgUploadFailed, err)
	}

	// Вызывающий отменил запрос во время загрузки: запись не создаётся
	if err := ctx.Err(); err != nil {
		s.discardBlob(ctx, loc, kind, "запрос отменён")
		return nil, newError(ErrStorage, MsgUploadFailed, err)
	}

	if guard.n > 0 {
		size = guard.n
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	rec := &model.TransferRecord{
		Secret:           p.Secret,
		Locator:          loc,
		ResourceKind:     kind,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.cfg.TTL),
		Size:             size,
		ContentType:      contentType,
		OriginalFilename: p.Filename,
	}

	for attempt := 1; attempt <= s.cfg.MaxCodeAttempts; attempt++ {
		code, err := s.codes.Generate()
		if err != nil {
			s.discardBlob(ctx, loc, kind, "ошибка генерации кода")
			return nil, newError(ErrStorage, MsgUploadFailed, err)
		}
		rec.Code = code

		err = s.repo.Insert(ctx, rec)
		if err == nil {
			s.logger.Info("Передача создана",
				slog.String("code", rec.Code),
				slog.String("kind", string(kind)),
				slog.String("size", humanize.IBytes(uint64(size))),
				slog.Time("expires_at", rec.ExpiresAt),
			)
			return rec, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			s.discardBlob(ctx, loc, kind, "ошибка сохранения записи")
			s.logger.Error("Ошибка сохранения записи о передаче",
				slog.String("error", err.Error()),
			)
			return nil, newError(ErrStorage, MsgUploadFailed, err)
		}

		s.logger.Warn("Код уже занят, повторная генерация",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", s.cfg.MaxCodeAttempts),
		)
	}

	s.discardBlob(ctx, loc, kind, "исчерпаны попытки генерации кода")
	return nil, newError(ErrStorage, MsgUploadFailed,
		fmt.Errorf("не удалось подобрать свободный код за %d попыток", s.cfg.MaxCodeAttempts))
}

// FetchTransfer возвращает адрес blob-а по коду и секрету.
// Порядок проверок: существование, секрет, срок. Запись не удаляется.
func (s *TransferService) FetchTransfer(ctx context.Context, code, secret string) (model.BlobLocator, error) {
	loc, err := s.fetchTransfer(ctx, code, secret)
	if err != nil {
		transfersTotal.WithLabelValues("fetch", resultLabel(err)).Inc()
		return model.BlobLocator{}, err
	}
	transfersTotal.WithLabelValues("fetch", "ok").Inc()
	return loc, nil
}

func (s *TransferService) fetchTransfer(ctx context.Context, code, secret string) (model.BlobLocator, error) {
	if code == "" || secret == "" {
		return model.BlobLocator{}, newError(ErrValidation, MsgDownloadRequired, nil)
	}

	rec, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.BlobLocator{}, newError(ErrNotFound, MsgInvalidCode, nil)
		}
		s.logger.Error("Ошибка поиска передачи", slog.String("error", err.Error()))
		return model.BlobLocator{}, newError(ErrStorage, MsgDownloadFailed, err)
	}

	if subtle.ConstantTimeCompare([]byte(rec.Secret), []byte(secret)) != 1 {
		return model.BlobLocator{}, newError(ErrForbidden, MsgSecretMismatch, nil)
	}

	if rec.IsExpired(s.now()) {
		return model.BlobLocator{}, newError(ErrGone, MsgCodeExpired, nil)
	}

	return rec.Locator, nil
}

// SweepExpired удаляет истёкшие передачи: сначала blob-ы (ошибки
// логируются и не прерывают очистку), затем записи одним пакетом
// по предикату срока, вычисленному заново.
func (s *TransferService) SweepExpired(ctx context.Context) (*SweepResult, error) {
	start := time.Now()
	result := &SweepResult{}

	expired, err := s.repo.FindExpired(ctx, s.now().UTC())
	if err != nil {
		transfersTotal.WithLabelValues("sweep", "storage_error").Inc()
		return nil, newError(ErrStorage, MsgCleanupFailed, err)
	}

	for _, rec := range expired {
		if err := s.blobs.Delete(ctx, rec.Locator, rec.EffectiveKind()); err != nil {
			result.BlobErrors++
			s.logger.Warn("Не удалось удалить blob истёкшей передачи",
				slog.String("code", rec.Code),
				slog.String("key", rec.Locator.Key),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.logger.Debug("Blob истёкшей передачи удалён",
			slog.String("code", rec.Code),
			slog.String("key", rec.Locator.Key),
		)
	}
	result.Cleaned = len(expired)

	deleted, err := s.repo.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		transfersTotal.WithLabelValues("sweep", "storage_error").Inc()
		return nil, newError(ErrStorage, MsgCleanupFailed, err)
	}
	result.Deleted = deleted
	result.Duration = time.Since(start)

	transfersTotal.WithLabelValues("sweep", "ok").Inc()
	return result, nil
}

func (s *TransferService) tooLarge() *TransferError {
	return newError(ErrFileTooLarge,
		fmt.Sprintf("File exceeds the %s limit.", humanize.IBytes(uint64(s.cfg.MaxFileSize))), nil)
}

// discardBlob удаляет blob после неудачного создания передачи.
// Выполняется даже при отменённом контексте запроса; неудача только логируется.
func (s *TransferService) discardBlob(ctx context.Context, loc model.BlobLocator, kind model.ResourceKind, reason string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), blobCleanupTimeout)
	defer cancel()

	if err := s.blobs.Delete(cleanupCtx, loc, kind); err != nil {
		s.logger.Warn("Осиротевший blob: не удалось удалить после отката",
			slog.String("reason", reason),
			slog.String("key", loc.Key),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Info("Blob удалён после отката создания передачи",
		slog.String("reason", reason),
		slog.String("key", loc.Key),
	)
}

// sniff читает начало содержимого для определения типа и возвращает
// reader, отдающий содержимое целиком. Seekable-источник перематывается.
func sniff(r io.Reader) (io.Reader, []byte, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, nil, err
	}
	head = head[:n]

	if rs, ok := r.(io.ReadSeeker); ok {
		if _, err := rs.Seek(0, io.SeekStart); err != nil {
			return nil, nil, err
		}
		return rs, head, nil
	}
	return io.MultiReader(bytes.NewReader(head), r), head, nil
}

// errOverLimit — поток длиннее MaxFileSize.
var errOverLimit = errors.New("размер файла превышает лимит")

// limitReader считает прочитанные байты и возвращает errOverLimit,
// как только их больше limit.
type limitReader struct {
	r     io.Reader
	limit int64
	n     int64
}

func (l *limitReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.limit {
		return n, errOverLimit
	}
	return n, err
}

// resultLabel — значение метки result для метрик.
func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return "too_large"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrGone):
		return "gone"
	default:
		return "storage_error"
	}
}
