// transfers.go — HTTP handlers передач: загрузка, получение, очистка.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"

	apierrors "github.com/bigkaa/quickshare/internal/api/errors"
	"github.com/bigkaa/quickshare/internal/domain/model"
	"github.com/bigkaa/quickshare/internal/service"
)

const (
	// multipartOverhead — запас сверх MaxFileSize на заголовки multipart и поле secretWord.
	multipartOverhead = 1 << 20
	// multipartMemory — часть формы, которая держится в памяти; остальное уходит во временные файлы.
	multipartMemory = 8 << 20
	// maxJSONBody — ограничение тела запроса /download.
	maxJSONBody = 64 << 10
)

// CleanupMessage — сообщение успешной очистки.
const CleanupMessage = "Expired transfers cleaned up."

// TransferService — операции сервиса передач, используемые HTTP-слоем.
type TransferService interface {
	CreateTransfer(ctx context.Context, p service.CreateParams) (*model.TransferRecord, error)
	FetchTransfer(ctx context.Context, code, secret string) (model.BlobLocator, error)
	MaxFileSize() int64
}

// SweepRunner — запуск одного прохода очистки.
type SweepRunner interface {
	RunOnce(ctx context.Context) (*service.SweepResult, error)
}

// TransfersHandler — обработчик /upload, /download, /cleanup.
type TransfersHandler struct {
	svc     TransferService
	sweeper SweepRunner
	logger  *slog.Logger
}

// NewTransfersHandler создаёт обработчик передач.
func NewTransfersHandler(svc TransferService, sweeper SweepRunner, logger *slog.Logger) *TransfersHandler {
	return &TransfersHandler{
		svc:     svc,
		sweeper: sweeper,
		logger:  logger.With(slog.String("component", "transfers_handler")),
	}
}

type uploadResponse struct {
	Code string `json:"code"`
}

type downloadRequest struct {
	Code       string `json:"code"`
	SecretWord string `json:"secretWord"`
}

type downloadResponse struct {
	FileURL string `json:"fileUrl"`
}

type cleanupResponse struct {
	Message string `json:"message"`
	Cleaned int    `json:"cleaned"`
}

// Upload обрабатывает POST /upload.
// Multipart form: file (обязательно), secretWord (обязательно).
func (h *TransfersHandler) Upload(w http.ResponseWriter, r *http.Request) {
	limit := h.svc.MaxFileSize() + multipartOverhead
	if r.ContentLength > limit {
		apierrors.FileTooLarge(w, tooLargeMessage(h.svc.MaxFileSize()))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.FileTooLarge(w, tooLargeMessage(h.svc.MaxFileSize()))
			return
		}
		apierrors.ValidationError(w, service.MsgUploadRequired)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	params := service.CreateParams{Secret: r.FormValue("secretWord")}

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		params.Reader = file
		params.Size = header.Size
		params.Filename = header.Filename
	case errors.Is(err, http.ErrMissingFile):
		// Отсутствие файла отклоняется сервисом вместе с пустым секретом
	default:
		apierrors.ValidationError(w, service.MsgUploadRequired)
		return
	}

	rec, err := h.svc.CreateTransfer(r.Context(), params)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{Code: rec.Code})
}

// Download обрабатывает POST /download.
// JSON body: {"code": "...", "secretWord": "..."}.
func (h *TransfersHandler) Download(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil {
		apierrors.ValidationError(w, service.MsgDownloadRequired)
		return
	}

	loc, err := h.svc.FetchTransfer(r.Context(), req.Code, req.SecretWord)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, downloadResponse{FileURL: loc.URL})
}

// Cleanup обрабатывает GET и DELETE /cleanup.
func (h *TransfersHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	result, err := h.sweeper.RunOnce(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cleanupResponse{Message: CleanupMessage, Cleaned: result.Cleaned})
}

// Root обрабатывает GET /.
func (h *TransfersHandler) Root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "QuickShare backend is running")
}

// writeServiceError преобразует ошибку сервиса в HTTP-ответ.
// Подробности сбоев хранилища только логируются.
func (h *TransfersHandler) writeServiceError(w http.ResponseWriter, err error) {
	msg := service.PublicMessage(err)

	switch {
	case errors.Is(err, service.ErrFileTooLarge):
		apierrors.FileTooLarge(w, msg)
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, msg)
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, msg)
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, msg)
	case errors.Is(err, service.ErrGone):
		apierrors.Gone(w, msg)
	default:
		h.logger.Error("Ошибка обработки запроса", slog.String("error", err.Error()))
		apierrors.InternalError(w, msg)
	}
}

func tooLargeMessage(limit int64) string {
	return fmt.Sprintf("File exceeds the %s limit.", humanize.IBytes(uint64(limit)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
