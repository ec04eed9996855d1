// files.go — отдача blob-ов локального хранилища по GET /files/*.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/quickshare/internal/api/errors"
	"github.com/bigkaa/quickshare/internal/blobstore"
	"github.com/bigkaa/quickshare/internal/blobstore/filestore"
)

// FilesHandler — обработчик отдачи файлов.
type FilesHandler struct {
	store  *filestore.FileStore
	logger *slog.Logger
}

// NewFilesHandler создаёт обработчик отдачи файлов.
func NewFilesHandler(store *filestore.FileStore, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		store:  store,
		logger: logger.With(slog.String("component", "files_handler")),
	}
}

// ServeFile обрабатывает GET /files/{kind}/{name}.
// Поддерживает Range requests (206) и ETag (If-None-Match → 304).
// Ключ содержит uuid и не переиспользуется, поэтому годится как ETag.
func (h *FilesHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")

	f, info, err := h.store.Open(key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			apierrors.NotFound(w, "File not found.")
			return
		}
		h.logger.Error("Ошибка открытия файла",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Download failed")
		return
	}
	defer f.Close()

	w.Header().Set("ETag", `"`+path.Base(key)+`"`)
	w.Header().Set("Cache-Control", "private, max-age=600")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
