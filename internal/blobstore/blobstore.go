// Пакет blobstore — узкий интерфейс хранилища содержимого файлов.
// Сервис передач знает о blob-е только его адрес (BlobLocator) и категорию.
package blobstore

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/bigkaa/quickshare/internal/domain/model"
)

// ErrNotFound — blob с указанным ключом не существует.
var ErrNotFound = errors.New("blob не найден")

// PutParams — параметры загрузки blob-а.
type PutParams struct {
	// Reader — содержимое файла
	Reader io.Reader
	// Size — размер содержимого в байтах
	Size int64
	// Filename — исходное имя файла (для расширения и имени ключа)
	Filename string
	// ContentType — MIME-тип содержимого
	ContentType string
	// Kind — категория blob-а
	Kind model.ResourceKind
}

// BlobStore — хранилище blob-ов.
type BlobStore interface {
	// Put сохраняет содержимое и возвращает его адрес.
	Put(ctx context.Context, p PutParams) (model.BlobLocator, error)
	// Delete удаляет blob. Удаление отсутствующего blob-а не является ошибкой.
	Delete(ctx context.Context, loc model.BlobLocator, kind model.ResourceKind) error
}

// DetectKind определяет MIME-тип по первым байтам содержимого и
// категорию blob-а: image/* → image, video/* и audio/* → video,
// остальное → raw.
func DetectKind(head []byte) (model.ResourceKind, string) {
	mt := mimetype.Detect(head)
	contentType := mt.String()

	switch {
	case strings.HasPrefix(contentType, "image/"):
		return model.KindImage, contentType
	case strings.HasPrefix(contentType, "video/"), strings.HasPrefix(contentType, "audio/"):
		return model.KindVideo, contentType
	default:
		return model.KindRaw, contentType
	}
}

// JoinURL строит публичную ссылку base/key, экранируя сегменты ключа.
func JoinURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}
