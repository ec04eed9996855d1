// Пакет model — доменные модели QuickShare.
// TransferRecord описывает одну передачу файла: код, секретное слово,
// ссылку на blob и момент истечения. После создания запись не изменяется.
package model

import (
	"time"
)

// ResourceKind — категория blob-а, по которой хранилище выбирает
// пространство ключей при загрузке и удалении.
type ResourceKind string

const (
	// KindRaw — произвольные данные (по умолчанию)
	KindRaw ResourceKind = "raw"
	// KindImage — изображения
	KindImage ResourceKind = "image"
	// KindVideo — видео и аудио
	KindVideo ResourceKind = "video"
)

// Valid сообщает, является ли значение одной из известных категорий.
func (k ResourceKind) Valid() bool {
	switch k {
	case KindRaw, KindImage, KindVideo:
		return true
	}
	return false
}

// BlobLocator — адрес загруженного blob-а.
type BlobLocator struct {
	// URL — ссылка, которую получает получатель через /download
	URL string `json:"url"`
	// Key — ключ blob-а в хранилище, нужен для удаления
	Key string `json:"key"`
}

// TransferRecord — запись о передаче файла.
type TransferRecord struct {
	// Code — 6-значный числовой код, уникальный среди хранимых записей
	Code string `json:"code"`

	// Secret — секретное слово отправителя, сравнивается побайтно
	Secret string `json:"-"`

	// Locator — адрес blob-а в хранилище
	Locator BlobLocator `json:"locator"`

	// ResourceKind — категория blob-а; пустое значение трактуется как raw
	ResourceKind ResourceKind `json:"resource_kind"`

	// ExpiresAt — момент истечения (UTC), CreatedAt + TTL
	ExpiresAt time.Time `json:"expires_at"`

	// CreatedAt — момент создания (UTC)
	CreatedAt time.Time `json:"created_at"`

	// Size — размер файла в байтах
	Size int64 `json:"size"`

	// ContentType — MIME-тип, определённый по содержимому
	ContentType string `json:"content_type,omitempty"`

	// OriginalFilename — имя файла при загрузке
	OriginalFilename string `json:"original_filename,omitempty"`
}

// IsExpired возвращает true, если момент now строго позже ExpiresAt.
// Ровно в ExpiresAt запись ещё действительна.
func (r *TransferRecord) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// EffectiveKind возвращает категорию blob-а с учётом значения по умолчанию.
func (r *TransferRecord) EffectiveKind() ResourceKind {
	if r.ResourceKind == "" {
		return KindRaw
	}
	return r.ResourceKind
}
