// Пакет filestore — хранение blob-ов на локальном диске.
// Файловая система абстрагирована через afero: OsFs в production,
// MemMapFs в тестах. Запись идёт через временный файл, fsync и
// атомарный rename.
package filestore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/bigkaa/quickshare/internal/blobstore"
	"github.com/bigkaa/quickshare/internal/domain/model"
)

// FilesPrefix — префикс пути, по которому HTTP-сервер отдаёт файлы.
const FilesPrefix = "/files/"

// FileStore — хранилище blob-ов на диске.
type FileStore struct {
	fs afero.Fs
	// dataDir — корневая директория хранения (QS_DATA_DIR)
	dataDir string
	// baseURL — внешний адрес сервиса, от которого строятся ссылки
	baseURL string
	now     func() time.Time
}

// New создаёт FileStore и каталоги для всех категорий blob-ов.
func New(fs afero.Fs, dataDir, baseURL string) (*FileStore, error) {
	for _, kind := range []model.ResourceKind{model.KindRaw, model.KindImage, model.KindVideo} {
		dir := filepath.Join(dataDir, string(kind))
		if err := fs.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dir, err)
		}
	}

	return &FileStore{
		fs:      fs,
		dataDir: dataDir,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}, nil
}

// Put записывает содержимое на диск под ключом {kind}/{name}_{timestamp}_{uuid8}{ext}.
// При ошибке или отмене контекста временный файл удаляется.
func (s *FileStore) Put(ctx context.Context, p blobstore.PutParams) (model.BlobLocator, error) {
	if err := ctx.Err(); err != nil {
		return model.BlobLocator{}, err
	}

	kind := p.Kind
	if !kind.Valid() {
		kind = model.KindRaw
	}
	key := string(kind) + "/" + s.generateStorageName(p.Filename)
	fullPath := filepath.Join(s.dataDir, filepath.FromSlash(key))
	tmpPath := fullPath + ".tmp"

	f, err := s.fs.Create(tmpPath)
	if err != nil {
		return model.BlobLocator{}, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := io.Copy(f, &ctxReader{ctx: ctx, r: p.Reader}); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return model.BlobLocator{}, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return model.BlobLocator{}, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return model.BlobLocator{}, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := s.fs.Rename(tmpPath, fullPath); err != nil {
		s.fs.Remove(tmpPath)
		return model.BlobLocator{}, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return model.BlobLocator{
		URL: blobstore.JoinURL(s.baseURL+FilesPrefix, key),
		Key: key,
	}, nil
}

// Delete удаляет файл. Возвращает nil, если файла уже нет.
// Если ключ в адресе не задан, он восстанавливается из URL.
func (s *FileStore) Delete(ctx context.Context, loc model.BlobLocator, _ model.ResourceKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := loc.Key
	if key == "" {
		key = s.keyFromURL(loc.URL)
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := s.fs.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", key, err)
	}
	return nil
}

// Open открывает файл по ключу для отдачи клиенту.
// Вызывающий код обязан закрыть файл.
func (s *FileStore) Open(key string) (afero.File, os.FileInfo, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, nil, err
	}

	f, err := s.fs.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, blobstore.ErrNotFound
		}
		return nil, nil, fmt.Errorf("ошибка открытия файла %s: %w", key, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("ошибка получения информации о файле %s: %w", key, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, blobstore.ErrNotFound
	}
	return f, info, nil
}

// CheckReady проверяет доступность директории данных.
// Возвращает статус ("ok", "fail") и сообщение.
func (s *FileStore) CheckReady() (status string, message string) {
	info, err := s.fs.Stat(s.dataDir)
	if err != nil {
		return "fail", fmt.Sprintf("директория данных недоступна: %v", err)
	}
	if !info.IsDir() {
		return "fail", fmt.Sprintf("%s не является директорией", s.dataDir)
	}
	return "ok", "директория данных доступна"
}

// resolve проверяет ключ и возвращает полный путь внутри dataDir.
// Ключ вида {kind}/{name}, без выхода за пределы каталога категории.
func (s *FileStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)[1:]
	kind, name, ok := strings.Cut(clean, "/")
	if !ok || name == "" || strings.Contains(name, "/") || clean != key ||
		!model.ResourceKind(kind).Valid() || strings.HasSuffix(name, ".tmp") {
		return "", fmt.Errorf("%w: недопустимый ключ %q", blobstore.ErrNotFound, key)
	}
	return filepath.Join(s.dataDir, kind, name), nil
}

// keyFromURL извлекает ключ из ссылки вида {baseURL}/files/{key}.
func (s *FileStore) keyFromURL(rawURL string) string {
	_, key, ok := strings.Cut(rawURL, FilesPrefix)
	if !ok {
		return ""
	}
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		if unescaped, err := url.PathUnescape(seg); err == nil {
			segments[i] = unescaped
		}
	}
	return strings.Join(segments, "/")
}

// generateStorageName генерирует имя файла для хранения.
// Формат: {name}_{timestamp}_{uuid8}{ext}
// Пример: photo_20260221150405_a1b2c3d4.jpg
func (s *FileStore) generateStorageName(originalFilename string) string {
	base := filepath.Base(filepath.ToSlash(originalFilename))
	if base == "." || base == "/" {
		base = ""
	}
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	ext = sanitizeExt(ext)

	name = sanitize(name)
	if len(name) > 50 {
		name = truncateRunes(name, 50)
	}

	ts := s.now().UTC().Format("20060102150405")
	uid := uuid.New().String()[:8]

	return fmt.Sprintf("%s_%s_%s%s", name, ts, uid, ext)
}

// sanitize оставляет только буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' ||
			(r >= 0x0400 && r <= 0x04FF) { // Кириллица
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "file"
	}
	return result.String()
}

// sanitizeExt допускает расширение до 10 латинских букв и цифр.
func sanitizeExt(ext string) string {
	if len(ext) < 2 || len(ext) > 11 {
		return ""
	}
	for _, r := range ext[1:] {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return ""
		}
	}
	return strings.ToLower(ext)
}

// truncateRunes обрезает строку до n байт, не разрывая многобайтовые символы.
func truncateRunes(s string, n int) string {
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return s[:cut]
}

// ctxReader прерывает чтение при отмене контекста.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
