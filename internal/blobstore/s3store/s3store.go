// Пакет s3store — хранение blob-ов в S3-совместимом хранилище
// (AWS S3, MinIO) через aws-sdk-go.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	"github.com/bigkaa/quickshare/internal/blobstore"
	"github.com/bigkaa/quickshare/internal/domain/model"
)

// Config — параметры подключения к S3.
type Config struct {
	// Endpoint — адрес S3-совместимого сервиса; пустой — AWS S3
	Endpoint string
	Region   string
	Bucket   string
	// AccessKey и SecretKey — статические ключи; пустые — цепочка AWS по умолчанию
	AccessKey string
	SecretKey string
	// PublicURL — базовый адрес, по которому объекты доступны получателю
	PublicURL string
	// ForcePathStyle — адресация http://endpoint/bucket/key (MinIO)
	ForcePathStyle bool
}

// Store — BlobStore поверх S3.
type Store struct {
	client  *s3.S3
	bucket  string
	baseURL string
}

// New создаёт клиент S3.
func New(cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("не задан бакет S3")
	}

	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.ForcePathStyle),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания сессии S3: %w", err)
	}

	return &Store{
		client:  s3.New(sess),
		bucket:  cfg.Bucket,
		baseURL: publicBaseURL(cfg),
	}, nil
}

// Put загружает объект под ключом {kind}/{uuid}{ext}.
func (s *Store) Put(ctx context.Context, p blobstore.PutParams) (model.BlobLocator, error) {
	kind := p.Kind
	if !kind.Valid() {
		kind = model.KindRaw
	}
	key := string(kind) + "/" + uuid.New().String() + objectExt(p.Filename)

	body, err := readSeeker(p.Reader)
	if err != nil {
		return model.BlobLocator{}, fmt.Errorf("ошибка чтения данных: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if p.ContentType != "" {
		input.ContentType = aws.String(p.ContentType)
	}
	if p.Size > 0 {
		input.ContentLength = aws.Int64(p.Size)
	}

	if _, err := s.client.PutObjectWithContext(ctx, input); err != nil {
		return model.BlobLocator{}, fmt.Errorf("ошибка загрузки объекта %s: %w", key, err)
	}

	return model.BlobLocator{
		URL: blobstore.JoinURL(s.baseURL, key),
		Key: key,
	}, nil
}

// Delete удаляет объект. S3 не считает удаление отсутствующего
// объекта ошибкой; NoSuchKey от совместимых реализаций тоже игнорируется.
func (s *Store) Delete(ctx context.Context, loc model.BlobLocator, _ model.ResourceKind) error {
	key := loc.Key
	if key == "" {
		key = s.keyFromURL(loc.URL)
	}
	if key == "" {
		return fmt.Errorf("не удалось определить ключ объекта по адресу %q", loc.URL)
	}

	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil
		}
		return fmt.Errorf("ошибка удаления объекта %s: %w", key, err)
	}
	return nil
}

func (s *Store) keyFromURL(rawURL string) string {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(rawURL, prefix) {
		return ""
	}
	return strings.TrimPrefix(rawURL, prefix)
}

// publicBaseURL определяет базовый адрес ссылок на объекты.
func publicBaseURL(cfg Config) string {
	switch {
	case cfg.PublicURL != "":
		return strings.TrimRight(cfg.PublicURL, "/")
	case cfg.Endpoint != "" && cfg.ForcePathStyle:
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}

// objectExt возвращает расширение файла в нижнем регистре, если оно безопасно.
func objectExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 || len(ext) > 11 {
		return ""
	}
	for _, r := range ext[1:] {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return ""
		}
	}
	return ext
}

// readSeeker возвращает io.ReadSeeker для подписи запроса:
// multipart-файлы уже им являются, остальное буферизуется.
func readSeeker(r io.Reader) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
