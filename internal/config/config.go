// Пакет config — загрузка и валидация конфигурации QuickShare
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые хранилища записей о передачах.
const (
	RecordStorePostgres = "postgres"
	RecordStoreSQLite   = "sqlite"
	RecordStoreMemory   = "memory"
)

// Допустимые хранилища blob-ов.
const (
	BlobStoreLocal = "local"
	BlobStoreS3    = "s3"
)

// Config содержит все параметры конфигурации QuickShare.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// Время жизни передачи
	TransferTTL time.Duration
	// Максимальный размер загружаемого файла в байтах
	MaxFileSize int64
	// Количество попыток генерации уникального кода
	CodeMaxAttempts int
	// Интервал фоновой очистки; 0 отключает фоновый цикл
	SweepInterval time.Duration

	// Хранилище записей: postgres, sqlite, memory
	RecordStore string
	// Параметры PostgreSQL
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
	// Путь к файлу SQLite
	SQLitePath string
	// Кэш записей: размер (0 — отключён) и TTL
	CacheSize int
	CacheTTL  time.Duration

	// Хранилище blob-ов: local, s3
	BlobStore string
	// Каталог файлов для local
	DataDir string
	// Базовый URL, от которого строятся ссылки /files/{key}
	PublicBaseURL string
	// Параметры S3-совместимого хранилища
	S3Endpoint       string
	S3Region         string
	S3Bucket         string
	S3AccessKey      string
	S3SecretKey      string
	S3PublicURL      string
	S3ForcePathStyle bool

	// Разрешённые CORS origins
	CORSOrigins []string

	// Общий секрет для /cleanup (Authorization: Bearer <secret>)
	CleanupSecret string
	// URL JWKS endpoint для проверки JWT на /cleanup (опционально)
	JWKSUrl string
	// Интервал обновления JWKS
	JWKSRefreshInterval time.Duration
	// Допуск по времени при проверке exp/nbf JWT
	JWTLeeway time.Duration

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// QS_PORT — порт HTTP-сервера (по умолчанию 5000)
	cfg.Port, err = getEnvInt("QS_PORT", 5000)
	if err != nil {
		return nil, fmt.Errorf("QS_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("QS_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("QS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("QS_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("QS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("QS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	if cfg.HTTPReadTimeout, err = getEnvDuration("QS_HTTP_READ_TIMEOUT", 30*time.Second); err != nil {
		return nil, fmt.Errorf("QS_HTTP_READ_TIMEOUT: %w", err)
	}
	if cfg.HTTPWriteTimeout, err = getEnvDuration("QS_HTTP_WRITE_TIMEOUT", 60*time.Second); err != nil {
		return nil, fmt.Errorf("QS_HTTP_WRITE_TIMEOUT: %w", err)
	}
	if cfg.HTTPIdleTimeout, err = getEnvDuration("QS_HTTP_IDLE_TIMEOUT", 120*time.Second); err != nil {
		return nil, fmt.Errorf("QS_HTTP_IDLE_TIMEOUT: %w", err)
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("QS_SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("QS_SHUTDOWN_TIMEOUT: %w", err)
	}

	// QS_TRANSFER_TTL — время жизни передачи (по умолчанию 10 минут)
	cfg.TransferTTL, err = getEnvDuration("QS_TRANSFER_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("QS_TRANSFER_TTL: %w", err)
	}
	if cfg.TransferTTL <= 0 {
		return nil, fmt.Errorf("QS_TRANSFER_TTL: значение должно быть положительным")
	}

	// QS_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 20 MiB)
	cfg.MaxFileSize, err = getEnvInt64("QS_MAX_FILE_SIZE", 20<<20)
	if err != nil {
		return nil, fmt.Errorf("QS_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("QS_MAX_FILE_SIZE: значение должно быть положительным")
	}

	cfg.CodeMaxAttempts, err = getEnvInt("QS_CODE_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, fmt.Errorf("QS_CODE_MAX_ATTEMPTS: %w", err)
	}
	if cfg.CodeMaxAttempts < 1 {
		return nil, fmt.Errorf("QS_CODE_MAX_ATTEMPTS: значение должно быть не меньше 1")
	}

	// QS_SWEEP_INTERVAL — интервал очистки (по умолчанию 10m, 0 — только внешний вызов)
	cfg.SweepInterval, err = getEnvDuration("QS_SWEEP_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("QS_SWEEP_INTERVAL: %w", err)
	}
	if cfg.SweepInterval < 0 {
		return nil, fmt.Errorf("QS_SWEEP_INTERVAL: значение не может быть отрицательным")
	}

	if err := loadRecordStore(cfg); err != nil {
		return nil, err
	}
	if err := loadBlobStore(cfg); err != nil {
		return nil, err
	}

	cfg.CORSOrigins = splitList(getEnvDefault("QS_CORS_ORIGINS", "http://localhost:5173"))

	cfg.CleanupSecret = getEnvDefault("QS_CLEANUP_SECRET", "")
	cfg.JWKSUrl = getEnvDefault("QS_JWKS_URL", "")
	if cfg.JWKSUrl != "" {
		if err := validateURL(cfg.JWKSUrl); err != nil {
			return nil, fmt.Errorf("QS_JWKS_URL: %w", err)
		}
	}
	if cfg.JWKSRefreshInterval, err = getEnvDuration("QS_JWKS_REFRESH_INTERVAL", 15*time.Minute); err != nil {
		return nil, fmt.Errorf("QS_JWKS_REFRESH_INTERVAL: %w", err)
	}
	if cfg.JWTLeeway, err = getEnvDuration("QS_JWT_LEEWAY", 5*time.Second); err != nil {
		return nil, fmt.Errorf("QS_JWT_LEEWAY: %w", err)
	}

	if cfg.DephealthCheckInterval, err = getEnvDuration("QS_DEPHEALTH_CHECK_INTERVAL", 15*time.Second); err != nil {
		return nil, fmt.Errorf("QS_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("QS_DEPHEALTH_GROUP", "quickshare")

	return cfg, nil
}

// loadRecordStore читает параметры хранилища записей.
func loadRecordStore(cfg *Config) error {
	var err error

	cfg.RecordStore = getEnvDefault("QS_RECORD_STORE", RecordStorePostgres)
	switch cfg.RecordStore {
	case RecordStorePostgres:
		cfg.DBHost = getEnvDefault("QS_DB_HOST", "localhost")
		if cfg.DBPort, err = getEnvInt("QS_DB_PORT", 5432); err != nil {
			return fmt.Errorf("QS_DB_PORT: %w", err)
		}
		cfg.DBName = getEnvDefault("QS_DB_NAME", "quickshare")
		cfg.DBUser = getEnvDefault("QS_DB_USER", "quickshare")
		if cfg.DBPassword, err = getEnvRequired("QS_DB_PASSWORD"); err != nil {
			return err
		}
		cfg.DBSSLMode = getEnvDefault("QS_DB_SSL_MODE", "disable")
	case RecordStoreSQLite:
		cfg.SQLitePath = getEnvDefault("QS_SQLITE_PATH", "quickshare.db")
	case RecordStoreMemory:
	default:
		return fmt.Errorf("QS_RECORD_STORE: недопустимое значение %q, допустимые: postgres, sqlite, memory", cfg.RecordStore)
	}

	if cfg.CacheSize, err = getEnvInt("QS_CACHE_SIZE", 1000); err != nil {
		return fmt.Errorf("QS_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 0 {
		return fmt.Errorf("QS_CACHE_SIZE: значение не может быть отрицательным")
	}
	if cfg.CacheTTL, err = getEnvDuration("QS_CACHE_TTL", time.Minute); err != nil {
		return fmt.Errorf("QS_CACHE_TTL: %w", err)
	}
	return nil
}

// loadBlobStore читает параметры хранилища blob-ов.
func loadBlobStore(cfg *Config) error {
	var err error

	cfg.BlobStore = getEnvDefault("QS_BLOB_STORE", BlobStoreLocal)
	switch cfg.BlobStore {
	case BlobStoreLocal:
		cfg.DataDir = getEnvDefault("QS_DATA_DIR", "./data")
		cfg.PublicBaseURL = strings.TrimRight(
			getEnvDefault("QS_PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)), "/")
		if err := validateURL(cfg.PublicBaseURL); err != nil {
			return fmt.Errorf("QS_PUBLIC_BASE_URL: %w", err)
		}
	case BlobStoreS3:
		if cfg.S3Bucket, err = getEnvRequired("QS_S3_BUCKET"); err != nil {
			return err
		}
		cfg.S3Endpoint = getEnvDefault("QS_S3_ENDPOINT", "")
		if cfg.S3Endpoint != "" {
			if err := validateURL(cfg.S3Endpoint); err != nil {
				return fmt.Errorf("QS_S3_ENDPOINT: %w", err)
			}
		}
		cfg.S3Region = getEnvDefault("QS_S3_REGION", "us-east-1")
		cfg.S3AccessKey = getEnvDefault("QS_S3_ACCESS_KEY", "")
		cfg.S3SecretKey = getEnvDefault("QS_S3_SECRET_KEY", "")
		cfg.S3PublicURL = strings.TrimRight(getEnvDefault("QS_S3_PUBLIC_URL", ""), "/")
		if cfg.S3ForcePathStyle, err = getEnvBool("QS_S3_FORCE_PATH_STYLE", true); err != nil {
			return fmt.Errorf("QS_S3_FORCE_PATH_STYLE: %w", err)
		}
	default:
		return fmt.Errorf("QS_BLOB_STORE: недопустимое значение %q, допустимые: local, s3", cfg.BlobStore)
	}
	return nil
}

// PostgresDSN возвращает строку подключения к PostgreSQL.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// PostgresURLForLabels возвращает URL PostgreSQL без пароля (для метрик и логов).
func (c *Config) PostgresURLForLabels() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает bool из переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 10m, 1h)", val)
	}
	return d, nil
}

// splitList разбирает список через запятую, отбрасывая пустые элементы.
func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("некорректный URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q должен использовать схему http или https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q не содержит хост", raw)
	}
	return nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
