package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

// allKeys — все переменные окружения QS_*, которые читает Load.
var allKeys = []string{
	"QS_PORT", "QS_LOG_LEVEL", "QS_LOG_FORMAT",
	"QS_HTTP_READ_TIMEOUT", "QS_HTTP_WRITE_TIMEOUT", "QS_HTTP_IDLE_TIMEOUT", "QS_SHUTDOWN_TIMEOUT",
	"QS_TRANSFER_TTL", "QS_MAX_FILE_SIZE", "QS_CODE_MAX_ATTEMPTS", "QS_SWEEP_INTERVAL",
	"QS_RECORD_STORE", "QS_DB_HOST", "QS_DB_PORT", "QS_DB_NAME", "QS_DB_USER", "QS_DB_PASSWORD",
	"QS_DB_SSL_MODE", "QS_SQLITE_PATH", "QS_CACHE_SIZE", "QS_CACHE_TTL",
	"QS_BLOB_STORE", "QS_DATA_DIR", "QS_PUBLIC_BASE_URL",
	"QS_S3_ENDPOINT", "QS_S3_REGION", "QS_S3_BUCKET", "QS_S3_ACCESS_KEY", "QS_S3_SECRET_KEY",
	"QS_S3_PUBLIC_URL", "QS_S3_FORCE_PATH_STYLE",
	"QS_CORS_ORIGINS", "QS_CLEANUP_SECRET", "QS_JWKS_URL", "QS_JWKS_REFRESH_INTERVAL", "QS_JWT_LEEWAY",
	"QS_DEPHEALTH_CHECK_INTERVAL", "QS_DEPHEALTH_GROUP",
}

// clearEnv сбрасывает все QS_* переменные на время теста.
// Пустое значение эквивалентно отсутствию переменной для Load.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)
	setEnv(t, map[string]string{"QS_DB_PASSWORD": "secret"})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if cfg.Port != 5000 {
		t.Errorf("Port: ожидалось 5000, получено %d", cfg.Port)
	}
	if cfg.TransferTTL != 10*time.Minute {
		t.Errorf("TransferTTL: ожидалось 10m, получено %v", cfg.TransferTTL)
	}
	if cfg.MaxFileSize != 20*1024*1024 {
		t.Errorf("MaxFileSize: ожидалось 20 MiB, получено %d", cfg.MaxFileSize)
	}
	if cfg.CodeMaxAttempts != 5 {
		t.Errorf("CodeMaxAttempts: ожидалось 5, получено %d", cfg.CodeMaxAttempts)
	}
	if cfg.SweepInterval != 10*time.Minute {
		t.Errorf("SweepInterval: ожидалось 10m, получено %v", cfg.SweepInterval)
	}
	if cfg.RecordStore != RecordStorePostgres {
		t.Errorf("RecordStore: ожидалось %q, получено %q", RecordStorePostgres, cfg.RecordStore)
	}
	if cfg.DBHost != "localhost" || cfg.DBPort != 5432 || cfg.DBName != "quickshare" {
		t.Errorf("параметры БД по умолчанию: получено %s:%d/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)
	}
	if cfg.BlobStore != BlobStoreLocal {
		t.Errorf("BlobStore: ожидалось %q, получено %q", BlobStoreLocal, cfg.BlobStore)
	}
	if cfg.PublicBaseURL != "http://localhost:5000" {
		t.Errorf("PublicBaseURL: ожидалось http://localhost:5000, получено %q", cfg.PublicBaseURL)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:5173" {
		t.Errorf("CORSOrigins: получено %v", cfg.CORSOrigins)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel: ожидалось INFO, получено %v", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat: ожидалось 'json', получено %q", cfg.LogFormat)
	}
	if cfg.CacheSize != 1000 {
		t.Errorf("CacheSize: ожидалось 1000, получено %d", cfg.CacheSize)
	}
	if cfg.CleanupSecret != "" || cfg.JWKSUrl != "" {
		t.Error("авторизация /cleanup по умолчанию должна быть отключена")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	setEnv(t, map[string]string{
		"QS_PORT":              "8080",
		"QS_TRANSFER_TTL":      "5m",
		"QS_MAX_FILE_SIZE":     "1048576",
		"QS_SWEEP_INTERVAL":    "0",
		"QS_RECORD_STORE":      "sqlite",
		"QS_SQLITE_PATH":       "/tmp/qs.db",
		"QS_BLOB_STORE":        "s3",
		"QS_S3_BUCKET":         "transfers",
		"QS_S3_ENDPOINT":       "http://minio:9000",
		"QS_S3_PUBLIC_URL":     "https://cdn.example.com/transfers/",
		"QS_CORS_ORIGINS":      "https://a.example.com, https://b.example.com,",
		"QS_CLEANUP_SECRET":    "cron-secret",
		"QS_LOG_LEVEL":         "debug",
		"QS_LOG_FORMAT":        "text",
		"QS_CODE_MAX_ATTEMPTS": "3",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port: ожидалось 8080, получено %d", cfg.Port)
	}
	if cfg.TransferTTL != 5*time.Minute {
		t.Errorf("TransferTTL: ожидалось 5m, получено %v", cfg.TransferTTL)
	}
	if cfg.SweepInterval != 0 {
		t.Errorf("SweepInterval: ожидалось 0, получено %v", cfg.SweepInterval)
	}
	if cfg.SQLitePath != "/tmp/qs.db" {
		t.Errorf("SQLitePath: получено %q", cfg.SQLitePath)
	}
	if cfg.S3PublicURL != "https://cdn.example.com/transfers" {
		t.Errorf("S3PublicURL: завершающий слэш должен быть удалён, получено %q", cfg.S3PublicURL)
	}
	if !cfg.S3ForcePathStyle {
		t.Error("S3ForcePathStyle: по умолчанию ожидалось true")
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("CORSOrigins: ожидалось 2 значения, получено %v", cfg.CORSOrigins)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel: ожидалось DEBUG, получено %v", cfg.LogLevel)
	}
	if cfg.CodeMaxAttempts != 3 {
		t.Errorf("CodeMaxAttempts: ожидалось 3, получено %d", cfg.CodeMaxAttempts)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		wantKey string
	}{
		{"нет пароля БД", map[string]string{}, "QS_DB_PASSWORD"},
		{"порт вне диапазона", map[string]string{"QS_PORT": "70000", "QS_RECORD_STORE": "memory"}, "QS_PORT"},
		{"порт не число", map[string]string{"QS_PORT": "abc", "QS_RECORD_STORE": "memory"}, "QS_PORT"},
		{"неизвестное хранилище записей", map[string]string{"QS_RECORD_STORE": "mongo"}, "QS_RECORD_STORE"},
		{"неизвестное хранилище blob-ов", map[string]string{"QS_RECORD_STORE": "memory", "QS_BLOB_STORE": "cloudinary"}, "QS_BLOB_STORE"},
		{"s3 без бакета", map[string]string{"QS_RECORD_STORE": "memory", "QS_BLOB_STORE": "s3"}, "QS_S3_BUCKET"},
		{"нулевой TTL", map[string]string{"QS_RECORD_STORE": "memory", "QS_TRANSFER_TTL": "0s"}, "QS_TRANSFER_TTL"},
		{"некорректная длительность", map[string]string{"QS_RECORD_STORE": "memory", "QS_SWEEP_INTERVAL": "ten"}, "QS_SWEEP_INTERVAL"},
		{"отрицательный размер файла", map[string]string{"QS_RECORD_STORE": "memory", "QS_MAX_FILE_SIZE": "-1"}, "QS_MAX_FILE_SIZE"},
		{"ноль попыток генерации кода", map[string]string{"QS_RECORD_STORE": "memory", "QS_CODE_MAX_ATTEMPTS": "0"}, "QS_CODE_MAX_ATTEMPTS"},
		{"неверный формат логов", map[string]string{"QS_RECORD_STORE": "memory", "QS_LOG_FORMAT": "xml"}, "QS_LOG_FORMAT"},
		{"неверный уровень логов", map[string]string{"QS_RECORD_STORE": "memory", "QS_LOG_LEVEL": "trace"}, "QS_LOG_LEVEL"},
		{"JWKS без схемы", map[string]string{"QS_RECORD_STORE": "memory", "QS_JWKS_URL": "admin/jwks"}, "QS_JWKS_URL"},
		{"s3 endpoint ftp", map[string]string{
			"QS_RECORD_STORE": "memory", "QS_BLOB_STORE": "s3", "QS_S3_BUCKET": "b", "QS_S3_ENDPOINT": "ftp://x",
		}, "QS_S3_ENDPOINT"},
		{"s3 path style не bool", map[string]string{
			"QS_RECORD_STORE": "memory", "QS_BLOB_STORE": "s3", "QS_S3_BUCKET": "b", "QS_S3_FORCE_PATH_STYLE": "maybe",
		}, "QS_S3_FORCE_PATH_STYLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			setEnv(t, tt.vars)

			_, err := Load()
			if err == nil {
				t.Fatal("ожидалась ошибка, получено nil")
			}
			if !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("ошибка должна упоминать %s, получено: %v", tt.wantKey, err)
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{
		DBHost: "db", DBPort: 5433, DBName: "qs",
		DBUser: "user", DBPassword: "p@ss", DBSSLMode: "require",
	}

	dsn := cfg.PostgresDSN()
	if dsn != "postgres://user:p%40ss@db:5433/qs?sslmode=require" {
		t.Errorf("PostgresDSN: получено %q", dsn)
	}
	if strings.Contains(cfg.PostgresURLForLabels(), "p@ss") {
		t.Error("URL для меток не должен содержать пароль")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := parseLogLevel(tt.input)
		if err != nil {
			t.Errorf("parseLogLevel(%q): неожиданная ошибка %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, ожидалось %v", tt.input, got, tt.want)
		}
	}
}
