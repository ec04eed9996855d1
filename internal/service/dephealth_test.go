package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewDephealthService_NoDependencies(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	_, err := NewDephealthServiceWithRegisterer("quickshare", "quickshare", DephealthDeps{},
		time.Second, logger, prometheus.NewRegistry())
	if !errors.Is(err, ErrNoDependencies) {
		t.Fatalf("ожидалась ErrNoDependencies, получено %v", err)
	}
}

func TestDephealthService_ObjectStorage(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		healthy bool
	}{
		{"хранилище доступно", http.StatusOK, true},
		{"хранилище отвечает 500", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/minio/health/live" {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				w.WriteHeader(tt.status)
			}))
			defer mockServer.Close()

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

			ds, err := NewDephealthServiceWithRegisterer("quickshare", "quickshare",
				DephealthDeps{S3Endpoint: mockServer.URL},
				1*time.Second, logger, prometheus.NewRegistry())
			if err != nil {
				t.Fatalf("Ошибка создания DephealthService: %v", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			// Start не должен блокировать
			if err := ds.Start(ctx); err != nil {
				t.Fatalf("Ошибка запуска: %v", err)
			}

			// Даём время на первую проверку (интервал 1s + запас)
			time.Sleep(3 * time.Second)

			health := ds.Health()
			found := false
			for key, val := range health {
				if strings.HasPrefix(key, "object-storage:") {
					found = true
					if val != tt.healthy {
						t.Errorf("object-storage health = %v для ключа %q, ожидалось %v", val, key, tt.healthy)
					}
					break
				}
			}
			if !found {
				t.Errorf("Нет записи для object-storage в Health(), keys=%v", healthKeys(health))
			}

			ds.Stop()
		})
	}
}

// healthKeys возвращает ключи карты health для вывода в сообщениях об ошибках.
func healthKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
