// health.go — обработчики health endpoints.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (хранилище записей и blob-ов доступны)
package handlers

import (
	"net/http"
	"time"

	"github.com/bigkaa/quickshare/internal/config"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status string, message string)
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	recordStore ReadinessChecker
	blobStore   ReadinessChecker
}

// NewHealthHandler создаёт обработчик health endpoints.
// blobStore может быть nil (внешнее хранилище не проверяется).
func NewHealthHandler(recordStore, blobStore ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		recordStore: recordStore,
		blobStore:   blobStore,
	}
}

type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		RecordStore healthCheckResult  `json:"record_store"`
		BlobStore   *healthCheckResult `json:"blob_store,omitempty"`
	} `json:"checks"`
}

// HealthLive — liveness probe. Возвращает 200, если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "quickshare",
	})
}

// HealthReady — readiness probe. Возвращает 200 (ok/degraded) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "quickshare",
	}

	if h.recordStore != nil {
		status, msg := h.recordStore.CheckReady()
		resp.Checks.RecordStore = healthCheckResult{Status: status, Message: msg}
	} else {
		resp.Checks.RecordStore = healthCheckResult{Status: statusFail, Message: "не инициализировано"}
	}
	statuses := []string{resp.Checks.RecordStore.Status}

	if h.blobStore != nil {
		status, msg := h.blobStore.CheckReady()
		resp.Checks.BlobStore = &healthCheckResult{Status: status, Message: msg}
		statuses = append(statuses, status)
	}

	resp.Status = overallStatus(statuses...)

	code := http.StatusOK
	if resp.Status == statusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// overallStatus определяет итоговый статус из статусов зависимостей.
// Если хотя бы одна зависимость fail — итог fail, если degraded — degraded.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == statusFail {
			return statusFail
		}
		if s == statusDegraded {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return statusDegraded
	}
	return statusOK
}
