// auth.go — проверка доступа к /cleanup.
//
// Допускаются два вида учётных данных в заголовке Authorization: Bearer:
//   - общий секрет QS_CLEANUP_SECRET (сравнение за постоянное время);
//   - JWT (RS256), проверяемый по JWKS из QS_JWKS_URL, со scope transfers:cleanup.
//
// Если настроены оба, достаточно любого. Если не настроен ни один,
// маршрут открыт.
package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/quickshare/internal/api/errors"
)

// ScopeCleanup — scope, разрешающий запуск очистки.
const ScopeCleanup = "transfers:cleanup"

// jwksClientTimeout — таймаут HTTP-клиента JWKS.
const jwksClientTimeout = 10 * time.Second

// Claims — JWT claims для /cleanup.
// Поддерживает два формата scopes:
//   - стандартный OAuth2: "scope" (строка через пробел)
//   - кастомный: "scopes" (массив строк)
type Claims struct {
	jwt.RegisteredClaims
	ScopeString string   `json:"scope"`
	ScopeArray  []string `json:"scopes"`
}

// Scopes возвращает объединённый список scope'ов из обоих форматов.
func (c *Claims) Scopes() []string {
	var result []string
	if c.ScopeString != "" {
		result = append(result, strings.Fields(c.ScopeString)...)
	}
	result = append(result, c.ScopeArray...)
	return result
}

// HasScope проверяет наличие scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes() {
		if s == scope {
			return true
		}
	}
	return false
}

// CleanupAuthConfig — параметры проверки доступа к /cleanup.
type CleanupAuthConfig struct {
	// Общий секрет (пустой — не используется)
	Secret string
	// URL JWKS endpoint (пустой — JWT не принимаются)
	JWKSURL string
	// Интервал обновления JWKS-ключей
	RefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
}

// CleanupAuth — middleware доступа к /cleanup.
type CleanupAuth struct {
	secret    []byte
	jwks      keyfunc.Keyfunc
	jwtLeeway time.Duration
	logger    *slog.Logger
}

// NewCleanupAuth создаёт middleware. JWKS загружается в фоне:
// сервис стартует, даже если endpoint ещё недоступен.
func NewCleanupAuth(cfg CleanupAuthConfig, logger *slog.Logger) (*CleanupAuth, error) {
	a := &CleanupAuth{
		secret:    []byte(cfg.Secret),
		jwtLeeway: cfg.JWTLeeway,
		logger:    logger.With(slog.String("component", "cleanup_auth")),
	}
	if cfg.JWKSURL == "" {
		return a, nil
	}

	storage, err := jwkset.NewStorageFromHTTP(cfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: jwksClientTimeout},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           cfg.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", cfg.JWKSURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}
	a.jwks = k
	return a, nil
}

// NewCleanupAuthWithKeyfunc создаёт middleware с готовой keyfunc.
// Используется в тестах для подстановки JWKS.
func NewCleanupAuthWithKeyfunc(secret string, kf keyfunc.Keyfunc, jwtLeeway time.Duration, logger *slog.Logger) *CleanupAuth {
	return &CleanupAuth{
		secret:    []byte(secret),
		jwks:      kf,
		jwtLeeway: jwtLeeway,
		logger:    logger.With(slog.String("component", "cleanup_auth")),
	}
}

// Enabled сообщает, настроена ли проверка доступа.
func (a *CleanupAuth) Enabled() bool {
	return a != nil && (len(a.secret) > 0 || a.jwks != nil)
}

// Middleware возвращает HTTP middleware проверки доступа.
func (a *CleanupAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !a.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Unauthorized")
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				apierrors.Unauthorized(w, "Unauthorized")
				return
			}

			if len(a.secret) > 0 && subtle.ConstantTimeCompare(a.secret, []byte(token)) == 1 {
				next.ServeHTTP(w, r)
				return
			}

			if a.jwks == nil {
				a.logger.Warn("Неверный секрет очистки", slog.String("remote_addr", r.RemoteAddr))
				apierrors.Unauthorized(w, "Unauthorized")
				return
			}

			claims := &Claims{}
			parsed, err := jwt.ParseWithClaims(token, claims, a.jwks.KeyfuncCtx(r.Context()),
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(a.jwtLeeway),
			)
			if err != nil || !parsed.Valid {
				a.logger.Debug("JWT валидация не пройдена",
					slog.Any("error", err),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Unauthorized")
				return
			}

			if !claims.HasScope(ScopeCleanup) {
				subject, _ := claims.GetSubject()
				a.logger.Warn("Недостаточно прав для очистки",
					slog.String("sub", subject),
					slog.String("required_scope", ScopeCleanup),
				)
				apierrors.Forbidden(w, "Missing scope "+ScopeCleanup)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
