package api

import (
	"log"
	"net/http"

	"filegate/internal/config"
	fgmiddleware "filegate/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter 构建 HTTP 路由，集中注册所有对外服务的端点。
func NewRouter(cfg *config.Config, handler *StorageHandler, logger *log.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(fgmiddleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(fgmiddleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
	r.Use(fgmiddleware.Metrics())

	// 健康检查不需要鉴权
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheus 指标端点
	r.Handle("/metrics", promhttp.Handler())

	if handler != nil {
		switch cfg.AuthMode {
		case config.AuthModeAPIKey:
			r.Group(func(r chi.Router) {
				r.Use(fgmiddleware.APIKeyAuth(cfg.APIKeys))
				handler.RegisterRoutes(r)
			})
		case config.AuthModeJWT:
			r.Group(func(r chi.Router) {
				r.Use(fgmiddleware.JWTAuth(cfg.JWTSecret, cfg.JWKSURL, logger))
				handler.RegisterRoutes(r)
			})
		default:
			// 无需鉴权（开发模式），调用方身份为空串
			handler.RegisterRoutes(r)
		}
	}

	return r
}
