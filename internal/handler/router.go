package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/viewtracker/internal/metrics"
	"github.com/hitoshi/viewtracker/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// トラッキング
	Tracking TrackingManagerInterface

	// プロバイダ（単発取得）
	Provider ProviderServiceInterface

	// URL安全性検証
	Validator URLValidator

	// ヘルス監視
	Health HealthMonitorInterface

	// Prometheusメトリクス
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → Recovery → RateLimit(General)
//
// /api/healthと/metricsはレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())

	trackingHandler := NewTrackingHandler(deps.Tracking, deps.Validator)
	videoHandler := NewVideoHandler(deps.Provider, deps.Validator)
	healthHandler := NewHealthHandler(deps.Health)

	// --- レート制限の外のルート ---

	r.Get("/api/health", healthHandler.GetHealth)

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- レート制限が効くルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// トラッキングセッション管理
		r.Route("/api/track_video", func(r chi.Router) {
			// POST /api/track_video - トラッキング開始（登録専用レート制限を追加）
			r.With(deps.RateLimiter.TrackingRegistrationMiddleware()).Post("/", trackingHandler.StartTracking)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", trackingHandler.GetSnapshot)
				r.Delete("/", trackingHandler.StopTracking)

				// GET /api/track_video/{id}/history - スナップショット履歴
				r.Get("/history", trackingHandler.GetHistory)
			})
		})

		// セッション一覧
		r.Get("/api/sessions", trackingHandler.ListSessions)

		// 単発取得
		r.Post("/api/get_video_info", videoHandler.GetVideoInfo)
		r.Post("/api/search_user", videoHandler.SearchUser)
		r.Post("/api/get_user_videos", videoHandler.GetUserVideos)
	})

	return r
}
