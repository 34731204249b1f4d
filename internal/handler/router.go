package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/setlister/internal/metrics"
	"github.com/hitoshi/setlister/internal/middleware"
)

// HealthChecker はヘルスチェックで疎通確認する依存のインターフェース。*sql.DB が実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.UserAuthenticator
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler // nilの場合 /metrics は公開しない

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// セットリスト
	SetlistSearcher SetlistSearcher
	SetlistGetter   SetlistGetter

	// プレイリスト
	Assembler      PlaylistAssemblerInterface
	PlaylistLister PlaylistLister
	Sharer         PlaylistSharer

	// 共有ビュー
	SharedResolver SharedPlaylistResolver
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// 全ルート共通のミドルウェア:
//
//	RealIP → RequestID → Tracing → Logging → Recovery → SecurityHeaders → CORS
//
// 認証が必要なルート: Session → RateLimit(General) → CSRF
// 認証不要の公開ルート: RateLimit(Public)
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewTracingMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	setlistHandler := NewSetlistHandler(deps.SetlistSearcher)
	playlistHandler := NewPlaylistHandler(deps.Assembler, deps.SetlistGetter, deps.PlaylistLister, deps.Sharer)
	sharedHandler := NewSharedHandler(deps.SharedResolver)
	csrf := middleware.NewCSRFMiddleware(deps.CSRFConfig)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証ルート（OAuthフロー） ---
	r.Route("/auth", func(r chi.Router) {
		r.Get("/spotify/login", authHandler.Login)
		r.Get("/spotify/callback", authHandler.Callback)
		r.With(csrf).Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// --- 認証不要の公開ルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.PublicMiddleware())

		r.Get("/api/setlists/search", setlistHandler.Search)
		r.Get("/api/shared/{shareId}", sharedHandler.GetJSON)
		r.Get("/shared/{shareId}", sharedHandler.GetPage)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Authenticator))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(csrf)

		r.Route("/api/playlists", func(r chi.Router) {
			r.Get("/", playlistHandler.List)
			r.With(deps.RateLimiter.PlaylistCreateMiddleware()).Post("/", playlistHandler.Create)
			r.Post("/{id}/share", playlistHandler.Share)
		})
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
