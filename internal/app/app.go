package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/setlister/internal/auth"
	"github.com/hitoshi/setlister/internal/config"
	"github.com/hitoshi/setlister/internal/database"
	"github.com/hitoshi/setlister/internal/handler"
	"github.com/hitoshi/setlister/internal/logger"
	"github.com/hitoshi/setlister/internal/metrics"
	"github.com/hitoshi/setlister/internal/middleware"
	"github.com/hitoshi/setlister/internal/playlist"
	"github.com/hitoshi/setlister/internal/repository"
	"github.com/hitoshi/setlister/internal/security"
	"github.com/hitoshi/setlister/internal/setlistfm"
	"github.com/hitoshi/setlister/internal/share"
	"github.com/hitoshi/setlister/internal/spotify"
	"github.com/hitoshi/setlister/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 設定を読み込み、LOG_LEVEL と LOG_FORMAT に従って構造化ログをセットアップする。
// configPath が空でない場合はTOMLファイルを読み込み、環境変数で上書きする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer, configPath string) (*config.Config, error) {
	// 設定読み込みのエラーを出力できるよう、先にデフォルト設定でログを初期化する
	logger.SetupDefault(w, logger.Options{})

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	return NewCommand(w).Run(context.Background(), append([]string{serviceName}, args...))
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// buildHandler は全依存関係をワイヤリングしたHTTPハンドラーを構築する。
// 返却する関数はバックグラウンド処理を停止する。
func buildHandler(cfg *config.Config, db *sql.DB) (http.Handler, func()) {
	log := slog.Default()

	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mc := metrics.NewCollector(registry)

	// 2. リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	playlistRepo := repository.NewPostgresPlaylistRepo(db)

	// 3. 外部APIクライアント
	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}
	spotifyClient := spotify.NewClient(httpClient, log, mc)
	setlistClient := setlistfm.NewClient(httpClient, log, mc, cfg.SetlistFMAPIKey)

	// 4. 認証
	oauthProvider := auth.NewSpotifyOAuthProvider(auth.SpotifyOAuthConfig{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
		RedirectURL:  cfg.SpotifyRedirectURL,
	}, spotifyClient, httpClient)
	authService := auth.NewService(oauthProvider, userRepo, sessionRepo, auth.ServiceConfig{
		SessionMaxAge:      cfg.SessionMaxAge,
		TokenRefreshMargin: cfg.TokenRefreshMargin,
	})

	// 5. プレイリスト作成と共有
	resolver := playlist.NewResolver(spotifyClient, log, 0)
	assembler := playlist.NewAssembler(spotifyClient, resolver, playlistRepo, mc, log)
	shareService := share.NewService(
		playlistRepo, userRepo, authService, spotifyClient,
		security.NewContentSanitizer(), mc, log, cfg.BaseURL,
	)

	// 6. ルーター
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitPlaylistCreate),
	)

	deps := &handler.RouterDeps{
		Authenticator:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,
		Logger:      log,
		Metrics:     mc,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		SetlistSearcher: setlistClient,
		SetlistGetter:   setlistClient,

		Assembler:      assembler,
		PlaylistLister: playlistRepo,
		Sharer:         shareService,

		SharedResolver: shareService,
	}

	return handler.NewRouter(deps), rateLimiter.Stop
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	router, stopBackground := buildHandler(cfg, db)
	defer stopBackground()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.ProviderTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除ジョブを SESSION_CLEANUP_INTERVAL ごとに実行する。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	job := cleanup.NewCleanupJob(repository.NewPostgresSessionRepo(db), slog.Default())
	job.Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
