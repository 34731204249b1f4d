package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Spotify OAuth
	SpotifyClientID     string `env:"SPOTIFY_CLIENT_ID,required"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET,required"`
	SpotifyRedirectURL  string `env:"SPOTIFY_REDIRECT_URL,required"`

	// setlist.fm
	SetlistFMAPIKey string `env:"SETLISTFM_API_KEY,required"`

	// Session
	SessionMaxAge          int           `env:"SESSION_MAX_AGE" envDefault:"86400"`
	TokenRefreshMargin     time.Duration `env:"TOKEN_REFRESH_MARGIN" envDefault:"60s"`
	SessionCleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"24h"`

	// Provider
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`

	// Rate Limit（リクエスト数/分）
	RateLimitGeneral        int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitPlaylistCreate int `env:"RATE_LIMIT_PLAYLIST_CREATE" envDefault:"10"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL,required"`

	// Cookie（CookieSecure は BASE_URL のスキームから決まる）
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Tracing（未設定の場合はトレースを送信しない）
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load は環境変数からConfigを読み込む。
// path にTOMLファイルが指定されている場合、環境変数が未設定の項目をファイルの値で補う。
// 必須項目が未設定、または値の形式が不正な場合はエラーを返す。
func Load(path string) (*Config, error) {
	var fileValues map[string]string
	if path != "" {
		v, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		fileValues = v
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: mergeEnvironment(fileValues, os.Environ())}); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	return cfg, nil
}

// mergeEnvironment は設定ファイルの値に環境変数を上書きした変数表を返す。
// 空文字の値は未設定として扱い、デフォルト値を適用させる。
func mergeEnvironment(fileValues map[string]string, environ []string) map[string]string {
	merged := make(map[string]string, len(fileValues)+len(environ))
	for k, v := range fileValues {
		if v != "" {
			merged[k] = v
		}
	}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok && v != "" {
			merged[k] = v
		}
	}
	return merged
}
