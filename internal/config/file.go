package config

import (
	"fmt"
	"strconv"

	"github.com/BurntSushi/toml"
)

// fileConfig はTOML設定ファイルの構造。
// 各項目は同名の環境変数に対応し、環境変数が未設定の場合のみ使用される。
type fileConfig struct {
	Database struct {
		URL string `toml:"url"`
	} `toml:"database"`

	Spotify struct {
		ClientID     string `toml:"client_id"`
		ClientSecret string `toml:"client_secret"`
		RedirectURL  string `toml:"redirect_url"`
	} `toml:"spotify"`

	SetlistFM struct {
		APIKey string `toml:"api_key"`
	} `toml:"setlistfm"`

	Server struct {
		Port              string `toml:"port"`
		BaseURL           string `toml:"base_url"`
		CookieDomain      string `toml:"cookie_domain"`
		CORSAllowedOrigin string `toml:"cors_allowed_origin"`
	} `toml:"server"`

	Session struct {
		MaxAge             int    `toml:"max_age"`
		TokenRefreshMargin string `toml:"token_refresh_margin"`
		CleanupInterval    string `toml:"cleanup_interval"`
	} `toml:"session"`

	Provider struct {
		Timeout string `toml:"timeout"`
	} `toml:"provider"`

	RateLimit struct {
		General        int `toml:"general"`
		PlaylistCreate int `toml:"playlist_create"`
	} `toml:"rate_limit"`

	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`

	Telemetry struct {
		OTLPEndpoint string `toml:"otlp_endpoint"`
	} `toml:"telemetry"`
}

// loadFile はTOML設定ファイルを読み込み、環境変数名をキーとする値に変換する。
func loadFile(path string) (map[string]string, error) {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys in config file %s: %v", path, undecoded)
	}
	return fc.values(), nil
}

func (fc *fileConfig) values() map[string]string {
	v := map[string]string{
		"DATABASE_URL":             fc.Database.URL,
		"SPOTIFY_CLIENT_ID":        fc.Spotify.ClientID,
		"SPOTIFY_CLIENT_SECRET":    fc.Spotify.ClientSecret,
		"SPOTIFY_REDIRECT_URL":     fc.Spotify.RedirectURL,
		"SETLISTFM_API_KEY":        fc.SetlistFM.APIKey,
		"SERVER_PORT":              fc.Server.Port,
		"BASE_URL":                 fc.Server.BaseURL,
		"COOKIE_DOMAIN":            fc.Server.CookieDomain,
		"CORS_ALLOWED_ORIGIN":      fc.Server.CORSAllowedOrigin,
		"TOKEN_REFRESH_MARGIN":     fc.Session.TokenRefreshMargin,
		"SESSION_CLEANUP_INTERVAL": fc.Session.CleanupInterval,
		"PROVIDER_TIMEOUT":         fc.Provider.Timeout,
		"LOG_LEVEL":                fc.Log.Level,
		"LOG_FORMAT":               fc.Log.Format,

		"OTEL_EXPORTER_OTLP_ENDPOINT": fc.Telemetry.OTLPEndpoint,
	}
	setInt := func(key string, n int) {
		if n != 0 {
			v[key] = strconv.Itoa(n)
		}
	}
	setInt("SESSION_MAX_AGE", fc.Session.MaxAge)
	setInt("RATE_LIMIT_GENERAL", fc.RateLimit.General)
	setInt("RATE_LIMIT_PLAYLIST_CREATE", fc.RateLimit.PlaylistCreate)
	return v
}
