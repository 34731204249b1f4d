package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/hitoshi/setlister/internal/model"
	"github.com/hitoshi/setlister/internal/spotify"
)

const (
	defaultSpotifyAuthURL  = "https://accounts.spotify.com/authorize"
	defaultSpotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// spotifyScopes はプレイリスト作成とプロフィール取得に必要なスコープ。
var spotifyScopes = []string{
	"user-read-private",
	"playlist-modify-public",
	"playlist-modify-private",
}

// ProfileFetcher は認可ユーザーのプロフィールを取得するインターフェース。
type ProfileFetcher interface {
	CurrentUser(ctx context.Context, accessToken string) (*spotify.Profile, error)
}

// SpotifyOAuthConfig はSpotify OAuthプロバイダーの設定。
type SpotifyOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
}

// SpotifyOAuthProvider はSpotifyのAuthorization Code Flowによる認証を提供する。
type SpotifyOAuthProvider struct {
	config     *oauth2.Config
	profiles   ProfileFetcher
	httpClient *http.Client
}

// NewSpotifyOAuthProvider はSpotifyOAuthProviderを生成する。
// httpClientはトークンエンドポイントへの通信に使用する。
func NewSpotifyOAuthProvider(cfg SpotifyOAuthConfig, profiles ProfileFetcher, httpClient *http.Client) *SpotifyOAuthProvider {
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultSpotifyAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultSpotifyTokenURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SpotifyOAuthProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       spotifyScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		profiles:   profiles,
		httpClient: httpClient,
	}
}

// GetLoginURL はSpotifyの認可URLを生成する。
func (p *SpotifyOAuthProvider) GetLoginURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
func (p *SpotifyOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	token, err := p.config.Exchange(p.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	profile, err := p.profiles.CurrentUser(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user profile: %w", err)
	}

	return &OAuthUserInfo{
		ProviderUserID: profile.ID,
		DisplayName:    profile.DisplayName,
		Tokens:         tokenSetFrom(token),
	}, nil
}

// RefreshToken はリフレッシュトークンで新しいアクセストークンを取得する。
// トークンエンドポイントが拒否した場合は model.ErrUnauthenticated、
// それ以外の失敗は model.ErrUpstream をラップして返す。
func (p *SpotifyOAuthProvider) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("no refresh token: %w", model.ErrUnauthenticated)
	}

	expired := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}
	token, err := p.config.TokenSource(p.clientContext(ctx), expired).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < 500 {
			return nil, fmt.Errorf("refresh rejected: %v: %w", err, model.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("refresh failed: %v: %w", err, model.ErrUpstream)
	}

	return tokenSetFrom(token), nil
}

// clientContext はoauth2パッケージが使用するHTTPクライアントをコンテキストに設定する。
func (p *SpotifyOAuthProvider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// defaultTokenLifetime はexpires_inが返されなかった場合のトークン有効期間。
const defaultTokenLifetime = time.Hour

func tokenSetFrom(t *oauth2.Token) *TokenSet {
	expiry := t.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(defaultTokenLifetime)
	}
	return &TokenSet{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       expiry,
	}
}

// compile-time interface check
var _ OAuthProvider = (*SpotifyOAuthProvider)(nil)
