// Package auth はSpotify OAuth認証フロー、セッション管理、トークン更新を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/setlister/internal/model"
	"github.com/hitoshi/setlister/internal/repository"
)

// TokenSet はOAuthトークンとその有効期限を表す。
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	DisplayName    string
	Tokens         *TokenSet
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
	// RefreshToken はリフレッシュトークンで新しいトークンを取得する。
	RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge      int           // セッション有効期間（秒）
	TokenRefreshMargin time.Duration // 失効までの残り時間がこれ以下ならトークンを更新する
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
		now:         time.Now,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// SpotifyユーザーIDで既存ユーザーを特定し、未登録の場合は作成する。
// 既存ユーザーの場合はトークンを更新する。
// 認可コードの交換に失敗した場合は model.ErrUpstream を返す。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %v: %w", err, model.ErrUpstream)
	}

	user, err := s.userRepo.Upsert(ctx, &model.User{
		ExternalID:     userInfo.ProviderUserID,
		DisplayName:    userInfo.DisplayName,
		AccessToken:    userInfo.Tokens.AccessToken,
		RefreshToken:   userInfo.Tokens.RefreshToken,
		TokenExpiresAt: userInfo.Tokens.Expiry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("spotify_id", user.ExternalID),
	)

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。トークンの更新は行わない。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required: %w", model.ErrUnauthenticated)
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired: %w", model.ErrUnauthenticated)
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found: %w", model.ErrUnauthenticated)
	}

	return user, nil
}

// Authenticate はセッションIDからユーザーを特定し、必要に応じてアクセストークンを更新する。
// セッションが存在しない場合は外部APIを呼び出す前に model.ErrUnauthenticated を返す。
func (s *Service) Authenticate(ctx context.Context, sessionID string) (*model.User, error) {
	user, err := s.GetCurrentUser(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureFreshToken(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// AccessTokenFor は指定ユーザーの有効なアクセストークンを返す。
// 共有ビューの閲覧時に所有者のトークンで外部APIを呼び出すために使用する。
// 更新に失敗した場合は model.ErrUpstream を返す。
func (s *Service) AccessTokenFor(ctx context.Context, user *model.User) (string, error) {
	if err := s.ensureFreshToken(ctx, user); err != nil {
		return "", fmt.Errorf("owner token unavailable: %v: %w", err, model.ErrUpstream)
	}
	return user.AccessToken, nil
}

// ensureFreshToken はトークンが失効間近の場合に更新し、永続化する。
// userのトークン情報は更新後の値で上書きされる。
func (s *Service) ensureFreshToken(ctx context.Context, user *model.User) error {
	if !user.TokenExpiresWithin(s.now(), s.config.TokenRefreshMargin) {
		return nil
	}

	tokens, err := s.oauth.RefreshToken(ctx, user.RefreshToken)
	if err != nil {
		slog.Warn("token refresh failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	if err := s.userRepo.UpdateTokens(ctx, user.ID, tokens.AccessToken, tokens.RefreshToken, tokens.Expiry); err != nil {
		return fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	user.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		user.RefreshToken = tokens.RefreshToken
	}
	user.TokenExpiresAt = tokens.Expiry

	slog.Debug("access token refreshed", slog.String("user_id", user.ID))
	return nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
