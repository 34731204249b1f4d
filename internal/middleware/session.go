// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/setlister/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var userContextKey = contextKey("user")

// UserAuthenticator はセッションIDから認証済みユーザーを解決するインターフェース。
// auth.Service が実装する。
type UserAuthenticator interface {
	Authenticate(ctx context.Context, sessionID string) (*model.User, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 認証済みユーザーをリクエストコンテキストに注入するミドルウェアを返す。
// セッションがない場合は外部APIを呼び出さずに401を返す。
// アクセストークンの更新が通信エラーで失敗した場合は502を返す。
func NewSessionMiddleware(authenticator UserAuthenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			user, err := authenticator.Authenticate(r.Context(), cookie.Value)
			switch {
			case err == nil:
			case errors.Is(err, model.ErrUnauthenticated):
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			case errors.Is(err, model.ErrUpstream):
				slog.Warn("session token refresh unavailable", slog.String("error", err.Error()))
				WriteErrorResponse(w, http.StatusBadGateway, model.NewUpstreamError("Spotify"))
				return
			default:
				slog.Error("failed to authenticate session", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}

			if info := requestInfoFromContext(r.Context()); info != nil {
				info.userID = user.ID
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok && user != nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user, ok := UserFromContext(ctx)
	if !ok || user.ID == "" {
		return "", fmt.Errorf("user not found in context")
	}
	return user.ID, nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
