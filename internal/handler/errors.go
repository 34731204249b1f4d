package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/setlister/internal/middleware"
	"github.com/hitoshi/setlister/internal/model"
)

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// APIErrorはコードで、それ以外はエラー種別で判定する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	switch {
	case errors.Is(err, model.ErrUnauthenticated):
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	case errors.Is(err, model.ErrUpstream):
		slog.Warn("upstream failure",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewUpstreamError("Spotify"))
		return
	case errors.Is(err, model.ErrConflict):
		writeAPIErrorResponse(w, http.StatusConflict, model.NewShareConflictError())
		return
	}

	slog.Error("internal server error",
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeUserNotFound, model.ErrCodePlaylistNotFound, model.ErrCodeSharedNotFound:
		return http.StatusNotFound
	case model.ErrCodeShareConflict:
		return http.StatusConflict
	case model.ErrCodeUpstreamFailed, model.ErrCodeSetlistSearchError:
		return http.StatusBadGateway
	case model.ErrCodeInvalidSetlist, model.ErrCodeInvalidArtistName, model.ErrCodeInvalidPlaylistID, errCodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

const errCodeInvalidRequest = "INVALID_REQUEST"

// newInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func newInvalidRequestError() *model.APIError {
	return &model.APIError{
		Code:     errCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}
