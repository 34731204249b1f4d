// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// エラー種別。サービス層はこれらをラップして返し、ハンドラ層は errors.Is で判定する。
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUpstream        = errors.New("upstream failure")
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, playlist, share, system
	Action   string // ユーザー向け対処方法
	Err      error  // 対応するエラー種別（nil可）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap はエラー種別を返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodePlaylistNotFound   = "PLAYLIST_NOT_FOUND"
	ErrCodeSharedNotFound     = "SHARED_PLAYLIST_NOT_FOUND"
	ErrCodeShareConflict      = "SHARE_CONFLICT"
	ErrCodeUpstreamFailed     = "UPSTREAM_FAILED"
	ErrCodeInvalidSetlist     = "INVALID_SETLIST"
	ErrCodeInvalidArtistName  = "INVALID_ARTIST_NAME"
	ErrCodeInvalidPlaylistID  = "INVALID_PLAYLIST_ID"
	ErrCodeSetlistSearchError = "SETLIST_SEARCH_FAILED"
)

// NewUnauthenticatedError は未ログインエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "Spotifyでログインしてください。",
		Err:      ErrUnauthenticated,
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
		Err:      ErrNotFound,
	}
}

// NewPlaylistNotFoundError はプレイリスト未検出エラーを生成する。
// 他人のプレイリストも存在しないものとして扱う。
func NewPlaylistNotFoundError(playlistID int64) *APIError {
	return &APIError{
		Code:     ErrCodePlaylistNotFound,
		Message:  fmt.Sprintf("指定されたプレイリストが見つかりません: %d", playlistID),
		Category: "playlist",
		Action:   "プレイリストIDを確認してください。",
		Err:      ErrNotFound,
	}
}

// NewSharedPlaylistNotFoundError は共有プレイリスト未検出エラーを生成する。
// 非公開と存在しないケースは区別しない。
func NewSharedPlaylistNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeSharedNotFound,
		Message:  "共有プレイリストが見つかりません。",
		Category: "share",
		Action:   "共有URLが正しいか確認してください。",
		Err:      ErrNotFound,
	}
}

// NewShareConflictError は共有IDの採番に失敗した場合のエラーを生成する。
func NewShareConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeShareConflict,
		Message:  "共有URLの発行に失敗しました。",
		Category: "share",
		Action:   "しばらく待ってから再度お試しください。",
		Err:      ErrConflict,
	}
}

// NewUpstreamError は外部サービス呼び出し失敗エラーを生成する。
func NewUpstreamError(service string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  fmt.Sprintf("%s との通信に失敗しました。", service),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
		Err:      ErrUpstream,
	}
}

// NewInvalidSetlistError はセットリスト入力が不正な場合のエラーを生成する。
func NewInvalidSetlistError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSetlist,
		Message:  fmt.Sprintf("セットリストが不正です: %s", reason),
		Category: "validation",
		Action:   "アーティスト名と会場名を含むセットリストを指定してください。",
	}
}

// NewInvalidArtistNameError はアーティスト名が未指定の場合のエラーを生成する。
func NewInvalidArtistNameError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidArtistName,
		Message:  "アーティスト名が指定されていません。",
		Category: "validation",
		Action:   "artistName パラメータを指定してください。",
	}
}

// NewInvalidPlaylistIDError はプレイリストIDの形式が不正な場合のエラーを生成する。
func NewInvalidPlaylistIDError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPlaylistID,
		Message:  fmt.Sprintf("無効なプレイリストIDです: %s", raw),
		Category: "validation",
		Action:   "数値のプレイリストIDを指定してください。",
	}
}

// NewSetlistSearchError はセットリスト検索失敗エラーを生成する。
func NewSetlistSearchError() *APIError {
	return &APIError{
		Code:     ErrCodeSetlistSearchError,
		Message:  "セットリストの検索に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
		Err:      ErrUpstream,
	}
}
