// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/setlister/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByExternalID はSpotifyユーザーIDでユーザーを検索する。見つからない場合はnilを返す。
	FindByExternalID(ctx context.Context, externalID string) (*model.User, error)

	// Upsert はSpotifyユーザーIDをキーにユーザーを作成、または既存ユーザーのトークンを更新する。
	// 戻り値は永続化後のユーザー。
	Upsert(ctx context.Context, user *model.User) (*model.User, error)

	// UpdateTokens はトークンとその有効期限を更新する。
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// PlaylistRepository はプレイリスト記録の永続化インターフェース。
type PlaylistRepository interface {
	// Insert はプレイリスト記録を作成する。共有IDは未設定、非公開、共有回数0で作成される。
	Insert(ctx context.Context, ownerID, providerPlaylistID, sourceSetlistKey string) (*model.Playlist, error)

	// FindByIDForOwner は所有者が一致するプレイリストを取得する。
	// 存在しない場合と所有者が異なる場合はどちらもnilを返す。
	FindByIDForOwner(ctx context.Context, id int64, ownerID string) (*model.Playlist, error)

	// FindByShareID は公開中のプレイリストを共有IDで取得する。
	// 存在しない場合と非公開の場合はどちらもnilを返す。
	FindByShareID(ctx context.Context, shareID string) (*model.Playlist, error)

	// ListByOwner は所有者のプレイリスト一覧を作成日時の降順で返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Playlist, error)

	// SetShare は共有IDが未設定の場合のみ設定し、公開状態にする。
	// 設定済みの場合は既存の共有IDを維持する。戻り値は有効な共有ID。
	// 共有IDが他の記録と衝突した場合は model.ErrConflict を返す。
	SetShare(ctx context.Context, id int64, shareID string) (string, error)

	// IncrementShareCount は共有回数を1増やし、更新後の値を返す。
	IncrementShareCount(ctx context.Context, id int64) (int, error)
}
