// Package model はドメインモデルを定義する。
package model

import "time"

// User はSpotifyアカウントに紐づくサービス利用ユーザーを表す。
// ExternalID（SpotifyユーザーID）ごとに1件のみ存在する。
type User struct {
	ID             string
	ExternalID     string
	DisplayName    string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TokenExpiresWithin はアクセストークンが指定時間内に失効するかを返す。
func (u User) TokenExpiresWithin(now time.Time, margin time.Duration) bool {
	return !u.TokenExpiresAt.After(now.Add(margin))
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
