// Package model はドメインモデルを定義する。
package model

import "time"

// Playlist はSpotify上に作成したプレイリストのローカル記録を表す。
// IsPublic が true の場合 ShareID は必ず設定されている。
type Playlist struct {
	ID                 int64
	OwnerID            string
	ProviderPlaylistID string
	SourceSetlistKey   string
	CreatedAt          time.Time
	ShareID            *string
	IsPublic           bool
	ShareCount         int
}

// ResolvedTrack は曲名検索クエリの解決結果を表す。
// URI が空文字の場合は一致する楽曲が見つからなかったことを示す。
type ResolvedTrack struct {
	Query string
	URI   string
}

// Matched は楽曲が解決されたかを返す。
func (t ResolvedTrack) Matched() bool {
	return t.URI != ""
}

// PublicTrack は共有ビューに表示する楽曲を表す。
type PublicTrack struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
	URI    string `json:"uri"`
}

// PublicPlaylistView は共有URLから閲覧できるプレイリスト情報を表す。
type PublicPlaylistView struct {
	ShareID     string        `json:"shareId"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	ExternalURL string        `json:"externalUrl,omitempty"`
	ShareCount  int           `json:"shareCount"`
	Tracks      []PublicTrack `json:"tracks"`
}
