// Package spotify はSpotify Web APIとOAuth認可フローのクライアントを提供する。
package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/setlister/internal/metrics"
	"github.com/hitoshi/setlister/internal/tracing"
)

const (
	// defaultBaseURL はSpotify Web APIのベースURL。
	defaultBaseURL = "https://api.spotify.com/v1"
	// maxURIsPerRequest はプレイリストへの楽曲追加1リクエストあたりの最大URI数。
	maxURIsPerRequest = 100
	// serviceName はメトリクスとエラーメッセージに使用するサービス名。
	serviceName = "spotify"
)

// StatusError はSpotify APIが2xx以外のステータスを返したことを表す。
type StatusError struct {
	Operation  string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("spotify %s: status %d", e.Operation, e.StatusCode)
}

// IsNotFound はerrがSpotify APIの404応答かを判定する。
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Profile は認可ユーザーのプロフィール。
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Playlist はプレイリスト詳細。
type Playlist struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Public       bool              `json:"public"`
	ExternalURLs map[string]string `json:"external_urls"`
	Tracks       PlaylistTracks    `json:"tracks"`
}

// PlaylistTracks はプレイリストの楽曲一覧。
type PlaylistTracks struct {
	Items []PlaylistItem `json:"items"`
}

// PlaylistItem はプレイリストの1項目。削除済みの楽曲ではTrackがnilになる。
type PlaylistItem struct {
	Track *Track `json:"track"`
}

// Track は楽曲情報。
type Track struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	URI     string   `json:"uri"`
	Artists []Artist `json:"artists"`
}

// Artist はアーティスト情報。
type Artist struct {
	Name string `json:"name"`
}

// Client はSpotify Web APIのクライアント。
// アクセストークンはユーザーごとに異なるため、各メソッドの引数で受け取る。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	baseURL    string // テスト用に差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, mc metrics.MetricsCollector) *Client {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    mc,
		baseURL:    defaultBaseURL,
	}
}

// CurrentUser は認可ユーザーのプロフィールを取得する。
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, "me", accessToken, http.MethodGet, "/me", nil, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, fmt.Errorf("spotify me: empty user id")
	}
	return &p, nil
}

// CreatePlaylist はユーザーのアカウントにプレイリストを作成し、そのIDを返す。
func (c *Client) CreatePlaylist(ctx context.Context, accessToken, userID, name, description string, public bool) (string, error) {
	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      public,
	}
	var created struct {
		ID string `json:"id"`
	}
	path := "/users/" + url.PathEscape(userID) + "/playlists"
	if err := c.do(ctx, "create_playlist", accessToken, http.MethodPost, path, body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("spotify create_playlist: empty playlist id")
	}
	return created.ID, nil
}

// SearchTrack はクエリに最初に一致した楽曲のURIを返す。
// 一致する楽曲がない場合は空文字を返す。
func (c *Client) SearchTrack(ctx context.Context, accessToken, query string) (string, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("type", "track")
	q.Set("limit", "1")

	var result struct {
		Tracks struct {
			Items []Track `json:"items"`
		} `json:"tracks"`
	}
	if err := c.do(ctx, "search", accessToken, http.MethodGet, "/search?"+q.Encode(), nil, &result); err != nil {
		return "", err
	}
	if len(result.Tracks.Items) == 0 {
		return "", nil
	}
	return result.Tracks.Items[0].URI, nil
}

// AddTracks はプレイリストに楽曲を順番通りに追加する。
// APIの上限を超える場合は複数リクエストに分割する。
func (c *Client) AddTracks(ctx context.Context, accessToken, playlistID string, uris []string) error {
	path := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	for start := 0; start < len(uris); start += maxURIsPerRequest {
		end := min(start+maxURIsPerRequest, len(uris))
		body := map[string]any{"uris": uris[start:end]}
		if err := c.do(ctx, "add_tracks", accessToken, http.MethodPost, path, body, nil); err != nil {
			return err
		}
	}
	return nil
}

// GetPlaylist はプレイリスト詳細を取得する。
// プレイリストが存在しない場合は IsNotFound で判定できるエラーを返す。
func (c *Client) GetPlaylist(ctx context.Context, accessToken, playlistID string) (*Playlist, error) {
	var p Playlist
	path := "/playlists/" + url.PathEscape(playlistID)
	if err := c.do(ctx, "get_playlist", accessToken, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// do は認可付きリクエストを送信し、レスポンスJSONをresultにデコードする。
func (c *Client) do(ctx context.Context, operation, accessToken, method, path string, body, result any) (err error) {
	ctx, span := tracing.StartUpstreamSpan(ctx, serviceName, operation)
	statusCode := 0
	defer func() { tracing.EndUpstreamSpan(span, statusCode, err) }()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamCall(serviceName, operation, 0, time.Since(start))
		c.logger.Error("Spotify APIの呼び出しに失敗しました",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("spotify %s: %w", operation, err)
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode
	c.metrics.RecordUpstreamCall(serviceName, operation, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Spotify APIがエラーステータスを返しました",
			slog.String("operation", operation),
			slog.Int("http_status", resp.StatusCode),
		)
		io.Copy(io.Discard, resp.Body)
		return &StatusError{Operation: operation, StatusCode: resp.StatusCode}
	}

	if result == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("spotify %s: レスポンスJSONのパースに失敗しました: %w", operation, err)
	}
	return nil
}
