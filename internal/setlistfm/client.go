// Package setlistfm はsetlist.fm APIからセットリストを取得するクライアントを提供する。
package setlistfm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/setlister/internal/metrics"
	"github.com/hitoshi/setlister/internal/model"
	"github.com/hitoshi/setlister/internal/tracing"
)

const (
	// defaultBaseURL はsetlist.fm REST APIのベースURL。
	defaultBaseURL = "https://api.setlist.fm/rest/1.0"
	serviceName    = "setlistfm"
)

// apiSetlist はsetlist.fm APIのセットリスト表現。
type apiSetlist struct {
	ID        string `json:"id"`
	EventDate string `json:"eventDate"`
	Artist    struct {
		Name string `json:"name"`
	} `json:"artist"`
	Venue struct {
		Name string `json:"name"`
		City struct {
			Name    string `json:"name"`
			Country struct {
				Name string `json:"name"`
			} `json:"country"`
		} `json:"city"`
	} `json:"venue"`
	Sets struct {
		Set []struct {
			Song []struct {
				Name string `json:"name"`
			} `json:"song"`
		} `json:"set"`
	} `json:"sets"`
}

// toModel は全セットの曲を演奏順に平坦化してモデルに変換する。
// 曲名が空の項目（テープ等）は除外する。
func (s apiSetlist) toModel() model.Setlist {
	out := model.Setlist{
		ID:          s.ID,
		ArtistName:  s.Artist.Name,
		VenueName:   s.Venue.Name,
		CityName:    s.Venue.City.Name,
		CountryName: s.Venue.City.Country.Name,
		EventDate:   s.EventDate,
		Songs:       []string{},
	}
	for _, set := range s.Sets.Set {
		for _, song := range set.Song {
			if song.Name != "" {
				out.Songs = append(out.Songs, song.Name)
			}
		}
	}
	return out
}

// SearchResult はセットリスト検索結果の1ページを表す。
type SearchResult struct {
	Setlists     []model.Setlist `json:"setlists"`
	Page         int             `json:"page"`
	ItemsPerPage int             `json:"itemsPerPage"`
	Total        int             `json:"total"`
}

// Client はsetlist.fm APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	apiKey     string
	baseURL    string // テスト用に差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, mc metrics.MetricsCollector, apiKey string) *Client {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    mc,
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
	}
}

// SearchSetlists はアーティスト名でセットリストを検索する。
// pageは1始まり。該当なしの場合は空の結果を返す。
func (c *Client) SearchSetlists(ctx context.Context, artistName string, page int) (*SearchResult, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("artistName", artistName)
	q.Set("p", strconv.Itoa(page))

	var body struct {
		Setlist      []apiSetlist `json:"setlist"`
		Page         int          `json:"page"`
		ItemsPerPage int          `json:"itemsPerPage"`
		Total        int          `json:"total"`
	}
	found, err := c.get(ctx, "search", "/search/setlists?"+q.Encode(), &body)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{Setlists: []model.Setlist{}, Page: page}
	if !found {
		return result, nil
	}
	result.Page = body.Page
	result.ItemsPerPage = body.ItemsPerPage
	result.Total = body.Total
	for _, s := range body.Setlist {
		result.Setlists = append(result.Setlists, s.toModel())
	}
	return result, nil
}

// GetSetlist はIDを指定してセットリストを取得する。見つからない場合はnilを返す。
func (c *Client) GetSetlist(ctx context.Context, setlistID string) (*model.Setlist, error) {
	var body apiSetlist
	found, err := c.get(ctx, "get_setlist", "/setlist/"+url.PathEscape(setlistID), &body)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	s := body.toModel()
	return &s, nil
}

// get はGETリクエストを送信しレスポンスをresultにデコードする。
// 404の場合はfound=falseを返す。
func (c *Client) get(ctx context.Context, operation, path string, result any) (found bool, err error) {
	ctx, span := tracing.StartUpstreamSpan(ctx, serviceName, operation)
	statusCode := 0
	defer func() { tracing.EndUpstreamSpan(span, statusCode, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamCall(serviceName, operation, 0, time.Since(start))
		c.logger.Error("setlist.fm APIの呼び出しに失敗しました",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		return false, fmt.Errorf("setlist.fm %s: %w", operation, err)
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode
	c.metrics.RecordUpstreamCall(serviceName, operation, resp.StatusCode, time.Since(start))

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("setlist.fm APIがエラーステータスを返しました",
			slog.String("operation", operation),
			slog.Int("http_status", resp.StatusCode),
		)
		return false, fmt.Errorf("setlist.fm %s: status %d", operation, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return false, fmt.Errorf("setlist.fm %s: レスポンスJSONのパースに失敗しました: %w", operation, err)
	}
	return true, nil
}
