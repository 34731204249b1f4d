// Package playlist はセットリストからSpotifyプレイリストを組み立てるドメインロジックを提供する。
package playlist

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/setlister/internal/model"
)

// TrackCatalog は楽曲検索のインターフェース。
// 一致する楽曲がない場合は空文字を返す。
type TrackCatalog interface {
	SearchTrack(ctx context.Context, accessToken, query string) (string, error)
}

// Resolver は曲名検索クエリを楽曲URIに並行して解決する。
type Resolver struct {
	catalog        TrackCatalog
	logger         *slog.Logger
	maxConcurrency int
}

// NewResolver はResolverを生成する。
// maxConcurrencyが0以下の場合はクエリ数だけ同時に検索する。
func NewResolver(catalog TrackCatalog, logger *slog.Logger, maxConcurrency int) *Resolver {
	return &Resolver{
		catalog:        catalog,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Resolve は各クエリを並行に検索し、入力と同じ順序・件数の結果を返す。
// 個々の検索失敗は未解決（URIが空）として扱い、バッチ全体は中断しない。
func (r *Resolver) Resolve(ctx context.Context, accessToken string, queries []string) []model.ResolvedTrack {
	results := make([]model.ResolvedTrack, len(queries))
	if len(queries) == 0 {
		return results
	}

	limit := r.maxConcurrency
	if limit <= 0 || limit > len(queries) {
		limit = len(queries)
	}

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, q := range queries {
		results[i].Query = q

		wg.Add(1)
		sem <- struct{}{}

		go func(i int, q string) {
			defer wg.Done()
			defer func() { <-sem }()

			uri, err := r.catalog.SearchTrack(ctx, accessToken, q)
			if err != nil {
				r.logger.Warn("track lookup failed",
					slog.String("query", q),
					slog.String("error", err.Error()),
				)
				return
			}
			// 各goroutineは自分のインデックスにのみ書き込む
			results[i].URI = uri
		}(i, q)
	}

	wg.Wait()
	return results
}
