// Package share はプレイリストの共有URL発行と、共有URLからの公開ビュー取得を提供する。
package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/setlister/internal/metrics"
	"github.com/hitoshi/setlister/internal/model"
	"github.com/hitoshi/setlister/internal/repository"
	"github.com/hitoshi/setlister/internal/security"
	"github.com/hitoshi/setlister/internal/spotify"
)

// OwnerTokenSource は所有者の有効なアクセストークンを取得するインターフェース。
type OwnerTokenSource interface {
	AccessTokenFor(ctx context.Context, user *model.User) (string, error)
}

// UserFinder はユーザー取得のインターフェース。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// PlaylistDetailFetcher は外部サービスからプレイリスト詳細を取得するインターフェース。
type PlaylistDetailFetcher interface {
	GetPlaylist(ctx context.Context, accessToken, playlistID string) (*spotify.Playlist, error)
}

// ShareResult は共有URL発行の結果。
type ShareResult struct {
	ShareURL   string `json:"shareUrl"`
	ShareID    string `json:"shareId"`
	ShareCount int    `json:"shareCount"`
}

// Service は共有のビジネスロジックを提供する。
type Service struct {
	repo      repository.PlaylistRepository
	users     UserFinder
	tokens    OwnerTokenSource
	detail    PlaylistDetailFetcher
	sanitizer security.ContentSanitizerService
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	baseURL   string
	issuer    *issuer
}

// NewService はServiceを生成する。baseURLは共有URLの生成に使用する。
func NewService(
	repo repository.PlaylistRepository,
	users UserFinder,
	tokens OwnerTokenSource,
	detail PlaylistDetailFetcher,
	sanitizer security.ContentSanitizerService,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
	baseURL string,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		repo:      repo,
		users:     users,
		tokens:    tokens,
		detail:    detail,
		sanitizer: sanitizer,
		metrics:   mc,
		logger:    logger,
		baseURL:   strings.TrimRight(baseURL, "/"),
		issuer:    newIssuer(repo),
	}
}

// ShareURL は共有IDから公開URLを生成する。
func (s *Service) ShareURL(shareID string) string {
	return s.baseURL + "/shared/" + shareID
}

// EnsureShared はプレイリストの共有URLを返す。
// 共有IDが未発行の場合は採番して公開状態にし、発行済みの場合は同じ共有IDを返す。
// 呼び出しのたびに共有回数を1増やす。
// 所有者以外からの呼び出しは存在しないプレイリストとして扱う。
func (s *Service) EnsureShared(ctx context.Context, playlistID int64, ownerID string) (*ShareResult, error) {
	p, err := s.repo.FindByIDForOwner(ctx, playlistID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find playlist: %w", err)
	}
	if p == nil {
		return nil, model.NewPlaylistNotFoundError(playlistID)
	}

	reused := p.ShareID != nil
	var shareID string
	if reused {
		shareID = *p.ShareID
	} else {
		id, state, err := s.issuer.issue(ctx, p.ID)
		if err != nil {
			s.logger.Error("share id issuance failed",
				slog.Int64("playlist_id", p.ID),
				slog.String("state", state.String()),
				slog.String("error", err.Error()),
			)
			if errors.Is(err, model.ErrConflict) {
				return nil, model.NewShareConflictError()
			}
			if errors.Is(err, model.ErrNotFound) {
				return nil, model.NewPlaylistNotFoundError(playlistID)
			}
			return nil, fmt.Errorf("failed to issue share id: %w", err)
		}
		shareID = id
	}

	count, err := s.repo.IncrementShareCount(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to increment share count: %w", err)
	}

	s.metrics.RecordShareIssued(reused)
	s.logger.Info("playlist shared",
		slog.Int64("playlist_id", p.ID),
		slog.String("share_id", shareID),
		slog.Bool("reused", reused),
		slog.Int("share_count", count),
	)

	return &ShareResult{
		ShareURL:   s.ShareURL(shareID),
		ShareID:    shareID,
		ShareCount: count,
	}, nil
}

// ResolveShared は共有IDから公開ビューを取得する。認証は不要。
// 存在しない共有IDと非公開のプレイリストは区別せず model.ErrNotFound とする。
// 外部サービスの失敗は model.ErrUpstream とする。
func (s *Service) ResolveShared(ctx context.Context, shareID string) (*model.PublicPlaylistView, error) {
	view, err := s.resolveShared(ctx, shareID)
	s.metrics.RecordSharedView(err == nil)
	return view, err
}

func (s *Service) resolveShared(ctx context.Context, shareID string) (*model.PublicPlaylistView, error) {
	if !isValidShareID(shareID) {
		return nil, model.NewSharedPlaylistNotFoundError()
	}

	p, err := s.repo.FindByShareID(ctx, shareID)
	if err != nil {
		return nil, fmt.Errorf("failed to find shared playlist: %w", err)
	}
	if p == nil {
		return nil, model.NewSharedPlaylistNotFoundError()
	}

	owner, err := s.users.FindByID(ctx, p.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find playlist owner: %w", err)
	}
	if owner == nil {
		return nil, model.NewSharedPlaylistNotFoundError()
	}

	token, err := s.tokens.AccessTokenFor(ctx, owner)
	if err != nil {
		s.logger.Warn("owner token unavailable for shared view",
			slog.String("share_id", shareID),
			slog.String("owner_id", owner.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamError("Spotify")
	}

	detail, err := s.detail.GetPlaylist(ctx, token, p.ProviderPlaylistID)
	if err != nil {
		if spotify.IsNotFound(err) {
			return nil, model.NewSharedPlaylistNotFoundError()
		}
		s.logger.Warn("playlist detail fetch failed",
			slog.String("share_id", shareID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamError("Spotify")
	}

	return s.buildView(shareID, p, detail), nil
}

// buildView は外部サービスのプレイリスト詳細から公開ビューを組み立てる。
func (s *Service) buildView(shareID string, p *model.Playlist, detail *spotify.Playlist) *model.PublicPlaylistView {
	view := &model.PublicPlaylistView{
		ShareID:     shareID,
		Name:        s.sanitizer.PlainText(detail.Name),
		Description: s.sanitizer.Sanitize(detail.Description),
		ExternalURL: detail.ExternalURLs["spotify"],
		ShareCount:  p.ShareCount,
		Tracks:      []model.PublicTrack{},
	}
	for _, item := range detail.Tracks.Items {
		if item.Track == nil {
			continue
		}
		artists := make([]string, 0, len(item.Track.Artists))
		for _, a := range item.Track.Artists {
			artists = append(artists, a.Name)
		}
		view.Tracks = append(view.Tracks, model.PublicTrack{
			Name:   item.Track.Name,
			Artist: strings.Join(artists, ", "),
			URI:    item.Track.URI,
		})
	}
	return view
}
