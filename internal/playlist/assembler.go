package playlist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/setlister/internal/metrics"
	"github.com/hitoshi/setlister/internal/model"
	"github.com/hitoshi/setlister/internal/repository"
)

// DefaultDescription は作成するプレイリストの説明文。
const DefaultDescription = "Created with Concert to Playlist"

// PlaylistProvider は外部サービス上のプレイリスト操作のインターフェース。
type PlaylistProvider interface {
	CreatePlaylist(ctx context.Context, accessToken, userID, name, description string, public bool) (string, error)
	AddTracks(ctx context.Context, accessToken, playlistID string, uris []string) error
}

// AssembleInput はプレイリスト組み立ての入力。
type AssembleInput struct {
	Name        string
	Description string
	ArtistName  string
	Songs       []string // 演奏順の曲名
	SetlistKey  string
}

// AssembleResult はプレイリスト組み立ての結果。
// Unmatched は楽曲が見つからなかった曲名を演奏順に保持する。
type AssembleResult struct {
	Playlist     *model.Playlist
	MatchedCount int
	Unmatched    []string
	AttachFailed bool
}

// Assembler はセットリストからプレイリストを作成し、記録を永続化する。
type Assembler struct {
	provider PlaylistProvider
	resolver *Resolver
	repo     repository.PlaylistRepository
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewAssembler はAssemblerを生成する。
func NewAssembler(
	provider PlaylistProvider,
	resolver *Resolver,
	repo repository.PlaylistRepository,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
) *Assembler {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Assembler{
		provider: provider,
		resolver: resolver,
		repo:     repo,
		metrics:  mc,
		logger:   logger,
	}
}

// PlaylistName はセットリストからプレイリスト名を生成する。
func PlaylistName(s model.Setlist) string {
	return fmt.Sprintf("%s @ %s - %s", s.ArtistName, s.VenueName, s.EventDate)
}

// AssembleFromSetlist はセットリストの情報からプレイリストを作成する。
func (a *Assembler) AssembleFromSetlist(ctx context.Context, owner model.User, s model.Setlist) (*AssembleResult, error) {
	name := PlaylistName(s)
	key := s.ID
	if key == "" {
		key = name
	}
	return a.Assemble(ctx, owner, AssembleInput{
		Name:        name,
		Description: DefaultDescription,
		ArtistName:  s.ArtistName,
		Songs:       s.Songs,
		SetlistKey:  key,
	})
}

// Assemble はプレイリストを作成し、解決できた楽曲を演奏順に追加して記録を保存する。
// フロー: プレイリスト作成 → 楽曲解決 → 楽曲追加 → 記録保存
// プレイリスト作成に失敗した場合は何も保存せず model.ErrUpstream を返す。
// 楽曲追加に失敗した場合も記録は保存し、AttachFailed で通知する。
func (a *Assembler) Assemble(ctx context.Context, owner model.User, in AssembleInput) (*AssembleResult, error) {
	// 1. プレイリスト作成
	providerID, err := a.provider.CreatePlaylist(ctx, owner.AccessToken, owner.ExternalID, in.Name, in.Description, true)
	if err != nil {
		a.logger.Error("playlist creation failed",
			slog.String("user_id", owner.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to create playlist: %w: %w", model.ErrUpstream, err)
	}

	// 2. 楽曲解決
	queries := make([]string, len(in.Songs))
	for i, song := range in.Songs {
		queries[i] = in.ArtistName + " " + song
	}
	resolved := a.resolver.Resolve(ctx, owner.AccessToken, queries)

	// 3. 未解決を除外（演奏順を維持）
	uris := make([]string, 0, len(resolved))
	unmatched := []string{}
	for i, track := range resolved {
		if track.Matched() {
			uris = append(uris, track.URI)
		} else {
			unmatched = append(unmatched, in.Songs[i])
		}
	}
	a.metrics.RecordTrackResolution(len(uris), len(unmatched))

	// 4. 楽曲追加。0件の場合は空のプレイリストとして扱う
	attachFailed := false
	if len(uris) > 0 {
		if err := a.provider.AddTracks(ctx, owner.AccessToken, providerID, uris); err != nil {
			attachFailed = true
			a.logger.Warn("adding tracks failed; playlist kept without tracks",
				slog.String("user_id", owner.ID),
				slog.String("provider_playlist_id", providerID),
				slog.Int("track_count", len(uris)),
				slog.String("error", err.Error()),
			)
		}
	}

	// 5. 記録保存
	record, err := a.repo.Insert(ctx, owner.ID, providerID, in.SetlistKey)
	if err != nil {
		a.logger.Error("playlist record insert failed",
			slog.String("user_id", owner.ID),
			slog.String("provider_playlist_id", providerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to save playlist: %w", err)
	}

	a.metrics.RecordPlaylistCreated(attachFailed)
	a.logger.Info("playlist assembled",
		slog.String("user_id", owner.ID),
		slog.Int64("playlist_id", record.ID),
		slog.Int("matched", len(uris)),
		slog.Int("unmatched", len(unmatched)),
	)

	return &AssembleResult{
		Playlist:     record,
		MatchedCount: len(uris),
		Unmatched:    unmatched,
		AttachFailed: attachFailed,
	}, nil
}
