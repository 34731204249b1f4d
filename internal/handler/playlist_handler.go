package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/setlister/internal/middleware"
	"github.com/hitoshi/setlister/internal/model"
	"github.com/hitoshi/setlister/internal/playlist"
	"github.com/hitoshi/setlister/internal/share"
)

// maxCreateBodyBytes はプレイリスト作成リクエストボディの上限。
const maxCreateBodyBytes = 1 << 20

// PlaylistAssemblerInterface はプレイリスト作成のインターフェース。
type PlaylistAssemblerInterface interface {
	AssembleFromSetlist(ctx context.Context, owner model.User, s model.Setlist) (*playlist.AssembleResult, error)
}

// SetlistGetter はIDからセットリストを取得するインターフェース。
type SetlistGetter interface {
	GetSetlist(ctx context.Context, setlistID string) (*model.Setlist, error)
}

// PlaylistLister はユーザーのプレイリスト一覧を取得するインターフェース。
type PlaylistLister interface {
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Playlist, error)
}

// PlaylistSharer は共有URL発行のインターフェース。
type PlaylistSharer interface {
	EnsureShared(ctx context.Context, playlistID int64, ownerID string) (*share.ShareResult, error)
	ShareURL(shareID string) string
}

// PlaylistHandler はプレイリスト管理のHTTPハンドラー。
type PlaylistHandler struct {
	assembler PlaylistAssemblerInterface
	setlists  SetlistGetter
	lister    PlaylistLister
	sharer    PlaylistSharer
}

// NewPlaylistHandler はPlaylistHandlerを生成する。
func NewPlaylistHandler(assembler PlaylistAssemblerInterface, setlists SetlistGetter, lister PlaylistLister, sharer PlaylistSharer) *PlaylistHandler {
	return &PlaylistHandler{
		assembler: assembler,
		setlists:  setlists,
		lister:    lister,
		sharer:    sharer,
	}
}

// createPlaylistRequest はプレイリスト作成リクエストのボディ。
// setlist（検索結果のセットリスト）か setlistId のどちらかを指定する。
type createPlaylistRequest struct {
	SetlistID string         `json:"setlistId"`
	Setlist   *model.Setlist `json:"setlist"`
}

// playlistResponse はプレイリスト情報のAPIレスポンス。
type playlistResponse struct {
	ID                 int64     `json:"id"`
	ProviderPlaylistID string    `json:"spotifyPlaylistId"`
	SourceSetlistKey   string    `json:"setlistKey"`
	CreatedAt          time.Time `json:"createdAt"`
	IsPublic           bool      `json:"isPublic"`
	ShareID            string    `json:"shareId,omitempty"`
	ShareURL           string    `json:"shareUrl,omitempty"`
	ShareCount         int       `json:"shareCount"`
}

// createPlaylistResponse はプレイリスト作成結果のレスポンス。
type createPlaylistResponse struct {
	Playlist     playlistResponse `json:"playlist"`
	MatchedCount int              `json:"matchedCount"`
	Unmatched    []string         `json:"unmatched"`
	AttachFailed bool             `json:"attachFailed"`
}

// Create はセットリストからプレイリストを作成する。
// POST /api/playlists
func (h *PlaylistHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	var req createPlaylistRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCreateBodyBytes)).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, newInvalidRequestError())
		return
	}

	setlist, apiErr := h.resolveSetlist(r, req)
	if apiErr != nil {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	result, err := h.assembler.AssembleFromSetlist(r.Context(), *user, *setlist)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, createPlaylistResponse{
		Playlist:     h.toPlaylistResponse(result.Playlist),
		MatchedCount: result.MatchedCount,
		Unmatched:    result.Unmatched,
		AttachFailed: result.AttachFailed,
	})
}

// resolveSetlist はリクエストからセットリストを特定し、必須項目を検証する。
func (h *PlaylistHandler) resolveSetlist(r *http.Request, req createPlaylistRequest) (*model.Setlist, *model.APIError) {
	setlist := req.Setlist
	if setlist == nil {
		id := strings.TrimSpace(req.SetlistID)
		if id == "" {
			return nil, model.NewInvalidSetlistError("setlist または setlistId を指定してください")
		}
		found, err := h.setlists.GetSetlist(r.Context(), id)
		if err != nil {
			slog.Warn("setlist lookup failed",
				slog.String("setlist_id", id),
				slog.String("error", err.Error()),
			)
			return nil, model.NewSetlistSearchError()
		}
		if found == nil {
			return nil, model.NewInvalidSetlistError("セットリストが見つかりません")
		}
		setlist = found
	}

	if strings.TrimSpace(setlist.ArtistName) == "" {
		return nil, model.NewInvalidSetlistError("アーティスト名がありません")
	}
	if strings.TrimSpace(setlist.VenueName) == "" {
		return nil, model.NewInvalidSetlistError("会場名がありません")
	}
	return setlist, nil
}

// List はログインユーザーのプレイリスト一覧を返す。
// GET /api/playlists
func (h *PlaylistHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	playlists, err := h.lister.ListByOwner(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]playlistResponse, 0, len(playlists))
	for _, p := range playlists {
		resp = append(resp, h.toPlaylistResponse(p))
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"playlists": resp})
}

// Share はプレイリストの共有URLを発行する。所有者のみ実行できる。
// POST /api/playlists/{id}/share
func (h *PlaylistHandler) Share(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	raw := chi.URLParam(r, "id")
	playlistID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || playlistID <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidPlaylistIDError(raw))
		return
	}

	result, err := h.sharer.EnsureShared(r.Context(), playlistID, userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

func (h *PlaylistHandler) toPlaylistResponse(p *model.Playlist) playlistResponse {
	resp := playlistResponse{
		ID:                 p.ID,
		ProviderPlaylistID: p.ProviderPlaylistID,
		SourceSetlistKey:   p.SourceSetlistKey,
		CreatedAt:          p.CreatedAt,
		IsPublic:           p.IsPublic,
		ShareCount:         p.ShareCount,
	}
	if p.ShareID != nil {
		resp.ShareID = *p.ShareID
		resp.ShareURL = h.sharer.ShareURL(*p.ShareID)
	}
	return resp
}
