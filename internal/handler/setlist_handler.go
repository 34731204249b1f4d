package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/setlister/internal/middleware"
	"github.com/hitoshi/setlister/internal/model"
	"github.com/hitoshi/setlister/internal/setlistfm"
)

// SetlistSearcher はセットリスト検索のインターフェース。
type SetlistSearcher interface {
	SearchSetlists(ctx context.Context, artistName string, page int) (*setlistfm.SearchResult, error)
}

// SetlistHandler はセットリスト検索のHTTPハンドラー。
type SetlistHandler struct {
	searcher SetlistSearcher
}

// NewSetlistHandler はSetlistHandlerを生成する。
func NewSetlistHandler(searcher SetlistSearcher) *SetlistHandler {
	return &SetlistHandler{searcher: searcher}
}

// Search はアーティスト名でセットリストを検索する。
// GET /api/setlists/search?artistName=xxx&page=1
func (h *SetlistHandler) Search(w http.ResponseWriter, r *http.Request) {
	artistName := strings.TrimSpace(r.URL.Query().Get("artistName"))
	if artistName == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidArtistNameError())
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if p, err := strconv.Atoi(raw); err == nil && p > 0 {
			page = p
		}
	}

	result, err := h.searcher.SearchSetlists(r.Context(), artistName, page)
	if err != nil {
		slog.Warn("setlist search failed",
			slog.String("artist_name", artistName),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewSetlistSearchError())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}
