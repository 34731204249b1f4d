package handler

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/setlister/internal/middleware"
	"github.com/hitoshi/setlister/internal/model"
)

//go:embed templates/shared.html
var templateFS embed.FS

var sharedPageTemplate = template.Must(template.ParseFS(templateFS, "templates/shared.html"))

// SharedPlaylistResolver は共有IDから公開ビューを取得するインターフェース。
type SharedPlaylistResolver interface {
	ResolveShared(ctx context.Context, shareID string) (*model.PublicPlaylistView, error)
}

// SharedHandler は共有プレイリストの公開ビューを提供するHTTPハンドラー。認証は不要。
type SharedHandler struct {
	resolver SharedPlaylistResolver
}

// NewSharedHandler はSharedHandlerを生成する。
func NewSharedHandler(resolver SharedPlaylistResolver) *SharedHandler {
	return &SharedHandler{resolver: resolver}
}

// sharedPageData は共有ページのテンプレートデータ。
// Description はサニタイズ済みのため、HTMLとして埋め込む。
type sharedPageData struct {
	View *sharedPageView
}

type sharedPageView struct {
	Name        string
	Description template.HTML
	ExternalURL string
	ShareCount  int
	Tracks      []model.PublicTrack
}

// GetJSON は共有プレイリストの公開ビューをJSONで返す。
// GET /api/shared/{shareId}
func (h *SharedHandler) GetJSON(w http.ResponseWriter, r *http.Request) {
	view, err := h.resolver.ResolveShared(r.Context(), chi.URLParam(r, "shareId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, view)
}

// GetPage は共有プレイリストの公開ページをHTMLで返す。
// GET /shared/{shareId}
func (h *SharedHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	view, err := h.resolver.ResolveShared(r.Context(), chi.URLParam(r, "shareId"))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			h.renderPage(w, http.StatusNotFound, sharedPageData{})
			return
		}
		handleServiceError(w, r, err)
		return
	}

	h.renderPage(w, http.StatusOK, sharedPageData{View: &sharedPageView{
		Name:        view.Name,
		Description: template.HTML(view.Description),
		ExternalURL: view.ExternalURL,
		ShareCount:  view.ShareCount,
		Tracks:      view.Tracks,
	}})
}

func (h *SharedHandler) renderPage(w http.ResponseWriter, status int, data sharedPageData) {
	var buf bytes.Buffer
	if err := sharedPageTemplate.Execute(&buf, data); err != nil {
		slog.Error("failed to render shared page", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
