package web

import (
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/seckatie/snapmark/internal/core/assets"
	"go.uber.org/zap"
)

func (ws *Server) serveScreenshot(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, err := ws.assets.OpenScreenshot(id)
	ws.serveAsset(w, r, f, err, "image/png", "screenshot not found")
}

func (ws *Server) serveImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, err := ws.assets.OpenImage(id, chi.URLParam(r, "filename"))
	ws.serveAsset(w, r, f, err, "image/jpeg", "image not found")
}

func (ws *Server) serveAsset(w http.ResponseWriter, r *http.Request, f *os.File, err error, contentType, notFound string) {
	if err != nil {
		if errors.Is(err, assets.ErrNotFound) {
			writeError(w, http.StatusNotFound, notFound)
			return
		}
		ws.logger.Error("failed to open asset", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read asset")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		ws.logger.Error("failed to stat asset", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read asset")
		return
	}
	w.Header().Set("Content-Type", contentType)
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
