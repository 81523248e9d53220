package web

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/seckatie/snapmark/internal/core/db"
	"go.uber.org/zap"
)

func (ws *Server) listBookmarks(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bookmarks, err := ws.store.ListBookmarks(limit)
	if err != nil {
		ws.logger.Error("failed to list bookmarks", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list bookmarks")
		return
	}
	writeJSON(w, http.StatusOK, toBookmarkViews(bookmarks))
}

// createBookmark stores a bare bookmark and answers right away. Enrichment
// is started by the store's created event, so the response always has a
// null screenshot and enrichment_data.
func (ws *Server) createBookmark(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCreateRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := ws.store.AddBookmark(req.URL, req.Title, ws.now())
	if err != nil {
		if errors.Is(err, db.ErrInvalidURL) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ws.logger.Error("failed to insert bookmark", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create bookmark")
		return
	}

	b, err := ws.store.GetBookmark(id)
	if err != nil {
		ws.logger.Error("failed to read new bookmark", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create bookmark")
		return
	}
	view := toBookmarkView(b)
	// Creation always reports the bare record, even if a stage already wrote.
	view.Screenshot = nil
	view.EnrichmentData = nil
	writeJSON(w, http.StatusCreated, view)
}

func (ws *Server) getBookmark(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := ws.store.GetBookmark(id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "bookmark not found")
			return
		}
		ws.logger.Error("failed to get bookmark", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get bookmark")
		return
	}
	writeJSON(w, http.StatusOK, toBookmarkView(b))
}

// deleteBookmark removes the record. Its screenshot and image directory are
// removed by the store's deleted event listener.
func (ws *Server) deleteBookmark(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	deleted, err := ws.store.DeleteBookmark(id)
	if err != nil {
		ws.logger.Error("failed to delete bookmark", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete bookmark")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "bookmark not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeCreateRequest accepts a JSON body or, for bookmarklets and plain
// forms, url and title form values.
func decodeCreateRequest(w http.ResponseWriter, r *http.Request) (createBookmarkRequest, error) {
	var req createBookmarkRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		req.URL = r.FormValue("url")
		req.Title = r.FormValue("title")
	default:
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil {
			return req, errors.New("invalid JSON body")
		}
	}
	req.URL = strings.TrimSpace(req.URL)
	req.Title = strings.TrimSpace(req.Title)
	if req.URL == "" {
		return req, errors.New("url is required")
	}
	return req, nil
}
