package http

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-qbank/internal/apperr"
	"github.com/mind-engage/mindengage-qbank/internal/storage"
)

// MountTranscripts serves the caller's own generation transcripts.
func MountTranscripts(r chi.Router, bs storage.BlobStore) {
	// GET /transcripts -> {transcripts: [name...]}, newest first
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		userID, ok := subject(w, r)
		if !ok {
			return
		}
		prefix := transcriptPrefix(userID)
		keys, err := bs.List(r.Context(), prefix)
		if err != nil {
			writeError(w, r, apperr.Wrap(apperr.KindInternal, "Failed to list transcripts", err))
			return
		}
		names := make([]string, 0, len(keys))
		for i := len(keys) - 1; i >= 0; i-- {
			names = append(names, strings.TrimPrefix(keys[i], prefix))
		}
		writeJSON(w, http.StatusOK, map[string]any{"transcripts": names})
	})

	// GET /transcripts/{name} -> the raw log
	r.Get("/{name}", func(w http.ResponseWriter, r *http.Request) {
		userID, ok := subject(w, r)
		if !ok {
			return
		}
		name := chi.URLParam(r, "name")
		if name == "" || path.Base(name) != name || strings.HasPrefix(name, ".") {
			writeError(w, r, apperr.New(apperr.KindNotFound, "Transcript not found"))
			return
		}
		rc, err := bs.Get(r.Context(), transcriptPrefix(userID)+name)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
				writeError(w, r, apperr.Wrap(apperr.KindNotFound, "Transcript not found", err))
				return
			}
			writeError(w, r, apperr.Wrap(apperr.KindInternal, "Failed to read transcript", err))
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.Copy(w, rc)
	})
}

func transcriptPrefix(userID string) string {
	return "generations/" + userID + "/"
}
