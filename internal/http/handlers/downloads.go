package handlers

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"converter/internal/domain"
)

// Download proxies an artifact of the current session. Only references the
// session reported can be fetched.
func (a *App) Download(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(chi.URLParam(r, "*"))
	if ref == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "download reference required")
		return
	}
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		ref = "/" + strings.TrimPrefix(ref, "/")
	}
	target, err := a.Artifacts.ResolveURL(ref)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if !a.knownReference(target) {
		a.error(w, http.StatusNotFound, "not_found", "artifact not part of the current session")
		return
	}

	art, err := a.Artifacts.FetchArtifact(r.Context(), target)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "artifact not found")
		return
	case err != nil:
		a.Logger.Warn().Err(err).Str("ref", ref).Msg("handlers: artifact fetch failed")
		a.error(w, http.StatusBadGateway, "upstream", "artifact fetch failed")
		return
	}

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Data)
}

func (a *App) knownReference(target string) bool {
	for _, item := range a.Sessions.Snapshot().Results() {
		if item.Status != domain.ItemStatusSuccess || item.DownloadRef == "" {
			continue
		}
		if resolved, err := a.Artifacts.ResolveURL(item.DownloadRef); err == nil && resolved == target {
			return true
		}
	}
	return false
}
