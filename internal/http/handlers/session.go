package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"converter/internal/domain"
	"converter/internal/session"
	"converter/internal/validator"
)

type submitRequest struct {
	Mode    string   `json:"mode"`
	URL     string   `json:"url"`
	URLs    []string `json:"urls"`
	Batch   string   `json:"batch"`
	Format  string   `json:"format"`
	Quality string   `json:"quality"`
	Replace bool     `json:"replace"`
}

// toConversion shapes the payload into a request. URL acceptability is left
// to the session so that validation shows up as a transition.
func (p submitRequest) toConversion() (domain.ConversionRequest, error) {
	mode, err := domain.ParseMode(p.Mode)
	if err != nil {
		return domain.ConversionRequest{}, err
	}
	req := domain.ConversionRequest{
		Mode:    mode,
		Format:  domain.Format(strings.ToLower(strings.TrimSpace(p.Format))),
		Quality: domain.Quality(strings.TrimSpace(p.Quality)),
	}
	switch mode {
	case domain.ModeBatch:
		req.URLs = append(req.URLs, p.URLs...)
		req.URLs = append(req.URLs, validator.SplitLines(p.Batch)...)
		if p.URL != "" {
			req.URLs = append(req.URLs, p.URL)
		}
	default:
		u := p.URL
		if u == "" && len(p.URLs) > 0 {
			u = p.URLs[0]
		}
		req.URLs = []string{u}
	}
	return req, nil
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Sessions.Snapshot())
}

func (a *App) SubmitSession(w http.ResponseWriter, r *http.Request) {
	var body submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req, err := body.toConversion()
	if err != nil {
		a.error(w, http.StatusUnprocessableEntity, "validation", err.Error())
		return
	}

	snap, err := a.Sessions.Submit(r.Context(), req, session.SubmitOptions{Replace: body.Replace})
	switch {
	case err == nil:
		a.json(w, http.StatusAccepted, snap)
	case errors.Is(err, domain.ErrBusy):
		a.error(w, http.StatusConflict, "busy", err.Error())
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusUnprocessableEntity, "validation", snap.Error)
	case errors.Is(err, domain.ErrDispatch):
		a.error(w, http.StatusBadGateway, "dispatch_failed", snap.Error)
	case errors.Is(err, domain.ErrCancelled):
		a.error(w, http.StatusConflict, "superseded", "session was replaced before it settled")
	default:
		a.Logger.Error().Err(err).Str("session_id", snap.ID).Msg("handlers: submit failed")
		a.error(w, http.StatusInternalServerError, "internal", "submit failed")
	}
}

func (a *App) CancelSession(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Sessions.Cancel())
}
