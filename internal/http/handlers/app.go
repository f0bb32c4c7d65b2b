package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"converter/internal/infra"
	"converter/internal/providers/convert"
	"converter/internal/session"
)

// ArtifactFetcher resolves a download reference into bytes.
type ArtifactFetcher interface {
	FetchArtifact(ctx context.Context, ref string) (*convert.Artifact, error)
	ResolveURL(ref string) (string, error)
}

type App struct {
	Sessions  *session.Manager
	Artifacts ArtifactFetcher
	Logger    *infra.Logger
}

func NewApp(sessions *session.Manager, artifacts ArtifactFetcher, logger *infra.Logger) *App {
	if logger == nil {
		logger = infra.Discard()
	}
	return &App{Sessions: sessions, Artifacts: artifacts, Logger: logger}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, msg string) {
	a.json(w, code, map[string]any{"error": errorBody{Code: kind, Message: msg}})
}
