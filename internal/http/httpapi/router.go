package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"converter/internal/http/handlers"
	"converter/internal/infra"
	"converter/internal/middleware"
)

// RouterOptions carries the cross-cutting settings of the public API.
type RouterOptions struct {
	Logger         infra.Logger
	AllowedOrigins []string
	RatePerMinute  int
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/session", func(r chi.Router) {
		r.Get("/", app.GetSession)
		r.With(middleware.RateLimit(opts.RatePerMinute, time.Minute)).Post("/", app.SubmitSession)
		r.Delete("/", app.CancelSession)
	})

	r.Get("/v1/downloads/*", app.Download)

	return r
}
