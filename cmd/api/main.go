package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"converter/internal/domain"
	"converter/internal/http/handlers"
	httpapi "converter/internal/http/httpapi"
	"converter/internal/infra"
	"converter/internal/poller"
	"converter/internal/providers/convert"
	"converter/internal/session"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var limiter *rate.Limiter
	if cfg.ConverterRequestsPerS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ConverterRequestsPerS), 1)
	}
	client := convert.NewClient(convert.Options{
		BaseURL:        cfg.ConverterBaseURL,
		RequestTimeout: cfg.ConverterTimeout,
		Logger:         &logger,
		Limiter:        limiter,
	})

	sessions := session.NewManager(session.Options{
		Dispatcher: client,
		Poller:     poller.New(client, cfg.PollInterval),
		Logger:     &logger,
		Context:    ctx,
		OnChange: func(s domain.Session) {
			logger.Debug().Str("session_id", s.ID).Str("phase", string(s.Phase)).Msg("session changed")
		},
	})

	app := handlers.NewApp(sessions, client, &logger)
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:         logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RatePerMinute:  cfg.RateLimitPerMin,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("converter", cfg.ConverterBaseURL).Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	sessions.Close()
	logger.Info().Msg("server stopped")
}
