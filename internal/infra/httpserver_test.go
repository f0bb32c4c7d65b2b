package infra

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestNewHTTPServerAppliesConfig(t *testing.T) {
	cfg := &Config{Port: "0", HTTPReadTimeout: time.Second, HTTPWriteTimeout: 2 * time.Second, HTTPIdleTimeout: 3 * time.Second}
	srv := NewHTTPServer(cfg, http.NotFoundHandler())
	if srv.Addr() != ":0" {
		t.Fatalf("Addr = %q", srv.Addr())
	}
	if srv.server.WriteTimeout != 2*time.Second || srv.server.IdleTimeout != 3*time.Second {
		t.Fatalf("timeouts not applied: %+v", srv.server)
	}

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Start returned %v after shutdown", err)
	}
}
