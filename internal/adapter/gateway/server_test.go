package gateway

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"mindhub/internal/adapter/catalog"
	"mindhub/internal/infra/config"
	"mindhub/internal/infra/middleware"
)

func TestServerServesAndShutsDown(t *testing.T) {
	handler := NewHandler(HandlerDeps{
		Pipeline:  &stubPipeline{},
		Agents:    catalog.NewAgentRegistry(),
		Limiter:   middleware.NewUserLimiter(50, 100_000),
		Ledger:    middleware.NewCostLedger(10, 100),
		Estimator: flatEstimator{n: 10},
		Logger:    newTestLogger(),
	})
	srv := NewServer(config.ServerConfig{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, handler, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	var addr string
	for i := 0; i < 100; i++ {
		if addr = srv.BoundAddr(); addr != "" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == "" {
		t.Fatal("server never bound")
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServerAppliesMiddleware(t *testing.T) {
	handler := NewHandler(HandlerDeps{
		Pipeline: &stubPipeline{},
		Agents:   catalog.NewAgentRegistry(),
		Logger:   newTestLogger(),
	})
	srv := NewServer(config.ServerConfig{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, handler, newTestLogger())
	srv.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Test-Middleware", "applied")
			next.ServeHTTP(w, r)
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Start(ctx)

	var addr string
	for i := 0; i < 100; i++ {
		if addr = srv.BoundAddr(); addr != "" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == "" {
		t.Fatal("server never bound")
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("X-Test-Middleware"); got != "applied" {
		t.Errorf("X-Test-Middleware = %q", got)
	}
}
