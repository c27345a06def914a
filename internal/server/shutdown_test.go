package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"carsales-dashboard/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ShutdownTimeout: 2 * time.Second},
	}
}

func TestGracefulServer_ShutdownRunsHooksInOrder(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	httpServer := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})}
	gs := NewGracefulServer(httpServer, slog.New(slog.NewTextHandler(io.Discard, nil)), testConfig())

	var mu sync.Mutex
	var order []int
	for i := range 3 {
		gs.RegisterShutdownHook(func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, i)
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String())
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Errorf("hook order = %v, want [0 1 2]", order)
	}
}

func TestGracefulServer_HookErrorsAreReturned(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	gs := NewGracefulServer(&http.Server{Handler: http.NotFoundHandler()}, slog.New(slog.NewTextHandler(io.Discard, nil)), testConfig())
	boom := errors.New("boom")
	gs.RegisterShutdownHook(func(context.Context) error { return boom })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := gs.Serve(ctx, ln); !errors.Is(err, boom) {
		t.Errorf("Serve() error = %v, want %v", err, boom)
	}
}
