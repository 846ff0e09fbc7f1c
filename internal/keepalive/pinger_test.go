package keepalive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNewWithoutURL(t *testing.T) {
	p := New("", time.Minute, zap.NewNop())
	if p != nil {
		t.Fatal("expected nil pinger without url")
	}
	if err := p.Run(context.Background()); err != nil {
		t.Errorf("nil pinger Run: %v", err)
	}
}

func TestNewNormalizesTrailingSlash(t *testing.T) {
	p := New("https://example.com//", time.Minute, zap.NewNop())
	if p.url != "https://example.com/" {
		t.Errorf("Unexpected url %q", p.url)
	}
}

func TestNewDefaultsNonPositiveInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		p := New("https://example.com", interval, zap.NewNop())
		if p.interval != DefaultInterval {
			t.Errorf("interval %v: expected default %v, got %v", interval, DefaultInterval, p.interval)
		}
	}
}

func TestRunWithZeroIntervalDoesNotPanic(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	p := New(srv.URL, 0, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Run panicked: %v", r)
		}
	}()
	if err := p.Run(ctx); err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestRunPingsUntilCancelled(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := New(srv.URL, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for hits.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 pings, got %d", hits.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRunSurvivesUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := New(url, 5*time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := p.Run(ctx); err != nil {
		t.Errorf("Run should swallow ping failures, got %v", err)
	}
}
