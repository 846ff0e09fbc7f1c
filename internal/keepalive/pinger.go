// Package keepalive periodically requests the service's own public URL so
// hosts that idle out quiet instances keep it running.
package keepalive

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	requestTimeout  = 10 * time.Second
	DefaultInterval = 14 * time.Minute
)

type Pinger struct {
	url      string
	interval time.Duration
	client   *http.Client
	logger   *zap.Logger
}

// New returns nil when url is empty; a nil Pinger's Run returns immediately.
// A non-positive interval falls back to DefaultInterval.
func New(url string, interval time.Duration, logger *zap.Logger) *Pinger {
	if url == "" {
		return nil
	}
	if interval <= 0 {
		logger.Warn("invalid keepalive interval, using default",
			zap.Duration("interval", interval), zap.Duration("default", DefaultInterval))
		interval = DefaultInterval
	}
	return &Pinger{
		url:      strings.TrimRight(url, "/") + "/",
		interval: interval,
		client:   &http.Client{Timeout: requestTimeout},
		logger:   logger,
	}
}

// Ping issues one request. Any response, including 404, counts as success.
func (p *Pinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Run pings immediately and then every interval until ctx is done. Failures
// are logged and never stop the loop.
func (p *Pinger) Run(ctx context.Context) error {
	if p == nil {
		return nil
	}

	p.logger.Info("keepalive started", zap.String("url", p.url), zap.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.Ping(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("keepalive ping failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
