// Package backend performs the single outbound worker call behind every
// forwarded query. Failures never surface as errors: they become an absent
// Result.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mattjoyce/synapse-gw/internal/metrics"
	"github.com/mattjoyce/synapse-gw/internal/protocol"
)

// DefaultTimeout bounds a call when the caller passes no timeout.
const DefaultTimeout = 15 * time.Second

// MaxResponseBytes caps how much of a worker response is read.
const MaxResponseBytes = 64 << 20

// Adapter posts JSON payloads to worker endpoints.
type Adapter struct {
	client  *http.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithMetrics records every call in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

// WithLogger sets the adapter logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// New returns an Adapter whose transport is traced with otelhttp.
func New(opts ...Option) *Adapter {
	a := &Adapter{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	a.client = &http.Client{Transport: otelhttp.NewTransport(defaultTransport())}
	a.logger = a.logger.With("component", "backend")
	return a
}

func defaultTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
}

// Call posts payload to endpoint and waits at most timeout (DefaultTimeout
// when timeout <= 0). Exactly one attempt is made.
func (a *Adapter) Call(ctx context.Context, endpoint string, payload any, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	start := time.Now()

	res := a.call(ctx, endpoint, payload, timeout)

	elapsed := time.Since(start)
	outcome := metrics.OutcomePresent
	if !res.Present() {
		outcome = metrics.OutcomeAbsent
		a.logger.Debug("worker call produced no output",
			"endpoint", endpoint,
			"reason", res.Reason(),
			"elapsed", elapsed,
		)
	}
	a.metrics.ObserveBackendCall(outcome, elapsed)
	return res
}

func (a *Adapter) call(ctx context.Context, endpoint string, payload any, timeout time.Duration) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Absent(fmt.Sprintf("panic: %v", r))
		}
	}()

	var body bytes.Buffer
	if err := protocol.EncodeRequest(&body, payload); err != nil {
		return Absent(err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return Absent(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Absent(fmt.Sprintf("timed out after %s", timeout))
		}
		return Absent(fmt.Sprintf("transport: %v", err))
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, MaxResponseBytes)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, limited)
		return Absent(fmt.Sprintf("worker returned HTTP %d", resp.StatusCode))
	}

	decoded, raw, err := protocol.DecodeResponse(limited)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Absent(fmt.Sprintf("timed out after %s", timeout))
		}
		return Absent(fmt.Sprintf("%v (body: %q)", err, snippet(raw)))
	}
	return Present(*decoded.Output)
}

func snippet(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
