// Package flusher runs best-effort telemetry for git-ai on a goroutine of
// the calling process: one event per flush, a hard wall-clock cap on how
// long a slow or unreachable endpoint can hold up the caller, and an opt-out
// that takes effect before any network call is attempted. It does not
// spawn a separate process.
package flusher

import (
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/posthog/posthog-go"
)

// PostHogAPIKey and PostHogEndpoint are overridable at build time.
var (
	PostHogAPIKey   = "phc_development_key"
	PostHogEndpoint = "https://eu.i.posthog.com"
)

// WallClockCap bounds how long RunDetached waits for its fn before
// returning to the caller.
const WallClockCap = 30 * time.Second

// Client records best-effort usage events.
type Client interface {
	RecordCheckpoint(agentID string, fileCount, lineCount int)
	RecordCommit(agentPercentage float64)
	Close()
}

// NoOpClient is used whenever telemetry is disabled or unavailable.
type NoOpClient struct{}

func (NoOpClient) RecordCheckpoint(string, int, int) {}
func (NoOpClient) RecordCommit(float64)              {}
func (NoOpClient) Close()                            {}

type silentLogger struct{}

func (silentLogger) Logf(string, ...interface{})   {}
func (silentLogger) Debugf(string, ...interface{}) {}
func (silentLogger) Warnf(string, ...interface{})  {}
func (silentLogger) Errorf(string, ...interface{}) {}

// postHogClient is the real telemetry client.
type postHogClient struct {
	client  posthog.Client
	id      string
	version string
	mu      sync.RWMutex
}

// NewClient builds a Client, or NoOpClient if telemetry is disabled or the
// machine id / network client can't be constructed. enabled mirrors the
// ignore_prompts-style opt-out in the user's config: nil/false disables.
//
//nolint:ireturn // factory returns one of two Client implementations by design
func NewClient(version string, enabled bool) Client {
	if !enabled {
		return NoOpClient{}
	}

	id, err := machineid.ProtectedID("git-ai")
	if err != nil {
		return NoOpClient{}
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 200 * time.Millisecond,
		}).DialContext,
		TLSHandshakeTimeout:   200 * time.Millisecond,
		ResponseHeaderTimeout: 200 * time.Millisecond,
	}

	client, err := posthog.NewWithConfig(PostHogAPIKey, posthog.Config{
		Endpoint:           PostHogEndpoint,
		ShutdownTimeout:    500 * time.Millisecond,
		BatchUploadTimeout: time.Second,
		Transport:          transport,
		Logger:             silentLogger{},
		DisableGeoIP:       posthog.Ptr(true),
		DefaultEventProperties: posthog.NewProperties().
			Set("git_ai_version", version).
			Set("os", runtime.GOOS).
			Set("arch", runtime.GOARCH),
	})
	if err != nil {
		return NoOpClient{}
	}

	return &postHogClient{client: client, id: id, version: version}
}

// RecordCheckpoint records one checkpoint event.
func (p *postHogClient) RecordCheckpoint(agentID string, fileCount, lineCount int) {
	p.mu.RLock()
	c, id := p.client, p.id
	p.mu.RUnlock()
	if c == nil {
		return
	}
	agent := agentID
	if agent == "" {
		agent = "human"
	}
	//nolint:errcheck // best-effort telemetry; failures never surface to the caller
	_ = c.Enqueue(posthog.Capture{
		DistinctId: id,
		Event:      "checkpoint_recorded",
		Properties: posthog.NewProperties().
			Set("agent", agent).
			Set("file_count", fileCount).
			Set("line_count", lineCount),
	})
}

// RecordCommit records one commit's final attribution percentage.
func (p *postHogClient) RecordCommit(agentPercentage float64) {
	p.mu.RLock()
	c, id := p.client, p.id
	p.mu.RUnlock()
	if c == nil {
		return
	}
	//nolint:errcheck // best-effort telemetry; failures never surface to the caller
	_ = c.Enqueue(posthog.Capture{
		DistinctId: id,
		Event:      "commit_materialized",
		Properties: posthog.NewProperties().Set("agent_percentage", agentPercentage),
	})
}

// Close flushes pending events, bounded by the client's own
// ShutdownTimeout (500 ms).
func (p *postHogClient) Close() {
	p.mu.RLock()
	c := p.client
	p.mu.RUnlock()
	if c != nil {
		_ = c.Close()
	}
}

// RunDetached runs fn (typically a handful of Record* calls followed by
// Close) on its own goroutine and waits until fn returns or WallClockCap
// elapses, whichever comes first; past the cap it returns and leaves the
// goroutine running. Since all telemetry calls are themselves bounded by
// short per-request timeouts, the cap is a backstop rather than the primary
// guard.
func RunDetached(fn func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(WallClockCap):
	}
}
