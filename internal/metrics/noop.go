package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// ObserveHTTPRequest is a no-op.
func (n *NoopRecorder) ObserveHTTPRequest(string, string, int, time.Duration) {}

// IncAuthCacheHit is a no-op.
func (n *NoopRecorder) IncAuthCacheHit() {}

// IncAuthCacheMiss is a no-op.
func (n *NoopRecorder) IncAuthCacheMiss() {}

// IncAuthFailure is a no-op.
func (n *NoopRecorder) IncAuthFailure(string) {}

// IncRateLimitReject is a no-op.
func (n *NoopRecorder) IncRateLimitReject(string) {}

// IncCreated is a no-op.
func (n *NoopRecorder) IncCreated(string) {}

// IncUpdated is a no-op.
func (n *NoopRecorder) IncUpdated(string) {}

// IncDeleted is a no-op.
func (n *NoopRecorder) IncDeleted(string) {}

// IncImageUpload is a no-op.
func (n *NoopRecorder) IncImageUpload(string) {}
