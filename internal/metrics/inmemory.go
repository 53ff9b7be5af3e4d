package metrics

import (
	"maps"
	"strconv"
	"sync"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	HTTPRequests     map[string]uint64 // keyed "METHOD route status"
	HTTPDurationNs   int64
	AuthCacheHits    uint64
	AuthCacheMisses  uint64
	AuthFailures     map[string]uint64
	RateLimitRejects map[string]uint64
	Created          map[string]uint64
	Updated          map[string]uint64
	Deleted          map[string]uint64
	ImageUploads     map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{snap: Snapshot{
		HTTPRequests:     map[string]uint64{},
		AuthFailures:     map[string]uint64{},
		RateLimitRejects: map[string]uint64{},
		Created:          map[string]uint64{},
		Updated:          map[string]uint64{},
		Deleted:          map[string]uint64{},
		ImageUploads:     map[string]uint64{},
	}}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.snap
	s.HTTPRequests = maps.Clone(m.snap.HTTPRequests)
	s.AuthFailures = maps.Clone(m.snap.AuthFailures)
	s.RateLimitRejects = maps.Clone(m.snap.RateLimitRejects)
	s.Created = maps.Clone(m.snap.Created)
	s.Updated = maps.Clone(m.snap.Updated)
	s.Deleted = maps.Clone(m.snap.Deleted)
	s.ImageUploads = maps.Clone(m.snap.ImageUploads)
	return s
}

// ObserveHTTPRequest records one served request.
func (m *InMemoryRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.HTTPRequests[method+" "+route+" "+strconv.Itoa(status)]++
	m.snap.HTTPDurationNs += duration.Nanoseconds()
}

// IncAuthCacheHit increments the auth cache hit counter.
func (m *InMemoryRecorder) IncAuthCacheHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.AuthCacheHits++
}

// IncAuthCacheMiss increments the auth cache miss counter.
func (m *InMemoryRecorder) IncAuthCacheMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.AuthCacheMisses++
}

// IncAuthFailure counts a rejected credential by reason.
func (m *InMemoryRecorder) IncAuthFailure(reason string) { m.inc(m.snap.AuthFailures, reason) }

// IncRateLimitReject counts a throttled request by scope.
func (m *InMemoryRecorder) IncRateLimitReject(scope string) { m.inc(m.snap.RateLimitRejects, scope) }

// IncCreated counts a created resource.
func (m *InMemoryRecorder) IncCreated(resource string) { m.inc(m.snap.Created, resource) }

// IncUpdated counts an updated resource.
func (m *InMemoryRecorder) IncUpdated(resource string) { m.inc(m.snap.Updated, resource) }

// IncDeleted counts a deleted resource.
func (m *InMemoryRecorder) IncDeleted(resource string) { m.inc(m.snap.Deleted, resource) }

// IncImageUpload counts an upload by outcome.
func (m *InMemoryRecorder) IncImageUpload(outcome string) { m.inc(m.snap.ImageUploads, outcome) }

func (m *InMemoryRecorder) inc(counter map[string]uint64, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counter[label]++
}
