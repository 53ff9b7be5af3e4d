// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Resource names used as metric labels.
const (
	ResourceTag        = "tag"
	ResourceIngredient = "ingredient"
	ResourceRecipe     = "recipe"
	ResourceUser       = "user"
	ResourceToken      = "token"
)

// Image upload outcomes.
const (
	UploadSuccess = "success"
	UploadInvalid = "invalid"
	UploadFailed  = "failed"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory.
type Recorder interface {
	// HTTP metrics
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)

	// Auth metrics
	IncAuthCacheHit()
	IncAuthCacheMiss()
	IncAuthFailure(reason string)
	IncRateLimitReject(scope string) // scope: "user" or "ip"

	// Resource metrics
	IncCreated(resource string)
	IncUpdated(resource string)
	IncDeleted(resource string)
	IncImageUpload(outcome string)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
