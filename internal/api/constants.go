package api

// API limits and constants.
const (
	// MaxPushBodySize bounds a Pub/Sub push request body.
	MaxPushBodySize = 1 << 20

	// DefaultSearchLimit is the full-text page size when none is given.
	DefaultSearchLimit = 20
)

// Cache-Control header values.
const (
	// Thumbnail keys embed the generation, so their bytes never change.
	CacheImmutable = "public, max-age=31536000, immutable"
	CacheOneHour   = "public, max-age=3600"
	CacheNoStore   = "no-cache"
)
