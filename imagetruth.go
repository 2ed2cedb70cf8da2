// Package imagetruth decides whether an image was captured by a camera or
// synthetically generated, by fusing capture-metadata evidence with the
// confidence of a binary image classifier.
//
// The decision core is two pure functions: [ScoreMetadata] and [Fuse].
// [Config.Analyze] wires them to image loading, preprocessing, an injected
// [Classifier] and an optional [History].
package imagetruth

import (
	"context"
	"net/http"
	"time"
)

// Orchestration defaults. Analyze blends with 0.25/0.75, which differs from
// the Fuse library defaults (DefaultFusionOptions).
const (
	DefaultAnalysisExifWeight   = 0.25
	DefaultAnalysisModelWeight  = 0.75
	DefaultPersistMinConfidence = 70.0
	defaultUserAgent            = "Mozilla/5.0 (compatible; go-imagetruth/1.0)"
)

// Cache abstracts key-value caching (Redis, sync.Map, etc.)
type Cache interface {
	Key(prefix, value string) string
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any)
}

// Config holds all dependencies injected by the consumer.
type Config struct {
	Classifier    Classifier   // optional: nil = fuse without a model verdict
	Cache         Cache        // optional: caches classifier results by perceptual hash
	History       History      // optional: confident results are saved here
	StealthClient *http.Client // optional: TLS-fingerprinted client for downloads
	HTTPClient    *http.Client // optional: default http client (nil = http.DefaultClient)
	UserAgent     string       // default: "Mozilla/5.0 (compatible; go-imagetruth/1.0)"

	// Fusion weights and threshold. The zero value defaults to 0.25 / 0.75 / 60;
	// a single zero weight is kept.
	Fusion FusionOptions

	// ModelInputSize is the classifier's square input edge (default: 224).
	ModelInputSize int

	// PersistMinConfidence is the minimum confidence for saving to History (default: 70).
	PersistMinConfidence float64

	// Now returns the current time for history timestamps (default: time.Now).
	Now func() time.Time

	// Optional callbacks for metrics/logging.
	OnAnalysis func(AnalysisEvent)     // audit log for every completed analysis
	OnPanic    func(tag string, r any) // a collaborator panicked and was recovered
}

// withDefaults returns a copy of c with zero-value fields filled in. The
// receiver is never written, so one Config can serve concurrent calls.
func (c *Config) withDefaults() *Config {
	r := *c
	if r.UserAgent == "" {
		r.UserAgent = defaultUserAgent
	}
	if r.HTTPClient == nil {
		r.HTTPClient = http.DefaultClient
	}
	r.Fusion = r.Fusion.withDefaults(DefaultAnalysisExifWeight, DefaultAnalysisModelWeight)
	if r.ModelInputSize <= 0 {
		r.ModelInputSize = ModelInputSize
	}
	if r.PersistMinConfidence <= 0 {
		r.PersistMinConfidence = DefaultPersistMinConfidence
	}
	if r.Now == nil {
		r.Now = time.Now
	}
	return &r
}
