package imagetruth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrAnalysisFailed wraps every orchestration failure: unreadable source,
// undecodable image, or a failing classifier. Callers show a generic
// "analysis failed, retry" message.
var ErrAnalysisFailed = errors.New("imagetruth: analysis failed")

var errClassifierPanic = errors.New("classifier panicked")

// Analysis is the full outcome of one analysis request.
type Analysis struct {
	Ref           string            `json:"ref"`
	Name          string            `json:"name"`
	Verdict       Verdict           `json:"verdict"`
	Metadata      MetadataMap       `json:"metadata,omitempty"`
	MetadataScore MetadataScore     `json:"metadata_score"`
	Classifier    *ClassifierResult `json:"classifier,omitempty"`
	Result        FusionResult      `json:"result"`
	Persisted     bool              `json:"persisted"`
	EntryID       string            `json:"entry_id,omitempty"`
}

// AnalysisEvent is reported through Config.OnAnalysis after every analysis.
type AnalysisEvent struct {
	Ref        string
	Verdict    Verdict
	Confidence float64
	Override   bool
	Persisted  bool
	Duration   time.Duration
}

// Analyze loads the image at ref (path, URL or data URI) and analyzes it.
func (cfg *Config) Analyze(ctx context.Context, ref string) (*Analysis, error) {
	c := cfg.withDefaults()

	src, err := c.LoadImage(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}
	return c.analyzeSource(ctx, src)
}

// AnalyzeBytes analyzes already-loaded image bytes. ref is recorded in
// history as the image reference.
func (cfg *Config) AnalyzeBytes(ctx context.Context, ref string, data []byte) (*Analysis, error) {
	return cfg.withDefaults().analyzeSource(ctx, &ImageSource{Ref: ref, Name: ref, Data: data})
}

// analyzeSource runs the pipeline:
//  1. ExtractCaptureMetadata: EXIF capture attributes (may be empty)
//  2. Preprocess: decode + resize to the model input
//  3. classify: injected classifier, cached by content digest
//  4. ScoreMetadata + Fuse: the decision core; must run in this order
//  5. persist: only confident results reach History
func (cfg *Config) analyzeSource(ctx context.Context, src *ImageSource) (*Analysis, error) {
	start := time.Now()

	meta := ExtractCaptureMetadata(src.Data)

	buf, img, err := Preprocess(src.Data, cfg.ModelInputSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	cls, err := cfg.classify(ctx, buf, img)
	if err != nil {
		slog.Warn("imagetruth: classifier failed", "ref", src.Ref, "error", err.Error())
		return nil, fmt.Errorf("%w: classifier: %w", ErrAnalysisFailed, err)
	}

	score := ScoreMetadata(meta)
	result := Fuse(score, cls, cfg.Fusion)

	a := &Analysis{
		Ref:           src.Ref,
		Name:          src.Name,
		Verdict:       VerdictOf(result),
		Metadata:      meta,
		MetadataScore: score,
		Classifier:    cls,
		Result:        result,
	}

	cfg.persist(ctx, a)

	slog.Debug("imagetruth: analysis complete",
		"ref", a.Ref,
		"verdict", a.Verdict.String(),
		"confidence", result.Confidence,
		"override", result.Override,
		"persisted", a.Persisted)

	if cfg.OnAnalysis != nil {
		cfg.OnAnalysis(AnalysisEvent{
			Ref:        a.Ref,
			Verdict:    a.Verdict,
			Confidence: result.Confidence,
			Override:   result.Override,
			Persisted:  a.Persisted,
			Duration:   time.Since(start),
		})
	}

	return a, nil
}

// persist saves confident results. A failing store is logged, not fatal:
// the verdict is still valid.
func (cfg *Config) persist(ctx context.Context, a *Analysis) {
	if cfg.History == nil || !ShouldPersist(a.Result, cfg.PersistMinConfidence) {
		return
	}

	entry := NewHistoryEntry(a.Ref, a.Name, a.Result, cfg.Now())
	if err := cfg.History.Save(ctx, entry); err != nil {
		slog.Warn("imagetruth: history save failed", "ref", a.Ref, "error", err.Error())
		return
	}
	a.Persisted = true
	a.EntryID = entry.ID
}
