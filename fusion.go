package imagetruth

import (
	"fmt"
	"math"
)

// Fusion defaults used when a FusionOptions field is zero.
const (
	DefaultExifWeight           = 0.3
	DefaultModelWeight          = 0.7
	DefaultUncertaintyThreshold = 60.0
)

// Override tier constants.
const (
	// OverrideMinScore is the metadata score a strongly-real map needs
	// before the classifier is bypassed.
	OverrideMinScore = 70

	OverrideMinConfidence        = 65.0
	OverrideMaxConfidence        = 95.0
	overrideBoostPerIndicator    = 3
	overrideMaxBoost             = 15
	overrideDisagreeThreshold    = 70.0
	overrideDisagreePenaltyRate  = 0.2
	overrideMaxDisagreePenalty   = 8.0
	overrideScoreVarianceModulus = 5
)

// Weighted-blend tier constants.
const (
	// StrongExifWeight and StrongModelWeight replace the caller's weights
	// when metadata is strongly real but below OverrideMinScore.
	StrongExifWeight  = 0.65
	StrongModelWeight = 0.35

	undecidedScore          = 50.0
	agreementBoostRate      = 0.1
	maxAgreementBoost       = 10.0
	disagreementPenaltyRate = 0.15
	maxDisagreementPenalty  = 15.0
	minBlendConfidence      = 30.0
	maxBlendConfidence      = 98.0
	blendVarianceModulus    = 3
	blendVarianceStep       = 2.0
)

// ClassifierResult is the binary classifier's verdict. Confidence is a
// percentage conditioned on IsAI, not a raw probability of "AI".
type ClassifierResult struct {
	IsAI       bool    `json:"is_ai"`
	Confidence float64 `json:"confidence"`
}

// FusionOptions tunes the weighted blend. The zero value takes the package
// defaults; see withDefaults for how partial options resolve.
type FusionOptions struct {
	ExifWeight           float64 `json:"exif_weight"`
	ModelWeight          float64 `json:"model_weight"`
	UncertaintyThreshold float64 `json:"uncertainty_threshold"`
}

// DefaultFusionOptions returns the library defaults (0.3 / 0.7 / 60).
func DefaultFusionOptions() FusionOptions {
	return FusionOptions{
		ExifWeight:           DefaultExifWeight,
		ModelWeight:          DefaultModelWeight,
		UncertaintyThreshold: DefaultUncertaintyThreshold,
	}
}

// withDefaults resolves unset fields. The weight pair is unset only when
// both weights are zero; a single zero weight is honoured so a one-sided
// blend (0 / 1) stays expressible. NaN or negative fields are unset.
func (o FusionOptions) withDefaults(exifWeight, modelWeight float64) FusionOptions {
	exifUnset := invalidOption(o.ExifWeight)
	modelUnset := invalidOption(o.ModelWeight)
	if (exifUnset || o.ExifWeight == 0) && (modelUnset || o.ModelWeight == 0) {
		o.ExifWeight, o.ModelWeight = exifWeight, modelWeight
	} else {
		if exifUnset {
			o.ExifWeight = exifWeight
		}
		if modelUnset {
			o.ModelWeight = modelWeight
		}
	}
	if o.UncertaintyThreshold == 0 || invalidOption(o.UncertaintyThreshold) {
		o.UncertaintyThreshold = DefaultUncertaintyThreshold
	}
	return o
}

func invalidOption(v float64) bool {
	return v < 0 || math.IsNaN(v)
}

// FusionResult is the final verdict.
//
// All scores share the AI-likelihood scale except ExifScore, which is the
// scorer's realness score. FinalScore > 50 exactly when IsAI is set.
type FusionResult struct {
	IsAI        bool     `json:"is_ai"`
	IsUncertain bool     `json:"is_uncertain"`
	Override    bool     `json:"override"` // metadata override tier was used
	Confidence  float64  `json:"confidence"`
	ExifScore   float64  `json:"exif_score"`
	ModelScore  float64  `json:"model_score"`
	FinalScore  float64  `json:"final_score"`
	ExifWeight  float64  `json:"exif_weight,omitempty"`
	ModelWeight float64  `json:"model_weight,omitempty"`
	Reasoning   []string `json:"reasoning"`
}

// Fuse combines a metadata score with an optional classifier result.
// A nil classifier result is treated as maximal model-side uncertainty.
// Fuse is pure and never fails.
func Fuse(meta MetadataScore, cls *ClassifierResult, opts FusionOptions) FusionResult {
	opts = opts.withDefaults(DefaultExifWeight, DefaultModelWeight)
	cls = sanitizeClassifier(cls)

	// Copy so callers' MetadataScore.Reasoning is never aliased.
	reasoning := make([]string, 0, len(meta.Reasoning)+2)
	reasoning = append(reasoning, meta.Reasoning...)
	reasoning = append(reasoning, classifierReason(cls))

	modelScore := modelAIScore(cls)
	exifAIScore := clampFloat(100-float64(meta.Score), 0, 100)

	if meta.IsStronglyReal && meta.Score >= OverrideMinScore {
		return fuseOverride(meta, cls, modelScore, exifAIScore, reasoning)
	}
	return fuseBlend(meta, modelScore, exifAIScore, opts, reasoning)
}

func fuseOverride(meta MetadataScore, cls *ClassifierResult, modelScore, exifAIScore float64, reasoning []string) FusionResult {
	base := float64(meta.Score)
	boost := float64(min(overrideBoostPerIndicator*meta.Indicators.Count(), overrideMaxBoost))

	var penalty float64
	if cls != nil && cls.IsAI && cls.Confidence > overrideDisagreeThreshold {
		penalty = math.Min((cls.Confidence-overrideDisagreeThreshold)*overrideDisagreePenaltyRate, overrideMaxDisagreePenalty)
	}
	variance := float64(meta.Score % overrideScoreVarianceModulus)

	confidence := clampFloat(base+boost-penalty+variance, OverrideMinConfidence, OverrideMaxConfidence)

	reasoning = append(reasoning, fmt.Sprintf(
		"metadata override: strong capture evidence (score %d), classifier verdict not used", meta.Score))

	return FusionResult{
		IsAI:        false,
		IsUncertain: false,
		Override:    true,
		Confidence:  confidence,
		ExifScore:   float64(meta.Score),
		ModelScore:  modelScore,
		FinalScore:  exifAIScore,
		Reasoning:   reasoning,
	}
}

func fuseBlend(meta MetadataScore, modelScore, exifAIScore float64, opts FusionOptions, reasoning []string) FusionResult {
	exifWeight, modelWeight := opts.ExifWeight, opts.ModelWeight
	if meta.IsStronglyReal {
		exifWeight, modelWeight = StrongExifWeight, StrongModelWeight
	}

	finalScore := clampFloat(exifAIScore*exifWeight+modelScore*modelWeight, 0, 100)
	isAI := finalScore > undecidedScore

	confidence := math.Abs(finalScore-undecidedScore) * 2

	exifStrength := math.Abs(exifAIScore - undecidedScore)
	modelStrength := math.Abs(modelScore - undecidedScore)
	if (exifAIScore > undecidedScore) == (modelScore > undecidedScore) {
		avgStrength := (exifStrength + modelStrength) / 2
		confidence = math.Min(confidence+math.Min(avgStrength*agreementBoostRate, maxAgreementBoost), maxBlendConfidence)
	} else {
		gap := math.Abs(exifStrength - modelStrength)
		confidence = math.Max(confidence-math.Min(gap*disagreementPenaltyRate, maxDisagreementPenalty), minBlendConfidence)
	}

	variance := float64(meta.Indicators.Count()%blendVarianceModulus) * blendVarianceStep
	confidence = clampFloat(math.Min(confidence+variance, maxBlendConfidence), 0, 100)

	reasoning = append(reasoning, fmt.Sprintf(
		"final score: %.1f (%s, confidence: %.1f%%)", finalScore, labelFor(isAI), confidence))

	return FusionResult{
		IsAI:        isAI,
		IsUncertain: confidence < opts.UncertaintyThreshold,
		Confidence:  confidence,
		ExifScore:   float64(meta.Score),
		ModelScore:  modelScore,
		FinalScore:  finalScore,
		ExifWeight:  exifWeight,
		ModelWeight: modelWeight,
		Reasoning:   reasoning,
	}
}

// modelAIScore maps a classifier verdict onto the AI-likelihood scale.
func modelAIScore(cls *ClassifierResult) float64 {
	if cls == nil {
		return undecidedScore
	}
	if cls.IsAI {
		return cls.Confidence
	}
	return 100 - cls.Confidence
}

// sanitizeClassifier clamps confidence into [0,100]; NaN counts as no result.
func sanitizeClassifier(cls *ClassifierResult) *ClassifierResult {
	if cls == nil || math.IsNaN(cls.Confidence) {
		return nil
	}
	c := *cls
	c.Confidence = clampFloat(c.Confidence, 0, 100)
	return &c
}

func classifierReason(cls *ClassifierResult) string {
	if cls == nil {
		return "classifier: not run"
	}
	return fmt.Sprintf("classifier: %s (%.1f%%)", classifierLabel(cls.IsAI), cls.Confidence)
}

func classifierLabel(isAI bool) string {
	if isAI {
		return "AI generated"
	}
	return "real"
}

func labelFor(isAI bool) string {
	if isAI {
		return "AI"
	}
	return "real"
}
