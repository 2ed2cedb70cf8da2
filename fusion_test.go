package imagetruth

import (
	"math"
	"reflect"
	"slices"
	"testing"
)

const floatTolerance = 1e-9

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func TestFuse_ScenarioA_Override(t *testing.T) {
	t.Parallel()

	meta := ScoreMetadata(scenarioAMetadata())
	got := Fuse(meta, &ClassifierResult{IsAI: true, Confidence: 80}, DefaultFusionOptions())

	if !got.Override {
		t.Fatal("Override = false, want true")
	}
	if got.IsAI || got.IsUncertain {
		t.Errorf("IsAI=%v IsUncertain=%v, want both false", got.IsAI, got.IsUncertain)
	}
	// 95 base + 12 boost - 2 penalty + 0 variance, clamped.
	if got.Confidence != 95 {
		t.Errorf("Confidence = %v, want 95", got.Confidence)
	}
	if got.ExifScore != 95 || got.ModelScore != 80 || got.FinalScore != 5 {
		t.Errorf("scores = exif %v model %v final %v, want 95/80/5", got.ExifScore, got.ModelScore, got.FinalScore)
	}
	if got.ExifWeight != 0 || got.ModelWeight != 0 {
		t.Errorf("weights = %v/%v, want unset in override tier", got.ExifWeight, got.ModelWeight)
	}
	last := got.Reasoning[len(got.Reasoning)-1]
	if want := "metadata override: strong capture evidence (score 95), classifier verdict not used"; last != want {
		t.Errorf("last reasoning = %q, want %q", last, want)
	}
}

func TestFuse_ScenarioB_NoMetadata(t *testing.T) {
	t.Parallel()

	got := Fuse(ScoreMetadata(nil), &ClassifierResult{IsAI: true, Confidence: 90}, FusionOptions{
		ExifWeight:           0.25,
		ModelWeight:          0.75,
		UncertaintyThreshold: 60,
	})

	if got.Override {
		t.Fatal("Override = true, want weighted blend")
	}
	if !approxEqual(got.FinalScore, 92.5) {
		t.Errorf("FinalScore = %v, want 92.5", got.FinalScore)
	}
	if !approxEqual(got.Confidence, 89.5) {
		t.Errorf("Confidence = %v, want 89.5", got.Confidence)
	}
	if !got.IsAI || got.IsUncertain {
		t.Errorf("IsAI=%v IsUncertain=%v, want true/false", got.IsAI, got.IsUncertain)
	}
	if VerdictOf(got) != VerdictAI {
		t.Errorf("VerdictOf = %v, want ai", VerdictOf(got))
	}

	want := []string{
		"no metadata at all",
		"classifier: AI generated (90.0%)",
		"final score: 92.5 (AI, confidence: 89.5%)",
	}
	if !reflect.DeepEqual(got.Reasoning, want) {
		t.Errorf("Reasoning = %q, want %q", got.Reasoning, want)
	}
}

func TestFuse_ScenarioC_GeneratorSoftware(t *testing.T) {
	t.Parallel()

	meta := ScoreMetadata(MetadataMap{"Make": "Canon", "Model": "EOS R5", "Software": "Midjourney v6"})
	got := Fuse(meta, &ClassifierResult{IsAI: true, Confidence: 70}, DefaultFusionOptions())

	if got.Override {
		t.Fatal("Override = true, generator software must never take the override tier")
	}
	if !got.IsAI {
		t.Errorf("IsAI = false, want true (final %v)", got.FinalScore)
	}
}

func TestFuse_Blend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		meta          MetadataScore
		cls           *ClassifierResult
		opts          FusionOptions
		wantFinal     float64
		wantConf      float64
		wantAI        bool
		wantUncertain bool
		wantWeights   [2]float64
	}{
		{
			name:          "no classifier no metadata",
			meta:          ScoreMetadata(nil),
			cls:           nil,
			opts:          DefaultFusionOptions(),
			wantFinal:     65,
			wantConf:      30, // disagreement penalty floors at 30
			wantAI:        true,
			wantUncertain: true,
			wantWeights:   [2]float64{0.3, 0.7},
		},
		{
			name:          "strongly real below override uses strong weights",
			meta:          ScoreMetadata(MetadataMap{"Make": "Canon", "GPSLatitude": 1.5}),
			cls:           &ClassifierResult{IsAI: true, Confidence: 90},
			opts:          DefaultFusionOptions(),
			wantFinal:     57.5,
			wantConf:      34,
			wantAI:        true,
			wantUncertain: true,
			wantWeights:   [2]float64{0.65, 0.35},
		},
		{
			name:          "strongly real below override agreeing real",
			meta:          ScoreMetadata(MetadataMap{"Make": "Canon", "GPSLatitude": 1.5}),
			cls:           &ClassifierResult{IsAI: false, Confidence: 90},
			opts:          DefaultFusionOptions(),
			wantFinal:     29.5,
			wantConf:      47.5,
			wantAI:        false,
			wantUncertain: true,
			wantWeights:   [2]float64{0.65, 0.35},
		},
		{
			name:          "threshold is configurable",
			meta:          ScoreMetadata(MetadataMap{"Make": "Canon", "GPSLatitude": 1.5}),
			cls:           &ClassifierResult{IsAI: false, Confidence: 90},
			opts:          FusionOptions{UncertaintyThreshold: 40},
			wantFinal:     29.5,
			wantConf:      47.5,
			wantAI:        false,
			wantUncertain: false,
			wantWeights:   [2]float64{0.65, 0.35},
		},
		{
			name:          "exactly 50 is not AI",
			meta:          MetadataScore{Score: 50, Confidence: 50},
			cls:           &ClassifierResult{IsAI: false, Confidence: 50},
			opts:          DefaultFusionOptions(),
			wantFinal:     50,
			wantConf:      0,
			wantAI:        false,
			wantUncertain: true,
			wantWeights:   [2]float64{0.3, 0.7},
		},
		{
			name:          "out of range classifier confidence is clamped",
			meta:          ScoreMetadata(nil),
			cls:           &ClassifierResult{IsAI: true, Confidence: 150},
			opts:          FusionOptions{ExifWeight: 0.25, ModelWeight: 0.75},
			wantFinal:     100,
			wantConf:      98,
			wantAI:        true,
			wantUncertain: false,
			wantWeights:   [2]float64{0.25, 0.75},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Fuse(tc.meta, tc.cls, tc.opts)
			if got.Override {
				t.Fatal("Override = true, want weighted blend")
			}
			if !approxEqual(got.FinalScore, tc.wantFinal) {
				t.Errorf("FinalScore = %v, want %v", got.FinalScore, tc.wantFinal)
			}
			if !approxEqual(got.Confidence, tc.wantConf) {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tc.wantConf)
			}
			if got.IsAI != tc.wantAI {
				t.Errorf("IsAI = %v, want %v", got.IsAI, tc.wantAI)
			}
			if got.IsUncertain != tc.wantUncertain {
				t.Errorf("IsUncertain = %v, want %v", got.IsUncertain, tc.wantUncertain)
			}
			if got.ExifWeight != tc.wantWeights[0] || got.ModelWeight != tc.wantWeights[1] {
				t.Errorf("weights = %v/%v, want %v", got.ExifWeight, got.ModelWeight, tc.wantWeights)
			}
		})
	}
}

func TestFuse_OverrideConfidence(t *testing.T) {
	t.Parallel()

	// Score 70, three indicators: base 70, boost 9, variance 0.
	meta := ScoreMetadata(MetadataMap{
		"Make":             "Sony",
		"ISOSpeedRatings":  200,
		"DateTimeOriginal": "2020:02:02 02:02:02",
	})
	if meta.Score != 70 || !meta.IsStronglyReal {
		t.Fatalf("fixture score=%d strong=%v, want 70/true", meta.Score, meta.IsStronglyReal)
	}

	tests := []struct {
		name string
		cls  *ClassifierResult
		want float64
	}{
		{name: "no classifier", cls: nil, want: 79},
		{name: "classifier agrees", cls: &ClassifierResult{IsAI: false, Confidence: 99}, want: 79},
		{name: "weak AI disagreement has no penalty", cls: &ClassifierResult{IsAI: true, Confidence: 70}, want: 79},
		{name: "strong AI disagreement", cls: &ClassifierResult{IsAI: true, Confidence: 90}, want: 75},
		{name: "certain AI disagreement", cls: &ClassifierResult{IsAI: true, Confidence: 100}, want: 73},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Fuse(meta, tc.cls, DefaultFusionOptions())
			if !got.Override {
				t.Fatal("Override = false, want true")
			}
			if !approxEqual(got.Confidence, tc.want) {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tc.want)
			}
			if got.IsAI || got.IsUncertain {
				t.Errorf("IsAI=%v IsUncertain=%v, override must be real and certain", got.IsAI, got.IsUncertain)
			}
		})
	}
}

func TestFuse_ZeroOptionsUseDefaults(t *testing.T) {
	t.Parallel()

	meta := ScoreMetadata(MetadataMap{"Software": "GIMP"})
	cls := &ClassifierResult{IsAI: false, Confidence: 75}

	got := Fuse(meta, cls, FusionOptions{})
	want := Fuse(meta, cls, DefaultFusionOptions())
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Fuse with zero options = %+v, want %+v", got, want)
	}

	nan := Fuse(meta, cls, FusionOptions{ExifWeight: math.NaN(), ModelWeight: math.NaN(), UncertaintyThreshold: math.NaN()})
	if !reflect.DeepEqual(nan, want) {
		t.Errorf("Fuse with NaN options = %+v, want %+v", nan, want)
	}
}

func TestFusionOptions_WithDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   FusionOptions
		want FusionOptions
	}{
		{name: "zero value", in: FusionOptions{}, want: FusionOptions{0.3, 0.7, 60}},
		{name: "explicit", in: FusionOptions{0.4, 0.6, 75}, want: FusionOptions{0.4, 0.6, 75}},
		{name: "model only", in: FusionOptions{0, 1, 60}, want: FusionOptions{0, 1, 60}},
		{name: "metadata only", in: FusionOptions{1, 0, 60}, want: FusionOptions{1, 0, 60}},
		{name: "threshold only", in: FusionOptions{UncertaintyThreshold: 70}, want: FusionOptions{0.3, 0.7, 70}},
		{name: "negative weight", in: FusionOptions{-1, 0.5, 60}, want: FusionOptions{0.3, 0.5, 60}},
		{name: "NaN with zero", in: FusionOptions{math.NaN(), 0, 0}, want: FusionOptions{0.3, 0.7, 60}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.in.withDefaults(DefaultExifWeight, DefaultModelWeight); got != tc.want {
				t.Errorf("withDefaults(%+v) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}

func TestFuse_SingleZeroWeightIsHonoured(t *testing.T) {
	t.Parallel()

	meta := ScoreMetadata(MetadataMap{"Software": "GIMP"})
	cls := &ClassifierResult{IsAI: false, Confidence: 75}

	got := Fuse(meta, cls, FusionOptions{ExifWeight: 0, ModelWeight: 1})
	if got.ExifWeight != 0 || got.ModelWeight != 1 {
		t.Errorf("weights = %v/%v, want 0/1", got.ExifWeight, got.ModelWeight)
	}
	// Only the classifier's 25 counts; the default blend would give 47.5.
	if !approxEqual(got.FinalScore, 25) {
		t.Errorf("FinalScore = %v, want 25", got.FinalScore)
	}
}

func TestFuse_NaNClassifierIsNoResult(t *testing.T) {
	t.Parallel()

	meta := ScoreMetadata(nil)
	got := Fuse(meta, &ClassifierResult{IsAI: true, Confidence: math.NaN()}, DefaultFusionOptions())
	want := Fuse(meta, nil, DefaultFusionOptions())
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Fuse with NaN confidence = %+v, want %+v", got, want)
	}
}

func TestFuse_DoesNotAliasReasoning(t *testing.T) {
	t.Parallel()

	meta := ScoreMetadata(nil)
	meta.Reasoning = slices.Grow(meta.Reasoning, 8)
	before := slices.Clone(meta.Reasoning[:cap(meta.Reasoning)])

	got := Fuse(meta, &ClassifierResult{IsAI: true, Confidence: 90}, DefaultFusionOptions())
	got.Reasoning[0] = "mutated"

	if meta.Reasoning[0] != "no metadata at all" {
		t.Errorf("meta.Reasoning[0] = %q, caller slice was aliased", meta.Reasoning[0])
	}
	if after := meta.Reasoning[:cap(meta.Reasoning)]; !slices.Equal(before, after) {
		t.Errorf("meta.Reasoning backing array changed: %q -> %q", before, after)
	}
}

func TestFuse_Properties(t *testing.T) {
	t.Parallel()

	metas := []MetadataMap{
		nil,
		{"Orientation": 1},
		{"Software": "Midjourney"},
		{"Make": "Canon", "Software": "Stable Diffusion"},
		{"Make": "Canon", "GPSLatitude": 1.0},
		{"Make": "Canon", "FNumber": 1.8, "DateTime": "2020:01:01 00:00:00"},
		scenarioAMetadata(),
		{"GPSAltitude": 3.0, "Flash": 16, "Software": "Camera"},
	}
	classifiers := []*ClassifierResult{nil}
	for _, conf := range []float64{0, 25, 50, 51, 70, 71, 90, 100} {
		classifiers = append(classifiers,
			&ClassifierResult{IsAI: true, Confidence: conf},
			&ClassifierResult{IsAI: false, Confidence: conf},
		)
	}
	optionSets := []FusionOptions{
		DefaultFusionOptions(),
		{ExifWeight: 0.25, ModelWeight: 0.75, UncertaintyThreshold: 60},
		{ExifWeight: 0.5, ModelWeight: 0.5, UncertaintyThreshold: 80},
	}

	for _, m := range metas {
		meta := ScoreMetadata(m)
		for _, cls := range classifiers {
			for _, opts := range optionSets {
				got := Fuse(meta, cls, opts)

				if got.IsAI != (got.FinalScore > 50) {
					t.Fatalf("meta=%v cls=%+v: IsAI=%v with FinalScore=%v", m, cls, got.IsAI, got.FinalScore)
				}
				if got.Confidence < 0 || got.Confidence > 100 || got.FinalScore < 0 || got.FinalScore > 100 {
					t.Fatalf("meta=%v cls=%+v: out of range %+v", m, cls, got)
				}
				if meta.IsStronglyReal && meta.Score >= OverrideMinScore {
					if !got.Override || got.IsAI || got.IsUncertain {
						t.Fatalf("meta=%v cls=%+v: override tier violated %+v", m, cls, got)
					}
					if got.Confidence < OverrideMinConfidence || got.Confidence > OverrideMaxConfidence {
						t.Fatalf("meta=%v cls=%+v: override confidence %v outside [65,95]", m, cls, got.Confidence)
					}
				} else {
					if got.Override {
						t.Fatalf("meta=%v cls=%+v: unexpected override", m, cls)
					}
					if got.IsUncertain != (got.Confidence < opts.UncertaintyThreshold) {
						t.Fatalf("meta=%v cls=%+v: IsUncertain=%v with confidence %v", m, cls, got.IsUncertain, got.Confidence)
					}
				}
				if !reflect.DeepEqual(got, Fuse(meta, cls, opts)) {
					t.Fatalf("meta=%v cls=%+v: Fuse not deterministic", m, cls)
				}
			}
		}
	}
}
