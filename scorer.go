package imagetruth

import (
	"strings"
)

// Metadata evidence points. Empirically chosen, tune here rather than in ScoreMetadata.
const (
	PointsCameraIdentity      = 35
	PointsGPS                 = 25
	PointsTimestamp           = 15
	PointsOrientation         = 5
	PointsCameraSoftware      = 10
	PointsCaptureSettings     = 20
	PenaltySuspiciousSoftware = 40

	// LikelyRealScore is the score at or above which metadata alone looks real.
	LikelyRealScore = 60

	// EmptyMetadataConfidence is reported when there is no metadata at all.
	// It is deliberately higher than the indicator formula would give.
	EmptyMetadataConfidence = 80

	baseMetadataConfidence   = 50
	perIndicatorConfidence   = 10
	maxMetadataConfidence    = 95
	minScore, maxScore       = 0, 100
	reasonNoMetadata         = "no metadata at all"
	reasonNoCameraIdentity   = "no camera identity"
	reasonNoCaptureSettings  = "no capture settings"
	reasonGPS                = "has GPS location"
	reasonTimestamp          = "has capture timestamp"
	reasonCameraSoftware     = "camera/photo software detected"
	reasonCaptureSettings    = "has capture settings (ISO, aperture, etc.)"
	reasonCameraIdentityHead = "camera identity: "
	reasonSuspiciousHead     = "suspicious software detected: "
)

// Indicators are the independent evidence flags found in capture metadata.
type Indicators struct {
	HasCameraIdentity  bool `json:"has_camera_identity"`
	HasGPS             bool `json:"has_gps"`
	HasTimestamp       bool `json:"has_timestamp"`
	HasSoftware        bool `json:"has_software"`
	HasOrientation     bool `json:"has_orientation"`
	SuspiciousSoftware bool `json:"suspicious_software"`
	HasCaptureSettings bool `json:"has_capture_settings"`
}

// Count returns how many indicators are set.
func (ind Indicators) Count() int {
	n := 0
	for _, f := range []bool{
		ind.HasCameraIdentity,
		ind.HasGPS,
		ind.HasTimestamp,
		ind.HasSoftware,
		ind.HasOrientation,
		ind.SuspiciousSoftware,
		ind.HasCaptureSettings,
	} {
		if f {
			n++
		}
	}
	return n
}

// MetadataScore is the scorer's verdict on one metadata map.
type MetadataScore struct {
	Score          int        `json:"score"` // 0-100, higher = more likely camera-captured
	IsLikelyReal   bool       `json:"is_likely_real"`
	IsStronglyReal bool       `json:"is_strongly_real"` // strong enough to override the classifier
	Confidence     int        `json:"confidence"`       // 50-95, or EmptyMetadataConfidence
	Indicators     Indicators `json:"indicators"`
	Reasoning      []string   `json:"reasoning"`
}

// ScoreMetadata computes a realness score from capture metadata.
// Pure and total: a nil or empty map yields the no-evidence result.
func ScoreMetadata(m MetadataMap) MetadataScore {
	if len(m) == 0 {
		return MetadataScore{
			Score:      0,
			Confidence: EmptyMetadataConfidence,
			Reasoning:  []string{reasonNoMetadata},
		}
	}

	var (
		ind       Indicators
		score     int
		reasoning []string
	)

	if m.HasAny(CameraIdentityKeys...) {
		ind.HasCameraIdentity = true
		score += PointsCameraIdentity
		reasoning = append(reasoning, reasonCameraIdentityHead+cameraDetail(m))
	} else {
		reasoning = append(reasoning, reasonNoCameraIdentity)
	}

	if m.HasAny(GPSKeys...) {
		ind.HasGPS = true
		score += PointsGPS
		reasoning = append(reasoning, reasonGPS)
	}

	if m.HasAny(TimestampKeys...) {
		ind.HasTimestamp = true
		score += PointsTimestamp
		reasoning = append(reasoning, reasonTimestamp)
	}

	if m.HasAny(OrientationKeys...) {
		ind.HasOrientation = true
		score += PointsOrientation
	}

	if m.HasAny(SoftwareKeys...) {
		ind.HasSoftware = true
		software := strings.ToLower(m.String("Software") + " " + m.String("ProcessingSoftware"))
		switch {
		case IsAIGeneratorSoftware(software):
			ind.SuspiciousSoftware = true
			score -= PenaltySuspiciousSoftware
			reasoning = append(reasoning, reasonSuspiciousHead+firstNonEmpty(m.String("Software"), m.String("ProcessingSoftware")))
		case strings.Contains(software, "photo") || strings.Contains(software, "camera"):
			score += PointsCameraSoftware
			reasoning = append(reasoning, reasonCameraSoftware)
		}
	}

	if m.HasAny(CaptureSettingsKeys...) {
		ind.HasCaptureSettings = true
		score += PointsCaptureSettings
		reasoning = append(reasoning, reasonCaptureSettings)
	} else {
		reasoning = append(reasoning, reasonNoCaptureSettings)
	}

	score = clampInt(score, minScore, maxScore)

	return MetadataScore{
		Score:          score,
		IsLikelyReal:   score >= LikelyRealScore,
		IsStronglyReal: isStronglyReal(ind),
		Confidence:     min(maxMetadataConfidence, baseMetadataConfidence+perIndicatorConfidence*ind.Count()),
		Indicators:     ind,
		Reasoning:      reasoning,
	}
}

// isStronglyReal requires camera identity backed by either capture settings
// plus a timestamp, or by GPS. Generator software always disqualifies.
func isStronglyReal(ind Indicators) bool {
	if ind.SuspiciousSoftware || !ind.HasCameraIdentity {
		return false
	}
	return (ind.HasCaptureSettings && ind.HasTimestamp) || ind.HasGPS
}

// cameraDetail returns "Make Model", falling back to the lens fields.
func cameraDetail(m MetadataMap) string {
	if d := strings.TrimSpace(m.String("Make") + " " + m.String("Model")); d != "" {
		return d
	}
	return strings.TrimSpace(m.String("LensMake") + " " + m.String("LensModel"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func clampFloat(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
