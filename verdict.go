package imagetruth

// Verdict is the three-state outcome shown to the user.
type Verdict int

const (
	VerdictReal      Verdict = iota // camera-captured
	VerdictAI                       // synthetically generated
	VerdictUncertain                // confidence below threshold, not actionable
)

func (v Verdict) String() string {
	switch v {
	case VerdictReal:
		return "real"
	case VerdictAI:
		return "ai"
	default:
		return "uncertain"
	}
}

// Label returns the badge text for the verdict.
func (v Verdict) Label() string {
	switch v {
	case VerdictReal:
		return "REAL"
	case VerdictAI:
		return "AI GEN"
	default:
		return "UNCERTAIN"
	}
}

// ParseVerdict is the inverse of Verdict.String. Unknown values map to VerdictUncertain.
func ParseVerdict(s string) Verdict {
	switch s {
	case "real":
		return VerdictReal
	case "ai":
		return VerdictAI
	default:
		return VerdictUncertain
	}
}

// VerdictOf maps a fusion result to its display verdict. Uncertainty wins
// over the AI/real label.
func VerdictOf(r FusionResult) Verdict {
	switch {
	case r.IsUncertain:
		return VerdictUncertain
	case r.IsAI:
		return VerdictAI
	default:
		return VerdictReal
	}
}

// MarshalText encodes the verdict as its String form.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText decodes a String form; unknown text becomes VerdictUncertain.
func (v *Verdict) UnmarshalText(text []byte) error {
	*v = ParseVerdict(string(text))
	return nil
}
