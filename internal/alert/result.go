package alert

import "strings"

// Recommendation is the classifier's judgment for a connection.
type Recommendation int

const (
	RecommendationUnknown Recommendation = iota
	RecommendationAllow
	RecommendationBlock
	RecommendationCaution
)

// String returns the lowercase recommendation name.
func (r Recommendation) String() string {
	switch r {
	case RecommendationAllow:
		return "allow"
	case RecommendationBlock:
		return "block"
	case RecommendationCaution:
		return "caution"
	default:
		return "unknown"
	}
}

// ParseRecommendation maps the classifier's wire value ("ALLOW", "BLOCK",
// "CAUTION", any case) to a Recommendation. Anything else is Unknown.
func ParseRecommendation(s string) Recommendation {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ALLOW":
		return RecommendationAllow
	case "BLOCK":
		return RecommendationBlock
	case "CAUTION":
		return RecommendationCaution
	default:
		return RecommendationUnknown
	}
}

// AnalysisResult is the terminal outcome of classifying one alert. It is
// created empty the instant an alert is accepted and updated exactly once
// by the classification client — success, partial parse, and terminal
// failure all produce a displayable result.
type AnalysisResult struct {
	AlertID        string         `json:"alert_id"`
	Recommendation Recommendation `json:"recommendation"`
	Confidence     float64        `json:"confidence"` // 0.0 – 1.0
	Summary        string         `json:"summary"`
	Details        string         `json:"details"`
	Risks          []string       `json:"risks,omitempty"`
	KnownService   string         `json:"known_service,omitempty"`
}

// NewAnalysisResult returns the initial empty result for an alert.
func NewAnalysisResult(alertID string) AnalysisResult {
	return AnalysisResult{
		AlertID:        alertID,
		Recommendation: RecommendationUnknown,
	}
}
