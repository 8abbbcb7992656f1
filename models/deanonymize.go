package models

import (
	"time"
)

// Deanonymization methods, ordered by confidence.
const (
	MethodDirectTracking     = "direct_tracking"
	MethodSessionCorrelation = "session_correlation"
	MethodIPCorrelation      = "ip_correlation"
	MethodBrowserFingerprint = "browser_fingerprint"
	MethodNone               = "none"
)

// TrackingAnalysis reports which stored signal identified the author and
// the fixed confidence label attached to that signal.
type TrackingAnalysis struct {
	Confidence string    `json:"confidence"`
	Method     string    `json:"method"`
	Timestamp  time.Time `json:"timestamp"`
}

// AnalyzeTracking selects the deanonymization method by fixed precedence:
// direct identity record, then session, then IP, then fingerprint. The
// precedence is the contract; confidences are labels, not probabilities.
func AnalyzeTracking(realAuthorID uint, sessionID, ipAddress, fingerprint string) TrackingAnalysis {
	analysis := TrackingAnalysis{
		Confidence: "unknown",
		Method:     MethodNone,
		Timestamp:  time.Now().UTC(),
	}

	switch {
	case realAuthorID != 0:
		analysis.Confidence = "100%"
		analysis.Method = MethodDirectTracking
	case sessionID != "":
		analysis.Confidence = "95%"
		analysis.Method = MethodSessionCorrelation
	case ipAddress != "":
		analysis.Confidence = "85%"
		analysis.Method = MethodIPCorrelation
	case fingerprint != "":
		analysis.Confidence = "70%"
		analysis.Method = MethodBrowserFingerprint
	}

	return analysis
}

// DeanonymizedPost is a post joined with its real author's identity.
type DeanonymizedPost struct {
	Post
	RealAuthorName  string `json:"realAuthorName"`
	RealAuthorEmail string `json:"realAuthorEmail"`
}

// DeanonymizedComment is a comment joined with its real author's identity.
type DeanonymizedComment struct {
	Comment
	RealAuthorName  string `json:"realAuthorName"`
	RealAuthorEmail string `json:"realAuthorEmail"`
}
