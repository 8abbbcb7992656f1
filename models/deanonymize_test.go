package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeTracking_Precedence(t *testing.T) {
	tests := []struct {
		name         string
		realAuthorID uint
		sessionID    string
		ipAddress    string
		fingerprint  string
		method       string
		confidence   string
	}{
		{
			name:         "direct identity beats everything",
			realAuthorID: 7, sessionID: "s", ipAddress: "ip", fingerprint: "fp",
			method: MethodDirectTracking, confidence: "100%",
		},
		{
			name:      "session beats IP and fingerprint",
			sessionID: "s", ipAddress: "ip", fingerprint: "fp",
			method: MethodSessionCorrelation, confidence: "95%",
		},
		{
			name:      "IP beats fingerprint",
			ipAddress: "ip", fingerprint: "fp",
			method: MethodIPCorrelation, confidence: "85%",
		},
		{
			name:        "fingerprint alone",
			fingerprint: "fp",
			method:      MethodBrowserFingerprint, confidence: "70%",
		},
		{
			name:   "no signals",
			method: MethodNone, confidence: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := AnalyzeTracking(tt.realAuthorID, tt.sessionID, tt.ipAddress, tt.fingerprint)
			assert.Equal(t, tt.method, analysis.Method)
			assert.Equal(t, tt.confidence, analysis.Confidence)
			assert.False(t, analysis.Timestamp.IsZero())
		})
	}
}
