package secagent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityFromLabel(t *testing.T) {
	assert.Equal(t, SeverityCritical, SeverityFromLabel("critical"))
	assert.Equal(t, SeverityHigh, SeverityFromLabel(" HIGH "))
	assert.Equal(t, SeverityMedium, SeverityFromLabel("Moderate"))
	assert.Equal(t, SeverityInfo, SeverityFromLabel("informational"))
	assert.Equal(t, SeverityLow, SeverityFromLabel("bogus"))
	assert.Equal(t, SeverityLow, SeverityFromLabel(""))
}

func TestSeverityFromScoreBoundaries(t *testing.T) {
	assert.Equal(t, SeverityCritical, SeverityFromScore(9.0))
	assert.Equal(t, SeverityHigh, SeverityFromScore(8.9))
	assert.Equal(t, SeverityHigh, SeverityFromScore(7.0))
	assert.Equal(t, SeverityMedium, SeverityFromScore(6.9))
	assert.Equal(t, SeverityMedium, SeverityFromScore(4.0))
	assert.Equal(t, SeverityLow, SeverityFromScore(3.9))
}

func TestConfidenceFromLabel(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, ConfidenceFromLabel("high"))
	assert.Equal(t, ConfidenceMedium, ConfidenceFromLabel("MEDIUM"))
	assert.Equal(t, ConfidenceLow, ConfidenceFromLabel("low"))
	assert.Equal(t, ConfidenceLow, ConfidenceFromLabel("unknown"))
	assert.Equal(t, ConfidenceLow, ConfidenceFromLabel(""))
}
