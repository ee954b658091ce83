package testcase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePriority(t *testing.T) {
	tests := []struct {
		raw  string
		want Priority
	}{
		{"critical", PriorityCritical},
		{"High", PriorityHigh},
		{"MEDIUM", PriorityMedium},
		{"low", PriorityLow},
		{"high - fix before release", PriorityHigh},
		{"**Critical**", PriorityCritical},
		{"urgent", PriorityMedium},
		{"", PriorityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePriority(tt.raw))
		})
	}
}

func TestRecordValid(t *testing.T) {
	ok := Record{ID: "TC1", Title: "t", Steps: []string{"s"}, ExpectedResults: "e"}
	assert.True(t, ok.Valid())

	noSteps := ok
	noSteps.Steps = nil
	assert.False(t, noSteps.Valid())

	noExpected := ok
	noExpected.ExpectedResults = ""
	assert.False(t, noExpected.Valid())
}
