package grabber

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestParsePercent tests percentage parsing.
func TestParsePercent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    string
		expected float64
	}{
		{name: "plain", value: "37.2%", expected: 37.2},
		{name: "padded", value: "  37.2%", expected: 37.2},
		{name: "colored", value: "\x1b[0;94m 37.2%\x1b[0m", expected: 37.2},
		{name: "without sign", value: "37.2", expected: 37.2},
		{name: "complete", value: "100%", expected: 100},
		{name: "empty", value: "", expected: 0},
		{name: "not available", value: "NA", expected: 0},
		{name: "garbage", value: "abc%", expected: 0},
		{name: "nan", value: "NaN%", expected: 0},
		{name: "infinity", value: "Inf", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.InDelta(t, tt.expected, ParsePercent(tt.value), 1e-9)
		})
	}
}

// TestTotalPercentage tests playlist progress.
func TestTotalPercentage(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 60.0, TotalPercentage(2, 5), 1e-9)
	assert.InDelta(t, 50.0, TotalPercentage(0, 2), 1e-9)
	assert.InDelta(t, 100.0, TotalPercentage(1, 2), 1e-9)
	assert.InDelta(t, 100.0, TotalPercentage(7, 2), 1e-9)
	assert.InDelta(t, 0.0, TotalPercentage(0, 0), 1e-9)
}
