package grabber

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ansiEscapePattern matches terminal control sequences the engine embeds in formatted fields.
var ansiEscapePattern = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)

// ParsePercent converts a formatted percentage such as " 37.2%" into 37.2.
// Color sequences and the percent sign are ignored; malformed input yields 0.
func ParsePercent(value string) float64 {
	value = ansiEscapePattern.ReplaceAllString(value, "")
	value = strings.TrimSpace(strings.ReplaceAll(value, "%", ""))

	percentage, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(percentage) || math.IsInf(percentage, 0) {
		return 0
	}

	return percentage
}

// TotalPercentage returns the share of a playlist done once the 0-based item index completed.
func TotalPercentage(completedIndex, declaredLength int) float64 {
	if declaredLength <= 0 {
		return 0
	}

	return clampPercentage(float64(completedIndex+1) / float64(declaredLength) * 100)
}

func clampPercentage(percentage float64) float64 {
	switch {
	case math.IsNaN(percentage), percentage < 0:
		return 0
	case percentage > 100:
		return 100
	default:
		return percentage
	}
}
