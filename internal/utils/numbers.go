package utils

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Thousands rounds v to a whole number and renders it with grouping separators ("10,000").
func Thousands(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return printer.Sprintf("%d", int64(math.Round(v)))
}

// Percent renders a fraction as a percentage with one decimal ("85.5%").
func Percent(frac float64) string {
	return printer.Sprintf("%.1f%%", frac*100)
}
