package utils

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	nonWordRe    = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	titleCaser   = cases.Title(language.AmericanEnglish)
)

// RoundToNearest5 rounds to the nearest multiple of 5. Halves go to the even
// multiple, which keeps results stable for values such as 12.5.
func RoundToNearest5(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.RoundToEven(v/5) * 5
}

// Round rounds v to the given number of decimal places using banker's rounding.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).RoundBank(places).InexactFloat64()
}

// SafeFloat parses s as a float, returning def when it is empty or invalid.
func SafeFloat(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(v) {
		return def
	}
	return v
}

// NormalizeText trims and upper-cases text for case-insensitive comparison.
func NormalizeText(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeCustomerName lower-cases a company name, strips punctuation and
// collapses whitespace so "ACME, Inc." and "acme inc" compare equal.
func NormalizeCustomerName(name string) string {
	name = strings.ToLower(name)
	name = nonWordRe.ReplaceAllString(name, "")
	name = whitespaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// TitleCase converts a gazetteer place name such as "LA JUNTA" to "La Junta".
func TitleCase(s string) string {
	return titleCaser.String(strings.ToLower(strings.TrimSpace(s)))
}

// PadZip left-pads a postal code with zeros to 5 digits and truncates to 5.
func PadZip(zip string) string {
	zip = strings.TrimSpace(zip)
	for len(zip) < 5 {
		zip = "0" + zip
	}
	return zip[:5]
}

// Prefix returns the first n characters of s, or s when shorter.
func Prefix(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
