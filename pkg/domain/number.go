package domain

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// decimalPattern is the accepted numeric spelling: optional sign, decimal
// digits with an optional point, optional exponent.
var decimalPattern = regexp.MustCompile(`^[+-]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)(?:[eE][+-]?[0-9]+)?$`)

var (
	errNotDecimal = errors.New("not a decimal number")
	errNotFinite  = errors.New("not a finite number")
)

// ParseNumber parses raw as a finite real number. Surrounding whitespace is
// ignored. NaN, infinities, hex floats, digit separators and values that
// overflow float64 are rejected.
func ParseNumber(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if !decimalPattern.MatchString(s) {
		return 0, errNotDecimal
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errNotFinite
	}
	return v, nil
}

// IsFinite reports whether v is neither NaN nor an infinity.
func IsFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}
