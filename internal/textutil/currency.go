package textutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrNoAmount is returned when a string carries no digits.
var ErrNoAmount = errors.New("no amount found")

// Pay intervals detected from salary text.
const (
	IntervalYearly  = "yearly"
	IntervalMonthly = "monthly"
	IntervalWeekly  = "weekly"
	IntervalHourly  = "hourly"
)

// ParseCurrency turns a human salary fragment such as "$50,000", "€45.5K" or
// "120k/yr" into a number.
func ParseCurrency(raw string) (float64, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}

	multiplier := 1.0
	var digits strings.Builder
	prevDigit := false
	for _, r := range s {
		switch {
		case unicode.IsDigit(r), r == '.', r == ',':
			digits.WriteRune(r)
			prevDigit = unicode.IsDigit(r)
			continue
		case r == 'k' && prevDigit:
			multiplier = 1_000
		case r == 'm' && prevDigit:
			multiplier = 1_000_000
		}
		prevDigit = false
	}
	num := normalizeSeparators(digits.String())
	if num == "" {
		return 0, fmt.Errorf("parse currency %q: %w", raw, ErrNoAmount)
	}
	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("parse currency %q: %w", raw, err)
	}
	return value * multiplier, nil
}

// normalizeSeparators resolves "," and "." into a plain decimal string. A
// group of exactly three digits after the last separator groups thousands;
// anything else after it is the decimal part.
func normalizeSeparators(s string) string {
	s = strings.Trim(s, ".,")
	last := strings.LastIndexAny(s, ".,")
	if last < 0 {
		return s
	}
	intPart := strings.NewReplacer(",", "", ".", "").Replace(s[:last])
	frac := s[last+1:]
	if len(frac) == 3 {
		return intPart + frac
	}
	return intPart + "." + frac
}

// DetectInterval reports the pay period named in salary text, or "".
func DetectInterval(raw string) string {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "/yr"), strings.Contains(s, "/year"), strings.Contains(s, "per year"), strings.Contains(s, "annual"):
		return IntervalYearly
	case strings.Contains(s, "/mo"), strings.Contains(s, "per month"):
		return IntervalMonthly
	case strings.Contains(s, "/wk"), strings.Contains(s, "/week"), strings.Contains(s, "per week"):
		return IntervalWeekly
	case strings.Contains(s, "/hr"), strings.Contains(s, "/hour"), strings.Contains(s, "per hour"):
		return IntervalHourly
	default:
		return ""
	}
}
