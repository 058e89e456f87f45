// Package validate holds the field validators used by the tag editor.
package validate

import (
	"regexp"
	"strconv"
	"unicode/utf16"

	"github.com/vbonduro/exifedit/internal/domain"
)

// DateLayout is the EXIF date/time layout, yyyy:MM:dd HH:mm:ss.
const DateLayout = "2006:01:02 15:04:05"

const minTextLen = 2

// numericPattern rejects any latin letter. Digits are not required, so
// values such as "41/1,24/1,3000/100" or "-" pass.
var numericPattern = regexp.MustCompile(`^[^a-zA-Z]+$`)

// datePattern fixes every field width. Fractional seconds and one-digit
// hours do not match.
var datePattern = regexp.MustCompile(`^(\d{4}):(\d{2}):(\d{2}) (\d{2}):(\d{2}):(\d{2})$`)

// Length reports whether s has at least two characters, counted in UTF-16
// code units so a single emoji passes.
func Length(s string) bool {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
		if n >= minTextLen {
			return true
		}
	}
	return false
}

// Numeric reports whether s is non-empty and contains no latin letters.
func Numeric(s string) bool {
	return numericPattern.MatchString(s)
}

// Date reports whether s is an EXIF date/time. Day 29 to 31 is accepted in
// every month; writers clamp it to the last day of the month.
func Date(s string) bool {
	m := datePattern.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	limits := [6][2]int{{1, 9999}, {1, 12}, {1, 31}, {0, 23}, {0, 59}, {0, 59}}
	for i, lim := range limits {
		v, err := strconv.Atoi(m[i+1])
		if err != nil || v < lim[0] || v > lim[1] {
			return false
		}
	}
	return true
}

// Func is a single field validator.
type Func func(string) bool

// ForTag returns the validator that applies to the named field.
func ForTag(name domain.TagName) Func {
	switch name {
	case domain.TagDateTime:
		return Date
	case domain.TagLatitude, domain.TagLongitude:
		return Numeric
	default:
		return Length
	}
}
