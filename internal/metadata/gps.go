package metadata

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	MaxLatitude  = 90.0
	MaxLongitude = 180.0
)

// secondsDenominator matches the precision the camera-side libraries use
// when they convert decimal degrees to rationals.
const secondsDenominator = 10000000

// Rational is an unsigned EXIF RATIONAL value.
type Rational struct {
	Num uint32
	Den uint32
}

func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Coordinate is a GPS latitude or longitude in EXIF form: three unsigned
// rationals for degrees, minutes and seconds, with the hemisphere carried
// separately.
type Coordinate struct {
	DMS      [3]Rational
	Negative bool
}

// Decimal returns the signed value in decimal degrees.
func (c Coordinate) Decimal() float64 {
	v := c.DMS[0].Float() + c.DMS[1].Float()/60 + c.DMS[2].Float()/3600
	if c.Negative {
		return -v
	}
	return v
}

// FormatRationals renders numerator/denominator pairs the way Read reports
// GPS coordinates.
func FormatRationals(vals [][2]int64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatInt(v[0], 10) + "/" + strconv.FormatInt(v[1], 10)
	}
	return strings.Join(parts, ",")
}

// ParseCoordinate accepts either a rational triplet ("41/1,24/1,3000/100")
// or signed decimal degrees ("-122.4194") and rejects values whose
// magnitude exceeds limit.
func ParseCoordinate(s string, limit float64) (Coordinate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Coordinate{}, fmt.Errorf("empty coordinate")
	}

	var c Coordinate
	if strings.Contains(s, "/") {
		parts := strings.Split(s, ",")
		if len(parts) != 3 {
			return Coordinate{}, fmt.Errorf("coordinate %q: expected 3 rationals, got %d", s, len(parts))
		}
		for i, p := range parts {
			r, err := parseRational(p)
			if err != nil {
				return Coordinate{}, fmt.Errorf("coordinate %q: %w", s, err)
			}
			c.DMS[i] = r
		}
	} else {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Coordinate{}, fmt.Errorf("coordinate %q: %w", s, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Coordinate{}, fmt.Errorf("coordinate %q: not a finite number", s)
		}
		c = fromDecimal(f)
	}

	if math.Abs(c.Decimal()) > limit {
		return Coordinate{}, fmt.Errorf("coordinate %q out of range ±%g", s, limit)
	}
	return c, nil
}

func parseRational(s string) (Rational, error) {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Rational{}, fmt.Errorf("rational %q: missing '/'", s)
	}
	n, err := strconv.ParseUint(num, 10, 32)
	if err != nil {
		return Rational{}, fmt.Errorf("rational %q: %w", s, err)
	}
	d, err := strconv.ParseUint(den, 10, 32)
	if err != nil {
		return Rational{}, fmt.Errorf("rational %q: %w", s, err)
	}
	if d == 0 {
		return Rational{}, fmt.Errorf("rational %q: zero denominator", s)
	}
	return Rational{Num: uint32(n), Den: uint32(d)}, nil
}

func fromDecimal(f float64) Coordinate {
	neg := f < 0
	f = math.Abs(f)

	deg := math.Floor(f)
	minutes := math.Floor((f - deg) * 60)
	seconds := math.Round((f - deg - minutes/60) * 3600 * secondsDenominator)
	if seconds >= 60*secondsDenominator {
		seconds -= 60 * secondsDenominator
		minutes++
	}
	if minutes >= 60 {
		minutes -= 60
		deg++
	}
	if seconds < 0 {
		seconds = 0
	}

	return Coordinate{
		DMS: [3]Rational{
			{Num: uint32(deg), Den: 1},
			{Num: uint32(minutes), Den: 1},
			{Num: uint32(seconds), Den: secondsDenominator},
		},
		Negative: neg,
	}
}
