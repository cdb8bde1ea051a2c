// Package grid converts geodetic coordinates to Maidenhead grid locators.
package grid

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	fieldLon = 20.0
	fieldLat = 10.0
	// Subsquares per degree: 5' of longitude, 2.5' of latitude.
	subPerLonDeg = 12.0
	subPerLatDeg = 24.0

	// Upper edges are inclusive in the contract; nudge them into the last cell.
	edge = 1e-9
)

// ErrOutOfRange is returned for NaN, infinite or out-of-range coordinates.
var ErrOutOfRange = errors.New("coordinates out of range")

// ErrInvalidLocator is returned by Center for malformed locators.
var ErrInvalidLocator = errors.New("invalid grid locator")

// ToLocator returns the 6-character Maidenhead locator for latitude and
// longitude in degrees. Buckets are floor based, so exact multiples of a
// cell size land in the cell that starts there.
func ToLocator(latitude, longitude float64) (string, error) {
	if !inRange(latitude, 90) || !inRange(longitude, 180) {
		return "", fmt.Errorf("%w: lat=%v lon=%v", ErrOutOfRange, latitude, longitude)
	}

	lon := math.Min(longitude+180, 360-edge)
	lat := math.Min(latitude+90, 180-edge)

	lonField := math.Floor(lon / fieldLon)
	latField := math.Floor(lat / fieldLat)
	lon -= lonField * fieldLon
	lat -= latField * fieldLat

	lonSquare := math.Floor(lon / 2)
	latSquare := math.Floor(lat)
	lon -= lonSquare * 2
	lat -= latSquare

	lonSub := clampIndex(math.Floor(lon*subPerLonDeg), 23)
	latSub := clampIndex(math.Floor(lat*subPerLatDeg), 23)

	b := []byte{
		'A' + byte(clampIndex(lonField, 17)),
		'A' + byte(clampIndex(latField, 17)),
		'0' + byte(clampIndex(lonSquare, 9)),
		'0' + byte(clampIndex(latSquare, 9)),
		'a' + byte(lonSub),
		'a' + byte(latSub),
	}
	return string(b), nil
}

// Center returns the coordinates of the centre of the cell named by a 2, 4
// or 6 character locator. Letters are accepted in either case.
func Center(locator string) (latitude, longitude float64, err error) {
	n := len(locator)
	if n != 2 && n != 4 && n != 6 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	loc := strings.ToUpper(locator)

	lonField, ok1 := letterIndex(loc[0], 'R')
	latField, ok2 := letterIndex(loc[1], 'R')
	if !ok1 || !ok2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	lon := float64(lonField)*fieldLon - 180
	lat := float64(latField)*fieldLat - 90
	lonSize, latSize := fieldLon, fieldLat

	if n >= 4 {
		lonSquare, ok1 := digitIndex(loc[2])
		latSquare, ok2 := digitIndex(loc[3])
		if !ok1 || !ok2 {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
		}
		lon += float64(lonSquare) * 2
		lat += float64(latSquare)
		lonSize, latSize = 2, 1
	}
	if n == 6 {
		lonSub, ok1 := letterIndex(loc[4], 'X')
		latSub, ok2 := letterIndex(loc[5], 'X')
		if !ok1 || !ok2 {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
		}
		lon += float64(lonSub) / subPerLonDeg
		lat += float64(latSub) / subPerLatDeg
		lonSize, latSize = 1/subPerLonDeg, 1/subPerLatDeg
	}

	return lat + latSize/2, lon + lonSize/2, nil
}

// FromSystemInfo turns the output of the system-info helper into a locator.
// The helper prints "<lat>,<lon>" when it has a fix; anything else is a
// diagnostic and is returned unchanged.
func FromSystemInfo(output string) string {
	parts := strings.Split(strings.TrimSpace(output), ",")
	if len(parts) != 2 {
		return output
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return output
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return output
	}
	locator, err := ToLocator(lat, lon)
	if err != nil {
		return output
	}
	return locator
}

func inRange(v, limit float64) bool {
	return !math.IsNaN(v) && v >= -limit && v <= limit
}

func clampIndex(v float64, max int) int {
	i := int(v)
	if i < 0 {
		return 0
	}
	if i > max {
		return max
	}
	return i
}

func letterIndex(c, last byte) (int, bool) {
	if c < 'A' || c > last {
		return 0, false
	}
	return int(c - 'A'), true
}

func digitIndex(c byte) (int, bool) {
	if c < '0' || c > '9' {
		return 0, false
	}
	return int(c - '0'), true
}
