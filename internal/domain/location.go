package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Location is a position inside a named world, with view orientation.
type Location struct {
	World string  `yaml:"world"`
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	Z     float64 `yaml:"z"`
	Yaw   float32 `yaml:"yaw"`
	Pitch float32 `yaml:"pitch"`
}

// locationFieldCount is the number of fields in the delimited encoding.
const locationFieldCount = 6

// Encode serializes the location as a single delimited string for the
// relational store. The snapshot store keeps the structured form instead.
func (l Location) Encode() string {
	return strings.Join([]string{
		l.World,
		strconv.FormatFloat(l.X, 'g', -1, 64),
		strconv.FormatFloat(l.Y, 'g', -1, 64),
		strconv.FormatFloat(l.Z, 'g', -1, 64),
		strconv.FormatFloat(float64(l.Yaw), 'g', -1, 32),
		strconv.FormatFloat(float64(l.Pitch), 'g', -1, 32),
	}, ";")
}

// DecodeLocation parses the delimited encoding produced by Encode.
func DecodeLocation(s string) (Location, error) {
	parts := strings.Split(s, ";")
	if len(parts) != locationFieldCount {
		return Location{}, fmt.Errorf("%w: malformed location %q", ErrValidation, s)
	}

	var loc Location
	loc.World = parts[0]

	coords := make([]float64, 0, locationFieldCount-1)
	for _, p := range parts[1:] {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return Location{}, fmt.Errorf("%w: malformed location coordinate %q", ErrValidation, p)
		}
		coords = append(coords, v)
	}

	loc.X, loc.Y, loc.Z = coords[0], coords[1], coords[2]
	loc.Yaw = float32(coords[3])
	loc.Pitch = float32(coords[4])
	return loc, nil
}
