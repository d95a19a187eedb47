// Package geoid converts elevations between a geoid model and an ellipsoid
// using a correction grid stored as a GeoTIFF.
package geoid

import (
	"context"
	"fmt"
)

// A Coord is a sample coordinate.
type Coord struct {
	X int // Column.
	Y int // Row.
}

// A TileCoord is a tile coordinate.
type TileCoord struct {
	C int // Column.
	R int // Row.
}

// A GridCoord is a fractional sample coordinate. Integer values are sample
// centers.
type GridCoord struct {
	Col float64
	Row float64
}

// A Raster is a rectangular array of samples.
type Raster interface {
	Samples(ctx context.Context, coords []Coord) ([]float64, error)
	Size() (int, int)
}

// A Grid maps model coordinates to grid coordinates and returns correction
// values at grid coordinates. ElevationAt returns NaN where the grid has no
// data.
type Grid interface {
	ModelToGrid(lon, lat float64) GridCoord
	GridToModel(gridCoord GridCoord) (float64, float64)
	ElevationAt(ctx context.Context, gridCoord GridCoord) (float64, error)
}

// A Direction is a conversion direction.
type Direction int

const (
	GeoidToEllipsoid Direction = iota
	EllipsoidToGeoid
)

var directionNames = map[Direction]string{
	GeoidToEllipsoid: "geoid-to-ellipsoid",
	EllipsoidToGeoid: "ellipsoid-to-geoid",
}

// Apply applies correction to elevation in direction d.
func (d Direction) Apply(elevation, correction float64) float64 {
	if d == EllipsoidToGeoid {
		return elevation - correction
	}
	return elevation + correction
}

func (d Direction) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	if name, ok := directionNames[d]; ok {
		return []byte(name), nil
	}
	return nil, fmt.Errorf("%d: invalid direction", int(d))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	for direction, name := range directionNames {
		if string(text) == name {
			*d = direction
			return nil
		}
	}
	return fmt.Errorf("%s: invalid direction", text)
}
