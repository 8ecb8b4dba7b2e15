// Package geo converts between scene-local positions and the geometry
// types stored in database rows.
//
// Positions are scene-local: X east, Y north, Z up, in meters. Rows carry
// them as WKB XYZ points so SQLite can hold them in plain blob columns and
// Postgres can index them. When a geographic anchor is configured the
// rows additionally get an EPSG:3857 point for GIS overlays.
package geo

import (
	"errors"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/waymark3d/waymark/pkg/core"
)

// ErrInvalidCoordinates is returned when a coordinate string cannot be parsed.
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Point converts a scene-local position to an XYZ point.
func Point(p core.Position3D) geom.Point {
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: p.X, Y: p.Y},
			Z:    p.Z,
			Type: geom.DimXYZ,
		},
	)
}

// Position converts a stored point back to a scene-local position.
// Empty points map to the origin.
func Position(pt geom.Point) core.Position3D {
	coord, ok := pt.Coordinates()
	if !ok {
		return core.Position3D{}
	}
	return core.Position3D{X: coord.XY.X, Y: coord.XY.Y, Z: coord.Z}
}

// Anchor georeferences a scene by pinning its origin to an EPSG:4326
// longitude/latitude. Local X/Y offsets are applied in EPSG:3857 meters
// east and north of the anchor.
type Anchor struct {
	Longitude float64
	Latitude  float64
}

// ParseAnchor parses a "longitude,latitude" pair, e.g. "-73.9857,40.7484".
func ParseAnchor(coords string) (Anchor, error) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 {
		return Anchor{}, ErrInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return Anchor{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Anchor{}, ErrInvalidCoordinates
	}
	return Anchor{Longitude: lon, Latitude: lat}, nil
}

// Mercator returns the EPSG:3857 point for a scene-local position. The
// local Z passes through as elevation.
func (a Anchor) Mercator(p core.Position3D) geom.Point {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(a.Longitude, a.Latitude, 0)
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x + p.X, Y: y + p.Y},
			Z:    p.Z,
			Type: geom.DimXYZ,
		},
	)
}

// Geographic returns the EPSG:4326 longitude/latitude of a scene-local
// position, with the local Z passed through as elevation.
func (a Anchor) Geographic(p core.Position3D) (lon, lat, elev float64) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(a.Longitude, a.Latitude, 0)
	back := epsg.Transform(3857, 4326)
	lon, lat, _ = back(x+p.X, y+p.Y, 0)
	return lon, lat, p.Z
}
