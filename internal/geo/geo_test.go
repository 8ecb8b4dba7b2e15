package geo

import (
	"errors"
	"math"
	"testing"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/waymark3d/waymark/pkg/core"
)

func TestPoint_RoundTrip(t *testing.T) {
	pos := core.Position3D{X: 100.5, Y: 200.25, Z: 50.0}

	pt := Point(pos)
	coords, ok := pt.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if coords.X != 100.5 {
		t.Errorf("expected X=100.5, got %f", coords.X)
	}
	if coords.Y != 200.25 {
		t.Errorf("expected Y=200.25, got %f", coords.Y)
	}
	if coords.Z != 50.0 {
		t.Errorf("expected Z=50.0, got %f", coords.Z)
	}

	back := Position(pt)
	if back != pos {
		t.Errorf("round trip changed position: %+v", back)
	}
}

func TestPoint_NegativeCoordinates(t *testing.T) {
	pos := core.Position3D{X: -100.5, Y: -200.25, Z: -50.0}
	if back := Position(Point(pos)); back != pos {
		t.Errorf("round trip changed position: %+v", back)
	}
}

func TestPosition_EmptyPoint(t *testing.T) {
	var empty geom.Point
	pos := Position(empty)
	if pos != (core.Position3D{}) {
		t.Errorf("expected origin for empty point, got %+v", pos)
	}
}

func TestPoint_SQLRoundTrip(t *testing.T) {
	// Rows persist points through the driver interfaces; make sure the
	// WKB survives a Value/Scan cycle with Z intact.
	pos := core.Position3D{X: 12.5, Y: -7.25, Z: 3.75}

	val, err := Point(pos).Value()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var scanned geom.Point
	if err := scanned.Scan(val); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back := Position(scanned); back != pos {
		t.Errorf("sql round trip changed position: %+v", back)
	}
}

func TestParseAnchor_Valid(t *testing.T) {
	a, err := ParseAnchor("-73.9857,40.7484")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Longitude != -73.9857 {
		t.Errorf("expected longitude=-73.9857, got %f", a.Longitude)
	}
	if a.Latitude != 40.7484 {
		t.Errorf("expected latitude=40.7484, got %f", a.Latitude)
	}
}

func TestParseAnchor_ExtraComponentsIgnored(t *testing.T) {
	a, err := ParseAnchor("10,20,ignored")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Longitude != 10 || a.Latitude != 20 {
		t.Errorf("unexpected anchor: %+v", a)
	}
}

func TestParseAnchor_InvalidTooFewComponents(t *testing.T) {
	_, err := ParseAnchor("100.5")
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestParseAnchor_InvalidEmptyString(t *testing.T) {
	_, err := ParseAnchor("")
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestParseAnchor_InvalidLongitude(t *testing.T) {
	_, err := ParseAnchor("abc,40.7")
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestParseAnchor_InvalidLatitude(t *testing.T) {
	_, err := ParseAnchor("-73.9,xyz")
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestAnchorMercator_OriginAnchor(t *testing.T) {
	// At anchor (0,0) the 3857 origin is (0,0), so local offsets pass
	// straight through.
	a := Anchor{Longitude: 0, Latitude: 0}

	pt := a.Mercator(core.Position3D{X: 150, Y: -30, Z: 12})
	coords, ok := pt.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if math.Abs(coords.X-150) > 1e-6 {
		t.Errorf("expected X=150, got %f", coords.X)
	}
	if math.Abs(coords.Y-(-30)) > 1e-6 {
		t.Errorf("expected Y=-30, got %f", coords.Y)
	}
	if coords.Z != 12 {
		t.Errorf("expected Z=12, got %f", coords.Z)
	}
}

func TestAnchorMercator_NonZeroAnchor(t *testing.T) {
	a := Anchor{Longitude: 10, Latitude: 10}

	origin := a.Mercator(core.Position3D{})
	east := a.Mercator(core.Position3D{X: 100})

	oc, ok := origin.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	ec, ok := east.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if oc.X <= 0 || oc.Y <= 0 {
		t.Errorf("expected positive mercator coordinates for (10,10), got (%f, %f)", oc.X, oc.Y)
	}
	if math.Abs((ec.X-oc.X)-100) > 1e-6 {
		t.Errorf("expected 100m east offset, got %f", ec.X-oc.X)
	}
}

func TestAnchorGeographic_AtOrigin(t *testing.T) {
	a := Anchor{Longitude: -73.9857, Latitude: 40.7484}

	lon, lat, elev := a.Geographic(core.Position3D{Z: 25})
	if math.Abs(lon-a.Longitude) > 1e-6 {
		t.Errorf("expected longitude %f, got %f", a.Longitude, lon)
	}
	if math.Abs(lat-a.Latitude) > 1e-6 {
		t.Errorf("expected latitude %f, got %f", a.Latitude, lat)
	}
	if elev != 25 {
		t.Errorf("expected elevation=25, got %f", elev)
	}
}

func TestAnchorGeographic_EastOffsetMovesLongitude(t *testing.T) {
	a := Anchor{Longitude: 10, Latitude: 45}

	lon0, lat0, _ := a.Geographic(core.Position3D{})
	lon1, lat1, _ := a.Geographic(core.Position3D{X: 1000})

	if lon1 <= lon0 {
		t.Errorf("expected east offset to increase longitude: %f -> %f", lon0, lon1)
	}
	if math.Abs(lat1-lat0) > 1e-9 {
		t.Errorf("east offset should not change latitude: %f -> %f", lat0, lat1)
	}
}
