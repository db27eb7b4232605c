package utils

import (
	"fmt"
	"math"
	"time"
)

// WGS84 ellipsoid axis lengths [m].
const (
	SemiMajorAxis = 6378137.0
	SemiMinorAxis = 6356752.314245
)

// GeoTransform maps pixel coordinates to geographic coordinates with the
// usual six-coefficient affine transform:
//
//	lon = t[0] + x*t[1] + y*t[2]
//	lat = t[3] + x*t[4] + y*t[5]
type GeoTransform [6]float64

func (t GeoTransform) PixelToGeo(x, y float64) (lon, lat float64) {
	lon = t[0] + x*t[1] + y*t[2]
	lat = t[3] + x*t[4] + y*t[5]
	return
}

// GeoToPixel inverts the affine transform. A singular transform is an error;
// per-pixel callers log it and emit the missing-value sentinel instead of
// aborting the tile.
func (t GeoTransform) GeoToPixel(lon, lat float64) (x, y float64, err error) {
	det := t[1]*t[5] - t[2]*t[4]
	if det == 0 {
		return 0, 0, fmt.Errorf("geotransform: transform is not invertible")
	}
	dx := lon - t[0]
	dy := lat - t[3]
	x = (dx*t[5] - dy*t[2]) / det
	y = (dy*t[1] - dx*t[4]) / det
	return x, y, nil
}

// LocalRadius returns the geocentric radius of the WGS84 ellipsoid at the
// given latitude [degrees]. The search window of distance-windowed operators
// shrinks toward the poles through this value.
func LocalRadius(lat float64) float64 {
	phi := lat * math.Pi / 180
	a, b := SemiMajorAxis, SemiMinorAxis
	ac, bs := a*math.Cos(phi), b*math.Sin(phi)
	return math.Sqrt((a*a*ac*ac + b*b*bs*bs) / (ac*ac + bs*bs))
}

// GreatCircleDistance is the spherical law-of-cosines distance [m] between
// two geographic points, on a sphere of the given local radius.
func GreatCircleDistance(lon1, lat1, lon2, lat2, radius float64) float64 {
	const d2r = math.Pi / 180
	phi1, phi2 := lat1*d2r, lat2*d2r
	cosc := math.Sin(phi1)*math.Sin(phi2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Cos((lon2-lon1)*d2r)
	if cosc > 1 {
		cosc = 1
	} else if cosc < -1 {
		cosc = -1
	}
	return radius * math.Acos(cosc)
}

// Scene is one source acquisition: the decoded bands plus the geo-referencing
// and timing needed by the per-pixel geometry operators. Scan time advances
// by LineDuration per image row.
type Scene struct {
	Identifier   string
	Transform    GeoTransform
	AcqStart     time.Time
	LineDuration time.Duration
	Bands        map[string]*Float32Raster
	Indexed      *ByteRaster
}

// RowTime is the acquisition instant of one scan row.
func (s *Scene) RowTime(row int) time.Time {
	return s.AcqStart.Add(time.Duration(row) * s.LineDuration)
}

// Band returns a named band or an error naming the scene, for
// construction-time validation of operator inputs.
func (s *Scene) Band(name string) (*Float32Raster, error) {
	b, ok := s.Bands[name]
	if !ok {
		return nil, fmt.Errorf("scene %s: band %q not present", s.Identifier, name)
	}
	return b, nil
}
