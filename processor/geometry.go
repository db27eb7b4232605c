package processor

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/nci/avhrr/utils"
)

const deg2rad = math.Pi / 180

// solarGeometry returns the solar declination [rad] and the equation of
// time [minutes] for an instant, from the usual fractional-year expansion.
func solarGeometry(t time.Time) (decl, eqTime float64) {
	utc := t.UTC()
	fy := 2 * math.Pi / 365 * (float64(utc.YearDay()) - 1 + (float64(utc.Hour())-12)/24)

	eqTime = 229.18 * (0.000075 + 0.001868*math.Cos(fy) - 0.032077*math.Sin(fy) -
		0.014615*math.Cos(2*fy) - 0.040849*math.Sin(2*fy))
	decl = 0.006918 - 0.399912*math.Cos(fy) + 0.070257*math.Sin(fy) -
		0.006758*math.Cos(2*fy) + 0.000907*math.Sin(2*fy) -
		0.002697*math.Cos(3*fy) + 0.00148*math.Sin(3*fy)
	return
}

// SolarElevation is the sun elevation angle [degrees] above the horizon at
// the given instant and geographic position.
func SolarElevation(t time.Time, lon, lat float64) float64 {
	decl, eqTime := solarGeometry(t)
	utc := t.UTC()

	trueSolarMinutes := float64(utc.Hour())*60 + float64(utc.Minute()) +
		float64(utc.Second())/60 + eqTime + 4*lon
	hourAngle := (trueSolarMinutes/4 - 180) * deg2rad

	phi := lat * deg2rad
	cosZenith := math.Sin(phi)*math.Sin(decl) + math.Cos(phi)*math.Cos(decl)*math.Cos(hourAngle)
	if cosZenith > 1 {
		cosZenith = 1
	} else if cosZenith < -1 {
		cosZenith = -1
	}
	return 90 - math.Acos(cosZenith)/deg2rad
}

// SolarNoon is the local solar-noon instant for the given longitude on the
// day of t.
func SolarNoon(t time.Time, lon float64) time.Time {
	_, eqTime := solarGeometry(t)
	utc := t.UTC()
	noonMinutes := 720 - 4*lon - eqTime
	midnight := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.Add(time.Duration(noonMinutes * float64(time.Minute)))
}

// SunElevationOp fills a raster with the per-pixel sun elevation at each
// pixel's scan instant. Pixels whose geographic position cannot be resolved
// are logged and set to NaN instead of aborting the tile.
type SunElevationOp struct {
	scene *utils.Scene
}

func NewSunElevationOp(scene *utils.Scene) (*SunElevationOp, error) {
	if scene == nil {
		return nil, fmt.Errorf("SunElevation: scene is required")
	}
	return &SunElevationOp{scene: scene}, nil
}

func (op *SunElevationOp) Compute(ref utils.Raster) (*utils.Float32Raster, error) {
	dst, err := NewDerivedRaster("sun_elevation", ref)
	if err != nil {
		return nil, err
	}
	bounds := dst.Bounds()
	for y := bounds.MinY; y < bounds.MaxY(); y++ {
		rowTime := op.scene.RowTime(y)
		for x := bounds.MinX; x < bounds.MaxX(); x++ {
			lon, lat := op.scene.Transform.PixelToGeo(float64(x)+0.5, float64(y)+0.5)
			if math.IsNaN(lon) || math.IsNaN(lat) {
				log.Printf("SunElevation: %s: pixel (%d,%d) has no geographic position", op.scene.Identifier, x, y)
				continue
			}
			dst.SetSample(x, y, float32(SolarElevation(rowTime, lon, lat)))
		}
	}
	return dst, nil
}

// ViewAngleOp fills a raster with the across-track satellite view angle
// [degrees from nadir], linear in the pixel's distance from the scan centre.
type ViewAngleOp struct {
	maxScanAngle float64
	scanWidth    int
}

func NewViewAngleOp(maxScanAngle float64, scanWidth int) (*ViewAngleOp, error) {
	if maxScanAngle <= 0 || maxScanAngle >= 90 {
		return nil, fmt.Errorf("ViewAngle: maximum scan angle %v out of (0, 90)", maxScanAngle)
	}
	if scanWidth <= 1 {
		return nil, fmt.Errorf("ViewAngle: scan width %d too small", scanWidth)
	}
	return &ViewAngleOp{maxScanAngle: maxScanAngle, scanWidth: scanWidth}, nil
}

func (op *ViewAngleOp) Compute(ref utils.Raster) (*utils.Float32Raster, error) {
	dst, err := NewDerivedRaster("view_angle", ref)
	if err != nil {
		return nil, err
	}
	bounds := dst.Bounds()
	centre := float64(op.scanWidth-1) / 2
	for y := bounds.MinY; y < bounds.MaxY(); y++ {
		for x := bounds.MinX; x < bounds.MaxX(); x++ {
			angle := math.Abs(float64(x)-centre) / centre * op.maxScanAngle
			dst.SetSample(x, y, float32(angle))
		}
	}
	return dst, nil
}
