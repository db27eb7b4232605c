package processor

import (
	"fmt"
	"math"

	"github.com/nci/avhrr/utils"
)

// Day/Night matrix sample domain. The matrix is a continuous blend factor,
// not a binary flag: values strictly between MatrixDay and MatrixNight
// weight the day and night SST formulas linearly.
const (
	MatrixDay   = 0.0
	MatrixNight = 200.0
)

// TwilightRamp is one monotone transfer function from sun elevation
// [degrees] to the matrix domain: MatrixDay at or above DayElevation,
// MatrixNight at or below NightElevation, linear in between.
type TwilightRamp struct {
	DayElevation   float64
	NightElevation float64
}

func (r TwilightRamp) Transfer(elevation float64) float64 {
	if elevation >= r.DayElevation {
		return MatrixDay
	}
	if elevation <= r.NightElevation {
		return MatrixNight
	}
	return MatrixNight * (r.DayElevation - elevation) / (r.DayElevation - r.NightElevation)
}

// MatrixDayNight classifies each pixel's acquisition state. Rows acquired
// before their local solar noon go through the dawn ramp, rows after noon
// through the dusk ramp.
type MatrixDayNight struct {
	scene *utils.Scene
	dawn  TwilightRamp
	dusk  TwilightRamp
}

func NewMatrixDayNight(scene *utils.Scene, dawn, dusk TwilightRamp) (*MatrixDayNight, error) {
	if scene == nil {
		return nil, fmt.Errorf("MatrixDayNight: scene is required")
	}
	for _, ramp := range []TwilightRamp{dawn, dusk} {
		if ramp.DayElevation <= ramp.NightElevation {
			return nil, fmt.Errorf("MatrixDayNight: ramp %+v is not monotone", ramp)
		}
	}
	return &MatrixDayNight{scene: scene, dawn: dawn, dusk: dusk}, nil
}

// DefaultTwilightRamps are the stock dawn and dusk transfer functions.
func DefaultTwilightRamps() (dawn, dusk TwilightRamp) {
	dawn = TwilightRamp{DayElevation: 5, NightElevation: -5}
	dusk = TwilightRamp{DayElevation: 0, NightElevation: -10}
	return
}

func (m *MatrixDayNight) Compute(elevation *utils.Float32Raster) (*utils.Float32Raster, error) {
	dst, err := NewDerivedRaster("daynight_matrix", elevation)
	if err != nil {
		return nil, err
	}
	bounds := dst.Bounds()
	for y := bounds.MinY; y < bounds.MaxY(); y++ {
		rowTime := m.scene.RowTime(y)
		lon, _ := m.scene.Transform.PixelToGeo(float64(bounds.MinX)+float64(bounds.Width)/2, float64(y)+0.5)
		ramp := m.dusk
		if rowTime.Before(SolarNoon(rowTime, lon)) {
			ramp = m.dawn
		}
		for x := bounds.MinX; x < bounds.MaxX(); x++ {
			elev := float64(elevation.Sample(x, y))
			if math.IsNaN(elev) {
				continue
			}
			dst.SetSample(x, y, float32(ramp.Transfer(elev)))
		}
	}
	return dst, nil
}
