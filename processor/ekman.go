package processor

import (
	"fmt"
	"math"

	"github.com/nci/avhrr/utils"
)

const (
	seawaterDensity = 1025.0       // kg/m3
	earthRotation   = 7.2921159e-5 // rad/s
	// Below this latitude the Coriolis parameter is too small for the
	// Ekman balance to hold; the output is left missing there.
	ekmanLatitudeCutoff = 2.5
)

// EkmanPumping derives the vertical Ekman velocity [m/s] from the
// wind-stress components: curl(tau) / (rho * f), with central finite
// differences on the ellipsoid-scaled grid.
type EkmanPumping struct {
	transform utils.GeoTransform
}

func NewEkmanPumping(transform utils.GeoTransform) (*EkmanPumping, error) {
	if transform[1] == 0 || transform[5] == 0 {
		return nil, fmt.Errorf("EkmanPumping: degenerate pixel size in geo transform")
	}
	return &EkmanPumping{transform: transform}, nil
}

func (e *EkmanPumping) Compute(tauX, tauY *utils.Float32Raster) (*utils.Float32Raster, error) {
	dst, err := NewDerivedRaster("ekman_pumping", tauX, tauY)
	if err != nil {
		return nil, err
	}
	bounds := dst.Bounds()

	for y := bounds.MinY + 1; y < bounds.MaxY()-1; y++ {
		_, lat := e.transform.PixelToGeo(float64(bounds.MinX)+float64(bounds.Width)/2, float64(y)+0.5)
		if math.Abs(lat) < ekmanLatitudeCutoff {
			continue
		}
		radius := utils.LocalRadius(lat)
		dx := 2 * radius * math.Cos(lat*deg2rad) * math.Abs(e.transform[1]) * deg2rad
		dy := 2 * radius * math.Abs(e.transform[5]) * deg2rad
		f := 2 * earthRotation * math.Sin(lat*deg2rad)

		for x := bounds.MinX + 1; x < bounds.MaxX()-1; x++ {
			tyE := float64(tauY.Sample(x+1, y))
			tyW := float64(tauY.Sample(x-1, y))
			txN := float64(tauX.Sample(x, y-1))
			txS := float64(tauX.Sample(x, y+1))
			if math.IsNaN(tyE) || math.IsNaN(tyW) || math.IsNaN(txN) || math.IsNaN(txS) {
				continue
			}
			curl := (tyE-tyW)/dx - (txS-txN)/dy
			dst.SetSample(x, y, float32(curl/(seawaterDensity*f)))
		}
	}
	return dst, nil
}
