package processor

import (
	"fmt"
	"math"

	"github.com/nci/avhrr/utils"
)

// SST combines the brightness temperatures of the two split-window thermal
// channels with the view-angle secant term:
//
//	SST = a1*T4 + a2*T5 + a3*(T4-T5)*(sec(angle)-1) + a4
//
// The day/night matrix selects the coefficient set: pure day or night at
// the matrix endpoints, a linear blend of both formulas in between.
type SST struct {
	day   utils.SSTCoefs
	night utils.SSTCoefs
}

func NewSST(day, night utils.SSTCoefs) (*SST, error) {
	if day == (utils.SSTCoefs{}) || night == (utils.SSTCoefs{}) {
		return nil, fmt.Errorf("SST: day and night coefficient sets are required")
	}
	return &SST{day: day, night: night}, nil
}

func splitWindow(c utils.SSTCoefs, t4, t5, secant float64) float64 {
	return c.A1*t4 + c.A2*t5 + c.A3*(t4-t5)*(secant-1) + c.A4
}

func (s *SST) Compute(t4, t5, angle, matrix *utils.Float32Raster) (*utils.Float32Raster, error) {
	dst, err := NewDerivedRaster("sst", t4, t5, angle, matrix)
	if err != nil {
		return nil, err
	}
	bounds := dst.Bounds()
	for y := bounds.MinY; y < bounds.MaxY(); y++ {
		for x := bounds.MinX; x < bounds.MaxX(); x++ {
			vt4 := float64(t4.Sample(x, y))
			vt5 := float64(t5.Sample(x, y))
			va := float64(angle.Sample(x, y))
			vm := float64(matrix.Sample(x, y))
			if math.IsNaN(vt4) || math.IsNaN(vt5) || math.IsNaN(va) || math.IsNaN(vm) {
				continue
			}

			secant := 1 / math.Cos(va*deg2rad)

			var sst float64
			switch {
			case vm <= MatrixDay:
				sst = splitWindow(s.day, vt4, vt5, secant)
			case vm >= MatrixNight:
				sst = splitWindow(s.night, vt4, vt5, secant)
			default:
				w := vm / MatrixNight
				sst = (1-w)*splitWindow(s.day, vt4, vt5, secant) +
					w*splitWindow(s.night, vt4, vt5, secant)
			}
			dst.SetSample(x, y, float32(sst))
		}
	}
	return dst, nil
}
