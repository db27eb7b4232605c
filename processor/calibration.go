package processor

import (
	"fmt"
	"math"

	"github.com/nci/avhrr/utils"
)

// Albedo converts visible-channel raw counts to percent reflectance with a
// single- or dual-segment linear formula. The per-row coefficient record is
// [slope1, intercept1, slope2, intercept2, intersection]; the first segment
// applies while the raw count is at or below the intersection point.
type Albedo struct {
	grid *CoefficientGrid
}

func NewAlbedo(grid *CoefficientGrid) (*Albedo, error) {
	if grid == nil {
		return nil, fmt.Errorf("Albedo: coefficient grid is required")
	}
	if grid.RecordLength() != 5 {
		return nil, fmt.Errorf("Albedo: want 5 coefficients per record, got %d", grid.RecordLength())
	}
	return &Albedo{grid: grid}, nil
}

func (a *Albedo) Compute(src *utils.Float32Raster) (*utils.Float32Raster, error) {
	dst, err := NewDerivedRaster("albedo", src)
	if err != nil {
		return nil, err
	}
	bounds := dst.Bounds()
	for y := bounds.MinY; y < bounds.MaxY(); y++ {
		rec, err := a.grid.Record(y)
		if err != nil {
			return nil, fmt.Errorf("Albedo: %v", err)
		}
		for x := bounds.MinX; x < bounds.MaxX(); x++ {
			count := float64(src.Sample(x, y))
			if math.IsNaN(count) {
				continue
			}
			var albedo float64
			if count <= rec[4] {
				albedo = rec[0]*count + rec[1]
			} else {
				albedo = rec[2]*count + rec[3]
			}
			dst.SetSample(x, y, float32(math.Max(albedo, 0)))
		}
	}
	return dst, nil
}

// AlbedoGridFromTable builds the per-row albedo coefficient grid for one
// channel out of the satellite calibration table.
func AlbedoGridFromTable(sat *utils.SatelliteTable, channel string, lines int) (*CoefficientGrid, error) {
	seg, ok := sat.Albedo[channel]
	if !ok {
		return nil, fmt.Errorf("satellite %s: no albedo calibration for channel %s", sat.Name, channel)
	}
	if seg.Intersection == 0 {
		// Single-segment calibration: the first segment covers every count.
		return UniformGrid([]float64{seg.Slope1, seg.Intercept1, seg.Slope1, seg.Intercept1, math.MaxFloat64}, lines)
	}
	return UniformGrid([]float64{seg.Slope1, seg.Intercept1, seg.Slope2, seg.Intercept2, seg.Intersection}, lines)
}

// Radiance converts thermal-channel raw counts to physical radiance. KLM
// satellites use the quadratic a0 + C*(a1 + a2*C); earlier satellites the
// linear a0*C + a1. Coefficients vary by scan line through the grid.
type Radiance struct {
	gen  Generation
	grid *CoefficientGrid
}

func NewRadiance(gen Generation, grid *CoefficientGrid) (*Radiance, error) {
	if grid == nil {
		return nil, fmt.Errorf("Radiance: coefficient grid is required")
	}
	want := 2
	if gen == GenerationKLM {
		want = 3
	}
	if grid.RecordLength() != want {
		return nil, fmt.Errorf("Radiance: want %d coefficients per record for generation %s, got %d",
			want, gen, grid.RecordLength())
	}
	return &Radiance{gen: gen, grid: grid}, nil
}

func (r *Radiance) Compute(src *utils.Float32Raster) (*utils.Float32Raster, error) {
	dst, err := NewDerivedRaster("radiance", src)
	if err != nil {
		return nil, err
	}
	bounds := dst.Bounds()
	klm := r.gen == GenerationKLM
	for y := bounds.MinY; y < bounds.MaxY(); y++ {
		rec, err := r.grid.Record(y)
		if err != nil {
			return nil, fmt.Errorf("Radiance: %v", err)
		}
		for x := bounds.MinX; x < bounds.MaxX(); x++ {
			count := float64(src.Sample(x, y))
			if math.IsNaN(count) {
				continue
			}
			var rad float64
			if klm {
				rad = rec[0] + count*(rec[1]+rec[2]*count)
			} else {
				rad = rec[0]*count + rec[1]
			}
			dst.SetSample(x, y, float32(math.Max(rad, 0)))
		}
	}
	return dst, nil
}

// RadianceGridFromTable builds the per-row radiance coefficient grid for one
// thermal channel.
func RadianceGridFromTable(sat *utils.SatelliteTable, channel string, lines int) (*CoefficientGrid, error) {
	coefs, ok := sat.Radiance[channel]
	if !ok {
		return nil, fmt.Errorf("satellite %s: no radiance calibration for channel %s", sat.Name, channel)
	}
	gen, err := ParseGeneration(sat.Generation)
	if err != nil {
		return nil, err
	}
	if gen == GenerationKLM {
		return UniformGrid([]float64{coefs.A0, coefs.A1, coefs.A2}, lines)
	}
	return UniformGrid([]float64{coefs.A0, coefs.A1}, lines)
}

// Temperature converts radiance to brightness temperature with the inverse
// Planck function, followed by the KLM linear correction (T' - A) / B when
// the channel's constants call for it.
type Temperature struct {
	gen    Generation
	planck utils.PlanckCoefs
}

func NewTemperature(gen Generation, planck utils.PlanckCoefs) (*Temperature, error) {
	if planck.Nu <= 0 || planck.C1 <= 0 || planck.C2 <= 0 {
		return nil, fmt.Errorf("Temperature: Planck constants must be positive, got %+v", planck)
	}
	if gen == GenerationKLM && planck.Correction && planck.B == 0 {
		return nil, fmt.Errorf("Temperature: correction requested with zero slope")
	}
	if gen != GenerationKLM && planck.Correction {
		return nil, fmt.Errorf("Temperature: linear correction is a KLM-only feature")
	}
	return &Temperature{gen: gen, planck: planck}, nil
}

func (t *Temperature) Compute(src *utils.Float32Raster) (*utils.Float32Raster, error) {
	dst, err := NewDerivedRaster("temperature", src)
	if err != nil {
		return nil, err
	}
	bounds := dst.Bounds()
	nu := t.planck.Nu
	nu3 := nu * nu * nu
	for y := bounds.MinY; y < bounds.MaxY(); y++ {
		for x := bounds.MinX; x < bounds.MaxX(); x++ {
			rad := float64(src.Sample(x, y))
			if math.IsNaN(rad) || rad <= 0 {
				continue
			}
			temp := (t.planck.C2 * nu) / math.Log(1+t.planck.C1*nu3/rad)
			if t.planck.Correction {
				temp = (temp - t.planck.A) / t.planck.B
			}
			dst.SetSample(x, y, float32(math.Max(temp, 0)))
		}
	}
	return dst, nil
}
