package processor

import (
	"fmt"
	"math"

	"github.com/nci/avhrr/utils"
)

type CompositeMode int

const (
	// CompositeWeightedAverage combines temperature pixels by a
	// coefficient-weighted running mean.
	CompositeWeightedAverage CompositeMode = iota
	// CompositeSup keeps the maximum temperature value.
	CompositeSup
	// CompositeSynthese gap-fills with the first qualifying source in
	// caller-supplied order.
	CompositeSynthese
)

// Compositor merges several per-pass indexed rasters into one canvas.
// Sources are visited in caller order; each source contributes only over
// the intersection of its footprint with the destination region. Land
// pixels always win over every other category.
type Compositor struct {
	mode CompositeMode
	land utils.Range
	temp utils.Range
}

func NewCompositor(mode CompositeMode, cats *utils.CategorySet) (*Compositor, error) {
	if cats == nil {
		return nil, fmt.Errorf("Compositor: categories are required")
	}
	temp, err := cats.Range(utils.CategoryTemperature)
	if err != nil {
		return nil, fmt.Errorf("Compositor: %v", err)
	}
	return &Compositor{mode: mode, land: cats.Land(), temp: temp}, nil
}

// Compute fills the destination region from the sources. weights is
// required for CompositeWeightedAverage, one coefficient per source, and
// ignored otherwise.
func (c *Compositor) Compute(region utils.Rect, srcs []*utils.ByteRaster, weights []float64) (*utils.Float32Raster, error) {
	if region.Empty() {
		return nil, fmt.Errorf("Compositor: destination region is empty")
	}
	if len(srcs) == 0 {
		return nil, fmt.Errorf("Compositor: no sources")
	}
	if c.mode == CompositeWeightedAverage {
		if len(weights) != len(srcs) {
			return nil, fmt.Errorf("Compositor: %d weights for %d sources", len(weights), len(srcs))
		}
		for i, w := range weights {
			if w <= 0 || math.IsNaN(w) {
				return nil, fmt.Errorf("Compositor: weight %d is %v", i, w)
			}
		}
	}

	dst := utils.NewFloat32Raster(region, math.NaN(), "composite")
	size := region.Width * region.Height
	isLand := make([]bool, size)

	var sum, wsum []float64
	if c.mode == CompositeWeightedAverage {
		sum = make([]float64, size)
		wsum = make([]float64, size)
	}

	for is, src := range srcs {
		footprint := region.Intersect(src.Bounds())
		if footprint.Empty() {
			continue
		}
		for y := footprint.MinY; y < footprint.MaxY(); y++ {
			for x := footprint.MinX; x < footprint.MaxX(); x++ {
				v := float64(src.Sample(x, y))
				idx := (y-region.MinY)*region.Width + (x - region.MinX)

				if isLand[idx] {
					continue
				}
				if c.land.Contains(v) {
					isLand[idx] = true
					dst.SetSample(x, y, float32(v))
					continue
				}
				if !c.temp.Contains(v) {
					continue
				}

				switch c.mode {
				case CompositeWeightedAverage:
					sum[idx] += weights[is] * v
					wsum[idx] += weights[is]
				case CompositeSup:
					cur := float64(dst.Sample(x, y))
					if math.IsNaN(cur) || v > cur {
						dst.SetSample(x, y, float32(v))
					}
				case CompositeSynthese:
					if math.IsNaN(float64(dst.Sample(x, y))) {
						dst.SetSample(x, y, float32(v))
					}
				}
			}
		}
	}

	if c.mode == CompositeWeightedAverage {
		for y := region.MinY; y < region.MaxY(); y++ {
			for x := region.MinX; x < region.MaxX(); x++ {
				idx := (y-region.MinY)*region.Width + (x - region.MinX)
				if !isLand[idx] && wsum[idx] > 0 {
					dst.SetSample(x, y, float32(sum[idx]/wsum[idx]))
				}
			}
		}
	}

	return dst, nil
}
