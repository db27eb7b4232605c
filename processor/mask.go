package processor

import (
	"fmt"
	"math"

	"github.com/nci/avhrr/utils"
)

// Mask sentinels. A mask raster carries exactly these two values.
const (
	Filtered    = uint8(255)
	NotFiltered = uint8(0)
)

// Mask classifies pixels through an injected predicate evaluated over the
// stacked per-pixel values of all sources plus the pixel coordinates (bound
// to the variables x and y). Sources with differing bounds are intersected,
// never resampled.
type Mask struct {
	expr    *utils.BandExpressions
	nameSet map[string]struct{}
}

func NewMask(expr *utils.BandExpressions) (*Mask, error) {
	if expr == nil || len(expr.Expressions) != 1 {
		return nil, fmt.Errorf("Mask: exactly one filter expression is required")
	}
	m := &Mask{expr: expr, nameSet: map[string]struct{}{}}
	for _, v := range expr.VarList {
		if v == "x" || v == "y" {
			continue
		}
		m.nameSet[v] = struct{}{}
	}
	return m, nil
}

func (m *Mask) Compute(srcs map[string]*utils.Float32Raster) (*utils.ByteRaster, error) {
	for name := range m.nameSet {
		if _, ok := srcs[name]; !ok {
			return nil, fmt.Errorf("Mask: filter references band %q which was not supplied", name)
		}
	}
	all := make([]utils.Raster, 0, len(srcs))
	for _, src := range srcs {
		all = append(all, src)
	}
	bounds, err := utils.IntersectBounds(all...)
	if err != nil {
		return nil, fmt.Errorf("Mask: %v", err)
	}
	if bounds.Empty() {
		return nil, fmt.Errorf("Mask: input bounds do not intersect")
	}

	dst := utils.NewByteRaster(bounds, float64(NotFiltered), "mask")
	params := make(map[string]interface{}, len(m.nameSet)+2)
	for y := bounds.MinY; y < bounds.MaxY(); y++ {
		for x := bounds.MinX; x < bounds.MaxX(); x++ {
			for name := range m.nameSet {
				params[name] = float64(srcs[name].Sample(x, y))
			}
			params["x"] = float64(x)
			params["y"] = float64(y)

			result, err := m.expr.Expressions[0].Evaluate(params)
			if err != nil {
				return nil, fmt.Errorf("Mask: eval '%v' error: %v", m.expr.ExprText[0], err)
			}
			filtered, ok := result.(bool)
			if !ok {
				return nil, fmt.Errorf("Mask: expression '%v' is not a predicate", m.expr.ExprText[0])
			}
			if filtered {
				dst.SetSample(x, y, Filtered)
			}
		}
	}
	return dst, nil
}

// AngleExclusion copies source pixels whose paired angle is under the
// threshold and writes a fixed replacement everywhere else. The inclusive
// flag admits pixels exactly at the threshold.
type AngleExclusion struct {
	threshold   float64
	inclusive   bool
	replacement float32
}

func NewAngleExclusion(threshold float64, inclusive bool, replacement float32) (*AngleExclusion, error) {
	if math.IsNaN(threshold) {
		return nil, fmt.Errorf("AngleExclusion: threshold is required")
	}
	return &AngleExclusion{threshold: threshold, inclusive: inclusive, replacement: replacement}, nil
}

func (ae *AngleExclusion) Compute(src, angle *utils.Float32Raster) (*utils.Float32Raster, error) {
	dst, err := NewDerivedRaster(src.NameSpace, src, angle)
	if err != nil {
		return nil, err
	}
	bounds := dst.Bounds()
	for y := bounds.MinY; y < bounds.MaxY(); y++ {
		for x := bounds.MinX; x < bounds.MaxX(); x++ {
			a := float64(angle.Sample(x, y))
			keep := a < ae.threshold || (ae.inclusive && a == ae.threshold)
			if keep {
				dst.SetSample(x, y, src.Sample(x, y))
			} else {
				dst.SetSample(x, y, ae.replacement)
			}
		}
	}
	return dst, nil
}
