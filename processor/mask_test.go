package processor

import (
	"math"
	"testing"

	"github.com/nci/avhrr/utils"
)

func TestMaskPredicate(t *testing.T) {
	expr, err := utils.ParseBandExpressions([]string{"sst > 300"})
	if err != nil {
		t.Fatal(err)
	}
	mask, err := NewMask(expr)
	if err != nil {
		t.Fatal(err)
	}

	src := countsRaster(2, 1, 290, 310)
	src.NameSpace = "sst"
	dst, err := mask.Compute(map[string]*utils.Float32Raster{"sst": src})
	if err != nil {
		t.Fatal(err)
	}
	if got := dst.Sample(0, 0); got != NotFiltered {
		t.Errorf("290 K flagged %v, want not filtered", got)
	}
	if got := dst.Sample(1, 0); got != Filtered {
		t.Errorf("310 K flagged %v, want filtered", got)
	}
}

func TestMaskCoordinateVariables(t *testing.T) {
	expr, err := utils.ParseBandExpressions([]string{"x == 0 && y == 0"})
	if err != nil {
		t.Fatal(err)
	}
	mask, err := NewMask(expr)
	if err != nil {
		t.Fatal(err)
	}

	src := countsRaster(2, 1, 1, 1)
	dst, err := mask.Compute(map[string]*utils.Float32Raster{"band": src})
	if err != nil {
		t.Fatal(err)
	}
	if dst.Sample(0, 0) != Filtered || dst.Sample(1, 0) != NotFiltered {
		t.Error("coordinate predicate misclassified the pixels")
	}
}

func TestMaskRejectsMissingBand(t *testing.T) {
	expr, err := utils.ParseBandExpressions([]string{"albedo > 10"})
	if err != nil {
		t.Fatal(err)
	}
	mask, err := NewMask(expr)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mask.Compute(map[string]*utils.Float32Raster{"sst": countsRaster(1, 1, 1)}); err == nil {
		t.Fatal("referencing an unsupplied band should fail")
	}
}

func TestMaskRequiresPredicate(t *testing.T) {
	expr, err := utils.ParseBandExpressions([]string{"sst + 1"})
	if err != nil {
		t.Fatal(err)
	}
	mask, err := NewMask(expr)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mask.Compute(map[string]*utils.Float32Raster{"sst": countsRaster(1, 1, 1)}); err == nil {
		t.Fatal("arithmetic expression should be rejected as a filter")
	}
}

func TestAngleExclusion(t *testing.T) {
	ae, err := NewAngleExclusion(40, false, float32(math.NaN()))
	if err != nil {
		t.Fatal(err)
	}

	src := countsRaster(3, 1, 10, 20, 30)
	angle := countsRaster(3, 1, 39.9, 40, 50)

	dst, err := ae.Compute(src, angle)
	if err != nil {
		t.Fatal(err)
	}
	if got := dst.Sample(0, 0); got != 10 {
		t.Errorf("under-threshold pixel gave %v, want copied 10", got)
	}
	if !math.IsNaN(float64(dst.Sample(1, 0))) {
		t.Error("exact-threshold pixel should be replaced when exclusive")
	}
	if !math.IsNaN(float64(dst.Sample(2, 0))) {
		t.Error("over-threshold pixel should be replaced")
	}

	inclusive, err := NewAngleExclusion(40, true, float32(math.NaN()))
	if err != nil {
		t.Fatal(err)
	}
	dst, err = inclusive.Compute(src, angle)
	if err != nil {
		t.Fatal(err)
	}
	if got := dst.Sample(1, 0); got != 20 {
		t.Errorf("exact-threshold pixel gave %v, want kept 20 when inclusive", got)
	}
}
