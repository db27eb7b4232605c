package processor

import (
	"math"
	"testing"

	"github.com/nci/avhrr/utils"
)

func countsRaster(width, height int, values ...float64) *utils.Float32Raster {
	r := utils.NewFloat32Raster(utils.Rect{Width: width, Height: height}, math.NaN(), "counts")
	for i, v := range values {
		r.Data[i] = float32(v)
	}
	return r
}

func TestAlbedoDualSegment(t *testing.T) {
	// slope1=0.1 intercept1=0, slope2=0.2 intercept2=-50, intersection=500
	grid, err := UniformGrid([]float64{0.1, 0, 0.2, -50, 500}, 1)
	if err != nil {
		t.Fatal(err)
	}
	albedo, err := NewAlbedo(grid)
	if err != nil {
		t.Fatal(err)
	}

	src := countsRaster(3, 1, 100, 500, 600)
	dst, err := albedo.Compute(src)
	if err != nil {
		t.Fatal(err)
	}

	if got := dst.Sample(0, 0); got != 10 {
		t.Errorf("count 100 gave %v, want 10 from the first segment", got)
	}
	// The intersection point itself belongs to the first segment.
	if got := dst.Sample(1, 0); got != 50 {
		t.Errorf("count 500 gave %v, want 50 from the first segment", got)
	}
	if got := dst.Sample(2, 0); got != 70 {
		t.Errorf("count 600 gave %v, want 70 from the second segment", got)
	}
}

func TestAlbedoClampsNegative(t *testing.T) {
	grid, err := UniformGrid([]float64{0.1, -100, 0.1, -100, math.MaxFloat64}, 1)
	if err != nil {
		t.Fatal(err)
	}
	albedo, err := NewAlbedo(grid)
	if err != nil {
		t.Fatal(err)
	}

	dst, err := albedo.Compute(countsRaster(1, 1, 10))
	if err != nil {
		t.Fatal(err)
	}
	if got := dst.Sample(0, 0); got != 0 {
		t.Errorf("negative albedo gave %v, want clamp to 0", got)
	}
}

func TestAlbedoSkipsMissing(t *testing.T) {
	grid, _ := UniformGrid([]float64{0.1, 0, 0.1, 0, math.MaxFloat64}, 1)
	albedo, _ := NewAlbedo(grid)

	dst, err := albedo.Compute(countsRaster(2, 1, 100, math.NaN()))
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(float64(dst.Sample(1, 0))) {
		t.Error("missing input should stay missing")
	}
}

func TestRadianceGenerations(t *testing.T) {
	klmGrid, _ := UniformGrid([]float64{5, 2, 0.5}, 1)
	klm, err := NewRadiance(GenerationKLM, klmGrid)
	if err != nil {
		t.Fatal(err)
	}
	dst, err := klm.Compute(countsRaster(1, 1, 4))
	if err != nil {
		t.Fatal(err)
	}
	// 5 + 4*(2 + 0.5*4) = 21
	if got := dst.Sample(0, 0); got != 21 {
		t.Errorf("klm radiance gave %v, want 21", got)
	}

	ajGrid, _ := UniformGrid([]float64{2, 3}, 1)
	aj, err := NewRadiance(GenerationAJ, ajGrid)
	if err != nil {
		t.Fatal(err)
	}
	dst, err = aj.Compute(countsRaster(1, 1, 4))
	if err != nil {
		t.Fatal(err)
	}
	// 2*4 + 3 = 11
	if got := dst.Sample(0, 0); got != 11 {
		t.Errorf("aj radiance gave %v, want 11", got)
	}
}

func TestRadianceRejectsWrongRecordLength(t *testing.T) {
	grid, _ := UniformGrid([]float64{5, 2, 0.5}, 1)
	if _, err := NewRadiance(GenerationAJ, grid); err == nil {
		t.Fatal("aj radiance should reject a 3-coefficient record")
	}
}

func TestTemperatureInversePlanck(t *testing.T) {
	planck := utils.PlanckCoefs{C1: 1.1910427e-5, C2: 1.4387752, Nu: 928.9}
	temp, err := NewTemperature(GenerationKLM, planck)
	if err != nil {
		t.Fatal(err)
	}

	dst, err := temp.Compute(countsRaster(1, 1, 95))
	if err != nil {
		t.Fatal(err)
	}

	nu3 := planck.Nu * planck.Nu * planck.Nu
	want := planck.C2 * planck.Nu / math.Log(1+planck.C1*nu3/95)
	if got := float64(dst.Sample(0, 0)); math.Abs(got-want) > 1e-3 {
		t.Errorf("temperature gave %v, want %v", got, want)
	}
	if got := float64(dst.Sample(0, 0)); got < 250 || got > 330 {
		t.Errorf("brightness temperature %v K is not physically plausible", got)
	}
}

func TestTemperatureSkipsNonPositiveRadiance(t *testing.T) {
	temp, _ := NewTemperature(GenerationAJ, utils.PlanckCoefs{C1: 1.1910427e-5, C2: 1.4387752, Nu: 928.9})

	dst, err := temp.Compute(countsRaster(2, 1, 0, -3))
	if err != nil {
		t.Fatal(err)
	}
	for x := 0; x < 2; x++ {
		if !math.IsNaN(float64(dst.Sample(x, 0))) {
			t.Errorf("non-positive radiance at %d should stay missing", x)
		}
	}
}

func TestTemperatureCorrectionIsKLMOnly(t *testing.T) {
	planck := utils.PlanckCoefs{C1: 1, C2: 1, Nu: 1, A: 0.5, B: 0.998, Correction: true}
	if _, err := NewTemperature(GenerationAJ, planck); err == nil {
		t.Fatal("aj generation should reject the linear correction")
	}
	if _, err := NewTemperature(GenerationKLM, planck); err != nil {
		t.Fatalf("klm correction should construct: %v", err)
	}
}

func TestCoefficientGridRecordRange(t *testing.T) {
	grid, err := NewCoefficientGrid([][]float64{{1, 2}, {3, 4}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := grid.Record(2); err == nil {
		t.Fatal("row beyond the grid should be an error")
	}
	rec, err := grid.Record(1)
	if err != nil {
		t.Fatal(err)
	}
	if rec[0] != 3 || rec[1] != 4 {
		t.Errorf("record 1 is %v, want [3 4]", rec)
	}
}
