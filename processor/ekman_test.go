package processor

import (
	"math"
	"testing"

	"github.com/nci/avhrr/utils"
)

func ekmanStress(width, height int, fn func(x, y int) float32) *utils.Float32Raster {
	r := utils.NewFloat32Raster(utils.Rect{Width: width, Height: height}, math.NaN(), "tau")
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r.SetSample(x, y, fn(x, y))
		}
	}
	return r
}

func TestEkmanPumpingSignFollowsCurlAndHemisphere(t *testing.T) {
	// Meridional stress increasing eastward gives positive curl; with a
	// positive Coriolis parameter the pumping velocity is upward.
	tauX := ekmanStress(3, 3, func(x, y int) float32 { return 0 })
	tauY := ekmanStress(3, 3, func(x, y int) float32 { return float32(x) })

	north, err := NewEkmanPumping(utils.GeoTransform{150, 0.01, 0, 30, 0, -0.01})
	if err != nil {
		t.Fatal(err)
	}
	out, err := north.Compute(tauX, tauY)
	if err != nil {
		t.Fatal(err)
	}
	w := float64(out.Sample(1, 1))
	if math.IsNaN(w) || w <= 0 {
		t.Errorf("northern hemisphere pumping %v, want positive", w)
	}

	south, err := NewEkmanPumping(utils.GeoTransform{150, 0.01, 0, -30, 0, -0.01})
	if err != nil {
		t.Fatal(err)
	}
	out, err = south.Compute(tauX, tauY)
	if err != nil {
		t.Fatal(err)
	}
	if ws := float64(out.Sample(1, 1)); math.IsNaN(ws) || ws >= 0 {
		t.Errorf("southern hemisphere pumping %v, want negative", ws)
	}
}

func TestEkmanPumpingEdgesStayMissing(t *testing.T) {
	tauX := ekmanStress(3, 3, func(x, y int) float32 { return 0 })
	tauY := ekmanStress(3, 3, func(x, y int) float32 { return float32(x) })

	e, err := NewEkmanPumping(utils.GeoTransform{150, 0.01, 0, 30, 0, -0.01})
	if err != nil {
		t.Fatal(err)
	}
	out, err := e.Compute(tauX, tauY)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range [][2]int{{0, 0}, {2, 0}, {0, 2}, {2, 2}, {1, 0}, {0, 1}} {
		if v := float64(out.Sample(p[0], p[1])); !math.IsNaN(v) {
			t.Errorf("border pixel (%d,%d) holds %v, want missing", p[0], p[1], v)
		}
	}
}

func TestEkmanPumpingSkipsLowLatitudes(t *testing.T) {
	tauX := ekmanStress(3, 3, func(x, y int) float32 { return 0 })
	tauY := ekmanStress(3, 3, func(x, y int) float32 { return float32(x) })

	// Centre row sits on the equator where the Coriolis parameter vanishes.
	e, err := NewEkmanPumping(utils.GeoTransform{150, 0.01, 0, 0, 0, -0.01})
	if err != nil {
		t.Fatal(err)
	}
	out, err := e.Compute(tauX, tauY)
	if err != nil {
		t.Fatal(err)
	}
	if v := float64(out.Sample(1, 1)); !math.IsNaN(v) {
		t.Errorf("equatorial pumping %v, want missing", v)
	}
}

func TestEkmanPumpingMissingStressPropagates(t *testing.T) {
	tauX := ekmanStress(3, 3, func(x, y int) float32 { return 0 })
	tauY := ekmanStress(3, 3, func(x, y int) float32 { return float32(x) })
	tauY.SetSample(2, 1, float32(math.NaN()))

	e, err := NewEkmanPumping(utils.GeoTransform{150, 0.01, 0, 30, 0, -0.01})
	if err != nil {
		t.Fatal(err)
	}
	out, err := e.Compute(tauX, tauY)
	if err != nil {
		t.Fatal(err)
	}
	if v := float64(out.Sample(1, 1)); !math.IsNaN(v) {
		t.Errorf("pumping with a missing neighbour is %v, want missing", v)
	}
}

func TestEkmanPumpingValidation(t *testing.T) {
	if _, err := NewEkmanPumping(utils.GeoTransform{150, 0, 0, 30, 0, -0.01}); err == nil {
		t.Error("degenerate transform should be rejected")
	}
}
