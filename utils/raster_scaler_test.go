package utils

import (
	"math"
	"testing"
)

func TestScaleFloat32Raster(t *testing.T) {
	bounds := Rect{Width: 4, Height: 1}
	r := NewFloat32Raster(bounds, math.NaN(), "sst")
	r.Data[0] = 100
	r.Data[1] = 300 // above clip
	r.Data[2] = -20 // below zero after offset
	// Data[3] stays NaN.

	out, err := Scale([]Raster{r}, ScaleParams{Offset: 0, Scale: 1, Clip: 254})
	if err != nil {
		t.Fatal(err)
	}

	if out[0].Data[0] != 100 {
		t.Errorf("plain value scaled to %v, want 100", out[0].Data[0])
	}
	if out[0].Data[1] != 254 {
		t.Errorf("over-clip value scaled to %v, want 254", out[0].Data[1])
	}
	if out[0].Data[2] != 0 {
		t.Errorf("negative value scaled to %v, want 0", out[0].Data[2])
	}
	if out[0].Data[3] != 0xFF {
		t.Errorf("missing value scaled to %v, want transparent 0xFF", out[0].Data[3])
	}
}

func TestScaleByteRaster(t *testing.T) {
	bounds := Rect{Width: 3, Height: 1}
	r := NewByteRaster(bounds, 0, "classified")
	copy(r.Data, []uint8{0, 100, 250})

	out, err := Scale([]Raster{r}, ScaleParams{Scale: 1, Clip: 200})
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Data[0] != 0xFF {
		t.Errorf("nodata sample scaled to %v, want 0xFF", out[0].Data[0])
	}
	if out[0].Data[1] != 100 {
		t.Errorf("sample scaled to %v, want 100", out[0].Data[1])
	}
	if out[0].Data[2] != 200 {
		t.Errorf("over-clip sample scaled to %v, want 200", out[0].Data[2])
	}
}
