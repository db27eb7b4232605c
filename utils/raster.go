package utils

import (
	"fmt"
	"math"
)

// Rect is a rectangular pixel-space region [MinX, MinX+Width) x [MinY, MinY+Height).
type Rect struct {
	MinX, MinY    int
	Width, Height int
}

func (r Rect) MaxX() int { return r.MinX + r.Width }
func (r Rect) MaxY() int { return r.MinY + r.Height }

func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

func (r Rect) Contains(x, y int) bool {
	return x >= r.MinX && x < r.MaxX() && y >= r.MinY && y < r.MaxY()
}

// Intersect returns the overlap of two regions. Operator outputs are always
// computed over the intersection of their input bounds, never the union.
func (r Rect) Intersect(o Rect) Rect {
	minX := r.MinX
	if o.MinX > minX {
		minX = o.MinX
	}
	minY := r.MinY
	if o.MinY > minY {
		minY = o.MinY
	}
	maxX := r.MaxX()
	if o.MaxX() < maxX {
		maxX = o.MaxX()
	}
	maxY := r.MaxY()
	if o.MaxY() < maxY {
		maxY = o.MaxY()
	}
	out := Rect{MinX: minX, MinY: minY, Width: maxX - minX, Height: maxY - minY}
	if out.Empty() {
		return Rect{MinX: minX, MinY: minY}
	}
	return out
}

type Raster interface {
	GetNoData() float64
	Bounds() Rect
}

// ByteRaster holds one band of indexed (categorical) samples.
type ByteRaster struct {
	Data          []uint8
	Height, Width int
	OffX, OffY    int
	NoData        float64
	NameSpace     string
}

func NewByteRaster(bounds Rect, noData float64, nameSpace string) *ByteRaster {
	r := &ByteRaster{
		Data:      make([]uint8, bounds.Width*bounds.Height),
		Height:    bounds.Height,
		Width:     bounds.Width,
		OffX:      bounds.MinX,
		OffY:      bounds.MinY,
		NoData:    noData,
		NameSpace: nameSpace,
	}
	fill := uint8(noData)
	if fill != 0 {
		for i := range r.Data {
			r.Data[i] = fill
		}
	}
	return r
}

func (r *ByteRaster) GetNoData() float64 { return r.NoData }

func (r *ByteRaster) Bounds() Rect {
	return Rect{MinX: r.OffX, MinY: r.OffY, Width: r.Width, Height: r.Height}
}

// Sample reads the sample at absolute pixel coordinates.
func (r *ByteRaster) Sample(x, y int) uint8 {
	return r.Data[(y-r.OffY)*r.Width+(x-r.OffX)]
}

func (r *ByteRaster) SetSample(x, y int, v uint8) {
	r.Data[(y-r.OffY)*r.Width+(x-r.OffX)] = v
}

// Float32Raster holds one band of continuous samples. Derived products use
// NaN as the missing-value sentinel.
type Float32Raster struct {
	Data          []float32
	Height, Width int
	OffX, OffY    int
	NoData        float64
	NameSpace     string
}

func NewFloat32Raster(bounds Rect, noData float64, nameSpace string) *Float32Raster {
	r := &Float32Raster{
		Data:      make([]float32, bounds.Width*bounds.Height),
		Height:    bounds.Height,
		Width:     bounds.Width,
		OffX:      bounds.MinX,
		OffY:      bounds.MinY,
		NoData:    noData,
		NameSpace: nameSpace,
	}
	fill := float32(noData)
	if fill != 0 {
		for i := range r.Data {
			r.Data[i] = fill
		}
	}
	return r
}

func (r *Float32Raster) GetNoData() float64 { return r.NoData }

func (r *Float32Raster) Bounds() Rect {
	return Rect{MinX: r.OffX, MinY: r.OffY, Width: r.Width, Height: r.Height}
}

func (r *Float32Raster) Sample(x, y int) float32 {
	return r.Data[(y-r.OffY)*r.Width+(x-r.OffX)]
}

func (r *Float32Raster) SetSample(x, y int, v float32) {
	r.Data[(y-r.OffY)*r.Width+(x-r.OffX)] = v
}

// IsNoData reports whether v matches the raster's missing-value sentinel.
func (r *Float32Raster) IsNoData(v float32) bool {
	if math.IsNaN(r.NoData) {
		return math.IsNaN(float64(v))
	}
	return float64(v) == r.NoData
}

// IntersectBounds folds the bounds of all rasters into one region.
func IntersectBounds(rs ...Raster) (Rect, error) {
	if len(rs) == 0 {
		return Rect{}, fmt.Errorf("raster: no input bounds to intersect")
	}
	out := rs[0].Bounds()
	for _, r := range rs[1:] {
		out = out.Intersect(r.Bounds())
	}
	return out, nil
}
