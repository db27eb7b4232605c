package processor

import (
	"fmt"

	"github.com/nci/avhrr/utils"
)

// MaxFilter smooths an indexed raster with a sliding window: land pixels
// pass through unchanged, any other key pixel takes the maximum
// temperature-category value found in its window, or passes through when
// the window holds no temperature pixel.
type MaxFilter struct {
	land    utils.Range
	temp    utils.Range
	width   int
	height  int
	keyX    int
	keyY    int
}

func NewMaxFilter(cats *utils.CategorySet, width, height, keyX, keyY int) (*MaxFilter, error) {
	if cats == nil {
		return nil, fmt.Errorf("MaxFilter: categories are required")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("MaxFilter: window %dx%d is empty", width, height)
	}
	if keyX < 0 || keyX >= width || keyY < 0 || keyY >= height {
		return nil, fmt.Errorf("MaxFilter: key pixel (%d,%d) outside %dx%d window", keyX, keyY, width, height)
	}
	temp, err := cats.Range(utils.CategoryTemperature)
	if err != nil {
		return nil, fmt.Errorf("MaxFilter: %v", err)
	}
	return &MaxFilter{
		land:   cats.Land(),
		temp:   temp,
		width:  width,
		height: height,
		keyX:   keyX,
		keyY:   keyY,
	}, nil
}

func (f *MaxFilter) Compute(src *utils.ByteRaster) (*utils.ByteRaster, error) {
	bounds := src.Bounds()
	dst := utils.NewByteRaster(bounds, src.NoData, src.NameSpace)

	for y := bounds.MinY; y < bounds.MaxY(); y++ {
		for x := bounds.MinX; x < bounds.MaxX(); x++ {
			v := src.Sample(x, y)
			if f.land.Contains(float64(v)) {
				dst.SetSample(x, y, v)
				continue
			}

			found := false
			var max uint8
			for wy := y - f.keyY; wy < y-f.keyY+f.height; wy++ {
				if wy < bounds.MinY || wy >= bounds.MaxY() {
					continue
				}
				for wx := x - f.keyX; wx < x-f.keyX+f.width; wx++ {
					if wx < bounds.MinX || wx >= bounds.MaxX() {
						continue
					}
					wv := src.Sample(wx, wy)
					if !f.temp.Contains(float64(wv)) {
						continue
					}
					if !found || wv > max {
						max = wv
						found = true
					}
				}
			}
			if found {
				dst.SetSample(x, y, max)
			} else {
				dst.SetSample(x, y, v)
			}
		}
	}
	return dst, nil
}
