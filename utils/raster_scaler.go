package utils

import (
	"fmt"
	"math"
)

type ScaleParams struct {
	Offset float64
	Scale  float64
	Clip   float64
}

func scale(r Raster, params ScaleParams) (*ByteRaster, error) {
	switch t := r.(type) {
	case *ByteRaster:
		noData := uint8(t.NoData)
		scale := params.Scale
		clip := uint8(params.Clip)

		out := NewByteRaster(t.Bounds(), 0xFF, t.NameSpace)
		for i, value := range t.Data {
			if value == noData {
				out.Data[i] = 0xFF
			} else {
				if value > clip {
					value = clip
				}
				out.Data[i] = uint8(float64(value) * scale)
			}
		}
		return out, nil

	case *Float32Raster:
		out := NewByteRaster(t.Bounds(), 0xFF, t.NameSpace)

		scale := float32(params.Scale)
		offset := float32(params.Offset)
		clip := float32(params.Clip)

		for i, value := range t.Data {
			if t.IsNoData(value) || math.IsNaN(float64(value)) {
				out.Data[i] = 0xFF
			} else {
				value += offset
				if value < 0 {
					value = 0
				}
				if value > clip {
					value = clip
				}
				out.Data[i] = uint8(value * scale)
			}
		}
		return out, nil

	default:
		return &ByteRaster{}, fmt.Errorf("Raster type not implemented")
	}
}

// Scale squashes derived rasters into byte rasters for materialisation,
// mapping the missing-value sentinel to 0xFF.
func Scale(rs []Raster, params ScaleParams) ([]*ByteRaster, error) {
	out := make([]*ByteRaster, len(rs))

	for i, r := range rs {
		br, err := scale(r, params)
		if err != nil {
			return out, err
		}
		out[i] = br
	}

	return out, nil
}
