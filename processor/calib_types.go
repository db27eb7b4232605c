package processor

import (
	"fmt"
	"math"
	"strings"

	"github.com/nci/avhrr/utils"
)

const ISOFormat = "2006-01-02T15:04:05.000Z"

// Generation selects the two-way calibration formula switch. It is resolved
// once at construction; only the dual-segment albedo branch remains
// per-pixel.
type Generation int

const (
	GenerationAJ Generation = iota
	GenerationKLM
)

func ParseGeneration(s string) (Generation, error) {
	switch strings.ToLower(s) {
	case "aj":
		return GenerationAJ, nil
	case "klm":
		return GenerationKLM, nil
	}
	return GenerationAJ, fmt.Errorf("unknown satellite generation %q", s)
}

func (g Generation) String() string {
	if g == GenerationKLM {
		return "klm"
	}
	return "aj"
}

// CoefficientGrid is a row-indexed table of calibration coefficients, one
// record per scan line of the source image. Built once per source image and
// read-only thereafter.
type CoefficientGrid struct {
	records [][]float64
}

func NewCoefficientGrid(records [][]float64) (*CoefficientGrid, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("coefficient grid: no records")
	}
	width := len(records[0])
	for i, rec := range records {
		if len(rec) != width {
			return nil, fmt.Errorf("coefficient grid: record %d has %d coefficients, want %d", i, len(rec), width)
		}
	}
	return &CoefficientGrid{records: records}, nil
}

// UniformGrid replicates one coefficient record for every scan line, for
// satellites whose calibration does not drift within an acquisition.
func UniformGrid(record []float64, lines int) (*CoefficientGrid, error) {
	if lines <= 0 {
		return nil, fmt.Errorf("coefficient grid: %d lines", lines)
	}
	records := make([][]float64, lines)
	for i := range records {
		records[i] = record
	}
	return NewCoefficientGrid(records)
}

func (g *CoefficientGrid) Record(row int) ([]float64, error) {
	if row < 0 || row >= len(g.records) {
		return nil, fmt.Errorf("coefficient grid: row %d out of range [0, %d)", row, len(g.records))
	}
	return g.records[row], nil
}

func (g *CoefficientGrid) NumRecords() int { return len(g.records) }

func (g *CoefficientGrid) RecordLength() int { return len(g.records[0]) }

// NewDerivedRaster allocates the output of a pointwise operator: the
// intersection of all input bounds, NaN-filled.
func NewDerivedRaster(nameSpace string, srcs ...utils.Raster) (*utils.Float32Raster, error) {
	bounds, err := utils.IntersectBounds(srcs...)
	if err != nil {
		return nil, err
	}
	if bounds.Empty() {
		return nil, fmt.Errorf("%s: input bounds do not intersect", nameSpace)
	}
	return utils.NewFloat32Raster(bounds, math.NaN(), nameSpace), nil
}
