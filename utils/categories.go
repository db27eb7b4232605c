package utils

import (
	"fmt"
	"math"
)

// Names of the categories every indexed classification scheme must resolve.
const (
	CategoryNoData         = "NO_DATA"
	CategoryCloud          = "CLOUD"
	CategoryTemperature    = "TEMPERATURE"
	CategoryLandBackground = "LAND_BACKGROUND"
	CategoryLandContour    = "LAND_CONTOUR"
	CategoryLand           = "LAND"
)

// Range is a named value interval over the indexed sample domain of a raster.
type Range struct {
	Name        string
	Lower       float64
	Upper       float64
	MinIncluded bool
	MaxIncluded bool
}

func (r Range) Contains(v float64) bool {
	if v < r.Lower || v > r.Upper {
		return false
	}
	if v == r.Lower && !r.MinIncluded {
		return false
	}
	if v == r.Upper && !r.MaxIncluded {
		return false
	}
	return true
}

// Union composes two ranges into the smallest range covering both, under the
// given name. Used to fold LAND_BACKGROUND and LAND_CONTOUR into LAND.
func (r Range) Union(o Range, name string) Range {
	out := Range{Name: name, Lower: r.Lower, Upper: r.Upper,
		MinIncluded: r.MinIncluded, MaxIncluded: r.MaxIncluded}
	if o.Lower < out.Lower {
		out.Lower, out.MinIncluded = o.Lower, o.MinIncluded
	} else if o.Lower == out.Lower && o.MinIncluded {
		out.MinIncluded = true
	}
	if o.Upper > out.Upper {
		out.Upper, out.MaxIncluded = o.Upper, o.MaxIncluded
	} else if o.Upper == out.Upper && o.MaxIncluded {
		out.MaxIncluded = true
	}
	return out
}

// CategorySet is one classification scheme over an indexed raster.
// Every required category must resolve to exactly one Range; a missing
// category is a configuration error, raised at construction.
type CategorySet struct {
	ranges map[string]Range
}

func NewCategorySet(ranges []Range) (*CategorySet, error) {
	cs := &CategorySet{ranges: make(map[string]Range, len(ranges))}
	for _, rg := range ranges {
		if _, ok := cs.ranges[rg.Name]; ok {
			return nil, fmt.Errorf("categories: duplicate range %q", rg.Name)
		}
		if rg.Upper < rg.Lower {
			return nil, fmt.Errorf("categories: range %q has upper bound below lower bound", rg.Name)
		}
		cs.ranges[rg.Name] = rg
	}
	required := []string{CategoryNoData, CategoryCloud, CategoryTemperature,
		CategoryLandBackground, CategoryLandContour}
	for _, name := range required {
		if _, ok := cs.ranges[name]; !ok {
			return nil, fmt.Errorf("categories: required category %q not resolved", name)
		}
	}
	return cs, nil
}

func (cs *CategorySet) Range(name string) (Range, error) {
	rg, ok := cs.ranges[name]
	if !ok {
		return Range{}, fmt.Errorf("categories: category %q not resolved", name)
	}
	return rg, nil
}

// Land is the union of LAND_BACKGROUND and LAND_CONTOUR.
func (cs *CategorySet) Land() Range {
	bg := cs.ranges[CategoryLandBackground]
	ct := cs.ranges[CategoryLandContour]
	return bg.Union(ct, CategoryLand)
}

// TemperatureValue converts a temperature-category code back to a physical
// value given the scheme's linear coding, and the reverse. The default AVHRR
// scheme codes SST as code = (T - offset) / scale.
type SampleCoding struct {
	Scale  float64
	Offset float64
}

func (sc SampleCoding) Decode(code float64) float64 { return code*sc.Scale + sc.Offset }

func (sc SampleCoding) Encode(v float64) float64 {
	return math.Round((v - sc.Offset) / sc.Scale)
}

// DefaultCategories is the stock AVHRR indexed scheme. The five ranges
// partition the byte sample space with no gaps.
func DefaultCategories() *CategorySet {
	cs, err := NewCategorySet([]Range{
		{Name: CategoryNoData, Lower: 0, Upper: 0, MinIncluded: true, MaxIncluded: true},
		{Name: CategoryCloud, Lower: 1, Upper: 9, MinIncluded: true, MaxIncluded: true},
		{Name: CategoryTemperature, Lower: 10, Upper: 249, MinIncluded: true, MaxIncluded: true},
		{Name: CategoryLandContour, Lower: 250, Upper: 250, MinIncluded: true, MaxIncluded: true},
		{Name: CategoryLandBackground, Lower: 251, Upper: 255, MinIncluded: true, MaxIncluded: true},
	})
	if err != nil {
		// The stock scheme is statically well formed.
		panic(err)
	}
	return cs
}
