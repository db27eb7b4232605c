package utils

import (
	"testing"
)

func TestDefaultCategoriesPartitionByteDomain(t *testing.T) {
	cs := DefaultCategories()
	names := []string{CategoryNoData, CategoryCloud, CategoryTemperature,
		CategoryLandContour, CategoryLandBackground}

	for v := 0; v <= 255; v++ {
		hits := 0
		for _, name := range names {
			rg, err := cs.Range(name)
			if err != nil {
				t.Fatalf("range %s: %v", name, err)
			}
			if rg.Contains(float64(v)) {
				hits++
			}
		}
		if hits != 1 {
			t.Errorf("value %d matched %d categories, want exactly 1", v, hits)
		}
	}
}

func TestLandUnionCoversBackgroundAndContour(t *testing.T) {
	cs := DefaultCategories()
	land := cs.Land()

	for _, v := range []float64{250, 251, 255} {
		if !land.Contains(v) {
			t.Errorf("LAND should contain %v", v)
		}
	}
	for _, v := range []float64{0, 9, 249} {
		if land.Contains(v) {
			t.Errorf("LAND should not contain %v", v)
		}
	}
}

func TestRangeContainsBounds(t *testing.T) {
	rg := Range{Name: "half-open", Lower: 10, Upper: 20, MinIncluded: true, MaxIncluded: false}
	if !rg.Contains(10) {
		t.Error("lower bound should be included")
	}
	if rg.Contains(20) {
		t.Error("upper bound should be excluded")
	}
	if !rg.Contains(19.99) {
		t.Error("interior value should be included")
	}
}

func TestCategorySetRejectsMissingCategory(t *testing.T) {
	_, err := NewCategorySet([]Range{
		{Name: CategoryNoData, Lower: 0, Upper: 0, MinIncluded: true, MaxIncluded: true},
	})
	if err == nil {
		t.Fatal("expected error for missing required categories")
	}
}

func TestSampleCodingRoundTrip(t *testing.T) {
	sc := SampleCoding{Scale: 0.125, Offset: 271.15}
	for code := 10.0; code <= 249; code++ {
		v := sc.Decode(code)
		if got := sc.Encode(v); got != code {
			t.Fatalf("code %v decoded to %v re-encoded to %v", code, v, got)
		}
	}
}
