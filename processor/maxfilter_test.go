package processor

import (
	"testing"

	"github.com/nci/avhrr/utils"
)

func TestMaxFilterLandPassesThrough(t *testing.T) {
	f, err := NewMaxFilter(utils.DefaultCategories(), 3, 3, 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	src := indexedRaster(utils.Rect{Width: 3, Height: 3},
		100, 110, 120,
		130, 250, 140,
		150, 160, 170,
	)
	dst, err := f.Compute(src)
	if err != nil {
		t.Fatal(err)
	}
	if got := dst.Sample(1, 1); got != 250 {
		t.Errorf("land contour pixel became %v, want untouched 250", got)
	}
}

func TestMaxFilterTakesWindowMaximum(t *testing.T) {
	f, err := NewMaxFilter(utils.DefaultCategories(), 3, 3, 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	src := indexedRaster(utils.Rect{Width: 3, Height: 3},
		100, 110, 120,
		130, 5, 140,
		150, 160, 249,
	)
	dst, err := f.Compute(src)
	if err != nil {
		t.Fatal(err)
	}
	if got := dst.Sample(1, 1); got != 249 {
		t.Errorf("cloud key pixel became %v, want window maximum 249", got)
	}
}

func TestMaxFilterNoTemperatureInWindow(t *testing.T) {
	f, err := NewMaxFilter(utils.DefaultCategories(), 3, 3, 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	// All cloud, no temperature candidates anywhere.
	src := indexedRaster(utils.Rect{Width: 3, Height: 3},
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	)
	dst, err := f.Compute(src)
	if err != nil {
		t.Fatal(err)
	}
	if got := dst.Sample(1, 1); got != 5 {
		t.Errorf("key pixel became %v, want passthrough 5", got)
	}
}

func TestMaxFilterWindowClampsAtEdges(t *testing.T) {
	f, err := NewMaxFilter(utils.DefaultCategories(), 3, 3, 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	src := indexedRaster(utils.Rect{Width: 2, Height: 2},
		5, 200,
		100, 3,
	)
	dst, err := f.Compute(src)
	if err != nil {
		t.Fatal(err)
	}
	// Corner pixel's window sees only the 2x2 grid.
	if got := dst.Sample(0, 0); got != 200 {
		t.Errorf("corner gave %v, want 200", got)
	}
}

func TestMaxFilterValidation(t *testing.T) {
	if _, err := NewMaxFilter(utils.DefaultCategories(), 0, 3, 0, 0); err == nil {
		t.Error("empty window should be rejected")
	}
	if _, err := NewMaxFilter(utils.DefaultCategories(), 3, 3, 5, 1); err == nil {
		t.Error("key pixel outside the window should be rejected")
	}
	if _, err := NewMaxFilter(nil, 3, 3, 1, 1); err == nil {
		t.Error("missing categories should be rejected")
	}
}
