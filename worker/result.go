package worker

import (
	"fmt"
	"hash/fnv"
	"sync"
)

// Params identifies the configuration a Result was accumulated under.
// Results persisted with different parameters must never be extended in
// place; the mismatch is surfaced to the caller instead.
type Params struct {
	Operation     string
	Interval      float64
	Radius        float64
	CoefficientID string
}

// Fingerprint is the value stored in the persisted header so that an
// incompatible Result is detected by field comparison, not by a decode
// failure half way through.
func (p Params) Fingerprint() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%.17g|%.17g|%s", p.Operation, p.Interval, p.Radius, p.CoefficientID)
	return h.Sum64()
}

// Contribution is one completed unit of work (typically one scan row).
// Contributions are merged whole, so a Result is consistent at any instant
// even when a run is cancelled part way.
type Contribution struct {
	Units   int
	Scalars map[string]float64
	Vectors map[string][]float64
	Counts  map[string][]int64
}

// Result is the mutable, persistable accumulator tied to a set of source
// images. All mutation goes through Merge, guarded by an explicit mutex so
// that rows may be accumulated in parallel.
type Result struct {
	mu sync.Mutex

	Params     Params
	TotalUnits int
	UnitCount  int
	Descriptor string

	Images  map[string]bool
	Scalars map[string]float64
	Vectors map[string][]float64
	Counts  map[string][]int64
}

func NewResult(p Params, totalUnits int) *Result {
	return &Result{
		Params:     p,
		TotalUnits: totalUnits,
		Images:     map[string]bool{},
		Scalars:    map[string]float64{},
		Vectors:    map[string][]float64{},
		Counts:     map[string][]int64{},
	}
}

// Merge folds one whole completed unit of work into the accumulator.
func (r *Result) Merge(c *Contribution) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, v := range c.Scalars {
		r.Scalars[name] += v
	}
	for name, vec := range c.Vectors {
		dst, ok := r.Vectors[name]
		if !ok {
			dst = make([]float64, len(vec))
			r.Vectors[name] = dst
		}
		for i, v := range vec {
			dst[i] += v
		}
	}
	for name, vec := range c.Counts {
		dst, ok := r.Counts[name]
		if !ok {
			dst = make([]int64, len(vec))
			r.Counts[name] = dst
		}
		for i, v := range vec {
			dst[i] += v
		}
	}
	r.UnitCount += c.Units
}

func (r *Result) AddImage(id string) {
	r.mu.Lock()
	r.Images[id] = true
	r.mu.Unlock()
}

func (r *Result) HasImage(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Images[id]
}

// IsComplete reports whether every expected unit has been folded in.
func (r *Result) IsComplete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.TotalUnits > 0 && r.UnitCount >= r.TotalUnits
}

// CompatibleWith verifies the accumulator was built under the same
// parameters as the current request. A mismatch is a fatal usage error for
// the image being processed; callers must not silently start over.
func (r *Result) CompatibleWith(p Params) error {
	if r.Params != p {
		return fmt.Errorf("result: incompatible parameters: persisted %+v, requested %+v", r.Params, p)
	}
	return nil
}
