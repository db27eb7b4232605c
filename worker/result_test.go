package worker

import (
	"bytes"
	"math"
	"reflect"
	"testing"
)

func sampleResult() *Result {
	p := Params{Operation: "semivariance", Interval: 1000, Radius: 5000, CoefficientID: "sst"}
	r := NewResult(p, 3)
	r.Descriptor = "sst 2x2"
	r.AddImage("noaa17_20030412_1430")
	r.Merge(&Contribution{
		Units:   2,
		Scalars: map[string]float64{"sum": 10, "sumSquares": 30},
		Vectors: map[string][]float64{"sumSq": {1, 2, 3, 4, 5}},
		Counts:  map[string][]int64{"count": {6, 0, 0, 1, 0}},
	})
	return r
}

func TestResultMergeAccumulates(t *testing.T) {
	r := sampleResult()
	r.Merge(&Contribution{
		Units:   1,
		Scalars: map[string]float64{"sum": 5},
		Vectors: map[string][]float64{"sumSq": {1, 0, 0, 0, 0}},
		Counts:  map[string][]int64{"count": {1, 0, 0, 0, 0}},
	})

	if r.UnitCount != 3 {
		t.Errorf("unit count %d, want 3", r.UnitCount)
	}
	if !r.IsComplete() {
		t.Error("all units merged, result should be complete")
	}
	if r.Scalars["sum"] != 15 {
		t.Errorf("sum %v, want 15", r.Scalars["sum"])
	}
	if r.Vectors["sumSq"][0] != 2 {
		t.Errorf("sumSq[0] %v, want 2", r.Vectors["sumSq"][0])
	}
	if r.Counts["count"][0] != 7 {
		t.Errorf("count[0] %v, want 7", r.Counts["count"][0])
	}
}

func TestResultCompatibility(t *testing.T) {
	r := sampleResult()
	if err := r.CompatibleWith(r.Params); err != nil {
		t.Errorf("identical parameters rejected: %v", err)
	}

	other := r.Params
	other.Interval = 2000
	if err := r.CompatibleWith(other); err == nil {
		t.Error("differing interval must be rejected")
	}
	other = r.Params
	other.CoefficientID = "albedo"
	if err := r.CompatibleWith(other); err == nil {
		t.Error("differing coefficient identity must be rejected")
	}
}

func TestResultPersistRoundTrip(t *testing.T) {
	src := sampleResult()

	var buf bytes.Buffer
	if err := SaveResult(&buf, src); err != nil {
		t.Fatal(err)
	}
	got, err := LoadResult(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}

	if got.Params != src.Params {
		t.Errorf("params %+v, want %+v", got.Params, src.Params)
	}
	if got.TotalUnits != src.TotalUnits || got.UnitCount != src.UnitCount {
		t.Errorf("units %d/%d, want %d/%d", got.UnitCount, got.TotalUnits, src.UnitCount, src.TotalUnits)
	}
	if got.Descriptor != src.Descriptor {
		t.Errorf("descriptor %q, want %q", got.Descriptor, src.Descriptor)
	}
	if !reflect.DeepEqual(got.Images, src.Images) {
		t.Errorf("images %v, want %v", got.Images, src.Images)
	}
	if !reflect.DeepEqual(got.Scalars, src.Scalars) {
		t.Errorf("scalars %v, want %v", got.Scalars, src.Scalars)
	}
	if !reflect.DeepEqual(got.Vectors, src.Vectors) {
		t.Errorf("vectors %v, want %v", got.Vectors, src.Vectors)
	}
	if !reflect.DeepEqual(got.Counts, src.Counts) {
		t.Errorf("counts %v, want %v", got.Counts, src.Counts)
	}
}

func TestLoadResultRejectsGarbage(t *testing.T) {
	if _, err := LoadResult(bytes.NewReader([]byte("not a result file"))); err == nil {
		t.Fatal("expected a header error")
	}
}

func TestParamsFingerprintDistinguishesFields(t *testing.T) {
	a := Params{Operation: "semivariance", Interval: 1000, Radius: 5000, CoefficientID: "sst"}
	b := a
	b.Radius = 5001
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("differing radius should change the fingerprint")
	}
	if a.Fingerprint() != a.Fingerprint() {
		t.Error("fingerprint must be deterministic")
	}
}

func TestClampProgress(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-5, 0},
		{0, 0},
		{42.5, 42.5},
		{100, 100},
		{250, 100},
		{math.NaN(), 0},
	}
	for _, c := range cases {
		if got := ClampProgress(c.in); got != c.want {
			t.Errorf("ClampProgress(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestCancelFlag(t *testing.T) {
	f := &CancelFlag{}
	if f.IsSet() {
		t.Error("fresh flag should be clear")
	}
	f.Set()
	if !f.IsSet() {
		t.Error("set flag should read set")
	}
}
