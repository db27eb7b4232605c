package processor

import (
	"bytes"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/nci/avhrr/utils"
	"github.com/nci/avhrr/worker"
)

type memImage struct {
	id    string
	scene *utils.Scene
}

func (m *memImage) Identifier() string          { return m.id }
func (m *memImage) FileName() string            { return m.id + ".grid" }
func (m *memImage) Load() (*utils.Scene, error) { return m.scene, nil }

type memStore struct {
	blobs map[string][]byte
	saves int
}

func newMemStore() *memStore { return &memStore{blobs: map[string][]byte{}} }

func (s *memStore) Save(key string, r *worker.Result) error {
	var buf bytes.Buffer
	if err := worker.SaveResult(&buf, r); err != nil {
		return err
	}
	s.blobs[key] = buf.Bytes()
	s.saves++
	return nil
}

func (s *memStore) Load(key string) (*worker.Result, error) {
	blob, ok := s.blobs[key]
	if !ok {
		return nil, worker.ErrResultNotFound
	}
	return worker.LoadResult(bytes.NewReader(blob))
}

// equatorScene is a 2x2 grid of ~1.1 km pixels with the values 1..4.
func equatorScene(values ...float64) *utils.Scene {
	bounds := utils.Rect{Width: 2, Height: 2}
	band := utils.NewFloat32Raster(bounds, math.NaN(), "sst")
	for i, v := range values {
		band.Data[i] = float32(v)
	}
	return &utils.Scene{
		Identifier:   "equator",
		Transform:    utils.GeoTransform{0, 0.01, 0, 0.01, 0, -0.01},
		AcqStart:     time.Date(2003, 4, 12, 14, 30, 0, 0, time.UTC),
		LineDuration: 500 * time.Millisecond,
		Bands:        map[string]*utils.Float32Raster{"sst": band},
	}
}

func TestSemiVarianceHandComputedGrid(t *testing.T) {
	sv, err := NewSemiVariance(5000, 5000, "sst", nil, nil, 64)
	if err != nil {
		t.Fatal(err)
	}
	src := &memImage{id: "equator", scene: equatorScene(1, 2, 3, 4)}

	res, err := sv.Run(src, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsComplete() {
		t.Fatalf("run left %d of %d rows", res.UnitCount, res.TotalUnits)
	}

	// All 6 forward pairs of a 2x2 grid land in the single bucket.
	if got := res.Counts[KeyCount][0]; got != 6 {
		t.Errorf("bucket 0 holds %d pairs, want 6", got)
	}
	// Squared diffs of (1,2,3,4): 1+4+9+1+4+1.
	if got := res.Vectors[KeySumSq][0]; math.Abs(got-20) > 1e-9 {
		t.Errorf("bucket 0 sumSq is %v, want 20", got)
	}
	// Four ~1.1 km sides and two ~1.6 km diagonals.
	if got := res.Vectors[KeySumDist][0]; got < 6000 || got > 12000 {
		t.Errorf("bucket 0 sumDist is %v m, outside the plausible window", got)
	}
	if got := res.Counts[KeyCount2D][0]; got != 6 {
		t.Errorf("2-D bucket 0 holds %d pairs, want 6", got)
	}

	if got := res.Scalars[KeySamples]; got != 4 {
		t.Errorf("samples %v, want 4", got)
	}
	if got := res.Scalars[KeySum]; got != 10 {
		t.Errorf("sum %v, want 10", got)
	}
	if got := res.Scalars[KeySumSquares]; got != 30 {
		t.Errorf("sumSquares %v, want 30", got)
	}
}

func TestSemiVarianceSkipsMissingValues(t *testing.T) {
	sv, err := NewSemiVariance(5000, 5000, "sst", nil, nil, 64)
	if err != nil {
		t.Fatal(err)
	}
	src := &memImage{id: "equator", scene: equatorScene(1, math.NaN(), 3, math.NaN())}

	res, err := sv.Run(src, nil)
	if err != nil {
		t.Fatal(err)
	}
	// Only the (1,3) pair survives.
	if got := res.Counts[KeyCount][0]; got != 1 {
		t.Errorf("bucket 0 holds %d pairs, want 1", got)
	}
	if got := res.Vectors[KeySumSq][0]; math.Abs(got-4) > 1e-9 {
		t.Errorf("bucket 0 sumSq is %v, want 4", got)
	}
	if got := res.Scalars[KeySamples]; got != 2 {
		t.Errorf("samples %v, want 2", got)
	}
}

func TestSemiVarianceResumeMatchesUninterrupted(t *testing.T) {
	src := &memImage{id: "equator", scene: equatorScene(1, 2, 3, 4)}

	full, err := NewSemiVariance(5000, 5000, "sst", nil, nil, 64)
	if err != nil {
		t.Fatal(err)
	}
	want, err := full.Run(src, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Checkpoint after every row, then resume from the first checkpoint.
	store := newMemStore()
	sv, err := NewSemiVariance(5000, 5000, "sst", store, nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sv.Run(src, nil); err != nil {
		t.Fatal(err)
	}
	if store.saves == 0 {
		t.Fatal("no checkpoint was persisted")
	}

	checkpoint, err := store.Load(worker.ResultKey(src))
	if err != nil {
		t.Fatal(err)
	}
	if checkpoint.IsComplete() {
		t.Fatal("checkpoint should be a strict prefix of the scan")
	}

	got, err := sv.Run(src, checkpoint)
	if err != nil {
		t.Fatal(err)
	}

	if got.UnitCount != want.UnitCount {
		t.Errorf("resumed rows %d, want %d", got.UnitCount, want.UnitCount)
	}
	if !reflect.DeepEqual(got.Counts, want.Counts) {
		t.Errorf("resumed counts %v, want %v", got.Counts, want.Counts)
	}
	if !reflect.DeepEqual(got.Vectors, want.Vectors) {
		t.Errorf("resumed vectors differ from the uninterrupted run")
	}
	if !reflect.DeepEqual(got.Scalars, want.Scalars) {
		t.Errorf("resumed scalars %v, want %v", got.Scalars, want.Scalars)
	}
}

func TestSemiVarianceCompletePrevIsReturnedUnchanged(t *testing.T) {
	sv, err := NewSemiVariance(5000, 5000, "sst", nil, nil, 64)
	if err != nil {
		t.Fatal(err)
	}
	src := &memImage{id: "equator", scene: equatorScene(1, 2, 3, 4)}

	first, err := sv.Run(src, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := sv.Run(src, first)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Error("a complete accumulator should be handed back untouched")
	}
}

func TestSemiVarianceCancellationKeepsConsistentPrefix(t *testing.T) {
	cancel := &worker.CancelFlag{}
	cancel.Set()
	sv, err := NewSemiVariance(5000, 5000, "sst", nil, cancel, 64)
	if err != nil {
		t.Fatal(err)
	}
	src := &memImage{id: "equator", scene: equatorScene(1, 2, 3, 4)}

	res, err := sv.Run(src, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.UnitCount != 0 {
		t.Errorf("pre-set cancel flag still accumulated %d rows", res.UnitCount)
	}
	if len(res.Counts) != 0 {
		t.Error("partial rows must never be merged")
	}
}

func TestSemiVarianceIncompatibleParams(t *testing.T) {
	src := &memImage{id: "equator", scene: equatorScene(1, 2, 3, 4)}
	sv, err := NewSemiVariance(5000, 5000, "sst", nil, nil, 64)
	if err != nil {
		t.Fatal(err)
	}
	res, err := sv.Run(src, nil)
	if err != nil {
		t.Fatal(err)
	}

	other, err := NewSemiVariance(1000, 5000, "sst", nil, nil, 64)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Run(src, res); err == nil {
		t.Fatal("a mismatched accumulator must be rejected, not restarted")
	}
}

func TestSemiVarianceParameterValidation(t *testing.T) {
	if _, err := NewSemiVariance(0, 5000, "sst", nil, nil, 64); err == nil {
		t.Error("zero interval should be rejected")
	}
	if _, err := NewSemiVariance(5000, 1000, "sst", nil, nil, 64); err == nil {
		t.Error("radius under one bucket should be rejected")
	}
	if _, err := NewSemiVariance(1000, 5000, "", nil, nil, 64); err == nil {
		t.Error("empty band name should be rejected")
	}
}

func TestBuildReport(t *testing.T) {
	sv, err := NewSemiVariance(5000, 5000, "sst", nil, nil, 64)
	if err != nil {
		t.Fatal(err)
	}
	src := &memImage{id: "equator", scene: equatorScene(1, 2, 3, 4)}
	res, err := sv.Run(src, nil)
	if err != nil {
		t.Fatal(err)
	}

	rep, err := BuildReport(res)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Rows) != 1 {
		t.Fatalf("report has %d bucket rows, want 1", len(rep.Rows))
	}
	row := rep.Rows[0]
	if math.Abs(row.SemiVariance-math.Sqrt(20.0/6)) > 1e-9 {
		t.Errorf("bucket semi-variance %v, want sqrt(20/6)", row.SemiVariance)
	}
	if row.MeanDistanceKm < 1 || row.MeanDistanceKm > 2 {
		t.Errorf("mean bucket distance %v km not plausible", row.MeanDistanceKm)
	}
	if rep.GlobalMean != 2.5 {
		t.Errorf("global mean %v, want 2.5", rep.GlobalMean)
	}
	// sqrt((30 - 100/4) / 3)
	if math.Abs(rep.GlobalStdDev-math.Sqrt(5.0/3)) > 1e-9 {
		t.Errorf("std dev %v, want sqrt(5/3)", rep.GlobalStdDev)
	}

	var buf bytes.Buffer
	if err := WriteReport(&buf, rep, ""); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("bucket\tmean distance")) {
		t.Error("report is missing the tab-delimited bucket header")
	}
}
