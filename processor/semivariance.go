package processor

import (
	"fmt"
	"math"

	"github.com/nci/avhrr/utils"
	"github.com/nci/avhrr/worker"
)

// Accumulator field names shared between the scan loop, the persisted
// Result and the report writer.
const (
	SemiVarianceOp = "semivariance"

	KeyCount     = "count"
	KeySumSq     = "sumSq"
	KeySumDist   = "sumDist"
	KeyCount2D   = "count2D"
	KeySumSq2D   = "sumSq2D"
	KeySumDist2D = "sumDist2D"

	KeySum        = "sum"
	KeySumSquares = "sumSquares"
	KeySamples    = "samples"
)

// SemiVariance computes the empirical semi-variogram of one scene band:
// a 1-D variogram binned by great-circle separation distance and a 2-D
// variogram binned by longitude/latitude metric offset. The search window
// is recomputed per row from the local ellipsoidal radius of curvature, so
// a fixed metric radius shrinks in pixel units toward the poles.
//
// The scan is row incremental: every completed row is merged whole into
// the Result, checkpoints are persisted on a fixed row interval, and an
// interrupted run resumes from the first unprocessed row.
type SemiVariance struct {
	interval float64
	radius   float64
	band     string

	store          worker.ResultStore
	cancel         *worker.CancelFlag
	checkpointRows int
}

func NewSemiVariance(interval, radius float64, band string, store worker.ResultStore, cancel *worker.CancelFlag, checkpointRows int) (*SemiVariance, error) {
	if !(interval > 0) || !(radius > 0) {
		return nil, fmt.Errorf("SemiVariance: interval %v and radius %v must be positive", interval, radius)
	}
	if radius < interval {
		return nil, fmt.Errorf("SemiVariance: radius %v is smaller than one bucket %v", radius, interval)
	}
	if band == "" {
		return nil, fmt.Errorf("SemiVariance: band name is required")
	}
	if checkpointRows <= 0 {
		checkpointRows = 64
	}
	return &SemiVariance{
		interval:       interval,
		radius:         radius,
		band:           band,
		store:          store,
		cancel:         cancel,
		checkpointRows: checkpointRows,
	}, nil
}

func (sv *SemiVariance) Name() string { return SemiVarianceOp }

func (sv *SemiVariance) NumBuckets() int {
	return int(math.Ceil(sv.radius / sv.interval))
}

func (sv *SemiVariance) params() worker.Params {
	return worker.Params{
		Operation:     SemiVarianceOp,
		Interval:      sv.interval,
		Radius:        sv.radius,
		CoefficientID: sv.band,
	}
}

// rowTable holds the per-row precomputed pairing geometry for the first
// quadrant of the search window. The other quadrants reuse it through
// offset symmetry.
type rowTable struct {
	winX, winY int
	// indexed [dy][abs(dx)]
	dist     [][]float64
	bucket1d [][]int
	bucket2d [][]int
}

func (sv *SemiVariance) buildRowTable(transform utils.GeoTransform, bounds utils.Rect, y int) (*rowTable, error) {
	lonC, latC := transform.PixelToGeo(float64(bounds.MinX)+float64(bounds.Width)/2, float64(y)+0.5)
	localRadius := utils.LocalRadius(latC)

	pixW := localRadius * math.Cos(latC*deg2rad) * math.Abs(transform[1]) * deg2rad
	pixH := localRadius * math.Abs(transform[5]) * deg2rad
	if !(pixW > 0) || !(pixH > 0) {
		return nil, fmt.Errorf("SemiVariance: degenerate pixel size at row %d (lat %.4f)", y, latC)
	}

	winX := int(sv.radius / pixW)
	winY := int(sv.radius / pixH)
	if winX > bounds.Width-1 {
		winX = bounds.Width - 1
	}
	if winY > bounds.Height-1 {
		winY = bounds.Height - 1
	}

	numBuckets := sv.NumBuckets()
	tbl := &rowTable{
		winX:     winX,
		winY:     winY,
		dist:     make([][]float64, winY+1),
		bucket1d: make([][]int, winY+1),
		bucket2d: make([][]int, winY+1),
	}
	for dy := 0; dy <= winY; dy++ {
		tbl.dist[dy] = make([]float64, winX+1)
		tbl.bucket1d[dy] = make([]int, winX+1)
		tbl.bucket2d[dy] = make([]int, winX+1)
		by := int(float64(dy) * pixH / sv.interval)
		for dx := 0; dx <= winX; dx++ {
			lonB := lonC + float64(dx)*transform[1]
			latB := latC + float64(dy)*transform[5]
			d := utils.GreatCircleDistance(lonC, latC, lonB, latB, localRadius)
			tbl.dist[dy][dx] = d

			b1 := int(d / sv.interval)
			if b1 < 0 || b1 >= numBuckets {
				b1 = -1
			}
			tbl.bucket1d[dy][dx] = b1

			bx := int(float64(dx) * pixW / sv.interval)
			if bx < numBuckets && by < numBuckets {
				tbl.bucket2d[dy][dx] = by*numBuckets + bx
			} else {
				tbl.bucket2d[dy][dx] = -1
			}
		}
	}
	return tbl, nil
}

type rowAcc struct {
	count   []int64
	sumSq   []float64
	sumDist []float64

	count2   []int64
	sumSq2   []float64
	sumDist2 []float64

	sum        float64
	sumSquares float64
	samples    int64
}

func newRowAcc(numBuckets int) *rowAcc {
	n2 := numBuckets * numBuckets
	return &rowAcc{
		count:    make([]int64, numBuckets),
		sumSq:    make([]float64, numBuckets),
		sumDist:  make([]float64, numBuckets),
		count2:   make([]int64, n2),
		sumSq2:   make([]float64, n2),
		sumDist2: make([]float64, n2),
	}
}

func (a *rowAcc) addPair(diff, dist float64, b1, b2 int) {
	sq := diff * diff
	if b1 >= 0 {
		a.count[b1]++
		a.sumSq[b1] += sq
		a.sumDist[b1] += dist
	}
	if b2 >= 0 {
		a.count2[b2]++
		a.sumSq2[b2] += sq
		a.sumDist2[b2] += dist
	}
}

func (a *rowAcc) contribution() *worker.Contribution {
	return &worker.Contribution{
		Units: 1,
		Scalars: map[string]float64{
			KeySum:        a.sum,
			KeySumSquares: a.sumSquares,
			KeySamples:    float64(a.samples),
		},
		Vectors: map[string][]float64{
			KeySumSq:     a.sumSq,
			KeySumDist:   a.sumDist,
			KeySumSq2D:   a.sumSq2,
			KeySumDist2D: a.sumDist2,
		},
		Counts: map[string][]int64{
			KeyCount:   a.count,
			KeyCount2D: a.count2,
		},
	}
}

// Run extends prev with the rows it has not yet seen. A complete prev is
// returned unchanged. Cancellation is observed once per column; a row
// interrupted part way is discarded whole, so the returned Result always
// reflects an exact prefix of rows.
func (sv *SemiVariance) Run(src worker.ImageRef, prev *worker.Result) (*worker.Result, error) {
	p := sv.params()
	if prev != nil {
		if err := prev.CompatibleWith(p); err != nil {
			return nil, fmt.Errorf("SemiVariance %s: %v", src.Identifier(), err)
		}
		if prev.IsComplete() {
			return prev, nil
		}
	}

	scene, err := src.Load()
	if err != nil {
		return nil, fmt.Errorf("SemiVariance %s: %v", src.Identifier(), err)
	}
	band, err := scene.Band(sv.band)
	if err != nil {
		return nil, fmt.Errorf("SemiVariance %s: %v", src.Identifier(), err)
	}
	bounds := band.Bounds()

	res := prev
	if res == nil {
		res = worker.NewResult(p, bounds.Height)
		res.Descriptor = sv.band
	} else if res.TotalUnits != bounds.Height {
		return nil, fmt.Errorf("SemiVariance %s: persisted result covers %d rows, scene has %d",
			src.Identifier(), res.TotalUnits, bounds.Height)
	}
	res.AddImage(src.Identifier())

	numBuckets := sv.NumBuckets()
	startRow := bounds.MinY + res.UnitCount

	for y := startRow; y < bounds.MaxY(); y++ {
		tbl, err := sv.buildRowTable(scene.Transform, bounds, y)
		if err != nil {
			return nil, err
		}
		acc := newRowAcc(numBuckets)

		for x := bounds.MinX; x < bounds.MaxX(); x++ {
			if sv.cancel != nil && sv.cancel.IsSet() {
				return res, nil
			}
			v := float64(band.Sample(x, y))
			if math.IsNaN(v) {
				continue
			}
			acc.sum += v
			acc.sumSquares += v * v
			acc.samples++

			// Same row, forward only.
			for dx := 1; dx <= tbl.winX && x+dx < bounds.MaxX(); dx++ {
				n := float64(band.Sample(x+dx, y))
				if math.IsNaN(n) {
					continue
				}
				acc.addPair(v-n, tbl.dist[0][dx], tbl.bucket1d[0][dx], tbl.bucket2d[0][dx])
			}
			// Rows below, both horizontal directions.
			for dy := 1; dy <= tbl.winY && y+dy < bounds.MaxY(); dy++ {
				for dx := -tbl.winX; dx <= tbl.winX; dx++ {
					nx := x + dx
					if nx < bounds.MinX || nx >= bounds.MaxX() {
						continue
					}
					n := float64(band.Sample(nx, y+dy))
					if math.IsNaN(n) {
						continue
					}
					adx := dx
					if adx < 0 {
						adx = -adx
					}
					acc.addPair(v-n, tbl.dist[dy][adx], tbl.bucket1d[dy][adx], tbl.bucket2d[dy][adx])
				}
			}
		}

		res.Merge(acc.contribution())

		if sv.store != nil && res.UnitCount%sv.checkpointRows == 0 && !res.IsComplete() {
			if err := sv.store.Save(worker.ResultKey(src), res); err != nil {
				return nil, fmt.Errorf("SemiVariance %s: checkpoint at row %d: %v", src.Identifier(), res.UnitCount, err)
			}
		}
		if sv.cancel != nil && sv.cancel.IsSet() {
			return res, nil
		}
	}
	return res, nil
}
