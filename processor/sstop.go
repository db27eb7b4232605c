package processor

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/nci/avhrr/utils"
	"github.com/nci/avhrr/worker"
)

const SSTOp = "sst"

// SSTOperation is the batch operation producing one indexed SST raster per
// scene and, at the end of the batch, one composite summary of all scenes.
// Calibration runs through the channel pipeline; the calibrated floats are
// classified back into the indexed category scheme so that land and cloud
// survive compositing.
type SSTOperation struct {
	pipeline   *CalibrationPipeline
	errChan    chan error
	cats       *utils.CategorySet
	coding     utils.SampleCoding
	compositor *Compositor
	mode       CompositeMode
	mask       *Mask

	noData float64
	temp   utils.Range
	land   utils.Range
	cloud  utils.Range

	mu      sync.Mutex
	rasters map[string]*utils.ByteRaster
}

func NewSSTOperation(ctx context.Context, tables *utils.CalibrationTables, satellite string, cats *utils.CategorySet, coding utils.SampleCoding, mode CompositeMode) (*SSTOperation, error) {
	if cats == nil {
		return nil, fmt.Errorf("SSTOperation: categories are required")
	}
	if coding.Scale == 0 {
		return nil, fmt.Errorf("SSTOperation: sample coding scale must be non zero")
	}
	noData, err := cats.Range(utils.CategoryNoData)
	if err != nil {
		return nil, fmt.Errorf("SSTOperation: %v", err)
	}
	temp, err := cats.Range(utils.CategoryTemperature)
	if err != nil {
		return nil, fmt.Errorf("SSTOperation: %v", err)
	}
	cloud, err := cats.Range(utils.CategoryCloud)
	if err != nil {
		return nil, fmt.Errorf("SSTOperation: %v", err)
	}
	compositor, err := NewCompositor(mode, cats)
	if err != nil {
		return nil, err
	}

	errChan := make(chan error, 100)
	return &SSTOperation{
		pipeline:   InitCalibrationPipeline(ctx, tables, satellite, errChan),
		errChan:    errChan,
		cats:       cats,
		coding:     coding,
		compositor: compositor,
		mode:       mode,
		noData:     noData.Lower,
		temp:       temp,
		land:       cats.Land(),
		cloud:      cloud,
		rasters:    map[string]*utils.ByteRaster{},
	}, nil
}

func (op *SSTOperation) Name() string { return SSTOp }

// SetAngleLimit discards pixels viewed beyond the threshold angle from
// nadir before classification.
func (op *SSTOperation) SetAngleLimit(threshold float64, inclusive bool) {
	op.pipeline.AngleLimit = threshold
	op.pipeline.AngleInclusive = inclusive
}

// SetMask installs an optional predicate applied to the calibrated SST
// before classification; filtered pixels become missing.
func (op *SSTOperation) SetMask(expr *utils.BandExpressions) error {
	mask, err := NewMask(expr)
	if err != nil {
		return err
	}
	op.mask = mask
	return nil
}

func (op *SSTOperation) params() worker.Params {
	return worker.Params{Operation: SSTOp, CoefficientID: op.pipeline.Satellite}
}

func (op *SSTOperation) cached(id string) *utils.ByteRaster {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.rasters[id]
}

func (op *SSTOperation) cache(id string, r *utils.ByteRaster) {
	op.mu.Lock()
	op.rasters[id] = r
	op.mu.Unlock()
}

// drainErrors clears failures left over from an earlier scene so that they
// are never attributed to the current one. The pipeline's stages finish
// reporting before their output resolves, so no error from a previous run
// can arrive after this point.
func (op *SSTOperation) drainErrors() {
	for {
		select {
		case <-op.errChan:
		default:
			return
		}
	}
}

func (op *SSTOperation) Run(src worker.ImageRef, prev *worker.Result) (*worker.Result, error) {
	op.drainErrors()

	p := op.params()
	if prev != nil {
		if err := prev.CompatibleWith(p); err != nil {
			return nil, fmt.Errorf("SSTOperation %s: %v", src.Identifier(), err)
		}
		if prev.IsComplete() && op.cached(src.Identifier()) != nil {
			return prev, nil
		}
	}

	scene, err := src.Load()
	if err != nil {
		return nil, fmt.Errorf("SSTOperation %s: %v", src.Identifier(), err)
	}

	sst, ok := <-op.pipeline.Process(scene)
	if !ok {
		select {
		case err := <-op.errChan:
			return nil, fmt.Errorf("SSTOperation %s: %v", src.Identifier(), err)
		default:
			return nil, fmt.Errorf("SSTOperation %s: pipeline produced no output", src.Identifier())
		}
	}

	if op.mask != nil {
		filter, err := op.mask.Compute(map[string]*utils.Float32Raster{"sst": sst})
		if err != nil {
			return nil, fmt.Errorf("SSTOperation %s: %v", src.Identifier(), err)
		}
		fb := filter.Bounds()
		for y := fb.MinY; y < fb.MaxY(); y++ {
			for x := fb.MinX; x < fb.MaxX(); x++ {
				if filter.Sample(x, y) == Filtered {
					sst.SetSample(x, y, float32(math.NaN()))
				}
			}
		}
	}

	indexed, stats := op.classify(scene, sst)

	res := worker.NewResult(p, 1)
	res.Descriptor = fmt.Sprintf("sst %dx%d", indexed.Width, indexed.Height)
	res.AddImage(src.Identifier())
	res.Merge(stats)
	op.cache(src.Identifier(), indexed)
	return res, nil
}

// classify folds the calibrated floats back into the indexed scheme. Land
// and cloud come from the scene's original classification; everything else
// is the coded temperature, or NO_DATA where the value is missing.
func (op *SSTOperation) classify(scene *utils.Scene, sst *utils.Float32Raster) (*utils.ByteRaster, *worker.Contribution) {
	bounds := sst.Bounds()
	indexed := utils.NewByteRaster(bounds, op.noData, scene.Identifier)

	var sum, sumSquares float64
	var samples int64

	for y := bounds.MinY; y < bounds.MaxY(); y++ {
		for x := bounds.MinX; x < bounds.MaxX(); x++ {
			if scene.Indexed != nil && scene.Indexed.Bounds().Contains(x, y) {
				orig := float64(scene.Indexed.Sample(x, y))
				if op.land.Contains(orig) || op.cloud.Contains(orig) {
					indexed.SetSample(x, y, uint8(orig))
					continue
				}
			}
			v := float64(sst.Sample(x, y))
			if math.IsNaN(v) {
				indexed.SetSample(x, y, uint8(op.noData))
				continue
			}
			code := op.coding.Encode(v)
			if code < op.temp.Lower {
				code = op.temp.Lower
			} else if code > op.temp.Upper {
				code = op.temp.Upper
			}
			indexed.SetSample(x, y, uint8(code))

			sum += v
			sumSquares += v * v
			samples++
		}
	}

	return indexed, &worker.Contribution{
		Units: 1,
		Scalars: map[string]float64{
			KeySum:        sum,
			KeySumSquares: sumSquares,
			KeySamples:    float64(samples),
		},
	}
}

// Materialize composites every processed scene matching the elected
// descriptor into one summary raster.
func (op *SSTOperation) Materialize(results []*worker.Result, descriptor string) (utils.Raster, error) {
	var srcs []*utils.ByteRaster
	for _, res := range results {
		if res.Descriptor != descriptor {
			continue
		}
		for id := range res.Images {
			if r := op.cached(id); r != nil {
				srcs = append(srcs, r)
			}
		}
	}
	if len(srcs) == 0 {
		return nil, fmt.Errorf("SSTOperation: no rasters available for descriptor %q", descriptor)
	}

	region := srcs[0].Bounds()
	for _, src := range srcs[1:] {
		b := src.Bounds()
		maxX, maxY := region.MaxX(), region.MaxY()
		if b.MinX < region.MinX {
			region.MinX = b.MinX
		}
		if b.MinY < region.MinY {
			region.MinY = b.MinY
		}
		if b.MaxX() > maxX {
			maxX = b.MaxX()
		}
		if b.MaxY() > maxY {
			maxY = b.MaxY()
		}
		region.Width = maxX - region.MinX
		region.Height = maxY - region.MinY
	}

	weights := make([]float64, len(srcs))
	for i := range weights {
		weights[i] = 1
	}
	return op.compositor.Compute(region, srcs, weights)
}
