package processor

import (
	"context"
	"fmt"
	"math"

	"github.com/nci/avhrr/utils"
)

// Product names published by the calibration stages and joined into the
// final SST computation.
const (
	ProductT4     = "t4"
	ProductT5     = "t5"
	ProductAngle  = "view_angle"
	ProductMatrix = "daynight_matrix"
)

// ChannelRequest asks the calibrator for one calibrated channel of a
// scene. Exactly one calibration path must be set: Albedo for visible
// channels, Radiance+Temperature for thermal channels.
type ChannelRequest struct {
	Scene   *utils.Scene
	Band    string
	Product string

	Albedo      *Albedo
	Radiance    *Radiance
	Temperature *Temperature
}

type ChannelProduct struct {
	Product string
	Raster  *utils.Float32Raster
}

type ChannelCalibrator struct {
	Context context.Context
	In      chan *ChannelRequest
	Out     chan *ChannelProduct
	Error   chan error
	Limiter *ConcLimiter
}

func NewChannelCalibrator(ctx context.Context, polLevel int, errChan chan error) *ChannelCalibrator {
	return &ChannelCalibrator{
		Context: ctx,
		In:      make(chan *ChannelRequest, 100),
		Out:     make(chan *ChannelProduct, 100),
		Error:   errChan,
		Limiter: NewConcLimiter(polLevel),
	}
}

func (cc *ChannelCalibrator) Run() {
	defer close(cc.Out)

	for req := range cc.In {
		select {
		case <-cc.Context.Done():
			cc.Error <- fmt.Errorf("channel calibrator: %v", cc.Context.Err())
			return
		default:
		}

		cc.Limiter.Increase()
		go func(req *ChannelRequest) {
			defer cc.Limiter.Decrease()

			counts, err := req.Scene.Band(req.Band)
			if err != nil {
				cc.Error <- fmt.Errorf("channel calibrator %s: %v", req.Product, err)
				return
			}

			var out *utils.Float32Raster
			switch {
			case req.Albedo != nil:
				out, err = req.Albedo.Compute(counts)
			case req.Radiance != nil && req.Temperature != nil:
				var rad *utils.Float32Raster
				rad, err = req.Radiance.Compute(counts)
				if err == nil {
					out, err = req.Temperature.Compute(rad)
				}
			default:
				err = fmt.Errorf("no calibration path configured")
			}
			if err != nil {
				cc.Error <- fmt.Errorf("channel calibrator %s: %v", req.Product, err)
				return
			}
			cc.Out <- &ChannelProduct{Product: req.Product, Raster: out}
		}(req)
	}

	cc.Limiter.Wait()
}

// GeometryStage derives the per-pixel view angle and day/night matrix of a
// scene; the matrix goes through the sun-elevation operator first.
type GeometryStage struct {
	Context context.Context
	In      chan *utils.Scene
	Out     chan *ChannelProduct
	Error   chan error

	RefBand      string
	MaxScanAngle float64
	Dawn, Dusk   TwilightRamp
}

func NewGeometryStage(ctx context.Context, refBand string, maxScanAngle float64, dawn, dusk TwilightRamp, errChan chan error) *GeometryStage {
	return &GeometryStage{
		Context:      ctx,
		In:           make(chan *utils.Scene, 100),
		Out:          make(chan *ChannelProduct, 100),
		Error:        errChan,
		RefBand:      refBand,
		MaxScanAngle: maxScanAngle,
		Dawn:         dawn,
		Dusk:         dusk,
	}
}

func (gs *GeometryStage) Run() {
	defer close(gs.Out)

	for scene := range gs.In {
		ref, err := scene.Band(gs.RefBand)
		if err != nil {
			gs.Error <- fmt.Errorf("geometry stage: %v", err)
			continue
		}
		bounds := ref.Bounds()

		angleOp, err := NewViewAngleOp(gs.MaxScanAngle, bounds.Width)
		if err != nil {
			gs.Error <- fmt.Errorf("geometry stage: %v", err)
			continue
		}
		angle, err := angleOp.Compute(ref)
		if err != nil {
			gs.Error <- fmt.Errorf("geometry stage: %v", err)
			continue
		}
		gs.Out <- &ChannelProduct{Product: ProductAngle, Raster: angle}

		sunOp, err := NewSunElevationOp(scene)
		if err != nil {
			gs.Error <- fmt.Errorf("geometry stage: %v", err)
			continue
		}
		elevation, err := sunOp.Compute(ref)
		if err != nil {
			gs.Error <- fmt.Errorf("geometry stage: %v", err)
			continue
		}
		matrixOp, err := NewMatrixDayNight(scene, gs.Dawn, gs.Dusk)
		if err != nil {
			gs.Error <- fmt.Errorf("geometry stage: %v", err)
			continue
		}
		matrix, err := matrixOp.Compute(elevation)
		if err != nil {
			gs.Error <- fmt.Errorf("geometry stage: %v", err)
			continue
		}
		gs.Out <- &ChannelProduct{Product: ProductMatrix, Raster: matrix}
	}
}

// SSTJoiner drains every channel product, then combines the two brightness
// temperatures with the view angle and day/night matrix into the final SST
// raster.
type SSTJoiner struct {
	In    chan *ChannelProduct
	Out   chan *utils.Float32Raster
	Error chan error

	SST       *SST
	Exclusion *AngleExclusion
}

func NewSSTJoiner(sst *SST, errChan chan error) *SSTJoiner {
	return &SSTJoiner{
		In:    make(chan *ChannelProduct, 100),
		Out:   make(chan *utils.Float32Raster, 1),
		Error: errChan,
		SST:   sst,
	}
}

func (j *SSTJoiner) Run() {
	defer close(j.Out)

	got := map[string]*utils.Float32Raster{}
	for p := range j.In {
		got[p.Product] = p.Raster
	}
	for _, name := range []string{ProductT4, ProductT5, ProductAngle, ProductMatrix} {
		if _, ok := got[name]; !ok {
			j.Error <- fmt.Errorf("sst joiner: product %s never arrived", name)
			return
		}
	}

	sst, err := j.SST.Compute(got[ProductT4], got[ProductT5], got[ProductAngle], got[ProductMatrix])
	if err != nil {
		j.Error <- fmt.Errorf("sst joiner: %v", err)
		return
	}
	if j.Exclusion != nil {
		sst, err = j.Exclusion.Compute(sst, got[ProductAngle])
		if err != nil {
			j.Error <- fmt.Errorf("sst joiner: %v", err)
			return
		}
	}
	j.Out <- sst
}

// CalibrationPipeline wires raw AVHRR counts through to sea-surface
// temperature: radiance and brightness temperature for the two thermal
// channels, view angle and day/night matrix from scene geometry, then the
// split-window combination.
type CalibrationPipeline struct {
	Context context.Context
	Error   chan error

	Tables    *utils.CalibrationTables
	Satellite string

	Thermal4     string
	Thermal5     string
	MaxScanAngle float64
	Dawn, Dusk   TwilightRamp
	PolLevel     int

	// AngleLimit > 0 discards pixels viewed beyond that angle from nadir.
	AngleLimit     float64
	AngleInclusive bool
}

func InitCalibrationPipeline(ctx context.Context, tables *utils.CalibrationTables, satellite string, errChan chan error) *CalibrationPipeline {
	dawn, dusk := DefaultTwilightRamps()
	return &CalibrationPipeline{
		Context:      ctx,
		Error:        errChan,
		Tables:       tables,
		Satellite:    satellite,
		Thermal4:     "counts4",
		Thermal5:     "counts5",
		MaxScanAngle: 55.4,
		Dawn:         dawn,
		Dusk:         dusk,
		PolLevel:     2,
	}
}

func (cp *CalibrationPipeline) thermalRequest(scene *utils.Scene, sat *utils.SatelliteTable, gen Generation, band, channel, product string, lines int) (*ChannelRequest, error) {
	grid, err := RadianceGridFromTable(sat, channel, lines)
	if err != nil {
		return nil, err
	}
	radiance, err := NewRadiance(gen, grid)
	if err != nil {
		return nil, err
	}
	planck, ok := sat.Planck[channel]
	if !ok {
		return nil, fmt.Errorf("satellite %s: no Planck constants for channel %s", sat.Name, channel)
	}
	temperature, err := NewTemperature(gen, planck)
	if err != nil {
		return nil, err
	}
	return &ChannelRequest{
		Scene:       scene,
		Band:        band,
		Product:     product,
		Radiance:    radiance,
		Temperature: temperature,
	}, nil
}

// Process runs the full chain for one scene. The SST raster arrives on the
// returned channel; failures are reported on the pipeline's Error channel
// and close the output empty.
func (cp *CalibrationPipeline) Process(scene *utils.Scene) chan *utils.Float32Raster {
	join := NewSSTJoiner(nil, cp.Error)

	sat, err := cp.Tables.Satellite(cp.Satellite)
	if err != nil {
		cp.Error <- err
		close(join.Out)
		return join.Out
	}
	gen, err := ParseGeneration(sat.Generation)
	if err != nil {
		cp.Error <- err
		close(join.Out)
		return join.Out
	}
	sst, err := NewSST(sat.SSTDay, sat.SSTNight)
	if err != nil {
		cp.Error <- err
		close(join.Out)
		return join.Out
	}
	join.SST = sst

	if cp.AngleLimit > 0 {
		excl, err := NewAngleExclusion(cp.AngleLimit, cp.AngleInclusive, float32(math.NaN()))
		if err != nil {
			cp.Error <- err
			close(join.Out)
			return join.Out
		}
		join.Exclusion = excl
	}

	ref, err := scene.Band(cp.Thermal4)
	if err != nil {
		cp.Error <- err
		close(join.Out)
		return join.Out
	}
	lines := ref.Bounds().Height

	req4, err := cp.thermalRequest(scene, sat, gen, cp.Thermal4, "4", ProductT4, lines)
	if err == nil {
		var req5 *ChannelRequest
		req5, err = cp.thermalRequest(scene, sat, gen, cp.Thermal5, "5", ProductT5, lines)
		if err == nil {
			cal := NewChannelCalibrator(cp.Context, cp.PolLevel, cp.Error)
			geo := NewGeometryStage(cp.Context, cp.Thermal4, cp.MaxScanAngle, cp.Dawn, cp.Dusk, cp.Error)

			go func() {
				cal.In <- req4
				cal.In <- req5
				close(cal.In)
			}()
			go func() {
				geo.In <- scene
				close(geo.In)
			}()

			go cal.Run()
			go geo.Run()

			go func() {
				defer close(join.In)
				for p := range cal.Out {
					join.In <- p
				}
				for p := range geo.Out {
					join.In <- p
				}
			}()
			go join.Run()

			return join.Out
		}
	}

	cp.Error <- err
	close(join.Out)
	return join.Out
}
