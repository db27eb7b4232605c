package main

/* avhrr is a batch processor for AVHRR satellite passes. It drives one
   operation over a set of source scenes: either the full calibration
   chain producing an indexed sea-surface temperature raster per pass and
   one composite summary per batch, or the semi-variance statistical
   engine producing resumable per-scene variograms and a tab-delimited
   report. The source set comes from the metadata catalog, a cached
   snapshot of a previous catalog answer, or plain scene files named on
   the command line. Configuration lives in the config.json document;
   per-satellite calibration constants in a YAML table. */

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ctessum/geom"

	"github.com/nci/avhrr/mas"
	"github.com/nci/avhrr/metrics"
	proc "github.com/nci/avhrr/processor"
	"github.com/nci/avhrr/utils"
	"github.com/nci/avhrr/worker"
)

var (
	configFile = flag.String("conf", "config.json", "Batch config document.")
	opName     = flag.String("op", "sst", "Operation: sst or semivariance.")
	mode       = flag.String("mode", "average", "Composite mode: average, sup or synthese.")
	band       = flag.String("band", "sst", "Scene band analysed by the semi-variance engine.")
	startStr   = flag.String("start", "", "Catalog query start time, RFC3339.")
	untilStr   = flag.String("until", "", "Catalog query end time, RFC3339.")
	bboxStr    = flag.String("bbox", "", "Catalog query area minLon,minLat,maxLon,maxLat.")
	logDir     = flag.String("log_dir", "", "Event log directory; stdout when empty.")
	verbose    = flag.Bool("v", false, "Verbose mode for more outputs.")
)

var (
	Error *log.Logger
	Info  *log.Logger
)

// init initialises the Error logger. This is the first function to be
// called in main.
func init() {
	Error = log.New(os.Stderr, "AVHRR: ", log.Ldate|log.Ltime|log.Lshortfile)
	Info = log.New(os.Stdout, "AVHRR: ", log.Ldate|log.Ltime|log.Lshortfile)
}

// consoleListener mirrors batch progress onto the Info logger.
type consoleListener struct{}

func (consoleListener) Started()                   { Info.Print("batch started") }
func (consoleListener) Complete()                  { Info.Print("batch complete") }
func (consoleListener) SetDescription(text string) { Info.Printf("processing %s", text) }
func (consoleListener) Progress(percent float64) {
	Info.Printf("progress %.1f%%", worker.ClampProgress(percent))
}
func (consoleListener) ExceptionOccurred(context string, err error) {
	Error.Printf("%s: %v", context, err)
}

func parseBBox(s string) (*geom.Bounds, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox wants 4 comma-separated values, got %q", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox component %q: %v", p, err)
		}
		vals[i] = v
	}
	return &geom.Bounds{
		Min: geom.Point{X: vals[0], Y: vals[1]},
		Max: geom.Point{X: vals[2], Y: vals[3]},
	}, nil
}

func parseCompositeMode(s string) (proc.CompositeMode, error) {
	switch strings.ToLower(s) {
	case "average":
		return proc.CompositeWeightedAverage, nil
	case "sup":
		return proc.CompositeSup, nil
	case "synthese":
		return proc.CompositeSynthese, nil
	}
	return 0, fmt.Errorf("unknown composite mode %q", s)
}

func buildOperation(cfg *utils.Config, cancel *worker.CancelFlag, store worker.ResultStore) (worker.Operation, error) {
	switch *opName {
	case proc.SemiVarianceOp:
		return proc.NewSemiVariance(cfg.Batch.IntervalMetres, cfg.Batch.RadiusMetres,
			*band, store, cancel, cfg.Batch.CheckpointRows)

	case proc.SSTOp:
		tables, err := utils.LoadCalibrationTables(cfg.Batch.CalibrationFile)
		if err != nil {
			return nil, err
		}
		compMode, err := parseCompositeMode(*mode)
		if err != nil {
			return nil, err
		}
		coding := utils.SampleCoding{Scale: cfg.Batch.CodingScale, Offset: cfg.Batch.CodingOffset}
		op, err := proc.NewSSTOperation(context.Background(), tables, cfg.Batch.Satellite,
			utils.DefaultCategories(), coding, compMode)
		if err != nil {
			return nil, err
		}
		if cfg.Batch.AngleThreshold > 0 {
			op.SetAngleLimit(cfg.Batch.AngleThreshold, cfg.Batch.AngleInclusive)
		}
		if len(cfg.Batch.FilterExprs) == 1 {
			expr, err := utils.ParseBandExpressions(cfg.Batch.FilterExprs)
			if err != nil {
				return nil, err
			}
			if err := op.SetMask(expr); err != nil {
				return nil, err
			}
		}
		return op, nil
	}
	return nil, fmt.Errorf("unknown operation %q", *opName)
}

func setSources(batch *worker.Batch, cfg *utils.Config) error {
	if args := flag.Args(); len(args) > 0 {
		refs := make([]worker.ImageRef, len(args))
		for i, path := range args {
			base := filepath.Base(path)
			refs[i] = &worker.FileImage{
				ID:   strings.TrimSuffix(base, filepath.Ext(base)),
				Path: path,
			}
		}
		batch.SetSources(refs)
		return nil
	}

	start, err := time.Parse(time.RFC3339, *startStr)
	if err != nil {
		return fmt.Errorf("start time: %v", err)
	}
	until, err := time.Parse(time.RFC3339, *untilStr)
	if err != nil {
		return fmt.Errorf("until time: %v", err)
	}
	area, err := parseBBox(*bboxStr)
	if err != nil {
		return err
	}

	cat, err := mas.NewCatalog(cfg.ServiceConfig.DatabaseDSN, cfg.ServiceConfig.MemcacheURI)
	if err != nil {
		return err
	}
	defer cat.Close()
	return batch.SetSourcesFromCatalog(cat, cfg.Batch.Series, start, until, area)
}

// writeReports renders one tab-delimited variogram report per source that
// holds a persisted semi-variance Result.
func writeReports(batch *worker.Batch, cfg *utils.Config, store *worker.FileResultStore) {
	for _, ref := range batch.Sources() {
		key := worker.ResultKey(ref)
		res, err := store.Load(key)
		if err != nil {
			if err != worker.ErrResultNotFound {
				Error.Printf("report for %s: %v", key, err)
			}
			continue
		}
		rep, err := proc.BuildReport(res)
		if err != nil {
			Error.Printf("report for %s: %v", key, err)
			continue
		}
		path := filepath.Join(cfg.Batch.Destination, key+".txt")
		f, err := os.Create(path)
		if err != nil {
			Error.Printf("report for %s: %v", key, err)
			continue
		}
		if err := proc.WriteReport(f, rep, cfg.Batch.ReportTemplate); err != nil {
			Error.Printf("report for %s: %v", key, err)
		}
		f.Close()
		if *verbose {
			Info.Printf("wrote %s", path)
		}
	}
}

func main() {
	flag.Parse()

	cfg, err := utils.LoadConfigFile(*configFile)
	if err != nil {
		Error.Fatal(err)
	}

	store := &worker.FileResultStore{Dir: cfg.Batch.Destination}
	cancel := &worker.CancelFlag{}

	op, err := buildOperation(cfg, cancel, store)
	if err != nil {
		Error.Fatal(err)
	}

	batch := worker.NewBatch(cfg.Batch.Series, op, store)
	batch.Verbose = *verbose
	batch.UseCancelFlag(cancel)
	batch.SetDestination(cfg.Batch.Destination)
	batch.ScaleParams = utils.ScaleParams{
		Offset: cfg.Batch.SummaryOffset,
		Scale:  cfg.Batch.SummaryScale,
		Clip:   cfg.Batch.SummaryClip,
	}
	if batch.ScaleParams.Scale == 0 {
		batch.ScaleParams.Scale = 1
	}
	if batch.ScaleParams.Clip == 0 {
		batch.ScaleParams.Clip = 254
	}
	batch.Palette = cfg.Batch.Palette
	batch.AddProgressListener(consoleListener{})

	if *logDir != "" {
		batch.EventLogger = metrics.NewFileLogger(*logDir,
			cfg.Batch.MaxLogFileSize, cfg.Batch.MaxLogFiles, *verbose)
	} else {
		batch.EventLogger = metrics.NewStdoutLogger()
	}

	if err := setSources(batch, cfg); err != nil {
		Error.Fatal(err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		Info.Print("stop requested, finishing current unit of work")
		batch.Stop()
	}()

	if err := batch.Run(); err != nil {
		Error.Fatal(err)
	}

	if *opName == proc.SemiVarianceOp {
		writeReports(batch, cfg, store)
	}
}
