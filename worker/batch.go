package worker

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ctessum/geom"

	"github.com/nci/avhrr/metrics"
	"github.com/nci/avhrr/utils"
)

// ImageRef is one catalog entry: an identifier, the source file it points
// at, and a loader for the decoded scene.
type ImageRef interface {
	Identifier() string
	FileName() string
	Load() (*utils.Scene, error)
}

// Operation is the per-image computation driven by the batch engine.
// Run extends prev (nil on first processing) and returns the accumulator to
// persist; returning prev unchanged signals no further work was needed.
type Operation interface {
	Name() string
	Run(src ImageRef, prev *Result) (*Result, error)
}

// Materializer is implemented by operations whose final Result can produce
// a summary raster.
type Materializer interface {
	Materialize(results []*Result, descriptor string) (utils.Raster, error)
}

// Catalog hands out the ordered working set for a series, time range and
// geographic area.
type Catalog interface {
	QueryEntries(series string, start, end time.Time, area *geom.Bounds) ([]ImageRef, error)
}

// FileImage is the snapshot-backed ImageRef used when the catalog is
// unreachable and for plain directory-driven runs.
type FileImage struct {
	ID   string `json:"identifier"`
	Path string `json:"path"`
}

func (f *FileImage) Identifier() string { return f.ID }
func (f *FileImage) FileName() string   { return f.Path }

func (f *FileImage) Load() (*utils.Scene, error) {
	return utils.ReadSceneFile(f.Path)
}

const sourceSnapshotFile = "sources.json"

// Batch walks a set of source images, maintaining one Result per image with
// checkpointed, resumable computation and cooperative cancellation.
type Batch struct {
	Name    string
	Verbose bool

	EventLogger metrics.Logger
	ScaleParams utils.ScaleParams
	Palette     *utils.Palette

	op      Operation
	store   ResultStore
	destDir string
	sources []ImageRef

	cancel    *CancelFlag
	listeners []ProgressListener
	lmu       sync.Mutex
	rnd       *rand.Rand
}

func NewBatch(name string, op Operation, store ResultStore) *Batch {
	return &Batch{
		Name:        name,
		ScaleParams: utils.ScaleParams{Scale: 1, Clip: 254},
		op:          op,
		store:       store,
		destDir:     ".",
		cancel:      &CancelFlag{},
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *Batch) SetDestination(dir string) { b.destDir = dir }

func (b *Batch) SetSources(refs []ImageRef) { b.sources = refs }

func (b *Batch) Sources() []ImageRef { return b.sources }

// Cancel exposes the shared cooperative-cancel flag so that long-running
// operations can poll it at their own checkpoints.
func (b *Batch) Cancel() *CancelFlag { return b.cancel }

// UseCancelFlag shares an externally owned cancel flag, for operations
// constructed before the batch that want to observe its cancellation.
func (b *Batch) UseCancelFlag(f *CancelFlag) {
	if f != nil {
		b.cancel = f
	}
}

// Stop requests cancellation. It is safe to call from outside the
// processing goroutine; the running unit of work finishes its current
// atomic step before the flag is observed.
func (b *Batch) Stop() { b.cancel.Set() }

// SetSourcesFromCatalog populates the working set from the catalog. On
// query failure the previously cached snapshot of the last known-good
// source list is used instead, when one exists.
func (b *Batch) SetSourcesFromCatalog(cat Catalog, series string, start, end time.Time, area *geom.Bounds) error {
	refs, err := cat.QueryEntries(series, start, end, area)
	if err == nil {
		b.sources = refs
		b.writeSnapshot(refs)
		return nil
	}
	b.exceptionOccurred("catalog query", err)

	snap, snapErr := b.readSnapshot()
	if snapErr != nil {
		return fmt.Errorf("Batch %s: catalog query failed (%v) and no usable snapshot: %v", b.Name, err, snapErr)
	}
	if b.Verbose {
		log.Printf("Batch %s: catalog unreachable, using cached source list of %d entries", b.Name, len(snap))
	}
	b.sources = snap
	return nil
}

func (b *Batch) writeSnapshot(refs []ImageRef) {
	snap := make([]*FileImage, len(refs))
	for i, ref := range refs {
		snap[i] = &FileImage{ID: ref.Identifier(), Path: ref.FileName()}
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := ioutil.WriteFile(filepath.Join(b.destDir, sourceSnapshotFile), raw, 0644); err != nil {
		log.Printf("Batch %s: snapshot write error: %v", b.Name, err)
	}
}

func (b *Batch) readSnapshot() ([]ImageRef, error) {
	raw, err := ioutil.ReadFile(filepath.Join(b.destDir, sourceSnapshotFile))
	if err != nil {
		return nil, err
	}
	var snap []*FileImage
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	refs := make([]ImageRef, len(snap))
	for i, s := range snap {
		refs[i] = s
	}
	return refs, nil
}

// ResultKey is the persisted Result name for one source: the source file's
// base name, stored with a .data suffix by the FileResultStore.
func ResultKey(ref ImageRef) string {
	base := filepath.Base(ref.FileName())
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (b *Batch) summaryPath() string {
	return filepath.Join(b.destDir, b.Name+".png")
}

// Run drives the whole batch. Sources are drawn uniformly at random without
// replacement so that checkpoint visibility is spread across interrupted
// runs. A set cancel flag stops the batch between images; per-image loops
// observe the same flag at finer granularity.
func (b *Batch) Run() error {
	b.started()

	if _, err := os.Stat(b.summaryPath()); err == nil {
		b.setDescription(fmt.Sprintf("%s already materialised, nothing to do", b.summaryPath()))
		b.complete()
		return nil
	}

	remaining := append([]ImageRef{}, b.sources...)
	total := len(remaining)
	done := 0
	var processed []*Result

	for len(remaining) > 0 {
		if b.cancel.IsSet() {
			break
		}

		i := b.rnd.Intn(len(remaining))
		ref := remaining[i]
		remaining[i] = remaining[len(remaining)-1]
		remaining = remaining[:len(remaining)-1]

		b.setDescription(ref.Identifier())
		start := time.Now()

		prev, err := b.store.Load(ResultKey(ref))
		resumed := err == nil
		if err != nil && err != ErrResultNotFound {
			b.exceptionOccurred(fmt.Sprintf("loading result for %s", ref.Identifier()), err)
			b.logEvent(ref, start, nil, false, err)
			done++
			continue
		}
		prevUnits := -1
		if prev != nil {
			prevUnits = prev.UnitCount
		}

		res, err := b.op.Run(ref, prev)
		if err != nil {
			b.exceptionOccurred(fmt.Sprintf("processing %s", ref.Identifier()), err)
			b.logEvent(ref, start, res, resumed, err)
			done++
			continue
		}

		if res != nil {
			// Operations may extend prev in place and hand the same pointer
			// back, so "no work done" is decided on the unit count, not on
			// pointer identity.
			if res != prev || res.UnitCount != prevUnits {
				if err := b.store.Save(ResultKey(ref), res); err != nil {
					b.exceptionOccurred(fmt.Sprintf("persisting result for %s", ref.Identifier()), err)
				}
			}
			processed = append(processed, res)
		}

		done++
		b.progress(100 * float64(done) / float64(total))
		b.logEvent(ref, start, res, resumed, nil)
	}

	if !b.cancel.IsSet() {
		b.materialize(processed)
	}

	b.complete()
	return nil
}

// materialize votes for the most frequent band descriptor across all
// processed sources and writes one summary raster for the batch.
func (b *Batch) materialize(processed []*Result) {
	m, ok := b.op.(Materializer)
	if !ok || len(processed) == 0 {
		return
	}

	votes := map[string]int{}
	for _, res := range processed {
		votes[res.Descriptor]++
	}
	var descriptor string
	best := -1
	for desc, n := range votes {
		if n > best || (n == best && desc < descriptor) {
			descriptor, best = desc, n
		}
	}

	raster, err := m.Materialize(processed, descriptor)
	if err != nil {
		b.exceptionOccurred("materialising summary raster", err)
		return
	}

	scaled, err := utils.Scale([]utils.Raster{raster}, b.ScaleParams)
	if err != nil {
		b.exceptionOccurred("scaling summary raster", err)
		return
	}
	blob, err := utils.EncodePNG(scaled[0], b.Palette)
	if err != nil {
		b.exceptionOccurred("encoding summary raster", err)
		return
	}
	if err := ioutil.WriteFile(b.summaryPath(), blob, 0644); err != nil {
		b.exceptionOccurred("writing summary raster", err)
	}
}

func (b *Batch) logEvent(ref ImageRef, start time.Time, res *Result, resumed bool, opErr error) {
	if b.EventLogger == nil {
		return
	}
	collector := metrics.NewCollector(b.EventLogger)
	collector.Info.Batch = b.Name
	collector.Info.Operation = b.op.Name()
	collector.Info.Phase = "image"
	collector.Info.Duration = time.Since(start)
	collector.Info.Image = &metrics.ImageInfo{
		Identifier: ref.Identifier(),
		FileName:   ref.FileName(),
		Duration:   time.Since(start),
		Resumed:    resumed,
	}
	if res != nil {
		collector.Info.Image.UnitsDone = res.UnitCount
		collector.Info.Image.UnitsTotal = res.TotalUnits
	}
	if opErr != nil {
		collector.Info.Error = opErr.Error()
	}
	collector.Log()
}
