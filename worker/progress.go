package worker

import (
	"log"
	"math"
	"sync/atomic"
)

// ProgressListener receives batch lifecycle events. Zero or more listeners
// may be registered; when none is, exceptions still reach the process-wide
// diagnostic log.
type ProgressListener interface {
	Started()
	Progress(percent float64)
	SetDescription(text string)
	Complete()
	ExceptionOccurred(context string, err error)
}

// ClampProgress maps any percentage onto [0, 100]. NaN maps to 0.
func ClampProgress(percent float64) float64 {
	if math.IsNaN(percent) || percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// CancelFlag is the cooperative-cancel signal shared between the controller
// and the processing loops. Setting it guarantees no new unit of work
// begins; in-flight units run to completion so that accumulators are never
// left half merged.
type CancelFlag struct {
	v int32
}

func (c *CancelFlag) Set() { atomic.StoreInt32(&c.v, 1) }

func (c *CancelFlag) IsSet() bool { return atomic.LoadInt32(&c.v) != 0 }

func (b *Batch) AddProgressListener(l ProgressListener) {
	b.lmu.Lock()
	b.listeners = append(b.listeners, l)
	b.lmu.Unlock()
}

func (b *Batch) RemoveProgressListener(l ProgressListener) {
	b.lmu.Lock()
	defer b.lmu.Unlock()
	for i, reg := range b.listeners {
		if reg == l {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

func (b *Batch) started() {
	b.lmu.Lock()
	defer b.lmu.Unlock()
	for _, l := range b.listeners {
		l.Started()
	}
}

func (b *Batch) progress(percent float64) {
	percent = ClampProgress(percent)
	b.lmu.Lock()
	defer b.lmu.Unlock()
	for _, l := range b.listeners {
		l.Progress(percent)
	}
}

func (b *Batch) setDescription(text string) {
	b.lmu.Lock()
	defer b.lmu.Unlock()
	for _, l := range b.listeners {
		l.SetDescription(text)
	}
}

func (b *Batch) complete() {
	b.lmu.Lock()
	defer b.lmu.Unlock()
	for _, l := range b.listeners {
		l.Complete()
	}
}

func (b *Batch) exceptionOccurred(context string, err error) {
	b.lmu.Lock()
	defer b.lmu.Unlock()
	if len(b.listeners) == 0 {
		log.Printf("Batch %s: %s: %v", b.Name, context, err)
		return
	}
	for _, l := range b.listeners {
		l.ExceptionOccurred(context, err)
	}
}
