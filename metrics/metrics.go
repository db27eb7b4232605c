package metrics

import (
	"bytes"
	"encoding/json"
	"time"
)

// ImageInfo records the processing of one source image within a batch.
type ImageInfo struct {
	Identifier string        `json:"identifier"`
	FileName   string        `json:"file_name"`
	Duration   time.Duration `json:"duration"`
	UnitsDone  int           `json:"units_done"`
	UnitsTotal int           `json:"units_total"`
	Resumed    bool          `json:"resumed"`
}

// BatchInfo is one structured batch event routed to a Logger.
type BatchInfo struct {
	EventTime string        `json:"event_time"`
	Batch     string        `json:"batch"`
	Operation string        `json:"operation"`
	Phase     string        `json:"phase"`
	Duration  time.Duration `json:"duration"`
	Image     *ImageInfo    `json:"image"`
	Error     string        `json:"error"`
}

type Collector struct {
	Info   *BatchInfo
	logger Logger
}

func NewCollector(logger Logger) *Collector {
	return &Collector{
		Info: &BatchInfo{
			EventTime: time.Now().UTC().Format(time.RFC3339),
		},
		logger: logger,
	}
}

func (c *Collector) Log() {
	if c.logger != nil {
		c.logger.Log(c.Info)
	}
}

func (i *BatchInfo) ToJSON() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(i); err != nil {
		return "", err
	}
	return buf.String(), nil
}
