package utils

import (
	"encoding/json"
	"fmt"
	"image/color"
	"io/ioutil"
	"strings"

	yaml "gopkg.in/yaml.v2"
)

var EtcDir = "."
var DataDir = "."

// ServiceConfig names the external collaborators of a batch run.
type ServiceConfig struct {
	DatabaseDSN  string `json:"database_dsn"`
	MemcacheURI  string `json:"memcache_uri"`
	SnapshotFile string `json:"snapshot_file"`
}

type Palette struct {
	Interpolate bool         `json:"interpolate"`
	Colours     []color.RGBA `json:"colours"`
}

// BatchConfig drives the worker engine.
type BatchConfig struct {
	Series          string   `json:"series"`
	Destination     string   `json:"destination"`
	Satellite       string   `json:"satellite"`
	CalibrationFile string   `json:"calibration_file"`
	CheckpointRows  int      `json:"checkpoint_rows"`
	IntervalMetres  float64  `json:"interval_metres"`
	RadiusMetres    float64  `json:"radius_metres"`
	ReportTemplate  string   `json:"report_template"`
	FilterExprs     []string `json:"filter_expressions"`
	AngleThreshold  float64  `json:"angle_threshold"`
	AngleInclusive  bool     `json:"angle_inclusive"`
	CodingScale     float64  `json:"coding_scale"`
	CodingOffset    float64  `json:"coding_offset"`
	SummaryScale    float64  `json:"summary_scale"`
	SummaryOffset   float64  `json:"summary_offset"`
	SummaryClip     float64  `json:"summary_clip"`
	Palette         *Palette `json:"palette"`
	MaxLogFileSize  int64    `json:"max_log_file_size"`
	MaxLogFiles     int      `json:"max_log_files"`
}

type Config struct {
	ServiceConfig ServiceConfig `json:"service_config"`
	Batch         BatchConfig   `json:"batch"`
}

func LoadConfigFile(configFile string) (*Config, error) {
	cfg, err := ioutil.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("Error while reading config file: %s. Error: %v", configFile, err)
	}
	config := &Config{}
	if err := json.Unmarshal(cfg, config); err != nil {
		return nil, fmt.Errorf("Error at JSON parsing config document: %s. Error: %v", configFile, err)
	}
	if config.Batch.CheckpointRows <= 0 {
		config.Batch.CheckpointRows = 64
	}
	if config.Batch.CodingScale == 0 {
		// Stock AVHRR SST coding: one count per eighth of a kelvin above
		// the freezing point of sea water.
		config.Batch.CodingScale = 0.125
		config.Batch.CodingOffset = 271.15
	}
	return config, nil
}

// AlbedoSegments describes the single- or dual-segment linear albedo
// calibration. Single-segment satellites repeat the first segment and put
// Intersection above any raw count.
type AlbedoSegments struct {
	Slope1       float64 `yaml:"slope1"`
	Intercept1   float64 `yaml:"intercept1"`
	Slope2       float64 `yaml:"slope2"`
	Intercept2   float64 `yaml:"intercept2"`
	Intersection float64 `yaml:"intersection"`
}

// RadianceCoefs holds the per-line thermal calibration coefficients.
// KLM satellites use the quadratic a0 + C*(a1 + a2*C); earlier satellites
// use the linear a0*C + a1 with a2 ignored.
type RadianceCoefs struct {
	A0 float64 `yaml:"a0"`
	A1 float64 `yaml:"a1"`
	A2 float64 `yaml:"a2"`
}

// PlanckCoefs holds the inverse-Planck constants of one thermal channel and
// the optional KLM linear correction (T' - A) / B.
type PlanckCoefs struct {
	C1         float64 `yaml:"c1"`
	C2         float64 `yaml:"c2"`
	Nu         float64 `yaml:"nu"`
	A          float64 `yaml:"a"`
	B          float64 `yaml:"b"`
	Correction bool    `yaml:"correction"`
}

// SSTCoefs holds one split-window SST coefficient set:
// SST = a1*T4 + a2*T5 + a3*(T4-T5)*(sec(angle)-1) + a4.
type SSTCoefs struct {
	A1 float64 `yaml:"a1"`
	A2 float64 `yaml:"a2"`
	A3 float64 `yaml:"a3"`
	A4 float64 `yaml:"a4"`
}

type SatelliteTable struct {
	Name       string                    `yaml:"name"`
	Generation string                    `yaml:"generation"`
	Albedo     map[string]AlbedoSegments `yaml:"albedo"`
	Radiance   map[string]RadianceCoefs  `yaml:"radiance"`
	Planck     map[string]PlanckCoefs    `yaml:"planck"`
	SSTDay     SSTCoefs                  `yaml:"sst_day"`
	SSTNight   SSTCoefs                  `yaml:"sst_night"`
}

type CalibrationTables struct {
	Satellites []SatelliteTable `yaml:"satellites"`
}

func LoadCalibrationTables(path string) (*CalibrationTables, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Error while reading calibration file: %s. Error: %v", path, err)
	}
	tables := &CalibrationTables{}
	if err := yaml.Unmarshal(raw, tables); err != nil {
		return nil, fmt.Errorf("Error at YAML parsing calibration document: %s. Error: %v", path, err)
	}
	for _, sat := range tables.Satellites {
		gen := strings.ToLower(sat.Generation)
		if gen != "aj" && gen != "klm" {
			return nil, fmt.Errorf("satellite %s: unknown generation %q", sat.Name, sat.Generation)
		}
	}
	return tables, nil
}

func (t *CalibrationTables) Satellite(name string) (*SatelliteTable, error) {
	for i := range t.Satellites {
		if strings.EqualFold(t.Satellites[i].Name, name) {
			return &t.Satellites[i], nil
		}
	}
	return nil, fmt.Errorf("satellite %s not found in calibration tables", name)
}
