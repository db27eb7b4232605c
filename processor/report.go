package processor

import (
	"fmt"
	"io"
	"math"
	"sort"
	"text/template"

	"gonum.org/v1/gonum/stat"

	"github.com/nci/avhrr/utils"
	"github.com/nci/avhrr/worker"
)

// BucketRow is one line of the tab-delimited semi-variance report.
type BucketRow struct {
	Index          int
	MeanDistanceKm float64
	SemiVariance   float64
	Pairs          int64
}

type Report struct {
	Band           string
	IntervalMetres float64
	RadiusMetres   float64
	Images         []string
	RowsDone       int
	RowsTotal      int

	Rows []BucketRow

	Samples        int64
	GlobalMean     float64
	GlobalRMS      float64
	GlobalStdDev   float64
	TrendSlope     float64
	TrendIntercept float64
}

// BuildReport derives the per-bucket and global statistics of a
// semi-variance Result. Empty buckets are omitted. The trend line is a
// least-squares fit of semi-variance against mean bucket distance.
func BuildReport(res *worker.Result) (*Report, error) {
	if res.Params.Operation != SemiVarianceOp {
		return nil, fmt.Errorf("report: result holds %q, not %q", res.Params.Operation, SemiVarianceOp)
	}
	counts := res.Counts[KeyCount]
	sumSq := res.Vectors[KeySumSq]
	sumDist := res.Vectors[KeySumDist]
	if len(counts) == 0 || len(counts) != len(sumSq) || len(counts) != len(sumDist) {
		return nil, fmt.Errorf("report: result accumulators are missing or inconsistent")
	}

	rep := &Report{
		Band:           res.Params.CoefficientID,
		IntervalMetres: res.Params.Interval,
		RadiusMetres:   res.Params.Radius,
		RowsDone:       res.UnitCount,
		RowsTotal:      res.TotalUnits,
	}
	for id := range res.Images {
		rep.Images = append(rep.Images, id)
	}
	sort.Strings(rep.Images)

	var distKm, variance []float64
	for i, n := range counts {
		if n <= 0 {
			continue
		}
		row := BucketRow{
			Index:          i,
			MeanDistanceKm: sumDist[i] / float64(n) / 1000,
			SemiVariance:   math.Sqrt(sumSq[i] / float64(n)),
			Pairs:          n,
		}
		rep.Rows = append(rep.Rows, row)
		distKm = append(distKm, row.MeanDistanceKm)
		variance = append(variance, row.SemiVariance)
	}

	n := res.Scalars[KeySamples]
	sum := res.Scalars[KeySum]
	sumSquares := res.Scalars[KeySumSquares]
	rep.Samples = int64(n)
	if n > 0 {
		rep.GlobalMean = sum / n
		rep.GlobalRMS = math.Sqrt(sumSquares / n)
	}
	if n > 1 {
		rep.GlobalStdDev = math.Sqrt((sumSquares - sum*sum/n) / (n - 1))
	}
	if len(distKm) >= 2 {
		rep.TrendIntercept, rep.TrendSlope = stat.LinearRegression(distKm, variance, nil, false)
	}
	return rep, nil
}

const defaultReportTemplate = `semi-variance report	band {{.Band}}
interval (m)	{{printf "%.1f" .IntervalMetres}}
radius (m)	{{printf "%.1f" .RadiusMetres}}
rows	{{.RowsDone}} / {{.RowsTotal}}
images	{{range .Images}}{{.}} {{end}}
samples	{{.Samples}}
mean	{{printf "%.6f" .GlobalMean}}
rms	{{printf "%.6f" .GlobalRMS}}
std dev	{{printf "%.6f" .GlobalStdDev}}
trend	{{printf "%.6g" .TrendSlope}} per km + {{printf "%.6g" .TrendIntercept}}

bucket	mean distance (km)	semi-variance	pairs
{{range .Rows}}{{.Index}}	{{printf "%.3f" .MeanDistanceKm}}	{{printf "%.6f" .SemiVariance}}	{{.Pairs}}
{{end}}`

// WriteReport renders the report tab-delimited. A template file path may
// override the builtin layout; the data fields available to it are those
// of Report.
func WriteReport(w io.Writer, rep *Report, templatePath string) error {
	if templatePath != "" {
		return utils.ExecuteWriteTemplateFile(w, rep, templatePath)
	}
	tpl, err := template.New("report").Parse(defaultReportTemplate)
	if err != nil {
		return fmt.Errorf("report: template parse: %v", err)
	}
	if err := tpl.Execute(w, rep); err != nil {
		return fmt.Errorf("report: %v", err)
	}
	return nil
}
