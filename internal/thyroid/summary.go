package thyroid

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FeatureStats describes one numeric column of the dataset.
type FeatureStats struct {
	Feature      string  `json:"feature"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	NormalMean   float64 `json:"normal_mean"`
	AbnormalMean float64 `json:"abnormal_mean"`
}

// DatasetSummary is an exploration overview of the reference dataset.
type DatasetSummary struct {
	Rows          int            `json:"rows"`
	NormalCases   int            `json:"normal_cases"`
	AbnormalCases int            `json:"abnormal_cases"`
	BaselineRisk  float64        `json:"baseline_risk"`
	Features      []FeatureStats `json:"features"`
}

var summaryColumns = []struct {
	name  string
	value func(PatientRecord) float64
}{
	{"age", func(r PatientRecord) float64 { return r.Age }},
	{"TSH", func(r PatientRecord) float64 { return r.TSH }},
	{"T3_measured", func(r PatientRecord) float64 { return r.T3 }},
	{"TT4_measured", func(r PatientRecord) float64 { return r.TT4 }},
	{"T4U_measured", func(r PatientRecord) float64 { return r.T4U }},
	{"FTI_measured", func(r PatientRecord) float64 { return r.FTI }},
}

// Summarize computes class balance and per-column statistics.
func Summarize(rows []DatasetRow) DatasetSummary {
	s := DatasetSummary{Rows: len(rows), Features: make([]FeatureStats, 0, len(summaryColumns))}
	for _, r := range rows {
		if r.Outlier == 1 {
			s.AbnormalCases++
		}
	}
	s.NormalCases = s.Rows - s.AbnormalCases
	s.BaselineRisk = round4(BaselineRisk(rows))

	if len(rows) == 0 {
		return s
	}

	all := make([]float64, len(rows))
	normal := make([]float64, 0, s.NormalCases)
	abnormal := make([]float64, 0, s.AbnormalCases)
	for _, col := range summaryColumns {
		normal, abnormal = normal[:0], abnormal[:0]
		for i, r := range rows {
			v := col.value(r.PatientRecord)
			all[i] = v
			if r.Outlier == 1 {
				abnormal = append(abnormal, v)
			} else {
				normal = append(normal, v)
			}
		}

		s.Features = append(s.Features, FeatureStats{
			Feature:      col.name,
			Min:          floats.Min(all),
			Max:          floats.Max(all),
			Mean:         round4(stat.Mean(all, nil)),
			NormalMean:   classMean(normal),
			AbnormalMean: classMean(abnormal),
		})
	}
	return s
}

// classMean is 0 for a class with no rows.
func classMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return round4(stat.Mean(values, nil))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
