package thyroid

import (
	"math"
	"sort"
)

const (
	maxNeighborhood      = 100
	neighborhoodFraction = 0.1
)

type categoricalFeature struct {
	weight float64
	value  func(PatientRecord) float64
}

type labFeature struct {
	weight float64
	scale  float64
	value  func(PatientRecord) float64
}

var (
	categoricalFeatures = []categoricalFeature{
		{0.25, func(r PatientRecord) float64 { return r.Tumor }},
		{0.20, func(r PatientRecord) float64 { return r.ThyroidSurgery }},
		{0.15, func(r PatientRecord) float64 { return r.Goitre }},
		{0.15, func(r PatientRecord) float64 { return r.I131Treatment }},
	}
	labFeatures = []labFeature{
		{0.10, 10, func(r PatientRecord) float64 { return r.TSH }},
		{0.08, 5, func(r PatientRecord) float64 { return r.T3 }},
		{0.05, 200, func(r PatientRecord) float64 { return r.TT4 }},
		{0.02, 100, func(r PatientRecord) float64 { return r.FTI }},
	}
)

// Neighbor is a dataset row paired with its similarity to an input record.
type Neighbor struct {
	Row        DatasetRow
	Similarity float64
}

// Similarity scores how close row is to input, in [0,1]. Categorical features
// count only on exact equality; lab values decay exponentially with distance.
func Similarity(input PatientRecord, row DatasetRow) float64 {
	var score, total float64

	for _, f := range categoricalFeatures {
		if f.value(input) == f.value(row.PatientRecord) {
			score += f.weight
		}
		total += f.weight
	}

	for _, f := range labFeatures {
		diff := math.Abs(f.value(input)-f.value(row.PatientRecord)) / f.scale
		score += math.Exp(-2*diff) * f.weight
		total += f.weight
	}

	return score / total
}

// NeighborhoodSize is min(100, 10% of n), never less than 1 for a non-empty
// dataset.
func NeighborhoodSize(n int) int {
	if n <= 0 {
		return 0
	}
	k := int(float64(n) * neighborhoodFraction)
	if k > maxNeighborhood {
		k = maxNeighborhood
	}
	if k < 1 {
		k = 1
	}
	return k
}

// Neighborhood ranks every row by similarity to input and returns the closest
// NeighborhoodSize(len(rows)) of them, most similar first.
func Neighborhood(input PatientRecord, rows []DatasetRow) []Neighbor {
	ranked := make([]Neighbor, len(rows))
	for i, row := range rows {
		ranked[i] = Neighbor{Row: row, Similarity: Similarity(input, row)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})

	return ranked[:NeighborhoodSize(len(ranked))]
}

// AbnormalRatio is the fraction of neighbors labelled as outliers.
func AbnormalRatio(neighbors []Neighbor) float64 {
	if len(neighbors) == 0 {
		return 0
	}
	abnormal := 0
	for _, n := range neighbors {
		if n.Row.Outlier == 1 {
			abnormal++
		}
	}
	return float64(abnormal) / float64(len(neighbors))
}

// BaselineRisk is the fraction of all rows labelled as outliers.
func BaselineRisk(rows []DatasetRow) float64 {
	if len(rows) == 0 {
		return 0
	}
	abnormal := 0
	for _, r := range rows {
		if r.Outlier == 1 {
			abnormal++
		}
	}
	return float64(abnormal) / float64(len(rows))
}
