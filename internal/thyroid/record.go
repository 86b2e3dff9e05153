package thyroid

import (
	"github.com/Skufu/thyronet/internal/apperr"
)

// PatientRecord is the feature vector for one patient. Binary flags hold 0 or 1.
type PatientRecord struct {
	ID                      string  `json:"id,omitempty"`
	Age                     float64 `json:"age"`
	Sex                     float64 `json:"sex"`
	OnThyroxine             float64 `json:"on_thyroxine"`
	QueryOnThyroxine        float64 `json:"query_on_thyroxine"`
	OnAntithyroidMedication float64 `json:"on_antithyroid_medication"`
	Sick                    float64 `json:"sick"`
	Pregnant                float64 `json:"pregnant"`
	ThyroidSurgery          float64 `json:"thyroid_surgery"`
	I131Treatment           float64 `json:"I131_treatment"`
	QueryHypothyroid        float64 `json:"query_hypothyroid"`
	QueryHyperthyroid       float64 `json:"query_hyperthyroid"`
	Lithium                 float64 `json:"lithium"`
	Goitre                  float64 `json:"goitre"`
	Tumor                   float64 `json:"tumor"`
	Hypopituitary           float64 `json:"hypopituitary"`
	Psych                   float64 `json:"psych"`
	TSH                     float64 `json:"TSH"`
	T3                      float64 `json:"T3_measured"`
	TT4                     float64 `json:"TT4_measured"`
	T4U                     float64 `json:"T4U_measured"`
	FTI                     float64 `json:"FTI_measured"`
}

// DatasetRow is a reference record with its ground-truth outlier label.
type DatasetRow struct {
	PatientRecord
	Outlier int `json:"outlier_label"`
}

// PatientInput is the wire form of a PatientRecord. Fields are pointers so that
// absent or null values can be told apart from zeros.
type PatientInput struct {
	ID                      RecordID `json:"id,omitempty"`
	Age                     *Number  `json:"age"`
	Sex                     *Number  `json:"sex"`
	OnThyroxine             *Number  `json:"on_thyroxine"`
	QueryOnThyroxine        *Number  `json:"query_on_thyroxine"`
	OnAntithyroidMedication *Number  `json:"on_antithyroid_medication"`
	Sick                    *Number  `json:"sick"`
	Pregnant                *Number  `json:"pregnant"`
	ThyroidSurgery          *Number  `json:"thyroid_surgery"`
	I131Treatment           *Number  `json:"I131_treatment"`
	QueryHypothyroid        *Number  `json:"query_hypothyroid"`
	QueryHyperthyroid       *Number  `json:"query_hyperthyroid"`
	Lithium                 *Number  `json:"lithium"`
	Goitre                  *Number  `json:"goitre"`
	Tumor                   *Number  `json:"tumor"`
	Hypopituitary           *Number  `json:"hypopituitary"`
	Psych                   *Number  `json:"psych"`
	TSH                     *Number  `json:"TSH"`
	T3                      *Number  `json:"T3_measured"`
	TT4                     *Number  `json:"TT4_measured"`
	T4U                     *Number  `json:"T4U_measured"`
	FTI                     *Number  `json:"FTI_measured"`
}

// MissingRequired returns the name of the first required field that is absent,
// or "" when all are present.
func (in PatientInput) MissingRequired() string {
	required := []struct {
		name  string
		value *Number
	}{
		{"age", in.Age},
		{"sex", in.Sex},
		{"TSH", in.TSH},
		{"T3_measured", in.T3},
		{"TT4_measured", in.TT4},
		{"T4U_measured", in.T4U},
		{"FTI_measured", in.FTI},
	}
	for _, f := range required {
		if f.value == nil {
			return f.name
		}
	}
	return ""
}

// Validate reports a missing required field.
func (in PatientInput) Validate() error {
	if name := in.MissingRequired(); name != "" {
		return apperr.Validation("Missing required field: %s", name)
	}
	return nil
}

// Record converts the input, treating absent values as 0.
func (in PatientInput) Record() PatientRecord {
	return PatientRecord{
		ID:                      string(in.ID),
		Age:                     in.Age.Float(),
		Sex:                     in.Sex.Float(),
		OnThyroxine:             in.OnThyroxine.Float(),
		QueryOnThyroxine:        in.QueryOnThyroxine.Float(),
		OnAntithyroidMedication: in.OnAntithyroidMedication.Float(),
		Sick:                    in.Sick.Float(),
		Pregnant:                in.Pregnant.Float(),
		ThyroidSurgery:          in.ThyroidSurgery.Float(),
		I131Treatment:           in.I131Treatment.Float(),
		QueryHypothyroid:        in.QueryHypothyroid.Float(),
		QueryHyperthyroid:       in.QueryHyperthyroid.Float(),
		Lithium:                 in.Lithium.Float(),
		Goitre:                  in.Goitre.Float(),
		Tumor:                   in.Tumor.Float(),
		Hypopituitary:           in.Hypopituitary.Float(),
		Psych:                   in.Psych.Float(),
		TSH:                     in.TSH.Float(),
		T3:                      in.T3.Float(),
		TT4:                     in.TT4.Float(),
		T4U:                     in.T4U.Float(),
		FTI:                     in.FTI.Float(),
	}
}
