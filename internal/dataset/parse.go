// Package dataset loads the labelled reference dataset used by the scorer.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/Skufu/thyronet/internal/thyroid"
)

// Columns lists the 22 columns of the dataset in file order.
var Columns = []string{
	"age", "sex", "on_thyroxine", "query_on_thyroxine", "on_antithyroid_medication",
	"sick", "pregnant", "thyroid_surgery", "I131_treatment", "query_hypothyroid",
	"query_hyperthyroid", "lithium", "goitre", "tumor", "hypopituitary", "psych",
	"TSH", "T3_measured", "TT4_measured", "T4U_measured", "FTI_measured",
	"outlier_label",
}

const labelColumn = 21

// featureSetters assign the first 21 columns, in file order.
var featureSetters = [labelColumn]func(*thyroid.PatientRecord, float64){
	func(r *thyroid.PatientRecord, v float64) { r.Age = v },
	func(r *thyroid.PatientRecord, v float64) { r.Sex = v },
	func(r *thyroid.PatientRecord, v float64) { r.OnThyroxine = v },
	func(r *thyroid.PatientRecord, v float64) { r.QueryOnThyroxine = v },
	func(r *thyroid.PatientRecord, v float64) { r.OnAntithyroidMedication = v },
	func(r *thyroid.PatientRecord, v float64) { r.Sick = v },
	func(r *thyroid.PatientRecord, v float64) { r.Pregnant = v },
	func(r *thyroid.PatientRecord, v float64) { r.ThyroidSurgery = v },
	func(r *thyroid.PatientRecord, v float64) { r.I131Treatment = v },
	func(r *thyroid.PatientRecord, v float64) { r.QueryHypothyroid = v },
	func(r *thyroid.PatientRecord, v float64) { r.QueryHyperthyroid = v },
	func(r *thyroid.PatientRecord, v float64) { r.Lithium = v },
	func(r *thyroid.PatientRecord, v float64) { r.Goitre = v },
	func(r *thyroid.PatientRecord, v float64) { r.Tumor = v },
	func(r *thyroid.PatientRecord, v float64) { r.Hypopituitary = v },
	func(r *thyroid.PatientRecord, v float64) { r.Psych = v },
	func(r *thyroid.PatientRecord, v float64) { r.TSH = v },
	func(r *thyroid.PatientRecord, v float64) { r.T3 = v },
	func(r *thyroid.PatientRecord, v float64) { r.TT4 = v },
	func(r *thyroid.PatientRecord, v float64) { r.T4U = v },
	func(r *thyroid.PatientRecord, v float64) { r.FTI = v },
}

// Parse reads a semicolon separated dataset. The first line is a header.
// Missing or non-numeric cells become 0, a label of "y" marks an outlier, and
// rows whose age is NaN are dropped.
func Parse(r io.Reader) ([]thyroid.DatasetRow, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var rows []thyroid.DatasetRow
	for line := 0; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse dataset: %w", err)
		}
		if line == 0 {
			continue
		}

		if len(record) > 0 && isNaN(record[0]) {
			continue
		}
		rows = append(rows, parseRow(record))
	}
	return rows, nil
}

func parseRow(record []string) thyroid.DatasetRow {
	var row thyroid.DatasetRow
	for i, set := range featureSetters {
		if i < len(record) {
			set(&row.PatientRecord, thyroid.ParseValue(record[i]))
		}
	}
	if len(record) > labelColumn && strings.TrimSpace(record[labelColumn]) == "y" {
		row.Outlier = 1
	}
	return row
}

func isNaN(raw string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	return err == nil && math.IsNaN(f)
}
