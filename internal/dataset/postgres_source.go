package dataset

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Skufu/thyronet/internal/thyroid"
	"github.com/jackc/pgx/v5"
)

// Querier is the subset of pgxpool.Pool used by PostgresSource.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads the dataset from a table with one column per CSV
// column. outlier_label holds the raw label text.
type PostgresSource struct {
	db    Querier
	query string
}

// NewPostgresSource reads from table. The name is quoted as an identifier.
func NewPostgresSource(db Querier, table string) *PostgresSource {
	cols := make([]string, len(Columns))
	for i, c := range Columns {
		cols[i] = pgx.Identifier{c}.Sanitize()
	}
	return &PostgresSource{
		db: db,
		query: fmt.Sprintf(
			"SELECT %s FROM %s",
			strings.Join(cols, ", "),
			pgx.Identifier(strings.Split(table, ".")).Sanitize(),
		),
	}
}

func (s *PostgresSource) Fetch(ctx context.Context) ([]thyroid.DatasetRow, error) {
	rows, err := s.db.Query(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("query dataset: %w", err)
	}
	defer rows.Close()

	var out []thyroid.DatasetRow
	values := make([]*float64, labelColumn)
	dest := make([]any, len(Columns))
	for i := range values {
		dest[i] = &values[i]
	}
	var label *string
	dest[labelColumn] = &label

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan dataset row: %w", err)
		}

		if values[0] != nil && math.IsNaN(*values[0]) {
			continue
		}

		var row thyroid.DatasetRow
		for i, set := range featureSetters {
			if values[i] != nil && !math.IsNaN(*values[i]) && !math.IsInf(*values[i], 0) {
				set(&row.PatientRecord, *values[i])
			}
		}
		if label != nil && strings.TrimSpace(*label) == "y" {
			row.Outlier = 1
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read dataset rows: %w", err)
	}
	return out, nil
}
