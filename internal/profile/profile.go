// Package profile classifies dataset columns and computes per-type descriptive statistics.
package profile

import (
	"fmt"
	"math"
	"sort"

	"github.com/kiranshivaraju/marketpulse/internal/dataset"
	"github.com/kiranshivaraju/marketpulse/pkg/models"
	"github.com/montanaflynn/stats"
)

// Options are the tunable classification thresholds.
type Options struct {
	// A string column is categorical when unique/rows is below this ratio...
	CategoricalUniqueRatio float64
	// ...and it has fewer than this many distinct values.
	CategoricalMaxUnique int
	// TopCategories caps the frequency table of a categorical column.
	TopCategories int
}

// DefaultOptions returns the stock thresholds.
func DefaultOptions() Options {
	return Options{CategoricalUniqueRatio: 0.5, CategoricalMaxUnique: 1000, TopCategories: 20}
}

// Profile returns exactly one profile per column, keyed by column name. A column whose
// statistics cannot be computed gets a profile of type error instead of failing the call.
func Profile(d *dataset.Dataset, opts Options) map[string]models.ColumnProfile {
	out := make(map[string]models.ColumnProfile, len(d.Columns))
	for _, col := range d.Columns {
		out[col.Name] = profileColumn(col, d.Rows(), opts)
	}
	return out
}

// ColumnsOfType returns, in dataset order, the names of columns profiled as t.
func ColumnsOfType(d *dataset.Dataset, profiles map[string]models.ColumnProfile, t models.ColumnType) []string {
	var names []string
	for _, col := range d.Columns {
		if p, ok := profiles[col.Name]; ok && p.Type == t {
			names = append(names, col.Name)
		}
	}
	return names
}

func profileColumn(col *dataset.Column, rows int, opts Options) (p models.ColumnProfile) {
	defer func() {
		if r := recover(); r != nil {
			p = errorProfile(fmt.Errorf("panic: %v", r))
		}
	}()

	var err error
	switch col.Kind {
	case dataset.KindNumeric:
		p, err = numerical(col)
	case dataset.KindDatetime:
		p = datetime(col)
	default:
		p = stringLike(col, rows, opts)
	}
	if err != nil {
		return errorProfile(err)
	}
	return p
}

func errorProfile(err error) models.ColumnProfile {
	return models.ColumnProfile{Type: models.ColumnError, Error: err.Error()}
}

func classifyString(unique, rows int, opts Options) models.ColumnType {
	if rows > 0 && float64(unique)/float64(rows) < opts.CategoricalUniqueRatio && unique < opts.CategoricalMaxUnique {
		return models.ColumnCategorical
	}
	return models.ColumnText
}

func numerical(col *dataset.Column) (models.ColumnProfile, error) {
	data := make(stats.Float64Data, 0, col.Len())
	for i, v := range col.Numbers {
		if !col.Missing[i] {
			data = append(data, v)
		}
	}

	mean, err := stats.Mean(data)
	if err != nil {
		return models.ColumnProfile{}, fmt.Errorf("mean: %w", err)
	}
	median, err := stats.Median(data)
	if err != nil {
		return models.ColumnProfile{}, fmt.Errorf("median: %w", err)
	}
	lo, _ := stats.Min(data)
	hi, _ := stats.Max(data)
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	q25 := quantile(sorted, 0.25)
	q75 := quantile(sorted, 0.75)
	// Sample deviation; a single value yields NaN, which is persisted as null.
	std, _ := stats.StandardDeviationSample(data)

	return models.ColumnProfile{
		Type:         models.ColumnNumerical,
		Mean:         &mean,
		Median:       &median,
		StdDev:       &std,
		Min:          &lo,
		Max:          &hi,
		Percentile25: &q25,
		Percentile75: &q75,
	}, nil
}

// quantile interpolates linearly between the order statistics around position (n-1)*q,
// the same rule pandas uses by default. sorted must be non-empty and ascending.
func quantile(sorted []float64, q float64) float64 {
	pos := float64(len(sorted)-1) * q
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func datetime(col *dataset.Column) models.ColumnProfile {
	p := models.ColumnProfile{Type: models.ColumnDatetime}
	first := true
	var lo, hi int
	for i, t := range col.Times {
		if col.Missing[i] {
			continue
		}
		if first {
			lo, hi, first = i, i, false
			continue
		}
		if t.Before(col.Times[lo]) {
			lo = i
		}
		if t.After(col.Times[hi]) {
			hi = i
		}
	}
	if first {
		return p
	}
	minDate := dataset.FormatTime(col.Times[lo])
	maxDate := dataset.FormatTime(col.Times[hi])
	p.MinDate, p.MaxDate = &minDate, &maxDate
	return p
}

func stringLike(col *dataset.Column, rows int, opts Options) models.ColumnProfile {
	counts := dataset.ValueCounts(col)
	unique := len(counts)

	t := classifyString(unique, rows, opts)
	p := models.ColumnProfile{Type: t, UniqueCount: &unique}
	if t != models.ColumnCategorical {
		return p
	}

	if len(counts) > 0 {
		mode := counts[0].Value
		p.Mode = &mode
	}
	top := counts
	if opts.TopCategories > 0 && len(top) > opts.TopCategories {
		top = top[:opts.TopCategories]
	}
	p.TopValues = make([]models.ValueCount, len(top))
	for i, vc := range top {
		p.TopValues[i] = models.ValueCount{Value: vc.Value, Count: vc.Count}
	}
	return p
}
