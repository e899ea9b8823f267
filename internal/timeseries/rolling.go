// Package timeseries smooths numeric columns over a dataset's time index.
package timeseries

import (
	"fmt"
	"sort"
	"time"

	"github.com/kiranshivaraju/marketpulse/internal/dataset"
	"github.com/montanaflynn/stats"
)

// SeriesKey names the smoothed series derived from a column.
func SeriesKey(column string, window int) string {
	return fmt.Sprintf("%s_rolling_mean_%dd", column, window)
}

// Point is one timestamped observation.
type Point struct {
	Time  time.Time
	Value float64
}

// ColumnError reports a failure scoped to one column.
type ColumnError struct {
	Column string
	Err    error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("time series for column %q: %v", e.Column, e.Err)
}

func (e *ColumnError) Unwrap() error { return e.Err }

// RollingMeans computes a trailing mean over window chronologically ordered points for every
// numeric column, keyed by SeriesKey and then by ISO timestamp. Positions with fewer than
// window points of history are omitted. Rows with a missing timestamp are skipped. A column
// that fails is reported in the returned errors and left out of the result.
func RollingMeans(d *dataset.Dataset, timeColumn string, numericColumns []string, window int) (map[string]map[string]float64, []error) {
	out := make(map[string]map[string]float64)
	tc := d.Column(timeColumn)
	if tc == nil || tc.Kind != dataset.KindDatetime {
		return out, []error{fmt.Errorf("time series: %q is not a datetime column", timeColumn)}
	}

	order := chronological(tc)

	var errs []error
	for _, name := range numericColumns {
		series, err := rollingColumn(d.Column(name), tc, order, window)
		if err != nil {
			errs = append(errs, &ColumnError{Column: name, Err: err})
			continue
		}
		out[SeriesKey(name, window)] = series
	}
	return out, errs
}

// chronological returns the indices of rows with a timestamp, stably sorted by time.
func chronological(tc *dataset.Column) []int {
	order := make([]int, 0, tc.Len())
	for i := 0; i < tc.Len(); i++ {
		if !tc.Missing[i] {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return tc.Times[order[a]].Before(tc.Times[order[b]])
	})
	return order
}

func rollingColumn(col, tc *dataset.Column, order []int, window int) (series map[string]float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if col == nil {
		return nil, fmt.Errorf("column not found")
	}
	if col.Kind != dataset.KindNumeric {
		return nil, fmt.Errorf("column is %s, not numeric", col.Kind)
	}
	if window < 1 {
		return nil, fmt.Errorf("window must be positive, got %d", window)
	}

	series = make(map[string]float64)
	for end := window; end <= len(order); end++ {
		rows := order[end-window : end]
		values := make(stats.Float64Data, 0, window)
		for _, r := range rows {
			if col.Missing[r] {
				break
			}
			values = append(values, col.Numbers[r])
		}
		if len(values) < window {
			continue
		}
		mean, err := stats.Mean(values)
		if err != nil {
			return nil, err
		}
		series[dataset.FormatTime(tc.Times[rows[window-1]])] = mean
	}
	return series, nil
}

// Points returns the (time, value) pairs of a numeric column in chronological order,
// skipping rows where either side is missing.
func Points(d *dataset.Dataset, timeColumn, column string) []Point {
	tc, col := d.Column(timeColumn), d.Column(column)
	if tc == nil || col == nil || tc.Kind != dataset.KindDatetime || col.Kind != dataset.KindNumeric {
		return nil
	}
	var pts []Point
	for _, i := range chronological(tc) {
		if col.Missing[i] {
			continue
		}
		pts = append(pts, Point{Time: tc.Times[i], Value: col.Numbers[i]})
	}
	return pts
}
