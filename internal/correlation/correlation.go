// Package correlation relates a dataset's numeric series to externally collected trend scores.
package correlation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kiranshivaraju/marketpulse/internal/dataset"
	"github.com/kiranshivaraju/marketpulse/internal/timeseries"
	"github.com/kiranshivaraju/marketpulse/pkg/models"
	"gonum.org/v1/gonum/stat"
)

// TrendSource reads external trend observations.
type TrendSource interface {
	ListTrendsBetween(ctx context.Context, from, to time.Time) ([]models.ExternalTrend, error)
}

type Options struct {
	// Threshold is the exclusive lower bound on |r| for a pair to be kept.
	Threshold float64
	// MinOverlap is the number of shared days required to correlate at all.
	MinOverlap int
}

func DefaultOptions() Options {
	return Options{Threshold: 0.3, MinOverlap: 2}
}

// PairKey names a metric/trend pair.
func PairKey(metric, trend string) string {
	return fmt.Sprintf("%s_vs_%s", metric, trend)
}

// Analyze fetches trends inside the dataset's time range, resamples both sides to daily
// means, keeps only days where every metric and every trend has a value, and returns the
// Pearson coefficient of every metric/trend pair whose magnitude exceeds the threshold.
// Too little overlap yields an empty map and no error.
func Analyze(ctx context.Context, src TrendSource, d *dataset.Dataset, timeColumn string, metrics []string, opts Options) (map[string]models.CorrelationPair, error) {
	out := make(map[string]models.CorrelationPair)

	tc := d.Column(timeColumn)
	if tc == nil || tc.Kind != dataset.KindDatetime {
		return nil, fmt.Errorf("%q is not a datetime column", timeColumn)
	}
	from, to, ok := timeRange(tc)
	if !ok || len(metrics) == 0 {
		return out, nil
	}

	trends, err := src.ListTrendsBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("query trends: %w", err)
	}
	if len(trends) == 0 {
		return out, nil
	}

	userDaily := make(map[string]map[time.Time]float64, len(metrics))
	for _, m := range metrics {
		col := d.Column(m)
		if col == nil || col.Kind != dataset.KindNumeric {
			return nil, fmt.Errorf("metric %q is not a numeric column", m)
		}
		acc := newDailyMean()
		for _, pt := range timeseries.Points(d, timeColumn, m) {
			acc.add(pt.Time, pt.Value)
		}
		userDaily[m] = acc.means()
	}

	trendAcc := make(map[string]*dailyMean)
	for _, tr := range trends {
		acc, ok := trendAcc[tr.TrendName]
		if !ok {
			acc = newDailyMean()
			trendAcc[tr.TrendName] = acc
		}
		acc.add(tr.CollectedAt, tr.Score)
	}
	trendNames := make([]string, 0, len(trendAcc))
	trendDaily := make(map[string]map[time.Time]float64, len(trendAcc))
	for name, acc := range trendAcc {
		trendNames = append(trendNames, name)
		trendDaily[name] = acc.means()
	}
	sort.Strings(trendNames)

	days := completeDays(userDaily, trendDaily)
	if len(days) < opts.MinOverlap {
		return out, nil
	}

	for _, m := range metrics {
		x := column(userDaily[m], days)
		for _, name := range trendNames {
			r := stat.Correlation(x, column(trendDaily[name], days), nil)
			if math.IsNaN(r) || math.IsInf(r, 0) {
				continue
			}
			if math.Abs(r) > opts.Threshold {
				out[PairKey(m, name)] = models.CorrelationPair{Correlation: r}
			}
		}
	}
	return out, nil
}

func timeRange(tc *dataset.Column) (from, to time.Time, ok bool) {
	for i, t := range tc.Times {
		if tc.Missing[i] {
			continue
		}
		if !ok {
			from, to, ok = t, t, true
			continue
		}
		if t.Before(from) {
			from = t
		}
		if t.After(to) {
			to = t
		}
	}
	return from, to, ok
}

// completeDays returns, sorted, the days on which every series has a value.
func completeDays(sides ...map[string]map[time.Time]float64) []time.Time {
	var days []time.Time
	first := true
	for _, side := range sides {
		for _, series := range side {
			if first {
				for day := range series {
					days = append(days, day)
				}
				first = false
				continue
			}
			kept := days[:0]
			for _, day := range days {
				if _, ok := series[day]; ok {
					kept = append(kept, day)
				}
			}
			days = kept
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

func column(series map[time.Time]float64, days []time.Time) []float64 {
	out := make([]float64, len(days))
	for i, day := range days {
		out[i] = series[day]
	}
	return out
}

type dailyMean struct {
	sum   map[time.Time]float64
	count map[time.Time]int
}

func newDailyMean() *dailyMean {
	return &dailyMean{sum: make(map[time.Time]float64), count: make(map[time.Time]int)}
}

func (a *dailyMean) add(t time.Time, v float64) {
	if math.IsNaN(v) {
		return
	}
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	a.sum[day] += v
	a.count[day]++
}

func (a *dailyMean) means() map[time.Time]float64 {
	out := make(map[time.Time]float64, len(a.sum))
	for day, s := range a.sum {
		out[day] = s / float64(a.count[day])
	}
	return out
}
