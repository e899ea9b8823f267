package dataset

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/montanaflynn/stats"
)

// UnknownToken fills string cells of a column that has no mode.
const UnknownToken = "Unknown"

// Clean returns a new dataset with exact-duplicate rows removed (first occurrence kept) and
// missing cells imputed: numeric columns with the median, string and datetime columns with the
// mode. Duplicates are detected before imputation, so two missing cells compare equal.
func Clean(d *Dataset) *Dataset {
	keep := distinctRows(d)

	out := &Dataset{Columns: make([]*Column, len(d.Columns)), rows: len(keep)}
	for j, col := range d.Columns {
		c := selectRows(col, keep)
		impute(c)
		out.Columns[j] = c
	}
	return out
}

func distinctRows(d *Dataset) []int {
	seen := make(map[string]struct{}, d.rows)
	keep := make([]int, 0, d.rows)
	var b strings.Builder
	for i := 0; i < d.rows; i++ {
		b.Reset()
		for _, c := range d.Columns {
			if c.Missing[i] {
				b.WriteString("\x00")
			} else {
				b.WriteString(c.Value(i))
			}
			b.WriteByte(0x1f)
		}
		key := b.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keep = append(keep, i)
	}
	return keep
}

func selectRows(col *Column, rows []int) *Column {
	c := &Column{Name: col.Name, Kind: col.Kind, Missing: make([]bool, len(rows))}
	switch col.Kind {
	case KindNumeric:
		c.Numbers = make([]float64, len(rows))
	case KindDatetime:
		c.Times = make([]time.Time, len(rows))
	default:
		c.Strings = make([]string, len(rows))
	}
	for k, i := range rows {
		c.Missing[k] = col.Missing[i]
		switch col.Kind {
		case KindNumeric:
			c.Numbers[k] = col.Numbers[i]
		case KindDatetime:
			c.Times[k] = col.Times[i]
		default:
			c.Strings[k] = col.Strings[i]
		}
	}
	return c
}

func impute(c *Column) {
	if c.MissingCount() == 0 {
		return
	}

	switch c.Kind {
	case KindNumeric:
		present := make([]float64, 0, c.Len())
		for i, v := range c.Numbers {
			if !c.Missing[i] {
				present = append(present, v)
			}
		}
		median, err := stats.Median(present)
		if err != nil {
			return
		}
		for i := range c.Numbers {
			if c.Missing[i] {
				c.Numbers[i] = median
				c.Missing[i] = false
			}
		}

	case KindDatetime:
		mode, ok := modeOf(c)
		if !ok {
			return
		}
		t, _ := time.Parse("2006-01-02T15:04:05", mode)
		for i := range c.Times {
			if c.Missing[i] {
				c.Times[i] = t
				c.Missing[i] = false
			}
		}

	default:
		mode, ok := modeOf(c)
		if !ok {
			mode = UnknownToken
		}
		for i := range c.Strings {
			if c.Missing[i] {
				c.Strings[i] = mode
				c.Missing[i] = false
			}
		}
	}
}

// modeOf returns the most frequent rendered value. Ties resolve to the smallest value.
func modeOf(c *Column) (string, bool) {
	counts := ValueCounts(c)
	if len(counts) == 0 {
		return "", false
	}
	return counts[0].Value, true
}

// ValueCount is a rendered cell value and its number of occurrences.
type ValueCount struct {
	Value string
	Count int
}

// ValueCounts counts non-missing values, most frequent first. Equal counts are ordered by value
// (numerically for numeric columns, lexically otherwise).
func ValueCounts(c *Column) []ValueCount {
	idx := make(map[string]int)
	var out []ValueCount
	for i := 0; i < c.Len(); i++ {
		if c.Missing[i] {
			continue
		}
		v := c.Value(i)
		if k, ok := idx[v]; ok {
			out[k].Count++
			continue
		}
		idx[v] = len(out)
		out = append(out, ValueCount{Value: v, Count: 1})
	}

	less := func(a, b string) bool { return a < b }
	if c.Kind == KindNumeric {
		less = func(a, b string) bool {
			fa, _ := strconv.ParseFloat(a, 64)
			fb, _ := strconv.ParseFloat(b, 64)
			return fa < fb
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return less(out[i].Value, out[j].Value)
	})
	return out
}
