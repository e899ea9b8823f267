// Package dataset holds the typed, columnar in-memory table that flows through the analysis
// stages, plus the cleaner that deduplicates rows and imputes missing cells.
package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the storage type inferred for a column.
type Kind int

const (
	KindString Kind = iota
	KindNumeric
	KindDatetime
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindDatetime:
		return "datetime"
	default:
		return "string"
	}
}

// Column is one typed column. Exactly one of Strings, Numbers or Times is populated,
// according to Kind. Missing[i] reports whether cell i is absent.
type Column struct {
	Name    string
	Kind    Kind
	Strings []string
	Numbers []float64
	Times   []time.Time
	Missing []bool
}

// Len returns the number of cells in the column.
func (c *Column) Len() int {
	return len(c.Missing)
}

// Value renders cell i the way it is reported in profiles and value counts.
func (c *Column) Value(i int) string {
	if c.Missing[i] {
		return ""
	}
	switch c.Kind {
	case KindNumeric:
		return strconv.FormatFloat(c.Numbers[i], 'f', -1, 64)
	case KindDatetime:
		return FormatTime(c.Times[i])
	default:
		return c.Strings[i]
	}
}

// MissingCount returns the number of absent cells.
func (c *Column) MissingCount() int {
	n := 0
	for _, m := range c.Missing {
		if m {
			n++
		}
	}
	return n
}

// Dataset is an ordered set of equally long columns.
type Dataset struct {
	Columns []*Column
	rows    int
}

// Rows returns the number of rows.
func (d *Dataset) Rows() int {
	return d.rows
}

// Headers returns the column names in source order.
func (d *Dataset) Headers() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// Column returns the named column or nil.
func (d *Dataset) Column(name string) *Column {
	for _, c := range d.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// FromRecords builds a dataset from a header row and raw string records. Short records are
// padded with missing cells and long ones are cut to the header width. Each column's Kind is
// inferred from its non-missing cells: numeric if all parse as numbers, datetime if all parse
// as timestamps, string otherwise.
func FromRecords(headers []string, records [][]string) *Dataset {
	names := uniqueHeaders(headers)
	d := &Dataset{Columns: make([]*Column, len(names)), rows: len(records)}

	for j, name := range names {
		raw := make([]string, len(records))
		for i, rec := range records {
			if j < len(rec) {
				raw[i] = rec[j]
			}
		}
		d.Columns[j] = inferColumn(name, raw)
	}
	return d
}

func inferColumn(name string, raw []string) *Column {
	n := len(raw)
	missing := make([]bool, n)
	present := 0
	for i, v := range raw {
		missing[i] = IsMissing(v)
		if !missing[i] {
			present++
		}
	}

	if present > 0 {
		if nums, ok := parseAll(raw, missing, parseNumber); ok {
			return &Column{Name: name, Kind: KindNumeric, Numbers: nums, Missing: missing}
		}
		if times, ok := parseAll(raw, missing, ParseTime); ok {
			return &Column{Name: name, Kind: KindDatetime, Times: times, Missing: missing}
		}
	}

	strs := make([]string, n)
	for i, v := range raw {
		if !missing[i] {
			strs[i] = strings.TrimSpace(v)
		}
	}
	return &Column{Name: name, Kind: KindString, Strings: strs, Missing: missing}
}

func parseAll[T any](raw []string, missing []bool, parse func(string) (T, bool)) ([]T, bool) {
	out := make([]T, len(raw))
	for i, v := range raw {
		if missing[i] {
			continue
		}
		parsed, ok := parse(v)
		if !ok {
			return nil, false
		}
		out[i] = parsed
	}
	return out, true
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// uniqueHeaders fills blank names and suffixes repeats so every column is addressable.
func uniqueHeaders(headers []string) []string {
	seen := make(map[string]bool, len(headers))
	out := make([]string, len(headers))
	for i, h := range headers {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if seen[name] {
			for k := 1; ; k++ {
				candidate := fmt.Sprintf("%s.%d", name, k)
				if !seen[candidate] {
					name = candidate
					break
				}
			}
		}
		seen[name] = true
		out[i] = name
	}
	return out
}
