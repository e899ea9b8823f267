package models

// ColumnType is the category a column is classified into by the profiler.
type ColumnType string

const (
	ColumnNumerical   ColumnType = "numerical"
	ColumnCategorical ColumnType = "categorical"
	ColumnText        ColumnType = "text"
	ColumnDatetime    ColumnType = "datetime"
	ColumnError       ColumnType = "error"
)

// ColumnProfile is the per-column summary. Only the fields for the column's Type are set.
type ColumnProfile struct {
	Type ColumnType `json:"type"`

	// numerical
	Mean         *float64 `json:"mean,omitempty"`
	Median       *float64 `json:"median,omitempty"`
	StdDev       *float64 `json:"std,omitempty"`
	Min          *float64 `json:"min,omitempty"`
	Max          *float64 `json:"max,omitempty"`
	Percentile25 *float64 `json:"percentile_25,omitempty"`
	Percentile75 *float64 `json:"percentile_75,omitempty"`

	// categorical and text
	UniqueCount *int         `json:"unique_count,omitempty"`
	Mode        *string      `json:"mode,omitempty"`
	TopValues   []ValueCount `json:"top_values,omitempty"`

	// datetime
	MinDate *string `json:"min_date,omitempty"`
	MaxDate *string `json:"max_date,omitempty"`

	Error string `json:"error,omitempty"`
}

// ValueCount is one row of a categorical frequency table.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}
