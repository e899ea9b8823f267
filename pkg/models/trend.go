package models

import "time"

// ExternalTrend is one read-only observation of a named market trend.
type ExternalTrend struct {
	TrendName   string    `db:"trend_name"   json:"trend_name"`
	Score       float64   `db:"score"        json:"score"`
	CollectedAt time.Time `db:"collected_at" json:"collected_at"`
}
