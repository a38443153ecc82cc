package models

// DailyStats is a per-day count used by the admin charts.
type DailyStats struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}
