// Package models defines core data structures for catalog items, queries, and retrieval results.
package models

import "time"

// Item is one catalog entry. Description is both displayed and embedded.
type Item struct {
	ID          int64  `json:"artifact_id" db:"artifact_id"`
	Title       string `json:"title" db:"title"`
	ShortLabel  string `json:"short_label" db:"short_label"`
	Description string `json:"base_context" db:"base_context"`
	Period      string `json:"period,omitempty" db:"period"`
	Location    string `json:"location,omitempty" db:"location"`
	Material    string `json:"material,omitempty" db:"material"`
}

// SourceText returns the text that is embedded for this item.
// Missing fields contribute empty strings; the separators are always present.
func (it *Item) SourceText() string {
	return it.Title + " - " + it.ShortLabel + " | " + it.Description
}

// EvalRun is the persisted summary of one completed evaluation run.
type EvalRun struct {
	ID         string             `json:"id" db:"id"`
	Kind       string             `json:"kind" db:"kind"`
	K          int                `json:"k,omitempty" db:"k"` // 0 for runs without a retrieval depth
	Total      int                `json:"total" db:"total"`
	Skipped    int                `json:"skipped" db:"skipped"`
	Metrics    map[string]float64 `json:"metrics" db:"metrics"`
	StartedAt  time.Time          `json:"started_at" db:"started_at"`
	FinishedAt time.Time          `json:"finished_at" db:"finished_at"`
}
