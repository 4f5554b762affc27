package models

import "fmt"

// Query is a free-text retrieval request for the K nearest items.
type Query struct {
	Text string `json:"query"`
	K    int    `json:"k"`
}

// Validate returns an error if the query text is empty or K is below 1.
func (q *Query) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidQuery)
	}
	if q.K < 1 {
		return fmt.Errorf("%w: k must be at least 1, got %d", ErrInvalidQuery, q.K)
	}
	return nil
}

// LabeledQuery pairs a query with the item that correctly answers it.
type LabeledQuery struct {
	QueryID   string `json:"query_id"`
	Text      string `json:"query"`
	CorrectID int64  `json:"relevant_artifact_id"`
}
