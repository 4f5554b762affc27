package models

// ScoredItem is a single retrieval hit. Score is the squared Euclidean distance
// between the query embedding and the item embedding (lower is more similar).
type ScoredItem struct {
	Item
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// RetrievalResult is the ranked hit list for one query, ascending by Score.
type RetrievalResult struct {
	Query string       `json:"query"`
	K     int          `json:"k"`
	Hits  []ScoredItem `json:"results"`
}

// IDs returns the hit item ids in rank order.
func (r *RetrievalResult) IDs() []int64 {
	ids := make([]int64, len(r.Hits))
	for i, h := range r.Hits {
		ids[i] = h.ID
	}
	return ids
}
