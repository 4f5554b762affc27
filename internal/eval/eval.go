// Package eval replays labeled queries through the retriever and measures
// retrieval accuracy (hit@n, Recall@n) and grounding gain.
package eval

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/hyperjump/museai/internal/models"
	"github.com/hyperjump/museai/internal/table"
)

// ErrDataError marks a problem confined to one labeled query. The query is
// skipped and excluded from every aggregate.
var ErrDataError = errors.New("data error")

// Run kinds recorded in the run history.
const (
	KindRetrieval = "retrieval"
	KindGrounding = "grounding"
)

// DefaultK is the retrieval depth used when none is configured.
const DefaultK = 3

// Labeled-query column names.
const (
	ColQueryID            = "query_id"
	ColQuery              = "query"
	ColRelevantArtifactID = "relevant_artifact_id"
)

// Skip records a labeled query excluded from evaluation.
type Skip struct {
	QueryID string `json:"query_id"`
	Reason  string `json:"reason"`
}

func dataErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrDataError}, args...)...)
}

// Retriever is the retrieval surface the evaluators need.
type Retriever interface {
	Retrieve(ctx context.Context, text string, k int) (*models.RetrievalResult, error)
	Item(ctx context.Context, id int64) (*models.Item, error)
}

// ContextRetriever adds by-id context assembly for the grounding evaluator.
type ContextRetriever interface {
	Item(ctx context.Context, id int64) (*models.Item, error)
	BuildContextForArtifactID(ctx context.Context, id int64) (string, error)
}

// TextEmbedder embeds one text; usually an *embedding.CachedEmbedder.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// resolve returns the ground-truth item, or a data error when the id does not
// match exactly one catalog item.
func resolve(ctx context.Context, r interface {
	Item(ctx context.Context, id int64) (*models.Item, error)
}, q models.LabeledQuery) (*models.Item, error) {
	item, err := r.Item(ctx, q.CorrectID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, dataErrorf("ground truth artifact %d not in catalog", q.CorrectID)
	}
	return item, err
}

// LoadLabeledQueries joins the query table with the ground-truth table by
// query id, in query-table order. Rows that cannot be joined are returned as
// skips; a table missing required columns is an error.
func LoadLabeledQueries(queriesPath, groundTruthPath string) ([]models.LabeledQuery, []Skip, error) {
	qt, err := table.Read(queriesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read queries: %w", err)
	}
	if err := qt.RequireColumns(ColQueryID, ColQuery); err != nil {
		return nil, nil, fmt.Errorf("queries %s: %w", queriesPath, err)
	}
	gt, err := table.Read(groundTruthPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read ground truth: %w", err)
	}
	if err := gt.RequireColumns(ColQueryID, ColRelevantArtifactID); err != nil {
		return nil, nil, fmt.Errorf("ground truth %s: %w", groundTruthPath, err)
	}
	return JoinLabeledQueries(qt, gt)
}

// JoinLabeledQueries is LoadLabeledQueries over already loaded tables.
// When a query id has several ground-truth rows, the first one wins.
func JoinLabeledQueries(queries, groundTruth *table.Table) ([]models.LabeledQuery, []Skip, error) {
	truth := make(map[string]string, groundTruth.Len())
	for _, rec := range groundTruth.Records() {
		id := rec.Get(ColQueryID)
		if _, ok := truth[id]; !ok {
			truth[id] = rec.Get(ColRelevantArtifactID)
		}
	}
	var out []models.LabeledQuery
	var skips []Skip
	for _, rec := range queries.Records() {
		id := rec.Get(ColQueryID)
		text := rec.Get(ColQuery)
		if id == "" {
			skips = append(skips, Skip{QueryID: fmt.Sprintf("line %d", rec.Line), Reason: "missing query_id"})
			continue
		}
		if text == "" {
			skips = append(skips, Skip{QueryID: id, Reason: "empty query text"})
			continue
		}
		raw, ok := truth[id]
		if !ok {
			skips = append(skips, Skip{QueryID: id, Reason: "no ground truth row"})
			continue
		}
		correct, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			skips = append(skips, Skip{QueryID: id, Reason: fmt.Sprintf("invalid relevant_artifact_id %q", raw)})
			continue
		}
		out = append(out, models.LabeledQuery{QueryID: id, Text: text, CorrectID: correct})
	}
	return out, skips, nil
}

func zapSkip(s Skip) []zap.Field {
	return []zap.Field{zap.String("query_id", s.QueryID), zap.String("reason", s.Reason)}
}
