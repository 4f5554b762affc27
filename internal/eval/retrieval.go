package eval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/museai/internal/models"
)

// RetrievalRecord is the evaluation of one labeled query.
type RetrievalRecord struct {
	QueryID   string    `json:"query_id"`
	Query     string    `json:"query"`
	Retrieved []int64   `json:"retrieved_artifacts"`
	Scores    []float64 `json:"scores"`
	CorrectID int64     `json:"correct_artifact"`
	Found     bool      `json:"correct_found"`
	// Position is the 1-based rank of the correct item, nil when not retrieved.
	Position *int `json:"position_of_correct"`
	Hit1     bool `json:"hit@1"`
	Hit2     bool `json:"hit@2"`
	Hit3     bool `json:"hit@3"`
	HitK     bool `json:"hit@k"`
}

// HitAt reports whether the correct item ranked within the top n.
func (r *RetrievalRecord) HitAt(n int) bool {
	return r.Position != nil && *r.Position <= n
}

// RetrievalSummary aggregates evaluated records; skipped queries are excluded.
type RetrievalSummary struct {
	TotalQueries int     `json:"total_queries"`
	K            int     `json:"k"`
	Recall1      float64 `json:"recall@1"`
	Recall2      float64 `json:"recall@2"`
	Recall3      float64 `json:"recall@3"`
	RecallK      float64 `json:"recall@k"`
}

// Metrics returns the summary keyed by display name.
func (s RetrievalSummary) Metrics() map[string]float64 {
	m := map[string]float64{
		"Total Queries": float64(s.TotalQueries),
		"Recall@1":      s.Recall1,
		"Recall@2":      s.Recall2,
		"Recall@3":      s.Recall3,
	}
	if !fixedCutoff(s.K) {
		m[fmt.Sprintf("Recall@%d", s.K)] = s.RecallK
	}
	return m
}

// RetrievalReport is the result of one retrieval evaluation run.
type RetrievalReport struct {
	RunID      string            `json:"run_id"`
	K          int               `json:"k"`
	Records    []RetrievalRecord `json:"records"`
	Skipped    []Skip            `json:"skipped"`
	Summary    RetrievalSummary  `json:"summary"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// EvalRun converts the report to a run history entry.
func (r *RetrievalReport) EvalRun() *models.EvalRun {
	return &models.EvalRun{
		ID:         r.RunID,
		Kind:       KindRetrieval,
		K:          r.K,
		Total:      r.Summary.TotalQueries,
		Skipped:    len(r.Skipped),
		Metrics:    r.Summary.Metrics(),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

// RetrievalEvaluator computes hit@n for labeled queries.
type RetrievalEvaluator struct {
	retriever Retriever
	k         int
	logger    *zap.Logger
}

// RetrievalOption configures a RetrievalEvaluator.
type RetrievalOption func(*RetrievalEvaluator)

// WithK sets the retrieval depth.
func WithK(k int) RetrievalOption {
	return func(e *RetrievalEvaluator) { e.k = k }
}

// WithRetrievalLogger sets a logger for skips and progress.
func WithRetrievalLogger(l *zap.Logger) RetrievalOption {
	return func(e *RetrievalEvaluator) { e.logger = l }
}

// NewRetrievalEvaluator creates an evaluator with k = DefaultK unless overridden.
func NewRetrievalEvaluator(retriever Retriever, opts ...RetrievalOption) *RetrievalEvaluator {
	e := &RetrievalEvaluator{retriever: retriever, k: DefaultK, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.k < 1 {
		e.k = DefaultK
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Run evaluates queries sequentially in input order. Data errors skip the
// affected query; any other error aborts the run.
func (e *RetrievalEvaluator) Run(ctx context.Context, queries []models.LabeledQuery) (*RetrievalReport, error) {
	rep := &RetrievalReport{RunID: uuid.NewString(), K: e.k, StartedAt: time.Now()}
	for _, q := range queries {
		rec, err := e.evaluate(ctx, q)
		if errors.Is(err, ErrDataError) {
			e.logger.Warn("skipping labeled query", zap.String("query_id", q.QueryID), zap.Error(err))
			rep.Skipped = append(rep.Skipped, Skip{QueryID: q.QueryID, Reason: err.Error()})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.QueryID, err)
		}
		rep.Records = append(rep.Records, *rec)
	}
	rep.Summary = SummarizeRetrieval(rep.Records, e.k)
	rep.FinishedAt = time.Now()
	return rep, nil
}

func (e *RetrievalEvaluator) evaluate(ctx context.Context, q models.LabeledQuery) (*RetrievalRecord, error) {
	if _, err := resolve(ctx, e.retriever, q); err != nil {
		return nil, err
	}
	res, err := e.retriever.Retrieve(ctx, q.Text, e.k)
	if err != nil {
		return nil, err
	}
	rec, err := NewRetrievalRecord(q, res, e.k)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("evaluated query", zap.String("query_id", q.QueryID), zap.Int64s("retrieved", rec.Retrieved), zap.Bool("found", rec.Found))
	return rec, nil
}

// NewRetrievalRecord grades one retrieval result against q. A repeated id in
// the ranked list is a data error.
func NewRetrievalRecord(q models.LabeledQuery, res *models.RetrievalResult, k int) (*RetrievalRecord, error) {
	rec := &RetrievalRecord{
		QueryID:   q.QueryID,
		Query:     q.Text,
		CorrectID: q.CorrectID,
		Retrieved: make([]int64, 0, len(res.Hits)),
		Scores:    make([]float64, 0, len(res.Hits)),
	}
	seen := make(map[int64]bool, len(res.Hits))
	for i, h := range res.Hits {
		if seen[h.ID] {
			return nil, dataErrorf("artifact %d retrieved twice", h.ID)
		}
		seen[h.ID] = true
		rec.Retrieved = append(rec.Retrieved, h.ID)
		rec.Scores = append(rec.Scores, h.Score)
		if h.ID == q.CorrectID && rec.Position == nil {
			pos := i + 1
			rec.Position = &pos
		}
	}
	rec.Found = rec.Position != nil
	rec.Hit1 = rec.HitAt(1)
	rec.Hit2 = rec.HitAt(2)
	rec.Hit3 = rec.HitAt(3)
	rec.HitK = rec.HitAt(k)
	return rec, nil
}

// SummarizeRetrieval computes Recall@n = mean(hit@n). With no records every
// recall is 0.
func SummarizeRetrieval(records []RetrievalRecord, k int) RetrievalSummary {
	s := RetrievalSummary{TotalQueries: len(records), K: k}
	if len(records) == 0 {
		return s
	}
	var h1, h2, h3, hk int
	for i := range records {
		h1 += b2i(records[i].Hit1)
		h2 += b2i(records[i].Hit2)
		h3 += b2i(records[i].Hit3)
		hk += b2i(records[i].HitK)
	}
	n := float64(len(records))
	s.Recall1 = float64(h1) / n
	s.Recall2 = float64(h2) / n
	s.Recall3 = float64(h3) / n
	s.RecallK = float64(hk) / n
	return s
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
