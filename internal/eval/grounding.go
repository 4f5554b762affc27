package eval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/museai/internal/generate"
	"github.com/hyperjump/museai/internal/models"
	"github.com/hyperjump/museai/internal/vector"
)

// GroundingRecord compares an ungrounded and a grounded answer to the
// ground-truth description of one labeled query.
type GroundingRecord struct {
	QueryID              string  `json:"query_id"`
	Query                string  `json:"query"`
	CorrectID            int64   `json:"correct_artifact"`
	AnswerNoRAG          string  `json:"answer_no_rag"`
	AnswerWithRAG        string  `json:"answer_with_rag"`
	SimNoRAG             float64 `json:"sim_no_rag"`
	SimWithRAG           float64 `json:"sim_with_rag"`
	HallucinationNoRAG   float64 `json:"hallucination_no_rag"`
	HallucinationWithRAG float64 `json:"hallucination_with_rag"`
	Gain                 float64 `json:"grounding_gain"`
	Improved             bool    `json:"grounding_improved"`
}

// NewGroundingRecord derives the proxies and gain from the two similarities.
// A zero gain is not an improvement.
func NewGroundingRecord(q models.LabeledQuery, simNoRAG, simWithRAG float64) GroundingRecord {
	gain := simWithRAG - simNoRAG
	return GroundingRecord{
		QueryID:              q.QueryID,
		Query:                q.Text,
		CorrectID:            q.CorrectID,
		SimNoRAG:             simNoRAG,
		SimWithRAG:           simWithRAG,
		HallucinationNoRAG:   1 - simNoRAG,
		HallucinationWithRAG: 1 - simWithRAG,
		Gain:                 gain,
		Improved:             gain > 0,
	}
}

// GroundingSummary aggregates evaluated records.
type GroundingSummary struct {
	TotalQueries     int     `json:"total_queries"`
	Improved         int     `json:"improved"`
	ImprovedFraction float64 `json:"improved_fraction"`
	MeanSimNoRAG     float64 `json:"mean_sim_no_rag"`
	MeanSimWithRAG   float64 `json:"mean_sim_with_rag"`
	MeanGain         float64 `json:"mean_gain"`
}

// Metrics returns the summary keyed by display name.
func (s GroundingSummary) Metrics() map[string]float64 {
	return map[string]float64{
		"Total Queries":     float64(s.TotalQueries),
		"Improved":          float64(s.Improved),
		"Improved Fraction": s.ImprovedFraction,
		"Mean Sim No RAG":   s.MeanSimNoRAG,
		"Mean Sim With RAG": s.MeanSimWithRAG,
		"Mean Gain":         s.MeanGain,
	}
}

// SummarizeGrounding computes the improved fraction and means. With no
// records every value is 0.
func SummarizeGrounding(records []GroundingRecord) GroundingSummary {
	s := GroundingSummary{TotalQueries: len(records)}
	if len(records) == 0 {
		return s
	}
	var noRAG, withRAG, gain float64
	for _, r := range records {
		if r.Improved {
			s.Improved++
		}
		noRAG += r.SimNoRAG
		withRAG += r.SimWithRAG
		gain += r.Gain
	}
	n := float64(len(records))
	s.ImprovedFraction = float64(s.Improved) / n
	s.MeanSimNoRAG = noRAG / n
	s.MeanSimWithRAG = withRAG / n
	s.MeanGain = gain / n
	return s
}

// GroundingReport is the result of one grounding evaluation run.
type GroundingReport struct {
	RunID      string            `json:"run_id"`
	Records    []GroundingRecord `json:"records"`
	Skipped    []Skip            `json:"skipped"`
	Summary    GroundingSummary  `json:"summary"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// EvalRun converts the report to a run history entry. Grounding looks items up
// by id, so the entry has no retrieval depth and K is 0.
func (r *GroundingReport) EvalRun() *models.EvalRun {
	return &models.EvalRun{
		ID:         r.RunID,
		Kind:       KindGrounding,
		Total:      r.Summary.TotalQueries,
		Skipped:    len(r.Skipped),
		Metrics:    r.Summary.Metrics(),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

// GroundingEvaluator measures how much by-id context improves answers.
type GroundingEvaluator struct {
	retriever ContextRetriever
	generator generate.Generator
	embedder  TextEmbedder
	language  string
	logger    *zap.Logger
}

// GroundingOption configures a GroundingEvaluator.
type GroundingOption func(*GroundingEvaluator)

// WithLanguage sets the answer language passed to the generator.
func WithLanguage(lang string) GroundingOption {
	return func(e *GroundingEvaluator) { e.language = lang }
}

// WithGroundingLogger sets a logger for skips and progress.
func WithGroundingLogger(l *zap.Logger) GroundingOption {
	return func(e *GroundingEvaluator) { e.logger = l }
}

// NewGroundingEvaluator creates a grounding evaluator. embedder should be the
// embedding cache so repeated ground-truth texts are embedded once.
func NewGroundingEvaluator(retriever ContextRetriever, generator generate.Generator, embedder TextEmbedder, opts ...GroundingOption) *GroundingEvaluator {
	e := &GroundingEvaluator{
		retriever: retriever,
		generator: generator,
		embedder:  embedder,
		language:  generate.DefaultLanguage,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Run evaluates queries sequentially in input order. Unresolvable ground
// truth skips the query; generation, embedding, and similarity errors abort.
func (e *GroundingEvaluator) Run(ctx context.Context, queries []models.LabeledQuery) (*GroundingReport, error) {
	rep := &GroundingReport{RunID: uuid.NewString(), StartedAt: time.Now()}
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
	rep.Summary = SummarizeGrounding(rep.Records)
	rep.FinishedAt = time.Now()
	return rep, nil
}

func (e *GroundingEvaluator) evaluate(ctx context.Context, q models.LabeledQuery) (*GroundingRecord, error) {
	item, err := resolve(ctx, e.retriever, q)
	if err != nil {
		return nil, err
	}
	truth := item.Description

	noRAG, err := e.generator.GenerateAnswer(ctx, generate.AnswerRequest{Query: q.Text, Language: e.language})
	if err != nil {
		return nil, fmt.Errorf("generate ungrounded answer: %w", err)
	}
	rag, err := e.retriever.BuildContextForArtifactID(ctx, q.CorrectID)
	if err != nil {
		return nil, fmt.Errorf("build context for artifact %d: %w", q.CorrectID, err)
	}
	withRAG, err := e.generator.GenerateAnswer(ctx, generate.AnswerRequest{Query: q.Text, Context: rag, Language: e.language})
	if err != nil {
		return nil, fmt.Errorf("generate grounded answer: %w", err)
	}

	vNoRAG, err := e.embedder.Embed(ctx, noRAG)
	if err != nil {
		return nil, err
	}
	vWithRAG, err := e.embedder.Embed(ctx, withRAG)
	if err != nil {
		return nil, err
	}
	vTruth, err := e.embedder.Embed(ctx, truth)
	if err != nil {
		return nil, err
	}

	simNoRAG, err := vector.CosineSimilarity(vNoRAG, vTruth)
	if err != nil {
		return nil, fmt.Errorf("similarity of ungrounded answer to artifact %d: %w", q.CorrectID, err)
	}
	simWithRAG, err := vector.CosineSimilarity(vWithRAG, vTruth)
	if err != nil {
		return nil, fmt.Errorf("similarity of grounded answer to artifact %d: %w", q.CorrectID, err)
	}
	rec := NewGroundingRecord(q, simNoRAG, simWithRAG)
	rec.AnswerNoRAG = noRAG
	rec.AnswerWithRAG = withRAG
	e.logger.Debug("evaluated grounding", zap.String("query_id", q.QueryID), zap.Float64("gain", rec.Gain))
	return &rec, nil
}
