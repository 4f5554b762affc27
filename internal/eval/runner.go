package eval

import (
	"context"
	"fmt"

	"github.com/hyperjump/museai/internal/storage"
)

// Job names the input and output tables of an evaluation run.
type Job struct {
	QueriesPath     string
	GroundTruthPath string
	// Output tables; empty paths are not written.
	RetrievalLogPath  string
	RetrievalEvalPath string
	GroundingEvalPath string
}

// RunRetrieval loads the labeled queries, evaluates them, and only then
// writes the outputs and records the run. A failed run writes nothing.
func RunRetrieval(ctx context.Context, ev *RetrievalEvaluator, job Job, runs storage.RunStore) (*RetrievalReport, error) {
	queries, skips, err := LoadLabeledQueries(job.QueriesPath, job.GroundTruthPath)
	if err != nil {
		return nil, err
	}
	for _, s := range skips {
		ev.logger.Warn("skipping labeled query", zapSkip(s)...)
	}
	rep, err := ev.Run(ctx, queries)
	if err != nil {
		return nil, err
	}
	rep.Skipped = append(skips, rep.Skipped...)
	if err := WriteRetrievalReport(rep, job.RetrievalLogPath, job.RetrievalEvalPath); err != nil {
		return nil, err
	}
	if runs != nil {
		if err := runs.CreateRun(ctx, rep.EvalRun()); err != nil {
			return rep, fmt.Errorf("record run: %w", err)
		}
	}
	return rep, nil
}

// RunGrounding is RunRetrieval for the grounding evaluator.
func RunGrounding(ctx context.Context, ev *GroundingEvaluator, job Job, runs storage.RunStore) (*GroundingReport, error) {
	queries, skips, err := LoadLabeledQueries(job.QueriesPath, job.GroundTruthPath)
	if err != nil {
		return nil, err
	}
	for _, s := range skips {
		ev.logger.Warn("skipping labeled query", zapSkip(s)...)
	}
	rep, err := ev.Run(ctx, queries)
	if err != nil {
		return nil, err
	}
	rep.Skipped = append(skips, rep.Skipped...)
	if err := WriteGroundingReport(rep, job.GroundingEvalPath); err != nil {
		return nil, err
	}
	if runs != nil {
		if err := runs.CreateRun(ctx, rep.EvalRun()); err != nil {
			return rep, fmt.Errorf("record run: %w", err)
		}
	}
	return rep, nil
}
