package eval

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperjump/museai/internal/table"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatBool01(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// RetrievalLogTable has one row per query and rank.
func RetrievalLogTable(rep *RetrievalReport) *table.Table {
	t := table.New("query_id", "query", "rank", "retrieved_artifact_id", "score")
	for _, r := range rep.Records {
		for i, id := range r.Retrieved {
			t.Append(r.QueryID, r.Query, strconv.Itoa(i+1), strconv.FormatInt(id, 10), formatFloat(r.Scores[i]))
		}
	}
	return t
}

// RetrievalEvalTable has one row per evaluated query.
func RetrievalEvalTable(rep *RetrievalReport) *table.Table {
	header := []string{"query_id", "query", "retrieved_artifacts", "correct_artifact", "correct_found",
		"position_of_correct", "hit@1", "hit@2", "hit@3"}
	extraK := !fixedCutoff(rep.K)
	if extraK {
		header = append(header, fmt.Sprintf("hit@%d", rep.K))
	}
	t := table.New(header...)
	for _, r := range rep.Records {
		found := "No"
		if r.Found {
			found = "Yes"
		}
		pos := ""
		if r.Position != nil {
			pos = strconv.Itoa(*r.Position)
		}
		row := []string{r.QueryID, r.Query, formatIDs(r.Retrieved), strconv.FormatInt(r.CorrectID, 10), found, pos,
			formatBool01(r.Hit1), formatBool01(r.Hit2), formatBool01(r.Hit3)}
		if extraK {
			row = append(row, formatBool01(r.HitK))
		}
		t.Append(row...)
	}
	return t
}

// fixedCutoff reports whether k is one of the always-reported cutoffs 1, 2, 3.
func fixedCutoff(k int) bool {
	return k == 1 || k == 2 || k == 3
}

// GroundingEvalTable has one row per evaluated query.
func GroundingEvalTable(rep *GroundingReport) *table.Table {
	t := table.New("query_id", "query", "correct_artifact", "answer_no_rag", "answer_with_rag",
		"sim_no_rag", "sim_with_rag", "hallucination_no_rag", "hallucination_with_rag",
		"grounding_gain", "grounding_improved")
	for _, r := range rep.Records {
		t.Append(r.QueryID, r.Query, strconv.FormatInt(r.CorrectID, 10), r.AnswerNoRAG, r.AnswerWithRAG,
			formatFloat(r.SimNoRAG), formatFloat(r.SimWithRAG),
			formatFloat(r.HallucinationNoRAG), formatFloat(r.HallucinationWithRAG),
			formatFloat(r.Gain), formatBool01(r.Improved))
	}
	return t
}

// WriteRetrievalReport writes the retrieval log and evaluation tables. Call it
// only with a completed report; each file is replaced atomically.
func WriteRetrievalReport(rep *RetrievalReport, logPath, evalPath string) error {
	if logPath != "" {
		if err := table.Write(logPath, RetrievalLogTable(rep)); err != nil {
			return fmt.Errorf("write retrieval log: %w", err)
		}
	}
	if evalPath != "" {
		if err := table.Write(evalPath, RetrievalEvalTable(rep)); err != nil {
			return fmt.Errorf("write retrieval evaluation: %w", err)
		}
	}
	return nil
}

// WriteGroundingReport writes the grounding evaluation table.
func WriteGroundingReport(rep *GroundingReport, path string) error {
	if path == "" {
		return nil
	}
	if err := table.Write(path, GroundingEvalTable(rep)); err != nil {
		return fmt.Errorf("write grounding evaluation: %w", err)
	}
	return nil
}

// PrintRetrievalSummary prints the recall summary.
func PrintRetrievalSummary(w io.Writer, s RetrievalSummary, skipped int) {
	fmt.Fprintln(w, "Retrieval Evaluation Summary")
	fmt.Fprintf(w, "Total Queries: %d\n", s.TotalQueries)
	if skipped > 0 {
		fmt.Fprintf(w, "Skipped: %d\n", skipped)
	}
	fmt.Fprintf(w, "Recall@1: %.3f\n", s.Recall1)
	fmt.Fprintf(w, "Recall@2: %.3f\n", s.Recall2)
	fmt.Fprintf(w, "Recall@3: %.3f\n", s.Recall3)
	if !fixedCutoff(s.K) {
		fmt.Fprintf(w, "Recall@%d: %.3f\n", s.K, s.RecallK)
	}
}

// PrintGroundingSummary prints the improvement summary.
func PrintGroundingSummary(w io.Writer, s GroundingSummary, skipped int) {
	fmt.Fprintln(w, "Grounding Evaluation Summary")
	fmt.Fprintf(w, "Total Queries: %d\n", s.TotalQueries)
	if skipped > 0 {
		fmt.Fprintf(w, "Skipped: %d\n", skipped)
	}
	fmt.Fprintf(w, "Improved: %d (%.3f)\n", s.Improved, s.ImprovedFraction)
	fmt.Fprintf(w, "Mean similarity without context: %.3f\n", s.MeanSimNoRAG)
	fmt.Fprintf(w, "Mean similarity with context: %.3f\n", s.MeanSimWithRAG)
	fmt.Fprintf(w, "Mean gain: %.3f\n", s.MeanGain)
}

// SortedMetricNames returns metric keys in a stable display order.
func SortedMetricNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
