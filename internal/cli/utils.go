// Package cli provides output helpers for the museai command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/museai/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRetrievalResults writes ranked hits to w in the given format.
func WriteRetrievalResults(w io.Writer, res *models.RetrievalResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "\nFound %d artifact(s) for %q (k=%d)\n\n", len(res.Hits), res.Query, res.K)
	for _, hit := range res.Hits {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Distance: %.4f\n", hit.Rank, hit.Score)
		fmt.Fprintf(w, "ID: %d\n", hit.ID)
		fmt.Fprintf(w, "Title: %s\n", hit.Title)
		if hit.Period != "" {
			fmt.Fprintf(w, "Period: %s\n", hit.Period)
		}
		fmt.Fprintf(w, "\n%s\n\n", TruncateWords(hit.Description, 40))
	}
	return nil
}

// WriteContext writes a grounding context block.
func WriteContext(w io.Writer, context string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]string{"context": context})
	}
	_, err := fmt.Fprintln(w, context)
	return err
}

// WriteRuns writes evaluation run history, newest first.
func WriteRuns(w io.Writer, runs []*models.EvalRun, format OutputFormat) error {
	if format == OutputJSON {
		if runs == nil {
			runs = []*models.EvalRun{}
		}
		return writeJSON(w, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No evaluation runs recorded.")
		return nil
	}
	for _, run := range runs {
		depth := "k=-"
		if run.K > 0 {
			depth = fmt.Sprintf("k=%d", run.K)
		}
		fmt.Fprintf(w, "%s  %-9s  %-4s  total=%d  skipped=%d  %s\n",
			run.ID, run.Kind, depth, run.Total, run.Skipped,
			run.FinishedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "    %s\n", formatMetrics(run.Metrics))
	}
	return nil
}

func formatMetrics(m map[string]float64) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%.3f", name, m[name])
	}
	return strings.Join(parts, " ")
}

// Status describes the built artifacts and the active configuration.
type Status struct {
	Items          int           `json:"items"`
	IndexSize      int           `json:"index_size"`
	Dimensions     int           `json:"dimensions"`
	DiskUsageBytes *int64        `json:"disk_usage_bytes,omitempty"`
	Runs           int           `json:"runs"`
	Config         *StatusConfig `json:"config,omitempty"`
}

// StatusConfig is the configuration subset reported by status.
type StatusConfig struct {
	EmbeddingProvider string `json:"embedding_provider"`
	EmbeddingModel    string `json:"embedding_model,omitempty"`
	CatalogPath       string `json:"catalog_path"`
	IndexPath         string `json:"index_path"`
	MetadataPath      string `json:"metadata_path"`
	DefaultK          int    `json:"default_k"`
}

// WriteStatus writes status to w in the given format.
func WriteStatus(w io.Writer, s *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "items:              %d   # catalog rows in the metadata artifact\n", s.Items)
	fmt.Fprintf(w, "index_size:         %d   # vectors in the flat index\n", s.IndexSize)
	fmt.Fprintf(w, "dimensions:         %d\n", s.Dimensions)
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # index + metadata on disk\n", *s.DiskUsageBytes)
	}
	fmt.Fprintf(w, "eval_runs:          %d\n", s.Runs)
	if s.Config != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "embedding_provider: %s\n", s.Config.EmbeddingProvider)
		if s.Config.EmbeddingModel != "" {
			fmt.Fprintf(w, "embedding_model:    %s\n", s.Config.EmbeddingModel)
		}
		fmt.Fprintf(w, "default_k:          %d\n", s.Config.DefaultK)
		fmt.Fprintf(w, "catalog_path:       %s\n", s.Config.CatalogPath)
		fmt.Fprintf(w, "index_path:         %s\n", s.Config.IndexPath)
		fmt.Fprintf(w, "metadata_path:      %s\n", s.Config.MetadataPath)
	}
	return nil
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
