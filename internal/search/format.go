package search

import (
	"fmt"
	"strings"

	"github.com/hyperjump/museai/internal/models"
)

// NoContext is returned in place of a context when no item matches.
const NoContext = "No matching artifacts found in the museum knowledge base."

// ContextSeparator separates item blocks in a query context.
const ContextSeparator = "\n---\n"

const unknown = "Unknown"

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}

// FormatQueryContext renders items as blocks joined by ContextSeparator.
func FormatQueryContext(items []*models.Item) string {
	blocks := make([]string, len(items))
	for i, it := range items {
		blocks[i] = fmt.Sprintf("Artifact: %s (ID: %d, Period: %s)\nLocation: %s\nMaterial: %s\nDescription: %s\n",
			it.Title, it.ID, orUnknown(it.Period), orUnknown(it.Location), orUnknown(it.Material), it.Description)
	}
	return strings.Join(blocks, ContextSeparator)
}

// FormatArtifactContext renders the context block for a single item.
func FormatArtifactContext(it *models.Item) string {
	return fmt.Sprintf("Artifact: %s (ID: %d)\nPeriod: %s\nLocation: %s\nMaterial: %s\nDescription: %s\n",
		it.Title, it.ID, orUnknown(it.Period), orUnknown(it.Location), orUnknown(it.Material), it.Description)
}
