package search

import (
	"strings"

	"github.com/hyperjump/museai/internal/models"
)

// ProcessQuery trims the query text and validates it.
func ProcessQuery(query *models.Query) error {
	query.Text = strings.TrimSpace(query.Text)
	return query.Validate()
}
