package report

import (
	"encoding/json"
	"fmt"

	"github.com/procsight/procsight/analyzer"
	"github.com/procsight/procsight/comments"
)

// JSONFormatter renders the full report as an indented JSON document with a
// metadata header.
type JSONFormatter struct {
	version string
}

// NewJSONFormatter creates a JSONFormatter.
func NewJSONFormatter(version string) *JSONFormatter {
	return &JSONFormatter{version: version}
}

type jsonDocument struct {
	Metadata        Metadata                `json:"metadata"`
	Summary         Summary                 `json:"summary"`
	Files           []analyzer.FileMetrics  `json:"files"`
	ModuleInventory *comments.Inventory     `json:"module_inventory,omitempty"`
}

// Format renders the report.
func (f *JSONFormatter) Format(r *analyzer.AnalysisReport) (string, error) {
	doc := jsonDocument{
		Metadata:        NewMetadata(f.version),
		Summary:         Summarize(r),
		Files:           r.Files,
		ModuleInventory: r.ModuleInventory,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(data), nil
}
