package report

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/procsight/procsight/analyzer"
)

// CSVFormatter renders one row per function for spreadsheet import.
type CSVFormatter struct{}

// NewCSVFormatter creates a CSVFormatter.
func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{}
}

var csvHeader = []string{
	"file", "function", "start_line", "end_line", "lines",
	"cyclomatic", "cognitive", "sql_blocks", "params", "return_type",
	"halstead_volume", "halstead_difficulty", "halstead_bugs",
}

// Format renders the report.
func (f *CSVFormatter) Format(r *analyzer.AnalysisReport) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}

	for i := range r.Files {
		for _, fn := range r.Files[i].Functions {
			volume, difficulty, bugs := "", "", ""
			if fn.Halstead != nil {
				volume = strconv.FormatFloat(fn.Halstead.Volume, 'f', 2, 64)
				difficulty = strconv.FormatFloat(fn.Halstead.Difficulty, 'f', 2, 64)
				bugs = strconv.FormatFloat(fn.Halstead.BugsEstimate, 'f', 4, 64)
			}
			row := []string{
				r.Files[i].Filepath,
				fn.Name,
				strconv.Itoa(fn.StartLine),
				strconv.Itoa(fn.EndLine),
				strconv.Itoa(fn.LineCount),
				strconv.Itoa(fn.Cyclomatic),
				strconv.Itoa(fn.Cognitive),
				strconv.Itoa(fn.SQLBlockCount),
				strconv.Itoa(fn.ParameterCount),
				fn.ReturnType,
				volume,
				difficulty,
				bugs,
			}
			if err := w.Write(row); err != nil {
				return "", fmt.Errorf("write csv row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return b.String(), nil
}
