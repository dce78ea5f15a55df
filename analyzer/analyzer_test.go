package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSource = `/*
 * Module: payroll
 * Description: monthly payroll batch
 */
#include <stdio.h>

EXEC SQL BEGIN DECLARE SECTION;
int emp_id;
char emp_name[50];
EXEC SQL END DECLARE SECTION;

/* TODO: handle leap years */

int load_employee(int id) {
    EXEC SQL SELECT name INTO :emp_name FROM emp WHERE id = :id;
    if (sqlca.sqlcode != 0) {
        return -1;
    }
    return 0;
}

int main(void) {
    if (load_employee(1) == 0) {
        printf("%s", emp_name);
    }
    EXEC SQL COMMIT;
    return 0;
}
`

func TestAnalyzer_AnalyzeSource_FullPipeline(t *testing.T) {
	a := New(DefaultOptions(), nil)
	defer a.Close()

	fm := a.AnalyzeSource(context.Background(), sampleSource, "payroll.pc")

	assert.Equal(t, "payroll.pc", fm.Filepath)
	assert.False(t, fm.ParseErrors)
	require.Equal(t, 2, fm.FunctionCount())

	// Declare section + SELECT + COMMIT.
	assert.Equal(t, 3, fm.SQLStatistics.TotalBlocks)
	assert.Equal(t, 1, fm.SQLStatistics.ByKind["SELECT"])
	assert.Equal(t, 1, fm.SQLStatistics.ByKind["COMMIT"])
	assert.Equal(t, 1, fm.SQLStatistics.ByKind["DECLARE_SECTION"])

	byName := map[string]FunctionMetrics{}
	for _, fn := range fm.Functions {
		byName[fn.Name] = fn
	}

	load := byName["load_employee"]
	assert.Equal(t, 2, load.Cyclomatic)
	assert.Equal(t, 1, load.SQLBlockCount)
	require.NotNil(t, load.Halstead)
	assert.Greater(t, load.Halstead.Volume, 0.0)

	main := byName["main"]
	assert.Equal(t, 1, main.SQLBlockCount)

	require.NotNil(t, fm.ModuleInfo)
	assert.Equal(t, "payroll", fm.ModuleInfo.Title)
	require.Len(t, fm.Todos, 1)
	assert.Equal(t, "TODO", fm.Todos[0].Tag)

	assert.NotNil(t, fm.CursorAnalysis)
	assert.NotNil(t, fm.MemoryAnalysis)
}

func TestAnalyzer_AnalyzeSource_OptionsDisableAnalyses(t *testing.T) {
	a := New(Options{}, nil)
	defer a.Close()

	fm := a.AnalyzeSource(context.Background(), sampleSource, "payroll.pc")

	require.NotEmpty(t, fm.Functions)
	assert.Nil(t, fm.Functions[0].Halstead)
	assert.Nil(t, fm.ModuleInfo)
	assert.Empty(t, fm.Todos)
	assert.Nil(t, fm.CursorAnalysis)
	assert.Nil(t, fm.MemoryAnalysis)
}

func TestAnalyzer_AnalyzeSource_MalformedInputNeverFails(t *testing.T) {
	a := New(DefaultOptions(), nil)
	defer a.Close()

	fm := a.AnalyzeSource(context.Background(), "int broken( {{{", "broken.pc")

	assert.True(t, fm.ParseErrors)
	assert.Empty(t, fm.ErrorMessage)
}

func TestAnalyzer_AnalyzeFile_MissingFile(t *testing.T) {
	a := New(DefaultOptions(), nil)
	defer a.Close()

	fm := a.AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "missing.pc"))

	assert.True(t, fm.ParseErrors)
	assert.Contains(t, fm.ErrorMessage, "read file")
}

func TestAnalyzer_AnalyzeDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pc"), []byte(sampleSource), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.pc"), []byte(sampleSource), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.c"), []byte("int x;"), 0644))

	a := New(DefaultOptions(), nil)
	defer a.Close()

	var seen []string
	progress := func(path string, current, total int) {
		seen = append(seen, path)
		assert.Equal(t, 2, total)
	}

	report, err := a.AnalyzeDirectory(context.Background(), dir, "*.pc", true, progress)
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalFiles())
	assert.Equal(t, 4, report.TotalFunctions())
	assert.Equal(t, 6, report.TotalSQLBlocks())
	assert.Len(t, seen, 2)
	require.NotNil(t, report.ModuleInventory)
	assert.Equal(t, 2, report.ModuleInventory.Summarize().TotalModules)
}

func TestAnalyzer_AnalyzeDirectory_NonRecursive(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pc"), []byte(sampleSource), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.pc"), []byte(sampleSource), 0644))

	a := New(DefaultOptions(), nil)
	defer a.Close()

	report, err := a.AnalyzeDirectory(context.Background(), dir, "*.pc", false, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalFiles())
}

func TestAnalysisReport_HighComplexityFunctions(t *testing.T) {
	report := &AnalysisReport{Files: []FileMetrics{
		{
			Filepath: "a.pc",
			Functions: []FunctionMetrics{
				{Name: "simple", Cyclomatic: 2, Cognitive: 1},
				{Name: "tangled", Cyclomatic: 14, Cognitive: 30},
			},
		},
	}}

	flagged := report.HighComplexityFunctions(10, 15)
	require.Len(t, flagged, 1)
	assert.Equal(t, "tangled", flagged[0].Function.Name)
	assert.Equal(t, "a.pc", flagged[0].Filepath)
}

func TestAnalysisReport_Averages(t *testing.T) {
	report := &AnalysisReport{Files: []FileMetrics{
		{Functions: []FunctionMetrics{{Cyclomatic: 1, Cognitive: 0}, {Cyclomatic: 3, Cognitive: 4}}},
		{Functions: []FunctionMetrics{{Cyclomatic: 5, Cognitive: 2}}},
	}}

	assert.InDelta(t, 3.0, report.AvgCyclomatic(), 1e-9)
	assert.InDelta(t, 2.0, report.AvgCognitive(), 1e-9)

	empty := &AnalysisReport{}
	assert.Zero(t, empty.AvgCyclomatic())
	assert.Zero(t, empty.AvgCognitive())
}
