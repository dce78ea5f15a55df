// Package neutralizer rewrites Pro*C embedded-SQL statements into
// syntactically valid C placeholders so a standard C grammar can parse the
// surrounding code. Every recognized statement is recorded as an
// ExecSqlBlock with its original span, line and classified kind.
package neutralizer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// SQLKind classifies the head of an embedded SQL statement.
type SQLKind string

const (
	KindSelect         SQLKind = "SELECT"
	KindInsert         SQLKind = "INSERT"
	KindUpdate         SQLKind = "UPDATE"
	KindDelete         SQLKind = "DELETE"
	KindDeclare        SQLKind = "DECLARE"
	KindCursor         SQLKind = "CURSOR"
	KindOpen           SQLKind = "OPEN"
	KindClose          SQLKind = "CLOSE"
	KindFetch          SQLKind = "FETCH"
	KindCommit         SQLKind = "COMMIT"
	KindRollback       SQLKind = "ROLLBACK"
	KindConnect        SQLKind = "CONNECT"
	KindInclude        SQLKind = "INCLUDE"
	KindWhenever       SQLKind = "WHENEVER"
	KindExecute        SQLKind = "EXECUTE"
	KindPrepare        SQLKind = "PREPARE"
	KindCall           SQLKind = "CALL"
	KindDeclareSection SQLKind = "DECLARE_SECTION"
	KindOther          SQLKind = "OTHER"
)

// ExecSqlBlock records one recognized EXEC SQL or EXEC ORACLE statement.
// Positions refer to the text the statement was matched in; LineNumber is
// 1-indexed. Blocks are produced fresh on every Neutralize call.
type ExecSqlBlock struct {
	Start      int
	End        int
	LineNumber int
	Content    string
	Kind       SQLKind
}

var (
	execSQLPattern    = regexp.MustCompile(`(?is)EXEC\s+SQL\s+(.*?)\s*;`)
	execOraclePattern = regexp.MustCompile(`(?is)EXEC\s+ORACLE\s+(.*?)\s*;`)

	declareSectionPattern = regexp.MustCompile(
		`(?is)EXEC\s+SQL\s+BEGIN\s+DECLARE\s+SECTION\s*;(.*?)EXEC\s+SQL\s+END\s+DECLARE\s+SECTION\s*;`)

	cursorDeclPattern = regexp.MustCompile(`(?i)^\s*DECLARE\s+\w+\s+CURSOR\b`)
)

// sqlHeads is order-sensitive: the first matching head wins. A DECLARE head
// is refined to CURSOR when the statement declares a cursor.
var sqlHeads = []struct {
	kind    SQLKind
	pattern *regexp.Regexp
}{
	{KindSelect, regexp.MustCompile(`(?i)^\s*SELECT\b`)},
	{KindInsert, regexp.MustCompile(`(?i)^\s*INSERT\b`)},
	{KindUpdate, regexp.MustCompile(`(?i)^\s*UPDATE\b`)},
	{KindDelete, regexp.MustCompile(`(?i)^\s*DELETE\b`)},
	{KindDeclare, regexp.MustCompile(`(?i)^\s*(BEGIN\s+)?DECLARE\b`)},
	{KindOpen, regexp.MustCompile(`(?i)^\s*OPEN\b`)},
	{KindClose, regexp.MustCompile(`(?i)^\s*CLOSE\b`)},
	{KindFetch, regexp.MustCompile(`(?i)^\s*FETCH\b`)},
	{KindCommit, regexp.MustCompile(`(?i)^\s*COMMIT\b`)},
	{KindRollback, regexp.MustCompile(`(?i)^\s*ROLLBACK\b`)},
	{KindConnect, regexp.MustCompile(`(?i)^\s*CONNECT\b`)},
	{KindInclude, regexp.MustCompile(`(?i)^\s*INCLUDE\b`)},
	{KindWhenever, regexp.MustCompile(`(?i)^\s*WHENEVER\b`)},
	{KindExecute, regexp.MustCompile(`(?i)^\s*EXECUTE\b`)},
	{KindPrepare, regexp.MustCompile(`(?i)^\s*PREPARE\b`)},
	{KindCall, regexp.MustCompile(`(?i)^\s*CALL\b`)},
}

// Neutralizer replaces EXEC SQL / EXEC ORACLE statements with placeholder
// calls. Instances hold per-call state only; give each file its own
// Neutralizer when analyzing concurrently.
type Neutralizer struct {
	blocks      []ExecSqlBlock
	lineOffsets []int
}

// New creates a Neutralizer.
func New() *Neutralizer {
	return &Neutralizer{}
}

// Neutralize rewrites source and returns the pure-C text plus the ordered
// list of recognized blocks. Declare sections are handled first so their
// interior is not matched again; the line-offset table is recomputed after
// each text-mutating pass. An unterminated EXEC SQL statement is simply not
// matched; the downstream parser reports that span as a syntax error.
func (n *Neutralizer) Neutralize(source string) (string, []ExecSqlBlock) {
	n.blocks = nil
	n.computeLineOffsets(source)

	result := n.processDeclareSections(source)
	result = n.processExecSQL(result)
	result = n.processExecOracle(result)

	return result, n.blocks
}

// Blocks returns the blocks found by the most recent Neutralize call.
func (n *Neutralizer) Blocks() []ExecSqlBlock {
	return n.blocks
}

// Statistics returns the block count total and a per-kind breakdown for the
// most recent Neutralize call.
func (n *Neutralizer) Statistics() (int, map[SQLKind]int) {
	byKind := make(map[SQLKind]int)
	for _, b := range n.blocks {
		byKind[b.Kind]++
	}
	return len(n.blocks), byKind
}

func (n *Neutralizer) computeLineOffsets(source string) {
	n.lineOffsets = n.lineOffsets[:0]
	n.lineOffsets = append(n.lineOffsets, 0)
	for i := 0; i < len(source); i++ {
		if source[i] == '\n' {
			n.lineOffsets = append(n.lineOffsets, i+1)
		}
	}
}

func (n *Neutralizer) positionToLine(pos int) int {
	// lineOffsets is sorted; find the first offset past pos.
	i := sort.SearchInts(n.lineOffsets, pos+1)
	if i < 1 {
		return 1
	}
	return i
}

func classify(stmt string) SQLKind {
	for _, h := range sqlHeads {
		if h.pattern.MatchString(stmt) {
			if h.kind == KindDeclare && cursorDeclPattern.MatchString(stmt) {
				return KindCursor
			}
			return h.kind
		}
	}
	return KindOther
}

func (n *Neutralizer) processDeclareSections(source string) string {
	matches := declareSectionPattern.FindAllStringSubmatchIndex(source, -1)
	for _, m := range matches {
		n.blocks = append(n.blocks, ExecSqlBlock{
			Start:      m[0],
			End:        m[1],
			LineNumber: n.positionToLine(m[0]),
			Content:    source[m[0]:m[1]],
			Kind:       KindDeclareSection,
		})
	}

	result := declareSectionPattern.ReplaceAllStringFunc(source, func(match string) string {
		sub := declareSectionPattern.FindStringSubmatch(match)
		return fmt.Sprintf("/* EXEC SQL DECLARE SECTION */\n%s\n/* END DECLARE SECTION */", sub[1])
	})

	// The rewrite changed text length; later line lookups need fresh offsets.
	n.computeLineOffsets(result)
	return result
}

func (n *Neutralizer) processExecSQL(source string) string {
	var out strings.Builder
	lastEnd := 0

	for _, m := range execSQLPattern.FindAllStringSubmatchIndex(source, -1) {
		stmt := strings.TrimSpace(source[m[2]:m[3]])
		upper := strings.ToUpper(stmt)
		if strings.HasPrefix(upper, "BEGIN DECLARE") || strings.HasPrefix(upper, "END DECLARE") {
			continue
		}

		block := ExecSqlBlock{
			Start:      m[0],
			End:        m[1],
			LineNumber: n.positionToLine(m[0]),
			Content:    source[m[0]:m[1]],
			Kind:       classify(stmt),
		}
		n.blocks = append(n.blocks, block)

		out.WriteString(source[lastEnd:m[0]])
		out.WriteString(fmt.Sprintf("__exec_sql_%s__();", strings.ToLower(string(block.Kind))))
		lastEnd = m[1]
	}
	out.WriteString(source[lastEnd:])

	result := out.String()
	n.computeLineOffsets(result)
	return result
}

func (n *Neutralizer) processExecOracle(source string) string {
	var out strings.Builder
	lastEnd := 0

	for _, m := range execOraclePattern.FindAllStringSubmatchIndex(source, -1) {
		n.blocks = append(n.blocks, ExecSqlBlock{
			Start:      m[0],
			End:        m[1],
			LineNumber: n.positionToLine(m[0]),
			Content:    source[m[0]:m[1]],
			Kind:       KindOther,
		})

		out.WriteString(source[lastEnd:m[0]])
		out.WriteString("__exec_oracle__();")
		lastEnd = m[1]
	}
	out.WriteString(source[lastEnd:])
	return out.String()
}
