package cparser

import (
	"regexp"
	"strings"
)

// The legacy function form predates the C grammar: an uppercase macro type,
// a name, a parameter list, then a begin/end bracketed body. tree-sitter
// cannot parse it, so these are recovered textually and carry no AST node.
//
//	VOID process_data(INT param1, STR param2)
//	begin
//	    ...
//	end
var (
	legacyDeclPattern = regexp.MustCompile(`^\s*([A-Z][A-Z0-9_]*)\s+([A-Za-z_]\w*)\s*\(([^)]*)\)`)
	beginTokenPattern = regexp.MustCompile(`\bbegin\b`)
	endTokenPattern   = regexp.MustCompile(`\bend\b`)
)

// beginLookahead is how many lines past the declaration a begin token may
// appear for the candidate to count.
const beginLookahead = 5

func scanLegacyFunctions(source string) []FunctionInfo {
	lines := strings.Split(source, "\n")
	stripped := stripComments(lines)

	var functions []FunctionInfo
	for i := 0; i < len(lines); i++ {
		m := legacyDeclPattern.FindStringSubmatch(stripped[i])
		if m == nil {
			continue
		}

		beginLine := -1
		for j := i; j < len(lines) && j <= i+beginLookahead; j++ {
			if beginTokenPattern.MatchString(stripped[j]) {
				beginLine = j
				break
			}
		}
		if beginLine < 0 {
			continue
		}

		endLine := matchEnd(stripped, beginLine)
		if endLine < 0 {
			// No balanced end before end-of-input: drop the candidate.
			continue
		}

		functions = append(functions, FunctionInfo{
			Name:       m[2],
			StartLine:  i + 1,
			EndLine:    endLine + 1,
			ReturnType: strings.ToLower(m[1]),
			Parameters: parseLegacyParams(m[3]),
		})
		i = endLine
	}
	return functions
}

// matchEnd finds the line of the end token balancing the first begin,
// tracking nested begin/end pairs. Returns -1 when no balance is reached.
func matchEnd(stripped []string, beginLine int) int {
	depth := 0
	for j := beginLine; j < len(stripped); j++ {
		depth += len(beginTokenPattern.FindAllString(stripped[j], -1))
		ends := len(endTokenPattern.FindAllString(stripped[j], -1))
		depth -= ends
		if ends > 0 && depth <= 0 {
			return j
		}
	}
	return -1
}

func parseLegacyParams(raw string) []string {
	var params []string
	for _, part := range strings.Split(raw, ",") {
		fields := strings.Fields(strings.ReplaceAll(part, "*", " "))
		if len(fields) == 0 {
			continue
		}
		name := fields[len(fields)-1]
		if strings.EqualFold(name, "void") {
			continue
		}
		params = append(params, name)
	}
	return params
}

// stripComments blanks // and /* */ comment content per line while keeping
// line boundaries, so begin/end tokens inside comments are not counted.
func stripComments(lines []string) []string {
	out := make([]string, len(lines))
	inBlock := false
	for i, line := range lines {
		var b strings.Builder
		j := 0
		for j < len(line) {
			if inBlock {
				if j+1 < len(line) && line[j] == '*' && line[j+1] == '/' {
					inBlock = false
					j += 2
					continue
				}
				j++
				continue
			}
			if j+1 < len(line) && line[j] == '/' && line[j+1] == '*' {
				inBlock = true
				j += 2
				continue
			}
			if j+1 < len(line) && line[j] == '/' && line[j+1] == '/' {
				break
			}
			b.WriteByte(line[j])
			j++
		}
		out[i] = b.String()
	}
	return out
}
