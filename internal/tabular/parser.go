// Package tabular infers table structure from raw page text.
//
// The input carries no layout guarantees: it may be tab- or pipe-delimited,
// whitespace-aligned, a list of "Label: Value" lines, or plain prose. The
// parser commits to the first scheme (in fixed priority order) whose
// precondition holds; it never scores candidates against each other and it
// never fails; unparseable text degrades to a single Text column.
package tabular

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/hericlibong/Infograph2Data/internal/entity"
)

var (
	multiSpace = regexp.MustCompile(`\s{2,}`)
	keyValue   = regexp.MustCompile(`^(.+?):\s*(.+)$`)
)

// ParseTable parses raw text into columns and rows, best effort.
//
// Scheme priority: tab-delimited (every line has the same nonzero tab
// count), pipe-delimited (every line has more than one pipe), multi-space
// aligned (token counts spread at most 1, minimum above 1), key-value
// (at least two "Label: Value" matches), then a single-column fallback.
// Empty or whitespace-only input yields empty columns and rows.
func ParseTable(text string) ([]string, []entity.Row) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) == 0 {
		return []string{}, []entity.Row{}
	}

	if minC, maxC := countRange(lines, "\t"); minC > 0 && minC == maxC {
		return parseDelimited(lines, "\t")
	}

	if minC, _ := countRange(lines, "|"); minC > 1 {
		return parseDelimited(lines, "|")
	}

	if columns, rows, ok := parseMultiSpace(lines); ok {
		return columns, rows
	}

	if columns, rows, ok := parseKeyValue(lines); ok {
		return columns, rows
	}

	// Fallback: one row per line, single Text column.
	columns := []string{"Text"}
	rows := make([]entity.Row, 0, len(lines))
	for i, line := range lines {
		row := entity.NewRow(i + 1)
		row.Set("Text", line)
		rows = append(rows, row)
	}
	return columns, rows
}

func countRange(lines []string, sep string) (minC, maxC int) {
	for i, line := range lines {
		c := strings.Count(line, sep)
		if i == 0 || c < minC {
			minC = c
		}
		if c > maxC {
			maxC = c
		}
	}
	return minC, maxC
}

// parseDelimited splits on a single-character delimiter: first line becomes
// the header, the rest become data rows. Blank header cells are replaced
// with synthetic Column_{i+1} names so headers are never empty.
func parseDelimited(lines []string, delimiter string) ([]string, []entity.Row) {
	split := make([][]string, len(lines))
	for i, line := range lines {
		cells := strings.Split(line, delimiter)
		for j := range cells {
			cells[j] = strings.TrimSpace(cells[j])
		}
		split[i] = cells
	}

	columns := split[0]
	for i, c := range columns {
		if c == "" {
			columns[i] = syntheticColumn(i)
		}
	}

	rows := make([]entity.Row, 0, len(split)-1)
	for i, cells := range split[1:] {
		row := entity.NewRow(i + 1)
		for j, col := range columns {
			if j < len(cells) {
				row.Set(col, cells[j])
			} else {
				row.Set(col, "")
			}
		}
		rows = append(rows, row)
	}
	return columns, rows
}

// parseMultiSpace handles whitespace-aligned tables: lines are split on runs
// of two or more spaces. The scheme is accepted only when every line yields
// more than one token and the token-count spread is at most one, which
// tolerates a single ragged line such as a short header.
func parseMultiSpace(lines []string) ([]string, []entity.Row, bool) {
	tokens := make([][]string, len(lines))
	minC, maxC := 0, 0
	for i, line := range lines {
		tokens[i] = multiSpace.Split(line, -1)
		n := len(tokens[i])
		if i == 0 || n < minC {
			minC = n
		}
		if n > maxC {
			maxC = n
		}
	}
	if minC <= 1 || maxC-minC > 1 {
		return nil, nil, false
	}

	columns := make([]string, maxC)
	for i := range columns {
		columns[i] = syntheticColumn(i)
	}

	// Promote the first line to headers only when none of its tokens starts
	// with a digit; otherwise it is data under the synthetic names.
	if looksLikeHeader(tokens[0]) {
		columns = tokens[0]
		tokens = tokens[1:]
	}

	rows := make([]entity.Row, 0, len(tokens))
	for i, cells := range tokens {
		row := entity.NewRow(i + 1)
		for j, col := range columns {
			if j < len(cells) {
				row.Set(col, strings.TrimSpace(cells[j]))
			} else {
				// Ragged-row repair: a short row pads its trailing
				// cells with empty strings instead of being dropped.
				row.Set(col, "")
			}
		}
		rows = append(rows, row)
	}
	return columns, rows, true
}

func looksLikeHeader(tokens []string) bool {
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if unicode.IsDigit([]rune(tok)[0]) {
			return false
		}
	}
	return true
}

// parseKeyValue extracts "Label: Value" lines into a two-column table.
// Lines that do not match are silently dropped; fewer than two matches
// rejects the scheme entirely.
func parseKeyValue(lines []string) ([]string, []entity.Row, bool) {
	type pair struct{ key, value string }
	var pairs []pair
	for _, line := range lines {
		if m := keyValue.FindStringSubmatch(line); m != nil {
			pairs = append(pairs, pair{strings.TrimSpace(m[1]), strings.TrimSpace(m[2])})
		}
	}
	if len(pairs) < 2 {
		return nil, nil, false
	}

	columns := []string{"Key", "Value"}
	rows := make([]entity.Row, 0, len(pairs))
	for i, p := range pairs {
		row := entity.NewRow(i + 1)
		row.Set("Key", p.key)
		row.Set("Value", p.value)
		rows = append(rows, row)
	}
	return columns, rows, true
}

func syntheticColumn(i int) string {
	return "Column_" + strconv.Itoa(i+1)
}
