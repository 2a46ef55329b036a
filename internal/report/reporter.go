package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"cppstyle/internal/logging"
)

// Format selects the output rendering.
type Format string

const (
	FormatHuman Format = "human"
	FormatJSON  Format = "json"
)

// Reporter aggregates violations across files and renders them. It never
// mutates input files; its only side effect is writing to the sink.
type Reporter struct {
	format Format
	color  bool
	out    io.Writer
}

// NewReporter creates a reporter writing to out.
func NewReporter(format Format, color bool, out io.Writer) *Reporter {
	return &Reporter{format: format, color: color, out: out}
}

var (
	pathStyle    = lipgloss.NewStyle().Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	summaryStyle = lipgloss.NewStyle().Faint(true)
)

// jsonDocument is the structured output shape. The run id is a name-based
// UUID over the input set so identical runs serialize byte-identically.
type jsonDocument struct {
	RunID      string      `json:"run_id"`
	Files      int         `json:"files"`
	Count      int         `json:"count"`
	Violations []Violation `json:"violations"`
}

// Report renders the violation sequence and returns the exit code.
// The sequence must already be in report order (file, line, column, rule
// registration order); the reporter preserves it verbatim.
func (r *Reporter) Report(violations []Violation, filesChecked int) (int, error) {
	defer logging.StartTimer(logging.CategoryReport, "Report").Stop()

	var err error
	switch r.format {
	case FormatJSON:
		err = r.writeJSON(violations, filesChecked)
	default:
		err = r.writeHuman(violations, filesChecked)
	}
	if err != nil {
		return ExitInternal, err
	}
	return ExitCode(violations), nil
}

// writeHuman emits one line per violation plus a summary line.
func (r *Reporter) writeHuman(violations []Violation, filesChecked int) error {
	for _, v := range violations {
		line := fmt.Sprintf("%s:%d:%d: [%s] %s", v.Path, v.Line, v.Column, v.RuleID, v.Message)
		if r.color {
			loc := pathStyle.Render(fmt.Sprintf("%s:%d:%d:", v.Path, v.Line, v.Column))
			id := errorStyle.Render("[" + v.RuleID + "]")
			if v.Severity == "warning" {
				id = warningStyle.Render("[" + v.RuleID + "]")
			}
			line = fmt.Sprintf("%s %s %s", loc, id, v.Message)
		}
		if _, err := fmt.Fprintln(r.out, line); err != nil {
			return err
		}
	}

	summary := fmt.Sprintf("%d violations in %d files", len(violations), affectedFiles(violations))
	if filesChecked > 0 && len(violations) == 0 {
		summary = fmt.Sprintf("0 violations in %d files", filesChecked)
	}
	if r.color {
		summary = summaryStyle.Render(summary)
	}
	_, err := fmt.Fprintln(r.out, summary)
	return err
}

// writeJSON emits the structured document, deterministically.
func (r *Reporter) writeJSON(violations []Violation, filesChecked int) error {
	if violations == nil {
		violations = []Violation{}
	}
	doc := jsonDocument{
		RunID:      runID(violations, filesChecked),
		Files:      filesChecked,
		Count:      len(violations),
		Violations: violations,
	}
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// runID derives a deterministic UUIDv5 from the report content so that
// re-running on unchanged input produces byte-identical output.
func runID(violations []Violation, filesChecked int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "cppstyle/%d/", filesChecked)
	for _, v := range violations {
		fmt.Fprintf(&b, "%s:%d:%d:%s;", v.Path, v.Line, v.Column, v.RuleID)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(b.String())).String()
}

// affectedFiles counts distinct paths in the sequence.
func affectedFiles(violations []Violation) int {
	seen := make(map[string]bool, len(violations))
	for _, v := range violations {
		seen[v.Path] = true
	}
	return len(seen)
}

// Sort orders violations by file order (as given by pathOrder), then line,
// then column, then rule registration order. Paths missing from pathOrder
// sort after known ones, alphabetically, keeping output deterministic.
func Sort(violations []Violation, pathOrder map[string]int) {
	rank := func(p string) int {
		if i, ok := pathOrder[p]; ok {
			return i
		}
		return len(pathOrder)
	}
	sort.SliceStable(violations, func(i, j int) bool {
		a, b := violations[i], violations[j]
		if ra, rb := rank(a.Path), rank(b.Path); ra != rb {
			return ra < rb
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.RuleIndex < b.RuleIndex
	})
}
