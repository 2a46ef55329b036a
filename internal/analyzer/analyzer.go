// Package analyzer shells out to external static analyzers (clang-tidy,
// cppcheck) and adapts their gcc-style diagnostics into the same Violation
// shape as native rules, tagged with an external origin.
package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"cppstyle/internal/logging"
	"cppstyle/internal/report"
)

// Analyzer describes one external tool invocation. The tool is run once per
// check over the whole file set with the files appended to Args.
type Analyzer struct {
	// Name tags the origin in rule ids: external:<name>:<check>.
	Name string

	// Command is the binary to invoke, resolved via PATH.
	Command string

	// Args precede the file list.
	Args []string
}

// diagLine matches "path:line:col: severity: message [check-name]".
// The check suffix is optional (cppcheck omits it without --template).
var diagLine = regexp.MustCompile(`^(.+?):(\d+):(\d+):\s*(\w+):\s*(.*?)(?:\s*\[([^\[\]]+)\])?$`)

// Run invokes the analyzer over the file set and parses its diagnostics.
// A missing binary is a logged skip (nil, nil): external tools are optional
// collaborators, never a reason to fail the run.
func (a *Analyzer) Run(ctx context.Context, files []string) ([]report.Violation, error) {
	if len(files) == 0 {
		return nil, nil
	}
	bin, err := exec.LookPath(a.Command)
	if err != nil {
		logging.Scan("analyzer %s: %s not found, skipping", a.Name, a.Command)
		return nil, nil
	}

	args := append(append([]string{}, a.Args...), files...)
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Analyzers exit nonzero when they find problems; only a failure to
	// produce diagnostics at all is an error.
	runErr := cmd.Run()
	out := stdout.String()
	if out == "" {
		out = stderr.String()
	}
	if runErr != nil && out == "" {
		return nil, fmt.Errorf("%s: %w", a.Command, runErr)
	}

	vs := a.parse(out)
	logging.Scan("analyzer %s: %d findings", a.Name, len(vs))
	return vs, nil
}

// parse extracts violations from the tool's textual output, preserving the
// tool's own ordering via ascending RuleIndex.
func (a *Analyzer) parse(output string) []report.Violation {
	var out []report.Violation
	for _, line := range strings.Split(output, "\n") {
		m := diagLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		lineNo, err1 := strconv.Atoi(m[2])
		colNo, err2 := strconv.Atoi(m[3])
		if err1 != nil || err2 != nil {
			continue
		}
		severity := "warning"
		if m[4] == "error" || m[4] == "fatal" {
			severity = "error"
		}
		check := m[6]
		if check == "" {
			check = m[4]
		}
		out = append(out, report.Violation{
			Path:      m[1],
			Line:      lineNo,
			Column:    colNo,
			RuleID:    fmt.Sprintf("external:%s:%s", a.Name, check),
			Message:   m[5],
			Severity:  severity,
			Origin:    report.OriginExternal,
			RuleIndex: len(out),
		})
	}
	return out
}
