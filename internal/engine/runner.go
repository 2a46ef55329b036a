package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"cppstyle/internal/analyzer"
	"cppstyle/internal/cache"
	"cppstyle/internal/logging"
	"cppstyle/internal/parser"
	"cppstyle/internal/report"
	"cppstyle/internal/rules"
)

// DefaultExtensions are the header/source extensions checked when expanding
// directory roots.
var DefaultExtensions = []string{".h", ".hh", ".hpp", ".hxx", ".c", ".cc", ".cpp", ".cxx"}

// Options configures a Runner.
type Options struct {
	// Workers bounds the parallel per-file tasks. Zero means GOMAXPROCS.
	Workers int

	// FileTimeout bounds parsing and evaluation of one file. Zero means
	// no per-file timeout.
	FileTimeout time.Duration

	// Extensions selects which files directory expansion picks up.
	// Nil means DefaultExtensions.
	Extensions []string

	// Cache is the optional result cache. Nil disables caching.
	Cache *cache.Store

	// Analyzers are optional external tools whose findings are merged
	// into the report.
	Analyzers []*analyzer.Analyzer
}

// Stats summarizes a run.
type Stats struct {
	FilesChecked int
	CacheHits    int
	Duration     time.Duration
}

// Runner executes the check pipeline: expand inputs, parse and evaluate each
// file in parallel, merge results in input order.
type Runner struct {
	reg  *rules.Registry
	opts Options
}

// NewRunner creates a runner over a frozen registry.
func NewRunner(reg *rules.Registry, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Extensions == nil {
		opts.Extensions = DefaultExtensions
	}
	return &Runner{reg: reg, opts: opts}
}

// Run checks all inputs and returns violations in report order: file input
// order, then line, then column, then rule registration order. On
// cancellation the partial results are discarded and ctx's error returned.
func (r *Runner) Run(ctx context.Context, paths []string) ([]report.Violation, Stats, error) {
	start := time.Now()
	var stats Stats

	files, err := ExpandPaths(paths, r.opts.Extensions)
	if err != nil {
		return nil, stats, err
	}
	logging.Scan("Run: %d files from %d inputs", len(files), len(paths))

	pathOrder := make(map[string]int, len(files))
	for i, f := range files {
		pathOrder[f] = i
	}

	fingerprint := cache.Fingerprint(r.reg.IDs())

	// Each worker fills its own slot; merge order is input order, never
	// completion order.
	results := make([][]report.Violation, len(files))
	hits := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, file := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			vs, hit := r.checkFile(gctx, file, fingerprint)
			results[i] = vs
			hits[i] = hit
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	var out []report.Violation
	for i, vs := range results {
		out = append(out, vs...)
		if hits[i] {
			stats.CacheHits++
		}
	}

	out = append(out, r.runAnalyzers(ctx, files)...)

	report.Sort(out, pathOrder)
	stats.FilesChecked = len(files)
	stats.Duration = time.Since(start)
	return out, stats, nil
}

// checkFile runs the per-file pipeline: read, cache lookup, parse, evaluate,
// cache store. Every failure is contained to the file and reported as an
// internal-origin violation rather than an error.
func (r *Runner) checkFile(ctx context.Context, path, fingerprint string) ([]report.Violation, bool) {
	if r.opts.FileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.FileTimeout)
		defer cancel()
	}

	content, err := os.ReadFile(path)
	if err != nil {
		logging.Get(logging.CategoryScan).Warn("checkFile: unreadable %s: %v", path, err)
		return []report.Violation{internalViolation(path, 1, report.RuleIOError,
			fmt.Sprintf("cannot read file: %v", err), r.reg.Len())}, false
	}

	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	if r.opts.Cache != nil {
		if vs, ok := r.opts.Cache.Get(path, hash, fingerprint); ok {
			logging.CacheDebug("checkFile: hit for %s", path)
			return vs, true
		}
	}

	m, err := parser.NewBuilder().Build(ctx, path, content)
	if err != nil {
		// Outer cancellation discards the file entirely; partially
		// produced violations are never reported.
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			return nil, false
		}
		line := 1
		msg := err.Error()
		var perr *parser.ParseError
		if errors.As(err, &perr) {
			if perr.Line > 0 {
				line = perr.Line
			}
			msg = perr.Msg
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("parse timed out after %v", r.opts.FileTimeout)
		}
		return []report.Violation{internalViolation(path, line, report.RuleUnparseable, msg, r.reg.Len())}, false
	}

	vs := Evaluate(m, r.reg)

	if r.opts.Cache != nil {
		if err := r.opts.Cache.Put(path, hash, fingerprint, vs); err != nil {
			logging.Get(logging.CategoryCache).Warn("checkFile: cache store failed for %s: %v", path, err)
		}
	}
	return vs, false
}

// runAnalyzers invokes the configured external tools and adapts their
// findings. Analyzer violations sort after native rules on the same span.
func (r *Runner) runAnalyzers(ctx context.Context, files []string) []report.Violation {
	var out []report.Violation
	for _, a := range r.opts.Analyzers {
		vs, err := a.Run(ctx, files)
		if err != nil {
			logging.Get(logging.CategoryScan).Warn("analyzer %s failed: %v", a.Name, err)
			continue
		}
		for i := range vs {
			vs[i].RuleIndex = r.reg.Len() + vs[i].RuleIndex
		}
		out = append(out, vs...)
	}
	return out
}

func internalViolation(path string, line int, ruleID, msg string, ruleIndex int) report.Violation {
	return report.Violation{
		Path:      path,
		Line:      line,
		Column:    1,
		RuleID:    ruleID,
		Message:   msg,
		Severity:  string(rules.SeverityError),
		Origin:    report.OriginInternal,
		RuleIndex: 2 * ruleIndex, // after every native and external rule
	}
}

// ExpandPaths resolves the input list to concrete files: explicit files are
// kept in the given order, directory roots are walked recursively in lexical
// order, filtered by extension. Duplicates keep their first position.
func ExpandPaths(paths []string, extensions []string) ([]string, error) {
	extSet := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		extSet[strings.ToLower(e)] = true
	}

	var files []string
	seen := make(map[string]bool)
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			// Unreadable inputs surface as io-error violations later;
			// missing inputs are a caller mistake and fatal here.
			return nil, fmt.Errorf("input %s: %w", p, err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if extSet[strings.ToLower(filepath.Ext(path))] {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", p, err)
		}
	}
	return files, nil
}
