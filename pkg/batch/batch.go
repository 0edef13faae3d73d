// Package batch runs structural analysis over many functions concurrently.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-control-tree/internal/log"
	"github.com/l3aro/go-control-tree/pkg/cache"
	"github.com/l3aro/go-control-tree/pkg/cfg"
	"github.com/l3aro/go-control-tree/pkg/structural"
)

// Job is one function to analyze.
type Job struct {
	Name string
	CFG  *cfg.CFGInfo
}

// Result is the outcome of one Job. Err is set instead of Tree when the
// analysis failed or the job never ran because the context was cancelled.
type Result struct {
	Job  Job
	Tree *structural.ControlTree
	Err  error
}

// Options configures a batch run.
type Options struct {
	// Workers bounds concurrent analyses; zero uses GOMAXPROCS.
	Workers  int
	Analysis structural.Options
	Logger   log.Logger
	// Cache, when set, reuses trees of CFGs with the same fingerprint.
	Cache *cache.LRU[string, *structural.ControlTree]
}

// NewTreeCache returns a cache suitable for Options.Cache.
func NewTreeCache(size int) *cache.LRU[string, *structural.ControlTree] {
	return cache.New(cache.Options[string, *structural.ControlTree]{MaxSize: size})
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (o Options) logger() log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Nop()
}

// Run analyzes every job and returns the results in job order. A failed
// analysis is recorded on its Result and does not stop the others. Run
// returns the context error if ctx was cancelled before all jobs ran.
func Run(ctx context.Context, jobs []Job, opts Options) ([]Result, error) {
	results := make([]Result, len(jobs))
	for i, job := range jobs {
		results[i].Job = job
	}
	logger := opts.logger()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())

	for i := range jobs {
		if err := gctx.Err(); err != nil {
			markSkipped(results[i:], err)
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			tree, err := opts.analyze(jobs[i].CFG)
			if err != nil {
				logger.Warn("analysis failed", "function", jobs[i].Name, "error", err)
				results[i].Err = err
				return nil
			}
			results[i].Tree = tree
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// analyze runs one analysis, going through the cache when there is one. A
// cached tree is shared with the job that produced it; only the function
// name and file are rebound.
func (o Options) analyze(info *cfg.CFGInfo) (*structural.ControlTree, error) {
	if o.Cache == nil || info == nil {
		return structural.Analyze(info, o.Analysis)
	}
	key := fmt.Sprintf("%s/prune=%t", cfg.Fingerprint(info), o.Analysis.PruneUnreachable)
	shared, err := o.Cache.GetOrCompute(key, func() (*structural.ControlTree, error) {
		return structural.Analyze(info, o.Analysis)
	})
	if err != nil {
		return nil, err
	}
	tree := *shared
	tree.Function = info.FunctionName
	tree.File = info.File
	return &tree, nil
}

func markSkipped(results []Result, err error) {
	for i := range results {
		if results[i].Tree == nil && results[i].Err == nil {
			results[i].Err = err
		}
	}
}

// ExtractFiles extracts every function of the given Go files concurrently.
// Files that fail to parse are returned in the error map keyed by path.
func ExtractFiles(ctx context.Context, paths []string, workers int) ([]Job, map[string]error) {
	perFile := make([][]*cfg.CFGInfo, len(paths))
	errs := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Options{Workers: workers}.workers())
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			perFile[i], errs[i] = cfg.ExtractGoFile(path)
			return nil
		})
	}
	_ = g.Wait()

	var jobs []Job
	failed := make(map[string]error)
	for i, infos := range perFile {
		if errs[i] != nil {
			failed[paths[i]] = errs[i]
			continue
		}
		for _, info := range infos {
			jobs = append(jobs, Job{Name: info.FunctionName, CFG: info})
		}
	}
	return jobs, failed
}

// Summary aggregates a batch of results.
type Summary struct {
	Total        int
	Structured   int
	Unstructured int
	Failed       int
	// Worst lists the unstructured functions, most removed branches first.
	Worst []string
}

// Summarize counts structured, unstructured and failed results.
func Summarize(results []Result) Summary {
	var s Summary
	type scored struct {
		name    string
		removed int
	}
	var bad []scored
	for _, r := range results {
		s.Total++
		switch {
		case r.Err != nil:
			s.Failed++
		case r.Tree.IsStructured():
			s.Structured++
		default:
			s.Unstructured++
			bad = append(bad, scored{r.Job.Name, len(r.Tree.UnstructuredBranches)})
		}
	}
	sort.SliceStable(bad, func(i, j int) bool { return bad[i].removed > bad[j].removed })
	for _, b := range bad {
		s.Worst = append(s.Worst, b.name)
	}
	return s
}
