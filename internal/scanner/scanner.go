// Package scanner finds the Go source files of a directory tree.
// It respects .gctignore files with gitignore-style patterns and can skip
// test files and generated code.
package scanner

import (
	"bufio"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileInfo represents information about a discovered Go file.
type FileInfo struct {
	Path      string // Relative path from root
	FullPath  string // Absolute path
	Package   string // Package clause name
	Size      int64  // File size in bytes
	Test      bool   // _test.go file
	Generated bool   // Carries a "Code generated ... DO NOT EDIT." header
}

// Options configures the scanner behavior.
type Options struct {
	SkipHidden      bool     // Skip hidden files and directories (starting with .)
	SkipTests       bool     // Skip _test.go files
	SkipGenerated   bool     // Skip generated files
	DefaultExcludes []string // Directory names never descended into
	IgnoreFileName  string   // Name of the ignore file (default: .gctignore)
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		SkipGenerated:  true,
		IgnoreFileName: ".gctignore",
		DefaultExcludes: []string{
			"vendor",
			"testdata",
			"node_modules",
			".git",
			".hg",
			".svn",
			"_examples",
		},
	}
}

// Scanner provides file tree scanning capabilities.
type Scanner struct {
	opts Options
	fset *token.FileSet
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	if opts.IgnoreFileName == "" {
		opts.IgnoreFileName = ".gctignore"
	}
	return &Scanner{opts: opts, fset: token.NewFileSet()}
}

// ignoreFile holds the patterns of one ignore file, which apply to paths
// below its directory.
type ignoreFile struct {
	dir      string // slash path relative to root, "." for the root
	patterns []IgnorePattern
}

// Scan recursively scans the directory at root and returns its Go files in
// lexical order.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}
	if st, err := os.Stat(absRoot); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	} else if !st.IsDir() {
		return nil, fmt.Errorf("scanning %s: not a directory", root)
	}

	var ignores []ignoreFile
	var files []FileInfo

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, the walk goes on
			return nil
		}
		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel := filepath.ToSlash(relPath)

		if d.IsDir() {
			if rel != "." {
				if s.opts.SkipHidden && isHidden(d.Name()) || s.isDefaultExcluded(d.Name()) {
					return filepath.SkipDir
				}
				if ignored(ignores, rel, true) {
					return filepath.SkipDir
				}
			}
			patterns, err := s.loadIgnorePatterns(path)
			if err != nil {
				return fmt.Errorf("loading ignore patterns: %w", err)
			}
			if len(patterns) > 0 {
				ignores = append(ignores, ignoreFile{dir: rel, patterns: patterns})
			}
			return nil
		}

		if !d.Type().IsRegular() || filepath.Ext(d.Name()) != ".go" {
			return nil
		}
		if s.opts.SkipHidden && isHidden(d.Name()) {
			return nil
		}
		isTest := strings.HasSuffix(d.Name(), "_test.go")
		if isTest && s.opts.SkipTests {
			return nil
		}
		if ignored(ignores, rel, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		// Unparseable files are kept; the extractor reports them
		pkg, generated, _ := s.header(path)
		if generated && s.opts.SkipGenerated {
			return nil
		}

		files = append(files, FileInfo{
			Path:      rel,
			FullPath:  path,
			Package:   pkg,
			Size:      info.Size(),
			Test:      isTest,
			Generated: generated,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	return files, nil
}

// header parses the package clause and leading comments of a Go file.
func (s *Scanner) header(path string) (string, bool, error) {
	f, err := parser.ParseFile(s.fset, path, nil, parser.PackageClauseOnly|parser.ParseComments)
	if err != nil {
		return "", false, err
	}
	return f.Name.Name, ast.IsGenerated(f), nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

// isDefaultExcluded checks if the name matches default exclusion patterns.
func (s *Scanner) isDefaultExcluded(name string) bool {
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

// loadIgnorePatterns loads ignore patterns from the ignore file in dir.
func (s *Scanner) loadIgnorePatterns(dir string) ([]IgnorePattern, error) {
	file, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var patterns []IgnorePattern
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, ParseIgnorePattern(line))
	}
	return patterns, sc.Err()
}

// ignored applies gitignore semantics: the last matching pattern wins and
// deeper ignore files are consulted after shallower ones.
func ignored(files []ignoreFile, rel string, isDir bool) bool {
	result := false
	for _, f := range files {
		sub := rel
		if f.dir != "." {
			if !strings.HasPrefix(rel, f.dir+"/") {
				continue
			}
			sub = strings.TrimPrefix(rel, f.dir+"/")
		}
		for _, p := range f.patterns {
			if p.matches(sub, isDir) {
				result = !p.IsNegation()
			}
		}
	}
	return result
}

// Scan is a convenience function that scans a directory with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}

// Paths returns the absolute paths of files.
func Paths(files []FileInfo) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.FullPath
	}
	return paths
}
