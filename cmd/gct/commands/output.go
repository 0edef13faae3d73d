package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-control-tree/internal/config"
	"github.com/l3aro/go-control-tree/pkg/store"
	"github.com/l3aro/go-control-tree/pkg/structural"
)

// analyzed is a control tree together with the name its report is
// printed and stored under.
type analyzed struct {
	name string
	tree *structural.ControlTree
}

func reportsOf(items []analyzed) []*structural.Report {
	reports := make([]*structural.Report, len(items))
	for i, it := range items {
		reports[i] = it.tree.Report(it.name)
	}
	return reports
}

// render writes freshly analyzed trees in the given format.
func render(w io.Writer, format config.OutputFormat, items []analyzed) error {
	if format != config.FormatDOT {
		return renderReports(w, format, reportsOf(items))
	}
	for _, it := range items {
		if err := structural.WriteDOT(w, it.tree); err != nil {
			return fmt.Errorf("writing DOT for %s: %w", it.name, err)
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// renderReports writes reports in the given format. A single report is
// encoded as an object, several as a list.
func renderReports(w io.Writer, format config.OutputFormat, reports []*structural.Report) error {
	var v any = reports
	if len(reports) == 1 {
		v = reports[0]
	}

	switch format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case config.FormatDOT:
		return errors.New("dot output needs the control tree; run analyze instead of show")
	default:
		for _, r := range reports {
			if _, err := io.WriteString(w, r.String()); err != nil {
				return err
			}
		}
		return nil
	}
}

// storeReports saves reports for items in the configured report store.
func storeReports(conf *config.Config, items []analyzed) error {
	st, err := store.Open(conf.StorePath, store.Options{})
	if err != nil {
		return err
	}
	defer st.Close()

	for _, r := range reportsOf(items) {
		if err := st.Put(r); err != nil {
			return err
		}
	}
	return nil
}

// sourceName names a function of a Go source file as "path:function", with
// path relative to base when possible.
func sourceName(base, file, function string) string {
	if rel, err := filepath.Rel(base, file); err == nil {
		file = rel
	}
	return filepath.ToSlash(file) + ":" + function
}
