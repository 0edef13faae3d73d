package cfg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// document is the on-disk form of a CFG. Besides the full CFGInfo fields it
// accepts a "flow" shorthand: a list of "A -> B" edges whose endpoints become
// blocks on first mention.
type document struct {
	CFGInfo `yaml:",inline"`
	Flow    []string `json:"flow,omitempty" yaml:"flow,omitempty"`
}

// LoadFile reads one or more CFGs from a YAML (.yaml, .yml) or JSON (.json)
// file. YAML files may hold several documents separated by "---"; JSON files
// may hold a single object or an array.
func LoadFile(path string) ([]*CFGInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}

	var infos []*CFGInfo
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		infos, err = decodeJSON(data)
	case ".yaml", ".yml":
		infos, err = decodeYAML(data)
	default:
		return nil, fmt.Errorf("unsupported CFG document %s: expected .yaml, .yml or .json", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse CFG file %s: %w", path, err)
	}
	for _, info := range infos {
		if info.File == "" {
			info.File = path
		}
	}
	return infos, nil
}

func decodeYAML(data []byte) ([]*CFGInfo, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var infos []*CFGInfo
	for {
		var doc document
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		info, err := doc.build()
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	if len(infos) == 0 {
		return nil, errors.New("no CFG documents found")
	}
	return infos, nil
}

func decodeJSON(data []byte) ([]*CFGInfo, error) {
	trimmed := bytes.TrimSpace(data)
	var docs []document
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, err
		}
	} else {
		var doc document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	infos := make([]*CFGInfo, 0, len(docs))
	for i := range docs {
		info, err := docs[i].build()
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (d *document) build() (*CFGInfo, error) {
	info := d.CFGInfo
	if info.Blocks == nil {
		info.Blocks = make(map[string]CFGBlock)
	}
	for id, b := range info.Blocks {
		if b.ID == "" {
			b.ID = id
			info.Blocks[id] = b
		}
	}

	if len(d.Flow) > 0 {
		flow, err := FromEdgeList(info.FunctionName, d.Flow...)
		if err != nil {
			return nil, err
		}
		for id, b := range flow.Blocks {
			if _, ok := info.Blocks[id]; !ok {
				info.Blocks[id] = b
			}
		}
		info.Edges = append(info.Edges, flow.Edges...)
		if info.EntryBlockID == "" {
			info.EntryBlockID = flow.EntryBlockID
		}
	}

	if info.CyclomaticComplexity == 0 && len(info.Blocks) > 0 {
		info.CyclomaticComplexity = info.ComputeComplexity()
	}
	info.FillPredecessors()
	return &info, nil
}

// FromEdgeList builds a CFG from "A -> B" edge strings. A bare "A" declares
// an isolated block. The first block mentioned is the entry.
func FromEdgeList(name string, edges ...string) (*CFGInfo, error) {
	info := &CFGInfo{
		FunctionName: name,
		Blocks:       make(map[string]CFGBlock),
		Edges:        make([]CFGEdge, 0, len(edges)),
	}
	addBlock := func(id string) {
		if _, ok := info.Blocks[id]; ok {
			return
		}
		info.Blocks[id] = CFGBlock{ID: id, Type: BlockTypePlain}
		if info.EntryBlockID == "" {
			info.EntryBlockID = id
		}
	}

	for _, raw := range edges {
		parts := strings.Split(raw, "->")
		switch len(parts) {
		case 1:
			id := strings.TrimSpace(parts[0])
			if id == "" {
				return nil, fmt.Errorf("empty block name in %q", raw)
			}
			addBlock(id)
		case 2:
			src := strings.TrimSpace(parts[0])
			dst := strings.TrimSpace(parts[1])
			if src == "" || dst == "" {
				return nil, fmt.Errorf("malformed edge %q", raw)
			}
			addBlock(src)
			addBlock(dst)
			info.Edges = append(info.Edges, CFGEdge{SourceID: src, TargetID: dst, EdgeType: EdgeTypeUnconditional})
		default:
			return nil, fmt.Errorf("malformed edge %q", raw)
		}
	}

	if entry, ok := info.Blocks[info.EntryBlockID]; ok {
		entry.Type = BlockTypeEntry
		info.Blocks[info.EntryBlockID] = entry
	}
	succs := info.Successors()
	for id := range info.Blocks {
		if len(succs[id]) == 0 {
			info.ExitBlockIDs = append(info.ExitBlockIDs, id)
		}
	}
	sort.Strings(info.ExitBlockIDs)
	info.CyclomaticComplexity = info.ComputeComplexity()
	info.FillPredecessors()
	return info, nil
}

// MustEdgeList is FromEdgeList for fixtures; it panics on malformed input.
func MustEdgeList(name string, edges ...string) *CFGInfo {
	info, err := FromEdgeList(name, edges...)
	if err != nil {
		panic(err)
	}
	return info
}
