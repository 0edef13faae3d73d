package cfg

import (
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// jumpTarget is an enclosing statement that break (and, for loops, continue)
// can leave.
type jumpTarget struct {
	label      string
	breakTo    *CFGBlock
	continueTo *CFGBlock
}

type pendingGoto struct {
	from  *CFGBlock
	label string
}

type goCFGExtractor struct {
	content []byte
	blocks  map[string]*CFGBlock
	order   []string
	edges   []CFGEdge
	blockID int
	exit    *CFGBlock
	targets []jumpTarget
	labels  map[string]*CFGBlock
	gotos   []pendingGoto
}

func newGoCFGExtractor(content []byte) *goCFGExtractor {
	return &goCFGExtractor{
		content: content,
		blocks:  make(map[string]*CFGBlock),
		edges:   make([]CFGEdge, 0),
		labels:  make(map[string]*CFGBlock),
	}
}

func parseGo(content []byte) *sitter.Tree {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())
	return parser.Parse(nil, content)
}

// ExtractGoCFG builds the CFG of one function or method in a Go source file.
// Methods match either by bare name or as "Type.Method".
func ExtractGoCFG(filePath string, functionName string) (*CFGInfo, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", filePath, err)
	}

	tree := parseGo(content)
	defer tree.Close()

	for _, fn := range goFunctions(tree.RootNode()) {
		name := goFunctionName(fn, content)
		if name == functionName || strings.HasSuffix(name, "."+functionName) {
			info, err := extractGoFunction(fn, content, name)
			if err != nil {
				return nil, err
			}
			info.File = filePath
			return info, nil
		}
	}
	return nil, fmt.Errorf("function %q not found in %s", functionName, filePath)
}

// ExtractGoFile builds the CFG of every function and method declared in a Go
// source file, in declaration order.
func ExtractGoFile(filePath string) ([]*CFGInfo, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", filePath, err)
	}
	infos, err := ParseGoSource(content)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", filePath, err)
	}
	for _, info := range infos {
		info.File = filePath
	}
	return infos, nil
}

// ParseGoSource builds the CFG of every function and method in src.
func ParseGoSource(src []byte) ([]*CFGInfo, error) {
	tree := parseGo(src)
	defer tree.Close()

	var infos []*CFGInfo
	for _, fn := range goFunctions(tree.RootNode()) {
		info, err := extractGoFunction(fn, src, goFunctionName(fn, src))
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func goFunctions(root *sitter.Node) []*sitter.Node {
	var fns []*sitter.Node
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child == nil {
			continue
		}
		if child.Type() != "function_declaration" && child.Type() != "method_declaration" {
			continue
		}
		if child.ChildByFieldName("body") == nil {
			continue
		}
		fns = append(fns, child)
	}
	return fns
}

func goFunctionName(fn *sitter.Node, content []byte) string {
	nameNode := fn.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	name := nameNode.Content(content)
	if fn.Type() != "method_declaration" {
		return name
	}

	recv := fn.ChildByFieldName("receiver")
	if recv == nil {
		return name
	}
	for i := 0; i < int(recv.NamedChildCount()); i++ {
		param := recv.NamedChild(i)
		if param == nil || param.Type() != "parameter_declaration" {
			continue
		}
		typ := param.ChildByFieldName("type")
		if typ == nil {
			continue
		}
		recvType := strings.TrimPrefix(typ.Content(content), "*")
		if idx := strings.Index(recvType, "["); idx >= 0 {
			recvType = recvType[:idx]
		}
		return recvType + "." + name
	}
	return name
}

func extractGoFunction(fn *sitter.Node, content []byte, name string) (*CFGInfo, error) {
	body := fn.ChildByFieldName("body")
	if body == nil {
		return nil, fmt.Errorf("function body not found for %s", name)
	}

	e := newGoCFGExtractor(content)
	entry := e.newBlock(BlockTypeEntry, line(fn))
	entry.Statements = append(entry.Statements, "entry")
	e.exit = e.newBlock(BlockTypeExit, int(fn.EndPoint().Row)+1)
	e.exit.Statements = append(e.exit.Statements, "exit")

	if last := e.stmtList(body, entry); last != nil {
		e.addEdge(last, e.exit, EdgeTypeUnconditional, "")
	}
	for _, g := range e.gotos {
		if target, ok := e.labels[g.label]; ok {
			e.addEdge(g.from, target, EdgeTypeGoto, g.label)
		}
	}
	e.dropIfOrphan(e.exit)

	info := &CFGInfo{
		FunctionName: name,
		Blocks:       e.blocksToMap(),
		Edges:        e.edges,
		EntryBlockID: entry.ID,
	}
	if _, ok := info.Blocks[e.exit.ID]; ok {
		info.ExitBlockIDs = []string{e.exit.ID}
	} else {
		succs := info.Successors()
		for _, id := range e.order {
			if len(succs[id]) == 0 {
				info.ExitBlockIDs = append(info.ExitBlockIDs, id)
			}
		}
	}
	info.FillPredecessors()
	info.CyclomaticComplexity = info.ComputeComplexity()
	return info, nil
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// statements returns the statement children of a block or case clause,
// flattening statement_list wrappers and skipping clause headers.
func (e *goCFGExtractor) statements(node *sitter.Node) []*sitter.Node {
	var stmts []*sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil || !child.IsNamed() {
			continue
		}
		if node.FieldNameForChild(i) != "" {
			continue
		}
		switch child.Type() {
		case "comment":
		case "statement_list":
			stmts = append(stmts, e.statements(child)...)
		default:
			stmts = append(stmts, child)
		}
	}
	return stmts
}

func (e *goCFGExtractor) stmtList(node *sitter.Node, cur *CFGBlock) *CFGBlock {
	for _, stmt := range e.statements(node) {
		cur = e.stmt(stmt, cur, "")
	}
	return cur
}

// live returns cur, or a fresh block when the previous statement ended
// control flow and node is therefore only reachable by a jump (or dead).
func (e *goCFGExtractor) live(cur *CFGBlock, node *sitter.Node) *CFGBlock {
	if cur != nil {
		return cur
	}
	return e.newBlock(BlockTypePlain, line(node))
}

func (e *goCFGExtractor) stmt(node *sitter.Node, cur *CFGBlock, label string) *CFGBlock {
	switch node.Type() {
	case "block", "statement_list":
		return e.stmtList(node, cur)
	case "if_statement":
		return e.ifStmt(node, e.live(cur, node))
	case "for_statement":
		return e.forStmt(node, e.live(cur, node), label)
	case "expression_switch_statement", "type_switch_statement":
		return e.switchStmt(node, e.live(cur, node), label)
	case "select_statement":
		return e.selectStmt(node, e.live(cur, node), label)
	case "labeled_statement", "empty_labeled_statement":
		return e.labeledStmt(node, cur)
	case "return_statement":
		cur = e.live(cur, node)
		e.appendStmt(cur, node)
		if cur.Type == BlockTypePlain {
			cur.Type = BlockTypeReturn
		}
		e.addEdge(cur, e.exit, EdgeTypeUnconditional, "")
		return nil
	case "break_statement":
		cur = e.live(cur, node)
		e.appendStmt(cur, node)
		if t := e.findTarget(e.labelOf(node), false); t != nil {
			e.addEdge(cur, t.breakTo, EdgeTypeBreak, "")
		}
		return nil
	case "continue_statement":
		cur = e.live(cur, node)
		e.appendStmt(cur, node)
		if t := e.findTarget(e.labelOf(node), true); t != nil {
			e.addEdge(cur, t.continueTo, EdgeTypeContinue, "")
		}
		return nil
	case "goto_statement":
		cur = e.live(cur, node)
		e.appendStmt(cur, node)
		e.gotos = append(e.gotos, pendingGoto{from: cur, label: e.labelOf(node)})
		return nil
	case "empty_statement":
		return cur
	default:
		cur = e.live(cur, node)
		e.appendStmt(cur, node)
		if e.isPanic(node) {
			e.addEdge(cur, e.exit, EdgeTypeUnconditional, "")
			return nil
		}
		return cur
	}
}

func (e *goCFGExtractor) ifStmt(node *sitter.Node, cur *CFGBlock) *CFGBlock {
	if init := node.ChildByFieldName("initializer"); init != nil {
		e.appendStmt(cur, init)
	}
	cond := ""
	if c := node.ChildByFieldName("condition"); c != nil {
		cond = c.Content(e.content)
	}
	cur.Statements = append(cur.Statements, "if "+cond)
	cur.EndLine = line(node)
	if cur.Type == BlockTypePlain || cur.Type == BlockTypeJoin {
		cur.Type = BlockTypeBranch
	}

	var ends []*CFGBlock
	if consequence := node.ChildByFieldName("consequence"); consequence != nil {
		then := e.newBlock(BlockTypePlain, line(consequence))
		e.addEdge(cur, then, EdgeTypeTrue, cond)
		ends = append(ends, e.stmtList(consequence, then))
	}

	alternative := node.ChildByFieldName("alternative")
	if alternative == nil {
		ends = append(ends, cur)
	} else {
		elseBlock := e.newBlock(BlockTypePlain, line(alternative))
		e.addEdge(cur, elseBlock, EdgeTypeFalse, cond)
		if alternative.Type() == "if_statement" {
			ends = append(ends, e.ifStmt(alternative, elseBlock))
		} else {
			ends = append(ends, e.stmtList(alternative, elseBlock))
		}
	}

	join := e.newBlock(BlockTypeJoin, int(node.EndPoint().Row)+1)
	for i, end := range ends {
		if end == nil {
			continue
		}
		edgeType := EdgeTypeUnconditional
		if end == cur && i == len(ends)-1 {
			edgeType = EdgeTypeFalse
		}
		e.addEdge(end, join, edgeType, "")
	}
	return e.dropIfOrphan(join)
}

func (e *goCFGExtractor) forStmt(node *sitter.Node, cur *CFGBlock, label string) *CFGBlock {
	var clause *sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil || !child.IsNamed() || node.FieldNameForChild(i) == "body" || child.Type() == "comment" {
			continue
		}
		clause = child
	}

	header := e.newBlock(BlockTypeLoopHeader, line(node))
	conditional := false
	var post *sitter.Node
	switch {
	case clause == nil:
		header.Statements = append(header.Statements, "for")
	case clause.Type() == "for_clause":
		if init := clause.ChildByFieldName("initializer"); init != nil {
			e.appendStmt(cur, init)
		}
		cond := clause.ChildByFieldName("condition")
		if cond != nil {
			header.Statements = append(header.Statements, "for "+cond.Content(e.content))
			conditional = true
		} else {
			header.Statements = append(header.Statements, "for")
		}
		post = clause.ChildByFieldName("update")
	case clause.Type() == "range_clause":
		header.Statements = append(header.Statements, "for "+clause.Content(e.content))
		conditional = true
	default:
		header.Statements = append(header.Statements, "for "+clause.Content(e.content))
		conditional = true
	}
	e.addEdge(cur, header, EdgeTypeUnconditional, "")

	continueTo := header
	if post != nil {
		continueTo = e.newBlock(BlockTypePlain, line(post))
		e.appendStmt(continueTo, post)
	}

	after := e.newBlock(BlockTypeJoin, int(node.EndPoint().Row)+1)
	body := e.newBlock(BlockTypeLoopBody, line(node))
	e.addEdge(header, body, EdgeTypeTrue, "")
	if conditional {
		e.addEdge(header, after, EdgeTypeFalse, "")
	}

	e.targets = append(e.targets, jumpTarget{label: label, breakTo: after, continueTo: continueTo})
	end := body
	if b := node.ChildByFieldName("body"); b != nil {
		end = e.stmtList(b, body)
	}
	e.targets = e.targets[:len(e.targets)-1]

	if end != nil {
		edgeType := EdgeTypeUnconditional
		if continueTo == header {
			edgeType = EdgeTypeBackEdge
		}
		e.addEdge(end, continueTo, edgeType, "")
	}
	if post != nil && e.dropIfOrphan(continueTo) != nil {
		e.addEdge(continueTo, header, EdgeTypeBackEdge, "")
	}
	return e.dropIfOrphan(after)
}

func (e *goCFGExtractor) switchStmt(node *sitter.Node, cur *CFGBlock, label string) *CFGBlock {
	if init := node.ChildByFieldName("initializer"); init != nil {
		e.appendStmt(cur, init)
	}
	subject := ""
	if v := node.ChildByFieldName("value"); v != nil {
		subject = " " + v.Content(e.content)
	} else if a := node.ChildByFieldName("alias"); a != nil {
		subject = " " + a.Content(e.content)
	}
	cur.Statements = append(cur.Statements, "switch"+subject)
	cur.EndLine = line(node)
	if cur.Type == BlockTypePlain || cur.Type == BlockTypeJoin {
		cur.Type = BlockTypeBranch
	}

	var clauses []*sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "expression_case", "type_case", "default_case":
			clauses = append(clauses, child)
		}
	}
	return e.arms(node, cur, clauses, label, true)
}

func (e *goCFGExtractor) selectStmt(node *sitter.Node, cur *CFGBlock, label string) *CFGBlock {
	cur.Statements = append(cur.Statements, "select")
	cur.EndLine = line(node)
	if cur.Type == BlockTypePlain || cur.Type == BlockTypeJoin {
		cur.Type = BlockTypeBranch
	}

	var clauses []*sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "communication_case", "default_case":
			clauses = append(clauses, child)
		}
	}
	return e.arms(node, cur, clauses, label, false)
}

// arms wires the clauses of a switch or select. A switch without a default
// clause also falls through to the statement after it; a select blocks.
func (e *goCFGExtractor) arms(node *sitter.Node, cur *CFGBlock, clauses []*sitter.Node, label string, isSwitch bool) *CFGBlock {
	after := e.newBlock(BlockTypeJoin, int(node.EndPoint().Row)+1)
	e.targets = append(e.targets, jumpTarget{label: label, breakTo: after})

	caseBlocks := make([]*CFGBlock, len(clauses))
	hasDefault := false
	for i, clause := range clauses {
		caseBlocks[i] = e.newBlock(BlockTypePlain, line(clause))
		cond := "default"
		if clause.Type() == "default_case" {
			hasDefault = true
		} else {
			cond = e.clauseHeader(clause)
		}
		caseBlocks[i].Statements = append(caseBlocks[i].Statements, "case "+cond)
		e.addEdge(cur, caseBlocks[i], EdgeTypeCase, cond)
	}
	if isSwitch && !hasDefault {
		e.addEdge(cur, after, EdgeTypeFalse, "default")
	}

	for i, clause := range clauses {
		stmts := e.statements(clause)
		end := caseBlocks[i]
		for _, s := range stmts {
			end = e.stmt(s, end, "")
		}
		if end == nil {
			continue
		}
		if len(stmts) > 0 && stmts[len(stmts)-1].Type() == "fallthrough_statement" && i+1 < len(caseBlocks) {
			e.addEdge(end, caseBlocks[i+1], EdgeTypeFallthrough, "")
			continue
		}
		e.addEdge(end, after, EdgeTypeUnconditional, "")
	}

	e.targets = e.targets[:len(e.targets)-1]
	return e.dropIfOrphan(after)
}

func (e *goCFGExtractor) clauseHeader(clause *sitter.Node) string {
	var parts []string
	for i := 0; i < int(clause.ChildCount()); i++ {
		if clause.FieldNameForChild(i) == "" {
			continue
		}
		if child := clause.Child(i); child != nil {
			parts = append(parts, child.Content(e.content))
		}
	}
	return strings.Join(parts, ", ")
}

func (e *goCFGExtractor) labeledStmt(node *sitter.Node, cur *CFGBlock) *CFGBlock {
	labelNode := node.ChildByFieldName("label")
	if labelNode == nil {
		return cur
	}
	name := labelNode.Content(e.content)

	target := e.newBlock(BlockTypePlain, line(node))
	target.Statements = append(target.Statements, name+":")
	if cur != nil {
		e.addEdge(cur, target, EdgeTypeUnconditional, "")
	}
	e.labels[name] = target

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil || !child.IsNamed() || node.FieldNameForChild(i) == "label" || child.Type() == "comment" {
			continue
		}
		return e.stmt(child, target, name)
	}
	return target
}

func (e *goCFGExtractor) labelOf(node *sitter.Node) string {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(i); child != nil && child.Type() == "label_name" {
			return child.Content(e.content)
		}
	}
	return ""
}

// findTarget resolves a break or continue. Without a label the innermost
// eligible statement wins; continue only considers loops.
func (e *goCFGExtractor) findTarget(label string, isContinue bool) *jumpTarget {
	for i := len(e.targets) - 1; i >= 0; i-- {
		t := &e.targets[i]
		if isContinue && t.continueTo == nil {
			continue
		}
		if label == "" || t.label == label {
			return t
		}
	}
	return nil
}

func (e *goCFGExtractor) isPanic(node *sitter.Node) bool {
	if node.Type() != "expression_statement" || node.NamedChildCount() == 0 {
		return false
	}
	call := node.NamedChild(0)
	if call == nil || call.Type() != "call_expression" {
		return false
	}
	fn := call.ChildByFieldName("function")
	return fn != nil && fn.Content(e.content) == "panic"
}

func (e *goCFGExtractor) appendStmt(b *CFGBlock, node *sitter.Node) {
	stmt := strings.TrimSpace(node.Content(e.content))
	if stmt == "" {
		return
	}
	b.Statements = append(b.Statements, stmt)
	b.EndLine = int(node.EndPoint().Row) + 1
}

func (e *goCFGExtractor) newBlock(blockType BlockType, line int) *CFGBlock {
	e.blockID++
	block := &CFGBlock{
		ID:         fmt.Sprintf("block_%d", e.blockID),
		Type:       blockType,
		StartLine:  line,
		EndLine:    line,
		Statements: make([]string, 0),
	}
	e.blocks[block.ID] = block
	e.order = append(e.order, block.ID)
	return block
}

// dropIfOrphan forgets a block nothing jumps to and returns nil, otherwise it
// returns the block unchanged.
func (e *goCFGExtractor) dropIfOrphan(b *CFGBlock) *CFGBlock {
	for _, edge := range e.edges {
		if edge.TargetID == b.ID {
			return b
		}
	}
	delete(e.blocks, b.ID)
	for i, id := range e.order {
		if id == b.ID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return nil
}

func (e *goCFGExtractor) addEdge(src, dst *CFGBlock, edgeType EdgeType, condition string) {
	e.edges = append(e.edges, CFGEdge{
		SourceID:  src.ID,
		TargetID:  dst.ID,
		EdgeType:  edgeType,
		Condition: condition,
	})
}

func (e *goCFGExtractor) blocksToMap() map[string]CFGBlock {
	result := make(map[string]CFGBlock, len(e.blocks))
	for id, block := range e.blocks {
		result[id] = *block
	}
	return result
}
