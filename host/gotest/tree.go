package gotest

import (
	"errors"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-outcome/host"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

type nodeKind int

const (
	kindTest nodeKind = iota
	kindRowContainer
	kindRow
	kindStep
)

// node is a test or subtest of a package
type node struct {
	pkg      string
	name     string
	kind     nodeKind
	parent   *node
	children []*node
	output   []string
	action   string
	id       *host.TestIdentifier

	// ran is set by a run event. runTime and endTime are the times of the
	// run and terminal events.
	ran     bool
	runTime time.Time
	endTime time.Time

	replayed bool
	started  bool
	finished bool
	skipped  bool
}

func (n *node) depth() int {
	return strings.Count(n.name, "/")
}

func (n *node) shortName() string {
	if i := strings.LastIndex(n.name, "/"); i >= 0 {
		return n.name[i+1:]
	}
	return n.name
}

func (n *node) root() *node {
	for n.parent != nil {
		n = n.parent
	}
	return n
}

// leaf returns the nearest node, n included, that is reported as a test
func (n *node) leaf() *node {
	for n.kind == kindStep && n.parent != nil {
		n = n.parent
	}
	return n
}

// suppressed reports whether n or one of its ancestors was reported as skipped
func (n *node) suppressed() bool {
	for ; n != nil; n = n.parent {
		if n.skipped {
			return true
		}
	}
	return false
}

// message returns the cleaned output of the node, or of its first failed
// subtest when the node printed nothing itself
func (n *node) message() string {
	if msg := cleanOutput(n.output); msg != "" {
		return msg
	}
	for _, child := range n.children {
		if child.action == ActionFail {
			if msg := child.message(); msg != "" {
				return msg
			}
		}
	}
	return ""
}

func (n *node) result() host.ExecutionResult {
	switch n.action {
	case ActionPass:
		return host.Successful()
	case ActionSkip:
		reason := n.message()
		if reason == "" {
			reason = "test skipped"
		}
		return host.Aborted(errors.New(reason))
	default:
		return host.Failed(classifyFailure(n.message()))
	}
}

// stepResult renders the step.finish value of a step subtest
func (n *node) stepResult() string {
	switch n.action {
	case ActionPass:
		return string(types.ResultSuccess)
	case ActionSkip:
		return string(types.ResultSkipped)
	}
	result := types.ResultForError(classifyFailure(n.message()))
	first, _, _ := strings.Cut(n.message(), "\n")
	if first == "" {
		return string(result)
	}
	return string(result) + ": " + first
}

type pkgNode struct {
	name  string
	id    *host.TestIdentifier
	tests map[string]*node
	roots []*node

	started  bool
	finished bool
}

func (p *pkgNode) node(name string) *node {
	if n, ok := p.tests[name]; ok {
		return n
	}
	n := &node{pkg: p.name, name: name}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		n.parent = p.node(name[:i])
		n.parent.children = append(n.parent.children, n)
	} else {
		p.roots = append(p.roots, n)
	}
	p.tests[name] = n
	return n
}

type tree struct {
	engine   *host.TestIdentifier
	packages map[string]*pkgNode
	order    []*pkgNode
}

func newTree(events []TestEvent) *tree {
	t := &tree{
		engine:   &host.TestIdentifier{UniqueID: EngineID, DisplayName: "go test", Type: host.TypeContainer},
		packages: make(map[string]*pkgNode),
	}
	for _, ev := range events {
		pkg, ok := t.packages[ev.Package]
		if !ok {
			pkg = &pkgNode{name: ev.Package, tests: make(map[string]*node)}
			t.packages[ev.Package] = pkg
			t.order = append(t.order, pkg)
		}
		if ev.Test == "" {
			continue
		}
		n := pkg.node(ev.Test)
		switch {
		case ev.Action == ActionRun:
			n.ran = true
			n.runTime = ev.Time
		case ev.Action == ActionOutput:
			n.output = append(n.output, ev.Output)
		case isTerminal(ev.Action):
			n.action = ev.Action
			n.endTime = ev.Time
		}
	}
	return t
}

// classify assigns node kinds. A top-level test keyed in dataDriven that has
// subtests is a row container.
func (t *tree) classify(dataDriven map[string]bool) {
	for _, pkg := range t.order {
		for _, n := range pkg.tests {
			root := n.root()
			rows := dataDriven[pkg.name+"."+root.name] && len(root.children) > 0
			switch {
			case n.depth() == 0 && rows:
				n.kind = kindRowContainer
			case n.depth() == 0:
				n.kind = kindTest
			case n.depth() == 1 && rows:
				n.kind = kindRow
			default:
				n.kind = kindStep
			}
		}
	}
}

// plan creates the identifiers of the packages, tests and rows
func (t *tree) plan() *host.TestPlan {
	ids := []*host.TestIdentifier{t.engine}
	for _, pkg := range t.order {
		pkg.id = &host.TestIdentifier{
			UniqueID:    "[package:" + pkg.name + "]",
			ParentID:    t.engine.UniqueID,
			DisplayName: pkg.name,
			Type:        host.TypeContainer,
			Source:      &host.ClassSource{ClassName: pkg.name},
		}
		ids = append(ids, pkg.id)
		for _, root := range pkg.roots {
			ids = appendIdentifiers(ids, pkg, root)
		}
	}
	return host.NewTestPlan(ids...)
}

func appendIdentifiers(ids []*host.TestIdentifier, pkg *pkgNode, n *node) []*host.TestIdentifier {
	if n.kind == kindStep {
		return ids
	}
	typ := host.TypeTest
	parentID := pkg.id.UniqueID
	display := n.name
	switch n.kind {
	case kindRowContainer:
		typ = host.TypeContainer
	case kindRow:
		parentID = n.parent.id.UniqueID
		display = n.shortName()
	}
	n.id = &host.TestIdentifier{
		UniqueID:    pkg.id.UniqueID + "/" + n.name,
		ParentID:    parentID,
		DisplayName: display,
		Type:        typ,
		Source:      &host.MethodSource{ClassName: pkg.name, MethodName: n.root().name},
	}
	ids = append(ids, n.id)
	for _, child := range n.children {
		ids = appendIdentifiers(ids, pkg, child)
	}
	return ids
}
