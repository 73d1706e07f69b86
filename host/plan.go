package host

import "sync"

// TestPlan is the tree of identifiers the host is about to execute.
// Identifiers registered dynamically are added while the plan runs.
type TestPlan struct {
	mu       sync.RWMutex
	byID     map[string]*TestIdentifier
	roots    []*TestIdentifier
	children map[string][]*TestIdentifier
}

// NewTestPlan builds a plan from identifiers listed parents first
func NewTestPlan(ids ...*TestIdentifier) *TestPlan {
	p := &TestPlan{
		byID:     make(map[string]*TestIdentifier),
		children: make(map[string][]*TestIdentifier),
	}
	for _, id := range ids {
		p.Add(id)
	}
	return p
}

// Add registers an identifier. An identifier whose parent is unknown is a root.
func (p *TestPlan) Add(id *TestIdentifier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byID[id.UniqueID]; exists {
		return
	}
	p.byID[id.UniqueID] = id
	if _, ok := p.byID[id.ParentID]; id.ParentID == "" || !ok {
		p.roots = append(p.roots, id)
		return
	}
	p.children[id.ParentID] = append(p.children[id.ParentID], id)
}

func (p *TestPlan) Roots() []*TestIdentifier {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*TestIdentifier(nil), p.roots...)
}

func (p *TestPlan) Children(parent *TestIdentifier) []*TestIdentifier {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*TestIdentifier(nil), p.children[parent.UniqueID]...)
}

func (p *TestPlan) Get(uniqueID string) (*TestIdentifier, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.byID[uniqueID]
	return id, ok
}

// Size returns the number of identifiers in the plan
func (p *TestPlan) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byID)
}
