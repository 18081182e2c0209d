package engine

import (
	"fmt"

	"github.com/picklr-io/anfctl/internal/ir"
	"github.com/picklr-io/anfctl/internal/resource"
)

// Node is one resource in a plan.
type Node struct {
	Ref  resource.Ref
	Spec ir.Spec
	// DependsOn lists resources that must exist before this one. The parent
	// of Ref is an implicit dependency when it is part of the same plan.
	DependsOn []resource.Ref
}

// DAG represents a directed acyclic graph of resources for dependency ordering.
type DAG struct {
	nodes    map[resource.Ref]*dagNode
	order    []resource.Ref // topological order (creation order)
	revOrder []resource.Ref // reverse topological order (destruction order)
	levels   [][]resource.Ref
}

type dagNode struct {
	ref      resource.Ref
	edges    []resource.Ref // resources this node depends on
	revEdges []resource.Ref // resources that depend on this node
}

// BuildDAG constructs a dependency graph from nodes. Ties between
// independent nodes are broken by declaration order so the result is
// deterministic.
func BuildDAG(nodes []*Node) (*DAG, error) {
	dag := &DAG{
		nodes: make(map[resource.Ref]*dagNode, len(nodes)),
	}

	for _, n := range nodes {
		if _, dup := dag.nodes[n.Ref]; dup {
			return nil, fmt.Errorf("duplicate resource in plan: %s", resource.Format(n.Ref))
		}
		dag.nodes[n.Ref] = &dagNode{ref: n.Ref}
	}

	for _, n := range nodes {
		node := dag.nodes[n.Ref]
		seen := make(map[resource.Ref]bool)
		add := func(dep resource.Ref) {
			if dep == n.Ref || seen[dep] {
				return
			}
			seen[dep] = true
			node.edges = append(node.edges, dep)
		}

		// Implicit containment edge
		if parent, ok := n.Ref.Parent(); ok {
			if _, inPlan := dag.nodes[parent]; inPlan {
				add(parent)
			}
		}

		// Explicit DependsOn
		for _, dep := range n.DependsOn {
			if _, ok := dag.nodes[dep]; !ok {
				return nil, fmt.Errorf("%s %s depends on %s which is not part of the plan",
					n.Ref.Kind, n.Ref.LeafName(), resource.Format(dep))
			}
			add(dep)
		}
	}

	// Build reverse edges in declaration order
	for _, n := range nodes {
		for _, dep := range dag.nodes[n.Ref].edges {
			dag.nodes[dep].revEdges = append(dag.nodes[dep].revEdges, n.Ref)
		}
	}

	order, err := dag.topoSort(nodes)
	if err != nil {
		return nil, err
	}
	dag.order = order

	dag.revOrder = make([]resource.Ref, len(order))
	for i, ref := range order {
		dag.revOrder[len(order)-1-i] = ref
	}

	dag.levels = dag.computeLevels()
	return dag, nil
}

// CreationOrder returns resources in dependency-respecting creation order.
func (d *DAG) CreationOrder() []resource.Ref {
	return d.order
}

// DestructionOrder returns resources in reverse dependency order (safe for deletion).
func (d *DAG) DestructionOrder() []resource.Ref {
	return d.revOrder
}

// Levels groups resources so that every resource only depends on resources
// of earlier levels. Resources within a level are independent.
func (d *DAG) Levels() [][]resource.Ref {
	return d.levels
}

// Dependencies returns the direct dependencies of ref.
func (d *DAG) Dependencies(ref resource.Ref) []resource.Ref {
	if node, ok := d.nodes[ref]; ok {
		return node.edges
	}
	return nil
}

// topoSort performs Kahn's algorithm for topological sorting.
func (d *DAG) topoSort(nodes []*Node) ([]resource.Ref, error) {
	inDegree := make(map[resource.Ref]int, len(d.nodes))
	var queue []resource.Ref
	for _, n := range nodes {
		inDegree[n.Ref] = len(d.nodes[n.Ref].edges)
		if inDegree[n.Ref] == 0 {
			queue = append(queue, n.Ref)
		}
	}

	sorted := make([]resource.Ref, 0, len(nodes))
	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		sorted = append(sorted, ref)

		for _, dependent := range d.nodes[ref].revEdges {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(sorted) != len(d.nodes) {
		return nil, fmt.Errorf("dependency cycle detected in resource graph")
	}
	return sorted, nil
}

func (d *DAG) computeLevels() [][]resource.Ref {
	level := make(map[resource.Ref]int, len(d.order))
	var levels [][]resource.Ref
	for _, ref := range d.order {
		l := 0
		for _, dep := range d.nodes[ref].edges {
			if level[dep]+1 > l {
				l = level[dep] + 1
			}
		}
		level[ref] = l
		if l == len(levels) {
			levels = append(levels, nil)
		}
		levels[l] = append(levels[l], ref)
	}
	return levels
}

// Plan is a validated set of nodes with their dependency graph.
type Plan struct {
	nodes []*Node
	index map[resource.Ref]*Node
	dag   *DAG
}

// NewPlan validates nodes and orders them.
func NewPlan(nodes ...*Node) (*Plan, error) {
	for _, n := range nodes {
		if err := n.Ref.Validate(); err != nil {
			return nil, err
		}
		if n.Spec != nil && n.Spec.Kind() != n.Ref.Kind {
			return nil, fmt.Errorf("%s %s has a %s spec", n.Ref.Kind, n.Ref.LeafName(), n.Spec.Kind())
		}
	}

	dag, err := BuildDAG(nodes)
	if err != nil {
		return nil, err
	}

	p := &Plan{nodes: nodes, index: make(map[resource.Ref]*Node, len(nodes)), dag: dag}
	for _, n := range nodes {
		p.index[n.Ref] = n
	}
	return p, nil
}

// Nodes returns the nodes in declaration order.
func (p *Plan) Nodes() []*Node {
	return p.nodes
}

// Node returns the node for ref, or nil.
func (p *Plan) Node(ref resource.Ref) *Node {
	return p.index[ref]
}

func (p *Plan) CreationOrder() []*Node {
	return p.lookup(p.dag.CreationOrder())
}

func (p *Plan) DestructionOrder() []*Node {
	return p.lookup(p.dag.DestructionOrder())
}

func (p *Plan) Levels() [][]*Node {
	out := make([][]*Node, 0, len(p.dag.Levels()))
	for _, level := range p.dag.Levels() {
		out = append(out, p.lookup(level))
	}
	return out
}

func (p *Plan) Dependencies(ref resource.Ref) []resource.Ref {
	return p.dag.Dependencies(ref)
}

func (p *Plan) lookup(refs []resource.Ref) []*Node {
	out := make([]*Node, len(refs))
	for i, ref := range refs {
		out[i] = p.index[ref]
	}
	return out
}
