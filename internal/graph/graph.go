// Package graph implements the SODG store: integer-addressed vertices
// carrying optional byte payloads, connected by named directed edges.
package graph

import (
	"errors"
	"fmt"
	"sort"
)

// Root is the id of the root vertex. Its outgoing edges are the
// program's top-level objects.
const Root uint32 = 0

// System attribute names with reserved meaning during evaluation.
const (
	AttrRho    = "ρ" // enclosing object
	AttrLambda = "λ" // native function binding
	AttrDelta  = "Δ" // data carrier
	AttrPi     = "π" // prototype of a copy
	AttrXi     = "ξ" // self reference
	AttrBeta   = "β" // call marker
	AttrEps    = "ε" // application marker
)

// Alpha returns the name of the i-th positional argument attribute.
func Alpha(i int) string {
	return fmt.Sprintf("α%d", i)
}

var (
	ErrDuplicateVertex = errors.New("vertex already exists")
	ErrVertexNotFound  = errors.New("vertex not found")
	ErrDuplicateAttr   = errors.New("attribute already bound")
	ErrNameCollision   = errors.New("root name collision")
)

type vertex struct {
	attrs    map[string]uint32
	data     Data
	hasData  bool
	computed bool
}

func newVertex() *vertex {
	return &vertex{attrs: make(map[string]uint32)}
}

// Graph is a flat arena of vertices addressed by integer id. It only
// grows: no operation removes a vertex or an edge.
type Graph struct {
	vertices map[uint32]*vertex
	latest   uint32
}

// New creates a graph holding only the root vertex.
func New() *Graph {
	g := &Graph{vertices: make(map[uint32]*vertex)}
	g.vertices[Root] = newVertex()
	return g
}

// NextID reserves and returns an id not yet taken by any vertex.
// Allocation is monotonic, so a fixed sequence of operations yields
// the same ids every run.
func (g *Graph) NextID() uint32 {
	for {
		g.latest++
		if _, ok := g.vertices[g.latest]; !ok {
			return g.latest
		}
	}
}

// Add creates an empty vertex with the given id.
func (g *Graph) Add(id uint32) error {
	if _, ok := g.vertices[id]; ok {
		return fmt.Errorf("adding ν%d: %w", id, ErrDuplicateVertex)
	}
	g.vertices[id] = newVertex()
	return nil
}

// Has reports whether the vertex exists.
func (g *Graph) Has(id uint32) bool {
	_, ok := g.vertices[id]
	return ok
}

// Bind creates the named edge between two existing vertices. The name
// must not be taken yet on the source vertex.
func (g *Graph) Bind(from, to uint32, name string) error {
	src, ok := g.vertices[from]
	if !ok {
		return fmt.Errorf("binding %q from ν%d: %w", name, from, ErrVertexNotFound)
	}
	if _, ok := g.vertices[to]; !ok {
		return fmt.Errorf("binding %q to ν%d: %w", name, to, ErrVertexNotFound)
	}
	if _, ok := src.attrs[name]; ok {
		return fmt.Errorf("binding %q from ν%d: %w", name, from, ErrDuplicateAttr)
	}
	src.attrs[name] = to
	return nil
}

// Put attaches or replaces the raw payload of the vertex.
func (g *Graph) Put(id uint32, d Data) error {
	v, ok := g.vertices[id]
	if !ok {
		return fmt.Errorf("putting data into ν%d: %w", id, ErrVertexNotFound)
	}
	v.data = append(Data(nil), d...)
	v.hasData = true
	v.computed = false
	return nil
}

// PutComputed stores a payload produced by evaluation. Same as Put,
// but the payload is flagged as computed so that a persisted graph
// remembers which values are memoization caches.
func (g *Graph) PutComputed(id uint32, d Data) error {
	v, ok := g.vertices[id]
	if !ok {
		return fmt.Errorf("caching data on ν%d: %w", id, ErrVertexNotFound)
	}
	v.data = append(Data(nil), d...)
	v.hasData = true
	v.computed = true
	return nil
}

// Attr returns the target of the named edge departing from the vertex.
func (g *Graph) Attr(from uint32, name string) (uint32, bool) {
	v, ok := g.vertices[from]
	if !ok {
		return 0, false
	}
	to, ok := v.attrs[name]
	return to, ok
}

// Data returns the raw payload of the vertex, if any. The returned
// slice is shared; callers must not modify it.
func (g *Graph) Data(id uint32) (Data, bool) {
	v, ok := g.vertices[id]
	if !ok || !v.hasData {
		return nil, false
	}
	return v.data, true
}

// Computed reports whether the payload of the vertex was produced by
// evaluation rather than by an explicit Put.
func (g *Graph) Computed(id uint32) bool {
	v, ok := g.vertices[id]
	return ok && v.computed
}

// Len returns the number of vertices.
func (g *Graph) Len() int {
	return len(g.vertices)
}

// Vertices returns all vertex ids in ascending order.
func (g *Graph) Vertices() []uint32 {
	ids := make([]uint32, 0, len(g.vertices))
	for id := range g.vertices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Attrs returns the sorted names of all edges departing from the
// vertex.
func (g *Graph) Attrs(id uint32) []string {
	v, ok := g.vertices[id]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(v.attrs))
	for name := range v.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate returns a description of every edge pointing at a missing
// vertex. Graphs built through Add and Bind have none; the check
// guards graphs reconstructed from external files.
func (g *Graph) Validate() []string {
	var problems []string
	for _, id := range g.Vertices() {
		v := g.vertices[id]
		for _, name := range g.Attrs(id) {
			if !g.Has(v.attrs[name]) {
				problems = append(problems, fmt.Sprintf("edge %q from ν%d arrives at missing ν%d", name, id, v.attrs[name]))
			}
		}
	}
	return problems
}
