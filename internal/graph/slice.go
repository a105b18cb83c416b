package graph

import "fmt"

// Slice returns a new graph containing only the vertices reachable
// from the given start vertex, ignoring ρ back-references so that a
// sub-object does not drag its whole enclosing scope along. Vertex
// ids are preserved; edges are kept only when both endpoints survive.
// A slice taken anywhere but at the root has no ν0, so Merge rejects
// it.
func (g *Graph) Slice(start uint32) (*Graph, error) {
	if !g.Has(start) {
		return nil, fmt.Errorf("slicing at ν%d: %w", start, ErrVertexNotFound)
	}
	done := map[uint32]bool{start: true}
	todo := []uint32{start}
	for len(todo) > 0 {
		v := todo[len(todo)-1]
		todo = todo[:len(todo)-1]
		for name, to := range g.vertices[v].attrs {
			if name == AttrRho || done[to] {
				continue
			}
			done[to] = true
			todo = append(todo, to)
		}
	}
	sub := &Graph{vertices: make(map[uint32]*vertex), latest: g.latest}
	for id := range done {
		src := g.vertices[id]
		v := newVertex()
		if src.hasData {
			v.data = append(Data(nil), src.data...)
			v.hasData = true
			v.computed = src.computed
		}
		for name, to := range src.attrs {
			if done[to] {
				v.attrs[name] = to
			}
		}
		sub.vertices[id] = v
	}
	return sub, nil
}
