package graph

import "fmt"

// Merge folds another graph into this one. Every vertex of the other
// graph except the root is assigned a fresh id and all edges are
// re-pointed accordingly, so the two graphs cannot clash. Root edges
// are merged by name: a top-level name defined by both graphs fails
// with ErrNameCollision before anything is mutated. Both sides must
// carry ν0; a rootless graph, such as an off-root Slice, is rejected.
func (g *Graph) Merge(other *Graph) error {
	if !g.Has(Root) || !other.Has(Root) {
		return fmt.Errorf("merging needs ν%d on both sides: %w", Root, ErrVertexNotFound)
	}
	for name := range other.vertices[Root].attrs {
		if _, ok := g.vertices[Root].attrs[name]; ok {
			return fmt.Errorf("merging top-level %q: %w", name, ErrNameCollision)
		}
	}
	matcher := map[uint32]uint32{Root: Root}
	for _, id := range other.Vertices() {
		if id == Root {
			continue
		}
		fresh := g.NextID()
		matcher[id] = fresh
		src := other.vertices[id]
		v := newVertex()
		if src.hasData {
			v.data = append(Data(nil), src.data...)
			v.hasData = true
			v.computed = src.computed
		}
		g.vertices[fresh] = v
	}
	root := other.vertices[Root]
	if root.hasData && !g.vertices[Root].hasData {
		g.vertices[Root].data = append(Data(nil), root.data...)
		g.vertices[Root].hasData = true
		g.vertices[Root].computed = root.computed
	}
	for _, id := range other.Vertices() {
		src := other.vertices[id]
		dst := g.vertices[matcher[id]]
		for name, to := range src.attrs {
			dst.attrs[name] = matcher[to]
		}
	}
	return nil
}
