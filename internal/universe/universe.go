// Package universe evaluates SODG graphs: it resolves locators over
// the attribute structure and dataizes vertices down to byte values.
//
// Evaluation is lazy and memoized. A vertex carrying a payload is its
// own value. A vertex with a λ edge dispatches into the native
// registry, feeding it the ρ and α arguments of the calling object,
// and caches the result there. A vertex with a π edge is a copy: it
// evaluates as its prototype, with ξ pinned to the copy so that
// closures see the arguments supplied at copy time.
package universe

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/objectionary/reo/internal/atom"
	"github.com/objectionary/reo/internal/graph"
)

var (
	// ErrAttrNotFound reports an attribute no resolution rule could
	// satisfy.
	ErrAttrNotFound = errors.New("attribute not found")
	// ErrCycle reports a vertex whose evaluation requires itself.
	ErrCycle = errors.New("cyclic dataization")
	// ErrBadLocator reports an empty or unparsable locator.
	ErrBadLocator = errors.New("bad locator")
)

// searchPrefix marks λ names that re-enter locator resolution instead
// of dispatching into the native registry.
const searchPrefix = "S/"

// Universe owns one graph under evaluation, together with its native
// registry and the record of terminally failed vertices.
type Universe struct {
	g      *graph.Graph
	reg    *atom.Registry
	failed map[uint32]error
}

// New wraps a graph with the default native registry writing to
// standard output.
func New(g *graph.Graph) *Universe {
	return NewWithRegistry(g, atom.Default(os.Stdout))
}

// NewWithRegistry wraps a graph with a custom registry.
func NewWithRegistry(g *graph.Graph, reg *atom.Registry) *Universe {
	return &Universe{g: g, reg: reg, failed: make(map[uint32]error)}
}

// context carries the ξ binding through one evaluation.
type context struct {
	self uint32
}

// visit identifies one in-flight evaluation. Copies share prototype
// vertices, so the vertex alone is not the unit of cycle detection;
// the pair of vertex and self is.
type visit struct {
	v, self uint32
}

// Dataize resolves the locator from the root and evaluates the vertex
// it names down to its byte value. Results are memoized on the
// evaluated objects; a failure is terminal for its object and is
// returned again on re-request.
func (u *Universe) Dataize(locator string) (graph.Data, error) {
	visiting := make(map[visit]bool)
	v, ctx, err := u.find(graph.Root, locator, visiting)
	if err != nil {
		return nil, fmt.Errorf("dataizing %q: %w", locator, err)
	}
	d, err := u.value(v, ctx, visiting)
	if err != nil {
		return nil, fmt.Errorf("dataizing %q: %w", locator, err)
	}
	return d, nil
}

// Find resolves a locator from the root to a vertex id. Search atoms
// along the path are asked, but nothing is dataized.
func (u *Universe) Find(locator string) (uint32, error) {
	v, _, err := u.find(graph.Root, locator, make(map[visit]bool))
	return v, err
}

// value evaluates one vertex under the given context.
func (u *Universe) value(v uint32, ctx context, visiting map[visit]bool) (graph.Data, error) {
	if d, ok := u.g.Data(v); ok {
		return d, nil
	}
	if err, ok := u.failed[v]; ok {
		return nil, err
	}
	key := visit{v: v, self: ctx.self}
	if visiting[key] {
		return nil, u.fail(ctx.self, fmt.Errorf("ν%d requires itself: %w", v, ErrCycle))
	}
	visiting[key] = true
	defer delete(visiting, key)
	d, err := u.eval(v, ctx, visiting)
	if err != nil {
		return nil, u.fail(ctx.self, err)
	}
	return d, nil
}

// fail records the first terminal failure of an object.
func (u *Universe) fail(self uint32, err error) error {
	if _, ok := u.failed[self]; !ok {
		u.failed[self] = err
	}
	return err
}

func (u *Universe) eval(v uint32, ctx context, visiting map[visit]bool) (graph.Data, error) {
	if l, ok := u.g.Attr(v, graph.AttrLambda); ok {
		name, ok := u.g.Data(l)
		if !ok {
			return nil, fmt.Errorf("λ target ν%d of ν%d carries no function name: %w", l, v, ErrAttrNotFound)
		}
		return u.dispatch(string(name), ctx, visiting)
	}
	if p, ok := u.g.Attr(v, graph.AttrPi); ok {
		return u.value(p, ctx, visiting)
	}
	if c, ok := u.g.Attr(v, graph.AttrDelta); ok {
		return u.value(c, context{self: c}, visiting)
	}
	return nil, fmt.Errorf("no data in ν%d: %w", v, ErrAttrNotFound)
}

// dispatch runs a λ binding under the calling object ctx.self. Search
// bindings re-enter locator resolution; native ones are marshaled and
// called through the registry, and their result becomes the calling
// object's cached payload.
func (u *Universe) dispatch(name string, ctx context, visiting map[visit]bool) (graph.Data, error) {
	if loc, ok := strings.CutPrefix(name, searchPrefix); ok {
		t, tctx, err := u.find(ctx.self, loc, visiting)
		if err != nil {
			return nil, err
		}
		return u.value(t, tctx, visiting)
	}
	n, ok := u.reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("λ %q at ν%d: %w", name, ctx.self, atom.ErrUnknownAtom)
	}
	args, err := u.marshal(name, n.Method, ctx, visiting)
	if err != nil {
		return nil, err
	}
	d, err := n.Fn(args)
	if err != nil {
		return nil, fmt.Errorf("λ %q at ν%d: %w", name, ctx.self, err)
	}
	if err := u.g.PutComputed(ctx.self, d); err != nil {
		return nil, err
	}
	return d, nil
}

// marshal dataizes the arguments of a native call: for methods the ρ
// attribute of the calling object first, then α0, α1, ... up to the
// first unbound index, left to right.
func (u *Universe) marshal(name string, method bool, ctx context, visiting map[visit]bool) ([]graph.Data, error) {
	var args []graph.Data
	if method {
		r, ok := u.g.Attr(ctx.self, graph.AttrRho)
		if !ok {
			return nil, fmt.Errorf("λ %q at ν%d has no ρ to work on: %w", name, ctx.self, atom.ErrTypeMismatch)
		}
		d, err := u.value(r, context{self: r}, visiting)
		if err != nil {
			return nil, err
		}
		args = append(args, d)
	}
	for i := 0; ; i++ {
		a, ok := u.g.Attr(ctx.self, graph.Alpha(i))
		if !ok {
			break
		}
		d, err := u.value(a, context{self: a}, visiting)
		if err != nil {
			return nil, err
		}
		args = append(args, d)
	}
	return args, nil
}
