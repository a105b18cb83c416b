package universe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/objectionary/reo/internal/graph"
)

// find walks a dot-separated locator from the start vertex. Φ and Q
// jump to the root, ξ to the current self, ν<id> to an absolute
// vertex. A Δ segment follows an explicit Δ edge when one exists and
// otherwise stays put, so "foo.Δ" works for vertices that carry their
// payload directly. Any other segment is an attribute name resolved
// through resolve.
//
// The returned context pins ξ for the subsequent evaluation of the
// found vertex.
func (u *Universe) find(start uint32, locator string, visiting map[visit]bool) (uint32, context, error) {
	ctx := context{self: start}
	if locator == "" {
		return 0, ctx, fmt.Errorf("empty locator: %w", ErrBadLocator)
	}
	cur := start
	if !u.g.Has(cur) {
		return 0, ctx, fmt.Errorf("ν%d is absent: %w", cur, graph.ErrVertexNotFound)
	}
	for _, k := range strings.Split(locator, ".") {
		switch {
		case k == "":
			return 0, ctx, fmt.Errorf("empty segment in %q: %w", locator, ErrBadLocator)
		case k == "Φ" || k == "Q":
			cur = graph.Root
			ctx.self = graph.Root
		case k == graph.AttrXi || k == "𝜉":
			cur = ctx.self
		case k == graph.AttrDelta:
			if c, ok := u.g.Attr(cur, graph.AttrDelta); ok {
				cur = c
				ctx.self = c
			}
		case strings.HasPrefix(k, "ν"):
			n, err := strconv.ParseUint(strings.TrimPrefix(k, "ν"), 10, 32)
			if err != nil {
				return 0, ctx, fmt.Errorf("segment %q in %q: %w", k, locator, ErrBadLocator)
			}
			if !u.g.Has(uint32(n)) {
				return 0, ctx, fmt.Errorf("segment %q in %q: %w", k, locator, graph.ErrVertexNotFound)
			}
			cur = uint32(n)
			ctx.self = cur
		default:
			t, tctx, err := u.resolve(cur, k, visiting)
			if err != nil {
				return 0, ctx, fmt.Errorf("resolving %q in %q: %w", k, locator, err)
			}
			cur = t
			ctx = tctx
		}
	}
	return cur, ctx, nil
}

// resolve finds attribute k on v: first in the object itself and its
// prototypes, then climbing ρ into enclosing objects. The climb is
// bounded by the graph size.
func (u *Universe) resolve(v uint32, k string, visiting map[visit]bool) (uint32, context, error) {
	limit := u.g.Len() + 1
	scope := v
	for climbs := 0; climbs < limit; climbs++ {
		t, tctx, found, err := u.lookup(scope, k, visiting)
		if err != nil {
			return 0, context{self: v}, err
		}
		if found {
			return t, tctx, nil
		}
		r, ok := u.g.Attr(scope, graph.AttrRho)
		if !ok {
			break
		}
		scope = r
	}
	return 0, context{self: v}, fmt.Errorf("attribute %q at ν%d: %w", k, v, ErrAttrNotFound)
}

// lookup searches one scope for attribute k. A direct edge wins and
// rebinds ξ to the target. Otherwise the π prototype chain is walked;
// a hit on a prototype keeps ξ at the scope, which is what makes a
// copy see its own arguments through inherited attributes. When a
// chain member carries a search λ, the search is asked from the scope
// and the lookup continues where it pointed.
func (u *Universe) lookup(scope uint32, k string, visiting map[visit]bool) (uint32, context, bool, error) {
	none := context{self: scope}
	limit := u.g.Len() + 1
	cur := scope
	for hop := 0; hop < limit; hop++ {
		if t, ok := u.g.Attr(cur, k); ok {
			if cur == scope {
				return t, context{self: t}, true, nil
			}
			return t, context{self: scope}, true, nil
		}
		if loc, ok := u.searchName(cur); ok {
			key := visit{v: cur, self: scope}
			if visiting[key] {
				return 0, none, false, fmt.Errorf("search at ν%d requires itself: %w", cur, ErrCycle)
			}
			visiting[key] = true
			w, _, err := u.find(scope, loc, visiting)
			if err != nil {
				delete(visiting, key)
				return 0, none, false, err
			}
			t, tctx, found, err := u.lookup(w, k, visiting)
			delete(visiting, key)
			return t, tctx, found, err
		}
		p, ok := u.g.Attr(cur, graph.AttrPi)
		if !ok {
			break
		}
		cur = p
	}
	return 0, none, false, nil
}

// searchName reports the locator of a search λ bound at v, if any.
func (u *Universe) searchName(v uint32) (string, bool) {
	l, ok := u.g.Attr(v, graph.AttrLambda)
	if !ok {
		return "", false
	}
	d, ok := u.g.Data(l)
	if !ok {
		return "", false
	}
	return strings.CutPrefix(string(d), searchPrefix)
}
