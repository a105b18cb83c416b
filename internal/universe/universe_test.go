package universe

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/objectionary/reo/internal/atom"
	"github.com/objectionary/reo/internal/graph"
	"github.com/objectionary/reo/internal/script"
)

func deploy(t *testing.T, text string) *graph.Graph {
	t.Helper()
	g := graph.New()
	if _, err := script.New(text).Deploy(g); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	return g
}

func dataize(t *testing.T, g *graph.Graph, locator string) graph.Data {
	t.Helper()
	d, err := New(g).Dataize(locator)
	if err != nil {
		t.Fatalf("dataize %q: %v", locator, err)
	}
	return d
}

func mustInt(t *testing.T, d graph.Data) int64 {
	t.Helper()
	n, err := d.Int()
	if err != nil {
		t.Fatalf("decoding int: %v", err)
	}
	return n
}

func TestDeltaLiteral(t *testing.T) {
	g := deploy(t, `
		ADD($foo);
		BIND(0, $foo, foo);
		PUT($foo, 'int/42');
	`)
	if n := mustInt(t, dataize(t, g, "Φ.foo")); n != 42 {
		t.Fatalf("got %d, want 42", n)
	}
}

func TestLocatorForms(t *testing.T) {
	g := deploy(t, `
		ADD($foo);
		BIND(0, $foo, foo);
		PUT($foo, 'int/42');
	`)
	for _, locator := range []string{"foo", "Φ.foo", "Q.foo", "ξ.foo", "𝜉.foo", "ν1", "Φ.foo.Δ"} {
		if n := mustInt(t, dataize(t, g, locator)); n != 42 {
			t.Fatalf("%q: got %d, want 42", locator, n)
		}
	}
}

func TestDeltaEdge(t *testing.T) {
	g := deploy(t, `
		ADD($o);
		BIND(0, $o, o);
		ADD($d);
		BIND($o, $d, Δ);
		PUT($d, 'string/hi');
	`)
	if got := string(dataize(t, g, "Φ.o")); got != "hi" {
		t.Fatalf("got %q, want hi", got)
	}
	if got := string(dataize(t, g, "Φ.o.Δ")); got != "hi" {
		t.Fatalf("through Δ segment: got %q, want hi", got)
	}
}

func TestIncrement(t *testing.T) {
	g := deploy(t, `
		ADD($int);
		BIND(0, $int, int);
		ADD($inc);
		BIND($int, $inc, inc);
		ADD($incL);
		BIND($inc, $incL, λ);
		PUT($incL, 'string/inc');
		ADD($i);
		BIND(0, $i, instance);
		BIND($i, $int, π);
		PUT($i, 'int/41');
		ADD($foo);
		BIND(0, $foo, foo);
		BIND($foo, $inc, π);
		BIND($foo, $i, ρ);
	`)
	if n := mustInt(t, dataize(t, g, "Φ.foo")); n != 42 {
		t.Fatalf("got %d, want 42", n)
	}
	if n := mustInt(t, dataize(t, g, "Φ.instance")); n != 41 {
		t.Fatalf("instance disturbed: got %d, want 41", n)
	}
	u := New(g)
	foo, err := u.Find("Φ.foo")
	if err != nil {
		t.Fatalf("find foo: %v", err)
	}
	if !g.Computed(foo) {
		t.Fatalf("result not memoized on the calling object")
	}
	inc, err := u.Find("Φ.int.inc")
	if err != nil {
		t.Fatalf("find inc: %v", err)
	}
	if _, ok := g.Data(inc); ok {
		t.Fatalf("prototype atom vertex gained a payload")
	}
}

func TestSixTimesSeven(t *testing.T) {
	g := deploy(t, `
		ADD($int);
		BIND(0, $int, int);
		ADD($inc);
		BIND($int, $inc, inc);
		ADD($incL);
		BIND($inc, $incL, λ);
		PUT($incL, 'string/inc');
		ADD($times);
		BIND($int, $times, times);
		ADD($timesL);
		BIND($times, $timesL, λ);
		PUT($timesL, 'string/times');
		ADD($six);
		BIND(0, $six, six);
		BIND($six, $int, π);
		PUT($six, 'int/6');
		ADD($seven);
		BIND(0, $seven, seven);
		BIND($seven, $inc, π);
		BIND($seven, $six, ρ);
		ADD($app);
		BIND(0, $app, app);
		BIND($app, $times, π);
		BIND($app, $six, ρ);
		BIND($app, $seven, α0);
	`)
	if n := mustInt(t, dataize(t, g, "Φ.app")); n != 42 {
		t.Fatalf("got %d, want 42", n)
	}
	if n := mustInt(t, dataize(t, g, "Φ.seven")); n != 7 {
		t.Fatalf("inner application: got %d, want 7", n)
	}
	u := New(g)
	seven, err := u.Find("Φ.seven")
	if err != nil {
		t.Fatalf("find seven: %v", err)
	}
	if !g.Computed(seven) {
		t.Fatalf("inner application not memoized")
	}
}

func TestCopyWithContext(t *testing.T) {
	g := deploy(t, `
		ADD($o);
		BIND(0, $o, o);
		ADD($x);
		BIND($o, $x, x);
		ADD($xl);
		BIND($x, $xl, λ);
		PUT($xl, 'string/S/ξ.y');
		ADD($c1);
		BIND(0, $c1, c1);
		BIND($c1, $o, π);
		ADD($v1);
		BIND($c1, $v1, y);
		PUT($v1, 'int/1');
		ADD($c2);
		BIND(0, $c2, c2);
		BIND($c2, $o, π);
		ADD($v2);
		BIND($c2, $v2, y);
		PUT($v2, 'int/2');
	`)
	if n := mustInt(t, dataize(t, g, "Φ.c1.x")); n != 1 {
		t.Fatalf("first copy: got %d, want 1", n)
	}
	if n := mustInt(t, dataize(t, g, "Φ.c2.x")); n != 2 {
		t.Fatalf("second copy: got %d, want 2", n)
	}
}

func TestRhoFallback(t *testing.T) {
	g := deploy(t, `
		ADD($p);
		BIND(0, $p, parent);
		ADD($s);
		BIND($p, $s, shared);
		PUT($s, 'int/42');
		ADD($c);
		BIND($p, $c, child);
		BIND($c, $p, ρ);
	`)
	if n := mustInt(t, dataize(t, g, "Φ.parent.child.shared")); n != 42 {
		t.Fatalf("got %d, want 42", n)
	}
}

func TestSearchAtomInPath(t *testing.T) {
	g := deploy(t, `
		ADD($a);
		BIND(0, $a, a);
		ADD($al);
		BIND($a, $al, λ);
		PUT($al, 'string/S/Φ.b');
		ADD($b);
		BIND(0, $b, b);
		ADD($c);
		BIND($b, $c, c);
		PUT($c, 'int/42');
	`)
	if n := mustInt(t, dataize(t, g, "Φ.a.c")); n != 42 {
		t.Fatalf("got %d, want 42", n)
	}
}

func TestSelfSearchCycle(t *testing.T) {
	g := deploy(t, `
		ADD($a);
		BIND(0, $a, a);
		ADD($al);
		BIND($a, $al, λ);
		PUT($al, 'string/S/ξ');
	`)
	_, err := New(g).Dataize("Φ.a.missing")
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("got %v, want cycle", err)
	}
}

func TestSharedAtomNestedCalls(t *testing.T) {
	g := deploy(t, `
		ADD($p);
		BIND(0, $p, plus);
		ADD($pl);
		BIND($p, $pl, λ);
		PUT($pl, 'string/plus');
		ADD($one);
		BIND(0, $one, one);
		PUT($one, 'int/1');
		ADD($two);
		BIND(0, $two, two);
		PUT($two, 'int/2');
		ADD($three);
		BIND(0, $three, three);
		PUT($three, 'int/3');
		ADD($inner);
		BIND(0, $inner, inner);
		BIND($inner, $p, π);
		BIND($inner, $one, ρ);
		BIND($inner, $two, α0);
		ADD($outer);
		BIND(0, $outer, outer);
		BIND($outer, $p, π);
		BIND($outer, $inner, ρ);
		BIND($outer, $three, α0);
	`)
	if n := mustInt(t, dataize(t, g, "Φ.outer")); n != 6 {
		t.Fatalf("got %d, want 6", n)
	}
}

func TestStdout(t *testing.T) {
	g := deploy(t, `
		ADD($so);
		BIND(0, $so, stdout);
		ADD($sol);
		BIND($so, $sol, λ);
		PUT($sol, 'string/stdout');
		ADD($m);
		BIND(0, $m, m);
		PUT($m, 'string/привет');
		ADD($app);
		BIND(0, $app, app);
		BIND($app, $so, π);
		BIND($app, $m, α0);
	`)
	var buf bytes.Buffer
	u := NewWithRegistry(g, atom.Default(&buf))
	d, err := u.Dataize("Φ.app")
	if err != nil {
		t.Fatalf("dataize: %v", err)
	}
	if buf.String() != "привет" {
		t.Fatalf("wrote %q, want привет", buf.String())
	}
	if string(d) != "привет" {
		t.Fatalf("returned %q, want привет", string(d))
	}
}

func TestCycleIsTerminal(t *testing.T) {
	g := deploy(t, `
		ADD($p);
		BIND(0, $p, proto);
		ADD($pl);
		BIND($p, $pl, λ);
		PUT($pl, 'string/inc');
		ADD($a);
		BIND(0, $a, a);
		BIND($a, $p, π);
		BIND($a, $a, ρ);
	`)
	u := New(g)
	_, err := u.Dataize("Φ.a")
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("got %v, want cycle", err)
	}
	_, again := u.Dataize("Φ.a")
	if !errors.Is(again, ErrCycle) {
		t.Fatalf("second request: got %v, want cycle", again)
	}
	if again.Error() != err.Error() {
		t.Fatalf("recorded failure changed: %q vs %q", err, again)
	}
}

func TestUnknownAtom(t *testing.T) {
	g := deploy(t, `
		ADD($a);
		BIND(0, $a, a);
		ADD($al);
		BIND($a, $al, λ);
		PUT($al, 'string/frobnicate');
		ADD($app);
		BIND(0, $app, app);
		BIND($app, $a, π);
	`)
	_, err := New(g).Dataize("Φ.app")
	if !errors.Is(err, atom.ErrUnknownAtom) {
		t.Fatalf("got %v, want unknown atom", err)
	}
	if !strings.Contains(err.Error(), "frobnicate") {
		t.Fatalf("error does not name the function: %v", err)
	}
}

func TestTypeMismatch(t *testing.T) {
	g := deploy(t, `
		ADD($t);
		BIND(0, $t, times);
		ADD($tl);
		BIND($t, $tl, λ);
		PUT($tl, 'string/times');
		ADD($six);
		BIND(0, $six, six);
		PUT($six, 'int/6');
		ADD($app);
		BIND(0, $app, app);
		BIND($app, $t, π);
		BIND($app, $six, ρ);
	`)
	_, err := New(g).Dataize("Φ.app")
	if !errors.Is(err, atom.ErrTypeMismatch) {
		t.Fatalf("got %v, want type mismatch", err)
	}
}

func TestAttrNotFound(t *testing.T) {
	g := deploy(t, `
		ADD($foo);
		BIND(0, $foo, foo);
		PUT($foo, 'int/42');
	`)
	_, err := New(g).Dataize("Φ.nope")
	if !errors.Is(err, ErrAttrNotFound) {
		t.Fatalf("got %v, want attribute not found", err)
	}
	if !strings.Contains(err.Error(), "nope") {
		t.Fatalf("error does not name the attribute: %v", err)
	}
}

func TestRootHasNoData(t *testing.T) {
	_, err := New(graph.New()).Dataize("Φ")
	if !errors.Is(err, ErrAttrNotFound) {
		t.Fatalf("got %v, want attribute not found", err)
	}
}

func TestBadLocators(t *testing.T) {
	g := deploy(t, `
		ADD($foo);
		BIND(0, $foo, foo);
		PUT($foo, 'int/42');
	`)
	u := New(g)
	for locator, want := range map[string]error{
		"":       ErrBadLocator,
		"Φ..foo": ErrBadLocator,
		"Φ.νx":   ErrBadLocator,
		"ν99":    graph.ErrVertexNotFound,
	} {
		if _, err := u.Dataize(locator); !errors.Is(err, want) {
			t.Fatalf("%q: got %v, want %v", locator, err, want)
		}
	}
}

func TestFindDoesNotEvaluate(t *testing.T) {
	g := deploy(t, `
		ADD($int);
		BIND(0, $int, int);
		ADD($inc);
		BIND($int, $inc, inc);
		ADD($incL);
		BIND($inc, $incL, λ);
		PUT($incL, 'string/inc');
		ADD($i);
		BIND(0, $i, instance);
		BIND($i, $int, π);
		PUT($i, 'int/41');
		ADD($foo);
		BIND(0, $foo, foo);
		BIND($foo, $inc, π);
		BIND($foo, $i, ρ);
	`)
	u := New(g)
	foo, err := u.Find("Φ.foo")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if _, ok := g.Data(foo); ok {
		t.Fatalf("find forced an evaluation")
	}
	if foo == graph.Root {
		t.Fatalf("find returned the root")
	}
}

func TestMergeThenDataize(t *testing.T) {
	base := deploy(t, `
		ADD($int);
		BIND(0, $int, int);
		ADD($times);
		BIND($int, $times, times);
		ADD($timesL);
		BIND($times, $timesL, λ);
		PUT($timesL, 'string/times');
		ADD($six);
		BIND(0, $six, six);
		BIND($six, $int, π);
		PUT($six, 'int/6');
		ADD($seven);
		BIND(0, $seven, seven);
		PUT($seven, 'int/7');
		ADD($app);
		BIND(0, $app, app);
		BIND($app, $times, π);
		BIND($app, $six, ρ);
		BIND($app, $seven, α0);
	`)
	other := deploy(t, `
		ADD($g);
		BIND(0, $g, greeting);
		PUT($g, 'string/hello');
	`)
	if err := base.Merge(other); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if n := mustInt(t, dataize(t, base, "Φ.app")); n != 42 {
		t.Fatalf("got %d, want 42", n)
	}
	if got := string(dataize(t, base, "Φ.greeting")); got != "hello" {
		t.Fatalf("got %q, want hello", got)
	}
}
