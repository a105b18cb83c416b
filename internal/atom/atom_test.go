package atom

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/objectionary/reo/internal/graph"
)

func call(t *testing.T, r *Registry, name string, args ...graph.Data) graph.Data {
	t.Helper()
	d, err := r.Call(name, args)
	if err != nil {
		t.Fatalf("Call(%s): %v", name, err)
	}
	return d
}

func TestIntBuiltins(t *testing.T) {
	r := Default(io.Discard)
	cases := []struct {
		name string
		args []graph.Data
		want int64
	}{
		{"inc", []graph.Data{graph.IntData(41)}, 42},
		{"plus", []graph.Data{graph.IntData(40), graph.IntData(2)}, 42},
		{"minus", []graph.Data{graph.IntData(50), graph.IntData(8)}, 42},
		{"times", []graph.Data{graph.IntData(6), graph.IntData(7)}, 42},
	}
	for _, c := range cases {
		got, err := r.Call(c.name, c.args)
		if err != nil {
			t.Errorf("%s: %v", c.name, err)
			continue
		}
		n, err := got.Int()
		if err != nil || n != c.want {
			t.Errorf("%s = %d (%v), want %d", c.name, n, err, c.want)
		}
	}
}

func TestIncWrapsAround(t *testing.T) {
	d := call(t, Default(io.Discard), "inc", graph.IntData(1<<63-1))
	n, err := d.Int()
	if err != nil {
		t.Fatal(err)
	}
	if n != -1<<63 {
		t.Errorf("inc of max int = %d, want wrap to min int", n)
	}
}

func TestEq(t *testing.T) {
	r := Default(io.Discard)
	d := call(t, r, "eq", graph.IntData(5), graph.IntData(5))
	if b, _ := d.Bool(); !b {
		t.Error("eq of equal payloads = false")
	}
	d = call(t, r, "eq", graph.IntData(5), graph.StringData("five"))
	if b, _ := d.Bool(); b {
		t.Error("eq of different payloads = true")
	}
}

func TestConcat(t *testing.T) {
	d := call(t, Default(io.Discard), "concat", graph.StringData("при"), graph.StringData("вет"))
	if string(d) != "привет" {
		t.Errorf("concat = %q", string(d))
	}
}

func TestStdoutWritesThrough(t *testing.T) {
	var buf bytes.Buffer
	d := call(t, Default(&buf), "stdout", graph.StringData("hello"))
	if buf.String() != "hello" {
		t.Errorf("stdout wrote %q", buf.String())
	}
	if string(d) != "hello" {
		t.Errorf("stdout returned %q, want its argument unchanged", string(d))
	}
}

func TestUnknownAtom(t *testing.T) {
	_, err := Default(io.Discard).Call("nope", nil)
	if !errors.Is(err, ErrUnknownAtom) {
		t.Errorf("Call(nope) = %v, want ErrUnknownAtom", err)
	}
}

func TestTypeMismatch(t *testing.T) {
	r := Default(io.Discard)
	if _, err := r.Call("inc", []graph.Data{{1, 2}}); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("inc of 2 bytes = %v, want ErrTypeMismatch", err)
	}
	if _, err := r.Call("times", []graph.Data{graph.IntData(1)}); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("times of 1 argument = %v, want ErrTypeMismatch", err)
	}
	if _, err := r.Call("concat", nil); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("concat of no arguments = %v, want ErrTypeMismatch", err)
	}
}

func TestCallingConventions(t *testing.T) {
	r := Default(io.Discard)
	for _, name := range []string{"inc", "plus", "minus", "times", "eq", "concat"} {
		n, ok := r.Get(name)
		if !ok || !n.Method {
			t.Errorf("%s must be a ρ-receiver method", name)
		}
	}
	n, ok := r.Get("stdout")
	if !ok || n.Method {
		t.Error("stdout must not dataize its caller's ρ")
	}
}

func TestRegisterExtends(t *testing.T) {
	r := New()
	r.Register("answer", func(args []graph.Data) (graph.Data, error) {
		return graph.IntData(42), nil
	})
	d := call(t, r, "answer")
	if n, _ := d.Int(); n != 42 {
		t.Errorf("registered native returned %d", n)
	}
}
