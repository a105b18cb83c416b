// Package atom provides the registry of native functions reachable
// through λ edges during dataization.
package atom

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/objectionary/reo/internal/graph"
)

var (
	// ErrUnknownAtom reports a λ name with no registered function.
	ErrUnknownAtom = errors.New("unknown native function")
	// ErrTypeMismatch reports arguments a native function cannot
	// decode: wrong count, length or encoding.
	ErrTypeMismatch = errors.New("native argument mismatch")
)

// Fn is a native operation over byte payloads. Implementations must
// be pure except for writes to the output stream a registry was built
// with.
type Fn func(args []graph.Data) (graph.Data, error)

// Native is a registered function plus its calling convention.
type Native struct {
	Fn Fn
	// Method marks ρ-receiver functions: the evaluator dataizes the
	// ρ attribute of the calling object as the first argument, before
	// the α arguments.
	Method bool
}

// Registry maps native function names to implementations.
type Registry struct {
	fns map[string]Native
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{fns: make(map[string]Native)}
}

// Register adds or replaces a plain native function, fed α arguments
// only.
func (r *Registry) Register(name string, fn Fn) {
	r.fns[name] = Native{Fn: fn}
}

// RegisterMethod adds or replaces a ρ-receiver native function.
func (r *Registry) RegisterMethod(name string, fn Fn) {
	r.fns[name] = Native{Fn: fn, Method: true}
}

// Get looks up a native function by name.
func (r *Registry) Get(name string) (Native, bool) {
	n, ok := r.fns[name]
	return n, ok
}

// Call dataizes through a named native function.
func (r *Registry) Call(name string, args []graph.Data) (graph.Data, error) {
	n, ok := r.fns[name]
	if !ok {
		return nil, fmt.Errorf("calling %q: %w", name, ErrUnknownAtom)
	}
	return n.Fn(args)
}

// Default returns a registry holding all built-in functions. Output
// primitives write to w.
func Default(w io.Writer) *Registry {
	r := New()
	r.RegisterMethod("inc", inc)
	r.RegisterMethod("plus", plus)
	r.RegisterMethod("minus", minus)
	r.RegisterMethod("times", times)
	r.RegisterMethod("eq", eq)
	r.RegisterMethod("concat", concat)
	r.Register("stdout", stdout(w))
	return r
}

func intArg(name string, args []graph.Data, i int) (int64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%s wants argument %d, got %d: %w", name, i, len(args), ErrTypeMismatch)
	}
	n, err := args[i].Int()
	if err != nil {
		return 0, fmt.Errorf("%s argument %d of %d bytes: %w", name, i, len(args[i]), ErrTypeMismatch)
	}
	return n, nil
}

func arity(name string, args []graph.Data, want int) error {
	if len(args) != want {
		return fmt.Errorf("%s wants %d arguments, got %d: %w", name, want, len(args), ErrTypeMismatch)
	}
	return nil
}

func inc(args []graph.Data) (graph.Data, error) {
	if err := arity("inc", args, 1); err != nil {
		return nil, err
	}
	x, err := intArg("inc", args, 0)
	if err != nil {
		return nil, err
	}
	return graph.IntData(x + 1), nil
}

func plus(args []graph.Data) (graph.Data, error) {
	if err := arity("plus", args, 2); err != nil {
		return nil, err
	}
	x, err := intArg("plus", args, 0)
	if err != nil {
		return nil, err
	}
	y, err := intArg("plus", args, 1)
	if err != nil {
		return nil, err
	}
	return graph.IntData(x + y), nil
}

func minus(args []graph.Data) (graph.Data, error) {
	if err := arity("minus", args, 2); err != nil {
		return nil, err
	}
	x, err := intArg("minus", args, 0)
	if err != nil {
		return nil, err
	}
	y, err := intArg("minus", args, 1)
	if err != nil {
		return nil, err
	}
	return graph.IntData(x - y), nil
}

func times(args []graph.Data) (graph.Data, error) {
	if err := arity("times", args, 2); err != nil {
		return nil, err
	}
	x, err := intArg("times", args, 0)
	if err != nil {
		return nil, err
	}
	y, err := intArg("times", args, 1)
	if err != nil {
		return nil, err
	}
	return graph.IntData(x * y), nil
}

// eq compares payloads byte for byte, so it works for every encoding.
func eq(args []graph.Data) (graph.Data, error) {
	if err := arity("eq", args, 2); err != nil {
		return nil, err
	}
	return graph.BoolData(bytes.Equal(args[0], args[1])), nil
}

func concat(args []graph.Data) (graph.Data, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("concat wants at least 1 argument: %w", ErrTypeMismatch)
	}
	var out graph.Data
	for _, a := range args {
		out = append(out, a...)
	}
	return out, nil
}

func stdout(w io.Writer) Fn {
	return func(args []graph.Data) (graph.Data, error) {
		if err := arity("stdout", args, 1); err != nil {
			return nil, err
		}
		if _, err := w.Write(args[0]); err != nil {
			return nil, fmt.Errorf("writing output: %w", err)
		}
		return args[0], nil
	}
}
